package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/SonianW/MetaPrompter/internal/metrics"
)

// OpenAIModel talks to any OpenAI-compatible chat completions endpoint.
type OpenAIModel struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

func NewOpenAIModel(cfg Config) *OpenAIModel {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &OpenAIModel{
		client:      openai.NewClientWithConfig(oc),
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		maxTokens:   cfg.MaxTokens,
	}
}

func (m *OpenAIModel) Invoke(ctx context.Context, messages []Message) (string, error) {
	start := time.Now()

	msgs := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		msgs[i] = openai.ChatCompletionMessage{Role: msg.Role, Content: msg.Content}
	}

	req := openai.ChatCompletionRequest{
		Model:       m.model,
		Messages:    msgs,
		Temperature: m.temperature,
	}
	if m.maxTokens > 0 {
		req.MaxTokens = m.maxTokens
	}

	resp, err := m.client.CreateChatCompletion(ctx, req)
	elapsed := time.Since(start)
	metrics.LLMRequestDuration.WithLabelValues(m.model).Observe(elapsed.Seconds())
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(m.model, "error").Inc()
		return "", fmt.Errorf("openai chat: %w", err)
	}
	metrics.LLMRequestsTotal.WithLabelValues(m.model, "ok").Inc()

	content := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}

	cost := CalculateCost(m.model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	metrics.LLMCostUSD.WithLabelValues(m.model).Add(cost)
	slog.Debug("llm call completed",
		"provider", "openai",
		"model", m.model,
		"input_tokens", resp.Usage.PromptTokens,
		"output_tokens", resp.Usage.CompletionTokens,
		"cost_usd", cost,
		"latency_ms", elapsed.Milliseconds(),
	)

	return content, nil
}
