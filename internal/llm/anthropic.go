package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/SonianW/MetaPrompter/internal/metrics"
)

// anthropicMaxTokens is sent when the config leaves output length unbounded;
// the Messages API requires an explicit limit.
const anthropicMaxTokens = 4096

type AnthropicModel struct {
	client      anthropic.Client
	model       string
	temperature float64
	maxTokens   int64
}

func NewAnthropicModel(cfg Config) *AnthropicModel {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	maxTokens := int64(cfg.MaxTokens)
	if maxTokens == 0 {
		maxTokens = anthropicMaxTokens
	}

	return &AnthropicModel{
		client:      anthropic.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
	}
}

func (m *AnthropicModel) Invoke(ctx context.Context, messages []Message) (string, error) {
	start := time.Now()

	var systemText string
	var msgs []anthropic.MessageParam
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			if systemText != "" {
				systemText += "\n\n"
			}
			systemText += msg.Content
		case RoleUser:
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case RoleAssistant:
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.model),
		MaxTokens: m.maxTokens,
		Messages:  msgs,
	}
	if systemText != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemText}}
	}
	if m.temperature > 0 {
		params.Temperature = anthropic.Float(m.temperature)
	}

	resp, err := m.client.Messages.New(ctx, params)
	elapsed := time.Since(start)
	metrics.LLMRequestDuration.WithLabelValues(m.model).Observe(elapsed.Seconds())
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(m.model, "error").Inc()
		return "", fmt.Errorf("anthropic chat: %w", err)
	}
	metrics.LLMRequestsTotal.WithLabelValues(m.model, "ok").Inc()

	content := ""
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	inputTokens := int(resp.Usage.InputTokens)
	outputTokens := int(resp.Usage.OutputTokens)
	cost := CalculateCost(m.model, inputTokens, outputTokens)
	metrics.LLMCostUSD.WithLabelValues(m.model).Add(cost)
	slog.Debug("llm call completed",
		"provider", "anthropic",
		"model", m.model,
		"input_tokens", inputTokens,
		"output_tokens", outputTokens,
		"cost_usd", cost,
		"latency_ms", elapsed.Milliseconds(),
	)

	return content, nil
}
