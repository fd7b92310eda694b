package llm

import (
	"context"

	"github.com/SonianW/MetaPrompter/internal/config"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"

	// DefaultTemperature is applied to every client built from configuration.
	DefaultTemperature = 0.7
)

// Message represents a single chat message.
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// ChatModel sends a rendered conversation to a model and returns the text of
// its reply. Implementations may return empty or unexpected text.
type ChatModel interface {
	Invoke(ctx context.Context, messages []Message) (string, error)
}

// Ask invokes the model with a single user turn.
func Ask(ctx context.Context, m ChatModel, text string) (string, error) {
	return m.Invoke(ctx, []Message{{Role: RoleUser, Content: text}})
}

// Config is everything needed to construct a ChatModel.
type Config struct {
	Provider    string  `json:"provider"`
	APIKey      string  `json:"-"`
	BaseURL     string  `json:"base_url,omitempty"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens,omitempty"` // 0 = provider maximum
}

func ConfigFrom(c config.LLMConfig) Config {
	return Config{
		Provider:    c.Provider,
		APIKey:      c.APIKey(),
		BaseURL:     c.BaseURL(),
		Model:       c.DefaultModel,
		Temperature: DefaultTemperature,
	}
}
