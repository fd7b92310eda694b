package prompt

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SonianW/MetaPrompter/internal/llm"
)

// Chain binds a template to a model. Invoke renders the template and returns
// the model's raw text output.
type Chain struct {
	template *Template
	model    llm.ChatModel
}

func NewChain(t *Template, m llm.ChatModel) *Chain {
	return &Chain{template: t, model: m}
}

func (c *Chain) Invoke(ctx context.Context, vars map[string]string) (string, error) {
	messages, err := c.template.Format(vars)
	if err != nil {
		return "", fmt.Errorf("render: %w", err)
	}

	if slog.Default().Enabled(ctx, slog.LevelDebug) {
		for i, m := range messages {
			slog.Debug("chain message", "template", c.template.Name(), "index", i+1, "role", m.Role, "content", m.Content)
		}
	}

	out, err := c.model.Invoke(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("invoke: %w", err)
	}
	return out, nil
}
