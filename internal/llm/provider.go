package llm

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
)

var (
	ErrMissingAPIKey   = errors.New("missing API key")
	ErrUnknownProvider = errors.New("unknown LLM provider")
)

// Factory builds a ChatModel from a configuration.
type Factory func(cfg Config) (ChatModel, error)

// NewChatModel is the default Factory. It rejects configurations that cannot
// produce a working client before any request is made.
func NewChatModel(cfg Config) (ChatModel, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse base URL: %w", err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("malformed base URL %q", cfg.BaseURL)
		}
	}

	switch cfg.Provider {
	case "", "openai":
		return NewOpenAIModel(cfg), nil
	case "anthropic":
		return NewAnthropicModel(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

type snapshot struct {
	cfg    Config
	client ChatModel // nil when construction failed
}

// Provider owns the default model configuration and the client built from it.
// Readers never block; reconfiguration swaps the whole snapshot atomically.
type Provider struct {
	factory Factory
	mu      sync.Mutex // serializes rebuilds
	state   atomic.Pointer[snapshot]
}

// Update carries the fields to overwrite on Reconfigure; empty fields are kept.
type Update struct {
	APIKey  string
	BaseURL string
	Model   string
}

// NewProvider builds the default client eagerly. A construction failure is
// logged and leaves the provider without a client.
func NewProvider(cfg Config, factory Factory) *Provider {
	if factory == nil {
		factory = NewChatModel
	}
	p := &Provider{factory: factory}
	p.state.Store(&snapshot{cfg: cfg, client: p.build(cfg)})
	return p
}

func (p *Provider) build(cfg Config) ChatModel {
	client, err := p.factory(cfg)
	if err != nil {
		slog.Error("failed to initialize LLM client",
			"provider", cfg.Provider,
			"model", cfg.Model,
			"base_url", cfg.BaseURL,
			"error", err,
		)
		return nil
	}
	return client
}

// Config returns the current default configuration.
func (p *Provider) Config() Config {
	return p.state.Load().cfg
}

// Client returns the cached client, trying to build it once more if the
// previous attempt failed. The boolean is false when no client is available.
func (p *Provider) Client() (ChatModel, bool) {
	if s := p.state.Load(); s.client != nil {
		return s.client, true
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.state.Load()
	if s.client != nil {
		return s.client, true
	}
	client := p.build(s.cfg)
	if client == nil {
		return nil, false
	}
	p.state.Store(&snapshot{cfg: s.cfg, client: client})
	return client, true
}

// Reconfigure overwrites the provided fields and rebuilds the client.
func (p *Provider) Reconfigure(u Update) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cfg := p.state.Load().cfg
	if u.APIKey != "" {
		cfg.APIKey = u.APIKey
	}
	if u.BaseURL != "" {
		cfg.BaseURL = u.BaseURL
	}
	if u.Model != "" {
		cfg.Model = u.Model
	}

	p.state.Store(&snapshot{cfg: cfg, client: p.build(cfg)})
	slog.Info("LLM client reconfigured", "provider", cfg.Provider, "model", cfg.Model)
}

// WithModel returns a throwaway provider that uses model instead of the
// default. The receiver is not modified.
func (p *Provider) WithModel(model string) *Provider {
	cfg := p.Config()
	cfg.Model = model
	return NewProvider(cfg, p.factory)
}

// ClientFor resolves the client for an optional per-call model override.
// An override client is built once for the call and never cached.
func (p *Provider) ClientFor(model string) (ChatModel, bool) {
	if model == "" || model == p.Config().Model {
		return p.Client()
	}
	s := p.WithModel(model).state.Load()
	return s.client, s.client != nil
}
