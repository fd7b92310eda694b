package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedModel struct{ cfg Config }

func (m *namedModel) Invoke(_ context.Context, _ []Message) (string, error) {
	return m.cfg.Model, nil
}

// countingFactory fails while failing is set and records every build.
type countingFactory struct {
	mu      sync.Mutex
	builds  []Config
	failing bool
}

func (f *countingFactory) build(cfg Config) (ChatModel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builds = append(f.builds, cfg)
	if f.failing {
		return nil, errors.New("endpoint unreachable")
	}
	return &namedModel{cfg: cfg}, nil
}

func baseConfig() Config {
	return Config{Provider: "openai", APIKey: "sk-test", Model: "gpt-4o-mini", Temperature: DefaultTemperature}
}

func TestProvider_CachesDefaultClient(t *testing.T) {
	f := &countingFactory{}
	p := NewProvider(baseConfig(), f.build)

	c1, ok := p.Client()
	require.True(t, ok)
	c2, ok := p.Client()
	require.True(t, ok)

	assert.Same(t, c1, c2)
	assert.Len(t, f.builds, 1)
}

func TestProvider_DegradesToAbsentAndRetries(t *testing.T) {
	f := &countingFactory{failing: true}
	p := NewProvider(baseConfig(), f.build)

	c, ok := p.Client()
	assert.False(t, ok)
	assert.Nil(t, c)
	assert.Len(t, f.builds, 2, "construction plus one retry")

	f.failing = false
	c, ok = p.Client()
	require.True(t, ok)
	out, err := c.Invoke(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", out)
}

func TestProvider_Reconfigure(t *testing.T) {
	f := &countingFactory{}
	p := NewProvider(baseConfig(), f.build)
	before, _ := p.Client()

	p.Reconfigure(Update{Model: "deepseek-chat", BaseURL: "https://api.deepseek.com/v1"})

	after, ok := p.Client()
	require.True(t, ok)
	assert.NotSame(t, before, after)
	assert.Equal(t, "deepseek-chat", p.Config().Model)
	assert.Equal(t, "https://api.deepseek.com/v1", p.Config().BaseURL)
	assert.Equal(t, "sk-test", p.Config().APIKey, "empty update fields are kept")
	assert.Equal(t, DefaultTemperature, p.Config().Temperature)
}

func TestProvider_OverrideDoesNotTouchDefault(t *testing.T) {
	f := &countingFactory{}
	p := NewProvider(baseConfig(), f.build)

	c, ok := p.ClientFor("gpt-4o")
	require.True(t, ok)
	out, _ := c.Invoke(context.Background(), nil)
	assert.Equal(t, "gpt-4o", out)

	assert.Equal(t, "gpt-4o-mini", p.Config().Model)
	def, _ := p.Client()
	out, _ = def.Invoke(context.Background(), nil)
	assert.Equal(t, "gpt-4o-mini", out)
}

func TestProvider_FailedOverrideBuildsOnce(t *testing.T) {
	f := &countingFactory{}
	p := NewProvider(baseConfig(), f.build)
	require.Len(t, f.builds, 1)

	f.failing = true
	c, ok := p.ClientFor("gpt-4o")
	assert.False(t, ok)
	assert.Nil(t, c)
	assert.Len(t, f.builds, 2, "one build for the override, no retry")
	assert.Equal(t, "gpt-4o", f.builds[1].Model)
}

func TestProvider_ConcurrentReconfigure(t *testing.T) {
	f := &countingFactory{}
	p := NewProvider(baseConfig(), f.build)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			p.Reconfigure(Update{Model: "gpt-4o"})
		}()
		go func() {
			defer wg.Done()
			_, ok := p.Client()
			assert.True(t, ok)
		}()
	}
	wg.Wait()
	assert.Equal(t, "gpt-4o", p.Config().Model)
}

func TestNewChatModel_Validation(t *testing.T) {
	cfg := baseConfig()
	cfg.APIKey = ""
	_, err := NewChatModel(cfg)
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	cfg = baseConfig()
	cfg.BaseURL = "not a url"
	_, err = NewChatModel(cfg)
	assert.Error(t, err)

	cfg = baseConfig()
	cfg.Provider = "cohere"
	_, err = NewChatModel(cfg)
	assert.ErrorIs(t, err, ErrUnknownProvider)

	cfg = baseConfig()
	cfg.Provider = "anthropic"
	m, err := NewChatModel(cfg)
	require.NoError(t, err)
	assert.IsType(t, &AnthropicModel{}, m)
}

func TestOpenAIModel_Invoke(t *testing.T) {
	var got struct {
		Model       string    `json:"model"`
		Messages    []Message `json:"messages"`
		Temperature float32   `json:"temperature"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"chatcmpl-1","model":"gpt-4o-mini","choices":[{"index":0,"message":{"role":"assistant","content":"  better prompt  "}}],"usage":{"prompt_tokens":12,"completion_tokens":3,"total_tokens":15}}`))
	}))
	defer srv.Close()

	cfg := baseConfig()
	cfg.BaseURL = srv.URL
	m, err := NewChatModel(cfg)
	require.NoError(t, err)

	out, err := m.Invoke(context.Background(), []Message{
		{Role: RoleSystem, Content: "be terse"},
		{Role: RoleUser, Content: "hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, "  better prompt  ", out)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.InDelta(t, 0.7, got.Temperature, 1e-6)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, RoleSystem, got.Messages[0].Role)
}

func TestOpenAIModel_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid api key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	cfg := baseConfig()
	cfg.BaseURL = srv.URL
	m, err := NewChatModel(cfg)
	require.NoError(t, err)

	_, err = Ask(context.Background(), m, "hello")
	assert.ErrorContains(t, err, "openai chat")
}

func TestAnthropicModel_Invoke(t *testing.T) {
	type block struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	var got struct {
		Model     string  `json:"model"`
		MaxTokens int     `json:"max_tokens"`
		System    []block `json:"system"`
		Messages  []struct {
			Role    string  `json:"role"`
			Content []block `json:"content"`
		} `json:"messages"`
		Temperature float64 `json:"temperature"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant-test", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-haiku-20240307",` +
			`"content":[{"type":"text","text":"Write a "},{"type":"text","text":"haiku."}],` +
			`"stop_reason":"end_turn","usage":{"input_tokens":20,"output_tokens":4}}`))
	}))
	defer srv.Close()

	cfg := Config{Provider: "anthropic", APIKey: "sk-ant-test", BaseURL: srv.URL,
		Model: "claude-3-haiku-20240307", Temperature: DefaultTemperature}
	m, err := NewChatModel(cfg)
	require.NoError(t, err)

	out, err := m.Invoke(context.Background(), []Message{
		{Role: RoleSystem, Content: "be terse"},
		{Role: RoleSystem, Content: "no markup"},
		{Role: RoleUser, Content: "poem please"},
		{Role: RoleAssistant, Content: "About what?"},
		{Role: RoleUser, Content: "autumn"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Write a haiku.", out)

	assert.Equal(t, "claude-3-haiku-20240307", got.Model)
	assert.Equal(t, 4096, got.MaxTokens)
	assert.InDelta(t, 0.7, got.Temperature, 1e-9)
	require.Len(t, got.System, 1)
	assert.Equal(t, "be terse\n\nno markup", got.System[0].Text)

	require.Len(t, got.Messages, 3)
	roles := []string{got.Messages[0].Role, got.Messages[1].Role, got.Messages[2].Role}
	assert.Equal(t, []string{"user", "assistant", "user"}, roles)
	require.Len(t, got.Messages[1].Content, 1)
	assert.Equal(t, "About what?", got.Messages[1].Content[0].Text)
}

func TestAnthropicModel_ExplicitMaxTokens(t *testing.T) {
	var got struct {
		MaxTokens int `json:"max_tokens"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"msg_2","type":"message","role":"assistant","model":"claude-3-haiku-20240307",` +
			`"content":[{"type":"text","text":"ok"}],"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":1}}`))
	}))
	defer srv.Close()

	m := NewAnthropicModel(Config{APIKey: "k", BaseURL: srv.URL, Model: "claude-3-haiku-20240307", MaxTokens: 256})
	_, err := Ask(context.Background(), m, "hi")
	require.NoError(t, err)
	assert.Equal(t, 256, got.MaxTokens)
}

func TestAnthropicModel_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	}))
	defer srv.Close()

	m := NewAnthropicModel(Config{APIKey: "bad", BaseURL: srv.URL, Model: "claude-3-haiku-20240307"})
	_, err := Ask(context.Background(), m, "hello")
	assert.ErrorContains(t, err, "anthropic chat")
}

func TestCalculateCost(t *testing.T) {
	assert.InDelta(t, 0.00015+0.0006, CalculateCost("gpt-4o-mini", 1000, 1000), 1e-12)
	assert.Zero(t, CalculateCost("llama3", 1000, 1000))
}
