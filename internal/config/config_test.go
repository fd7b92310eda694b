package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "https://api.openai.com/v1", cfg.LLM.BaseURL())
	assert.Equal(t, time.Minute, cfg.Stats.PublicCacheTTL)
	assert.Equal(t, "migrations", cfg.Database.MigrationsPath)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoad_CORSOrigins(t *testing.T) {
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com,,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.CORSOrigins)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("LLM_PROVIDER", "Anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	t.Setenv("DEFAULT_LLM_MODEL", "claude-sonnet-4-20250514")
	t.Setenv("PUBLIC_CACHE_TTL", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "sk-ant-test", cfg.LLM.APIKey())
	assert.Empty(t, cfg.LLM.BaseURL())
	assert.Equal(t, "claude-sonnet-4-20250514", cfg.LLM.DefaultModel)
	assert.Equal(t, 30*time.Second, cfg.Stats.PublicCacheTTL)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metaprompter.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  default_model: qwen-max\nserver:\n  port: 7000\n"), 0o600))
	t.Setenv("METAPROMPTER_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "qwen-max", cfg.LLM.DefaultModel)
	assert.Equal(t, 7000, cfg.Server.Port)
}

func TestLoad_InvalidProvider(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "cohere")

	_, err := Load()
	assert.ErrorContains(t, err, "invalid LLM_PROVIDER")
}

func TestValidate_MissingKey(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	cfg.LLM.OpenAIKey = ""

	assert.ErrorContains(t, cfg.Validate(), "OPENAI_API_KEY")
}

func TestLocation(t *testing.T) {
	cfg := &Config{Stats: StatsConfig{Timezone: "Asia/Shanghai"}}
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Shanghai", loc.String())

	cfg.Stats.Timezone = "Not/AZone"
	_, err = cfg.Location()
	assert.Error(t, err)
}
