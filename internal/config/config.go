package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	LLM      LLMConfig
	Stats    StatsConfig
}

type ServerConfig struct {
	Host        string
	Port        int
	CORSOrigins []string
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

// RedisConfig is optional; an empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string
}

type LLMConfig struct {
	Provider     string // "openai" or "anthropic"
	OpenAIKey    string
	OpenAIBase   string
	AnthropicKey string
	DefaultModel string
}

type StatsConfig struct {
	Timezone       string
	PublicCacheTTL time.Duration
}

// keys maps viper keys to the environment variables they are read from.
var keys = map[string]string{
	"server.host":            "SERVER_HOST",
	"server.port":            "SERVER_PORT",
	"server.cors_origins":    "CORS_ORIGINS",
	"database.url":           "DATABASE_URL",
	"database.max_conns":     "DB_MAX_CONNS",
	"database.min_conns":     "DB_MIN_CONNS",
	"database.migrations":    "MIGRATIONS_PATH",
	"redis.addr":             "REDIS_ADDR",
	"redis.password":         "REDIS_PASSWORD",
	"redis.db":               "REDIS_DB",
	"auth.jwt_secret":        "JWT_SECRET",
	"llm.provider":           "LLM_PROVIDER",
	"llm.openai_key":         "OPENAI_API_KEY",
	"llm.openai_base":        "OPENAI_API_BASE",
	"llm.anthropic_key":      "ANTHROPIC_API_KEY",
	"llm.default_model":      "DEFAULT_LLM_MODEL",
	"stats.timezone":         "STATS_TIMEZONE",
	"stats.public_cache_ttl": "PUBLIC_CACHE_TTL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.migrations", "migrations")
	v.SetDefault("server.cors_origins", "*")
	v.SetDefault("redis.db", 0)
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.openai_base", "https://api.openai.com/v1")
	v.SetDefault("llm.default_model", "gpt-4o-mini")
	v.SetDefault("stats.timezone", "Local")
	v.SetDefault("stats.public_cache_ttl", time.Minute)
}

// Load reads configuration from defaults, an optional file named by
// METAPROMPTER_CONFIG, and the environment, in increasing precedence.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range keys {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if err := v.BindEnv("config_file", "METAPROMPTER_CONFIG"); err != nil {
		return nil, fmt.Errorf("bind METAPROMPTER_CONFIG: %w", err)
	}
	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	port := v.GetInt("server.port")
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid SERVER_PORT: %q", v.GetString("server.port"))
	}

	provider := strings.ToLower(v.GetString("llm.provider"))
	if provider != "openai" && provider != "anthropic" {
		return nil, fmt.Errorf("invalid LLM_PROVIDER: %q", provider)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:        v.GetString("server.host"),
			Port:        port,
			CORSOrigins: splitList(strings.Join(v.GetStringSlice("server.cors_origins"), ",")),
		},
		Database: DatabaseConfig{
			URL:            v.GetString("database.url"),
			MaxConns:       v.GetInt("database.max_conns"),
			MinConns:       v.GetInt("database.min_conns"),
			MigrationsPath: v.GetString("database.migrations"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("auth.jwt_secret"),
		},
		LLM: LLMConfig{
			Provider:     provider,
			OpenAIKey:    v.GetString("llm.openai_key"),
			OpenAIBase:   v.GetString("llm.openai_base"),
			AnthropicKey: v.GetString("llm.anthropic_key"),
			DefaultModel: v.GetString("llm.default_model"),
		},
		Stats: StatsConfig{
			Timezone:       v.GetString("stats.timezone"),
			PublicCacheTTL: v.GetDuration("stats.public_cache_ttl"),
		},
	}

	return cfg, nil
}

// splitList parses a comma-separated setting, dropping empty items. A YAML
// list arrives already joined.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Location resolves the timezone used for day/week/month statistics windows.
func (c *Config) Location() (*time.Location, error) {
	if c.Stats.Timezone == "" || c.Stats.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Stats.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid STATS_TIMEZONE: %w", err)
	}
	return loc, nil
}

// APIKey returns the credential for the configured provider.
func (c LLMConfig) APIKey() string {
	if c.Provider == "anthropic" {
		return c.AnthropicKey
	}
	return c.OpenAIKey
}

// BaseURL returns the endpoint for the configured provider. Anthropic always
// uses the SDK default endpoint.
func (c LLMConfig) BaseURL() string {
	if c.Provider == "anthropic" {
		return ""
	}
	return c.OpenAIBase
}

func (c *Config) Validate() error {
	var missing []string
	if c.LLM.APIKey() == "" {
		missing = append(missing, "OPENAI_API_KEY or ANTHROPIC_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	return nil
}
