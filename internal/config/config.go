// Package config loads and validates the service configuration: defaults, an optional
// YAML/JSON file and RESUME_OPTIMIZER_* environment variables, in increasing precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/jonathan/resume-optimizer/internal/embedding"
	"github.com/jonathan/resume-optimizer/internal/generation"
	"github.com/jonathan/resume-optimizer/internal/llm"
	"github.com/jonathan/resume-optimizer/internal/optimizer"
	"github.com/jonathan/resume-optimizer/internal/server"
	"github.com/jonathan/resume-optimizer/internal/server/ratelimit"
)

// EnvPrefix prefixes every environment override, e.g. RESUME_OPTIMIZER_SERVER_PORT.
const EnvPrefix = "RESUME_OPTIMIZER"

// Config is the full service configuration.
type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding"`
	Generation GenerationConfig `mapstructure:"generation"`
	Optimizer  OptimizerConfig  `mapstructure:"optimizer"`
}

// LogConfig selects the zap encoder and level.
type LogConfig struct {
	JSON  bool `mapstructure:"json"`
	Debug bool `mapstructure:"debug"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port               int           `mapstructure:"port" validate:"min=1,max=65535"`
	AllowedOrigin      string        `mapstructure:"allowed-origin"`
	RateLimitPerMinute float64       `mapstructure:"rate-limit-per-minute" validate:"gte=0"`
	RateLimitBurst     int           `mapstructure:"rate-limit-burst" validate:"gte=0"`
	RateLimitAllow     []string      `mapstructure:"rate-limit-allow"`
	MaxBodyBytes       int64         `mapstructure:"max-body-bytes" validate:"gt=0"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown-timeout" validate:"gt=0"`
}

// DatabaseConfig configures optional persistence. An empty URL disables it.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// EmbeddingConfig configures the embedding provider and client.
type EmbeddingConfig struct {
	Provider        string        `mapstructure:"provider" validate:"oneof=openai gemini"`
	APIKey          string        `mapstructure:"api-key"`
	BaseURL         string        `mapstructure:"base-url" validate:"omitempty,url"`
	Model           string        `mapstructure:"model" validate:"required"`
	MaxChars        int           `mapstructure:"max-chars" validate:"gt=0"`
	MaxAttempts     int           `mapstructure:"max-attempts" validate:"gt=0"`
	BaseBackoff     time.Duration `mapstructure:"base-backoff" validate:"gt=0"`
	MaxBackoff      time.Duration `mapstructure:"max-backoff" validate:"gtefield=BaseBackoff"`
	CallTimeout     time.Duration `mapstructure:"call-timeout" validate:"gt=0"`
	BatchSize       int           `mapstructure:"batch-size" validate:"gt=0"`
	RatePerSecond   float64       `mapstructure:"rate-per-second" validate:"gte=0"`
	Burst           int           `mapstructure:"burst" validate:"gte=0"`
	CacheMaxEntries int           `mapstructure:"cache-max-entries" validate:"gte=0"`
	CacheTTL        time.Duration `mapstructure:"cache-ttl" validate:"gte=0"`
}

// GenerationConfig configures the generation provider and orchestrator.
type GenerationConfig struct {
	Provider           string        `mapstructure:"provider" validate:"oneof=openai gemini"`
	APIKey             string        `mapstructure:"api-key"`
	BaseURL            string        `mapstructure:"base-url" validate:"omitempty,url"`
	Model              string        `mapstructure:"model" validate:"required"`
	Temperature        float32       `mapstructure:"temperature" validate:"gte=0,lte=2"`
	MaxRetries         int           `mapstructure:"max-retries" validate:"gt=0"`
	BaseBackoff        time.Duration `mapstructure:"base-backoff" validate:"gt=0"`
	MaxBackoff         time.Duration `mapstructure:"max-backoff" validate:"gtefield=BaseBackoff"`
	CallTimeout        time.Duration `mapstructure:"call-timeout" validate:"gt=0"`
	MaxDiagnosticChars int           `mapstructure:"max-diagnostic-chars" validate:"gt=0"`
}

// OptimizerConfig configures the coordinator.
type OptimizerConfig struct {
	Timeout          time.Duration `mapstructure:"timeout" validate:"gt=0"`
	SimilarityWeight float64       `mapstructure:"similarity-weight" validate:"gte=0,lte=1"`
	MaxResumeChars   int           `mapstructure:"max-resume-chars" validate:"gt=0"`
	MaxJobChars      int           `mapstructure:"max-job-chars" validate:"gt=0"`
}

// SetDefaults registers every default on v. Each key must have a default so that
// environment overrides are picked up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.json", false)
	v.SetDefault("log.debug", false)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed-origin", "*")
	v.SetDefault("server.rate-limit-per-minute", 30)
	v.SetDefault("server.rate-limit-burst", 5)
	v.SetDefault("server.rate-limit-allow", []string{})
	v.SetDefault("server.max-body-bytes", 1<<20)
	v.SetDefault("server.shutdown-timeout", 30*time.Second)

	v.SetDefault("database.url", "")

	v.SetDefault("embedding.provider", "openai")
	v.SetDefault("embedding.api-key", "")
	v.SetDefault("embedding.base-url", embedding.DefaultOpenAIBaseURL)
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.max-chars", 8000)
	v.SetDefault("embedding.max-attempts", 3)
	v.SetDefault("embedding.base-backoff", 200*time.Millisecond)
	v.SetDefault("embedding.max-backoff", 2*time.Second)
	v.SetDefault("embedding.call-timeout", 15*time.Second)
	v.SetDefault("embedding.batch-size", 32)
	v.SetDefault("embedding.rate-per-second", 0)
	v.SetDefault("embedding.burst", 1)
	v.SetDefault("embedding.cache-max-entries", 0)
	v.SetDefault("embedding.cache-ttl", 0)

	v.SetDefault("generation.provider", "gemini")
	v.SetDefault("generation.api-key", "")
	v.SetDefault("generation.base-url", "")
	v.SetDefault("generation.model", "gemini-2.5-flash")
	v.SetDefault("generation.temperature", 0.1)
	v.SetDefault("generation.max-retries", 3)
	v.SetDefault("generation.base-backoff", 500*time.Millisecond)
	v.SetDefault("generation.max-backoff", 4*time.Second)
	v.SetDefault("generation.call-timeout", 60*time.Second)
	v.SetDefault("generation.max-diagnostic-chars", 500)

	v.SetDefault("optimizer.timeout", 90*time.Second)
	v.SetDefault("optimizer.similarity-weight", 0.5)
	v.SetDefault("optimizer.max-resume-chars", 30000)
	v.SetDefault("optimizer.max-job-chars", 15000)
}

// New returns a viper instance with defaults and environment bindings.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Conventional variable names are accepted as fallbacks.
	_ = v.BindEnv("database.url", EnvPrefix+"_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("server.port", EnvPrefix+"_SERVER_PORT", "PORT")
	_ = v.BindEnv("embedding.api-key", EnvPrefix+"_EMBEDDING_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("generation.api-key", EnvPrefix+"_GENERATION_API_KEY", "GEMINI_API_KEY")
	return v
}

// Load reads the configuration. path may be empty to rely on defaults and environment.
func Load(path string) (*Config, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}
	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges. API keys are checked when providers are built, so
// commands that call no provider run without them.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	return nil
}

// EmbeddingClient maps the section onto the embedding client settings.
func (c EmbeddingConfig) EmbeddingClient() embedding.Config {
	return embedding.Config{
		MaxChars:      c.MaxChars,
		MaxAttempts:   c.MaxAttempts,
		BaseBackoff:   c.BaseBackoff,
		MaxBackoff:    c.MaxBackoff,
		CallTimeout:   c.CallTimeout,
		BatchSize:     c.BatchSize,
		RatePerSecond: c.RatePerSecond,
		Burst:         c.Burst,
	}
}

// Cache maps the section onto the embedding cache bounds.
func (c EmbeddingConfig) Cache() embedding.CacheConfig {
	return embedding.CacheConfig{MaxEntries: c.CacheMaxEntries, TTL: c.CacheTTL}
}

// LLM maps the section onto the provider client settings.
func (c GenerationConfig) LLM() *llm.Config {
	return &llm.Config{
		Provider:    llm.Provider(c.Provider),
		Model:       c.Model,
		BaseURL:     c.BaseURL,
		Temperature: c.Temperature,
		Timeout:     c.CallTimeout,
	}
}

// Orchestrator maps the section onto the orchestrator settings.
func (c GenerationConfig) Orchestrator() generation.Config {
	return generation.Config{
		Model:              c.Model,
		MaxAttempts:        c.MaxRetries,
		BaseBackoff:        c.BaseBackoff,
		MaxBackoff:         c.MaxBackoff,
		CallTimeout:        c.CallTimeout,
		MaxDiagnosticChars: c.MaxDiagnosticChars,
	}
}

// Coordinator assembles the coordinator defaults from all sections.
func (c *Config) Coordinator() optimizer.Config {
	return optimizer.Config{
		EmbeddingModel:   c.Embedding.Model,
		GenerationModel:  c.Generation.Model,
		MaxRetries:       c.Generation.MaxRetries,
		Timeout:          c.Optimizer.Timeout,
		SimilarityWeight: c.Optimizer.SimilarityWeight,
		MaxResumeChars:   c.Optimizer.MaxResumeChars,
		MaxJobChars:      c.Optimizer.MaxJobChars,
	}
}

// HTTP maps the section onto the server settings. A zero per-minute rate disables
// rate limiting.
func (c ServerConfig) HTTP() server.Config {
	rl := &ratelimit.Config{Enabled: false}
	if c.RateLimitPerMinute > 0 {
		rl = ratelimit.DefaultConfig()
		rl.Whitelist = ratelimit.ParseList(c.RateLimitAllow)
		rl.EndpointConfigs = ratelimit.OptimizeEndpoints(c.RateLimitPerMinute, c.RateLimitBurst)
	}
	return server.Config{
		Port:            c.Port,
		AllowedOrigin:   c.AllowedOrigin,
		MaxBodyBytes:    c.MaxBodyBytes,
		ShutdownTimeout: c.ShutdownTimeout,
		RateLimit:       rl,
	}
}
