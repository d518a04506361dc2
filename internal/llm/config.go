// Package llm provides the generation provider abstraction and its Gemini and
// OpenAI-compatible implementations.
package llm

import "time"

// Provider represents an LLM provider
type Provider string

// Provider constants define supported LLM providers
const (
	// ProviderGemini is the Google Gemini provider
	ProviderGemini Provider = "gemini"
	// ProviderOpenAI is any OpenAI-compatible chat completions endpoint
	ProviderOpenAI Provider = "openai"
)

// Config holds the generation provider configuration
type Config struct {
	Provider    Provider
	Model       string // Used when a request names no model
	BaseURL     string // OpenAI-compatible API root; ignored for Gemini
	Temperature float32
	Timeout     time.Duration // HTTP client timeout for OpenAI-compatible providers
}

// DefaultConfig returns the default configuration (currently Gemini)
func DefaultConfig() *Config {
	return DefaultGeminiConfig()
}

// DefaultGeminiConfig returns the default Gemini configuration
func DefaultGeminiConfig() *Config {
	return &Config{
		Provider:    ProviderGemini,
		Model:       "gemini-2.5-flash",
		Temperature: 0.1,
		Timeout:     120 * time.Second,
	}
}

// DefaultOpenAIConfig returns the default OpenAI configuration
func DefaultOpenAIConfig() *Config {
	return &Config{
		Provider:    ProviderOpenAI,
		Model:       "gpt-4o-mini",
		BaseURL:     "https://api.openai.com/v1",
		Temperature: 0,
		Timeout:     120 * time.Second,
	}
}

// ModelFor returns the requested model, falling back to the configured default.
func (c *Config) ModelFor(requested string) string {
	if requested != "" {
		return requested
	}
	return c.Model
}

// WithModel returns a new Config with a different default model
func (c *Config) WithModel(model string) *Config {
	newConfig := *c
	newConfig.Model = model
	return &newConfig
}
