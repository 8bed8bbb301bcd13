// Package llm wraps remote embedding models behind a validating, retrying adapter.
package llm

import "time"

// ProviderKind names a supported embedding provider.
type ProviderKind string

// Provider kinds
const (
	// ProviderGemini is the Google Gemini embedding API
	ProviderGemini ProviderKind = "gemini"
	// ProviderOpenAI is the OpenAI embeddings API or any compatible gateway
	ProviderOpenAI ProviderKind = "openai"
)

// Input limits applied before text is submitted.
const (
	MinInputLength = 5
	MaxInputLength = 8000
	TruncateMarker = "..."
)

// Config holds the adapter configuration.
type Config struct {
	Provider ProviderKind
	APIKey   string
	BaseURL  string
	// Models is tried in order; the first entry is the primary model.
	Models      []string
	Dimensions  int
	MaxAttempts int
	BaseBackoff time.Duration
	Timeout     time.Duration
	CacheTTL    time.Duration
}

// DefaultConfig returns the default configuration (currently Gemini)
func DefaultConfig() *Config {
	return DefaultGeminiConfig()
}

// DefaultGeminiConfig returns the default Gemini configuration
func DefaultGeminiConfig() *Config {
	return &Config{
		Provider:    ProviderGemini,
		Models:      []string{"text-embedding-004", "embedding-001"},
		MaxAttempts: 3,
		BaseBackoff: time.Second,
		Timeout:     60 * time.Second,
		CacheTTL:    24 * time.Hour,
	}
}

// DefaultOpenAIConfig returns the default OpenAI configuration
func DefaultOpenAIConfig() *Config {
	return &Config{
		Provider:    ProviderOpenAI,
		Models:      []string{"text-embedding-3-small", "text-embedding-ada-002"},
		MaxAttempts: 3,
		BaseBackoff: time.Second,
		Timeout:     60 * time.Second,
		CacheTTL:    24 * time.Hour,
	}
}

// withDefaults fills zero values from the provider defaults.
func (c Config) withDefaults() Config {
	def := DefaultGeminiConfig()
	if c.Provider == ProviderOpenAI {
		def = DefaultOpenAIConfig()
	}
	if c.Provider == "" {
		c.Provider = def.Provider
	}
	if len(c.Models) == 0 {
		c.Models = def.Models
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = def.BaseBackoff
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = def.CacheTTL
	}
	return c
}
