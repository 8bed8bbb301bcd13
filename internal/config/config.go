// Package config provides configuration loading and validation for the service and CLI.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. JOBREC_SERVER_PORT.
const EnvPrefix = "JOBREC"

// DefaultConfigName is looked up in the working directory when no file is given.
const DefaultConfigName = "job-recommender"

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Index     IndexConfig     `mapstructure:"index"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Scraper   ScraperConfig   `mapstructure:"scraper"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port         int             `mapstructure:"port"`
	ReadTimeout  time.Duration   `mapstructure:"read-timeout"`
	WriteTimeout time.Duration   `mapstructure:"write-timeout"`
	Version      string          `mapstructure:"version"`
	RateLimit    RateLimitConfig `mapstructure:"rate-limit"`
}

// RateLimitConfig configures per-client request limits. Limit requests are allowed per
// Window, with bursts of up to Burst (Limit when zero).
type RateLimitConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Limit     int           `mapstructure:"limit"`
	Window    time.Duration `mapstructure:"window"`
	Burst     int           `mapstructure:"burst"`
	Allowlist []string      `mapstructure:"allowlist"`
	Denylist  []string      `mapstructure:"denylist"`
}

// IndexConfig configures the index store. Endpoint may be empty, in which case the
// endpoint resolver decides.
type IndexConfig struct {
	Endpoint            string `mapstructure:"endpoint"`
	DefaultEndpoint     string `mapstructure:"default-endpoint"`
	MetadataAttribute   string `mapstructure:"metadata-attribute"`
	CandidateCollection string `mapstructure:"candidate-collection"`
	JobCollection       string `mapstructure:"job-collection"`
}

// EmbeddingConfig configures the embedding provider adapter.
type EmbeddingConfig struct {
	Provider    string        `mapstructure:"provider"`
	APIKey      string        `mapstructure:"api-key"`
	BaseURL     string        `mapstructure:"base-url"`
	Models      []string      `mapstructure:"models"`
	Dimensions  int           `mapstructure:"dimensions"`
	MaxAttempts int           `mapstructure:"max-attempts"`
	BaseBackoff time.Duration `mapstructure:"base-backoff"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// CacheConfig configures the optional Redis embedding cache. An empty URL disables it.
type CacheConfig struct {
	RedisURL string        `mapstructure:"redis-url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// StorageConfig configures where extracted résumé text is read from.
type StorageConfig struct {
	Backend     string `mapstructure:"backend"`
	Bucket      string `mapstructure:"bucket"`
	Root        string `mapstructure:"root"`
	Namespace   string `mapstructure:"namespace"`
	PendingGlob string `mapstructure:"pending-glob"`
	Concurrency int    `mapstructure:"concurrency"`
}

// ScraperConfig configures the listing source and scrape pacing.
type ScraperConfig struct {
	BaseURL      string        `mapstructure:"base-url"`
	Location     string        `mapstructure:"location"`
	SearchTerms  []string      `mapstructure:"search-terms"`
	MaxPages     int           `mapstructure:"max-pages"`
	TermDelay    time.Duration `mapstructure:"term-delay"`
	PageDelay    time.Duration `mapstructure:"page-delay"`
	Timeout      time.Duration `mapstructure:"timeout"`
	UserAgent    string        `mapstructure:"user-agent"`
	UseBrowser   bool          `mapstructure:"use-browser"`
	ScheduledMax int           `mapstructure:"scheduled-max"`
}

// LogConfig configures logging output.
type LogConfig struct {
	JSON  bool `mapstructure:"json"`
	Debug bool `mapstructure:"debug"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read-timeout", 30*time.Second)
	v.SetDefault("server.write-timeout", 120*time.Second)
	v.SetDefault("server.version", "1.0.0")
	v.SetDefault("server.rate-limit.enabled", true)
	v.SetDefault("server.rate-limit.limit", 600)
	v.SetDefault("server.rate-limit.window", time.Minute)
	v.SetDefault("server.rate-limit.burst", 0)
	v.SetDefault("server.rate-limit.allowlist", []string{})
	v.SetDefault("server.rate-limit.denylist", []string{})

	v.SetDefault("index.endpoint", "")
	v.SetDefault("index.default-endpoint", "bolt://data/jobrec.db")
	v.SetDefault("index.metadata-attribute", "index-endpoint")
	v.SetDefault("index.candidate-collection", "cv-index")
	v.SetDefault("index.job-collection", "job-index")

	v.SetDefault("embedding.provider", "gemini")
	v.SetDefault("embedding.api-key", "")
	v.SetDefault("embedding.base-url", "")
	// empty selects the provider's own model list
	v.SetDefault("embedding.models", []string{})
	v.SetDefault("embedding.dimensions", 0)
	v.SetDefault("embedding.max-attempts", 3)
	v.SetDefault("embedding.base-backoff", time.Second)
	v.SetDefault("embedding.timeout", 60*time.Second)

	v.SetDefault("cache.redis-url", "")
	v.SetDefault("cache.ttl", 24*time.Hour)

	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.root", "data/cvs")
	v.SetDefault("storage.namespace", "structured")
	v.SetDefault("storage.pending-glob", "structured/**/*.txt")
	v.SetDefault("storage.concurrency", 4)

	v.SetDefault("scraper.base-url", "https://wuzzuf.net")
	v.SetDefault("scraper.location", "Egypt")
	v.SetDefault("scraper.search-terms", []string{"software engineer", "developer", "data analyst", "marketing", "sales"})
	v.SetDefault("scraper.max-pages", 3)
	v.SetDefault("scraper.term-delay", 3*time.Second)
	v.SetDefault("scraper.page-delay", 2*time.Second)
	v.SetDefault("scraper.timeout", 30*time.Second)
	v.SetDefault("scraper.user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("scraper.use-browser", false)
	v.SetDefault("scraper.scheduled-max", 100)

	v.SetDefault("log.json", false)
	v.SetDefault("log.debug", false)
}

// Load reads configuration into a Config. path may be empty, in which case
// job-recommender.yaml in the working directory is used when present. Environment
// variables with the JOBREC_ prefix override file values.
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	// Conventional names used by the providers' own tooling.
	_ = v.BindEnv("embedding.api-key", "JOBREC_EMBEDDING_API_KEY", "GEMINI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("cache.redis-url", "JOBREC_CACHE_REDIS_URL", "REDIS_URL")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(DefaultConfigName)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// LoadConfig loads configuration from path using a fresh viper instance.
func LoadConfig(path string) (*Config, error) {
	return Load(viper.New(), path)
}

// Validate checks that the configuration has usable values.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("config error: 'server.port' must be between 1 and 65535"))
	}
	if rl := c.Server.RateLimit; rl.Enabled && (rl.Limit <= 0 || rl.Window <= 0) {
		errs = append(errs, fmt.Errorf("config error: 'server.rate-limit' needs a positive limit and window"))
	}
	if c.Index.CandidateCollection == "" || c.Index.JobCollection == "" {
		errs = append(errs, fmt.Errorf("config error: index collections must be named"))
	}
	if c.Index.CandidateCollection == c.Index.JobCollection {
		errs = append(errs, fmt.Errorf("config error: candidate and job collections must differ"))
	}
	switch c.Embedding.Provider {
	case "gemini", "openai":
	default:
		errs = append(errs, fmt.Errorf("config error: unknown embedding provider %q", c.Embedding.Provider))
	}
	for _, m := range c.Embedding.Models {
		if strings.TrimSpace(m) == "" {
			errs = append(errs, fmt.Errorf("config error: 'embedding.models' must not contain empty names"))
			break
		}
	}
	if c.Embedding.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("config error: 'embedding.max-attempts' must be positive"))
	}
	switch c.Storage.Backend {
	case "local":
	case "gcs":
		if c.Storage.Bucket == "" {
			errs = append(errs, fmt.Errorf("config error: 'storage.bucket' is required for gcs"))
		}
	default:
		errs = append(errs, fmt.Errorf("config error: unknown storage backend %q", c.Storage.Backend))
	}
	if c.Scraper.MaxPages < 1 {
		errs = append(errs, fmt.Errorf("config error: 'scraper.max-pages' must be positive"))
	}

	return errors.Join(errs...)
}
