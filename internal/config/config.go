package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "QSYNTAX_"

// ProviderType identifies a remote completion provider.
type ProviderType string

const (
	ProviderGoogle ProviderType = "google"
	ProviderOpenAI ProviderType = "openai"
)

// Config holds application configuration.
type Config struct {
	// Provider selects the remote completion API.
	Provider ProviderType `yaml:"provider" koanf:"provider"`

	// Model is the remote model name.
	Model string `yaml:"model" koanf:"model"`

	// APIKey overrides the provider's conventional environment variable.
	APIKey string `yaml:"api_key,omitempty" koanf:"api_key"`

	// BaseURL overrides the provider endpoint (tests, proxies).
	BaseURL string `yaml:"base_url,omitempty" koanf:"base_url"`

	// MaxAttempts is the number of remote call attempts before giving up.
	MaxAttempts int `yaml:"max_attempts" koanf:"max_attempts"`

	// RetryDelay is the wait before the first retry.
	RetryDelay time.Duration `yaml:"retry_delay" koanf:"retry_delay"`

	// RetryFactor multiplies the delay after every retry.
	RetryFactor float64 `yaml:"retry_factor" koanf:"retry_factor"`

	// ContextTurns caps the conversation turns sent per request.
	ContextTurns int `yaml:"context_turns" koanf:"context_turns"`

	// CacheSize bounds the response cache.
	CacheSize int `yaml:"cache_size" koanf:"cache_size"`

	// CacheTTL is how long a cached response stays valid.
	CacheTTL time.Duration `yaml:"cache_ttl" koanf:"cache_ttl"`

	// FallbackDelay is how long surfaces wait before showing the overload fallback.
	FallbackDelay time.Duration `yaml:"fallback_delay" koanf:"fallback_delay"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `yaml:"db_max_open_conns,omitempty" koanf:"db_max_open_conns"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `yaml:"db_max_idle_conns,omitempty" koanf:"db_max_idle_conns"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" koanf:"log_level"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `yaml:"disabled_tools,omitempty" koanf:"disabled_tools"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Provider:      ProviderGoogle,
		Model:         "gemini-2.0-flash",
		MaxAttempts:   2,
		RetryDelay:    time.Second,
		RetryFactor:   1.2,
		ContextTurns:  20,
		CacheSize:     50,
		CacheTTL:      5 * time.Minute,
		FallbackDelay: time.Second,
		LogLevel:      "info",
	}
}

// Path returns the config file location inside baseDir.
func Path(baseDir string) string {
	return filepath.Join(baseDir, "config.yaml")
}

// Load loads configuration from baseDir/config.yaml, then overlays
// environment variable overrides (QSYNTAX_*).
// Returns the default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.qsyntax.
func Load(baseDir string) (*Config, error) {
	return loadFile(Path(baseDir))
}

func loadFile(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	// QSYNTAX_MAX_ATTEMPTS -> max_attempts, etc.
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	cfg.DisabledTools = dedupe(cfg.DisabledTools)
	return cfg, nil
}

// Save writes the configuration to baseDir/config.yaml.
func (c *Config) Save(baseDir string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return fmt.Errorf("creating %s: %w", baseDir, err)
	}
	if err := os.WriteFile(Path(baseDir), data, 0600); err != nil {
		return fmt.Errorf("writing config to %s: %w", Path(baseDir), err)
	}
	return nil
}

var validProviders = map[ProviderType]bool{
	ProviderGoogle: true,
	ProviderOpenAI: true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if !validProviders[c.Provider] {
		return fmt.Errorf("invalid provider %q: must be one of google, openai", c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1")
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry_delay must be non-negative")
	}
	if c.RetryFactor < 1 {
		return fmt.Errorf("retry_factor must be at least 1")
	}
	if c.ContextTurns < 1 {
		return fmt.Errorf("context_turns must be at least 1")
	}
	if c.CacheSize < 1 {
		return fmt.Errorf("cache_size must be at least 1")
	}
	return nil
}

// APIKeyEnvVar returns the conventional environment variable name for
// the API key of the given provider.
func APIKeyEnvVar(provider ProviderType) string {
	switch provider {
	case ProviderGoogle:
		return "GEMINI_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	default:
		return ""
	}
}

// ResolveAPIKey returns the configured key, falling back to the provider's
// environment variable.
func (c *Config) ResolveAPIKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	if name := APIKeyEnvVar(c.Provider); name != "" {
		return os.Getenv(name)
	}
	return ""
}

// dedupe trims whitespace and removes duplicates, keeping first occurrence.
func dedupe(in []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
