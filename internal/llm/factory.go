package llm

import (
	"context"
	"fmt"

	"github.com/hpungsan/qsyntax/internal/config"
)

// NewProvider builds the provider named by cfg. A missing API key is an
// error; callers that must stay usable can fall back to NewUnconfigured.
func NewProvider(cfg *config.Config) (Provider, error) {
	apiKey := cfg.ResolveAPIKey()
	if apiKey == "" {
		return nil, fmt.Errorf("no API key: set api_key in config or %s", config.APIKeyEnvVar(cfg.Provider))
	}

	switch cfg.Provider {
	case config.ProviderGoogle:
		return NewGeminiProvider(apiKey, cfg.Model, cfg.BaseURL), nil
	case config.ProviderOpenAI:
		return NewOpenAIProvider(apiKey, cfg.Model, cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", cfg.Provider)
	}
}

// Unconfigured answers every request with an API key error.
type Unconfigured struct {
	name   string
	envVar string
}

// NewUnconfigured returns a provider for running without credentials.
func NewUnconfigured(cfg *config.Config) *Unconfigured {
	return &Unconfigured{name: string(cfg.Provider), envVar: config.APIKeyEnvVar(cfg.Provider)}
}

func (u *Unconfigured) Name() string { return u.name }

func (u *Unconfigured) Generate(context.Context, Request) (*Response, error) {
	return nil, &APIError{
		StatusCode: 401,
		Message:    fmt.Sprintf("API key not set (configure api_key or %s)", u.envVar),
	}
}
