package llm

import "context"

// Provider is a remote completion API.
type Provider interface {
	// Generate sends one request. It does not retry.
	Generate(ctx context.Context, req Request) (*Response, error)
	// Name returns the name of this provider.
	Name() string
}
