package conversion

import (
	"context"
	"time"
)

// Service is the contract the pipeline consumes from the external
// conversion provider.
type Service interface {
	// Submit asks the provider to convert the document at sourceURL and
	// returns the provider-assigned conversion identifier.
	Submit(ctx context.Context, sourceURL string) (string, error)
	// Ready reports whether a conversion has completed. A pending
	// conversion is a normal outcome, not an error.
	Ready(ctx context.Context, conversionID string) (bool, error)
	// ViewURL creates a short-lived signed view session for a completed
	// conversion and returns its URL.
	ViewURL(ctx context.Context, conversionID string, ttl time.Duration) (string, error)
}

// TokenSource supplies a bearer token for provider calls. Implementations
// refresh expired tokens before returning.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource returning a fixed token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}
