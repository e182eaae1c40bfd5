package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies provider failures. Every kind except configuration is
// recoverable at the aggregation level: the provider's summary records it
// and the request proceeds with the remaining providers.
type ErrorKind string

const (
	ErrKindConfiguration ErrorKind = "configuration" // missing credential, invalid feed URL
	ErrKindUpstream      ErrorKind = "upstream"      // non-2xx or malformed body
	ErrKindTimeout       ErrorKind = "timeout"
	ErrKindParse         ErrorKind = "parse"
)

// ProviderError is a typed per-provider failure.
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("provider %s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewProviderError wraps err as a typed provider failure.
func NewProviderError(provider string, kind ErrorKind, message string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Message: message, Err: err}
}

// KindOf extracts the error kind, defaulting to upstream for untyped errors.
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ErrKindUpstream
}

// Request-level failures, raised only when zero providers succeeded.
var (
	// ErrMissingCredentials indicates a required credential (e.g. the
	// structured API key) is absent and no other provider produced data.
	ErrMissingCredentials = errors.New("required provider credentials are missing")

	// ErrAllProvidersFailed indicates every enabled provider's fetch failed.
	ErrAllProvidersFailed = errors.New("all providers failed")
)
