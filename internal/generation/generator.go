// Package generation holds the text-generation backends used for query synthesis.
package generation

import (
	"context"
	"errors"
	"fmt"

	"brokerage-insights/internal/common/config"
	"brokerage-insights/internal/common/logger"
)

var (
	ErrMissingCredential   = errors.New("MISSING_CREDENTIAL")
	ErrUnsupportedProvider = errors.New("UNSUPPORTED_PROVIDER")
	ErrEmptyCompletion     = errors.New("EMPTY_COMPLETION")
	ErrMalformedResponse   = errors.New("MALFORMED_RESPONSE")
)

// Generator completes a single prompt.
type Generator interface {
	Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
	Provider() string
}

// Error carries the retry classification of a failed completion.
// Network failures and non-2xx statuses are transient; everything else is permanent.
type Error struct {
	Provider   string
	StatusCode int
	Transient  bool
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func transient(provider string, status int, err error) *Error {
	return &Error{Provider: provider, StatusCode: status, Transient: true, Err: err}
}

func permanent(provider string, err error) *Error {
	return &Error{Provider: provider, Transient: false, Err: err}
}

// IsTransient reports whether err may succeed on another attempt.
// Unclassified errors are treated as transient network faults.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var genErr *Error
	if errors.As(err, &genErr) {
		return genErr.Transient
	}
	return !errors.Is(err, context.Canceled)
}

// New builds the configured backend. A missing API key yields ErrMissingCredential
// so the caller can run without synthesis.
func New(cfg config.GenerationConfig, log logger.Logger) (Generator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingCredential, cfg.Provider)
	}
	switch cfg.Provider {
	case config.ProviderOpenRouter, "":
		return NewOpenRouter(cfg, log), nil
	case config.ProviderOpenAI:
		return NewOpenAI(cfg), nil
	case config.ProviderAnthropic:
		return NewAnthropic(cfg), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.Provider)
}
