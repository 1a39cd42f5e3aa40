// Package synthesizer turns uncached questions into role-scoped queries via a text generator.
package synthesizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"brokerage-insights/internal/common/config"
	apperrors "brokerage-insights/internal/common/errors"
	"brokerage-insights/internal/common/logger"
	"brokerage-insights/internal/common/metrics"
	"brokerage-insights/internal/generation"
	"brokerage-insights/internal/models"
	"brokerage-insights/internal/pipeline/rolepolicy"
)

const scopePlaceholder = "$1"

var (
	ErrEmptyQuery          = errors.New("EMPTY_QUERY")
	ErrMissingScopeBinding = errors.New("MISSING_SCOPE_BINDING")
)

// Config tunes generation and retry behaviour.
type Config struct {
	AssistantName         string
	MaxTokens             int
	Temperature           float64
	MaxAttempts           int
	Backoff               time.Duration
	AttemptTimeout        time.Duration
	RequireScopeParameter bool
}

// ConfigFrom maps the generation section onto synthesizer settings.
func ConfigFrom(g config.GenerationConfig, assistantName string) Config {
	return Config{
		AssistantName:         assistantName,
		MaxTokens:             g.MaxTokens,
		Temperature:           g.Temperature,
		MaxAttempts:           g.MaxAttempts,
		Backoff:               config.GetDuration(g.Backoff),
		AttemptTimeout:        config.GetDuration(g.Timeout),
		RequireScopeParameter: g.ScopeParameterRequired(),
	}
}

type Synthesizer struct {
	config    Config
	generator generation.Generator
	logger    logger.Logger
}

// New accepts a nil generator; Synthesize then fails with GENERATOR_NOT_CONFIGURED.
func New(cfg Config, generator generation.Generator, log logger.Logger) *Synthesizer {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.AssistantName == "" {
		cfg.AssistantName = "Jen"
	}
	return &Synthesizer{
		config:    cfg,
		generator: generator,
		logger:    log.Named("synthesizer"),
	}
}

// Configured reports whether a generator is available.
func (s *Synthesizer) Configured() bool {
	return s != nil && s.generator != nil
}

// Synthesize produces a query bound to the identity's scope.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, identity models.Identity) (*models.SynthesizedQuery, error) {
	if !s.Configured() {
		return nil, apperrors.NewGeneratorNotConfiguredError("")
	}

	rule, err := rolepolicy.ScopeFor(identity.Role)
	if err != nil {
		s.logger.Warn("Unknown role, applying agent scope", map[string]interface{}{
			"role":       string(identity.Role),
			"identityId": identity.ID,
		})
	}
	params, err := rule.Bind(identity)
	if err != nil {
		return nil, apperrors.NewSynthesisError(0, false, err)
	}

	prompt := buildPrompt(s.config.AssistantName, question, identity, rule)
	raw, attempts, err := s.generate(ctx, prompt)
	if err != nil {
		s.logger.Error("Query synthesis failed", map[string]interface{}{
			"provider": s.generator.Provider(),
			"attempts": attempts,
			"error":    err,
		})
		return nil, apperrors.NewSynthesisError(attempts, generation.IsTransient(err), err)
	}

	text := Sanitize(raw)
	if text == "" {
		return nil, apperrors.NewSynthesisError(attempts, false, ErrEmptyQuery)
	}
	if s.config.RequireScopeParameter && !rule.Unrestricted && !strings.Contains(text, scopePlaceholder) {
		s.logger.Warn("Synthesized query dropped the scope parameter", map[string]interface{}{
			"role":  string(rule.Role),
			"query": text,
		})
		return nil, apperrors.NewSynthesisError(attempts, false,
			fmt.Errorf("%w: expected %s", ErrMissingScopeBinding, rule.Predicate()))
	}

	s.logger.Debug("Query synthesized", map[string]interface{}{
		"provider": s.generator.Provider(),
		"attempts": attempts,
		"role":     string(rule.Role),
		"query":    text,
	})
	return &models.SynthesizedQuery{Text: text, Params: params}, nil
}

// generate calls the generator up to MaxAttempts times with a fixed pause
// between transient failures. Permanent failures stop immediately.
func (s *Synthesizer) generate(ctx context.Context, prompt string) (string, int, error) {
	provider := s.generator.Provider()
	var lastErr error

	for attempt := 1; attempt <= s.config.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := wait(ctx, s.config.Backoff); err != nil {
				return "", attempt - 1, lastErr
			}
		}

		out, err := s.attempt(ctx, prompt)
		if err == nil {
			metrics.SynthesisAttempts.WithLabelValues(provider, "success").Inc()
			return out, attempt, nil
		}
		lastErr = err

		if !generation.IsTransient(err) {
			metrics.SynthesisAttempts.WithLabelValues(provider, "permanent").Inc()
			return "", attempt, err
		}
		metrics.SynthesisAttempts.WithLabelValues(provider, "transient").Inc()

		if ctx.Err() != nil {
			return "", attempt, lastErr
		}
		if attempt < s.config.MaxAttempts {
			s.logger.Warn("Generation attempt failed, retrying", map[string]interface{}{
				"provider": provider,
				"attempt":  attempt,
				"error":    err,
			})
		}
	}
	return "", s.config.MaxAttempts, lastErr
}

func (s *Synthesizer) attempt(ctx context.Context, prompt string) (string, error) {
	if s.config.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.AttemptTimeout)
		defer cancel()
	}
	return s.generator.Complete(ctx, prompt, s.config.MaxTokens, s.config.Temperature)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sanitize strips code fences, trims whitespace and terminates the statement.
func Sanitize(raw string) string {
	out := strings.ReplaceAll(raw, "```sql", "")
	out = strings.ReplaceAll(out, "```SQL", "")
	out = strings.ReplaceAll(out, "```", "")
	out = strings.TrimSpace(out)
	if out == "" {
		return ""
	}
	if !strings.HasSuffix(out, ";") {
		out += ";"
	}
	return out
}
