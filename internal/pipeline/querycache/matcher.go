// Package querycache answers common questions from a fixed table of parametrized queries.
package querycache

import (
	"errors"
	"fmt"
	"strings"

	"brokerage-insights/internal/common/metrics"
	"brokerage-insights/internal/models"
	"brokerage-insights/internal/pipeline/rolepolicy"
)

var ErrInvalidTemplate = errors.New("INVALID_TEMPLATE")

// Template is a cached query: trigger phrases, eligible roles and SQL with $1 for the scope value.
type Template struct {
	Name     string
	Intent   models.IntentCategory
	Triggers []string
	Roles    []models.Role
	SQL      string
	Scope    rolepolicy.ScopeSource
}

// Bind returns the parameters in placeholder order.
func (t Template) Bind(identity models.Identity) ([]interface{}, error) {
	if t.Scope == rolepolicy.ScopeNone {
		return []interface{}{}, nil
	}
	v, err := rolepolicy.SourceValue(t.Scope, identity)
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", t.Name, err)
	}
	return []interface{}{v}, nil
}

func (t Template) appliesTo(role models.Role) bool {
	for _, r := range t.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (t Template) triggeredBy(normalized string) bool {
	for _, phrase := range t.Triggers {
		if strings.Contains(normalized, phrase) {
			return true
		}
	}
	return false
}

// validate checks a template carries the restriction its roles demand.
func (t Template) validate() error {
	if t.Name == "" || strings.TrimSpace(t.SQL) == "" {
		return fmt.Errorf("%w: name and sql are required", ErrInvalidTemplate)
	}
	if len(t.Triggers) == 0 || len(t.Roles) == 0 {
		return fmt.Errorf("%w: %s needs triggers and roles", ErrInvalidTemplate, t.Name)
	}
	for _, role := range t.Roles {
		rule, err := rolepolicy.ScopeFor(role)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidTemplate, t.Name, err)
		}
		if rule.Source != t.Scope {
			return fmt.Errorf("%w: %s binds %q but role %s requires %q", ErrInvalidTemplate, t.Name, t.Scope, role, rule.Source)
		}
	}
	hasParam := strings.Contains(t.SQL, "$1")
	if t.Scope != rolepolicy.ScopeNone && !hasParam {
		return fmt.Errorf("%w: %s must reference $1", ErrInvalidTemplate, t.Name)
	}
	if t.Scope == rolepolicy.ScopeNone && hasParam {
		return fmt.Errorf("%w: %s has a placeholder but no scope", ErrInvalidTemplate, t.Name)
	}
	return nil
}

// Matcher is immutable after construction and safe for concurrent use.
type Matcher struct {
	templates []Template
}

// NewMatcher loads the built-in table followed by extra templates, in order.
func NewMatcher(extra ...Template) (*Matcher, error) {
	all := append(builtins(), extra...)
	seen := make(map[string]bool, len(all))
	for i := range all {
		t := &all[i]
		triggers := make([]string, len(t.Triggers))
		for j, phrase := range t.Triggers {
			triggers[j] = normalize(phrase)
		}
		t.Triggers = triggers
		if err := t.validate(); err != nil {
			return nil, err
		}
		if seen[t.Name] {
			return nil, fmt.Errorf("%w: duplicate name %s", ErrInvalidTemplate, t.Name)
		}
		seen[t.Name] = true
	}
	return &Matcher{templates: all}, nil
}

// Match returns the first template whose trigger appears in the question
// and whose roles include role. Unknown roles match as agents.
func (m *Matcher) Match(question string, role models.Role) (Template, bool) {
	effective := rolepolicy.EffectiveRole(role)
	q := normalize(question)
	if q == "" {
		return Template{}, false
	}
	for _, t := range m.templates {
		if t.appliesTo(effective) && t.triggeredBy(q) {
			metrics.CacheLookups.WithLabelValues("hit", string(effective)).Inc()
			return t, true
		}
	}
	metrics.CacheLookups.WithLabelValues("miss", string(effective)).Inc()
	return Template{}, false
}

// Templates returns a copy of the table in match order.
func (m *Matcher) Templates() []Template {
	out := make([]Template, len(m.templates))
	copy(out, m.templates)
	return out
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
