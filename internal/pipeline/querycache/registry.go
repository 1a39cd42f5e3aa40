package querycache

import (
	"fmt"

	"brokerage-insights/internal/models"
	"brokerage-insights/internal/pipeline/rolepolicy"
	"brokerage-insights/pkg/registry"
)

// FromRegistry converts registry entries into templates. Scope and role
// consistency is checked when the templates are handed to NewMatcher.
func FromRegistry(reg *registry.TemplateRegistry) ([]Template, error) {
	if reg == nil {
		return nil, nil
	}
	out := make([]Template, 0, len(reg.Templates))
	for _, e := range reg.Templates {
		roles := make([]models.Role, 0, len(e.Roles))
		for _, r := range e.Roles {
			role := models.ParseRole(r)
			if !role.Valid() {
				return nil, fmt.Errorf("%w: %s: unknown role %q", ErrInvalidTemplate, e.Name, r)
			}
			roles = append(roles, role)
		}

		var scope rolepolicy.ScopeSource
		switch e.Scope {
		case registry.ScopeNone, "":
			scope = rolepolicy.ScopeNone
		case registry.ScopeIdentity:
			scope = rolepolicy.ScopeIdentityID
		case registry.ScopeTeam:
			scope = rolepolicy.ScopeTeamID
		default:
			return nil, fmt.Errorf("%w: %s: unknown scope %q", ErrInvalidTemplate, e.Name, e.Scope)
		}

		out = append(out, Template{
			Name:     e.Name,
			Intent:   models.IntentCategory(e.Intent),
			Triggers: append([]string(nil), e.Triggers...),
			Roles:    roles,
			SQL:      e.SQL,
			Scope:    scope,
		})
	}
	return out, nil
}

// LoadMatcher builds a matcher from the built-ins plus the registry at path.
// An empty path yields the built-ins only.
func LoadMatcher(path string) (*Matcher, error) {
	if path == "" {
		return NewMatcher()
	}
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return nil, fmt.Errorf("load template registry: %w", err)
	}
	extra, err := FromRegistry(reg)
	if err != nil {
		return nil, err
	}
	return NewMatcher(extra...)
}
