// Package rolepolicy maps caller roles to the restriction every query must carry.
package rolepolicy

import (
	"errors"
	"fmt"

	"brokerage-insights/internal/models"
)

var (
	ErrUnknownRole  = errors.New("UNKNOWN_ROLE")
	ErrMissingScope = errors.New("MISSING_SCOPE_VALUE")
)

// ScopeSource names the identity field a scoped query is bound to.
type ScopeSource string

const (
	ScopeNone       ScopeSource = ""
	ScopeIdentityID ScopeSource = "identity.id"
	ScopeTeamID     ScopeSource = "identity.team_scope_id"
)

const (
	ColumnUserID   = "USER_ID"
	ColumnDivision = "EQUITY_DIVISION_25_ID"
)

// ScopeRule is the column restriction applied to a role's queries.
type ScopeRule struct {
	Role         models.Role
	Column       string
	Source       ScopeSource
	Unrestricted bool
}

var rules = map[models.Role]ScopeRule{
	models.RoleAgent:          {Role: models.RoleAgent, Column: ColumnUserID, Source: ScopeIdentityID},
	models.RoleBroker:         {Role: models.RoleBroker, Column: ColumnDivision, Source: ScopeTeamID},
	models.RoleManagingBroker: {Role: models.RoleManagingBroker, Column: ColumnDivision, Source: ScopeTeamID},
	models.RoleAdmin:          {Role: models.RoleAdmin, Unrestricted: true},
}

// ScopeFor is total over the role enum. Any other value yields the agent rule
// together with ErrUnknownRole, so callers that ignore the error stay restricted.
func ScopeFor(role models.Role) (ScopeRule, error) {
	if rule, ok := rules[role]; ok {
		return rule, nil
	}
	return rules[models.RoleAgent], fmt.Errorf("%w: %q", ErrUnknownRole, role)
}

// EffectiveRole is the role whose rules actually apply.
func EffectiveRole(role models.Role) models.Role {
	if _, ok := rules[role]; ok {
		return role
	}
	return models.RoleAgent
}

// Value returns the identity field the rule binds.
func (r ScopeRule) Value(identity models.Identity) (string, error) {
	return SourceValue(r.Source, identity)
}

// Bind returns the positional parameters for a query under this rule.
func (r ScopeRule) Bind(identity models.Identity) ([]interface{}, error) {
	if r.Unrestricted {
		return []interface{}{}, nil
	}
	v, err := r.Value(identity)
	if err != nil {
		return nil, err
	}
	return []interface{}{v}, nil
}

// Predicate renders the restriction for prompts and logs, e.g. "USER_ID = $1".
func (r ScopeRule) Predicate() string {
	if r.Unrestricted {
		return ""
	}
	return r.Column + " = $1"
}

// SourceValue resolves a scope source against an identity.
func SourceValue(src ScopeSource, identity models.Identity) (string, error) {
	var v string
	switch src {
	case ScopeIdentityID:
		v = identity.ID
	case ScopeTeamID:
		v = identity.TeamScope()
	case ScopeNone:
		return "", nil
	default:
		return "", fmt.Errorf("%w: unknown source %q", ErrMissingScope, src)
	}
	if v == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrMissingScope, src)
	}
	return v, nil
}

// Permissions is the capability set granted to a role.
type Permissions struct {
	CanViewOwnData           bool `json:"canViewOwnData"`
	CanViewTeamData          bool `json:"canViewTeamData"`
	CanViewBranchAnalytics   bool `json:"canViewBranchAnalytics"`
	CanManageAgents          bool `json:"canManageAgents"`
	CanViewCommissionReports bool `json:"canViewCommissionReports"`
	CanViewSystemData        bool `json:"canViewSystemData"`
}

// PermissionsFor returns the capability set; unknown roles get agent permissions.
func PermissionsFor(role models.Role) Permissions {
	switch EffectiveRole(role) {
	case models.RoleAdmin:
		return Permissions{true, true, true, true, true, true}
	case models.RoleManagingBroker:
		return Permissions{CanViewOwnData: true, CanViewTeamData: true, CanViewBranchAnalytics: true, CanManageAgents: true, CanViewCommissionReports: true}
	case models.RoleBroker:
		return Permissions{CanViewOwnData: true, CanViewTeamData: true, CanManageAgents: true, CanViewCommissionReports: true}
	default:
		return Permissions{CanViewOwnData: true, CanViewCommissionReports: true}
	}
}
