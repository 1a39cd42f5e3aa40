package rolepolicy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brokerage-insights/internal/models"
)

// ==========================
// ScopeFor
// ==========================

func TestScopeFor_KnownRoles(t *testing.T) {
	tests := []struct {
		role         models.Role
		column       string
		source       ScopeSource
		unrestricted bool
	}{
		{models.RoleAgent, ColumnUserID, ScopeIdentityID, false},
		{models.RoleBroker, ColumnDivision, ScopeTeamID, false},
		{models.RoleManagingBroker, ColumnDivision, ScopeTeamID, false},
		{models.RoleAdmin, "", ScopeNone, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			rule, err := ScopeFor(tt.role)
			require.NoError(t, err)
			assert.Equal(t, tt.column, rule.Column)
			assert.Equal(t, tt.source, rule.Source)
			assert.Equal(t, tt.unrestricted, rule.Unrestricted)
		})
	}
}

func TestScopeFor_UnknownRoleFailsClosed(t *testing.T) {
	for _, role := range []models.Role{models.RoleUnknown, "superuser", ""} {
		rule, err := ScopeFor(role)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnknownRole))
		assert.False(t, rule.Unrestricted)
		assert.Equal(t, ColumnUserID, rule.Column)
		assert.Equal(t, ScopeIdentityID, rule.Source)
	}
	assert.Equal(t, models.RoleAgent, EffectiveRole("superuser"))
	assert.Equal(t, models.RoleAdmin, EffectiveRole(models.RoleAdmin))
}

// ==========================
// Bind
// ==========================

func TestScopeRule_Bind(t *testing.T) {
	identity := models.Identity{ID: "4821", TeamScopeID: "77", Role: models.RoleBroker}

	agent, _ := ScopeFor(models.RoleAgent)
	params, err := agent.Bind(identity)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"4821"}, params)

	broker, _ := ScopeFor(models.RoleBroker)
	params, err = broker.Bind(identity)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"77"}, params)

	admin, _ := ScopeFor(models.RoleAdmin)
	params, err = admin.Bind(identity)
	require.NoError(t, err)
	assert.Empty(t, params)
	assert.Empty(t, admin.Predicate())
}

func TestScopeRule_BindTeamFallsBackToOwnID(t *testing.T) {
	rule, _ := ScopeFor(models.RoleManagingBroker)
	params, err := rule.Bind(models.Identity{ID: "15"})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"15"}, params)
	assert.Equal(t, "EQUITY_DIVISION_25_ID = $1", rule.Predicate())
}

func TestScopeRule_BindMissingValue(t *testing.T) {
	rule, _ := ScopeFor(models.RoleAgent)
	_, err := rule.Bind(models.Identity{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingScope))
}

// ==========================
// Permissions
// ==========================

func TestPermissionsFor(t *testing.T) {
	assert.False(t, PermissionsFor(models.RoleAgent).CanViewTeamData)
	assert.True(t, PermissionsFor(models.RoleBroker).CanViewTeamData)
	assert.False(t, PermissionsFor(models.RoleBroker).CanViewBranchAnalytics)
	assert.True(t, PermissionsFor(models.RoleManagingBroker).CanViewBranchAnalytics)
	assert.True(t, PermissionsFor(models.RoleAdmin).CanViewSystemData)
	assert.Equal(t, PermissionsFor(models.RoleAgent), PermissionsFor(models.RoleUnknown))
}
