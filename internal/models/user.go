package models

import "strings"

// Role is the closed set of caller roles a query can be scoped for.
type Role string

const (
	RoleAgent          Role = "agent"
	RoleBroker         Role = "broker"
	RoleManagingBroker Role = "managing_broker"
	RoleAdmin          Role = "admin"
	RoleUnknown        Role = "unknown"
)

// Roles lists every known role in policy order.
var Roles = []Role{RoleAgent, RoleBroker, RoleManagingBroker, RoleAdmin}

func (r Role) Valid() bool {
	switch r {
	case RoleAgent, RoleBroker, RoleManagingBroker, RoleAdmin:
		return true
	}
	return false
}

// ParseRole accepts the canonical names plus the directory spellings
// ("managingbroker", "designated broker"); everything else is RoleUnknown.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "agent":
		return RoleAgent
	case "broker", "designated_broker", "designated broker":
		return RoleBroker
	case "managing_broker", "managingbroker", "managing broker":
		return RoleManagingBroker
	case "admin":
		return RoleAdmin
	}
	return RoleUnknown
}

// Directory user-type codes.
const (
	UserTypeAdmin            = 1
	UserTypeManagingBroker   = 12
	UserTypeAgent            = 14
	UserTypeBroker           = 15
	UserTypeDesignatedBroker = 16
)

func RoleFromUserType(code int) Role {
	switch code {
	case UserTypeAdmin:
		return RoleAdmin
	case UserTypeManagingBroker:
		return RoleManagingBroker
	case UserTypeAgent:
		return RoleAgent
	case UserTypeBroker, UserTypeDesignatedBroker:
		return RoleBroker
	}
	return RoleUnknown
}

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Identity is the caller a single request runs on behalf of.
type Identity struct {
	ID          string `json:"id" db:"user_id"`
	DisplayName string `json:"displayName"`
	FirstName   string `json:"firstName" db:"f_name"`
	LastName    string `json:"lastName" db:"l_name"`
	Role        Role   `json:"role"`
	Status      Status `json:"status"`
	TeamScopeID string `json:"teamScopeId,omitempty"`
}

// GreetingName is the first word of the display name, or empty.
func (i Identity) GreetingName() string {
	if i.FirstName != "" {
		return i.FirstName
	}
	if fields := strings.Fields(i.DisplayName); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

// TeamScope is the id broker-level queries are restricted by.
// The directory stores a broker's division under the broker's own user id.
func (i Identity) TeamScope() string {
	if i.TeamScopeID != "" {
		return i.TeamScopeID
	}
	return i.ID
}

func (i Identity) IsActive() bool {
	return i.Status == StatusActive
}
