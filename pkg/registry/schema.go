// pkg/registry/schema.go
package registry

// TemplateRegistry is the on-disk list of extra cached questions,
// loaded after the built-in templates.
type TemplateRegistry struct {
	Version     string          `json:"version"`
	LastUpdated string          `json:"lastUpdated"`
	Templates   []TemplateEntry `json:"templates"`
}

type TemplateEntry struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Intent      string   `json:"intent"`
	Triggers    []string `json:"triggers"`
	Roles       []string `json:"roles"`
	Scope       string   `json:"scope"`
	SQL         string   `json:"sql"`
	Tags        []string `json:"tags,omitempty"`
}

// Scope values accepted in the registry file.
const (
	ScopeNone     = "none"
	ScopeIdentity = "identity.id"
	ScopeTeam     = "identity.team_scope_id"
)

const documentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["version", "templates"],
  "properties": {
    "version": {"type": "string", "minLength": 1},
    "lastUpdated": {"type": "string"},
    "templates": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "intent", "triggers", "roles", "scope", "sql"],
        "additionalProperties": false,
        "properties": {
          "name": {"type": "string", "pattern": "^[a-z0-9_]+$"},
          "description": {"type": "string"},
          "intent": {"enum": ["income", "deal_count", "ranking", "period", "average", "headcount", "generic"]},
          "triggers": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 2}},
          "roles": {"type": "array", "minItems": 1, "items": {"enum": ["agent", "broker", "managing_broker", "admin"]}},
          "scope": {"enum": ["none", "identity.id", "identity.team_scope_id"]},
          "sql": {"type": "string", "minLength": 8},
          "tags": {"type": "array", "items": {"type": "string"}}
        }
      }
    }
  }
}`
