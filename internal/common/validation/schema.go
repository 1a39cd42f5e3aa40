package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Schema is a compiled JSON schema, safe for concurrent use.
type Schema struct {
	name   string
	schema *gojsonschema.Schema
}

// Compile parses a JSON schema document once at startup.
func Compile(name, schemaJSON string) (*Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return &Schema{name: name, schema: s}, nil
}

// MustCompile is Compile for package-level schemas.
func MustCompile(name, schemaJSON string) *Schema {
	s, err := Compile(name, schemaJSON)
	if err != nil {
		panic(err)
	}
	return s
}

// ValidateBytes checks a raw JSON document.
func (s *Schema) ValidateBytes(doc []byte) (*ValidationResult, error) {
	return s.validate(gojsonschema.NewBytesLoader(doc))
}

// ValidateValue checks an already decoded Go value.
func (s *Schema) ValidateValue(doc interface{}) (*ValidationResult, error) {
	return s.validate(gojsonschema.NewGoLoader(doc))
}

func (s *Schema) validate(loader gojsonschema.JSONLoader) (*ValidationResult, error) {
	result, err := s.schema.Validate(loader)
	if err != nil {
		return nil, fmt.Errorf("validate %s: %w", s.name, err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return out, nil
}

// Err folds an invalid result into a single error.
func (r *ValidationResult) Err() error {
	if r == nil || r.Valid {
		return nil
	}
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return fmt.Errorf("validation failed: %s", strings.Join(msgs, "; "))
}
