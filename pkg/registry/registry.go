// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"brokerage-insights/internal/common/validation"
)

var (
	ErrInvalidRegistry = errors.New("INVALID_REGISTRY")
	ErrDuplicateName   = errors.New("DUPLICATE_TEMPLATE")
	ErrNotFound        = errors.New("TEMPLATE_NOT_FOUND")
)

var schema = validation.MustCompile("template-registry", documentSchema)

// New returns an empty registry.
func New() *TemplateRegistry {
	return &TemplateRegistry{
		Version:     "1.0.0",
		LastUpdated: time.Now().UTC().Format(time.RFC3339),
		Templates:   []TemplateEntry{},
	}
}

// LoadRegistry reads and validates a registry file.
func LoadRegistry(path string) (*TemplateRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse validates raw JSON against the registry schema and decodes it.
func Parse(data []byte) (*TemplateRegistry, error) {
	result, err := schema.ValidateBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRegistry, err)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRegistry, err)
	}

	var reg TemplateRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRegistry, err)
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return &reg, nil
}

// Validate checks constraints the schema cannot express.
func (r *TemplateRegistry) Validate() error {
	seen := make(map[string]bool, len(r.Templates))
	for _, t := range r.Templates {
		if seen[t.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateName, t.Name)
		}
		seen[t.Name] = true
	}
	return nil
}

// Add appends an entry; names are unique.
func (r *TemplateRegistry) Add(entry TemplateEntry) error {
	for _, existing := range r.Templates {
		if existing.Name == entry.Name {
			return fmt.Errorf("%w: %s", ErrDuplicateName, entry.Name)
		}
	}
	r.Templates = append(r.Templates, entry)
	r.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	return nil
}

// Remove deletes the named entry.
func (r *TemplateRegistry) Remove(name string) error {
	for i, existing := range r.Templates {
		if existing.Name == name {
			r.Templates = append(r.Templates[:i], r.Templates[i+1:]...)
			r.LastUpdated = time.Now().UTC().Format(time.RFC3339)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Save validates and writes the registry, creating parent directories.
func Save(reg *TemplateRegistry, path string) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	if _, err := Parse(data); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}
