// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

func LoadRegistry(path string) (*RevisionRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*RevisionRegistry, error) {
	var reg RevisionRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse revision registry: %w", err)
	}
	ids := make(map[string]bool, len(reg.Revisions))
	for _, rev := range reg.Revisions {
		if rev.ID == "" {
			return nil, fmt.Errorf("revision without id")
		}
		if ids[rev.ID] {
			return nil, fmt.Errorf("duplicate revision %q", rev.ID)
		}
		ids[rev.ID] = true
	}
	return &reg, nil
}

// Save writes the registry back with a fresh lastUpdated stamp.
func Save(reg *RevisionRegistry, path string) error {
	reg.LastUpdated = time.Now().UTC().Format("2006-01-02")
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode revision registry: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// Find returns the revision with the given id. "default" resolves to the
// registry's default revision.
func (r *RevisionRegistry) Find(id string) (Revision, bool) {
	if id == "default" {
		id = r.Default
	}
	for _, rev := range r.Revisions {
		if rev.ID == id {
			return rev, true
		}
	}
	return Revision{}, false
}

// Validate checks every revision and that the default exists.
func (r *RevisionRegistry) Validate() error {
	if len(r.Revisions) == 0 {
		return fmt.Errorf("registry contains no revisions")
	}
	if r.Default != "" {
		if _, ok := r.Find(r.Default); !ok {
			return fmt.Errorf("default revision %q not found", r.Default)
		}
	}
	for _, rev := range r.Revisions {
		if err := rev.Validate(); err != nil {
			return fmt.Errorf("revision %s: %w", rev.ID, err)
		}
	}
	return nil
}

// Validate checks the step graph and field lists of one revision.
func (rev Revision) Validate() error {
	if len(rev.Steps) < 2 {
		return fmt.Errorf("needs at least two steps")
	}
	names := make(map[string]bool, len(rev.Steps))
	for _, s := range rev.Steps {
		if s.Name == "" {
			return fmt.Errorf("step without name")
		}
		if names[s.Name] {
			return fmt.Errorf("duplicate step %q", s.Name)
		}
		names[s.Name] = true
	}
	for _, s := range rev.Steps {
		if s.Next != "" && !names[s.Next] {
			return fmt.Errorf("step %q targets unknown step %q", s.Name, s.Next)
		}
	}

	switch rev.TransitionMode {
	case "adjacent", "explicit":
	default:
		return fmt.Errorf("unknown transition mode %q", rev.TransitionMode)
	}
	switch rev.GuardMode {
	case "pre_call", "post_success":
	default:
		return fmt.Errorf("unknown guard mode %q", rev.GuardMode)
	}

	for label, name := range map[string]string{
		"review":  rev.ReviewStep,
		"payment": rev.PaymentStep,
		"date":    rev.DateStep,
	} {
		if name != "" && !names[name] {
			return fmt.Errorf("%s step %q is not a step", label, name)
		}
	}
	if rev.ReviewStep == "" {
		return fmt.Errorf("review step is required")
	}
	if rev.ReviewJumpsToPayment && rev.PaymentStep == "" {
		return fmt.Errorf("review jump needs a payment step")
	}

	fields := make(map[string]bool, len(rev.Fields))
	for _, f := range rev.Fields {
		fields[f] = true
	}
	for _, f := range rev.RequiredFields {
		if !fields[f] {
			return fmt.Errorf("required field %q is not a field", f)
		}
	}
	if rev.TimeoutMillis < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	return nil
}
