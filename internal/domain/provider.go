package domain

import (
	"fmt"
	"strings"
)

// ProviderDescriptor is the read-only configuration for one interchangeable
// backend. Lower priority is tried first. Dispatch never mutates it.
type ProviderDescriptor struct {
	ID       string
	Name     string
	Kind     Kind
	Priority int
	UnitCost int64
	Enabled  bool

	// Connection parameters for the vendor endpoint.
	Endpoint string
	APIKey   string
	Sender   string
}

func (p *ProviderDescriptor) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: provider descriptor is required", ErrValidation)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: provider name is required", ErrValidation)
	}
	if !p.Kind.IsValid() {
		return fmt.Errorf("%w: invalid provider kind %q", ErrValidation, p.Kind)
	}
	if strings.TrimSpace(p.Endpoint) == "" {
		return fmt.Errorf("%w: provider endpoint is required", ErrValidation)
	}
	if p.UnitCost < 0 {
		return fmt.Errorf("%w: unit cost must not be negative (got %d)", ErrValidation, p.UnitCost)
	}
	return nil
}
