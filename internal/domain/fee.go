package domain

import (
	"fmt"
	"strings"
	"time"
)

// FeeRule describes the cost of a financial operation: a basis-point
// percentage plus a flat amount, clamped to [Min, Max]. Zero Min/Max means
// the corresponding clamp is not applied. Looked up by (operation, currency).
type FeeRule struct {
	Operation  string
	Currency   string
	PercentBPS int64
	Flat       int64
	Min        int64
	Max        int64
	UpdatedAt  time.Time
}

func (r *FeeRule) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: fee rule is required", ErrValidation)
	}
	if strings.TrimSpace(r.Operation) == "" {
		return fmt.Errorf("%w: fee rule operation is required", ErrValidation)
	}
	if strings.TrimSpace(r.Currency) == "" {
		return fmt.Errorf("%w: fee rule currency is required", ErrValidation)
	}
	if r.PercentBPS < 0 || r.Flat < 0 || r.Min < 0 || r.Max < 0 {
		return fmt.Errorf("%w: fee rule values must not be negative", ErrValidation)
	}
	if r.Min > 0 && r.Max > 0 && r.Min > r.Max {
		return fmt.Errorf("%w: fee rule min %d exceeds max %d", ErrValidation, r.Min, r.Max)
	}
	return nil
}
