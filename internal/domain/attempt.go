package domain

import (
	"fmt"
	"strings"
	"time"
)

// AttemptOutcome is the result of one provider try.
type AttemptOutcome string

const (
	AttemptSent   AttemptOutcome = "SENT"
	AttemptFailed AttemptOutcome = "FAILED"
)

func (o AttemptOutcome) String() string { return string(o) }

func (o AttemptOutcome) IsValid() bool {
	switch o {
	case AttemptSent, AttemptFailed:
		return true
	}
	return false
}

func ParseAttemptOutcomeFromString(s string) (AttemptOutcome, error) {
	o := AttemptOutcome(strings.ToUpper(strings.TrimSpace(s)))
	if !o.IsValid() {
		return "", fmt.Errorf("%w: invalid attempt outcome %q", ErrValidation, s)
	}
	return o, nil
}

// AttemptRecord is the append-only audit row for one provider try within
// one dispatch. Exactly one row per try, failed tries included.
type AttemptRecord struct {
	ID                string
	RequestID         string
	CorrelationID     string
	Kind              Kind
	ProviderID        string
	ProviderName      string
	Outcome           AttemptOutcome
	Cost              int64
	ProviderMessageID *string
	StatusCode        *int
	Error             *string
	CreatedAt         time.Time
}
