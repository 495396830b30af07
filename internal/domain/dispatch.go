package domain

import (
	"fmt"
	"strings"
)

// Kind identifies the operation a dispatch performs.
type Kind string

const (
	KindNotify   Kind = "NOTIFY"
	KindWithdraw Kind = "WITHDRAW"
)

func (k Kind) String() string { return string(k) }

func (k Kind) IsValid() bool {
	switch k {
	case KindNotify, KindWithdraw:
		return true
	}
	return false
}

func ParseKindFromString(s string) (Kind, error) {
	k := Kind(strings.ToUpper(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", fmt.Errorf("%w: invalid kind %q", ErrValidation, s)
	}
	return k, nil
}

// DispatchRequest is the immutable value describing one caller request.
// A notify request carries a message type, template params and a budget
// scope; a withdraw request carries an account, phone, amount and currency.
type DispatchRequest struct {
	ID              string
	CorrelationID   string
	Kind            Kind
	ClientReference *string

	// Notification fields.
	Scope       string
	Recipient   string
	MessageType string
	Params      map[string]string

	// Withdrawal fields.
	AccountID string
	Phone     string
	Amount    int64
	Currency  string
}

func (r *DispatchRequest) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: dispatch request is required", ErrValidation)
	}
	if !r.Kind.IsValid() {
		return fmt.Errorf("%w: invalid kind %q", ErrValidation, r.Kind)
	}

	switch r.Kind {
	case KindNotify:
		if strings.TrimSpace(r.Scope) == "" {
			return fmt.Errorf("%w: scope is required", ErrValidation)
		}
		if strings.TrimSpace(r.Recipient) == "" {
			return fmt.Errorf("%w: recipient is required", ErrValidation)
		}
		if strings.TrimSpace(r.MessageType) == "" {
			return fmt.Errorf("%w: message type is required", ErrValidation)
		}
	case KindWithdraw:
		if strings.TrimSpace(r.AccountID) == "" {
			return fmt.Errorf("%w: account id is required", ErrValidation)
		}
		if strings.TrimSpace(r.Phone) == "" {
			return fmt.Errorf("%w: phone is required", ErrValidation)
		}
		if r.Amount <= 0 {
			return fmt.Errorf("%w: amount must be positive (got %d)", ErrValidation, r.Amount)
		}
		if strings.TrimSpace(r.Currency) == "" {
			return fmt.Errorf("%w: currency is required", ErrValidation)
		}
	}

	if r.ClientReference != nil && strings.TrimSpace(*r.ClientReference) == "" {
		return fmt.Errorf("%w: client reference must not be blank", ErrValidation)
	}

	return nil
}
