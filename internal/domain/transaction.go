package domain

import (
	"fmt"
	"strings"
	"time"
)

// TransactionStatus is the lifecycle state of a withdrawal.
type TransactionStatus string

const (
	TxPending    TransactionStatus = "PENDING"
	TxProcessing TransactionStatus = "PROCESSING"
	TxCompleted  TransactionStatus = "COMPLETED"
	TxFailed     TransactionStatus = "FAILED"
)

func (s TransactionStatus) String() string { return string(s) }

func (s TransactionStatus) IsValid() bool {
	switch s {
	case TxPending, TxProcessing, TxCompleted, TxFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition may leave this state.
func (s TransactionStatus) IsTerminal() bool {
	return s == TxCompleted || s == TxFailed
}

// CanTransitionTo enforces the withdrawal state machine:
// PENDING -> PROCESSING | FAILED, PROCESSING -> COMPLETED | FAILED.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	switch s {
	case TxPending:
		return next == TxProcessing || next == TxFailed
	case TxProcessing:
		return next == TxCompleted || next == TxFailed
	}
	return false
}

func ParseTransactionStatusFromString(v string) (TransactionStatus, error) {
	s := TransactionStatus(strings.ToUpper(strings.TrimSpace(v)))
	if !s.IsValid() {
		return "", fmt.Errorf("%w: invalid transaction status %q", ErrValidation, v)
	}
	return s, nil
}

// Transaction is the account-visible withdrawal record. It is created at
// admission so the caller always gets a reference, and reaches a terminal
// state asynchronously through settlement.
type Transaction struct {
	ID              string
	AccountID       string
	Phone           string
	Amount          int64
	Fee             int64
	Currency        string
	Status          TransactionStatus
	ExternalRef     string
	ClientReference *string
	Notes           *string
	CorrelationID   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
