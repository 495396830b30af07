package domain

import "errors"

var (
	// ErrValidation marks caller input that fails domain validation.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks a missing entity.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks an operation refused because of current entity state.
	ErrConflict = errors.New("conflict")

	// ErrBudgetExceeded is returned when a notification would drive a budget
	// counter past its limit. No side effect has occurred.
	ErrBudgetExceeded = errors.New("budget exceeded")
	// ErrInsufficientFunds is returned when amount plus fee exceeds the
	// wallet balance. No side effect has occurred.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrAllProvidersFailed is returned when every configured provider was
	// tried and none accepted the dispatch.
	ErrAllProvidersFailed = errors.New("all providers failed")
	// ErrGatewayRejected is returned when the payment gateway refuses a
	// withdrawal initiation.
	ErrGatewayRejected = errors.New("gateway rejected")
	// ErrDuplicateReference is returned when a client reference was already
	// used by an earlier dispatch.
	ErrDuplicateReference = errors.New("duplicate client reference")
	// ErrAnomalousTransition marks an out-of-order settlement update that
	// was rejected instead of applied.
	ErrAnomalousTransition = errors.New("anomalous transition")
)
