package domain

import (
	"fmt"
	"time"
)

// BudgetState is the counter aggregate for one notification budget scope.
// Counters only grow within a period; period rollover is handled outside
// dispatch.
type BudgetState struct {
	Scope          string
	SpentToDate    int64
	CountToday     int
	CountThisMonth int
	LimitTotal     int64
	LimitPerDay    int
	LimitPerMonth  int
	UpdatedAt      time.Time
}

// Admit reports whether a dispatch of the given cost fits within every
// configured limit. A zero limit means unlimited.
func (b *BudgetState) Admit(cost int64) error {
	if b == nil {
		return fmt.Errorf("%w: unknown budget scope", ErrNotFound)
	}
	if cost < 0 {
		return fmt.Errorf("%w: cost must not be negative (got %d)", ErrValidation, cost)
	}

	if b.LimitTotal > 0 && b.SpentToDate+cost > b.LimitTotal {
		return fmt.Errorf("%w: scope %s would spend %d of %d",
			ErrBudgetExceeded, b.Scope, b.SpentToDate+cost, b.LimitTotal)
	}
	if b.LimitPerDay > 0 && b.CountToday+1 > b.LimitPerDay {
		return fmt.Errorf("%w: scope %s reached daily count %d",
			ErrBudgetExceeded, b.Scope, b.LimitPerDay)
	}
	if b.LimitPerMonth > 0 && b.CountThisMonth+1 > b.LimitPerMonth {
		return fmt.Errorf("%w: scope %s reached monthly count %d",
			ErrBudgetExceeded, b.Scope, b.LimitPerMonth)
	}

	return nil
}

// Wallet is the balance aggregate for one account scope. Balance admission
// is transactional; the repository locks the row before checking.
type Wallet struct {
	AccountID string
	Balance   int64
	Currency  string
	UpdatedAt time.Time
}

// CanCover reports whether the balance covers amount plus fee.
func (w *Wallet) CanCover(amount, fee int64) error {
	if w == nil {
		return fmt.Errorf("%w: unknown account", ErrNotFound)
	}
	if total := amount + fee; total > w.Balance {
		return fmt.Errorf("%w: account %s needs %d, has %d",
			ErrInsufficientFunds, w.AccountID, total, w.Balance)
	}
	return nil
}
