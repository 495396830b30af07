// Package ledger gates dispatch admission against budget counters and
// wallet balances. Budget snapshots may be read through a short TTL cache;
// balances are never cached and are checked under a row lock at admission.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/outbound-dispatch/internal/cache"
	"github.com/kursadbilgin/outbound-dispatch/internal/domain"
	"github.com/kursadbilgin/outbound-dispatch/internal/observability"
	"github.com/kursadbilgin/outbound-dispatch/internal/repository"
)

type Ledger struct {
	budgets repository.BudgetRepository
	wallets repository.WalletRepository
	cache   *cache.Cache[domain.BudgetState]
	metrics *observability.Metrics
}

func New(budgets repository.BudgetRepository, wallets repository.WalletRepository, budgetTTL time.Duration) *Ledger {
	return &Ledger{
		budgets: budgets,
		wallets: wallets,
		cache:   cache.New[domain.BudgetState](budgetTTL),
	}
}

// AdmitBudget checks that a dispatch of the given cost fits the scope's
// limits. Nothing is charged here; the counter increment happens
// asynchronously after a provider accepts the dispatch.
func (l *Ledger) AdmitBudget(ctx context.Context, scope string, cost int64) error {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return fmt.Errorf("%w: scope is required", domain.ErrValidation)
	}

	state, err := l.cache.GetOrLoad(scope, func() (domain.BudgetState, error) {
		loaded, err := l.budgets.GetByScope(ctx, scope)
		if err != nil {
			return domain.BudgetState{}, err
		}
		return *loaded, nil
	})
	if err != nil {
		return err
	}

	// Charges land asynchronously, so a scope can already sit past its
	// total limit when we read it. Count the observation; admission still
	// refuses through Admit below.
	if state.LimitTotal > 0 && state.SpentToDate > state.LimitTotal {
		l.metrics.IncBudgetOverrun(scope)
	}

	return state.Admit(cost)
}

func (l *Ledger) SetMetrics(metrics *observability.Metrics) {
	if l == nil {
		return
	}
	l.metrics = metrics
}

// Charge applies the counter increments for one successful dispatch and
// invalidates the cached snapshot so the next admission sees fresh numbers.
func (l *Ledger) Charge(ctx context.Context, scope string, cost int64) error {
	if err := l.budgets.ApplyCharge(ctx, scope, cost); err != nil {
		return err
	}
	l.cache.Invalidate(scope)
	return nil
}

// Invalidate drops the cached snapshot for a scope, used when limits are
// rewritten by configuration.
func (l *Ledger) Invalidate(scope string) {
	l.cache.Invalidate(scope)
}

// Wallet returns the current balance for an account. Reads go straight to
// the store; staleness is not tolerable for money.
func (l *Ledger) Wallet(ctx context.Context, accountID string) (*domain.Wallet, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, fmt.Errorf("%w: account id is required", domain.ErrValidation)
	}
	return l.wallets.GetByAccountID(ctx, accountID)
}
