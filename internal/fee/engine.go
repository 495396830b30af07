// Package fee computes the cost of financial operations from configured
// rules. Computation is pure integer math in the smallest currency unit.
package fee

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/outbound-dispatch/internal/cache"
	"github.com/kursadbilgin/outbound-dispatch/internal/domain"
	"github.com/kursadbilgin/outbound-dispatch/internal/repository"
)

// Compute applies fee = clamp(amount*pct + flat, min, max). Percentage is
// expressed in basis points. A zero min or max disables that clamp.
func Compute(amount int64, rule domain.FeeRule) int64 {
	computed := amount*rule.PercentBPS/10000 + rule.Flat

	if rule.Min > 0 && computed < rule.Min {
		computed = rule.Min
	}
	if rule.Max > 0 && computed > rule.Max {
		computed = rule.Max
	}

	return computed
}

// Engine resolves fee rules by (operation, currency) through a TTL cache
// and computes fees with them.
type Engine struct {
	rules repository.FeeRuleRepository
	cache *cache.Cache[domain.FeeRule]
}

func NewEngine(rules repository.FeeRuleRepository, ttl time.Duration) *Engine {
	return &Engine{
		rules: rules,
		cache: cache.New[domain.FeeRule](ttl),
	}
}

func (e *Engine) FeeFor(ctx context.Context, operation, currency string, amount int64) (int64, error) {
	operation = strings.ToLower(strings.TrimSpace(operation))
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if operation == "" || currency == "" {
		return 0, fmt.Errorf("%w: operation and currency are required", domain.ErrValidation)
	}

	key := operation + ":" + currency
	rule, err := e.cache.GetOrLoad(key, func() (domain.FeeRule, error) {
		loaded, err := e.rules.Get(ctx, operation, currency)
		if err != nil {
			return domain.FeeRule{}, err
		}
		return *loaded, nil
	})
	if err != nil {
		return 0, err
	}

	return Compute(amount, rule), nil
}
