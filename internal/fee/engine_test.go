package fee

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kursadbilgin/outbound-dispatch/internal/domain"
)

func TestCompute(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		amount int64
		rule   domain.FeeRule
		want   int64
	}{
		{
			name:   "percentage only",
			amount: 10000,
			rule:   domain.FeeRule{PercentBPS: 200},
			want:   200,
		},
		{
			name:   "percentage plus flat",
			amount: 10000,
			rule:   domain.FeeRule{PercentBPS: 200, Flat: 100},
			want:   300,
		},
		{
			name:   "clamped up to min",
			amount: 9000,
			rule:   domain.FeeRule{PercentBPS: 200, Min: 500, Max: 2000},
			want:   500,
		},
		{
			name:   "clamped down to max",
			amount: 2000000,
			rule:   domain.FeeRule{PercentBPS: 200, Min: 500, Max: 2000},
			want:   2000,
		},
		{
			name:   "within clamp range",
			amount: 50000,
			rule:   domain.FeeRule{PercentBPS: 200, Min: 500, Max: 2000},
			want:   1000,
		},
		{
			name:   "no clamps equals raw formula",
			amount: 3,
			rule:   domain.FeeRule{PercentBPS: 100},
			want:   0,
		},
		{
			name:   "flat only",
			amount: 100,
			rule:   domain.FeeRule{Flat: 700},
			want:   700,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := Compute(tt.amount, tt.rule); got != tt.want {
				t.Fatalf("Compute(%d) = %d, want %d", tt.amount, got, tt.want)
			}
		})
	}
}

func TestComputeResultWithinClampBounds(t *testing.T) {
	t.Parallel()

	rule := domain.FeeRule{PercentBPS: 150, Flat: 50, Min: 300, Max: 1500}
	for amount := int64(0); amount <= 2000000; amount += 7919 {
		fee := Compute(amount, rule)
		if fee < rule.Min || fee > rule.Max {
			t.Fatalf("Compute(%d) = %d, outside [%d, %d]", amount, fee, rule.Min, rule.Max)
		}
	}
}

type fakeFeeRuleRepo struct {
	getFn func(ctx context.Context, operation, currency string) (*domain.FeeRule, error)
	calls int
}

func (f *fakeFeeRuleRepo) Get(ctx context.Context, operation, currency string) (*domain.FeeRule, error) {
	f.calls++
	if f.getFn != nil {
		return f.getFn(ctx, operation, currency)
	}
	return nil, domain.ErrNotFound
}

func TestEngineFeeForUsesCachedRule(t *testing.T) {
	t.Parallel()

	repo := &fakeFeeRuleRepo{
		getFn: func(ctx context.Context, operation, currency string) (*domain.FeeRule, error) {
			if operation != "withdrawal" || currency != "UGX" {
				return nil, domain.ErrNotFound
			}
			return &domain.FeeRule{Operation: operation, Currency: currency, PercentBPS: 200, Min: 500, Max: 2000}, nil
		},
	}

	engine := NewEngine(repo, time.Minute)

	for i := 0; i < 3; i++ {
		fee, err := engine.FeeFor(context.Background(), "Withdrawal", "ugx", 9000)
		if err != nil {
			t.Fatalf("FeeFor() unexpected error = %v", err)
		}
		if fee != 500 {
			t.Fatalf("FeeFor() = %d, want 500", fee)
		}
	}

	if repo.calls != 1 {
		t.Fatalf("rule lookups = %d, want 1", repo.calls)
	}
}

func TestEngineFeeForUnknownRule(t *testing.T) {
	t.Parallel()

	engine := NewEngine(&fakeFeeRuleRepo{}, time.Minute)

	_, err := engine.FeeFor(context.Background(), "withdrawal", "KES", 1000)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("FeeFor() error = %v, want ErrNotFound", err)
	}
}
