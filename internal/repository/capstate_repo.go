package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/kursadbilgin/outbound-dispatch/internal/domain"
	"gorm.io/gorm"
)

type BudgetRepository interface {
	GetByScope(ctx context.Context, scope string) (*domain.BudgetState, error)
	ApplyCharge(ctx context.Context, scope string, cost int64) error
}

type WalletRepository interface {
	GetByAccountID(ctx context.Context, accountID string) (*domain.Wallet, error)
	Credit(ctx context.Context, accountID string, amount int64) error
}

type GormBudgetRepo struct {
	db *gorm.DB
}

func NewGormBudgetRepo(db *gorm.DB) *GormBudgetRepo {
	return &GormBudgetRepo{db: db}
}

func (r *GormBudgetRepo) GetByScope(ctx context.Context, scope string) (*domain.BudgetState, error) {
	var model BudgetStateModel
	err := r.db.WithContext(ctx).First(&model, "scope = ?", scope).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: budget scope %q", domain.ErrNotFound, scope)
	}
	if err != nil {
		return nil, err
	}
	return budgetStateModelToDomain(&model), nil
}

// ApplyCharge increments the scope counters with atomic SQL updates. The
// admission read and this increment are deliberately not one unit for
// budget scopes; the narrow race is tolerated there.
func (r *GormBudgetRepo) ApplyCharge(ctx context.Context, scope string, cost int64) error {
	if cost < 0 {
		return fmt.Errorf("%w: charge must not be negative (got %d)", domain.ErrValidation, cost)
	}

	result := r.db.WithContext(ctx).
		Model(&BudgetStateModel{}).
		Where("scope = ?", scope).
		Updates(map[string]any{
			"spent_to_date":    gorm.Expr("spent_to_date + ?", cost),
			"count_today":      gorm.Expr("count_today + 1"),
			"count_this_month": gorm.Expr("count_this_month + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: budget scope %q", domain.ErrNotFound, scope)
	}
	return nil
}

type GormWalletRepo struct {
	db *gorm.DB
}

func NewGormWalletRepo(db *gorm.DB) *GormWalletRepo {
	return &GormWalletRepo{db: db}
}

func (r *GormWalletRepo) GetByAccountID(ctx context.Context, accountID string) (*domain.Wallet, error) {
	var model WalletModel
	err := r.db.WithContext(ctx).First(&model, "account_id = ?", accountID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: account %q", domain.ErrNotFound, accountID)
	}
	if err != nil {
		return nil, err
	}
	return walletModelToDomain(&model), nil
}

func (r *GormWalletRepo) Credit(ctx context.Context, accountID string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("%w: credit must not be negative (got %d)", domain.ErrValidation, amount)
	}

	result := r.db.WithContext(ctx).
		Model(&WalletModel{}).
		Where("account_id = ?", accountID).
		Update("balance", gorm.Expr("balance + ?", amount))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: account %q", domain.ErrNotFound, accountID)
	}
	return nil
}
