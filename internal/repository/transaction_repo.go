package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kursadbilgin/outbound-dispatch/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TransactionRepository interface {
	// AdmitWithdrawal locks the wallet row, verifies the balance covers
	// amount plus fee, debits it, and creates the PENDING transaction in a
	// single database transaction.
	AdmitWithdrawal(ctx context.Context, t *domain.Transaction) error
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)
	GetByExternalRef(ctx context.Context, externalRef string) (*domain.Transaction, error)
	// MarkProcessing applies PENDING -> PROCESSING and records the gateway
	// reference the settlement will later be keyed by.
	MarkProcessing(ctx context.Context, id string, externalRef string) error
	MarkFailed(ctx context.Context, id string, note string) error
	// CompleteByExternalRef applies PROCESSING -> COMPLETED. It reports
	// false when no row was in PROCESSING; the caller decides whether that
	// is an idempotent repeat or an anomaly.
	CompleteByExternalRef(ctx context.Context, externalRef string) (bool, error)
	// FailByExternalRefWithRefund applies PROCESSING -> FAILED and credits
	// amount plus fee back to the wallet in the same database transaction,
	// so the refund happens exactly once.
	FailByExternalRefWithRefund(ctx context.Context, externalRef string, note string) (bool, error)
}

type GormTransactionRepo struct {
	db *gorm.DB
}

func NewGormTransactionRepo(db *gorm.DB) *GormTransactionRepo {
	return &GormTransactionRepo{db: db}
}

func (r *GormTransactionRepo) AdmitWithdrawal(ctx context.Context, t *domain.Transaction) error {
	if t == nil {
		return fmt.Errorf("%w: transaction is required", domain.ErrValidation)
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var wallet WalletModel
		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&wallet, "account_id = ?", t.AccountID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: account %q", domain.ErrNotFound, t.AccountID)
		}
		if err != nil {
			return err
		}

		if !strings.EqualFold(wallet.Currency, t.Currency) {
			return fmt.Errorf("%w: account %s holds %s, not %s",
				domain.ErrValidation, t.AccountID, wallet.Currency, t.Currency)
		}

		total := t.Amount + t.Fee
		if wallet.Balance < total {
			return fmt.Errorf("%w: account %s needs %d, has %d",
				domain.ErrInsufficientFunds, t.AccountID, total, wallet.Balance)
		}

		if err := tx.
			Model(&WalletModel{}).
			Where("account_id = ?", t.AccountID).
			Update("balance", gorm.Expr("balance - ?", total)).Error; err != nil {
			return err
		}

		model := transactionModelFromDomain(t)
		if err := tx.Create(model).Error; err != nil {
			if isUniqueViolationError(err) {
				return fmt.Errorf("%w: reference already used", domain.ErrDuplicateReference)
			}
			return err
		}

		*t = *transactionModelToDomain(model)
		return nil
	})
}

func (r *GormTransactionRepo) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	var model TransactionModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: transaction %q", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return transactionModelToDomain(&model), nil
}

func (r *GormTransactionRepo) GetByExternalRef(ctx context.Context, externalRef string) (*domain.Transaction, error) {
	var model TransactionModel
	err := r.db.WithContext(ctx).First(&model, "external_ref = ?", externalRef).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: transaction ref %q", domain.ErrNotFound, externalRef)
	}
	if err != nil {
		return nil, err
	}
	return transactionModelToDomain(&model), nil
}

func (r *GormTransactionRepo) MarkProcessing(ctx context.Context, id string, externalRef string) error {
	result := r.db.WithContext(ctx).
		Model(&TransactionModel{}).
		Where("id = ? AND status = ?", id, domain.TxPending).
		Updates(map[string]any{
			"status":       domain.TxProcessing,
			"external_ref": externalRef,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: transaction %q is not pending", domain.ErrConflict, id)
	}
	return nil
}

// MarkFailed applies PENDING -> FAILED with a refund, used when the gateway
// rejects the initiation before it ever reaches PROCESSING.
func (r *GormTransactionRepo) MarkFailed(ctx context.Context, id string, note string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model TransactionModel
		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&model, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: transaction %q", domain.ErrNotFound, id)
		}
		if err != nil {
			return err
		}

		if !model.Status.CanTransitionTo(domain.TxFailed) {
			return fmt.Errorf("%w: %s -> %s on transaction %s",
				domain.ErrAnomalousTransition, model.Status, domain.TxFailed, id)
		}

		if err := tx.
			Model(&TransactionModel{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"status": domain.TxFailed,
				"notes":  note,
			}).Error; err != nil {
			return err
		}

		return creditWallet(tx, model.AccountID, model.Amount+model.Fee)
	})
}

func (r *GormTransactionRepo) CompleteByExternalRef(ctx context.Context, externalRef string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&TransactionModel{}).
		Where("external_ref = ? AND status = ?", externalRef, domain.TxProcessing).
		Update("status", domain.TxCompleted)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *GormTransactionRepo) FailByExternalRefWithRefund(ctx context.Context, externalRef string, note string) (bool, error) {
	applied := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model TransactionModel
		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&model, "external_ref = ?", externalRef).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: transaction ref %q", domain.ErrNotFound, externalRef)
		}
		if err != nil {
			return err
		}

		if model.Status != domain.TxProcessing {
			return nil
		}

		if err := tx.
			Model(&TransactionModel{}).
			Where("id = ?", model.ID).
			Updates(map[string]any{
				"status": domain.TxFailed,
				"notes":  note,
			}).Error; err != nil {
			return err
		}

		if err := creditWallet(tx, model.AccountID, model.Amount+model.Fee); err != nil {
			return err
		}

		applied = true
		return nil
	})
	return applied, err
}

func creditWallet(tx *gorm.DB, accountID string, amount int64) error {
	result := tx.
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

func isUniqueViolationError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
