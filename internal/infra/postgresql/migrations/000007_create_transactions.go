package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/outbound-dispatch/internal/repository"
	"gorm.io/gorm"
)

func createTransactionsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000007_create_transactions",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.TransactionModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_client_reference ON transactions (client_reference) WHERE client_reference IS NOT NULL`,
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_external_ref ON transactions (external_ref) WHERE external_ref <> ''`,
				`CREATE INDEX IF NOT EXISTS idx_transactions_account_status ON transactions (account_id, status)`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.TransactionModel{})
		},
	}
}
