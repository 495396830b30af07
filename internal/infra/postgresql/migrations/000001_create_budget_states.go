package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/outbound-dispatch/internal/repository"
	"gorm.io/gorm"
)

func createBudgetStatesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_budget_states",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.BudgetStateModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.BudgetStateModel{})
		},
	}
}
