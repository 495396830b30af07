package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/outbound-dispatch/internal/repository"
	"gorm.io/gorm"
)

func createFeeRulesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000004_create_fee_rules",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.FeeRuleModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.FeeRuleModel{})
		},
	}
}
