package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/outbound-dispatch/internal/repository"
	"gorm.io/gorm"
)

func createWalletsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_wallets",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.WalletModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.WalletModel{})
		},
	}
}
