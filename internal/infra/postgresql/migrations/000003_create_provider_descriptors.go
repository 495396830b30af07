package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/outbound-dispatch/internal/repository"
	"gorm.io/gorm"
)

func createProviderDescriptorsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_provider_descriptors",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.ProviderDescriptorModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_providers_kind_priority ON provider_descriptors (kind, priority) WHERE enabled`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.ProviderDescriptorModel{})
		},
	}
}
