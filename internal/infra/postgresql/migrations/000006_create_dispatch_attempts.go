package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/outbound-dispatch/internal/repository"
	"gorm.io/gorm"
)

func createDispatchAttemptsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000006_create_dispatch_attempts",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.AttemptRecordModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE INDEX IF NOT EXISTS idx_attempts_request_id ON dispatch_attempts (request_id)`,
				`CREATE INDEX IF NOT EXISTS idx_attempts_correlation_id ON dispatch_attempts (correlation_id)`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.AttemptRecordModel{})
		},
	}
}
