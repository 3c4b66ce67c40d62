package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/reservation-notifier/internal/repository"
	"gorm.io/gorm"
)

func createDispatchAttemptsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_dispatch_attempts",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.DispatchAttemptModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_dispatch_attempts_reservation_id ON dispatch_attempts (reservation_id, created_at)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.DispatchAttemptModel{})
		},
	}
}
