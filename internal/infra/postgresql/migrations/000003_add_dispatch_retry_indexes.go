package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func addDispatchRetryIndexes() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_add_dispatch_retry_indexes",
		Migrate: func(tx *gorm.DB) error {
			statements := []string{
				`CREATE INDEX IF NOT EXISTS idx_reservations_approval_retry ON reservations (approval_sent_at) WHERE status = 'confirmed' AND approval_sent = false AND approval_terminal = false AND approval_last_error IS NOT NULL`,
				`CREATE INDEX IF NOT EXISTS idx_reservations_cancellation_retry ON reservations (cancellation_sent_at) WHERE status = 'cancelled' AND cancellation_sent = false AND cancellation_terminal = false AND cancellation_last_error IS NOT NULL`,
			}
			for _, sql := range statements {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			statements := []string{
				`DROP INDEX IF EXISTS idx_reservations_cancellation_retry`,
				`DROP INDEX IF EXISTS idx_reservations_approval_retry`,
			}
			for _, sql := range statements {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
	}
}
