package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/reservation-notifier/internal/repository"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "000001_create_reservations",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.ReservationModel{}); err != nil {
					return err
				}
				return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_reservations_status ON reservations (status)`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.ReservationModel{})
			},
		},
		createDispatchAttemptsTable(),
		addDispatchRetryIndexes(),
	})

	return m.Migrate()
}
