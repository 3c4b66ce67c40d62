package cmd

import (
	"fmt"

	"github.com/kursadbilgin/reservation-notifier/internal/infra/postgresql/migrations"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.openPostgres(); err != nil {
				return err
			}
			if err := migrations.Migrate(rt.db); err != nil {
				return fmt.Errorf("database migrations failed: %w", err)
			}

			rt.logger.Info("database migrations applied")
			return nil
		},
	}
}
