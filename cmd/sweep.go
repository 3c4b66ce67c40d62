package cmd

import (
	"fmt"

	"github.com/kursadbilgin/reservation-notifier/internal/queue"
	"github.com/kursadbilgin/reservation-notifier/internal/repository"
	"github.com/kursadbilgin/reservation-notifier/internal/service"
	"github.com/spf13/cobra"
)

func newSweepCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Re-publish failed retryable dispatches once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.openPostgres(); err != nil {
				return err
			}

			rabbit, err := queue.NewRabbitMQ(rt.cfg.RabbitMQURL, rt.cfg.ChangeQueue)
			if err != nil {
				return fmt.Errorf("rabbitmq initialization failed: %w", err)
			}
			defer rabbit.Close()

			publisher := queue.NewRabbitMQPublisher(rabbit)

			if limit <= 0 {
				limit = rt.cfg.SweepLimit
			}

			sweeper, err := service.NewSweeper(repository.NewGormReservationRepo(rt.db), publisher, service.SweeperConfig{
				QueueName:   rt.cfg.ChangeQueue,
				Limit:       limit,
				MaxAttempts: rt.cfg.SweepMaxAttempts,
				BaseDelay:   rt.cfg.SweepBaseDelay(),
			}, rt.logger)
			if err != nil {
				return err
			}

			published, err := sweeper.SweepOnce(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "requeued %d reservation(s)\n", published)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum candidates per kind (defaults to SWEEP_LIMIT)")

	return cmd
}
