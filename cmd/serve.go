package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/kursadbilgin/reservation-notifier/internal/handler"
	"github.com/kursadbilgin/reservation-notifier/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/reservation-notifier/internal/infra/redis"
	"github.com/kursadbilgin/reservation-notifier/internal/observability"
	"github.com/kursadbilgin/reservation-notifier/internal/queue"
	"github.com/kursadbilgin/reservation-notifier/internal/repository"
	"github.com/kursadbilgin/reservation-notifier/internal/service"
	"github.com/kursadbilgin/reservation-notifier/internal/transport"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var (
		migrateUp   bool
		withSweeper bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the change watcher, retry sweeper and HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return serve(ctx, rt, migrateUp, withSweeper)
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")
	cmd.Flags().BoolVar(&withSweeper, "sweeper", true, "run the retry sweeper in this process")

	return cmd
}

func serve(ctx context.Context, rt *runtime, migrateUp, withSweeper bool) error {
	cfg := rt.cfg
	logger := rt.logger

	if err := rt.openPostgres(); err != nil {
		return err
	}
	if migrateUp {
		if err := migrations.Migrate(rt.db); err != nil {
			return fmt.Errorf("database migrations failed: %w", err)
		}
	}
	if err := rt.openRedis(); err != nil {
		return err
	}

	rabbit, err := queue.NewRabbitMQ(cfg.RabbitMQURL, cfg.ChangeQueue)
	if err != nil {
		return fmt.Errorf("rabbitmq initialization failed: %w", err)
	}
	defer rabbit.Close()

	metrics := observability.NewMetrics()

	reservations := repository.NewGormReservationRepo(rt.db)
	attempts := repository.NewGormAttemptRepo(rt.db)

	recorder, err := service.NewDeliveryRecorder(reservations, logger)
	if err != nil {
		return err
	}
	msgComposer, err := rt.composer()
	if err != nil {
		return fmt.Errorf("message composer init failed: %w", err)
	}
	whatsapp, err := rt.provider()
	if err != nil {
		return fmt.Errorf("whatsapp provider init failed: %w", err)
	}
	limiter, err := rt.rateLimiter()
	if err != nil {
		return fmt.Errorf("rate limiter init failed: %w", err)
	}
	locker, err := infraredis.NewDispatchLocker(rt.rdb, cfg.DispatchLockTTL())
	if err != nil {
		return fmt.Errorf("dispatch locker init failed: %w", err)
	}

	dispatcher, err := service.NewDispatcher(service.DispatcherConfig{
		Reservations: reservations,
		Attempts:     attempts,
		Recorder:     recorder,
		Composer:     msgComposer,
		Normalizer:   rt.normalizer(),
		Provider:     whatsapp,
		RateLimiter:  limiter,
		Locker:       locker,
		Logger:       logger,
		Metrics:      metrics,

		RateLimitMaxWait: cfg.RateLimitMaxWait(),
	})
	if err != nil {
		return err
	}

	consumer := queue.NewRabbitMQConsumer(rabbit, cfg.WorkerConcurrency, logger)

	watcher, err := service.NewReservationWatcher(consumer, dispatcher, cfg.ChangeQueue, cfg.WorkerConcurrency, logger)
	if err != nil {
		return err
	}
	watcher.SetMetrics(metrics)

	publisher := queue.NewRabbitMQPublisher(rabbit)

	sweeper, err := service.NewSweeper(reservations, publisher, service.SweeperConfig{
		QueueName:   cfg.ChangeQueue,
		Interval:    cfg.SweepInterval(),
		Limit:       cfg.SweepLimit,
		MaxAttempts: cfg.SweepMaxAttempts,
		BaseDelay:   cfg.SweepBaseDelay(),
	}, logger)
	if err != nil {
		return err
	}
	sweeper.SetMetrics(metrics)

	diagnostics, err := service.NewDiagnosticService(msgComposer, rt.normalizer(), whatsapp, limiter, logger)
	if err != nil {
		return err
	}
	statuses, err := service.NewStatusService(reservations, attempts)
	if err != nil {
		return err
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          transport.ErrorHandler(logger),
		DisableStartupMessage: true,
	})
	app.Use(requestid.New())
	app.Use(metrics.HTTPMiddleware())
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	handler.RegisterHealthRoutes(app, rt.sqlDB, rt.rdb, handler.ReadinessCheck{Name: "rabbitmq", Check: rabbit.Ping})
	if err := handler.RegisterDiagnosticRoutes(app, diagnostics); err != nil {
		return err
	}
	if err := handler.RegisterReservationRoutes(app, statuses); err != nil {
		return err
	}

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return watcher.Start(groupCtx)
	})
	if withSweeper {
		g.Go(func() error {
			return sweeper.Start(groupCtx)
		})
	}
	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.APIPort)
		logger.Info("http api listening", zap.String("addr", addr))
		return app.Listen(addr)
	})
	g.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	logger.Info("reservation notifier started",
		zap.String("queue", queue.NormalizeQueueName(cfg.ChangeQueue)),
		zap.Int("concurrency", cfg.WorkerConcurrency),
		zap.String("rateLimiter", cfg.RateLimiterBackend),
		zap.Bool("sweeper", withSweeper),
	)

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}

	logger.Info("reservation notifier stopped")
	return nil
}
