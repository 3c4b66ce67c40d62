package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/kursadbilgin/reservation-notifier/internal/observability"
	"github.com/kursadbilgin/reservation-notifier/internal/queue"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const minWatcherConcurrency = 1

// ReservationWatcher consumes reservation change events and dispatches the
// notifications each transition owes. It keeps no state between events.
type ReservationWatcher struct {
	consumer    queue.Consumer
	dispatcher  *Dispatcher
	queueName   string
	concurrency int
	logger      *zap.Logger
	metrics     *observability.Metrics
}

func NewReservationWatcher(
	consumer queue.Consumer,
	dispatcher *Dispatcher,
	queueName string,
	concurrency int,
	logger *zap.Logger,
) (*ReservationWatcher, error) {
	if consumer == nil {
		return nil, fmt.Errorf("consumer is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if concurrency < minWatcherConcurrency {
		concurrency = minWatcherConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ReservationWatcher{
		consumer:    consumer,
		dispatcher:  dispatcher,
		queueName:   queue.NormalizeQueueName(queueName),
		concurrency: concurrency,
		logger:      logger,
	}, nil
}

func (w *ReservationWatcher) SetMetrics(metrics *observability.Metrics) {
	if w == nil {
		return
	}
	w.metrics = metrics
}

// Start runs concurrency consumers on the change queue until ctx is canceled.
func (w *ReservationWatcher) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < w.concurrency; i++ {
		workerID := i + 1

		g.Go(func() error {
			w.logger.Info("watcher started",
				zap.Int("workerId", workerID),
				zap.String("queue", w.queueName),
			)

			if err := w.consumer.Consume(groupCtx, w.queueName, w.HandleEvent); err != nil {
				w.logger.Error("watcher stopped with error",
					zap.Int("workerId", workerID),
					zap.String("queue", w.queueName),
					zap.Error(err),
				)
				return err
			}

			w.logger.Info("watcher stopped",
				zap.Int("workerId", workerID),
				zap.String("queue", w.queueName),
			)
			return nil
		})
	}

	return g.Wait()
}

// HandleEvent evaluates one change event. A returned error asks the broker to
// redeliver; replays are safe because every dispatch re-checks the latch.
func (w *ReservationWatcher) HandleEvent(ctx context.Context, event queue.ChangeEvent) error {
	ctx = observability.WithCorrelationID(ctx, event.EventID)
	logger := observability.WithContextLogger(w.logger, ctx).With(
		zap.String("reservationId", event.ReservationID),
		zap.String("origin", string(event.Origin)),
	)

	if event.Deleted() {
		logger.Debug("reservation deleted, nothing owed")
		return nil
	}

	obligations := EvaluateTransition(event.Before, event.After)
	if len(obligations) == 0 {
		w.metrics.IncDispatchSkipped(skipNoTransition)
		return nil
	}

	origin := string(event.Origin)
	if origin == "" {
		origin = string(queue.OriginStore)
	}

	var errs []error
	for _, ob := range obligations {
		result, err := w.dispatcher.Dispatch(ctx, ob, origin)
		if err != nil {
			logger.Warn("dispatch failed before send",
				zap.String("kind", ob.Kind.String()),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", ob.Kind, err))
			continue
		}
		logger.Debug("dispatch finished",
			zap.String("kind", ob.Kind.String()),
			zap.String("result", string(result)),
		)
	}

	return errors.Join(errs...)
}
