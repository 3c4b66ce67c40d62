package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/reservation-notifier/internal/domain"
	"github.com/kursadbilgin/reservation-notifier/internal/observability"
	"github.com/kursadbilgin/reservation-notifier/internal/queue"
	"github.com/kursadbilgin/reservation-notifier/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultSweepInterval    = time.Minute
	defaultSweepLimit       = 100
	defaultSweepMaxAttempts = 5
	defaultSweepBaseDelay   = time.Minute
	maxSweepDelay           = 30 * time.Minute
)

type SweeperConfig struct {
	QueueName   string
	Interval    time.Duration
	Limit       int
	MaxAttempts int
	BaseDelay   time.Duration
}

// Sweeper periodically re-publishes reservations whose last dispatch failed
// with a retryable error, or failed for a missing phone that an operator has
// since filled in, so the retry goes through the normal watcher path.
type Sweeper struct {
	reservations repository.ReservationRepository
	publisher    queue.Publisher
	logger       *zap.Logger
	metrics      *observability.Metrics
	queueName    string
	interval     time.Duration
	limit        int
	maxAttempts  int
	baseDelay    time.Duration
	now          func() time.Time
	newID        func() string
}

func NewSweeper(
	reservations repository.ReservationRepository,
	publisher queue.Publisher,
	cfg SweeperConfig,
	logger *zap.Logger,
) (*Sweeper, error) {
	if reservations == nil {
		return nil, fmt.Errorf("reservation repository is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultSweepInterval
	}
	if cfg.Limit <= 0 {
		cfg.Limit = defaultSweepLimit
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultSweepMaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaultSweepBaseDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Sweeper{
		reservations: reservations,
		publisher:    publisher,
		logger:       logger,
		queueName:    queue.NormalizeQueueName(cfg.QueueName),
		interval:     cfg.Interval,
		limit:        cfg.Limit,
		maxAttempts:  cfg.MaxAttempts,
		baseDelay:    cfg.BaseDelay,
		now:          time.Now,
		newID:        uuid.NewString,
	}, nil
}

func (s *Sweeper) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

func (s *Sweeper) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Run an initial sweep so failures left by a previous process do not wait for the first tick.
	if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("initial sweep failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("sweep failed", zap.Error(err))
			}
		}
	}
}

// SweepOnce publishes one change event per due failed dispatch and returns
// how many were published.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	now := s.now().UTC()
	published := 0

	for _, kind := range domain.OutcomeKinds {
		candidates, err := s.reservations.ListRetryCandidates(ctx, repository.RetryCandidateParams{
			Kind:        kind,
			MaxAttempts: s.maxAttempts,
			SentBefore:  now.Add(-s.baseDelay),
			Limit:       s.limit,
		})
		if err != nil {
			return published, fmt.Errorf("failed to list %s retry candidates: %w", kind, err)
		}

		for i := range candidates {
			reservation := candidates[i]
			if !s.due(&reservation, kind, now) {
				continue
			}

			event := queue.ChangeEvent{
				EventID:       s.newID(),
				ReservationID: reservation.ID,
				// An empty before status re-opens the transition for the gate.
				Before:     &domain.Reservation{ID: reservation.ID},
				After:      &reservation,
				Origin:     queue.OriginSweep,
				OccurredAt: now,
			}
			if err := s.publisher.Publish(ctx, s.queueName, event); err != nil {
				s.logger.Error("failed to publish sweep event",
					zap.String("reservationId", reservation.ID),
					zap.String("kind", kind.String()),
					zap.String("queue", s.queueName),
					zap.Error(err),
				)
				continue
			}

			published++
			s.metrics.IncSweepRequeued(kind.String())
			s.logger.Info("failed dispatch requeued",
				zap.String("reservationId", reservation.ID),
				zap.String("kind", kind.String()),
				zap.Int("attempts", reservation.Dispatch(kind).Attempts),
				zap.String("eventId", event.EventID),
			)
		}
	}

	return published, nil
}

func (s *Sweeper) due(reservation *domain.Reservation, kind domain.OutcomeKind, now time.Time) bool {
	record := reservation.Dispatch(kind)
	if record.Sent || record.LastError == nil {
		return false
	}
	if record.Terminal {
		// A missing phone is cleared by the operator filling it in. It goes
		// out on the next sweep without backoff or attempt cap.
		return record.AwaitingPhone() && reservation.Phone() != ""
	}
	if record.Attempts >= s.maxAttempts {
		return false
	}
	if record.SentAt == nil {
		return true
	}
	return !now.Before(record.SentAt.Add(s.retryDelay(record.Attempts)))
}

// retryDelay doubles the base delay per prior attempt, capped at maxSweepDelay.
func (s *Sweeper) retryDelay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}

	delay := s.baseDelay
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= maxSweepDelay {
			return maxSweepDelay
		}
	}

	if delay > maxSweepDelay {
		delay = maxSweepDelay
	}
	return delay
}
