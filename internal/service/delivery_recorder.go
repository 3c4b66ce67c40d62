package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kursadbilgin/reservation-notifier/internal/domain"
	"github.com/kursadbilgin/reservation-notifier/internal/observability"
	"github.com/kursadbilgin/reservation-notifier/internal/repository"
	"go.uber.org/zap"
)

// RecordStatus describes what happened to a dispatch outcome write.
type RecordStatus string

const (
	RecordWritten        RecordStatus = "written"
	RecordDeleted        RecordStatus = "deleted"
	RecordAlreadyLatched RecordStatus = "already_latched"
)

// DeliveryRecorder writes dispatch outcomes onto the reservation's per-kind
// sub-record. Writes never overwrite a latched record.
type DeliveryRecorder struct {
	reservations repository.ReservationRepository
	logger       *zap.Logger
	now          func() time.Time
}

func NewDeliveryRecorder(reservations repository.ReservationRepository, logger *zap.Logger) (*DeliveryRecorder, error) {
	if reservations == nil {
		return nil, fmt.Errorf("reservation repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DeliveryRecorder{
		reservations: reservations,
		logger:       logger,
		now:          time.Now,
	}, nil
}

func (r *DeliveryRecorder) RecordSuccess(ctx context.Context, reservationID string, kind domain.OutcomeKind, providerMessageID string) (RecordStatus, error) {
	return r.record(ctx, reservationID, kind, repository.DispatchOutcome{
		Success:           true,
		At:                r.now().UTC(),
		ProviderMessageID: providerMessageID,
	})
}

// RecordFailure stores message as lastError. The retry sweep skips terminal
// failures, except a missing phone once the reservation has one.
func (r *DeliveryRecorder) RecordFailure(ctx context.Context, reservationID string, kind domain.OutcomeKind, message string, terminal bool) (RecordStatus, error) {
	return r.record(ctx, reservationID, kind, repository.DispatchOutcome{
		At:       r.now().UTC(),
		Error:    message,
		Terminal: terminal,
	})
}

func (r *DeliveryRecorder) record(ctx context.Context, reservationID string, kind domain.OutcomeKind, outcome repository.DispatchOutcome) (RecordStatus, error) {
	logger := observability.WithContextLogger(r.logger, ctx).With(observability.DispatchFields(reservationID, kind.String())...)

	err := r.reservations.RecordDispatch(ctx, reservationID, kind, outcome)
	switch {
	case err == nil:
		return RecordWritten, nil
	case errors.Is(err, domain.ErrNotFound):
		logger.Warn("reservation deleted before dispatch outcome was recorded",
			zap.Bool("success", outcome.Success),
		)
		return RecordDeleted, nil
	case errors.Is(err, domain.ErrConflict):
		logger.Warn("dispatch record already latched, outcome discarded",
			zap.Bool("success", outcome.Success),
		)
		return RecordAlreadyLatched, nil
	default:
		return "", fmt.Errorf("failed to record dispatch outcome: %w", err)
	}
}
