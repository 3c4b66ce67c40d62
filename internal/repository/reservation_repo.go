package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/reservation-notifier/internal/domain"
	"gorm.io/gorm"
)

// DispatchOutcome is the result of one dispatch attempt, written onto the
// reservation's per-kind sub-record.
type DispatchOutcome struct {
	Success           bool
	At                time.Time
	ProviderMessageID string
	Error             string
	Terminal          bool
}

type RetryCandidateParams struct {
	Kind        domain.OutcomeKind
	MaxAttempts int
	SentBefore  time.Time
	Limit       int
}

type ReservationRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Reservation, error)
	RecordDispatch(ctx context.Context, id string, kind domain.OutcomeKind, outcome DispatchOutcome) error
	ListRetryCandidates(ctx context.Context, params RetryCandidateParams) ([]domain.Reservation, error)
}

type GormReservationRepo struct {
	db *gorm.DB
}

func NewGormReservationRepo(db *gorm.DB) *GormReservationRepo {
	return &GormReservationRepo{db: db}
}

func (r *GormReservationRepo) GetByID(ctx context.Context, id string) (*domain.Reservation, error) {
	var model ReservationModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return reservationModelToDomain(&model), nil
}

// RecordDispatch patches only the kind's sub-record and only while its sent
// latch is still false, without touching updated_at. It returns
// domain.ErrNotFound when the reservation is gone and domain.ErrConflict when
// another attempt already latched it.
func (r *GormReservationRepo) RecordDispatch(ctx context.Context, id string, kind domain.OutcomeKind, outcome DispatchOutcome) error {
	prefix := kindPrefix(kind)
	if prefix == "" {
		return fmt.Errorf("%w: invalid outcome kind %q", domain.ErrValidation, kind)
	}

	updates := map[string]any{
		prefix + "sent_at":  outcome.At,
		prefix + "attempts": gorm.Expr(prefix + "attempts + 1"),
	}
	if outcome.Success {
		updates[prefix+"sent"] = true
		updates[prefix+"provider_message_id"] = outcome.ProviderMessageID
		updates[prefix+"last_error"] = nil
		updates[prefix+"terminal"] = false
	} else {
		lastError := strings.TrimSpace(outcome.Error)
		if lastError == "" {
			lastError = "unknown error"
		}
		updates[prefix+"sent"] = false
		updates[prefix+"last_error"] = lastError
		updates[prefix+"terminal"] = outcome.Terminal
	}

	result := r.db.WithContext(ctx).
		Model(&ReservationModel{}).
		Where("id = ? AND "+prefix+"sent = ?", id, false).
		UpdateColumns(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).
		Model(&ReservationModel{}).
		Where("id = ?", id).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return domain.ErrNotFound
	}
	return domain.ErrConflict
}

// ListRetryCandidates returns reservations still in the kind's trigger status
// whose last attempt failed with a retryable error, or failed for a missing
// phone that is now present.
func (r *GormReservationRepo) ListRetryCandidates(ctx context.Context, params RetryCandidateParams) ([]domain.Reservation, error) {
	prefix := kindPrefix(params.Kind)
	if prefix == "" {
		return nil, fmt.Errorf("%w: invalid outcome kind %q", domain.ErrValidation, params.Kind)
	}

	limit := params.Limit
	if limit < 1 {
		limit = 100
	}

	// Retryable failures under the attempt cap, plus missing-phone failures
	// whose phone has since been filled in.
	retryable := r.db.
		Where(prefix+"terminal = ? AND "+prefix+"attempts < ?", false, params.MaxAttempts).
		Or(prefix+"terminal = ? AND "+prefix+"last_error = ? AND customer_phone IS NOT NULL AND TRIM(customer_phone) <> ''",
			true, domain.ErrMissingPhone.Error())

	var models []ReservationModel
	err := r.db.WithContext(ctx).
		Where("status = ?", params.Kind.TriggerStatus()).
		Where(prefix+"sent = ?", false).
		Where(prefix + "last_error IS NOT NULL").
		Where(retryable).
		Where(prefix+"sent_at <= ?", params.SentBefore).
		Order(prefix + "sent_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	reservations := make([]domain.Reservation, 0, len(models))
	for i := range models {
		reservations = append(reservations, *reservationModelToDomain(&models[i]))
	}

	return reservations, nil
}
