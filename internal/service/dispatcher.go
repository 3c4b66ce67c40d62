package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/reservation-notifier/internal/composer"
	"github.com/kursadbilgin/reservation-notifier/internal/domain"
	"github.com/kursadbilgin/reservation-notifier/internal/lock"
	"github.com/kursadbilgin/reservation-notifier/internal/observability"
	"github.com/kursadbilgin/reservation-notifier/internal/phone"
	"github.com/kursadbilgin/reservation-notifier/internal/provider"
	"github.com/kursadbilgin/reservation-notifier/internal/ratelimit"
	"github.com/kursadbilgin/reservation-notifier/internal/repository"
	"go.uber.org/zap"
)

// DefaultRateLimitScope is the limiter scope shared by every WhatsApp send.
const DefaultRateLimitScope = "whatsapp"

// DefaultRateLimitMaxWait is how long one unit may queue behind the rate limiter.
const DefaultRateLimitMaxWait = 10 * time.Second

// DispatchResult is the terminal state of one dispatch unit.
type DispatchResult string

const (
	ResultSent    DispatchResult = "sent"
	ResultFailed  DispatchResult = "failed"
	ResultSkipped DispatchResult = "skipped"
)

type DispatcherConfig struct {
	Reservations   repository.ReservationRepository
	Attempts       repository.AttemptRepository
	Recorder       *DeliveryRecorder
	Composer       *composer.Composer
	Normalizer     *phone.Normalizer
	Provider       provider.Provider
	RateLimiter    ratelimit.RateLimiter
	Locker         lock.Locker
	RateLimitScope string
	// RateLimitMaxWait bounds the limiter wait. The event is redelivered when it runs out.
	RateLimitMaxWait time.Duration
	Logger           *zap.Logger
	Metrics          *observability.Metrics
}

// Dispatcher runs one obligation to completion: lock, re-read, compose, send
// and record. It never retries a send in-process.
type Dispatcher struct {
	reservations repository.ReservationRepository
	attempts     repository.AttemptRepository
	recorder     *DeliveryRecorder
	composer     *composer.Composer
	normalizer   *phone.Normalizer
	provider     provider.Provider
	rateLimiter  ratelimit.RateLimiter
	locker       lock.Locker
	scope        string
	maxWait      time.Duration
	logger       *zap.Logger
	metrics      *observability.Metrics
	now          func() time.Time
	newID        func() string
}

func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	switch {
	case cfg.Reservations == nil:
		return nil, fmt.Errorf("reservation repository is required")
	case cfg.Attempts == nil:
		return nil, fmt.Errorf("attempt repository is required")
	case cfg.Recorder == nil:
		return nil, fmt.Errorf("delivery recorder is required")
	case cfg.Composer == nil:
		return nil, fmt.Errorf("message composer is required")
	case cfg.Provider == nil:
		return nil, fmt.Errorf("provider is required")
	case cfg.RateLimiter == nil:
		return nil, fmt.Errorf("rate limiter is required")
	case cfg.Locker == nil:
		return nil, fmt.Errorf("dispatch locker is required")
	}

	normalizer := cfg.Normalizer
	if normalizer == nil {
		normalizer = phone.NewNormalizer(phone.DefaultCountryCode)
	}
	scope := cfg.RateLimitScope
	if scope == "" {
		scope = DefaultRateLimitScope
	}
	maxWait := cfg.RateLimitMaxWait
	if maxWait <= 0 {
		maxWait = DefaultRateLimitMaxWait
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dispatcher{
		reservations: cfg.Reservations,
		attempts:     cfg.Attempts,
		recorder:     cfg.Recorder,
		composer:     cfg.Composer,
		normalizer:   normalizer,
		provider:     cfg.Provider,
		rateLimiter:  cfg.RateLimiter,
		locker:       cfg.Locker,
		scope:        scope,
		maxWait:      maxWait,
		logger:       logger,
		metrics:      cfg.Metrics,
		now:          time.Now,
		newID:        uuid.NewString,
	}, nil
}

// Dispatch returns an error only for infrastructure failures that happened
// before anything was sent, so the caller can redeliver the change event.
func (d *Dispatcher) Dispatch(ctx context.Context, ob Obligation, origin string) (DispatchResult, error) {
	if !ob.Kind.IsValid() {
		return "", fmt.Errorf("%w: invalid outcome kind %q", domain.ErrValidation, ob.Kind)
	}
	if err := ob.Reservation.Validate(); err != nil {
		return "", err
	}

	reservationID := ob.Reservation.ID
	kind := ob.Kind
	kindLabel := kind.String()
	logger := observability.WithContextLogger(d.logger, ctx).With(observability.DispatchFields(reservationID, kindLabel)...)

	d.metrics.IncDispatchInFlight(kindLabel)
	defer d.metrics.DecDispatchInFlight(kindLabel)

	// Only the re-read, compose and send run under the lock. The limiter wait
	// stays outside it so the latch check sits right before the send.
	waitCtx, cancelWait := context.WithTimeout(ctx, d.maxWait)
	err := d.rateLimiter.Wait(waitCtx, d.scope)
	cancelWait()
	if err != nil {
		return "", fmt.Errorf("rate limiter wait failed: %w", err)
	}

	lockKey := lock.DispatchKey(reservationID, kindLabel)
	token, acquired, err := d.locker.Acquire(ctx, lockKey)
	if err != nil {
		return "", fmt.Errorf("failed to acquire dispatch lock: %w", err)
	}
	if !acquired {
		logger.Info("dispatch already in flight, skipping")
		return d.skip(skipLockHeld), nil
	}
	defer func() {
		if err := d.locker.Release(context.WithoutCancel(ctx), lockKey, token); err != nil {
			logger.Warn("failed to release dispatch lock", zap.Error(err))
		}
	}()

	current, err := d.reservations.GetByID(ctx, reservationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.Info("reservation deleted, skipping dispatch")
			return d.skip(skipDeleted), nil
		}
		return "", fmt.Errorf("failed to load reservation: %w", err)
	}
	if current.Status != kind.TriggerStatus() {
		logger.Info("reservation status changed since event, skipping",
			zap.String("status", current.Status.String()),
		)
		return d.skip(skipStatusMismatch), nil
	}
	record := current.Dispatch(kind)
	if record.Sent {
		logger.Debug("notification already sent, skipping")
		return d.skip(skipAlreadySent), nil
	}

	// Outcome writes must survive shutdown once the unit is past the re-check.
	writeCtx := context.WithoutCancel(ctx)
	attemptNumber := record.Attempts + 1

	recipient := d.normalizer.Normalize(current.Phone())
	if recipient == "" {
		logger.Warn("reservation has no usable phone number")
		d.fail(writeCtx, logger, current.ID, kind, domain.ErrMissingPhone.Error(), true, "missing_phone")
		d.recordAttempt(writeCtx, logger, attemptNumber, current.ID, kind, "", origin, nil, domain.ErrMissingPhone)
		return ResultFailed, nil
	}

	payload, err := d.composer.Compose(current, kind)
	if err != nil {
		logger.Warn("failed to compose message", zap.Error(err))
		d.fail(writeCtx, logger, current.ID, kind, err.Error(), true, "invalid_payload")
		d.recordAttempt(writeCtx, logger, attemptNumber, current.ID, kind, recipient, origin, nil, err)
		return ResultFailed, nil
	}

	sendStart := d.now()
	resp, sendErr := d.provider.Send(ctx, recipient, payload)
	d.metrics.ObserveNotificationSendDuration(kindLabel, d.now().Sub(sendStart))

	d.recordAttempt(writeCtx, logger, attemptNumber, current.ID, kind, recipient, origin, resp, sendErr)

	if sendErr != nil {
		terminal := !provider.IsTransient(sendErr) && ctx.Err() == nil
		reason := "provider_error"
		if !terminal {
			reason = "transient_error"
		}
		logger.Warn("notification send failed",
			zap.Error(sendErr),
			zap.Bool("terminal", terminal),
			zap.Int("attempt", attemptNumber),
		)
		d.fail(writeCtx, logger, current.ID, kind, provider.Detail(sendErr), terminal, reason)
		return ResultFailed, nil
	}

	status, err := d.recorder.RecordSuccess(writeCtx, current.ID, kind, resp.MessageID)
	switch {
	case err != nil:
		d.metrics.IncNotificationSent(kindLabel)
		logger.Error("notification sent but outcome was not recorded",
			zap.String("providerMessageId", resp.MessageID),
			zap.Error(err),
		)
	case status == RecordAlreadyLatched:
		d.metrics.IncDispatchSkipped(skipAlreadyLatched)
		logger.Warn("duplicate notification sent, another attempt latched first",
			zap.String("providerMessageId", resp.MessageID),
			zap.Int("attempt", attemptNumber),
		)
	default:
		d.metrics.IncNotificationSent(kindLabel)
		logger.Info("notification sent",
			zap.String("providerMessageId", resp.MessageID),
			zap.String("recordStatus", string(status)),
			zap.Int("attempt", attemptNumber),
		)
	}

	return ResultSent, nil
}

func (d *Dispatcher) SetMetrics(metrics *observability.Metrics) {
	if d == nil {
		return
	}
	d.metrics = metrics
}

func (d *Dispatcher) skip(reason string) DispatchResult {
	d.metrics.IncDispatchSkipped(reason)
	return ResultSkipped
}

func (d *Dispatcher) fail(ctx context.Context, logger *zap.Logger, reservationID string, kind domain.OutcomeKind, message string, terminal bool, reason string) {
	d.metrics.IncNotificationFailed(kind.String(), reason)

	if _, err := d.recorder.RecordFailure(ctx, reservationID, kind, message, terminal); err != nil {
		logger.Error("failed to record dispatch failure", zap.Error(err))
	}
}

func (d *Dispatcher) recordAttempt(
	ctx context.Context,
	logger *zap.Logger,
	attemptNumber int,
	reservationID string,
	kind domain.OutcomeKind,
	recipient string,
	origin string,
	resp *provider.ProviderResponse,
	sendErr error,
) {
	attempt := &domain.DispatchAttempt{
		ID:            d.newID(),
		ReservationID: reservationID,
		Kind:          kind,
		AttemptNumber: attemptNumber,
		Recipient:     recipient,
		Origin:        origin,
		CreatedAt:     d.now().UTC(),
	}

	if resp != nil {
		if resp.StatusCode > 0 {
			value := resp.StatusCode
			attempt.StatusCode = &value
		}
		if resp.MessageID != "" {
			value := resp.MessageID
			attempt.ProviderMessageID = &value
		}
	}

	if sendErr != nil {
		value := provider.Detail(sendErr)
		attempt.Error = &value

		var providerErr *provider.ProviderError
		if errors.As(sendErr, &providerErr) && providerErr.StatusCode > 0 && attempt.StatusCode == nil {
			value := providerErr.StatusCode
			attempt.StatusCode = &value
		}
	}

	if err := d.attempts.Create(ctx, attempt); err != nil {
		logger.Error("failed to record dispatch attempt", zap.Error(err))
	}
}
