package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kursadbilgin/reservation-notifier/internal/composer"
	"github.com/kursadbilgin/reservation-notifier/internal/domain"
	"github.com/kursadbilgin/reservation-notifier/internal/lock"
	"github.com/kursadbilgin/reservation-notifier/internal/phone"
	"github.com/kursadbilgin/reservation-notifier/internal/provider"
	"github.com/kursadbilgin/reservation-notifier/internal/queue"
	"github.com/kursadbilgin/reservation-notifier/internal/ratelimit"
	"github.com/kursadbilgin/reservation-notifier/internal/repository"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2025, 12, 1, 9, 30, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

// memReservationRepo mirrors the conditional UPDATE of the SQL repository.
type memReservationRepo struct {
	mu           sync.Mutex
	reservations map[string]domain.Reservation
	getErr       error
	recordErr    error
	writes       int
}

var _ repository.ReservationRepository = (*memReservationRepo)(nil)

func newMemReservationRepo(reservations ...domain.Reservation) *memReservationRepo {
	repo := &memReservationRepo{reservations: make(map[string]domain.Reservation)}
	for _, r := range reservations {
		repo.reservations[r.ID] = r
	}
	return repo
}

func (m *memReservationRepo) put(r domain.Reservation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reservations[r.ID] = r
}

func (m *memReservationRepo) delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reservations, id)
}

func (m *memReservationRepo) snapshot(id string) domain.Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reservations[id]
}

func (m *memReservationRepo) GetByID(ctx context.Context, id string) (*domain.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.getErr != nil {
		return nil, m.getErr
	}
	r, ok := m.reservations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &r, nil
}

func (m *memReservationRepo) RecordDispatch(ctx context.Context, id string, kind domain.OutcomeKind, outcome repository.DispatchOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.recordErr != nil {
		return m.recordErr
	}
	r, ok := m.reservations[id]
	if !ok {
		return domain.ErrNotFound
	}

	record := r.Dispatch(kind)
	if record.Sent {
		return domain.ErrConflict
	}

	at := outcome.At
	record.SentAt = &at
	record.Attempts++
	if outcome.Success {
		record.Sent = true
		record.ProviderMessageID = strPtr(outcome.ProviderMessageID)
		record.LastError = nil
		record.Terminal = false
	} else {
		record.LastError = strPtr(outcome.Error)
		record.Terminal = outcome.Terminal
	}

	switch kind {
	case domain.KindApproval:
		r.Approval = record
	case domain.KindCancellation:
		r.Cancellation = record
	}
	m.reservations[id] = r
	m.writes++
	return nil
}

func (m *memReservationRepo) ListRetryCandidates(ctx context.Context, params repository.RetryCandidateParams) ([]domain.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Reservation
	for _, r := range m.reservations {
		record := r.Dispatch(params.Kind)
		if r.Status != params.Kind.TriggerStatus() || record.Sent || record.LastError == nil {
			continue
		}
		if record.Terminal {
			if !record.AwaitingPhone() || r.Phone() == "" {
				continue
			}
		} else if record.Attempts >= params.MaxAttempts {
			continue
		}
		if record.SentAt != nil && record.SentAt.After(params.SentBefore) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

type fakeReservationRepo struct {
	getByIDFn             func(ctx context.Context, id string) (*domain.Reservation, error)
	recordDispatchFn      func(ctx context.Context, id string, kind domain.OutcomeKind, outcome repository.DispatchOutcome) error
	listRetryCandidatesFn func(ctx context.Context, params repository.RetryCandidateParams) ([]domain.Reservation, error)
}

func (f *fakeReservationRepo) GetByID(ctx context.Context, id string) (*domain.Reservation, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeReservationRepo) RecordDispatch(ctx context.Context, id string, kind domain.OutcomeKind, outcome repository.DispatchOutcome) error {
	if f.recordDispatchFn != nil {
		return f.recordDispatchFn(ctx, id, kind, outcome)
	}
	return nil
}

func (f *fakeReservationRepo) ListRetryCandidates(ctx context.Context, params repository.RetryCandidateParams) ([]domain.Reservation, error) {
	if f.listRetryCandidatesFn != nil {
		return f.listRetryCandidatesFn(ctx, params)
	}
	return nil, nil
}

type fakeAttemptRepo struct {
	mu       sync.Mutex
	attempts []domain.DispatchAttempt
	createFn func(ctx context.Context, a *domain.DispatchAttempt) error
}

func (f *fakeAttemptRepo) Create(ctx context.Context, a *domain.DispatchAttempt) error {
	if f.createFn != nil {
		if err := f.createFn(ctx, a); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, *a)
	return nil
}

func (f *fakeAttemptRepo) GetByReservationID(ctx context.Context, reservationID string) ([]domain.DispatchAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.DispatchAttempt
	for _, a := range f.attempts {
		if a.ReservationID == reservationID {
			out = append(out, a)
		}
	}
	return out, nil
}

type sentMessage struct {
	to      string
	payload domain.MessagePayload
}

type fakeProvider struct {
	mu     sync.Mutex
	sent   []sentMessage
	sendFn func(ctx context.Context, to string, payload domain.MessagePayload) (*provider.ProviderResponse, error)
}

func (f *fakeProvider) Send(ctx context.Context, to string, payload domain.MessagePayload) (*provider.ProviderResponse, error) {
	f.mu.Lock()
	f.sent = append(f.sent, sentMessage{to: to, payload: payload})
	f.mu.Unlock()

	if f.sendFn != nil {
		return f.sendFn(ctx, to, payload)
	}
	return &provider.ProviderResponse{StatusCode: 200, MessageID: "wamid.default"}, nil
}

func (f *fakeProvider) calls() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

type fakeRateLimiter struct {
	allowFn func(ctx context.Context, scope string) (bool, error)
	waitFn  func(ctx context.Context, scope string) error
}

func (f *fakeRateLimiter) Allow(ctx context.Context, scope string) (bool, error) {
	if f.allowFn != nil {
		return f.allowFn(ctx, scope)
	}
	return true, nil
}

func (f *fakeRateLimiter) Wait(ctx context.Context, scope string) error {
	if f.waitFn != nil {
		return f.waitFn(ctx, scope)
	}
	return nil
}

var _ ratelimit.RateLimiter = (*fakeRateLimiter)(nil)

// fakeLocker is an in-process lock.Locker.
type fakeLocker struct {
	mu         sync.Mutex
	held       map[string]string
	acquireErr error
	released   []string
	seq        int
}

var _ lock.Locker = (*fakeLocker)(nil)

func (f *fakeLocker) Acquire(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.acquireErr != nil {
		return "", false, f.acquireErr
	}
	if f.held == nil {
		f.held = make(map[string]string)
	}
	if _, ok := f.held[key]; ok {
		return "", false, nil
	}
	f.seq++
	token := fmt.Sprintf("%s#%d", key, f.seq)
	f.held[key] = token
	return token, true, nil
}

func (f *fakeLocker) Release(ctx context.Context, key, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.held[key] == token {
		delete(f.held, key)
	}
	f.released = append(f.released, key)
	return nil
}

type fakeConsumer struct {
	consumeFn func(ctx context.Context, queue string, handler queue.MessageHandler) error
	closeFn   func() error
}

func (f *fakeConsumer) Consume(ctx context.Context, queueName string, handler queue.MessageHandler) error {
	if f.consumeFn != nil {
		return f.consumeFn(ctx, queueName, handler)
	}
	return nil
}

func (f *fakeConsumer) Close() error {
	if f.closeFn != nil {
		return f.closeFn()
	}
	return nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published []queue.ChangeEvent
	publishFn func(ctx context.Context, queueName string, event queue.ChangeEvent) error
	closeFn   func() error
}

func (f *fakePublisher) Publish(ctx context.Context, queueName string, event queue.ChangeEvent) error {
	if f.publishFn != nil {
		if err := f.publishFn(ctx, queueName, event); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, event)
	return nil
}

func (f *fakePublisher) Close() error {
	if f.closeFn != nil {
		return f.closeFn()
	}
	return nil
}

type pipeline struct {
	repo       *memReservationRepo
	attempts   *fakeAttemptRepo
	provider   *fakeProvider
	limiter    *fakeRateLimiter
	locker     *fakeLocker
	dispatcher *Dispatcher
	watcher    *ReservationWatcher
}

// newPipeline wires the dispatch path over in-memory collaborators.
func newPipeline(t testing.TB, mode domain.MessageMode, reservations ...domain.Reservation) *pipeline {
	t.Helper()

	p := &pipeline{
		repo:     newMemReservationRepo(reservations...),
		attempts: &fakeAttemptRepo{},
		provider: &fakeProvider{},
		limiter:  &fakeRateLimiter{},
		locker:   &fakeLocker{},
	}

	recorder, err := NewDeliveryRecorder(p.repo, zap.NewNop())
	if err != nil {
		t.Fatalf("NewDeliveryRecorder() error = %v", err)
	}
	recorder.now = func() time.Time { return fixedNow }

	msgComposer, err := composer.New(composer.Config{Mode: mode})
	if err != nil {
		t.Fatalf("composer.New() error = %v", err)
	}

	dispatcher, err := NewDispatcher(DispatcherConfig{
		Reservations: p.repo,
		Attempts:     p.attempts,
		Recorder:     recorder,
		Composer:     msgComposer,
		Normalizer:   phone.NewNormalizer("90"),
		Provider:     p.provider,
		RateLimiter:  p.limiter,
		Locker:       p.locker,
		Logger:       zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}
	dispatcher.now = func() time.Time { return fixedNow }
	seq := 0
	dispatcher.newID = func() string {
		seq++
		return fmt.Sprintf("attempt-%d", seq)
	}
	p.dispatcher = dispatcher

	watcher, err := NewReservationWatcher(&fakeConsumer{}, dispatcher, "", 1, zap.NewNop())
	if err != nil {
		t.Fatalf("NewReservationWatcher() error = %v", err)
	}
	p.watcher = watcher

	return p
}

func scenarioReservation(status domain.Status) domain.Reservation {
	return domain.Reservation{
		ID:                "res-1",
		ReservationNumber: "BS-1042",
		CustomerName:      strPtr("Ayşe Yılmaz"),
		CustomerPhone:     strPtr("05551234567"),
		Date:              "2025-12-20",
		TimeSlotDisplay:   strPtr("09:00-13:00"),
		BoatName:          strPtr("Deniz Kızı"),
		MapLink:           strPtr("https://maps.example.com/marina"),
		Status:            status,
	}
}

func changeEvent(id string, before, after *domain.Reservation) queue.ChangeEvent {
	reservationID := ""
	switch {
	case after != nil:
		reservationID = after.ID
	case before != nil:
		reservationID = before.ID
	}
	return queue.ChangeEvent{
		EventID:       id,
		ReservationID: reservationID,
		Before:        before,
		After:         after,
		Origin:        queue.OriginStore,
		OccurredAt:    fixedNow,
	}
}
