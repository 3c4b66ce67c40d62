package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/reservation-notifier/internal/domain"
)

// Origin identifies who produced a change event.
type Origin string

const (
	// OriginStore is a change notification emitted by the reservation store.
	OriginStore Origin = "store"
	// OriginSweep is a synthetic re-evaluation published by the retry sweep.
	OriginSweep Origin = "sweep"
)

func (o Origin) IsValid() bool {
	switch o {
	case OriginStore, OriginSweep:
		return true
	}
	return false
}

// ChangeEvent is the broker payload for one reservation document change.
// A nil Before means the document was created, a nil After means it was deleted.
type ChangeEvent struct {
	EventID       string              `json:"eventId"`
	ReservationID string              `json:"reservationId"`
	Before        *domain.Reservation `json:"before,omitempty"`
	After         *domain.Reservation `json:"after,omitempty"`
	Origin        Origin              `json:"origin,omitempty"`
	OccurredAt    time.Time           `json:"occurredAt"`
}

func (e ChangeEvent) Validate() error {
	if strings.TrimSpace(e.EventID) == "" {
		return fmt.Errorf("eventId is required")
	}
	if strings.TrimSpace(e.ReservationID) == "" {
		return fmt.Errorf("reservationId is required")
	}
	if e.Before == nil && e.After == nil {
		return fmt.Errorf("before or after snapshot is required")
	}
	if e.Origin != "" && !e.Origin.IsValid() {
		return fmt.Errorf("invalid origin %q", e.Origin)
	}

	for label, snapshot := range map[string]*domain.Reservation{"before": e.Before, "after": e.After} {
		if snapshot == nil {
			continue
		}
		if snapshot.ID != "" && snapshot.ID != e.ReservationID {
			return fmt.Errorf("%s snapshot id %q does not match reservationId %q", label, snapshot.ID, e.ReservationID)
		}
		if snapshot.Status != "" && !snapshot.Status.IsValid() {
			return fmt.Errorf("%s snapshot has invalid status %q", label, snapshot.Status)
		}
	}

	return nil
}

// Deleted reports whether the event describes a removed document.
func (e ChangeEvent) Deleted() bool {
	return e.After == nil
}

// withSnapshotIDs fills snapshot ids omitted by the producer.
func (e ChangeEvent) withSnapshotIDs() ChangeEvent {
	if e.Before != nil && e.Before.ID == "" {
		e.Before.ID = e.ReservationID
	}
	if e.After != nil && e.After.ID == "" {
		e.After.ID = e.ReservationID
	}
	return e
}
