package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle state of a reservation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

func ParseStatusFromString(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid status %q", ErrValidation, s)
	}
	return st, nil
}

// OutcomeKind selects which notification applies to a status transition.
type OutcomeKind string

const (
	KindApproval     OutcomeKind = "approval"
	KindCancellation OutcomeKind = "cancellation"
)

// OutcomeKinds lists every kind the pipeline evaluates, in evaluation order.
var OutcomeKinds = []OutcomeKind{KindApproval, KindCancellation}

func (k OutcomeKind) String() string { return string(k) }

func (k OutcomeKind) IsValid() bool {
	switch k {
	case KindApproval, KindCancellation:
		return true
	}
	return false
}

func ParseOutcomeKindFromString(s string) (OutcomeKind, error) {
	k := OutcomeKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", fmt.Errorf("%w: invalid outcome kind %q", ErrValidation, s)
	}
	return k, nil
}

// TriggerStatus returns the status a reservation must enter for the kind to be owed.
func (k OutcomeKind) TriggerStatus() Status {
	switch k {
	case KindApproval:
		return StatusConfirmed
	case KindCancellation:
		return StatusCancelled
	}
	return ""
}

// DispatchRecord is the durable outcome of dispatching one kind for a reservation.
// Sent is a latch: once true it is never reset.
type DispatchRecord struct {
	Sent              bool       `json:"sent"`
	SentAt            *time.Time `json:"sentAt,omitempty"`
	ProviderMessageID *string    `json:"providerMessageId,omitempty"`
	LastError         *string    `json:"lastError,omitempty"`
	Attempts          int        `json:"attempts,omitempty"`
	Terminal          bool       `json:"terminal,omitempty"`
}

// AwaitingPhone reports a terminal failure caused by a missing phone number.
// It is the only terminal failure an operator edit can clear.
func (d DispatchRecord) AwaitingPhone() bool {
	return !d.Sent && d.Terminal && d.LastError != nil && *d.LastError == ErrMissingPhone.Error()
}

// Reservation is the slice of a booking record the notification pipeline reads.
type Reservation struct {
	ID                string         `json:"id"`
	ReservationNumber string         `json:"reservationNumber"`
	CustomerName      *string        `json:"customerName,omitempty"`
	CustomerPhone     *string        `json:"phone,omitempty"`
	Date              string         `json:"date"`
	TimeSlotDisplay   *string        `json:"timeSlotDisplay,omitempty"`
	BoatName          *string        `json:"boatName,omitempty"`
	Destination       *string        `json:"destination,omitempty"`
	MapLink           *string        `json:"mapLink,omitempty"`
	Status            Status         `json:"status"`
	Approval          DispatchRecord `json:"whatsappApproval"`
	Cancellation      DispatchRecord `json:"whatsappCancellation"`
	CreatedAt         time.Time      `json:"createdAt,omitempty"`
	UpdatedAt         time.Time      `json:"updatedAt,omitempty"`
}

// Dispatch returns the dispatch record for kind.
func (r *Reservation) Dispatch(kind OutcomeKind) DispatchRecord {
	if r == nil {
		return DispatchRecord{}
	}
	switch kind {
	case KindApproval:
		return r.Approval
	case KindCancellation:
		return r.Cancellation
	}
	return DispatchRecord{}
}

// Phone returns the trimmed raw phone number, or "" when absent.
func (r *Reservation) Phone() string {
	if r == nil || r.CustomerPhone == nil {
		return ""
	}
	return strings.TrimSpace(*r.CustomerPhone)
}

func (r *Reservation) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: reservation is required", ErrValidation)
	}
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("%w: reservation id is required", ErrValidation)
	}
	if r.Status != "" && !r.Status.IsValid() {
		return fmt.Errorf("%w: invalid status %q", ErrValidation, r.Status)
	}
	return nil
}
