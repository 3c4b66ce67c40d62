package repository

import (
	"time"

	"github.com/kursadbilgin/reservation-notifier/internal/domain"
)

// DispatchColumns is one per-kind dispatch sub-record, embedded with a kind prefix.
type DispatchColumns struct {
	Sent              bool       `gorm:"not null;default:false"`
	SentAt            *time.Time `gorm:"type:timestamptz"`
	ProviderMessageID *string    `gorm:"type:varchar(255)"`
	LastError         *string    `gorm:"type:text"`
	Attempts          int        `gorm:"not null;default:0"`
	Terminal          bool       `gorm:"not null;default:false"`
}

// ReservationModel is the persistence model for the reservations table.
// The booking subsystem owns every column except the dispatch sub-records.
type ReservationModel struct {
	ID                string          `gorm:"type:varchar(64);primaryKey"`
	ReservationNumber string          `gorm:"type:varchar(64)"`
	CustomerName      *string         `gorm:"type:varchar(255)"`
	CustomerPhone     *string         `gorm:"type:varchar(64)"`
	Date              string          `gorm:"type:varchar(32)"`
	TimeSlotDisplay   *string         `gorm:"type:varchar(64)"`
	BoatName          *string         `gorm:"type:varchar(255)"`
	Destination       *string         `gorm:"type:varchar(255)"`
	MapLink           *string         `gorm:"type:text"`
	Status            domain.Status   `gorm:"type:varchar(20);not null"`
	Approval          DispatchColumns `gorm:"embedded;embeddedPrefix:approval_"`
	Cancellation      DispatchColumns `gorm:"embedded;embeddedPrefix:cancellation_"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (ReservationModel) TableName() string {
	return "reservations"
}

// DispatchAttemptModel is the persistence model for dispatch_attempts.
type DispatchAttemptModel struct {
	ID                string             `gorm:"type:uuid;primaryKey"`
	ReservationID     string             `gorm:"type:varchar(64);not null"`
	Kind              domain.OutcomeKind `gorm:"type:varchar(20);not null"`
	AttemptNumber     int                `gorm:"not null"`
	Recipient         string             `gorm:"type:varchar(32)"`
	StatusCode        *int               `gorm:"type:int"`
	ProviderMessageID *string            `gorm:"type:varchar(255)"`
	Error             *string            `gorm:"type:text"`
	Origin            string             `gorm:"type:varchar(20)"`
	CreatedAt         time.Time
}

func (DispatchAttemptModel) TableName() string {
	return "dispatch_attempts"
}

// kindPrefix maps an outcome kind to its column prefix.
func kindPrefix(kind domain.OutcomeKind) string {
	switch kind {
	case domain.KindApproval:
		return "approval_"
	case domain.KindCancellation:
		return "cancellation_"
	}
	return ""
}

func dispatchColumnsToDomain(c DispatchColumns) domain.DispatchRecord {
	return domain.DispatchRecord{
		Sent:              c.Sent,
		SentAt:            c.SentAt,
		ProviderMessageID: c.ProviderMessageID,
		LastError:         c.LastError,
		Attempts:          c.Attempts,
		Terminal:          c.Terminal,
	}
}

func reservationModelToDomain(m *ReservationModel) *domain.Reservation {
	if m == nil {
		return nil
	}

	return &domain.Reservation{
		ID:                m.ID,
		ReservationNumber: m.ReservationNumber,
		CustomerName:      m.CustomerName,
		CustomerPhone:     m.CustomerPhone,
		Date:              m.Date,
		TimeSlotDisplay:   m.TimeSlotDisplay,
		BoatName:          m.BoatName,
		Destination:       m.Destination,
		MapLink:           m.MapLink,
		Status:            m.Status,
		Approval:          dispatchColumnsToDomain(m.Approval),
		Cancellation:      dispatchColumnsToDomain(m.Cancellation),
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func attemptModelFromDomain(a *domain.DispatchAttempt) *DispatchAttemptModel {
	if a == nil {
		return nil
	}

	return &DispatchAttemptModel{
		ID:                a.ID,
		ReservationID:     a.ReservationID,
		Kind:              a.Kind,
		AttemptNumber:     a.AttemptNumber,
		Recipient:         a.Recipient,
		StatusCode:        a.StatusCode,
		ProviderMessageID: a.ProviderMessageID,
		Error:             a.Error,
		Origin:            a.Origin,
		CreatedAt:         a.CreatedAt,
	}
}

func attemptModelToDomain(m *DispatchAttemptModel) *domain.DispatchAttempt {
	if m == nil {
		return nil
	}

	return &domain.DispatchAttempt{
		ID:                m.ID,
		ReservationID:     m.ReservationID,
		Kind:              m.Kind,
		AttemptNumber:     m.AttemptNumber,
		Recipient:         m.Recipient,
		StatusCode:        m.StatusCode,
		ProviderMessageID: m.ProviderMessageID,
		Error:             m.Error,
		Origin:            m.Origin,
		CreatedAt:         m.CreatedAt,
	}
}
