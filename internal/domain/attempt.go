package domain

import "time"

// DispatchAttempt records a single delivery attempt for a reservation notification.
type DispatchAttempt struct {
	ID                string      `json:"id"`
	ReservationID     string      `json:"reservationId"`
	Kind              OutcomeKind `json:"kind"`
	AttemptNumber     int         `json:"attemptNumber"`
	Recipient         string      `json:"recipient,omitempty"`
	StatusCode        *int        `json:"statusCode,omitempty"`
	ProviderMessageID *string     `json:"providerMessageId,omitempty"`
	Error             *string     `json:"error,omitempty"`
	Origin            string      `json:"origin"`
	CreatedAt         time.Time   `json:"createdAt"`
}
