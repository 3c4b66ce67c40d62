package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/kursadbilgin/reservation-notifier/internal/domain"
	"github.com/kursadbilgin/reservation-notifier/internal/repository"
)

// NotificationStatus is the dispatch history of one reservation.
type NotificationStatus struct {
	ReservationID     string                   `json:"reservationId"`
	ReservationNumber string                   `json:"reservationNumber"`
	Status            domain.Status            `json:"status"`
	Approval          domain.DispatchRecord    `json:"whatsappApproval"`
	Cancellation      domain.DispatchRecord    `json:"whatsappCancellation"`
	Attempts          []domain.DispatchAttempt `json:"attempts"`
}

type StatusService struct {
	reservations repository.ReservationRepository
	attempts     repository.AttemptRepository
}

func NewStatusService(reservations repository.ReservationRepository, attempts repository.AttemptRepository) (*StatusService, error) {
	if reservations == nil {
		return nil, fmt.Errorf("reservation repository is required")
	}
	if attempts == nil {
		return nil, fmt.Errorf("attempt repository is required")
	}
	return &StatusService{reservations: reservations, attempts: attempts}, nil
}

func (s *StatusService) GetNotificationStatus(ctx context.Context, reservationID string) (*NotificationStatus, error) {
	reservationID = strings.TrimSpace(reservationID)
	if reservationID == "" {
		return nil, fmt.Errorf("%w: reservation id is required", domain.ErrValidation)
	}

	reservation, err := s.reservations.GetByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}

	attempts, err := s.attempts.GetByReservationID(ctx, reservationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load dispatch attempts: %w", err)
	}
	if attempts == nil {
		attempts = []domain.DispatchAttempt{}
	}

	return &NotificationStatus{
		ReservationID:     reservation.ID,
		ReservationNumber: reservation.ReservationNumber,
		Status:            reservation.Status,
		Approval:          reservation.Approval,
		Cancellation:      reservation.Cancellation,
		Attempts:          attempts,
	}, nil
}
