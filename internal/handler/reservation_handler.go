package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/reservation-notifier/internal/service"
)

type StatusService interface {
	GetNotificationStatus(ctx context.Context, reservationID string) (*service.NotificationStatus, error)
}

type ReservationHandler struct {
	service StatusService
}

func NewReservationHandler(service StatusService) (*ReservationHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("status service is required")
	}
	return &ReservationHandler{service: service}, nil
}

func RegisterReservationRoutes(router fiber.Router, service StatusService) error {
	h, err := NewReservationHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/reservations/:id/notifications", h.GetNotificationStatus)

	return nil
}

func (h *ReservationHandler) GetNotificationStatus(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))

	status, err := h.service.GetNotificationStatus(requestContext(c), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(status)
}
