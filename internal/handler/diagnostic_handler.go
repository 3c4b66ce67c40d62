package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/reservation-notifier/internal/domain"
	"github.com/kursadbilgin/reservation-notifier/internal/provider"
)

type DiagnosticService interface {
	SendTest(ctx context.Context, phoneNumber, message string) (*provider.ProviderResponse, error)
}

type DiagnosticHandler struct {
	service DiagnosticService
}

func NewDiagnosticHandler(service DiagnosticService) (*DiagnosticHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("diagnostic service is required")
	}
	return &DiagnosticHandler{service: service}, nil
}

func RegisterDiagnosticRoutes(router fiber.Router, service DiagnosticService) error {
	h, err := NewDiagnosticHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/messages/test", h.SendTest)

	return nil
}

type sendTestRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Message     string `json:"message"`
}

type sendTestResponse struct {
	Success           bool   `json:"success"`
	ProviderMessageID string `json:"providerMessageId,omitempty"`
	Error             string `json:"error,omitempty"`
}

// SendTest answers 502 with the provider's text when the send itself fails,
// so callers can tell a bad request from a rejected message.
func (h *DiagnosticHandler) SendTest(c *fiber.Ctx) error {
	var req sendTestRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.PhoneNumber) == "" || strings.TrimSpace(req.Message) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "phoneNumber and message are required")
	}

	resp, err := h.service.SendTest(requestContext(c), req.PhoneNumber, req.Message)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return toHTTPError(err)
		}
		return c.Status(fiber.StatusBadGateway).JSON(sendTestResponse{
			Success: false,
			Error:   provider.Detail(err),
		})
	}

	return c.Status(fiber.StatusOK).JSON(sendTestResponse{
		Success:           true,
		ProviderMessageID: resp.MessageID,
	})
}
