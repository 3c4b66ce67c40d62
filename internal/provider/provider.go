package provider

import (
	"context"

	"github.com/kursadbilgin/reservation-notifier/internal/domain"
)

// Provider is the outbound messaging port. Send performs exactly one request
// and never retries; provider rejections are returned as *ProviderError.
type Provider interface {
	Send(ctx context.Context, to string, payload domain.MessagePayload) (*ProviderResponse, error)
}

// ProviderResponse stores provider call metadata for audit and persistence.
type ProviderResponse struct {
	StatusCode int
	Body       string
	MessageID  string
}
