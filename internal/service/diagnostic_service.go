package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/kursadbilgin/reservation-notifier/internal/composer"
	"github.com/kursadbilgin/reservation-notifier/internal/domain"
	"github.com/kursadbilgin/reservation-notifier/internal/phone"
	"github.com/kursadbilgin/reservation-notifier/internal/provider"
	"github.com/kursadbilgin/reservation-notifier/internal/ratelimit"
	"go.uber.org/zap"
)

// DiagnosticService sends free-text test messages outside the reservation flow.
type DiagnosticService struct {
	composer    *composer.Composer
	normalizer  *phone.Normalizer
	provider    provider.Provider
	rateLimiter ratelimit.RateLimiter
	scope       string
	logger      *zap.Logger
}

func NewDiagnosticService(
	composer *composer.Composer,
	normalizer *phone.Normalizer,
	provider provider.Provider,
	rateLimiter ratelimit.RateLimiter,
	logger *zap.Logger,
) (*DiagnosticService, error) {
	if composer == nil {
		return nil, fmt.Errorf("message composer is required")
	}
	if provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if normalizer == nil {
		normalizer = phone.NewNormalizer(phone.DefaultCountryCode)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DiagnosticService{
		composer:    composer,
		normalizer:  normalizer,
		provider:    provider,
		rateLimiter: rateLimiter,
		scope:       DefaultRateLimitScope,
		logger:      logger,
	}, nil
}

// SendTest returns domain.ErrValidation for unusable input and the provider
// error untouched otherwise.
func (s *DiagnosticService) SendTest(ctx context.Context, phoneNumber, message string) (*provider.ProviderResponse, error) {
	if strings.TrimSpace(phoneNumber) == "" {
		return nil, fmt.Errorf("%w: phoneNumber is required", domain.ErrValidation)
	}

	recipient := s.normalizer.Normalize(phoneNumber)
	if recipient == "" {
		return nil, fmt.Errorf("%w: phoneNumber has no digits", domain.ErrValidation)
	}

	payload, err := s.composer.ComposeText(message)
	if err != nil {
		return nil, err
	}

	if s.rateLimiter != nil {
		if err := s.rateLimiter.Wait(ctx, s.scope); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	resp, err := s.provider.Send(ctx, recipient, payload)
	if err != nil {
		s.logger.Warn("diagnostic message failed",
			zap.String("recipient", recipient),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("diagnostic message sent",
		zap.String("recipient", recipient),
		zap.String("providerMessageId", resp.MessageID),
	)
	return resp, nil
}
