package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/reservation-notifier/internal/domain"
	"go.uber.org/zap"
)

const (
	defaultWhatsAppTimeout    = 10 * time.Second
	defaultWhatsAppBaseURL    = "https://graph.facebook.com"
	defaultWhatsAppAPIVersion = "v21.0"
	messagingProduct          = "whatsapp"
)

type WhatsAppConfig struct {
	BaseURL       string
	APIVersion    string
	PhoneNumberID string
	AccessToken   string
	Timeout       time.Duration
	Logger        *zap.Logger
}

type whatsappRequest struct {
	MessagingProduct string            `json:"messaging_product"`
	To               string            `json:"to"`
	Type             string            `json:"type"`
	Text             *whatsappText     `json:"text,omitempty"`
	Template         *whatsappTemplate `json:"template,omitempty"`
}

type whatsappText struct {
	Body string `json:"body"`
}

type whatsappTemplate struct {
	Name       string              `json:"name"`
	Language   whatsappLanguage    `json:"language"`
	Components []whatsappComponent `json:"components,omitempty"`
}

type whatsappLanguage struct {
	Code string `json:"code"`
}

type whatsappComponent struct {
	Type       string              `json:"type"`
	Parameters []whatsappParameter `json:"parameters"`
}

type whatsappParameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type whatsappResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// WhatsAppProvider sends messages through the WhatsApp Business Cloud API.
type WhatsAppProvider struct {
	client   *resty.Client
	endpoint string
	logger   *zap.Logger
}

func NewWhatsAppProvider(cfg WhatsAppConfig) (*WhatsAppProvider, error) {
	client := resty.New()
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultWhatsAppTimeout
	}
	client.SetTimeout(timeout)
	client.SetRetryCount(0)

	return NewWhatsAppProviderWithClient(cfg, client)
}

func NewWhatsAppProviderWithClient(cfg WhatsAppConfig, client *resty.Client) (*WhatsAppProvider, error) {
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultWhatsAppBaseURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid whatsapp base url: %w", err)
	}

	apiVersion := strings.Trim(strings.TrimSpace(cfg.APIVersion), "/")
	if apiVersion == "" {
		apiVersion = defaultWhatsAppAPIVersion
	}

	phoneNumberID := strings.TrimSpace(cfg.PhoneNumberID)
	if phoneNumberID == "" {
		return nil, fmt.Errorf("whatsapp phone number id is required")
	}

	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return nil, fmt.Errorf("whatsapp access token is required")
	}

	if client.GetClient().Timeout == 0 {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultWhatsAppTimeout
		}
		client.SetTimeout(timeout)
	}
	client.SetRetryCount(0)
	client.SetAuthToken(token)

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WhatsAppProvider{
		client:   client,
		endpoint: fmt.Sprintf("%s/%s/%s/messages", baseURL, apiVersion, url.PathEscape(phoneNumberID)),
		logger:   logger,
	}, nil
}

func (p *WhatsAppProvider) Send(ctx context.Context, to string, payload domain.MessagePayload) (*ProviderResponse, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("provider is not initialized")
	}
	if strings.TrimSpace(to) == "" {
		return nil, fmt.Errorf("%w: recipient is required", domain.ErrValidation)
	}
	if err := payload.Validate(); err != nil {
		return nil, fmt.Errorf("invalid message payload: %w", err)
	}

	response, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(buildRequest(to, payload)).
		Post(p.endpoint)
	if err != nil {
		return nil, &ProviderError{
			Message:   "provider request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return nil, &ProviderError{
			Message:   "provider returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())

	var parsed whatsappResponse
	parseErr := json.Unmarshal(response.Body(), &parsed)

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		if parseErr != nil && responseBody != "" {
			p.logger.Debug("provider response body is not valid json",
				zap.Int("statusCode", statusCode),
				zap.String("body", responseBody),
				zap.Error(parseErr),
			)
		}
		messageID := ""
		if len(parsed.Messages) > 0 {
			messageID = strings.TrimSpace(parsed.Messages[0].ID)
		}
		if messageID == "" {
			return nil, &ProviderError{
				StatusCode: statusCode,
				Message:    "provider response missing message id",
			}
		}

		return &ProviderResponse{
			StatusCode: statusCode,
			Body:       responseBody,
			MessageID:  messageID,
		}, nil
	}

	return nil, &ProviderError{
		StatusCode: statusCode,
		Message:    providerErrorMessage(statusCode, parsed, responseBody),
		Transient:  isTransientHTTPStatus(statusCode),
	}
}

func buildRequest(to string, payload domain.MessagePayload) whatsappRequest {
	req := whatsappRequest{
		MessagingProduct: messagingProduct,
		To:               strings.TrimSpace(to),
	}

	if payload.Mode == domain.MessageModeText {
		req.Type = "text"
		req.Text = &whatsappText{Body: payload.Text}
		return req
	}

	req.Type = "template"
	req.Template = &whatsappTemplate{
		Name:     payload.TemplateName,
		Language: whatsappLanguage{Code: payload.LanguageCode},
	}
	if len(payload.Parameters) > 0 {
		params := make([]whatsappParameter, 0, len(payload.Parameters))
		for _, value := range payload.Parameters {
			params = append(params, whatsappParameter{Type: "text", Text: value})
		}
		req.Template.Components = []whatsappComponent{{Type: "body", Parameters: params}}
	}

	return req
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

func providerErrorMessage(statusCode int, parsed whatsappResponse, body string) string {
	if parsed.Error != nil {
		if msg := strings.TrimSpace(parsed.Error.Message); msg != "" {
			return msg
		}
	}

	base := fmt.Sprintf("provider returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}
