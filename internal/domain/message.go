package domain

import (
	"fmt"
	"strings"
)

// MessageMode selects how a message is delivered by the provider.
type MessageMode string

const (
	MessageModeTemplate MessageMode = "template"
	MessageModeText     MessageMode = "text"
)

func (m MessageMode) String() string { return string(m) }

func (m MessageMode) IsValid() bool {
	switch m {
	case MessageModeTemplate, MessageModeText:
		return true
	}
	return false
}

func ParseMessageModeFromString(s string) (MessageMode, error) {
	m := MessageMode(strings.ToLower(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", fmt.Errorf("%w: invalid message mode %q", ErrValidation, s)
	}
	return m, nil
}

// MessagePayload is a composed outbound message: either a free-text body or a
// template invocation with ordered positional parameters.
type MessagePayload struct {
	Mode         MessageMode
	Text         string
	TemplateName string
	LanguageCode string
	Parameters   []string
}

func (p MessagePayload) Validate() error {
	switch p.Mode {
	case MessageModeText:
		if strings.TrimSpace(p.Text) == "" {
			return fmt.Errorf("%w: message text is required", ErrValidation)
		}
	case MessageModeTemplate:
		if strings.TrimSpace(p.TemplateName) == "" {
			return fmt.Errorf("%w: template name is required", ErrValidation)
		}
		if strings.TrimSpace(p.LanguageCode) == "" {
			return fmt.Errorf("%w: template language is required", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: invalid message mode %q", ErrValidation, p.Mode)
	}
	return nil
}
