package composer

import (
	"fmt"
	"strings"

	"github.com/kursadbilgin/reservation-notifier/internal/domain"
)

const (
	DefaultApprovalTemplate     = "rezervasyon_onay"
	DefaultCancellationTemplate = "rezervasyon_iptal"
	DefaultLanguageCode         = "tr"
	DefaultBoatName             = "Tekne"

	defaultCustomerName = "Değerli Misafirimiz"
	defaultUnknownValue = "Belirtilmemiş"
	defaultLocationLink = "-"
)

type Config struct {
	Mode                 domain.MessageMode
	ApprovalTemplate     string
	CancellationTemplate string
	LanguageCode         string
	DefaultBoatName      string
	DefaultLocationLink  string
}

// Composer renders reservation notifications. Output depends only on the
// reservation and kind, so identical inputs compose byte-identical payloads.
type Composer struct {
	cfg Config
}

func New(cfg Config) (*Composer, error) {
	if cfg.Mode == "" {
		cfg.Mode = domain.MessageModeTemplate
	}
	if !cfg.Mode.IsValid() {
		return nil, fmt.Errorf("%w: invalid message mode %q", domain.ErrValidation, cfg.Mode)
	}
	if strings.TrimSpace(cfg.ApprovalTemplate) == "" {
		cfg.ApprovalTemplate = DefaultApprovalTemplate
	}
	if strings.TrimSpace(cfg.CancellationTemplate) == "" {
		cfg.CancellationTemplate = DefaultCancellationTemplate
	}
	if strings.TrimSpace(cfg.LanguageCode) == "" {
		cfg.LanguageCode = DefaultLanguageCode
	}
	if strings.TrimSpace(cfg.DefaultBoatName) == "" {
		cfg.DefaultBoatName = DefaultBoatName
	}
	if strings.TrimSpace(cfg.DefaultLocationLink) == "" {
		cfg.DefaultLocationLink = defaultLocationLink
	}

	return &Composer{cfg: cfg}, nil
}

// fields holds the display values shared by both templates, already defaulted.
type fields struct {
	customerName      string
	reservationNumber string
	date              string
	timeSlot          string
	boatName          string
	locationLink      string
	hasLocation       bool
}

func (c *Composer) Compose(r *domain.Reservation, kind domain.OutcomeKind) (domain.MessagePayload, error) {
	if r == nil {
		return domain.MessagePayload{}, fmt.Errorf("%w: reservation is required", domain.ErrValidation)
	}
	if !kind.IsValid() {
		return domain.MessagePayload{}, fmt.Errorf("%w: invalid outcome kind %q", domain.ErrValidation, kind)
	}

	f := c.fieldsFor(r)

	if c.cfg.Mode == domain.MessageModeText {
		return domain.MessagePayload{
			Mode: domain.MessageModeText,
			Text: renderText(f, kind),
		}, nil
	}

	templateName := c.cfg.ApprovalTemplate
	params := []string{f.customerName, f.reservationNumber, f.date, f.timeSlot, f.boatName}
	if kind == domain.KindApproval {
		params = append(params, f.locationLink)
	} else {
		templateName = c.cfg.CancellationTemplate
	}

	return domain.MessagePayload{
		Mode:         domain.MessageModeTemplate,
		TemplateName: templateName,
		LanguageCode: c.cfg.LanguageCode,
		Parameters:   params,
	}, nil
}

// ComposeText builds a free-text payload regardless of the configured mode.
func (c *Composer) ComposeText(body string) (domain.MessagePayload, error) {
	payload := domain.MessagePayload{Mode: domain.MessageModeText, Text: strings.TrimSpace(body)}
	if err := payload.Validate(); err != nil {
		return domain.MessagePayload{}, err
	}
	return payload, nil
}

func (c *Composer) fieldsFor(r *domain.Reservation) fields {
	f := fields{
		customerName:      valueOr(r.CustomerName, defaultCustomerName),
		reservationNumber: strings.TrimSpace(r.ReservationNumber),
		date:              FormatTurkishDate(r.Date),
		timeSlot:          valueOr(r.TimeSlotDisplay, defaultUnknownValue),
		boatName:          valueOr(r.BoatName, c.cfg.DefaultBoatName),
		locationLink:      c.cfg.DefaultLocationLink,
	}
	if f.reservationNumber == "" {
		f.reservationNumber = strings.TrimSpace(r.ID)
	}
	if f.date == "" {
		f.date = defaultUnknownValue
	}
	if link := valueOr(r.MapLink, ""); link != "" {
		f.locationLink = link
		f.hasLocation = true
	} else if f.locationLink != defaultLocationLink {
		f.hasLocation = true
	}
	return f
}

func renderText(f fields, kind domain.OutcomeKind) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Merhaba %s,\n\n", f.customerName)
	if kind == domain.KindApproval {
		fmt.Fprintf(&b, "%s numaralı rezervasyonunuz onaylandı.\n\n", f.reservationNumber)
	} else {
		fmt.Fprintf(&b, "%s numaralı rezervasyonunuz iptal edildi.\n\n", f.reservationNumber)
	}
	fmt.Fprintf(&b, "Tarih: %s\n", f.date)
	fmt.Fprintf(&b, "Saat: %s\n", f.timeSlot)
	fmt.Fprintf(&b, "Tekne: %s\n", f.boatName)

	if kind == domain.KindApproval {
		if f.hasLocation {
			fmt.Fprintf(&b, "Konum: %s\n", f.locationLink)
		}
		b.WriteString("\nİyi eğlenceler dileriz!")
	} else {
		b.WriteString("\nSorularınız için bizimle iletişime geçebilirsiniz.")
	}

	return b.String()
}

func valueOr(value *string, fallback string) string {
	if value == nil {
		return fallback
	}
	if trimmed := strings.TrimSpace(*value); trimmed != "" {
		return trimmed
	}
	return fallback
}
