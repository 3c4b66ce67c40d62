package composer

import (
	"errors"
	"testing"

	"github.com/kursadbilgin/reservation-notifier/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func scenarioReservation() *domain.Reservation {
	return &domain.Reservation{
		ID:                "res-1",
		ReservationNumber: "BS-1042",
		CustomerName:      strPtr("Ayşe Yılmaz"),
		CustomerPhone:     strPtr("05551234567"),
		Date:              "2025-12-20",
		TimeSlotDisplay:   strPtr("09:00-13:00"),
		BoatName:          strPtr("Deniz Kızı"),
		MapLink:           strPtr("https://maps.example.com/marina"),
		Status:            domain.StatusConfirmed,
	}
}

func TestFormatTurkishDate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{input: "2025-12-20", want: "20 Aralık 2025"},
		{input: "2026-02-01", want: "1 Şubat 2026"},
		{input: "2025-08-15T10:00:00Z", want: "15 Ağustos 2025"},
		{input: "03.06.2025", want: "3 Haziran 2025"},
		{input: " yarın ", want: "yarın"},
		{input: "", want: ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, FormatTurkishDate(tt.input))
		})
	}
}

func TestComposeTemplateApproval(t *testing.T) {
	t.Parallel()

	c, err := New(Config{Mode: domain.MessageModeTemplate})
	require.NoError(t, err)

	payload, err := c.Compose(scenarioReservation(), domain.KindApproval)
	require.NoError(t, err)

	assert.Equal(t, domain.MessageModeTemplate, payload.Mode)
	assert.Equal(t, DefaultApprovalTemplate, payload.TemplateName)
	assert.Equal(t, "tr", payload.LanguageCode)
	assert.Equal(t, []string{
		"Ayşe Yılmaz",
		"BS-1042",
		"20 Aralık 2025",
		"09:00-13:00",
		"Deniz Kızı",
		"https://maps.example.com/marina",
	}, payload.Parameters)
	require.NoError(t, payload.Validate())
}

func TestComposeTemplateCancellationHasNoLocation(t *testing.T) {
	t.Parallel()

	c, err := New(Config{Mode: domain.MessageModeTemplate, CancellationTemplate: "iptal_v2"})
	require.NoError(t, err)

	payload, err := c.Compose(scenarioReservation(), domain.KindCancellation)
	require.NoError(t, err)

	assert.Equal(t, "iptal_v2", payload.TemplateName)
	assert.Len(t, payload.Parameters, 5)
	assert.NotContains(t, payload.Parameters, "https://maps.example.com/marina")
}

func TestComposeTextApproval(t *testing.T) {
	t.Parallel()

	c, err := New(Config{Mode: domain.MessageModeText})
	require.NoError(t, err)

	payload, err := c.Compose(scenarioReservation(), domain.KindApproval)
	require.NoError(t, err)

	assert.Equal(t, domain.MessageModeText, payload.Mode)
	assert.Contains(t, payload.Text, "BS-1042")
	assert.Contains(t, payload.Text, "20 Aralık 2025")
	assert.Contains(t, payload.Text, "09:00-13:00")
	assert.Contains(t, payload.Text, "Deniz Kızı")
	assert.Contains(t, payload.Text, "onaylandı")
	assert.Contains(t, payload.Text, "Konum: https://maps.example.com/marina")
}

func TestComposeTextCancellation(t *testing.T) {
	t.Parallel()

	c, err := New(Config{Mode: domain.MessageModeText})
	require.NoError(t, err)

	payload, err := c.Compose(scenarioReservation(), domain.KindCancellation)
	require.NoError(t, err)

	assert.Contains(t, payload.Text, "iptal edildi")
	assert.NotContains(t, payload.Text, "Konum:")
}

func TestComposeDefaultsForMissingFields(t *testing.T) {
	t.Parallel()

	c, err := New(Config{Mode: domain.MessageModeTemplate, DefaultBoatName: "Mavi Tur"})
	require.NoError(t, err)

	payload, err := c.Compose(&domain.Reservation{ID: "res-9", BoatName: strPtr("  ")}, domain.KindApproval)
	require.NoError(t, err)

	assert.Equal(t, []string{
		defaultCustomerName,
		"res-9",
		defaultUnknownValue,
		defaultUnknownValue,
		"Mavi Tur",
		defaultLocationLink,
	}, payload.Parameters)
}

func TestComposeDefaultLocationLinkInText(t *testing.T) {
	t.Parallel()

	c, err := New(Config{Mode: domain.MessageModeText, DefaultLocationLink: "https://maps.example.com/default"})
	require.NoError(t, err)

	r := scenarioReservation()
	r.MapLink = nil

	payload, err := c.Compose(r, domain.KindApproval)
	require.NoError(t, err)
	assert.Contains(t, payload.Text, "Konum: https://maps.example.com/default")
}

func TestComposeIsDeterministic(t *testing.T) {
	t.Parallel()

	for _, mode := range []domain.MessageMode{domain.MessageModeText, domain.MessageModeTemplate} {
		c, err := New(Config{Mode: mode})
		require.NoError(t, err)

		for _, kind := range domain.OutcomeKinds {
			first, err := c.Compose(scenarioReservation(), kind)
			require.NoError(t, err)
			second, err := c.Compose(scenarioReservation(), kind)
			require.NoError(t, err)

			assert.Equal(t, first, second, "mode=%s kind=%s", mode, kind)
		}
	}
}

func TestComposeValidation(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Mode: "fax"})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	c, err := New(Config{})
	require.NoError(t, err)

	_, err = c.Compose(nil, domain.KindApproval)
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = c.Compose(scenarioReservation(), domain.OutcomeKind("reminder"))
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestComposeText(t *testing.T) {
	t.Parallel()

	c, err := New(Config{})
	require.NoError(t, err)

	payload, err := c.ComposeText("  test mesajı ")
	require.NoError(t, err)
	assert.Equal(t, domain.MessagePayload{Mode: domain.MessageModeText, Text: "test mesajı"}, payload)

	_, err = c.ComposeText(" ")
	assert.True(t, errors.Is(err, domain.ErrValidation))
}
