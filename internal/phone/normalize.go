package phone

import "strings"

// DefaultCountryCode is the Turkish country calling code.
const DefaultCountryCode = "90"

const trunkPrefix = "0"

// Normalizer converts free-form phone numbers into the digits-only
// international form expected by the messaging provider.
type Normalizer struct {
	countryCode string
}

func NewNormalizer(countryCode string) *Normalizer {
	cc := digitsOnly(countryCode)
	if cc == "" {
		cc = DefaultCountryCode
	}
	return &Normalizer{countryCode: cc}
}

func (n *Normalizer) CountryCode() string {
	if n == nil {
		return DefaultCountryCode
	}
	return n.countryCode
}

// Normalize never fails; malformed input yields best-effort output and an
// empty input yields an empty string. Length is not validated.
func (n *Normalizer) Normalize(raw string) string {
	cc := n.CountryCode()

	digits := digitsOnly(raw)
	switch {
	case digits == "":
		return ""
	case strings.HasPrefix(digits, trunkPrefix):
		return cc + strings.TrimPrefix(digits, trunkPrefix)
	case strings.HasPrefix(digits, cc):
		return digits
	default:
		return cc + digits
	}
}

// Normalize uses DefaultCountryCode.
func Normalize(raw string) string {
	return NewNormalizer(DefaultCountryCode).Normalize(raw)
}

func digitsOnly(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
