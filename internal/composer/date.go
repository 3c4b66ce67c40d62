package composer

import (
	"fmt"
	"strings"
	"time"
)

var turkishMonths = [...]string{
	"Ocak", "Şubat", "Mart", "Nisan", "Mayıs", "Haziran",
	"Temmuz", "Ağustos", "Eylül", "Ekim", "Kasım", "Aralık",
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"02.01.2006",
}

// FormatTurkishDate renders a stored reservation date as "20 Aralık 2025".
// Unparseable values are returned trimmed and unchanged.
func FormatTurkishDate(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, trimmed)
		if err != nil {
			continue
		}
		return fmt.Sprintf("%d %s %d", t.Day(), turkishMonths[t.Month()-1], t.Year())
	}

	return trimmed
}
