package chat

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonDigits  = regexp.MustCompile(`\D`)
	yesPattern = regexp.MustCompile(`^(si|sí|s|yes|claro|correcto|afirmativo)\b`)
	noPattern  = regexp.MustCompile(`^(no|n|nop|ninguno|negativo)\b`)
)

// normalize lowercases text and strips accents so "Menú" matches "menu".
func normalize(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, text)
	if err != nil {
		out = text
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// NormalizePhone keeps only digits, the form WhatsApp uses for wa_id.
func NormalizePhone(phone string) string {
	return nonDigits.ReplaceAllString(phone, "")
}

// IsValidPhone checks for 10 to 15 digits.
func IsValidPhone(phone string) bool {
	digits := NormalizePhone(phone)
	return len(digits) >= 10 && len(digits) <= 15
}

func isYes(text string) bool {
	return yesPattern.MatchString(normalize(text))
}

func isNo(text string) bool {
	return noPattern.MatchString(normalize(text))
}

// MapURL links a coordinate pair to Google Maps.
func MapURL(lat, lng float64) string {
	return fmt.Sprintf("https://www.google.com/maps?q=%f,%f", lat, lng)
}

// words splits normalized text into bare words.
func words(text string) []string {
	return strings.FieldsFunc(normalize(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
