package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// CleanNumber removes any characters except digits, '*', '#', and a
// leading '+'. Everything after the second extension delimiter is dropped
// and the first delimiter is rewritten as '*'.
func CleanNumber(number string) string {
	var b strings.Builder
	for _, r := range number {
		switch {
		case r >= '0' && r <= '9', r == '*', r == '#', r == '+':
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	hasPlus := strings.HasPrefix(cleaned, "+")
	cleaned = strings.ReplaceAll(cleaned, "+", "")

	parts := splitExtension(cleaned)
	if len(parts) > 2 {
		parts = parts[:2]
	}
	out := strings.Join(parts, "*")
	if hasPlus {
		return "+" + out
	}
	return out
}

// splitExtension splits on '*' and '#', keeping empty segments so that
// inputs like "#123" clean to "*123".
func splitExtension(s string) []string {
	var parts []string
	var cur strings.Builder
	for _, r := range s {
		if r == '*' || r == '#' {
			parts = append(parts, cur.String())
			cur.Reset()
		} else {
			cur.WriteRune(r)
		}
	}
	return append(parts, cur.String())
}

// IsSameLocalNumber reports whether two numbers represent the same local
// line once formatting and country-code prefixes are stripped: after
// cleaning, either they are equal or the longer one ends with the shorter.
func IsSameLocalNumber(a, b string) bool {
	numberA := CleanNumber(a)
	numberB := CleanNumber(b)
	if numberA == "" || numberB == "" {
		return false
	}
	numberA = strings.TrimPrefix(numberA, "+")
	numberB = strings.TrimPrefix(numberB, "+")
	if len(numberA) == len(numberB) {
		return numberA == numberB
	}
	if len(numberA) > len(numberB) {
		return strings.HasSuffix(numberA, numberB)
	}
	return strings.HasSuffix(numberB, numberA)
}

// IsValidNumber reports whether the input parses as a valid phone number.
// Numbers without a country code are interpreted against the US region,
// matching the event source's default formatting.
func IsValidNumber(number string) bool {
	if number == "" {
		return false
	}
	parsed, err := phonenumbers.Parse(number, "US")
	if err != nil {
		return false
	}
	return phonenumbers.IsValidNumber(parsed)
}
