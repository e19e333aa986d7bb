package domain

import (
	"regexp"
	"strings"
)

var localMobile = regexp.MustCompile(`^01[3-9]\d{8}$`)

// NormalizePhone keeps digits only and collapses the 880-prefixed 13-digit
// form and the bare 10-digit form to the 11-digit local form.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	switch {
	case len(digits) == 13 && strings.HasPrefix(digits, "880"):
		return "0" + digits[3:]
	case len(digits) == 10 && strings.HasPrefix(digits, "1"):
		return "0" + digits
	}
	return digits
}

// IsValidMobile reports whether raw normalizes to a local mobile number.
func IsValidMobile(raw string) bool {
	return localMobile.MatchString(NormalizePhone(raw))
}
