package httpapi

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// validPhone requires at least ten digits; separators are ignored so
// "+7 (701) 123-45-67" passes.
func validPhone(s string) bool {
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= 10
}

func validEmail(s string) bool {
	return emailPattern.MatchString(s)
}

func requireField(errs map[string]string, field, value, message string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		errs[field] = message
	}
	return value
}
