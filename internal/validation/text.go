// Package validation holds input rules shared by the HTTP layer and the
// lifecycle engine.
package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Length limits for free-text request fields, in characters.
const (
	MaxEventDetailsLength    = 2000
	MaxRejectionReasonLength = 500
)

// ValidateEventDetails requires a non-blank description within MaxEventDetailsLength.
func ValidateEventDetails(s string) error {
	return requiredText("event_details", s, MaxEventDetailsLength)
}

// ValidateRejectionReason requires a non-blank reason within MaxRejectionReasonLength.
func ValidateRejectionReason(s string) error {
	return requiredText("rejection_reason", s, MaxRejectionReasonLength)
}

func requiredText(field, s string, max int) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("%s is required", field)
	}
	if n := utf8.RuneCountInString(s); n > max {
		return fmt.Errorf("%s must be at most %d characters, got %d", field, max, n)
	}
	if strings.ContainsRune(s, 0) {
		return fmt.Errorf("%s contains invalid characters", field)
	}
	return nil
}
