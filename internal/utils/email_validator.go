package utils

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/lindell/go-burner-email-providers/burner"
)

// EmailValidationError represents an error during email validation
type EmailValidationError struct {
	Message string
	Code    string
}

func (e EmailValidationError) Error() string {
	return e.Message
}

// NormalizeEmail trims and lowercases an address for comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateAttendeeEmail checks that email is a well formed, permanent address
// before it is checked against an event's attendee roster.
func ValidateAttendeeEmail(email string) error {
	email = strings.TrimSpace(email)

	// Reject display-name forms such as "Ada <ada@example.com>"
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return &EmailValidationError{
			Message: "Please enter a valid email address.",
			Code:    "INVALID_FORMAT",
		}
	}

	domain, err := extractDomain(email)
	if err != nil {
		return &EmailValidationError{
			Message: "Could not extract domain from email",
			Code:    "DOMAIN_EXTRACTION_ERROR",
		}
	}

	if burner.IsBurnerEmail(email) {
		return &EmailValidationError{
			Message: fmt.Sprintf("Email from disposable domain '%s' cannot be used to leave feedback. Use the address you registered with.", domain),
			Code:    "DISPOSABLE_EMAIL",
		}
	}

	return nil
}

// extractDomain extracts the domain part from an email address
func extractDomain(email string) (string, error) {
	email = strings.TrimSpace(email)
	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[1] == "" {
		return "", fmt.Errorf("invalid email format")
	}
	return strings.ToLower(parts[1]), nil
}
