package feedback

import (
	"context"
	"errors"
	"strings"

	"speakwise-feedback/internal/backend"
	"speakwise-feedback/internal/utils"

	"github.com/labstack/echo/v4"
)

// Identity is the result of a successful verification. It is either a
// VerifiedAttendee or a VirtualAttendee.
type Identity interface {
	// Virtual reports whether no attendee row backs this identity.
	Virtual() bool
	isIdentity()
}

// VerifiedAttendee is an attendee found on the event's uploaded roster.
type VerifiedAttendee struct {
	Email string
}

func (VerifiedAttendee) Virtual() bool { return false }
func (VerifiedAttendee) isIdentity()   {}

// VirtualAttendee joined remotely and has no roster entry. Its feedback is
// always anonymous.
type VirtualAttendee struct{}

func (VirtualAttendee) Virtual() bool { return true }
func (VirtualAttendee) isIdentity()   {}

const unavailableMessage = "We could not verify your attendance right now. Please try again."

// Gate confirms that a requester attended an event before a feedback form is
// shown. It keeps no state between calls.
type Gate struct {
	store        backend.Store
	virtualEmail string
	logger       echo.Logger
}

func NewGate(store backend.Store, virtualEmail string, logger echo.Logger) *Gate {
	return &Gate{
		store:        store,
		virtualEmail: utils.NormalizeEmail(virtualEmail),
		logger:       logger,
	}
}

// IsVirtualEmail reports whether email is the reserved virtual attendee address.
func (g *Gate) IsVirtualEmail(email string) bool {
	return g.virtualEmail != "" && utils.NormalizeEmail(email) == g.virtualEmail
}

// Verify returns the identity of email for eventID or an error matching
// ErrVerificationRejected. Backend outages additionally match ErrTransient.
func (g *Gate) Verify(ctx context.Context, eventID int, email string) (Identity, error) {
	if g.IsVirtualEmail(email) {
		return VirtualAttendee{}, nil
	}

	if eventID <= 0 {
		return nil, newError(ErrVerificationRejected, "Please choose the event you attended.", nil)
	}

	if err := utils.ValidateAttendeeEmail(email); err != nil {
		var validationErr *utils.EmailValidationError
		if errors.As(err, &validationErr) {
			return nil, newError(ErrVerificationRejected, validationErr.Message, err)
		}
		return nil, newError(ErrVerificationRejected, "Please enter a valid email address.", err)
	}

	email = strings.TrimSpace(email)
	result, err := g.store.VerifyAttendee(ctx, eventID, email)
	if err != nil {
		g.logger.Warnf("attendee verification for event %d failed: %v", eventID, err)
		if backend.IsTransient(err) {
			return nil, &Error{Kind: ErrVerificationRejected, Message: unavailableMessage, Retryable: true, Err: err}
		}
		return nil, newError(ErrVerificationRejected, "This email could not be verified for the selected event.", err)
	}

	if !result.IsAttendee {
		message := result.Message
		if message == "" {
			message = "This email is not registered as an attendee of the selected event."
		}
		return nil, newError(ErrVerificationRejected, message, nil)
	}

	return VerifiedAttendee{Email: email}, nil
}
