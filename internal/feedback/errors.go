package feedback

import "errors"

// Error kinds. Match them with errors.Is; the concrete *Error carries the
// user-facing message and the underlying cause.
var (
	ErrVerificationRejected = errors.New("verification rejected")
	ErrValidationIncomplete = errors.New("rating incomplete")
	ErrInvalidSubmission    = errors.New("invalid submission")
	ErrDuplicateSubmission  = errors.New("duplicate feedback")
	ErrEditWindowClosed     = errors.New("feedback no longer editable")
	ErrFeedbackNotFound     = errors.New("feedback not found")
	ErrTransient            = errors.New("temporary failure")
	ErrUnsupportedWindow    = errors.New("unsupported trend window")
)

type Error struct {
	Kind    error
	Message string
	// Retryable marks failures that may succeed when repeated unchanged.
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	if target == e.Kind {
		return true
	}
	return e.Retryable && target == ErrTransient
}

// UserMessage returns the message to show for err, or fallback when err
// carries none.
func UserMessage(err error, fallback string) string {
	var fe *Error
	if errors.As(err, &fe) && fe.Message != "" {
		return fe.Message
	}
	return fallback
}

func newError(kind error, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Retryable: kind == ErrTransient, Err: cause}
}
