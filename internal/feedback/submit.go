package feedback

import (
	"context"

	"speakwise-feedback/internal/backend"

	"github.com/labstack/echo/v4"
)

// Submission is one attempt to rate a session.
type Submission struct {
	Identity    Identity
	SessionID   int
	Scores      Scores
	Comments    string
	IsAnonymous bool
}

// Edit replaces the ratings and comment of an existing feedback.
// Edit replaces the ratings of a stored feedback. A nil Comments keeps the
// stored comment; a blank one clears it.
type Edit struct {
	Scores   Scores
	Comments *string
}

// Notifier is told about every feedback stored for a verified attendee.
type Notifier interface {
	FeedbackReceived(email string, record *backend.FeedbackRecord)
}

// Service validates ratings, derives the overall score and stores exactly
// one feedback record per (attendee, session).
type Service struct {
	store             backend.Store
	virtualAttendeeID int
	notifier          Notifier
	logger            echo.Logger
}

// NewService creates a Service. virtualAttendeeID is the attendee sent for
// virtual submissions; zero sends none.
func NewService(store backend.Store, virtualAttendeeID int, logger echo.Logger) *Service {
	return &Service{
		store:             store,
		virtualAttendeeID: virtualAttendeeID,
		logger:            logger,
	}
}

func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// Submit stores the submission. Errors match one of ErrVerificationRejected,
// ErrValidationIncomplete, ErrInvalidSubmission, ErrDuplicateSubmission or
// ErrTransient.
func (s *Service) Submit(ctx context.Context, sub Submission) (*backend.FeedbackRecord, error) {
	record, err := s.submit(ctx, sub)
	submissionsTotal.WithLabelValues(submissionResult(err)).Inc()
	return record, err
}

// Validate checks everything that can be checked without the backend.
func (sub Submission) Validate() error {
	if sub.Identity == nil {
		return newError(ErrVerificationRejected, "Please verify your attendance before leaving feedback.", nil)
	}
	if sub.SessionID <= 0 {
		return newError(ErrInvalidSubmission, "Please choose the session you are rating.", nil)
	}
	return sub.Scores.Validate()
}

func (s *Service) submit(ctx context.Context, sub Submission) (*backend.FeedbackRecord, error) {
	if err := sub.Validate(); err != nil {
		return nil, err
	}

	attendee, anonymous := s.resolveAttendee(ctx, sub.Identity, sub.IsAnonymous)

	req := &backend.CreateFeedbackRequest{
		Session:            sub.SessionID,
		Attendee:           attendee,
		Engagement:         sub.Scores.Engagement,
		Clarity:            sub.Scores.Clarity,
		ContentDepth:       sub.Scores.ContentDepth,
		SpeakerKnowledge:   sub.Scores.SpeakerKnowledge,
		PracticalRelevance: sub.Scores.PracticalRelevance,
		OverallRating:      sub.Scores.Overall(),
		Comments:           NormalizeComment(sub.Comments),
		IsAnonymous:        anonymous,
		IsEditable:         true,
	}

	record, err := s.store.CreateFeedback(ctx, req)
	if err != nil {
		return nil, s.classifyCreateError(sub.SessionID, err)
	}

	s.logger.Infof("feedback %d stored for session %d", record.ID, sub.SessionID)

	if verified, ok := sub.Identity.(VerifiedAttendee); ok && s.notifier != nil {
		s.notifier.FeedbackReceived(verified.Email, record)
	}
	return record, nil
}

// resolveAttendee maps an identity to the attendee sent to the store. A
// failed lookup does not abort the submission: it is stored like a virtual
// one, keeping the caller's anonymity choice.
func (s *Service) resolveAttendee(ctx context.Context, identity Identity, anonymous bool) (*int, bool) {
	verified, ok := identity.(VerifiedAttendee)
	if !ok {
		return s.virtualAttendee(), true
	}

	id, err := s.store.AttendeeIDByEmail(ctx, verified.Email)
	if err != nil {
		if backend.IsNotFound(err) {
			s.logger.Infof("no attendee record for verified email, storing feedback without attendee")
		} else {
			s.logger.Warnf("attendee lookup failed, storing feedback without attendee: %v", err)
		}
		return s.virtualAttendee(), anonymous
	}
	return &id, anonymous
}

func (s *Service) virtualAttendee() *int {
	if s.virtualAttendeeID <= 0 {
		return nil
	}
	id := s.virtualAttendeeID
	return &id
}

func (s *Service) classifyCreateError(sessionID int, err error) error {
	switch {
	case backend.IsDuplicate(err):
		return newError(ErrDuplicateSubmission, "You have already submitted feedback for this session.", err)
	case backend.IsTransient(err):
		s.logger.Errorf("storing feedback for session %d failed: %v", sessionID, err)
		return newError(ErrTransient, "We could not save your feedback right now. Please try again.", err)
	default:
		s.logger.Warnf("feedback for session %d rejected: %v", sessionID, err)
		return newError(ErrInvalidSubmission, "Your feedback could not be saved. Please check your ratings and try again.", err)
	}
}

// Edit updates feedback id inside its edit window, recomputing the overall rating.
func (s *Service) Edit(ctx context.Context, id int, edit Edit) (*backend.FeedbackRecord, error) {
	if err := edit.Scores.Validate(); err != nil {
		return nil, err
	}

	req := &backend.UpdateFeedbackRequest{
		Engagement:         edit.Scores.Engagement,
		Clarity:            edit.Scores.Clarity,
		ContentDepth:       edit.Scores.ContentDepth,
		SpeakerKnowledge:   edit.Scores.SpeakerKnowledge,
		PracticalRelevance: edit.Scores.PracticalRelevance,
		OverallRating:      edit.Scores.Overall(),
	}
	if edit.Comments != nil {
		req.Comments = NormalizeComment(*edit.Comments)
		req.SetComments = true
	}

	record, err := s.store.UpdateFeedback(ctx, id, req)
	if err != nil {
		switch {
		case backend.IsNotFound(err):
			return nil, newError(ErrFeedbackNotFound, "Feedback not found.", err)
		case backend.IsEditWindowClosed(err):
			return nil, newError(ErrEditWindowClosed, "This feedback can no longer be edited.", err)
		case backend.IsTransient(err):
			s.logger.Errorf("updating feedback %d failed: %v", id, err)
			return nil, newError(ErrTransient, "We could not update your feedback right now. Please try again.", err)
		default:
			return nil, newError(ErrInvalidSubmission, "Your changes could not be saved. Please check your ratings and try again.", err)
		}
	}
	return record, nil
}
