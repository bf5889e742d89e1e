package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"time"
)

// Store is everything the feedback pipeline needs from the conference
// backend. RemoteClient talks to the REST API, LocalStore to a gorm database.
type Store interface {
	VerifyAttendee(ctx context.Context, eventID int, email string) (*VerifyResult, error)
	AttendeeIDByEmail(ctx context.Context, email string) (int, error)
	CreateFeedback(ctx context.Context, req *CreateFeedbackRequest) (*FeedbackRecord, error)
	UpdateFeedback(ctx context.Context, id int, req *UpdateFeedbackRequest) (*FeedbackRecord, error)
	ListFeedback(ctx context.Context) ([]FeedbackRecord, error)
	GetTalk(ctx context.Context, id int) (*Talk, error)
	GetEvent(ctx context.Context, id int) (*Event, error)
}

type VerifyResult struct {
	IsAttendee bool   `json:"is_attendee"`
	Message    string `json:"message"`
}

// FeedbackRecord is a stored rating of one session by one attendee.
type FeedbackRecord struct {
	ID                 int       `json:"id"`
	Session            int       `json:"session"`
	Attendee           *int      `json:"attendee"`
	Engagement         int       `json:"engagement"`
	Clarity            int       `json:"clarity"`
	ContentDepth       int       `json:"content_depth"`
	SpeakerKnowledge   int       `json:"speaker_knowledge"`
	PracticalRelevance int       `json:"practical_relevance"`
	OverallRating      int       `json:"overall_rating"`
	Comments           *string   `json:"comments,omitempty"`
	IsAnonymous        bool      `json:"is_anonymous"`
	IsEditable         bool      `json:"is_editable"`
	CreatedAt          Timestamp `json:"created_at"`
	UpdatedAt          Timestamp `json:"updated_at"`
}

type CreateFeedbackRequest struct {
	Session            int     `json:"session"`
	Attendee           *int    `json:"attendee"`
	Engagement         int     `json:"engagement"`
	Clarity            int     `json:"clarity"`
	ContentDepth       int     `json:"content_depth"`
	SpeakerKnowledge   int     `json:"speaker_knowledge"`
	PracticalRelevance int     `json:"practical_relevance"`
	OverallRating      int     `json:"overall_rating"`
	Comments           *string `json:"comments,omitempty"`
	IsAnonymous        bool    `json:"is_anonymous"`
	IsEditable         bool    `json:"is_editable"`
}

// UpdateFeedbackRequest is sent as a PATCH. The comment is only touched when
// SetComments is true, and then a nil Comments clears it.
type UpdateFeedbackRequest struct {
	Engagement         int     `json:"engagement"`
	Clarity            int     `json:"clarity"`
	ContentDepth       int     `json:"content_depth"`
	SpeakerKnowledge   int     `json:"speaker_knowledge"`
	PracticalRelevance int     `json:"practical_relevance"`
	OverallRating      int     `json:"overall_rating"`
	Comments           *string `json:"-"`
	SetComments        bool    `json:"-"`
}

func (r UpdateFeedbackRequest) MarshalJSON() ([]byte, error) {
	type fields UpdateFeedbackRequest
	if !r.SetComments {
		return json.Marshal(fields(r))
	}
	return json.Marshal(struct {
		fields
		Comments *string `json:"comments"`
	}{fields(r), r.Comments})
}

// Talk is a scheduled session. Event is set when the backend inlined the
// event object; otherwise only EventID is known.
type Talk struct {
	ID      int
	Title   string
	EventID int
	Event   *Event
}

type Event struct {
	ID   int
	Name string
	Date string
}

// Timestamp tolerates missing or malformed values coming from the backend.
// Valid is false whenever the value could not be parsed.
type Timestamp struct {
	Time  time.Time
	Valid bool
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t, Valid: !t.IsZero()}
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	*t = Timestamp{}
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		// numbers, objects and other junk are kept as invalid rather than
		// failing the whole list decode
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			*t = Timestamp{Time: parsed, Valid: true}
			return nil
		}
	}
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if !t.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

type tokenKey struct{}

// WithToken attaches the caller's bearer token to ctx so that backend calls
// are made on the caller's behalf.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func TokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}
