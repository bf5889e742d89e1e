package feedback

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"speakwise-feedback/internal/backend"

	"github.com/labstack/gommon/log"
)

// fakeStore is an in-memory backend.Store. Hooks left nil fall back to the
// default behaviour of a healthy backend.
type fakeStore struct {
	mu sync.Mutex

	attendees map[string]int
	records   []backend.FeedbackRecord
	talks     map[int]*backend.Talk
	events    map[int]*backend.Event

	verifyErr   error
	lookupErr   error
	createErr   error
	updateErr   error
	talkErrs    map[int]error
	eventErr    error
	talkCalls   map[int]int
	listCalls   int
	lastRequest *backend.CreateFeedbackRequest
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		attendees: map[string]int{},
		talks:     map[int]*backend.Talk{},
		events:    map[int]*backend.Event{},
		talkErrs:  map[int]error{},
		talkCalls: map[int]int{},
	}
}

func notFound(path string) error {
	return &backend.APIError{StatusCode: http.StatusNotFound, Method: http.MethodGet, Path: path, Body: `{"detail":"Not found."}`}
}

func (f *fakeStore) VerifyAttendee(_ context.Context, _ int, email string) (*backend.VerifyResult, error) {
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.attendees[email]; ok {
		return &backend.VerifyResult{IsAttendee: true, Message: "ok"}, nil
	}
	return &backend.VerifyResult{IsAttendee: false, Message: "Email not found in the attendee list for this event."}, nil
}

func (f *fakeStore) AttendeeIDByEmail(_ context.Context, email string) (int, error) {
	if f.lookupErr != nil {
		return 0, f.lookupErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.attendees[email]
	if !ok {
		return 0, notFound("/attendees/by-email/" + email + "/")
	}
	return id, nil
}

func (f *fakeStore) CreateFeedback(_ context.Context, req *backend.CreateFeedbackRequest) (*backend.FeedbackRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastRequest = req
	if f.createErr != nil {
		return nil, f.createErr
	}
	for _, r := range f.records {
		if r.Session == req.Session && r.Attendee != nil && req.Attendee != nil && *r.Attendee == *req.Attendee {
			return nil, &backend.APIError{
				StatusCode: http.StatusBadRequest,
				Method:     http.MethodPost,
				Path:       "/feedbacks/",
				Body:       `{"non_field_errors":["The fields session, attendee must make a unique set."]}`,
			}
		}
	}
	record := backend.FeedbackRecord{
		ID:                 len(f.records) + 1,
		Session:            req.Session,
		Attendee:           req.Attendee,
		Engagement:         req.Engagement,
		Clarity:            req.Clarity,
		ContentDepth:       req.ContentDepth,
		SpeakerKnowledge:   req.SpeakerKnowledge,
		PracticalRelevance: req.PracticalRelevance,
		OverallRating:      req.OverallRating,
		Comments:           req.Comments,
		IsAnonymous:        req.IsAnonymous,
		IsEditable:         req.IsEditable,
	}
	f.records = append(f.records, record)
	return &record, nil
}

func (f *fakeStore) UpdateFeedback(_ context.Context, id int, req *backend.UpdateFeedbackRequest) (*backend.FeedbackRecord, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.records {
		if f.records[i].ID != id {
			continue
		}
		r := &f.records[i]
		r.Engagement = req.Engagement
		r.Clarity = req.Clarity
		r.ContentDepth = req.ContentDepth
		r.SpeakerKnowledge = req.SpeakerKnowledge
		r.PracticalRelevance = req.PracticalRelevance
		r.OverallRating = req.OverallRating
		if req.SetComments {
			r.Comments = req.Comments
		}
		updated := *r
		return &updated, nil
	}
	return nil, notFound(fmt.Sprintf("/feedbacks/%d/", id))
}

func (f *fakeStore) ListFeedback(_ context.Context) ([]backend.FeedbackRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return append([]backend.FeedbackRecord(nil), f.records...), nil
}

func (f *fakeStore) GetTalk(_ context.Context, id int) (*backend.Talk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.talkCalls[id]++
	if err, ok := f.talkErrs[id]; ok {
		return nil, err
	}
	talk, ok := f.talks[id]
	if !ok {
		return nil, notFound(fmt.Sprintf("/talks/%d/", id))
	}
	return talk, nil
}

func (f *fakeStore) GetEvent(_ context.Context, id int) (*backend.Event, error) {
	if f.eventErr != nil {
		return nil, f.eventErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	event, ok := f.events[id]
	if !ok {
		return nil, notFound(fmt.Sprintf("/events/detail/%d/", id))
	}
	return event, nil
}

func quietLogger(t *testing.T) *log.Logger {
	t.Helper()
	logger := log.New("test")
	logger.SetLevel(log.OFF)
	return logger
}

func fullScores(v int) Scores {
	return Scores{Engagement: v, Clarity: v, ContentDepth: v, SpeakerKnowledge: v, PracticalRelevance: v}
}
