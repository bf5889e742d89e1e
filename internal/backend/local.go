package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"speakwise-feedback/internal/models"

	"gorm.io/gorm"
)

// LocalStore implements Store on top of a gorm database. It answers with the
// same status codes and error bodies as the REST backend so that callers
// classify failures identically in both modes.
type LocalStore struct {
	DB  *gorm.DB
	now func() time.Time
}

func NewLocalStore(db *gorm.DB) *LocalStore {
	return &LocalStore{DB: db, now: time.Now}
}

// Migrate creates the tables backing the local store.
func (s *LocalStore) Migrate() error {
	return s.DB.AutoMigrate(
		&models.Event{},
		&models.Talk{},
		&models.Attendee{},
		&models.Feedback{},
	)
}

func storeError(method, path string, status int, body string) *APIError {
	return &APIError{StatusCode: status, Method: method, Path: path, Body: body}
}

func (s *LocalStore) VerifyAttendee(ctx context.Context, eventID int, email string) (*VerifyResult, error) {
	_, err := models.GetAttendeeForEvent(s.DB.WithContext(ctx), uint(eventID), email)
	if errors.Is(err, models.ErrNotFound) {
		return &VerifyResult{IsAttendee: false, Message: "Email not found in the attendee list for this event."}, nil
	}
	if err != nil {
		return nil, storeError(http.MethodPost, "/attendees/verify-email/", http.StatusInternalServerError, err.Error())
	}
	return &VerifyResult{IsAttendee: true, Message: "Attendee verified."}, nil
}

func (s *LocalStore) AttendeeIDByEmail(ctx context.Context, email string) (int, error) {
	path := "/attendees/by-email/" + email + "/"
	attendee, err := models.GetAttendeeByEmail(s.DB.WithContext(ctx), email)
	if errors.Is(err, models.ErrNotFound) {
		return 0, storeError(http.MethodGet, path, http.StatusNotFound, `{"detail":"Not found."}`)
	}
	if err != nil {
		return 0, storeError(http.MethodGet, path, http.StatusInternalServerError, err.Error())
	}
	return int(attendee.ID), nil
}

func (s *LocalStore) CreateFeedback(ctx context.Context, req *CreateFeedbackRequest) (*FeedbackRecord, error) {
	const path = "/feedbacks/"
	db := s.DB.WithContext(ctx)

	if _, err := models.GetTalkByID(db, uint(req.Session)); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			body := fmt.Sprintf(`{"session":["Invalid pk \"%d\" - object does not exist."]}`, req.Session)
			return nil, storeError(http.MethodPost, path, http.StatusBadRequest, body)
		}
		return nil, storeError(http.MethodPost, path, http.StatusInternalServerError, err.Error())
	}

	feedback := &models.Feedback{
		SessionID:          uint(req.Session),
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
	if req.Attendee != nil {
		attendeeID := uint(*req.Attendee)
		feedback.AttendeeID = &attendeeID
	}

	result := db.Create(feedback)
	if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
		return nil, storeError(http.MethodPost, path, http.StatusBadRequest,
			`{"non_field_errors":["The fields session, attendee must make a unique set."]}`)
	}
	if result.Error != nil {
		return nil, storeError(http.MethodPost, path, http.StatusInternalServerError, result.Error.Error())
	}

	return recordFromModel(feedback), nil
}

func (s *LocalStore) UpdateFeedback(ctx context.Context, id int, req *UpdateFeedbackRequest) (*FeedbackRecord, error) {
	path := fmt.Sprintf("/feedbacks/%d/", id)
	db := s.DB.WithContext(ctx)

	feedback, err := models.GetFeedbackByID(db, uint(id))
	if errors.Is(err, models.ErrNotFound) {
		return nil, storeError(http.MethodPatch, path, http.StatusNotFound, `{"detail":"Not found."}`)
	}
	if err != nil {
		return nil, storeError(http.MethodPatch, path, http.StatusInternalServerError, err.Error())
	}

	if !feedback.CanEdit(s.now()) {
		return nil, storeError(http.MethodPatch, path, http.StatusForbidden,
			`{"detail":"This feedback can no longer be edited."}`)
	}

	feedback.Engagement = req.Engagement
	feedback.Clarity = req.Clarity
	feedback.ContentDepth = req.ContentDepth
	feedback.SpeakerKnowledge = req.SpeakerKnowledge
	feedback.PracticalRelevance = req.PracticalRelevance
	feedback.OverallRating = req.OverallRating
	if req.SetComments {
		feedback.Comments = req.Comments
	}

	if err := db.Save(feedback).Error; err != nil {
		return nil, storeError(http.MethodPatch, path, http.StatusInternalServerError, err.Error())
	}
	return recordFromModel(feedback), nil
}

func (s *LocalStore) ListFeedback(ctx context.Context) ([]FeedbackRecord, error) {
	var rows []models.Feedback
	if err := s.DB.WithContext(ctx).Order("created_at").Find(&rows).Error; err != nil {
		return nil, storeError(http.MethodGet, "/feedbacks/", http.StatusInternalServerError, err.Error())
	}

	records := make([]FeedbackRecord, 0, len(rows))
	for i := range rows {
		records = append(records, *recordFromModel(&rows[i]))
	}
	return records, nil
}

func (s *LocalStore) GetTalk(ctx context.Context, id int) (*Talk, error) {
	path := fmt.Sprintf("/talks/%d/", id)
	talk, err := models.GetTalkByID(s.DB.WithContext(ctx), uint(id))
	if errors.Is(err, models.ErrNotFound) {
		return nil, storeError(http.MethodGet, path, http.StatusNotFound, `{"detail":"Not found."}`)
	}
	if err != nil {
		return nil, storeError(http.MethodGet, path, http.StatusInternalServerError, err.Error())
	}

	result := &Talk{ID: int(talk.ID), Title: talk.Title, EventID: int(talk.EventID)}
	if talk.Event != nil {
		result.Event = eventFromModel(talk.Event)
	}
	return result, nil
}

func (s *LocalStore) GetEvent(ctx context.Context, id int) (*Event, error) {
	path := fmt.Sprintf("/events/detail/%d/", id)
	event, err := models.GetEventByID(s.DB.WithContext(ctx), uint(id))
	if errors.Is(err, models.ErrNotFound) {
		return nil, storeError(http.MethodGet, path, http.StatusNotFound, `{"detail":"Not found."}`)
	}
	if err != nil {
		return nil, storeError(http.MethodGet, path, http.StatusInternalServerError, err.Error())
	}
	return eventFromModel(event), nil
}

func eventFromModel(e *models.Event) *Event {
	event := &Event{ID: int(e.ID), Name: e.Name}
	if !e.Date.IsZero() {
		event.Date = e.Date.Format("2006-01-02")
	}
	return event
}

func recordFromModel(f *models.Feedback) *FeedbackRecord {
	record := &FeedbackRecord{
		ID:                 int(f.ID),
		Session:            int(f.SessionID),
		Engagement:         f.Engagement,
		Clarity:            f.Clarity,
		ContentDepth:       f.ContentDepth,
		SpeakerKnowledge:   f.SpeakerKnowledge,
		PracticalRelevance: f.PracticalRelevance,
		OverallRating:      f.OverallRating,
		Comments:           f.Comments,
		IsAnonymous:        f.IsAnonymous,
		IsEditable:         f.IsEditable,
		CreatedAt:          NewTimestamp(f.CreatedAt),
		UpdatedAt:          NewTimestamp(f.UpdatedAt),
	}
	if f.AttendeeID != nil {
		attendeeID := int(*f.AttendeeID)
		record.Attendee = &attendeeID
	}
	return record
}
