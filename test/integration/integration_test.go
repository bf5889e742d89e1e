//go:build integration
// +build integration

package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speakwise-feedback/internal/config"
	"speakwise-feedback/internal/handlers"
	"speakwise-feedback/internal/models"
	"speakwise-feedback/internal/server"
)

const virtualEmail = "virtual@speakwise.local"

type fixture struct {
	srv   *server.Server
	event models.Event
	talk  models.Talk
}

// setupTestServerFast creates a test server backed by a private SQLite
// in-memory database and the in-process cache, through server.Initialize().
func setupTestServerFast(t *testing.T) (*fixture, func()) {
	cfg := &config.Config{}
	cfg.Server.Port = "8080"
	cfg.Server.Host = "localhost"
	cfg.Database.DSN = fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	cfg.Database.RedisURI = ""
	cfg.Cache.TTL = time.Minute
	cfg.Feedback.VirtualEmail = virtualEmail
	cfg.Feedback.VerificationSecret = "test-secret-key-for-testing-only"
	cfg.Feedback.VerificationTTL = 15 * time.Minute
	cfg.Feedback.EnrichConcurrency = 4
	cfg.Resend.DefaultSender = "test@example.com"

	srv := server.New(cfg)
	srv.Echo.Logger.SetLevel(log.ERROR)

	err := srv.Initialize()
	require.NoError(t, err)

	f := &fixture{srv: srv}
	f.event = models.Event{Name: "GopherCon EU", Date: time.Date(2026, time.June, 16, 9, 0, 0, 0, time.UTC)}
	require.NoError(t, srv.DB.Create(&f.event).Error)
	f.talk = models.Talk{Title: "Go at Scale", SpeakerEmail: "speaker@example.com", EventID: f.event.ID}
	require.NoError(t, srv.DB.Create(&f.talk).Error)
	require.NoError(t, srv.DB.Create(&models.Attendee{EventID: f.event.ID, Email: "Ada@Example.com", FirstName: "Ada"}).Error)

	cleanup := func() {
		if srv.DB != nil {
			sqlDB, _ := srv.DB.DB()
			if sqlDB != nil {
				sqlDB.Close()
			}
		}
	}

	return f, cleanup
}

func (f *fixture) do(t *testing.T, method, path string, payload interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.srv.Echo.ServeHTTP(rec, req)

	if rec.Code >= 400 {
		t.Logf("%s %s -> %d: %s", method, path, rec.Code, rec.Body.String())
	}
	return rec
}

func (f *fixture) verify(t *testing.T, email string) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/attendees/verify", map[string]interface{}{
		"email":    email,
		"event_id": f.event.ID,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp handlers.VerifyAttendeeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func (f *fixture) submit(t *testing.T, token string, payload map[string]interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return f.do(t, http.MethodPost, "/api/feedback", payload, map[string]string{handlers.VerificationHeader: token})
}

func (f *fixture) ratings(overrides map[string]interface{}) map[string]interface{} {
	payload := map[string]interface{}{
		"session":             f.talk.ID,
		"engagement":          8,
		"clarity":             7,
		"content_depth":       9,
		"speaker_knowledge":   10,
		"practical_relevance": 6,
		"comments":            "Clear and practical.",
	}
	for k, v := range overrides {
		payload[k] = v
	}
	return payload
}

var bearer = map[string]string{"Authorization": "Bearer organizer-token"}

func TestFeedbackFlow_VerifiedAttendee(t *testing.T) {
	f, cleanup := setupTestServerFast(t)
	defer cleanup()

	token := f.verify(t, "ada@example.com")

	rec := f.submit(t, token, f.ratings(nil))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.EqualValues(t, 8, created["overall_rating"])
	assert.Equal(t, false, created["is_anonymous"])
	assert.Equal(t, true, created["is_editable"])
	assert.NotNil(t, created["attendee"])

	// The verification is spent.
	rec = f.submit(t, token, f.ratings(nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// A fresh verification cannot rate the same session twice.
	rec = f.submit(t, f.verify(t, "ada@example.com"), f.ratings(map[string]interface{}{"engagement": 2}))
	assert.Equal(t, http.StatusConflict, rec.Code)

	var count int64
	require.NoError(t, f.srv.DB.Model(&models.Feedback{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	rec = f.do(t, http.MethodGet, "/api/auth/feedback", nil, bearer)
	require.Equal(t, http.StatusOK, rec.Code)

	var views []handlers.FeedbackView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "Go at Scale", views[0].SessionTitle)
	assert.Equal(t, "GopherCon EU", views[0].EventName)
	assert.Equal(t, "2026-06-16", views[0].EventDate)
	assert.Equal(t, "Clear and practical.", views[0].Comments)

	rec = f.do(t, http.MethodGet, "/api/auth/feedback/trends?months=3", nil, bearer)
	require.Equal(t, http.StatusOK, rec.Code)

	var trend map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trend))
	assert.Equal(t, "snapshot", trend["status"])
	assert.EqualValues(t, 1, trend["records"])
}

func TestFeedbackFlow_IncompleteKeepsVerification(t *testing.T) {
	f, cleanup := setupTestServerFast(t)
	defer cleanup()

	token := f.verify(t, "ada@example.com")

	rec := f.submit(t, token, f.ratings(map[string]interface{}{"clarity": 0}))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.submit(t, token, f.ratings(map[string]interface{}{"clarity": 11}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.submit(t, token, f.ratings(nil))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestFeedbackFlow_FailedSubmissionSpendsVerification(t *testing.T) {
	f, cleanup := setupTestServerFast(t)
	defer cleanup()

	token := f.verify(t, "ada@example.com")

	rec := f.submit(t, token, f.ratings(map[string]interface{}{"session": 9999}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.submit(t, token, f.ratings(nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.submit(t, f.verify(t, "ada@example.com"), f.ratings(nil))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestFeedbackFlow_VirtualAttendee(t *testing.T) {
	f, cleanup := setupTestServerFast(t)
	defer cleanup()

	rec := f.do(t, http.MethodPost, "/api/attendees/verify", map[string]interface{}{"email": virtualEmail}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp handlers.VerifyAttendeeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Virtual)

	rec = f.submit(t, resp.Token, f.ratings(map[string]interface{}{"is_anonymous": false, "comments": "  "}))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, true, created["is_anonymous"])
	assert.Nil(t, created["attendee"])
	assert.NotContains(t, created, "comments")

	rec = f.do(t, http.MethodGet, "/api/auth/feedback", nil, bearer)
	require.Equal(t, http.StatusOK, rec.Code)

	var views []handlers.FeedbackView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "No comments provided", views[0].Comments)
	assert.Nil(t, views[0].Attendee)
}

func TestVerifyAttendee_Rejected(t *testing.T) {
	f, cleanup := setupTestServerFast(t)
	defer cleanup()

	tests := []struct {
		name    string
		payload map[string]interface{}
		want    int
	}{
		{"not on roster", map[string]interface{}{"email": "grace@example.com", "event_id": f.event.ID}, http.StatusForbidden},
		{"wrong event", map[string]interface{}{"email": "ada@example.com", "event_id": f.event.ID + 100}, http.StatusForbidden},
		{"disposable", map[string]interface{}{"email": "someone@mailinator.com", "event_id": f.event.ID}, http.StatusForbidden},
		{"missing email", map[string]interface{}{"event_id": f.event.ID}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/attendees/verify", tt.payload, nil)
			assert.Equal(t, tt.want, rec.Code)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestSubmitFeedback_RequiresVerification(t *testing.T) {
	f, cleanup := setupTestServerFast(t)
	defer cleanup()

	rec := f.do(t, http.MethodPost, "/api/feedback", f.ratings(nil), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.submit(t, "forged.token.value", f.ratings(nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEditFeedback(t *testing.T) {
	f, cleanup := setupTestServerFast(t)
	defer cleanup()

	rec := f.submit(t, f.verify(t, "ada@example.com"), f.ratings(nil))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := int(created["id"].(float64))

	rec = f.do(t, http.MethodPatch, fmt.Sprintf("/api/auth/feedback/%d", id), map[string]interface{}{
		"engagement":          10,
		"clarity":             10,
		"content_depth":       9,
		"speaker_knowledge":   9,
		"practical_relevance": 9,
	}, bearer)
	require.Equal(t, http.StatusOK, rec.Code)

	var updated map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.EqualValues(t, 9, updated["overall_rating"])
	assert.Equal(t, "Clear and practical.", updated["comments"], "a ratings-only edit keeps the comment")

	// Close the edit window.
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, f.srv.DB.Model(&models.Feedback{}).Where("id = ?", id).Update("created_at", past).Error)

	rec = f.do(t, http.MethodPatch, fmt.Sprintf("/api/auth/feedback/%d", id), f.ratings(nil), bearer)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPatch, "/api/auth/feedback/9999", f.ratings(nil), bearer)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListFeedback_ReflectsChanges(t *testing.T) {
	f, cleanup := setupTestServerFast(t)
	defer cleanup()

	list := func() []handlers.FeedbackView {
		rec := f.do(t, http.MethodGet, "/api/auth/feedback", nil, bearer)
		require.Equal(t, http.StatusOK, rec.Code)
		var views []handlers.FeedbackView
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
		return views
	}

	assert.Empty(t, list())

	rec := f.submit(t, f.verify(t, "ada@example.com"), f.ratings(nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	var created map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := int(created["id"].(float64))

	views := list()
	require.Len(t, views, 1)
	assert.Equal(t, "Clear and practical.", views[0].Comments)

	rec = f.do(t, http.MethodPost, "/api/attendees/verify", map[string]interface{}{"email": virtualEmail}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var virtual handlers.VerifyAttendeeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &virtual))
	rec = f.submit(t, virtual.Token, f.ratings(nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, list(), 2)

	rec = f.do(t, http.MethodPatch, fmt.Sprintf("/api/auth/feedback/%d", id), f.ratings(map[string]interface{}{"comments": "Even better in hindsight."}), bearer)
	require.Equal(t, http.StatusOK, rec.Code)
	for _, view := range list() {
		if view.ID == id {
			assert.Equal(t, "Even better in hindsight.", view.Comments)
		}
	}
}

func TestSessionSummaries(t *testing.T) {
	f, cleanup := setupTestServerFast(t)
	defer cleanup()

	rec := f.do(t, http.MethodGet, fmt.Sprintf("/api/auth/sessions/summaries?ids=%d,9999,%d", f.talk.ID, f.talk.ID), nil, bearer)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Summaries map[string]struct {
			Title       string `json:"title"`
			EventName   string `json:"event_name"`
			EventDate   string `json:"event_date"`
			Placeholder bool   `json:"placeholder"`
		} `json:"summaries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Summaries, 2)

	known := resp.Summaries[fmt.Sprint(f.talk.ID)]
	assert.Equal(t, "Go at Scale", known.Title)
	assert.False(t, known.Placeholder)

	missing := resp.Summaries["9999"]
	assert.True(t, missing.Placeholder)
	assert.Equal(t, "TBA", missing.EventDate)
	assert.NotEmpty(t, missing.Title)

	rec = f.do(t, http.MethodGet, "/api/auth/sessions/summaries?ids=1,abc", nil, bearer)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProtectedRoutes(t *testing.T) {
	f, cleanup := setupTestServerFast(t)
	defer cleanup()

	rec := f.do(t, http.MethodGet, "/api/auth/feedback", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/auth/feedback/trends?months=5", nil, bearer)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/auth/feedback/trends", nil, bearer)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"no_data"`)

	rec = f.do(t, http.MethodGet, "/api/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
