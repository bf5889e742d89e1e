package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/tidwall/gjson"
)

// RemoteClient implements Store against the conference REST API.
type RemoteClient struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
	logger     echo.Logger
}

// NewRemoteClient creates a client for baseURL. apiToken is only used when
// the request context carries no caller token.
func NewRemoteClient(baseURL, apiToken string, timeout time.Duration, logger echo.Logger) *RemoteClient {
	return &RemoteClient{
		baseURL:    baseURL,
		apiToken:   apiToken,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (c *RemoteClient) do(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding %s %s body: %w", method, path, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token := TokenFrom(ctx)
	if token == "" {
		token = c.apiToken
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s %s response: %v", ErrUnavailable, method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Method:     method,
			Path:       path,
			Body:       string(respBody),
		}
	}

	c.logger.Debugf("backend %s %s -> %d", method, path, resp.StatusCode)
	return respBody, nil
}

func (c *RemoteClient) VerifyAttendee(ctx context.Context, eventID int, email string) (*VerifyResult, error) {
	payload := map[string]interface{}{
		"email":    email,
		"event_id": eventID,
	}
	body, err := c.do(ctx, http.MethodPost, "/attendees/verify-email/", payload)
	if err != nil {
		return nil, err
	}

	result := &VerifyResult{}
	if err := json.Unmarshal(body, result); err != nil {
		return nil, fmt.Errorf("decoding verify-email response: %w", err)
	}
	return result, nil
}

func (c *RemoteClient) AttendeeIDByEmail(ctx context.Context, email string) (int, error) {
	body, err := c.do(ctx, http.MethodGet, "/attendees/by-email/"+url.PathEscape(email)+"/", nil)
	if err != nil {
		return 0, err
	}

	id := gjson.GetBytes(body, "id")
	if id.Type != gjson.Number {
		return 0, fmt.Errorf("attendee response for %s has no numeric id", email)
	}
	return int(id.Int()), nil
}

func (c *RemoteClient) CreateFeedback(ctx context.Context, req *CreateFeedbackRequest) (*FeedbackRecord, error) {
	body, err := c.do(ctx, http.MethodPost, "/feedbacks/", req)
	if err != nil {
		return nil, err
	}

	record := &FeedbackRecord{}
	if err := json.Unmarshal(body, record); err != nil {
		return nil, fmt.Errorf("decoding created feedback: %w", err)
	}
	return record, nil
}

func (c *RemoteClient) UpdateFeedback(ctx context.Context, id int, req *UpdateFeedbackRequest) (*FeedbackRecord, error) {
	body, err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/feedbacks/%d/", id), req)
	if err != nil {
		return nil, err
	}

	record := &FeedbackRecord{}
	if err := json.Unmarshal(body, record); err != nil {
		return nil, fmt.Errorf("decoding updated feedback: %w", err)
	}
	return record, nil
}

// ListFeedback accepts both a bare array and a paginated {"results": [...]} page.
func (c *RemoteClient) ListFeedback(ctx context.Context) ([]FeedbackRecord, error) {
	body, err := c.do(ctx, http.MethodGet, "/feedbacks/", nil)
	if err != nil {
		return nil, err
	}

	raw := gjson.ParseBytes(body)
	if !raw.IsArray() {
		raw = raw.Get("results")
	}
	if !raw.IsArray() {
		return nil, fmt.Errorf("unexpected feedback list payload")
	}

	records := []FeedbackRecord{}
	if err := json.Unmarshal([]byte(raw.Raw), &records); err != nil {
		return nil, fmt.Errorf("decoding feedback list: %w", err)
	}
	return records, nil
}

// GetTalk resolves a talk. The backend either inlines the event object or
// returns its bare id, depending on the serializer depth.
func (c *RemoteClient) GetTalk(ctx context.Context, id int) (*Talk, error) {
	body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/talks/%d/", id), nil)
	if err != nil {
		return nil, err
	}

	parsed := gjson.ParseBytes(body)
	talk := &Talk{
		ID:    id,
		Title: firstString(parsed, "title", "name"),
	}

	event := parsed.Get("event")
	switch {
	case event.Type == gjson.Number:
		talk.EventID = int(event.Int())
	case event.IsObject():
		talk.Event = eventFromJSON(event)
		talk.EventID = talk.Event.ID
	}
	return talk, nil
}

func (c *RemoteClient) GetEvent(ctx context.Context, id int) (*Event, error) {
	body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/events/detail/%d/", id), nil)
	if err != nil {
		return nil, err
	}

	event := eventFromJSON(gjson.ParseBytes(body))
	if event.ID == 0 {
		event.ID = id
	}
	return event, nil
}

func eventFromJSON(r gjson.Result) *Event {
	return &Event{
		ID:   int(r.Get("id").Int()),
		Name: firstString(r, "title", "name", "event_name"),
		Date: firstString(r, "date", "start_date_time", "start_date"),
	}
}

func firstString(r gjson.Result, paths ...string) string {
	for _, path := range paths {
		if v := r.Get(path); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}
