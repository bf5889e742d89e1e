package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"speakwise-feedback/internal/backend"
	"speakwise-feedback/internal/common"
	"speakwise-feedback/internal/feedback"

	"github.com/labstack/echo/v4"
)

type FeedbackHandler struct {
	common.ServerState
}

func NewFeedbackHandler(state common.ServerState) *FeedbackHandler {
	return &FeedbackHandler{ServerState: state}
}

type VerifyAttendeeRequest struct {
	Email   string `json:"email" validate:"required"`
	EventID int    `json:"event_id" validate:"gte=0"`
}

type VerifyAttendeeResponse struct {
	Verified  bool      `json:"verified"`
	Virtual   bool      `json:"virtual"`
	Email     string    `json:"email,omitempty"`
	EventID   int       `json:"event_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type SubmitFeedbackRequest struct {
	Session int `json:"session"`
	feedback.Scores
	Comments    string `json:"comments"`
	IsAnonymous bool   `json:"is_anonymous"`
}

// EditFeedbackRequest leaves the stored comment alone when comments is absent.
type EditFeedbackRequest struct {
	feedback.Scores
	Comments *string `json:"comments"`
}

// FeedbackView is a stored feedback enriched with its session summary.
type FeedbackView struct {
	ID                 int               `json:"id"`
	Session            int               `json:"session"`
	SessionTitle       string            `json:"session_title"`
	EventName          string            `json:"event_name"`
	EventDate          string            `json:"event_date"`
	Attendee           *int              `json:"attendee,omitempty"`
	Engagement         int               `json:"engagement"`
	Clarity            int               `json:"clarity"`
	ContentDepth       int               `json:"content_depth"`
	SpeakerKnowledge   int               `json:"speaker_knowledge"`
	PracticalRelevance int               `json:"practical_relevance"`
	OverallRating      int               `json:"overall_rating"`
	Comments           string            `json:"comments"`
	IsAnonymous        bool              `json:"is_anonymous"`
	IsEditable         bool              `json:"is_editable"`
	CreatedAt          backend.Timestamp `json:"created_at"`
}

// VerifyAttendee runs the verification gate and hands out a single use
// submission token.
func (h *FeedbackHandler) VerifyAttendee(c echo.Context) error {
	req := new(VerifyAttendeeRequest)
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Email is required")
	}

	identity, err := h.Gate.Verify(c.Request().Context(), req.EventID, req.Email)
	if err != nil {
		return feedbackHTTPError(err)
	}

	token, expiresAt, err := h.Verifier.Issue(identity, req.EventID)
	if err != nil {
		c.Logger().Error("Failed to sign verification token:", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to complete verification")
	}

	resp := VerifyAttendeeResponse{
		Verified:  true,
		Virtual:   identity.Virtual(),
		EventID:   req.EventID,
		Token:     token,
		ExpiresAt: expiresAt,
	}
	if verified, ok := identity.(feedback.VerifiedAttendee); ok {
		resp.Email = verified.Email
	}
	return c.JSON(http.StatusOK, resp)
}

// SubmitFeedback stores one feedback. The verification token is only spent
// once the ratings are complete; after that any outcome uses it up and the
// attendee has to verify again.
func (h *FeedbackHandler) SubmitFeedback(c echo.Context) error {
	claims, err := h.Verifier.Claims(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Please verify your attendance before leaving feedback.")
	}

	req := new(SubmitFeedbackRequest)
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	sub := feedback.Submission{
		Identity:    claims.Identity(),
		SessionID:   req.Session,
		Scores:      req.Scores,
		Comments:    req.Comments,
		IsAnonymous: req.IsAnonymous,
	}
	if err := sub.Validate(); err != nil {
		return feedbackHTTPError(err)
	}

	ctx := c.Request().Context()
	if err := h.Verifier.Consume(ctx, claims); err != nil {
		if errors.Is(err, ErrVerificationUsed) {
			return echo.NewHTTPError(http.StatusUnauthorized, "This verification was already used. Please verify your attendance again.")
		}
		c.Logger().Error("Failed to consume verification token:", err)
		return echo.NewHTTPError(http.StatusServiceUnavailable, "We could not save your feedback right now. Please try again.")
	}

	record, err := h.Feedback.Submit(ctx, sub)
	if err != nil {
		return feedbackHTTPError(err)
	}

	h.Source.Invalidate(ctx)
	return c.JSON(http.StatusCreated, record)
}

func (h *FeedbackHandler) EditFeedback(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid feedback id")
	}

	req := new(EditFeedbackRequest)
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	record, err := h.Feedback.Edit(c.Request().Context(), id, feedback.Edit{Scores: req.Scores, Comments: req.Comments})
	if err != nil {
		return feedbackHTTPError(err)
	}

	h.Source.Invalidate(c.Request().Context())
	return c.JSON(http.StatusOK, record)
}

// ListFeedback returns the caller's feedback with session summaries. The
// optional session query parameter narrows the list to one session.
func (h *FeedbackHandler) ListFeedback(c echo.Context) error {
	sessionID, err := optionalIntParam(c, "session")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid session id")
	}

	records, err := h.Source.List(c.Request().Context())
	if err != nil {
		return feedbackHTTPError(err)
	}
	records = filterBySession(records, sessionID)

	ids := make([]int, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.Session)
	}
	summaries := h.Resolver.Resolve(c.Request().Context(), ids)

	views := make([]FeedbackView, 0, len(records))
	for i := range records {
		views = append(views, newFeedbackView(&records[i], summaries[records[i].Session]))
	}
	return c.JSON(http.StatusOK, views)
}

func (h *FeedbackHandler) FeedbackTrends(c echo.Context) error {
	window, err := feedback.ParseWindow(c.QueryParam("months"))
	if err != nil {
		return feedbackHTTPError(err)
	}
	sessionID, err := optionalIntParam(c, "session")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid session id")
	}

	records, err := h.Source.List(c.Request().Context())
	if err != nil {
		return feedbackHTTPError(err)
	}

	trend := feedback.ComputeTrend(filterBySession(records, sessionID), window, time.Now())
	return c.JSON(http.StatusOK, trend)
}

// SessionSummaries resolves a comma separated list of session ids.
func (h *FeedbackHandler) SessionSummaries(c echo.Context) error {
	raw := strings.TrimSpace(c.QueryParam("ids"))
	if raw == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "ids is required")
	}

	var ids []int
	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "ids must be a comma separated list of integers")
		}
		ids = append(ids, id)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"summaries": h.Resolver.Resolve(c.Request().Context(), ids),
	})
}

func newFeedbackView(r *backend.FeedbackRecord, summary feedback.SessionSummary) FeedbackView {
	view := FeedbackView{
		ID:                 r.ID,
		Session:            r.Session,
		SessionTitle:       summary.Title,
		EventName:          summary.EventName,
		EventDate:          summary.EventDate,
		Engagement:         r.Engagement,
		Clarity:            r.Clarity,
		ContentDepth:       r.ContentDepth,
		SpeakerKnowledge:   r.SpeakerKnowledge,
		PracticalRelevance: r.PracticalRelevance,
		OverallRating:      r.OverallRating,
		Comments:           feedback.DisplayComment(r.Comments),
		IsAnonymous:        r.IsAnonymous,
		IsEditable:         r.IsEditable,
		CreatedAt:          r.CreatedAt,
	}
	if !r.IsAnonymous {
		view.Attendee = r.Attendee
	}
	return view
}

func filterBySession(records []backend.FeedbackRecord, sessionID int) []backend.FeedbackRecord {
	if sessionID == 0 {
		return records
	}
	filtered := make([]backend.FeedbackRecord, 0, len(records))
	for _, r := range records {
		if r.Session == sessionID {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

func optionalIntParam(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

// feedbackHTTPError maps pipeline errors to responses carrying the
// user-facing message.
func feedbackHTTPError(err error) *echo.HTTPError {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, feedback.ErrTransient):
		status = http.StatusServiceUnavailable
	case errors.Is(err, feedback.ErrValidationIncomplete):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, feedback.ErrDuplicateSubmission):
		status = http.StatusConflict
	case errors.Is(err, feedback.ErrVerificationRejected), errors.Is(err, feedback.ErrEditWindowClosed):
		status = http.StatusForbidden
	case errors.Is(err, feedback.ErrFeedbackNotFound):
		status = http.StatusNotFound
	case errors.Is(err, feedback.ErrInvalidSubmission), errors.Is(err, feedback.ErrUnsupportedWindow):
		status = http.StatusBadRequest
	}
	return echo.NewHTTPError(status, feedback.UserMessage(err, "Something went wrong. Please try again."))
}

// ForwardBearer requires a bearer token and passes it on to the backend
// with every call made for the request.
func ForwardBearer() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
			if !strings.HasPrefix(header, "Bearer ") || token == "" {
				return c.String(http.StatusUnauthorized, "Unauthorized")
			}

			ctx := backend.WithToken(c.Request().Context(), token)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
