package backend

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrUnavailable wraps every transport level failure (DNS, refused
// connections, timeouts) so callers can treat them as retryable.
var ErrUnavailable = errors.New("backend unavailable")

// APIError is a non-2xx answer from the backend.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend %s %s returned %d: %s", e.Method, e.Path, e.StatusCode, truncate(e.Body, 200))
}

// Markers the backend puts in a 400 body when the (attendee, session)
// uniqueness constraint rejected a create.
var duplicateMarkers = []string{
	"unique set",
	"already exists",
	"already submitted",
	"duplicate",
	"unique constraint",
}

var editWindowMarkers = []string{
	"no longer be edited",
	"edit window",
	"not editable",
}

func asAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func IsNotFound(err error) bool {
	apiErr, ok := asAPIError(err)
	return ok && apiErr.StatusCode == http.StatusNotFound
}

func IsDuplicate(err error) bool {
	apiErr, ok := asAPIError(err)
	if !ok {
		return false
	}
	if apiErr.StatusCode == http.StatusConflict {
		return true
	}
	return apiErr.StatusCode == http.StatusBadRequest && containsAny(apiErr.Body, duplicateMarkers)
}

func IsEditWindowClosed(err error) bool {
	apiErr, ok := asAPIError(err)
	if !ok {
		return false
	}
	if apiErr.StatusCode == http.StatusForbidden {
		return true
	}
	return apiErr.StatusCode == http.StatusBadRequest && containsAny(apiErr.Body, editWindowMarkers)
}

// IsTransient reports whether retrying the same call later may succeed.
func IsTransient(err error) bool {
	if errors.Is(err, ErrUnavailable) {
		return true
	}
	apiErr, ok := asAPIError(err)
	return ok && apiErr.StatusCode >= http.StatusInternalServerError
}

func containsAny(body string, markers []string) bool {
	lower := strings.ToLower(body)
	for _, marker := range markers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
