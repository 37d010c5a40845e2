package plane

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrRateLimited is returned when Plane answers 429. Retryable.
	ErrRateLimited = errors.New("plane rate limit exceeded")
	// ErrUpstream covers every other non-2xx answer and transport failure. Never retried.
	ErrUpstream = errors.New("plane upstream error")
	// ErrAccessDenied is returned for 401/403 on a specific resource.
	ErrAccessDenied = errors.New("plane access denied")
	// ErrNotInitialized means the client was used without a base URL, API key or workspace.
	ErrNotInitialized = errors.New("plane client not initialized")
	// ErrPaginationExhausted marks a list that hit the page safety cap.
	ErrPaginationExhausted = errors.New("plane pagination safety cap reached")
	// ErrParse is returned when a response body has none of the recognised shapes.
	ErrParse = errors.New("unrecognized plane response shape")
)

// APIError carries the HTTP details of a failed Plane call.
// It unwraps to one of the sentinel errors above and, for transport failures, to the cause.
type APIError struct {
	Op         string
	Status     int
	RetryAfter time.Duration
	// HasRetryAfter is true when the response carried a usable Retry-After header.
	HasRetryAfter bool
	Kind          error
	Cause         error
}

func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.HasRetryAfter {
		fmt.Fprintf(&b, ", retry after %s", e.RetryAfter)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *APIError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

// RetryAfterHint extracts the Retry-After hint from err, if any.
func RetryAfterHint(err error) (time.Duration, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.HasRetryAfter {
		return apiErr.RetryAfter, true
	}
	return 0, false
}

func errorForStatus(op string, resp *http.Response) *APIError {
	apiErr := &APIError{Op: op, Status: resp.StatusCode}

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		apiErr.Kind = ErrRateLimited
		if d, ok := parseRetryAfter(resp.Header.Get("Retry-After")); ok {
			apiErr.RetryAfter = d
			apiErr.HasRetryAfter = true
		}
	case http.StatusUnauthorized, http.StatusForbidden:
		apiErr.Kind = ErrAccessDenied
	default:
		apiErr.Kind = ErrUpstream
	}
	return apiErr
}

// parseRetryAfter only understands the delay-seconds form Plane sends.
func parseRetryAfter(v string) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}
