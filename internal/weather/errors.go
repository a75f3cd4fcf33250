package weather

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidQuery is returned for request parameters outside their allowed values.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrInvalidDate is returned when the start date is not YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date (expected YYYY-MM-DD)")

	// ErrNotFound is returned when the records service has no data for the range.
	ErrNotFound = errors.New("no data for given city/date range")

	// ErrCacheCorrupt marks a cached payload that could not be decoded.
	// It is logged and treated as a miss, never returned to callers.
	ErrCacheCorrupt = errors.New("corrupted cache entry")
)

// UpstreamError describes a failed call to the records service.
// A 4xx StatusCode is the upstream's own status, propagated as-is; any other
// failure is reported as 503 once retries are exhausted.
type UpstreamError struct {
	StatusCode int
	Detail     string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream %d: %s: %v", e.StatusCode, e.Detail, e.Err)
	}
	return fmt.Sprintf("upstream %d: %s", e.StatusCode, e.Detail)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// ClientError reports whether the upstream rejected the request itself.
func (e *UpstreamError) ClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// NewUnavailableError builds the error returned after retry exhaustion.
func NewUnavailableError(detail string, last error) *UpstreamError {
	return &UpstreamError{
		StatusCode: http.StatusServiceUnavailable,
		Detail:     detail,
		Err:        last,
	}
}
