package classifier

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrNoEndpoint is returned when no endpoint is configured.
	ErrNoEndpoint = errors.New("classifier: endpoint required")

	// ErrNetwork covers transport failures and non-2xx responses.
	ErrNetwork = errors.New("classifier: network error")

	// ErrTimeout is returned when the request exceeds its deadline.
	ErrTimeout = errors.New("classifier: request timed out")

	// ErrInvalidResponse is returned when the label or confidence is
	// missing or malformed.
	ErrInvalidResponse = errors.New("classifier: invalid response shape")

	// ErrLowConfidence marks a reading below the admission threshold.
	// It is not a failure; the reading is simply ignored.
	ErrLowConfidence = errors.New("classifier: confidence below threshold")

	// ErrEmptyImage is returned when Classify is called without data.
	ErrEmptyImage = errors.New("classifier: empty image")
)

// APIError represents an error response from the inference service.
type APIError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Message is the (truncated) response body.
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("classifier: API error %d: %s", e.StatusCode, e.Message)
}

// Unwrap makes API errors match ErrNetwork.
func (e *APIError) Unwrap() error {
	return ErrNetwork
}

// IsServerError returns true if this is a server-side error (HTTP 5xx).
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// IsTransient reports whether err is worth backing off on.
func IsTransient(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrTimeout)
}
