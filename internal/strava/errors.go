package strava

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
)

// HTTPError is an unexpected upstream status on a call that has no fault
// convention, such as the token exchange
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("strava returned status %d: %s", e.StatusCode, e.Body)
}

// IsUnauthorized reports whether err is an HTTPError with status 401
func IsUnauthorized(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusUnauthorized
}

// IsBadRequest reports whether err is an HTTPError with status 400
func IsBadRequest(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusBadRequest
}

// TransportError is a network failure or a response body that is not JSON.
// It is never retried.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport error: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// AuthorizationError is returned when the provider answered a listing request
// with a fault object instead of an array of activities
type AuthorizationError struct {
	StatusCode int
	Message    string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("authorization fault (%d): %s", e.StatusCode, e.Message)
}

// IsAuthorization reports whether err is or wraps an AuthorizationError
func IsAuthorization(err error) bool {
	var authErr *AuthorizationError
	return errors.As(err, &authErr)
}

// AuthorizationFault inspects the last record of a fetch result and reports
// the fault it carries, if any. A fault record is an object without "id".
// The status comes from a single numeric key such as {"401": "..."} and is
// zero otherwise.
func AuthorizationFault(records []RawActivity) (*AuthorizationError, bool) {
	if len(records) == 0 {
		return nil, false
	}
	last := records[len(records)-1]
	if last == nil {
		return nil, false
	}
	if _, hasID := last["id"]; hasID {
		return nil, false
	}

	fault := &AuthorizationError{}
	if len(last) == 1 {
		for key, value := range last {
			if status, err := strconv.Atoi(key); err == nil {
				fault.StatusCode = status
				fault.Message, _ = value.(string)
				return fault, true
			}
		}
	}
	fault.Message = faultMessage(last)
	return fault, true
}

func faultMessage(doc RawActivity) string {
	if msg, ok := doc["message"].(string); ok && msg != "" {
		return msg
	}
	encoded, err := json.Marshal(doc)
	if err != nil {
		return fmt.Sprint(doc)
	}
	return string(encoded)
}
