package homewizard

import (
	"errors"
	"fmt"
	"net/http"
)

// RejectedError is a well-formed login response that refused the credentials.
type RejectedError struct {
	Code    int
	Message string
}

func (e *RejectedError) Error() string {
	if e.Code == 0 {
		return "login rejected: " + e.Message
	}
	return fmt.Sprintf("login rejected (error %d): %s", e.Code, e.Message)
}

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http %d", e.Code)
	}
	return fmt.Sprintf("http %d: %s", e.Code, e.Body)
}

// IsUnauthorized reports whether err is a 401 or 403 response, meaning the
// session token was refused.
func IsUnauthorized(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden
}

// IsRejected reports whether err is a vendor login rejection.
func IsRejected(err error) bool {
	var re *RejectedError
	return errors.As(err, &re)
}
