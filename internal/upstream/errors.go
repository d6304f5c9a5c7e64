package upstream

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// APIError is a non-2xx response from the odds backend.
type APIError struct {
	Status  int
	Code    string
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("backend %d", e.Status)
}

// HTTPStatus returns the upstream status code, for error classification.
func (e *APIError) HTTPStatus() int { return e.Status }

// parseAPIError extracts the backend's error envelope from a response body.
// The backend wraps errors as {"error": {"code": ..., "message": ...}} but
// older deployments return a bare {"message": ...}.
func parseAPIError(status int, body []byte) *APIError {
	e := &APIError{Status: status}
	if v := gjson.GetBytes(body, "error.code"); v.Exists() {
		e.Code = v.String()
	}
	if v := gjson.GetBytes(body, "error.message"); v.Exists() {
		e.Message = v.String()
	} else if v := gjson.GetBytes(body, "message"); v.Exists() {
		e.Message = v.String()
	}
	return e
}
