package client

import (
	"encoding/json"
	"fmt"
	"net/http"

	apperrors "workflow/backend/pkg/errors"
)

// APIError is a non-2xx answer from the server. errors.Is matches it
// against the pkg/errors kinds.
type APIError struct {
	Status  int
	Code    int
	Message string
	Fields  apperrors.ValidationErrors
	kind    error
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: http %d", e.Status)
	}
	return fmt.Sprintf("api: %s (http %d, code %d)", e.Message, e.Status, e.Code)
}

func (e *APIError) Unwrap() error { return e.kind }

func newAPIError(status int, env envelope) *APIError {
	e := &APIError{Status: status, Code: env.Code, Message: env.Message, kind: kindOf(status)}
	if len(env.Details) > 0 {
		_ = json.Unmarshal(env.Details, &e.Fields)
	}
	return e
}

// kindOf maps an HTTP status to an error kind. Anything unrecognised is
// treated as an upstream failure.
func kindOf(status int) error {
	switch {
	case status == http.StatusBadRequest, status == http.StatusRequestEntityTooLarge:
		return apperrors.ErrValidation
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return apperrors.ErrForbidden
	case status == http.StatusNotFound:
		return apperrors.ErrNotFound
	case status == http.StatusConflict:
		return apperrors.ErrConflict
	default:
		return apperrors.ErrUpstream
	}
}
