package types

import (
	"errors"
	"net/http"

	appErr "github.com/learnhub/engine/pkg/errors"
)

// FromAppError converts err into the wire error. Errors without a code are
// reported as internal without leaking their text.
func FromAppError(err error) *APIError {
	if err == nil {
		return nil
	}
	var e *appErr.AppError
	if errors.As(err, &e) {
		return &APIError{Code: string(e.Code), Message: e.Message, Details: e.Meta}
	}
	return &APIError{Code: string(appErr.CodeInternal), Message: "internal error"}
}

// StatusOf maps an error code onto its HTTP status.
func StatusOf(err error) int {
	switch appErr.CodeOf(err) {
	case appErr.CodeNotFound:
		return http.StatusNotFound
	case appErr.CodeInvalid:
		return http.StatusUnprocessableEntity
	case appErr.CodeConflict, appErr.CodeAlreadyExists:
		return http.StatusConflict
	case appErr.CodeUnauthorized:
		return http.StatusUnauthorized
	case appErr.CodeForbidden:
		return http.StatusForbidden
	case appErr.CodeUnavailable:
		return http.StatusServiceUnavailable
	case appErr.CodeDeadline:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
