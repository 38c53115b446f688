package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/phrazzld/taskgate/internal/api/shared"
	"github.com/phrazzld/taskgate/internal/store"
	"github.com/phrazzld/taskgate/internal/task"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Rejected at submission, the caller must fix the request
	case errors.Is(err, task.ErrUnknownHandler),
		errors.Is(err, task.ErrInvalidArgument),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	// Broker or store unreachable; a resubmission may succeed
	case errors.Is(err, task.ErrDispatch):
		return http.StatusServiceUnavailable

	case errors.Is(err, task.ErrTaskNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, task.ErrInvalidState):
		return http.StatusConflict

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, task.ErrUnknownHandler):
		return "Unknown task handler"
	case errors.Is(err, task.ErrInvalidArgument),
		errors.Is(err, store.ErrInvalidEntity):
		return "Invalid task arguments"
	case errors.Is(err, task.ErrDispatch):
		return "Task broker unavailable"
	case errors.Is(err, task.ErrTaskNotFound),
		errors.Is(err, store.ErrNotFound):
		return "Task not found"
	case errors.Is(err, task.ErrInvalidState):
		return "Task result not available"
	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the status and safe message for err. A non-empty
// message overrides the safe message.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, message string) {
	if message == "" {
		message = GetSafeErrorMessage(err)
	}
	shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), message, err)
}

// SanitizeValidationError turns validator errors into a message naming the
// first offending field, without echoing the submitted value.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Validation error"
	}

	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	return fmt.Sprintf("Invalid %s: %s", field, getValidationTagMessage(fe.Tag()))
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}
