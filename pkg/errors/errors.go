package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

const (
	CodeInvalidWindow        = "INVALID_WINDOW"
	CodePastOrImminentStart  = "PAST_OR_IMMINENT_START"
	CodeDurationOutOfRange   = "DURATION_OUT_OF_RANGE"
	CodeOutsideAdvanceWindow = "OUTSIDE_ADVANCE_WINDOW"
	CodeNonBusinessDay       = "NON_BUSINESS_DAY"
	CodeOutsideBusinessHours = "OUTSIDE_BUSINESS_HOURS"
	CodeSelfOverlap          = "SELF_OVERLAP"
	CodeResourceConflict     = "RESOURCE_CONFLICT"
	CodeDuplicateSubmission  = "DUPLICATE_SUBMISSION"
	CodeRateLimited          = "RATE_LIMITED"
	CodeNotFound             = "NOT_FOUND"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeInvalidTransition    = "INVALID_TRANSITION"

	CodeValidation   = "VALIDATION_ERROR"
	CodeInvalidInput = "INVALID_INPUT"
	CodeInternal     = "INTERNAL_ERROR"
	CodeTimeout      = "TIMEOUT"
)

type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Err        error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) StatusCode() int {
	return e.HTTPStatus
}

func New(code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

func Wrap(err error, code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

// Window rule violations. All of them are client errors on an otherwise
// well-formed request.

func InvalidWindow(message string) *AppError {
	return New(CodeInvalidWindow, message, http.StatusUnprocessableEntity)
}

func PastOrImminentStart(message string) *AppError {
	return New(CodePastOrImminentStart, message, http.StatusUnprocessableEntity)
}

func DurationOutOfRange(message string) *AppError {
	return New(CodeDurationOutOfRange, message, http.StatusUnprocessableEntity)
}

func OutsideAdvanceWindow(message string) *AppError {
	return New(CodeOutsideAdvanceWindow, message, http.StatusUnprocessableEntity)
}

func NonBusinessDay(message string) *AppError {
	return New(CodeNonBusinessDay, message, http.StatusUnprocessableEntity)
}

func OutsideBusinessHours(message string) *AppError {
	return New(CodeOutsideBusinessHours, message, http.StatusUnprocessableEntity)
}

func SelfOverlap(start, end time.Time) *AppError {
	return New(CodeSelfOverlap, "You already hold a reservation overlapping this time window", http.StatusConflict).
		WithDetails(map[string]any{
			"start_time": start.Format(time.RFC3339),
			"end_time":   end.Format(time.RFC3339),
		})
}

// ResourceConflict reports the reservation that blocks the requested window
// so callers can explain who holds the resource and when.
func ResourceConflict(reservationID, ownerID, ownerOrgID string, start, end time.Time) *AppError {
	return New(CodeResourceConflict, fmt.Sprintf(
		"Resource is already reserved (%s - %s)",
		start.Format(time.RFC3339),
		end.Format(time.RFC3339),
	), http.StatusConflict).WithDetails(map[string]any{
		"reservation_id":     reservationID,
		"owner_id":           ownerID,
		"owner_organization": ownerOrgID,
		"start_time":         start.Format(time.RFC3339),
		"end_time":           end.Format(time.RFC3339),
	})
}

func DuplicateSubmission(message string) *AppError {
	return New(CodeDuplicateSubmission, message, http.StatusConflict)
}

func RateLimited(message string) *AppError {
	return New(CodeRateLimited, message, http.StatusTooManyRequests)
}

func NotFound(resource string) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
	}
}

func NotFoundWithID(resource, id string) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details: map[string]any{
			"resource": resource,
			"id":       id,
		},
	}
}

func Unauthorized(message string) *AppError {
	return New(CodeUnauthorized, message, http.StatusForbidden)
}

func InvalidTransition(message string) *AppError {
	return New(CodeInvalidTransition, message, http.StatusConflict)
}

func Validation(message string, details map[string]any) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    details,
	}
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message, http.StatusBadRequest)
}

func Internal(message string, err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func Timeout(message string) *AppError {
	return New(CodeTimeout, message, http.StatusGatewayTimeout)
}

func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("An unexpected error occurred", err)
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
