package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Sentinel errors
var (
	ErrStaleWrite   = errors.New("request was modified concurrently")
	ErrUnknownRoute = errors.New("no route for origin/destination pair")
	ErrActiveExists = errors.New("requester already has an active request")
)

// Kind classifies a failure for the caller. Every kind except Internal is
// shown to the initiating user as a short message.
type Kind string

const (
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindThrottled  Kind = "throttled"
	KindValidation Kind = "validation"
	KindTransient  Kind = "transient"
	KindInternal   Kind = "internal"
)

// AppError represents a structured, user-facing error
type AppError struct {
	Kind       Kind   `json:"-"`
	Code       string `json:"error"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func newError(kind Kind, code, message string, statusCode int) *AppError {
	return &AppError{
		Kind:       kind,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

func NotFound(resource string) *AppError {
	return newError(KindNotFound, "not_found", fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

func Conflict(message string) *AppError {
	return newError(KindConflict, "conflict", message, http.StatusConflict)
}

// Busy is the conflict returned to a carrier bidding on a request that is
// already being negotiated with someone else.
func Busy() *AppError {
	return newError(KindConflict, "busy", "this request is being negotiated with another carrier, try again shortly", http.StatusConflict)
}

func AlreadyMatched() *AppError {
	return newError(KindConflict, "already_matched", "this request already has an accepted offer", http.StatusConflict)
}

func InvalidTransition(from, to string) *AppError {
	return newError(KindConflict, "invalid_transition", fmt.Sprintf("cannot move request from %s to %s", from, to), http.StatusConflict)
}

// Throttled reports an active cool-down ending at until.
func Throttled(until, now time.Time) *AppError {
	mins := int(until.Sub(now).Round(time.Minute).Minutes())
	if mins < 1 {
		mins = 1
	}
	return newError(KindThrottled, "throttled",
		fmt.Sprintf("you cannot send offers for this request for another %d min", mins),
		http.StatusTooManyRequests)
}

func Validation(message string) *AppError {
	return newError(KindValidation, "validation", message, http.StatusBadRequest)
}

func Stale() *AppError {
	return newError(KindValidation, "stale", "this button is no longer valid", http.StatusBadRequest)
}

func Transient(message string, err error) *AppError {
	e := newError(KindTransient, "transient", message, http.StatusServiceUnavailable)
	e.Err = err
	return e
}

func Unauthorized(message string) *AppError {
	return newError(KindValidation, "unauthorized", message, http.StatusUnauthorized)
}

func InternalError(message string) *AppError {
	return newError(KindInternal, "internal_error", message, http.StatusInternalServerError)
}

func IdempotencyConflict() *AppError {
	return newError(KindConflict, "idempotency_conflict", "idempotency key already used with different request", http.StatusConflict)
}

// KindOf reports the kind of err, or KindInternal for anything that is not an
// *AppError. A nil error has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// As is a shortcut for errors.As into *AppError.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
