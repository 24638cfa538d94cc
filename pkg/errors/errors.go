package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any AppError carrying the same code.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// StatusCode maps the error to the HTTP status used for the response.
// Domain rejections are answered with 200 and success=false so clients
// read the message instead of retrying.
func (e *AppError) StatusCode() int {
	switch e.Code {
	case ErrInternal:
		return http.StatusInternalServerError
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusOK
	}
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrInternal
	ErrValidation
	ErrBotDetected
	ErrDoctorUnavailable
	ErrDuplicateBooking
	ErrCapacityExceeded
	ErrMalformedTicket
	ErrInvalidSignature
	ErrQueueNotFound
	ErrTooManyRequests
	ErrTicketNotFound
)

var codeNames = map[ErrorCode]string{
	ErrNotFound:          "not_found",
	ErrBadRequest:        "bad_request",
	ErrUnauthorized:      "unauthorized",
	ErrForbidden:         "forbidden",
	ErrInternal:          "internal",
	ErrValidation:        "validation",
	ErrBotDetected:       "bot_detected",
	ErrDoctorUnavailable: "doctor_unavailable",
	ErrDuplicateBooking:  "duplicate_booking",
	ErrCapacityExceeded:  "capacity_exceeded",
	ErrMalformedTicket:   "malformed_ticket",
	ErrInvalidSignature:  "invalid_signature",
	ErrQueueNotFound:     "queue_not_found",
	ErrTooManyRequests:   "too_many_requests",
	ErrTicketNotFound:    "ticket_not_found",
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code_%d", int(c))
}

// Code returns the code of the first AppError in err's chain, or ErrInternal.
func Code(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// DeniedMessage is shared by every ticket rejection that must not explain itself.
const DeniedMessage = "You are not authorized to verify this ticket"

// Error constructors
func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "Something went wrong, please try again later",
		Err:     err,
	}
}

// Common errors
func NotFound(resource string, err error) *AppError {
	return NewNotFound(resource, err)
}

func BadRequest(message string, err error) *AppError {
	return NewBadRequest(message, err)
}

func Internal(err error) *AppError {
	return NewInternal(err)
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: DeniedMessage,
		Err:     err,
	}
}

func Validation(message string, err error) *AppError {
	return &AppError{Code: ErrValidation, Message: message, Err: err}
}

func BotDetected(err error) *AppError {
	return &AppError{Code: ErrBotDetected, Message: "Bot detected", Err: err}
}

func DoctorUnavailable(err error) *AppError {
	return &AppError{Code: ErrDoctorUnavailable, Message: "Doctor is not available", Err: err}
}

func DuplicateBooking(err error) *AppError {
	return &AppError{Code: ErrDuplicateBooking, Message: "You already have an appointment for this date", Err: err}
}

func CapacityExceeded(err error) *AppError {
	return &AppError{Code: ErrCapacityExceeded, Message: "Booking full, choose another date", Err: err}
}

func MalformedTicket(err error) *AppError {
	return &AppError{Code: ErrMalformedTicket, Message: "Invalid ticket", Err: err}
}

func InvalidSignature(err error) *AppError {
	return &AppError{Code: ErrInvalidSignature, Message: DeniedMessage, Err: err}
}

func TicketNotFound(err error) *AppError {
	return &AppError{Code: ErrTicketNotFound, Message: DeniedMessage, Err: err}
}

func QueueNotFound(err error) *AppError {
	return &AppError{Code: ErrQueueNotFound, Message: "No appointments found for this date", Err: err}
}

func TooManyRequests(message string, err error) *AppError {
	return &AppError{Code: ErrTooManyRequests, Message: message, Err: err}
}
