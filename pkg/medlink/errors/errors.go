package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError represents a client-level error with a code, the HTTP status when one
// was received, and an optional cause
type AppError struct {
	Code    string
	Message string
	Status  int
	Cause   error
}

func (e *AppError) Error() string {
	prefix := e.Code
	if e.Status != 0 {
		prefix = fmt.Sprintf("%s (%d)", e.Code, e.Status)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewWithStatus creates a new AppError for a response that carried an HTTP status
func NewWithStatus(code, message string, status int, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Cause:   cause,
	}
}

// IsCode reports whether any AppError in err's chain has the given code.
func IsCode(err error, code string) bool {
	var appErr *AppError
	for err != nil {
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// Message returns the text to show a user for err. Server-reported messages are
// passed through verbatim.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return GenericMessage
}

// GenericMessage is used when the server did not explain a failure
const GenericMessage = "Something went wrong"

// Error codes
const (
	ErrCodeTransport       = "TRANSPORT_FAILED"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeValidation      = "VALIDATION_FAILED"
	ErrCodeRequest         = "REQUEST_FAILED"
	ErrCodeDecode          = "DECODE_FAILED"
	ErrCodeInvalidResponse = "INVALID_RESPONSE"
	ErrCodeSessionStore    = "SESSION_STORE_FAILED"
	ErrCodeConfig          = "CONFIG_INVALID"
	ErrCodeStale           = "STALE_RESULT"
)
