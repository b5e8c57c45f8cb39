package errors

import "fmt"

// ErrorType classifies failures in the harvest and download stages
type ErrorType string

const (
	ErrorTypeRender  ErrorType = "render"
	ErrorTypeStatus  ErrorType = "status"
	ErrorTypeNetwork ErrorType = "network"
	ErrorTypeWrite   ErrorType = "write"
	ErrorTypeSession ErrorType = "session"
	ErrorTypeConfig  ErrorType = "config"
	ErrorTypeUnknown ErrorType = "unknown"
)

// Error represents a classified error with an optional HTTP status code
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error (code %d): %s: %v", e.Type, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error wrapping cause
func New(errorType ErrorType, message string, cause error) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Err:     cause,
	}
}

// IsFatal reports whether an error of this type must terminate the run.
// Everything raised inside the per-iteration and per-item loops is non-fatal.
func IsFatal(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeSession, ErrorTypeConfig:
		return true
	default:
		return false
	}
}

// TypeOf returns the classification of err, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	if err == nil {
		return ""
	}
	var e *Error
	if As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}
