package errors

import stderrors "errors"

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // User-facing message
	Metadata map[string]string // Additional context
	Cause    error             // Wrapped underlying error
}

// Sentinels for errors.Is checks. Matching is by code only.
var (
	ErrLoad           = &Error{Code: CodeLoad}
	ErrInvalidLayer   = &Error{Code: CodeInvalidLayer}
	ErrIndexExhausted = &Error{Code: CodeIndexExhausted}
	ErrUpload         = &Error{Code: CodeUpload}
	ErrActorUpdate    = &Error{Code: CodeActorUpdate}
	ErrNotFound       = &Error{Code: CodeNotFound}
	ErrSessionClosed  = &Error{Code: CodeSessionClosed}
	ErrForbidden      = &Error{Code: CodeForbidden}
	ErrInvalidArg     = &Error{Code: CodeInvalidArgument}
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil && e.Message != "" {
		return e.Message + ": " + e.Cause.Error()
	}
	if e.Message == "" && e.Cause != nil {
		return e.Cause.Error()
	}
	if e.Message == "" {
		return string(e.Code)
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a simple domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WithMetadata creates a domain error with metadata attached.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Metadata: metadata,
	}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// CodeOf returns the code of the first *Error in err's chain, or CodeUnknown.
func CodeOf(err error) Code {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}
