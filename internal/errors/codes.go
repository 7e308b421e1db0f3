// Package errors provides coded errors shared by the tokenizer packages.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Asset errors
	CodeLoad         Code = "LOAD_FAILED"
	CodeInvalidLayer Code = "INVALID_LAYER"

	// Naming errors
	CodeIndexExhausted Code = "INDEX_EXHAUSTED"

	// Submit errors
	CodeUpload      Code = "UPLOAD_FAILED"
	CodeActorUpdate Code = "ACTOR_UPDATE_FAILED"

	// Session and request errors
	CodeNotFound        Code = "NOT_FOUND"
	CodeSessionClosed   Code = "SESSION_CLOSED"
	CodeForbidden       Code = "FORBIDDEN"
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
)

// HTTPStatus maps codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeSessionClosed, CodeIndexExhausted:
		return http.StatusConflict
	case CodeInvalidLayer:
		return http.StatusUnprocessableEntity
	case CodeLoad, CodeUpload:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
