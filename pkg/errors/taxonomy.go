package errors

import (
	"errors"
	"net/http"
)

// Generation failure taxonomy codes. Every failure a generation or
// judgment path can produce maps to one of these; none of them is allowed
// to take down a session.
const (
	// CodeServiceUnavailable: no credentials or uninitialized client.
	// Fatal for the current action, surfaced as a credentials prompt,
	// never silently retried.
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"

	// CodeContentDeclined: the backend returned explanatory text instead
	// of a payload. Recoverable by prompt edit or safety-level change.
	CodeContentDeclined = "CONTENT_DECLINED"

	// CodeMalformedResponse: schema parse failure. Recovered locally by
	// leaving state unchanged and logging.
	CodeMalformedResponse = "MALFORMED_RESPONSE"

	// CodeTransport: network failure, carries the failing backend name.
	// Recoverable via explicit retry.
	CodeTransport = "TRANSPORT_FAILURE"

	// CodeResourceMissing: a referenced artifact no longer exists.
	// Recovered by falling back to the character's avatar.
	CodeResourceMissing = "RESOURCE_MISSING"
)

// NewServiceUnavailableError reports missing credentials or an
// uninitialized collaborator.
func NewServiceUnavailableError(message string) *AppError {
	return NewError(http.StatusServiceUnavailable, CodeServiceUnavailable, message)
}

// NewContentDeclinedError wraps the backend's explanatory refusal text.
func NewContentDeclinedError(refusal string) *AppError {
	return NewError(http.StatusUnprocessableEntity, CodeContentDeclined, "the model declined to generate this content").
		WithDetails(map[string]string{"refusal": refusal})
}

// NewMalformedResponseError reports a response that failed schema parsing.
func NewMalformedResponseError(message string) *AppError {
	return NewError(http.StatusBadGateway, CodeMalformedResponse, message)
}

// NewTransportError reports a network-level failure against a named
// backend.
func NewTransportError(backend string, err error) *AppError {
	return NewError(http.StatusBadGateway, CodeTransport, "generation backend unreachable: "+err.Error()).
		WithDetails(map[string]string{"backend": backend})
}

// NewResourceMissingError reports a dangling artifact reference.
func NewResourceMissingError(message string) *AppError {
	return NewError(http.StatusNotFound, CodeResourceMissing, message)
}

// HasCode reports whether err (or anything it wraps) is an AppError with
// the given taxonomy code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
