// Package apierr defines the error taxonomy shared by the admin API and the
// ScholarFinder enrichment client. Every error carries a machine-readable type,
// a human-readable message, and a retryable flag; rate-limit errors also carry
// the wait duration derived from the Retry-After header.
package apierr

import (
	"errors"
	"net/http"
	"strconv"
	"time"
)

type Type string

const (
	TypeValidation  Type = "VALIDATION_ERROR"
	TypeFile        Type = "FILE_ERROR"
	TypeFileFormat  Type = "FILE_FORMAT_ERROR"
	TypeSearch      Type = "SEARCH_ERROR"
	TypeServer      Type = "SERVER_ERROR"
	TypeExternalAPI Type = "EXTERNAL_API_ERROR"
	TypeRateLimit   Type = "RATE_LIMIT_ERROR"
	TypeTimeout     Type = "TIMEOUT_ERROR"
)

type Error struct {
	Type      Type   `json:"type"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	// RetryAfter is the wait suggested by the server, zero when not rate limited.
	RetryAfter time.Duration `json:"-"`
}

func (e *Error) Error() string {
	return string(e.Type) + ": " + e.Message
}

// RetryAfterMillis reports the retry delay in milliseconds, the unit the
// dashboard consumes.
func (e *Error) RetryAfterMillis() int64 {
	return e.RetryAfter.Milliseconds()
}

func New(t Type, message string) *Error {
	return &Error{Type: t, Message: message, Retryable: retryableType(t)}
}

func Validation(message string) *Error  { return New(TypeValidation, message) }
func File(message string) *Error        { return New(TypeFile, message) }
func FileFormat(message string) *Error  { return New(TypeFileFormat, message) }
func Search(message string) *Error      { return New(TypeSearch, message) }
func Server(message string) *Error      { return New(TypeServer, message) }
func ExternalAPI(message string) *Error { return New(TypeExternalAPI, message) }
func Timeout(message string) *Error     { return New(TypeTimeout, message) }

func RateLimit(message string, retryAfter time.Duration) *Error {
	return &Error{Type: TypeRateLimit, Message: message, Retryable: true, RetryAfter: retryAfter}
}

func retryableType(t Type) bool {
	switch t {
	case TypeServer, TypeExternalAPI, TypeRateLimit, TypeTimeout:
		return true
	}
	return false
}

// Status maps an error type to the HTTP status the API responds with.
// A rate-limited upstream keeps 429 so the Retry-After header stays meaningful.
func (e *Error) Status() int {
	if e.RetryAfter > 0 {
		return http.StatusTooManyRequests
	}
	switch e.Type {
	case TypeValidation, TypeFileFormat:
		return http.StatusBadRequest
	case TypeFile:
		return http.StatusUnprocessableEntity
	case TypeSearch:
		return http.StatusBadGateway
	case TypeRateLimit:
		return http.StatusTooManyRequests
	case TypeTimeout:
		return http.StatusGatewayTimeout
	case TypeExternalAPI:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// FromResponse classifies an upstream HTTP failure. The Retry-After header is
// interpreted as seconds per RFC 7231.
func FromResponse(status int, retryAfterHeader, message string) *Error {
	switch {
	case status == http.StatusTooManyRequests:
		wait := time.Duration(0)
		if secs, err := strconv.Atoi(retryAfterHeader); err == nil {
			wait = time.Duration(secs) * time.Second
		}
		if message == "" {
			message = "rate limit exceeded"
		}
		// The dashboard expects rate-limited upstream calls to surface as
		// EXTERNAL_API_ERROR carrying the wait, not as RATE_LIMIT_ERROR.
		return &Error{Type: TypeExternalAPI, Message: message, Retryable: true, RetryAfter: wait}
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return Timeout(message)
	case status >= 500:
		return ExternalAPI(message)
	case status == http.StatusBadRequest:
		return Validation(message)
	default:
		return ExternalAPI(message)
	}
}

// AsError unwraps err into a taxonomy error, synthesizing SERVER_ERROR for
// anything untyped so handlers always have a status and a JSON shape to send.
func AsError(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Server(err.Error())
}
