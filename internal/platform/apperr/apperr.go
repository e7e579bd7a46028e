// Package apperr is the error taxonomy shared by services and the HTTP edge.
// Services return *Error values; handlers turn them into status codes via Status.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an error for transport mapping.
type Kind int

const (
	KindInternal Kind = iota
	// KindConfiguration is a missing secret or credential. Fails closed with an actionable message.
	KindConfiguration
	KindValidation
	KindThrottled
	// KindAuthentication is deliberately generic across sub-causes.
	KindAuthentication
	KindAuthorization
	KindDependencyUnavailable
	// KindBadGateway is an upstream (mail, blob) that answered with a failure.
	KindBadGateway
	KindNotFound
	KindConflict
)

// ThrottledMessage is the only text a throttled caller ever sees.
const ThrottledMessage = "Too many attempts. Try again later."

// Error carries a Kind, a client-safe Message (may be empty) and the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Message != "" {
			return e.Message + ": " + e.Err.Error()
		}
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

func Configuration(msg string) *Error         { return newErr(KindConfiguration, msg, nil) }
func Validation(msg string) *Error            { return newErr(KindValidation, msg, nil) }
func Throttled() *Error                       { return newErr(KindThrottled, ThrottledMessage, nil) }
func Authentication(msg string) *Error        { return newErr(KindAuthentication, msg, nil) }
func Authorization(msg string) *Error         { return newErr(KindAuthorization, msg, nil) }
func NotFound(msg string) *Error              { return newErr(KindNotFound, msg, nil) }
func Conflict(msg string) *Error              { return newErr(KindConflict, msg, nil) }
func Internal(msg string, cause error) *Error { return newErr(KindInternal, msg, cause) }

// Unavailable wraps a persistence or upstream outage.
func Unavailable(msg string, cause error) *Error {
	return newErr(KindDependencyUnavailable, msg, cause)
}

// BadGateway wraps a failed call to an upstream that was reachable.
func BadGateway(msg string, cause error) *Error {
	return newErr(KindBadGateway, msg, cause)
}

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}

// Status maps a kind to its HTTP status code.
func Status(kind Kind) int {
	switch kind {
	case KindConfiguration:
		return http.StatusInternalServerError
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindThrottled:
		return http.StatusTooManyRequests
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindDependencyUnavailable:
		return http.StatusServiceUnavailable
	case KindBadGateway:
		return http.StatusBadGateway
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
