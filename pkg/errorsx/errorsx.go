// Package errorsx defines the single error shape returned to callers of the API client.
//
// Whatever went wrong, a network failure, a timeout, a 404 with a body or a 500 without one,
// callers receive an *Error with a non-empty Message and a non-zero Status.
package errorsx

import (
	"errors"
	"fmt"
	"net/http"
	"sort"

	json "github.com/bytedance/sonic"
)

// DefaultMessage is used when neither the server nor the transport says anything useful.
const DefaultMessage = "An unexpected error occurred."

// Reasons classify an Error. They are informational, callers branch on Status.
const (
	ReasonTransport      = "Transport"
	ReasonUnauthorized   = "Unauthorized"
	ReasonSessionExpired = "SessionExpired"
	ReasonValidation     = "Validation"
	ReasonNotFound       = "NotFound"
	ReasonServer         = "Server"
	ReasonUnknown        = "Unknown"
)

// ErrSessionExpired is wrapped by every failure that ended the session: no refresh token was
// stored, or the refresh call failed.
var ErrSessionExpired = errors.New("session expired, please log in again")

// RawResponse keeps the failing response for diagnostics. Callers should not depend on it.
type RawResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Error is the normalized error.
type Error struct {
	// Status is the HTTP status code, 500 when the failure never produced one.
	Status int `json:"status"`
	// Reason classifies the failure.
	Reason string `json:"reason,omitempty"`
	// Message is a human readable description.
	Message string `json:"message"`
	// Errors carries server supplied validation details keyed by field.
	Errors map[string]any `json:"errors,omitempty"`
	// Raw is the original response, nil for transport failures.
	Raw *RawResponse `json:"-"`

	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("error: status = %d reason = %s message = %s", e.Status, e.Reason, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches another *Error by status and reason.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Status == e.Status && t.Reason == e.Reason
	}
	return false
}

// WithCause returns a copy of e wrapping cause.
func (e *Error) WithCause(cause error) *Error {
	cp := *e
	cp.cause = cause
	return &cp
}

// New creates an Error.
func New(status int, reason, format string, args ...any) *Error {
	return &Error{Status: status, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// NonFieldErrors keys a structured errors value that is not keyed by field.
const NonFieldErrors = "non_field_errors"

// FromResponse normalizes a non-2xx response. cause may be nil.
func FromResponse(status int, header http.Header, body []byte, cause error) *Error {
	e := &Error{
		Status: status,
		Reason: reasonForStatus(status),
		Raw:    &RawResponse{StatusCode: status, Header: header, Body: body},
		cause:  cause,
	}
	if e.Status == 0 {
		e.Status = http.StatusInternalServerError
	}

	var fields map[string]any
	var list []any
	switch {
	case len(body) == 0:
	case json.Unmarshal(body, &list) == nil:
		// ["msg", ...]
		e.Message = text(list)
		if len(list) > 0 {
			e.Errors = map[string]any{NonFieldErrors: list}
		}
	case json.Unmarshal(body, &fields) == nil:
		e.Message = firstNonEmpty(text(fields["message"]), text(fields["detail"]))
		switch v := fields["errors"].(type) {
		case nil:
		case map[string]any:
			e.Errors = v
		default:
			e.Errors = map[string]any{NonFieldErrors: v}
		}
		if e.Errors == nil && e.Status == http.StatusBadRequest && e.Message == "" && len(fields) > 0 {
			// A plain {"field": ["msg"]} body is a validation error.
			e.Errors = fields
			e.Message = firstFieldError(fields)
		}
	}

	if e.Message == "" && cause != nil {
		e.Message = cause.Error()
	}
	if e.Message == "" {
		e.Message = http.StatusText(e.Status)
	}
	if e.Message == "" {
		e.Message = DefaultMessage
	}
	return e
}

// text returns v when it is a string, or the first string of a list.
func text(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// firstFieldError formats the first message of the first field in name order.
func firstFieldError(fields map[string]any) string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if msg := text(fields[name]); msg != "" {
			return name + ": " + msg
		}
	}
	return ""
}

// FromTransport normalizes a failure that produced no response at all.
func FromTransport(err error) *Error {
	msg := DefaultMessage
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return &Error{
		Status:  http.StatusInternalServerError,
		Reason:  ReasonTransport,
		Message: msg,
		cause:   err,
	}
}

// Normalize converts any error into an *Error. nil stays nil.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Status == 0 {
			e.Status = http.StatusInternalServerError
		}
		if e.Message == "" {
			e.Message = DefaultMessage
		}
		return e
	}
	return FromTransport(err)
}

// SessionExpired marks err as session ending while keeping its status and message.
func SessionExpired(err error) *Error {
	e := Normalize(err)
	if e == nil {
		e = FromTransport(ErrSessionExpired)
	}
	cp := *e
	cp.Reason = ReasonSessionExpired
	cp.cause = &sessionExpiredError{cause: e.cause}
	return &cp
}

type sessionExpiredError struct {
	cause error
}

func (s *sessionExpiredError) Error() string {
	if s.cause == nil {
		return ErrSessionExpired.Error()
	}
	return ErrSessionExpired.Error() + ": " + s.cause.Error()
}

func (s *sessionExpiredError) Unwrap() []error {
	if s.cause == nil {
		return []error{ErrSessionExpired}
	}
	return []error{ErrSessionExpired, s.cause}
}

// Code returns the status carried by err, 500 for foreign errors and 200 for nil.
func Code(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return Normalize(err).Status
}

// HasStatus reports whether err is an *Error with the given status.
func HasStatus(err error, status int) bool {
	var e *Error
	return errors.As(err, &e) && e.Status == status
}

// IsUnauthorized reports a 401.
func IsUnauthorized(err error) bool { return HasStatus(err, http.StatusUnauthorized) }

// IsNotFound reports a 404.
func IsNotFound(err error) bool { return HasStatus(err, http.StatusNotFound) }

// IsSessionExpired reports whether err ended the session.
func IsSessionExpired(err error) bool { return errors.Is(err, ErrSessionExpired) }

func reasonForStatus(status int) string {
	switch {
	case status == http.StatusUnauthorized:
		return ReasonUnauthorized
	case status == http.StatusNotFound:
		return ReasonNotFound
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return ReasonValidation
	case status >= 500:
		return ReasonServer
	default:
		return ReasonUnknown
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
