// Package fault carries the error taxonomy shared by the pipeline and the
// external provider clients. Every terminal error that reaches the driver is
// classified by a Kind so the CLI can map it to an exit code.
package fault

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	InvalidInput        Kind = "invalid_input"
	TooLong             Kind = "too_long"
	AuthFailed          Kind = "auth_failed"
	QuotaExceeded       Kind = "quota_exceeded"
	RateLimited         Kind = "rate_limited"
	ServerError         Kind = "server_error"
	NetworkError        Kind = "network_error"
	BadRequest          Kind = "bad_request"
	UploadFailed        Kind = "upload_failed"
	GenerateFailed      Kind = "generate_failed"
	JobFailed           Kind = "job_failed"
	Timeout             Kind = "timeout"
	MissingInput        Kind = "missing_input"
	IncompatibleStreams Kind = "incompatible_streams"
	EncodeFailed        Kind = "encode_failed"
	Unknown             Kind = "unknown"
)

// Error is a classified error. Message is human-readable; Err, when set, is
// the underlying cause and participates in errors.Is/As chains.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Message != "" {
			return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an existing error.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the Kind of err, or Unknown when it carries none.
// Context cancellation and deadline errors map to Timeout.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Timeout
	}
	return Unknown
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Transient reports whether err is eligible for retry with backoff.
func Transient(err error) bool {
	switch KindOf(err) {
	case RateLimited, ServerError, NetworkError:
		return true
	}
	return false
}

// FromStatus classifies a non-2xx provider response.
func FromStatus(status int, body string) *Error {
	msg := fmt.Sprintf("provider returned status %d: %s", status, truncate(body, 300))
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return New(AuthFailed, "%s", msg)
	case status == http.StatusPaymentRequired:
		return New(QuotaExceeded, "%s", msg)
	case status == http.StatusTooManyRequests:
		return New(RateLimited, "%s", msg)
	case status >= 500:
		return New(ServerError, "%s", msg)
	default:
		return New(BadRequest, "%s", msg)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
