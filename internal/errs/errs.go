// Package errs defines the typed error kinds shared across the pipeline.
// Callers match on Kind rather than parsing messages.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error.
type Kind string

const (
	KindInvalidConfiguration Kind = "invalid_configuration"
	KindUnknownStrategy      Kind = "unknown_strategy"
	KindDegenerateVector     Kind = "degenerate_vector"
	KindEmptyContext         Kind = "empty_context"
	KindUpstreamService      Kind = "upstream_service_error"
	KindUnknownProvider      Kind = "unknown_provider"
	KindNotFound             Kind = "not_found"
	KindValidation           Kind = "validation"
	KindInternal             Kind = "internal"
)

// Error is a classified error with an optional cause and details.
type Error struct {
	Kind    Kind
	Message string
	Err     error
	Details map[string]any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithDetail returns e with key set in its details.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Sentinels for errors.Is matching by kind.
var (
	ErrInvalidConfiguration = &Error{Kind: KindInvalidConfiguration, Message: "invalid configuration"}
	ErrUnknownStrategy      = &Error{Kind: KindUnknownStrategy, Message: "unknown chunking strategy"}
	ErrDegenerateVector     = &Error{Kind: KindDegenerateVector, Message: "zero-magnitude vector"}
	ErrEmptyContext         = &Error{Kind: KindEmptyContext, Message: "no context retrieved"}
	ErrUpstreamService      = &Error{Kind: KindUpstreamService, Message: "upstream service failed"}
	ErrUnknownProvider      = &Error{Kind: KindUnknownProvider, Message: "unknown provider"}
	ErrNotFound             = &Error{Kind: KindNotFound, Message: "not found"}
	ErrValidation           = &Error{Kind: KindValidation, Message: "validation failed"}
)

// New returns an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an error of the given kind wrapping err.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func InvalidConfiguration(format string, args ...any) *Error {
	return New(KindInvalidConfiguration, format, args...)
}

// UnknownStrategy names the rejected strategy in both message and details.
func UnknownStrategy(name string) *Error {
	return New(KindUnknownStrategy, "unknown chunking strategy %q", name).WithDetail("strategy", name)
}

func UnknownProvider(name string) *Error {
	return New(KindUnknownProvider, "unknown provider %q", name).WithDetail("provider", name)
}

func DegenerateVector(format string, args ...any) *Error {
	return New(KindDegenerateVector, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

// Upstream wraps a failure from an external collaborator (embedding,
// index or generation service).
func Upstream(service string, err error) *Error {
	return Wrap(KindUpstreamService, err, "%s request failed", service).WithDetail("service", service)
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// DetailsOf returns the details of the first *Error in err's chain.
func DetailsOf(err error) map[string]any {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}
