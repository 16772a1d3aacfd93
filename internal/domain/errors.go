package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already exists")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// ErrInvalidState is returned when a status transition is not allowed
	// from the artifact's current status.
	ErrInvalidState = errors.New("invalid state")

	// ErrUpstream marks failures of the identity provider or the document store.
	ErrUpstream = errors.New("upstream failure")
)

// UpstreamError describes a failed call to an external collaborator.
// It matches ErrUpstream with errors.Is and unwraps to the transport cause, if any.
type UpstreamError struct {
	Service    string // "keycloak", "openkm"
	Op         string // operation name, e.g. "create user"
	StatusCode int    // 0 when the request never got a response
	Detail     string
	Err        error
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("%s %s failed", e.Service, e.Op)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s with status %d", msg, e.StatusCode)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is allows errors.Is() to match against ErrUpstream
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// InvalidStatef builds an ErrInvalidState error with a formatted message.
func InvalidStatef(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidState)
}

// Validationf builds an ErrValidation error with a formatted message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
