// Package common defines shared constants and sentinel errors used across
// the portal. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrInternal     = errors.New("internal error")
	ErrUnauthorized = errors.New("unauthorized")

	// Validation errors: bad or missing fields and files.
	ErrValidation = errors.New("validation error")

	// Illegal state transitions, e.g. re-processing a terminal application.
	ErrConflict = errors.New("conflict")

	// Auth/token errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token or temporary password past its expiry.
	ErrTokenExpired = errors.New("token expired")

	// Blob store or mail transport failures.
	ErrUpstream = errors.New("upstream error")
)
