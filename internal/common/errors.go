// Package common defines sentinel errors shared across the service layers.
// Callers should use errors.Is to match these values; the HTTP layer maps
// them to status codes.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Auth errors. Missing, malformed, forged and expired credentials all
	// collapse to this one value so callers cannot tell them apart.
	ErrUnauthenticated = errors.New("unauthenticated")

	// Validation errors.
	ErrInvalidInput = errors.New("invalid input")
	ErrInvalidRole  = errors.New("only user messages can be deleted")
	ErrEmailTaken   = errors.New("email already registered")

	// Server-side failures, surfaced distinctly so a caller can decide to
	// retry the whole turn.
	ErrProvider = errors.New("model provider failure")
	ErrStorage  = errors.New("storage failure")
)
