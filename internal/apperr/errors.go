// Package apperr holds the sentinel errors shared across layers.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")

	// ErrRemoteUnavailable covers transport, status and decode failures of the remote source.
	ErrRemoteUnavailable = errors.New("remote unavailable")
	// ErrPersistence marks an overlay write that took effect in memory but was not saved.
	ErrPersistence = errors.New("persistence failure")
	// ErrValidation marks a malformed create or update payload.
	ErrValidation = errors.New("validation failed")
)
