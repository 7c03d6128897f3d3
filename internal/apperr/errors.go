// Package apperr holds the sentinel errors shared across the session layers.
package apperr

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrContentTooLong    = errors.New("content exceeds block limit")
	ErrInvalidType       = errors.New("invalid block type")
	ErrNotExecutable     = errors.New("block is not executable")
	ErrInFlight          = errors.New("execution already in flight")
	ErrMissingCredential = errors.New("missing provider credential")
)
