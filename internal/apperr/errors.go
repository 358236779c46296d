// Package apperr holds the sentinel errors shared across layers.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("checksum mismatch")
	ErrUnknownStep   = errors.New("unknown step")
	ErrInvalidJSON   = errors.New("invalid JSON")
	ErrNotDossier    = errors.New("JSON does not look like a dossier")
	ErrNotConfigured = errors.New("reviewer key not configured")
	ErrUnauthorized  = errors.New("unauthorized")
)
