// Package common defines shared constants and sentinel errors used across
// device and server layers of garrison. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Validation / lookup errors, returned to the immediate caller.
	ErrInvalidFormat       = errors.New("invalid national id format")
	ErrDuplicateNationalID = errors.New("national id already registered")
	ErrUnknownPerson       = errors.New("unknown person")
	ErrInvalidName         = errors.New("full name is required")

	// Storage errors abort the current operation.
	ErrStorage           = errors.New("storage failure")
	ErrUnknownEntityKind = errors.New("unknown entity kind")
	ErrMigration         = errors.New("migration failure")

	// Sync errors are recoverable; the next cycle retries.
	ErrSyncTransport  = errors.New("sync transport failure")
	ErrSyncInProgress = errors.New("sync already in progress")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Server-side rejection of a whole sync request.
	ErrInvalidOperation = errors.New("invalid sync operation")
)
