// Package errs defines the error taxonomy shared by the registries and readers.
package errs

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates a referenced file, directory or record is absent
	ErrNotFound = errors.New("not found")
	// ErrDuplicateEntry indicates the path is already registered
	ErrDuplicateEntry = errors.New("duplicate entry")
	// ErrParseDegraded indicates a metadata file exists but is malformed
	ErrParseDegraded = errors.New("parse degraded")
	// ErrPersistence indicates a write to a backing store failed
	ErrPersistence = errors.New("persistence failure")
	// ErrCancelled indicates the operation was cancelled by the caller
	ErrCancelled = errors.New("cancelled")
	// ErrClosed indicates a registry was used after Close
	ErrClosed = errors.New("registry closed")
)

// Persistence wraps a store write failure so callers can match ErrPersistence.
func Persistence(path string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistence, path, err)
}

// Cancelled converts a context error into ErrCancelled, keeping the cause.
// It returns nil when ctx is still live.
func Cancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	return nil
}

// IsCancelled reports whether err signals user cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}
