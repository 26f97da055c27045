package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports an operation against a document path that does
	// not exist (already deleted, never created).
	ErrNotFound = errors.New("document not found")

	// ErrBatchLimit reports a batch staged beyond the store's atomic
	// operation limit.
	ErrBatchLimit = errors.New("batch operation limit exceeded")
)

// WriteError wraps a failed mutation with the path it targeted. Retryable at
// the caller's discretion for idempotent operations.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string { return fmt.Sprintf("write %s: %v", e.Path, e.Err) }
func (e *WriteError) Unwrap() error { return e.Err }

// ReadError wraps a failed read or query.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string { return fmt.Sprintf("read %s: %v", e.Path, e.Err) }
func (e *ReadError) Unwrap() error { return e.Err }

// SubscriptionError reports a live query whose setup was rejected. Fatal for
// the subscriber; transient delivery trouble is absorbed by the store and
// never surfaces this way.
type SubscriptionError struct {
	Collection string
	Err        error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscribe %s: %v", e.Collection, e.Err)
}
func (e *SubscriptionError) Unwrap() error { return e.Err }
