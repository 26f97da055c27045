// Package store defines the realtime document store the chat subsystem runs
// on: per-document writes, ordered collection queries, live snapshot
// subscriptions, server-assigned timestamps and bounded atomic batches. The
// chat services depend only on the Store interface; NewMemory provides the
// process-local implementation used by the server and by tests.
package store

import "context"

// Fields is the mutable field set of one document.
type Fields map[string]any

// Document is a point-in-time read of one stored document.
type Document struct {
	// ID is the last path segment, unique within its collection.
	ID     string
	Path   string
	Fields Fields
}

// ByDocumentID orders a query by document identity instead of a field. It is
// a stable key even while field values are changing, which is what the
// deletion drain pages on.
const ByDocumentID = "__name__"

// QueryOptions shape an ordered collection read or subscription.
type QueryOptions struct {
	// OrderBy names the field to sort on, or ByDocumentID.
	OrderBy string
	Desc    bool
	// Limit caps the result set; zero means unbounded.
	Limit int
}

// SnapshotFunc receives the full ordered result set of a live query. It is
// invoked once with the current state right after subscribing and again after
// every commit that touches the watched collection. Calls for one
// subscription never overlap; intermediate states may be coalesced, the
// latest always arrives.
type SnapshotFunc func(docs []Document)

// Unsubscribe tears down a live query. Safe to call more than once. Callers
// own their subscriptions: a listener that is never released stays live for
// the rest of the process.
type Unsubscribe func()

// Store is the realtime document store contract.
//
// Implementations must keep a subscription alive across transient delivery
// trouble (resubscribing internally if need be); Subscribe returns an error
// only when setting the live query up is rejected outright, and that case is
// fatal for the caller.
type Store interface {
	// Put creates or fully replaces the document at path.
	Put(ctx context.Context, path string, fields Fields) error
	// Update merges fields into an existing document. ErrNotFound if the
	// document does not exist.
	Update(ctx context.Context, path string, fields Fields) error
	// Delete removes the document at path. ErrNotFound if it does not exist.
	Delete(ctx context.Context, path string) error
	// Get reads one document. ErrNotFound if it does not exist.
	Get(ctx context.Context, path string) (Document, error)
	// Query reads a collection once, ordered per opts.
	Query(ctx context.Context, collection string, opts QueryOptions) ([]Document, error)
	// Subscribe opens a live query over a collection.
	Subscribe(collection string, opts QueryOptions, fn SnapshotFunc) (Unsubscribe, error)
	// ServerTimestamp returns a sentinel value resolved to the commit time
	// by the store. Usable anywhere a Fields value is.
	ServerTimestamp() any
	// Batch stages writes for one atomic commit, bounded by the store's
	// operation limit.
	Batch() Batch
}

// Batch stages up to the store's operation limit of writes and applies them
// atomically. A Batch is single-use and not safe for concurrent staging.
type Batch interface {
	Put(path string, fields Fields)
	Update(path string, fields Fields)
	Delete(path string)
	// Commit applies every staged operation or none of them.
	Commit(ctx context.Context) error
}
