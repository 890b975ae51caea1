// Package store defines the document store contract the gallery core is
// built on: key -> JSON document storage whose only concurrency primitive is
// a per-key linearizable read-modify-write (Update). Mutations of shared
// documents must go through Update; get-then-set sequences reintroduce the
// lost-update race the contract exists to avoid.
package store

import "context"

// Document is a raw JSON document.
type Document []byte

// Transformer is invoked by Update with the current document (exists=false
// when the key is absent). It returns the replacement document, whether to
// write it, and an error. Returning write=false leaves the key unchanged.
// Under contention a transformer may be invoked more than once, so it must
// be side-effect free apart from its return values.
type Transformer func(current Document, exists bool) (next Document, write bool, err error)

// Store is the abstract atomic document store.
//
// Concurrent Update calls on the same key serialize: each transformer
// observes the previously committed document or "absent". Retry on write
// conflict is the store's responsibility. There is no cross-key atomicity.
type Store interface {
	// Get returns the document at key, or apperr.NotFound.
	Get(ctx context.Context, key string) (Document, error)

	// Set writes the document at key unconditionally.
	Set(ctx context.Context, key string, doc Document) error

	// Update atomically transforms the document at key and returns the
	// final document (the pre-existing one when the transformer declined
	// to write, nil when the key is absent and nothing was written).
	Update(ctx context.Context, key string, fn Transformer) (Document, error)

	// Destroy removes the document at key. Removing an absent key is not
	// an error.
	Destroy(ctx context.Context, key string) error

	// DestroyCollection removes every document whose key starts with
	// prefix.
	DestroyCollection(ctx context.Context, prefix string) error

	// Close releases the backend connection.
	Close() error
}
