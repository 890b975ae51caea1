package store

import (
	"context"
	"strings"
	"sync"

	"github.com/ki1r0y/gallery/common/apperr"
)

// MemoryStore is an in-process Store used by tests and the "memory" backend.
// A single mutex serializes transformers, which trivially satisfies the
// per-key linearizable Update contract.
type MemoryStore struct {
	mu   sync.Mutex
	docs map[string]Document
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]Document),
	}
}

// Get returns the document at key, or apperr.NotFound.
func (s *MemoryStore) Get(ctx context.Context, key string) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[key]
	if !ok {
		return nil, apperr.NotFound("no document at %s", key)
	}
	return clone(doc), nil
}

// Set writes the document at key unconditionally.
func (s *MemoryStore) Set(ctx context.Context, key string, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs[key] = clone(doc)
	return nil
}

// Update atomically transforms the document at key.
func (s *MemoryStore) Update(ctx context.Context, key string, fn Transformer) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.docs[key]
	next, write, err := fn(clone(current), exists)
	if err != nil {
		return nil, err
	}
	if !write {
		return clone(current), nil
	}
	s.docs[key] = clone(next)
	return clone(next), nil
}

// Destroy removes the document at key.
func (s *MemoryStore) Destroy(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.docs, key)
	return nil
}

// DestroyCollection removes every document whose key starts with prefix.
func (s *MemoryStore) DestroyCollection(ctx context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.docs {
		if strings.HasPrefix(key, prefix) {
			delete(s.docs, key)
		}
	}
	return nil
}

// Close discards the contents.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs = nil
	return nil
}

func clone(doc Document) Document {
	if doc == nil {
		return nil
	}
	out := make(Document, len(doc))
	copy(out, doc)
	return out
}
