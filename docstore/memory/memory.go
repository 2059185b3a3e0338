// Package memory provides an in-memory docstore.Store (for testing/dev).
package memory

import (
	"context"
	"sync"

	"github.com/campuscart/market-engine/docstore"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]docstore.Document
}

func New() *Store {
	return &Store{collections: make(map[string]map[string]docstore.Document)}
}

func (s *Store) Put(_ context.Context, collection string, doc docstore.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.collections[collection]
	if coll == nil {
		coll = make(map[string]docstore.Document)
		s.collections[collection] = coll
	}
	if _, ok := coll[doc.ID]; ok {
		return docstore.ErrExists
	}
	coll[doc.ID] = docstore.Document{ID: doc.ID, Version: 1, Data: cloneBytes(doc.Data)}
	return nil
}

func (s *Store) Get(_ context.Context, collection, id string) (docstore.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return docstore.Document{}, docstore.ErrNotFound
	}
	doc.Data = cloneBytes(doc.Data)
	return doc, nil
}

// Update applies the compare-and-set contract: the write only lands if the
// stored version still matches the caller's read.
func (s *Store) Update(_ context.Context, collection string, doc docstore.Document) (docstore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.collections[collection][doc.ID]
	if !ok {
		return docstore.Document{}, docstore.ErrNotFound
	}
	if current.Version != doc.Version {
		return docstore.Document{}, docstore.ErrVersionMismatch
	}

	updated := docstore.Document{ID: doc.ID, Version: current.Version + 1, Data: cloneBytes(doc.Data)}
	s.collections[collection][doc.ID] = updated

	updated.Data = cloneBytes(updated.Data)
	return updated, nil
}

func (s *Store) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[collection][id]; !ok {
		return docstore.ErrNotFound
	}
	delete(s.collections[collection], id)
	return nil
}

func (s *Store) List(_ context.Context, collection string) ([]docstore.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll := s.collections[collection]
	result := make([]docstore.Document, 0, len(coll))
	for _, doc := range coll {
		doc.Data = cloneBytes(doc.Data)
		result = append(result, doc)
	}
	return result, nil
}

// cloneBytes keeps callers from mutating stored documents through a
// shared slice.
func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
