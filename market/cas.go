/*
cas.go - Optimistic-concurrency update loop

PURPOSE:
  The one read-modify-write primitive every mutating component uses.
  The entity is re-read on each attempt, mutated, and written back
  conditioned on the version it was read at. A lost race recomputes from
  fresh state; retries are bounded, then the operation fails with
  ErrConflict. A computed value is never written over state it was not
  derived from.
*/
package market

import (
	"context"
	"errors"

	"github.com/campuscart/market-engine/docstore"
)

// casUpdate loads collection/id into T, applies mutate, and writes the
// result with compare-and-set. mutate runs against freshly read state on
// every attempt; its error aborts without writing.
func casUpdate[T any](ctx context.Context, store docstore.Store, collection, id, kind string, mutate func(*T) error) (T, error) {
	var zero T
	for attempt := 0; attempt < maxCASRetries; attempt++ {
		doc, err := store.Get(ctx, collection, id)
		if errors.Is(err, docstore.ErrNotFound) {
			return zero, &NotFoundError{Kind: kind, ID: id}
		}
		if err != nil {
			return zero, err
		}

		var entity T
		if err := decodeDoc(doc, &entity); err != nil {
			return zero, err
		}

		if err := mutate(&entity); err != nil {
			return zero, err
		}

		updated, err := encodeDoc(id, entity)
		if err != nil {
			return zero, err
		}
		updated.Version = doc.Version

		if _, err := store.Update(ctx, collection, updated); err != nil {
			if errors.Is(err, docstore.ErrVersionMismatch) {
				continue // lost the race; recompute from current state
			}
			if errors.Is(err, docstore.ErrNotFound) {
				return zero, &NotFoundError{Kind: kind, ID: id}
			}
			return zero, err
		}
		return entity, nil
	}
	return zero, ErrConflict
}
