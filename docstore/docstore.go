/*
Package docstore defines the document store boundary for the marketplace.

PURPOSE:
  All persistent state lives in named collections of versioned JSON
  documents. The domain packages never touch a database driver directly;
  they speak to this interface, which exposes plain CRUD plus one crucial
  primitive: a compare-and-set Update.

VERSIONING:
  Every document carries a monotonically increasing Version. Update only
  succeeds if the stored version matches the version the caller read.
  This is what lets the ledger and stock manager do safe read-modify-write
  without a stale-balance window: the write is conditioned on the state it
  was computed from still being current.

IMPLEMENTATIONS:
  - docstore/memory: mutex-guarded maps, for tests and development
  - docstore/sqlite: single-table SQLite store with a conditional UPDATE

SEE ALSO:
  - market: domain logic built on this interface
*/
package docstore

import (
	"context"
	"errors"
)

// =============================================================================
// DOCUMENT - Versioned JSON payload
// =============================================================================

// Document is one record in a collection. Data is an opaque JSON body;
// the store never inspects it.
type Document struct {
	ID      string
	Version int64
	Data    []byte
}

// =============================================================================
// STORE - Collection CRUD with compare-and-set updates
// =============================================================================

// Store is the persistence boundary. Implementations must make Put and
// Update atomic per document.
type Store interface {
	// Put creates a document. Fails with ErrExists if the id is taken.
	// The stored document starts at version 1 regardless of doc.Version.
	Put(ctx context.Context, collection string, doc Document) error

	// Get returns the document or ErrNotFound.
	Get(ctx context.Context, collection, id string) (Document, error)

	// Update replaces the document body if and only if the stored version
	// equals doc.Version. On success the stored version is incremented and
	// the new document is returned. On a lost race it returns
	// ErrVersionMismatch; callers re-read and retry.
	Update(ctx context.Context, collection string, doc Document) (Document, error)

	// Delete removes the document. ErrNotFound if absent.
	Delete(ctx context.Context, collection, id string) error

	// List returns every document in the collection, in unspecified order.
	List(ctx context.Context, collection string) ([]Document, error)
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotFound is returned when a document id does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrExists is returned by Put when the document id is already taken.
	ErrExists = errors.New("document already exists")

	// ErrVersionMismatch is returned by Update when the stored version no
	// longer matches the caller's read. The caller should re-read and retry.
	ErrVersionMismatch = errors.New("document version mismatch")
)
