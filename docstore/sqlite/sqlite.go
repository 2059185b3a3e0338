/*
Package sqlite provides a SQLite-backed implementation of docstore.Store.

PURPOSE:
  Persists collections of versioned JSON documents in a single table.
  In production the same pattern applies to PostgreSQL - only minor SQL
  dialect differences.

COMPARE-AND-SET:
  Update is a conditional UPDATE:

    UPDATE documents SET body = ?, version = version + 1
    WHERE collection = ? AND id = ? AND version = ?

  Zero rows affected means either the document is gone (ErrNotFound) or
  another writer got there first (ErrVersionMismatch); a follow-up SELECT
  distinguishes the two. This is the primitive the credit ledger and stock
  manager build their retry loops on.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/market.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  Use ":memory:" for tests.

SEE ALSO:
  - docstore/docstore.go: Interface definition
  - docstore/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/campuscart/market-engine/docstore"
)

// Store implements docstore.Store using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection sidesteps SQLITE_BUSY between the CAS UPDATE and
	// its follow-up SELECT; WAL still allows concurrent readers.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		version INTEGER NOT NULL,
		body TEXT NOT NULL,
		PRIMARY KEY (collection, id)
	);

	CREATE INDEX IF NOT EXISTS idx_documents_collection
		ON documents(collection);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Put(ctx context.Context, collection string, doc docstore.Document) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, version, body) VALUES (?, ?, 1, ?)`,
		collection, doc.ID, string(doc.Data),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return docstore.ErrExists
		}
		return fmt.Errorf("put %s/%s: %w", collection, doc.ID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	var doc docstore.Document
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, version, body FROM documents WHERE collection = ? AND id = ?`,
		collection, id,
	).Scan(&doc.ID, &doc.Version, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return docstore.Document{}, docstore.ErrNotFound
	}
	if err != nil {
		return docstore.Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	doc.Data = []byte(body)
	return doc, nil
}

func (s *Store) Update(ctx context.Context, collection string, doc docstore.Document) (docstore.Document, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET body = ?, version = version + 1
		 WHERE collection = ? AND id = ? AND version = ?`,
		string(doc.Data), collection, doc.ID, doc.Version,
	)
	if err != nil {
		return docstore.Document{}, fmt.Errorf("update %s/%s: %w", collection, doc.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return docstore.Document{}, err
	}
	if affected == 0 {
		// Either the document is gone or another writer won the race.
		if _, err := s.Get(ctx, collection, doc.ID); errors.Is(err, docstore.ErrNotFound) {
			return docstore.Document{}, docstore.ErrNotFound
		}
		return docstore.Document{}, docstore.ErrVersionMismatch
	}
	return docstore.Document{ID: doc.ID, Version: doc.Version + 1, Data: doc.Data}, nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`,
		collection, id,
	)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

func (s *Store) List(ctx context.Context, collection string) ([]docstore.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, version, body FROM documents WHERE collection = ? ORDER BY id`,
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	var result []docstore.Document
	for rows.Next() {
		var doc docstore.Document
		var body string
		if err := rows.Scan(&doc.ID, &doc.Version, &body); err != nil {
			return nil, err
		}
		doc.Data = []byte(body)
		result = append(result, doc)
	}
	return result, rows.Err()
}

// isUniqueViolation recognizes the primary-key conflict sqlite reports on
// duplicate (collection, id) inserts.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "PRIMARY KEY must be unique")
}
