// Package rowstore provides the DuckDB-backed columnar row store backing a
// collection: table ingest from JSONL/Parquet, synthetic `_key` assignment,
// column-batch reads for embedding, and IN-list hydration for search
// results.
package rowstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/marcboeker/go-duckdb/v2" // registers the "duckdb" driver

	"github.com/collexdb/collex/domain/collerr"
)

// Database wraps a DuckDB connection with the single-writer/multi-reader
// locking required by the collection's concurrency model: import holds the
// writer lock for its whole transaction, while searches and embedding reads
// take the reader lock per statement and release it before inference runs.
type Database struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewDatabase opens (creating if absent) the DuckDB database file at path.
func NewDatabase(ctx context.Context, path string) (*Database, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, collerr.Wrap(collerr.IOError, "rowstore.NewDatabase", "open duckdb database", err)
	}
	db.SetMaxOpenConns(1) // DuckDB single-file databases do not support concurrent writers

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, collerr.Wrap(collerr.IOError, "rowstore.NewDatabase", "ping duckdb database", err)
	}
	return &Database{db: db}, nil
}

// Close closes the underlying connection.
func (d *Database) Close() error {
	if err := d.db.Close(); err != nil {
		return collerr.Wrap(collerr.IOError, "rowstore.Close", "close duckdb database", err)
	}
	return nil
}

// WithWriter runs fn holding the exclusive writer lock. Used for import,
// which must run as a single all-or-nothing transaction.
func (d *Database) WithWriter(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return collerr.Wrap(collerr.IOError, "rowstore.WithWriter", "begin transaction", err)
	}
	if err := fn(ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return collerr.Wrap(collerr.IOError, "rowstore.WithWriter", "commit transaction", err)
	}
	return nil
}

// WithReader runs fn holding the shared reader lock. The lock is released
// when fn returns, so callers must not hold it across inference calls.
func (d *Database) WithReader(ctx context.Context, fn func(ctx context.Context, conn *sql.DB) error) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return fn(ctx, d.db)
}
