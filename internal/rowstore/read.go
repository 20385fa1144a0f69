package rowstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/collexdb/collex/domain/collerr"
)

// TextKey pairs a row's text column value with its `_key`.
type TextKey struct {
	Key  uint64
	Text string
}

// ColumnBatch reads (_key, column) pairs ordered by _key, offset rows in,
// limited to batchSize rows. Used by embed_column to stream rows through
// the embedding pipeline without holding the reader lock across inference.
func (d *Database) ColumnBatch(ctx context.Context, table, column string, offset, batchSize int) ([]TextKey, error) {
	var out []TextKey
	err := d.WithReader(ctx, func(ctx context.Context, conn *sql.DB) error {
		query := NewQuery(table, keyColumn, column).Apply(
			WithOrderAsc(keyColumn),
			WithOffset(offset),
			WithLimit(batchSize),
		)
		stmt, args := query.Build()

		rows, err := conn.QueryContext(ctx, stmt, args...)
		if err != nil {
			return collerr.Wrap(collerr.IOError, "rowstore.ColumnBatch", "query column batch", err)
		}
		defer rows.Close()

		for rows.Next() {
			var tk TextKey
			var text sql.NullString
			if err := rows.Scan(&tk.Key, &text); err != nil {
				return collerr.Wrap(collerr.IOError, "rowstore.ColumnBatch", "scan row", err)
			}
			tk.Text = text.String
			out = append(out, tk)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RowCount returns the number of rows currently in table.
func (d *Database) RowCount(ctx context.Context, table string) (int64, error) {
	var count int64
	err := d.WithReader(ctx, func(ctx context.Context, conn *sql.DB) error {
		row := conn.QueryRowContext(ctx, fmt.Sprintf("SELECT count(*) FROM %s", quoteIdentifier(table)))
		return row.Scan(&count)
	})
	if err != nil {
		return 0, collerr.Wrap(collerr.IOError, "rowstore.RowCount", "count rows", err)
	}
	return count, nil
}

// RowsByKeys hydrates column's text for each of the given keys in a single
// IN (...) query, used to turn vector index search hits back into row
// content.
func (d *Database) RowsByKeys(ctx context.Context, table, column string, keys []uint64) (map[uint64]string, error) {
	out := make(map[uint64]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	values := make([]any, len(keys))
	for i, k := range keys {
		values[i] = k
	}

	err := d.WithReader(ctx, func(ctx context.Context, conn *sql.DB) error {
		query := NewQuery(table, keyColumn, column).Apply(WithIn(keyColumn, values))
		stmt, args := query.Build()

		rows, err := conn.QueryContext(ctx, stmt, args...)
		if err != nil {
			return collerr.Wrap(collerr.IOError, "rowstore.RowsByKeys", "query rows by key", err)
		}
		defer rows.Close()

		for rows.Next() {
			var key uint64
			var text sql.NullString
			if err := rows.Scan(&key, &text); err != nil {
				return collerr.Wrap(collerr.IOError, "rowstore.RowsByKeys", "scan row", err)
			}
			out[key] = text.String
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
