package rowstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/collexdb/collex/domain/collerr"
)

// Format names a supported ingest file format.
type Format int

const (
	// FormatJSONL ingests newline-delimited JSON records.
	FormatJSONL Format = iota
	// FormatParquet ingests an Apache Parquet file.
	FormatParquet
)

const keyColumn = "_key"

// Import creates table from sourcePath within a single transaction: it
// infers the schema from the source file, assigns the synthetic `_key`
// sequence column, and commits. Any failure leaves no partial state
// visible. Calling Import against a table that already exists fails with
// InvalidOperation, per the single-import-per-collection constraint.
func (d *Database) Import(ctx context.Context, table, sourcePath string, format Format) error {
	return d.WithWriter(ctx, func(ctx context.Context, tx *sql.Tx) error {
		exists, err := tableExists(ctx, tx, table)
		if err != nil {
			return err
		}
		if exists {
			return collerr.New(collerr.InvalidOperation, "rowstore.Import", fmt.Sprintf("table %q already imported", table))
		}

		reader, err := readExpression(format, sourcePath)
		if err != nil {
			return err
		}

		createStmt := fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM %s", quoteIdentifier(table), reader)
		if _, err := tx.ExecContext(ctx, createStmt); err != nil {
			return collerr.Wrap(collerr.IOError, "rowstore.Import", "create table from source", err)
		}

		if err := addKeySequence(ctx, tx, table); err != nil {
			return err
		}
		return nil
	})
}

func readExpression(format Format, sourcePath string) (string, error) {
	switch format {
	case FormatJSONL:
		return fmt.Sprintf("read_json_auto('%s')", escapeLiteral(sourcePath)), nil
	case FormatParquet:
		return fmt.Sprintf("read_parquet('%s')", escapeLiteral(sourcePath)), nil
	default:
		return "", collerr.New(collerr.InvalidOperation, "rowstore.Import", "unsupported ingest format")
	}
}

func escapeLiteral(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			out = append(out, '\'', '\'')
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}

func addKeySequence(ctx context.Context, tx *sql.Tx, table string) error {
	alterStmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s UBIGINT", quoteIdentifier(table), quoteIdentifier(keyColumn))
	if _, err := tx.ExecContext(ctx, alterStmt); err != nil {
		return collerr.Wrap(collerr.IOError, "rowstore.Import", "add _key column", err)
	}

	seqName := sequenceName(table)
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE SEQUENCE %s START 1", quoteIdentifier(seqName))); err != nil {
		return collerr.Wrap(collerr.IOError, "rowstore.Import", "create key sequence", err)
	}

	updateStmt := fmt.Sprintf("UPDATE %s SET %s = nextval('%s')", quoteIdentifier(table), quoteIdentifier(keyColumn), seqName)
	if _, err := tx.ExecContext(ctx, updateStmt); err != nil {
		return collerr.Wrap(collerr.IOError, "rowstore.Import", "assign _key values", err)
	}
	return nil
}

func sequenceName(table string) string {
	return "seq_" + table + "_key"
}

func tableExists(ctx context.Context, tx *sql.Tx, table string) (bool, error) {
	row := tx.QueryRowContext(ctx, "SELECT count(*) FROM information_schema.tables WHERE table_name = ?", table)
	var count int
	if err := row.Scan(&count); err != nil {
		return false, collerr.Wrap(collerr.IOError, "rowstore.tableExists", "query information_schema", err)
	}
	return count > 0, nil
}
