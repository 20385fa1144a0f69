package rowstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rows.duckdb")
	db, err := NewDatabase(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func writeJSONL(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.jsonl")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestImport_AssignsDenseKeysStartingAtOne(t *testing.T) {
	db := newTestDatabase(t)
	path := writeJSONL(t,
		`{"title":"first"}`,
		`{"title":"second"}`,
		`{"title":"third"}`,
	)

	require.NoError(t, db.Import(context.Background(), "docs", path, FormatJSONL))

	count, err := db.RowCount(context.Background(), "docs")
	require.NoError(t, err)
	require.Equal(t, int64(3), count)

	batch, err := db.ColumnBatch(context.Background(), "docs", "title", 0, 10)
	require.NoError(t, err)
	require.Len(t, batch, 3)
	for i, tk := range batch {
		require.Equal(t, uint64(i+1), tk.Key)
	}
}

func TestImport_RejectsDuplicateImport(t *testing.T) {
	db := newTestDatabase(t)
	path := writeJSONL(t, `{"title":"only"}`)

	require.NoError(t, db.Import(context.Background(), "docs", path, FormatJSONL))
	err := db.Import(context.Background(), "docs", path, FormatJSONL)
	require.Error(t, err)
}

func TestColumnBatch_RespectsOffsetAndLimit(t *testing.T) {
	db := newTestDatabase(t)
	path := writeJSONL(t,
		`{"title":"a"}`, `{"title":"b"}`, `{"title":"c"}`, `{"title":"d"}`,
	)
	require.NoError(t, db.Import(context.Background(), "docs", path, FormatJSONL))

	batch, err := db.ColumnBatch(context.Background(), "docs", "title", 2, 2)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	require.Equal(t, "c", batch[0].Text)
	require.Equal(t, "d", batch[1].Text)
}

func TestRowsByKeys_HydratesRequestedKeys(t *testing.T) {
	db := newTestDatabase(t)
	path := writeJSONL(t,
		`{"title":"alpha"}`, `{"title":"beta"}`, `{"title":"gamma"}`,
	)
	require.NoError(t, db.Import(context.Background(), "docs", path, FormatJSONL))

	rows, err := db.RowsByKeys(context.Background(), "docs", "title", []uint64{1, 3})
	require.NoError(t, err)
	require.Equal(t, "alpha", rows[1])
	require.Equal(t, "gamma", rows[3])
	require.Len(t, rows, 2)
}

func TestRowsByKeys_EmptyKeysReturnsEmptyMap(t *testing.T) {
	db := newTestDatabase(t)
	rows, err := db.RowsByKeys(context.Background(), "docs", "title", nil)
	require.NoError(t, err)
	require.Empty(t, rows)
}
