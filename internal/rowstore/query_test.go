package rowstore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuery_Build_SimpleSelect(t *testing.T) {
	stmt, args := NewQuery("docs", "_key", "content").Build()
	assert.Equal(t, `SELECT "_key", "content" FROM "docs"`, stmt)
	assert.Empty(t, args)
}

func TestQuery_Build_WithEquals(t *testing.T) {
	stmt, args := NewQuery("docs").Apply(WithEquals("status", "active")).Build()
	assert.True(t, strings.Contains(stmt, `WHERE "status" = ?`))
	assert.Equal(t, []any{"active"}, args)
}

func TestQuery_Build_WithIn(t *testing.T) {
	stmt, args := NewQuery("docs", "_key").Apply(WithIn("_key", []any{uint64(1), uint64(2), uint64(3)})).Build()
	assert.True(t, strings.Contains(stmt, `"_key" IN (?, ?, ?)`))
	assert.Len(t, args, 3)
}

func TestQuery_Build_OrderLimitOffset(t *testing.T) {
	stmt, _ := NewQuery("docs").Apply(
		WithOrderAsc("_key"),
		WithLimit(10),
		WithOffset(20),
	).Build()
	assert.True(t, strings.HasSuffix(stmt, `ORDER BY "_key" ASC LIMIT 10 OFFSET 20`))
}

func TestQuery_Build_QuotesIdentifiersWithEmbeddedQuotes(t *testing.T) {
	stmt, _ := NewQuery(`weird"table`).Build()
	assert.Equal(t, `SELECT * FROM "weird""table"`, stmt)
}
