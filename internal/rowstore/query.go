package rowstore

import (
	"fmt"
	"strings"
)

// Query is a small SQL builder for the condition/order/limit/offset shapes
// the row store needs: equality and IN-list filters, single-column
// ordering, and pagination. It is not a general query builder; it covers
// exactly what Collection's operations require.
type Query struct {
	table      string
	columns    []string
	conditions []condition
	orderBy    string
	ascending  bool
	limit      int
	offset     int
	hasLimit   bool
	hasOffset  bool
}

type condition struct {
	field string
	in    bool
	value any
	values []any
}

// Option mutates a Query being built. Options compose via Query.Apply.
type Option func(Query) Query

// NewQuery starts a builder selecting columns from table.
func NewQuery(table string, columns ...string) Query {
	return Query{table: table, columns: columns}
}

// Apply folds opts over q in order.
func (q Query) Apply(opts ...Option) Query {
	for _, opt := range opts {
		q = opt(q)
	}
	return q
}

// WithEquals filters field = value.
func WithEquals(field string, value any) Option {
	return func(q Query) Query {
		q.conditions = append(q.conditions, condition{field: field, value: value})
		return q
	}
}

// WithIn filters field IN (values...).
func WithIn(field string, values []any) Option {
	return func(q Query) Query {
		q.conditions = append(q.conditions, condition{field: field, in: true, values: values})
		return q
	}
}

// WithOrderAsc orders the result ascending by field.
func WithOrderAsc(field string) Option {
	return func(q Query) Query { q.orderBy = field; q.ascending = true; return q }
}

// WithOrderDesc orders the result descending by field.
func WithOrderDesc(field string) Option {
	return func(q Query) Query { q.orderBy = field; q.ascending = false; return q }
}

// WithLimit caps the number of returned rows.
func WithLimit(n int) Option {
	return func(q Query) Query { q.limit = n; q.hasLimit = true; return q }
}

// WithOffset skips the first n rows (after ordering).
func WithOffset(n int) Option {
	return func(q Query) Query { q.offset = n; q.hasOffset = true; return q }
}

// Build renders the SELECT statement and its positional arguments.
func (q Query) Build() (string, []any) {
	cols := "*"
	if len(q.columns) > 0 {
		cols = strings.Join(quoteIdentifiers(q.columns), ", ")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", cols, quoteIdentifier(q.table))

	var args []any
	if len(q.conditions) > 0 {
		clauses := make([]string, 0, len(q.conditions))
		for _, c := range q.conditions {
			if c.in {
				placeholders := make([]string, len(c.values))
				for i, v := range c.values {
					placeholders[i] = "?"
					args = append(args, v)
				}
				clauses = append(clauses, fmt.Sprintf("%s IN (%s)", quoteIdentifier(c.field), strings.Join(placeholders, ", ")))
			} else {
				clauses = append(clauses, fmt.Sprintf("%s = ?", quoteIdentifier(c.field)))
				args = append(args, c.value)
			}
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(clauses, " AND "))
	}

	if q.orderBy != "" {
		dir := "DESC"
		if q.ascending {
			dir = "ASC"
		}
		fmt.Fprintf(&sb, " ORDER BY %s %s", quoteIdentifier(q.orderBy), dir)
	}
	if q.hasLimit {
		fmt.Fprintf(&sb, " LIMIT %d", q.limit)
	}
	if q.hasOffset {
		fmt.Fprintf(&sb, " OFFSET %d", q.offset)
	}

	return sb.String(), args
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteIdentifiers(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = quoteIdentifier(n)
	}
	return out
}
