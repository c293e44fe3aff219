// Package sqlfilter builds parameterized SQL WHERE clauses for list queries.
package sqlfilter

import (
	"fmt"
	"strings"
)

// Builder accumulates conditions and their positional arguments.
// Column names are written into the SQL verbatim and must never come from user input;
// values are always passed as $n placeholders.
// Zero value is ready to use.
type Builder struct {
	conditions []string
	args       []any
}

// Eq adds "column = value".
func (b *Builder) Eq(column string, value any) *Builder {
	return b.add(column, "=", value)
}

// Gte adds "column >= value".
func (b *Builder) Gte(column string, value any) *Builder {
	return b.add(column, ">=", value)
}

// Lte adds "column <= value".
func (b *Builder) Lte(column string, value any) *Builder {
	return b.add(column, "<=", value)
}

// NotNull adds "column IS NOT NULL".
func (b *Builder) NotNull(column string) *Builder {
	b.conditions = append(b.conditions, column+" IS NOT NULL")
	return b
}

// Where returns the clause including the WHERE keyword, or "" when no conditions
// were added, together with the arguments in placeholder order.
func (b *Builder) Where() (string, []any) {
	if len(b.conditions) == 0 {
		return "", b.args
	}
	return "WHERE " + strings.Join(b.conditions, " AND "), b.args
}

// Args returns every argument added so far, including paging values.
func (b *Builder) Args() []any {
	return b.args
}

// Page appends LIMIT/OFFSET placeholders for the given values to the argument list and
// returns the SQL fragment. A non-positive limit means no LIMIT clause.
func (b *Builder) Page(limit, offset int) string {
	var parts []string
	if limit > 0 {
		b.args = append(b.args, limit)
		parts = append(parts, fmt.Sprintf("LIMIT $%d", len(b.args)))
	}
	if offset > 0 {
		b.args = append(b.args, offset)
		parts = append(parts, fmt.Sprintf("OFFSET $%d", len(b.args)))
	}
	return strings.Join(parts, " ")
}

func (b *Builder) add(column, op string, value any) *Builder {
	b.args = append(b.args, value)
	b.conditions = append(b.conditions, fmt.Sprintf("%s %s $%d", column, op, len(b.args)))
	return b
}
