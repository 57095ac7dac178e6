// Gambit - Chess Statistics over an Embedded Read-Mostly Dataset
// Copyright 2026 Gambit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gambit-analytics/gambit

// Package query provides SQL query building utilities for the statistics
// layer. It keeps all user-supplied values in parameter placeholders so the
// generated SQL is safe to execute and stable to cache.
package query

import (
	"fmt"
	"strings"
)

// Builder constructs a parameterized SELECT statement. All filter values go
// through placeholders; only column and table names (which come from code,
// never from requests) are interpolated.
//
// Example usage:
//
//	b := query.NewBuilder("games").
//	    Select("eco", "opening", "COUNT(*) AS games").
//	    WhereEq("result", "1-0").
//	    WhereBetween("white_elo", 2000, 2800).
//	    GroupBy("eco", "opening").
//	    OrderBy("games DESC").
//	    Limit(20)
//	sql, args := b.Build()
//
// WHERE and HAVING arguments are kept in separate slices and concatenated in
// render order at Build time, so interleaving Where and Having calls cannot
// bind a value to the wrong placeholder.
type Builder struct {
	table      string
	columns    []string
	clauses    []string
	whereArgs  []interface{}
	groupBy    []string
	having     []string
	havingArgs []interface{}
	orderBy    []string
	limit      *int
	offset     *int
}

// NewBuilder creates a Builder for the given table.
func NewBuilder(table string) *Builder {
	return &Builder{table: table}
}

// Select sets the projected columns. Defaults to "*" when never called.
func (b *Builder) Select(columns ...string) *Builder {
	b.columns = append(b.columns, columns...)
	return b
}

// Where adds a raw condition fragment with its arguments. Useful for
// conditions the typed helpers do not cover.
func (b *Builder) Where(clause string, args ...interface{}) *Builder {
	b.clauses = append(b.clauses, clause)
	b.whereArgs = append(b.whereArgs, args...)
	return b
}

// WhereEq adds "column = ?".
func (b *Builder) WhereEq(column string, value interface{}) *Builder {
	return b.Where(column+" = ?", value)
}

// WhereLike adds "column LIKE ?".
func (b *Builder) WhereLike(column string, pattern string) *Builder {
	return b.Where(column+" LIKE ?", pattern)
}

// WhereBetween adds "column BETWEEN ? AND ?".
func (b *Builder) WhereBetween(column string, low, high interface{}) *Builder {
	return b.Where(column+" BETWEEN ? AND ?", low, high)
}

// WhereIn adds "column IN (?, ...)". An empty value list is skipped rather
// than generating invalid SQL.
func (b *Builder) WhereIn(column string, values ...interface{}) *Builder {
	if len(values) == 0 {
		return b
	}
	placeholders := make([]string, len(values))
	for i := range values {
		placeholders[i] = "?"
	}
	b.clauses = append(b.clauses, fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ", ")))
	b.whereArgs = append(b.whereArgs, values...)
	return b
}

// WhereNull adds "column IS NULL".
func (b *Builder) WhereNull(column string) *Builder {
	b.clauses = append(b.clauses, column+" IS NULL")
	return b
}

// WhereNotNull adds "column IS NOT NULL".
func (b *Builder) WhereNotNull(column string) *Builder {
	b.clauses = append(b.clauses, column+" IS NOT NULL")
	return b
}

// GroupBy adds grouping columns.
func (b *Builder) GroupBy(columns ...string) *Builder {
	b.groupBy = append(b.groupBy, columns...)
	return b
}

// Having adds a HAVING condition with its arguments.
func (b *Builder) Having(clause string, args ...interface{}) *Builder {
	b.having = append(b.having, clause)
	b.havingArgs = append(b.havingArgs, args...)
	return b
}

// OrderBy adds ordering expressions, e.g. "games DESC".
func (b *Builder) OrderBy(exprs ...string) *Builder {
	b.orderBy = append(b.orderBy, exprs...)
	return b
}

// Limit caps the row count. The value is bound as a placeholder so the SQL
// text (and therefore the cache key prefix) stays stable across page sizes.
func (b *Builder) Limit(n int) *Builder {
	b.limit = &n
	return b
}

// Offset skips the first n rows. Bound as a placeholder like Limit.
func (b *Builder) Offset(n int) *Builder {
	b.offset = &n
	return b
}

// Build renders the SELECT statement and its argument list. The argument
// order matches placeholder order: WHERE, HAVING, LIMIT, OFFSET — regardless
// of the order the Where and Having calls were made in.
func (b *Builder) Build() (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	if len(b.columns) == 0 {
		sb.WriteString("*")
	} else {
		sb.WriteString(strings.Join(b.columns, ", "))
	}
	sb.WriteString(" FROM ")
	sb.WriteString(b.table)

	args := make([]interface{}, 0, len(b.whereArgs)+len(b.havingArgs)+2)
	args = append(args, b.whereArgs...)
	args = append(args, b.havingArgs...)

	if len(b.clauses) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(b.clauses, " AND "))
	}
	if len(b.groupBy) > 0 {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(b.groupBy, ", "))
	}
	if len(b.having) > 0 {
		sb.WriteString(" HAVING ")
		sb.WriteString(strings.Join(b.having, " AND "))
	}
	if len(b.orderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(b.orderBy, ", "))
	}
	if b.limit != nil {
		sb.WriteString(" LIMIT ?")
		args = append(args, *b.limit)
	}
	if b.offset != nil {
		sb.WriteString(" OFFSET ?")
		args = append(args, *b.offset)
	}

	return sb.String(), args
}

// BuildCount renders a COUNT query over the same filters, ignoring ordering
// and pagination. Grouped queries are wrapped in a subselect so the count is
// the number of groups, not the number of underlying rows.
func (b *Builder) BuildCount() (string, []interface{}) {
	var sb strings.Builder

	if len(b.groupBy) > 0 {
		inner := b.Clone()
		inner.orderBy = nil
		inner.limit = nil
		inner.offset = nil
		innerSQL, args := inner.Build()
		sb.WriteString("SELECT COUNT(*) AS total FROM (")
		sb.WriteString(innerSQL)
		sb.WriteString(") AS grouped")
		return sb.String(), args
	}

	sb.WriteString("SELECT COUNT(*) AS total FROM ")
	sb.WriteString(b.table)

	// HAVING without GROUP BY is not meaningful, so only WHERE args apply.
	args := make([]interface{}, 0, len(b.whereArgs))
	args = append(args, b.whereArgs...)

	if len(b.clauses) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(b.clauses, " AND "))
	}

	return sb.String(), args
}

// Clone returns an independent copy; mutating the copy never affects the
// original.
func (b *Builder) Clone() *Builder {
	c := &Builder{
		table:      b.table,
		columns:    append([]string(nil), b.columns...),
		clauses:    append([]string(nil), b.clauses...),
		whereArgs:  append([]interface{}(nil), b.whereArgs...),
		groupBy:    append([]string(nil), b.groupBy...),
		having:     append([]string(nil), b.having...),
		havingArgs: append([]interface{}(nil), b.havingArgs...),
		orderBy:    append([]string(nil), b.orderBy...),
	}
	if b.limit != nil {
		v := *b.limit
		c.limit = &v
	}
	if b.offset != nil {
		v := *b.offset
		c.offset = &v
	}
	return c
}

// HasFilters reports whether any WHERE condition was added.
func (b *Builder) HasFilters() bool {
	return len(b.clauses) > 0
}
