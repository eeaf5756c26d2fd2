package sql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/syssam/tablemap/dialect"
)

// Querier wraps the basic Query method implemented by all statement builders.
type Querier interface {
	// Query returns the statement text and its bound arguments.
	Query() (string, []any)
}

// Builder is the shared state of every statement builder: the dialect, the
// statement text written so far and its arguments. Identifiers are quoted
// and validated; values always go through placeholders.
type Builder struct {
	sb      strings.Builder
	args    []any
	dialect string
	errs    []error
}

// Ident writes a quoted identifier.
func (b *Builder) Ident(s string) *Builder {
	if !isValidIdentifier(s) {
		b.errs = append(b.errs, fmt.Errorf("dialect/sql: invalid identifier %q", s))
	}
	for i, part := range strings.Split(s, ".") {
		if i > 0 {
			b.sb.WriteByte('.')
		}
		if b.dialect == dialect.MySQL {
			b.sb.WriteString("`" + part + "`")
		} else {
			b.sb.WriteString(strconv.Quote(part))
		}
	}
	return b
}

// WriteString writes raw statement text.
func (b *Builder) WriteString(s string) *Builder {
	b.sb.WriteString(s)
	return b
}

// Arg writes a placeholder and records its argument.
func (b *Builder) Arg(v any) *Builder {
	b.args = append(b.args, v)
	if b.dialect == dialect.Postgres {
		b.sb.WriteString("$" + strconv.Itoa(len(b.args)))
	} else {
		b.sb.WriteString("?")
	}
	return b
}

// SetDialect sets the dialect the statement is rendered for.
func (b *Builder) SetDialect(name string) {
	b.dialect = name
}

// Err returns the first error recorded while building.
func (b *Builder) Err() error {
	if len(b.errs) == 0 {
		return nil
	}
	return b.errs[0]
}

func (b *Builder) identList(names []string) {
	for i, name := range names {
		if i > 0 {
			b.sb.WriteString(", ")
		}
		b.Ident(name)
	}
}

// Predicate is a single "column = value" condition.
type Predicate struct {
	column string
	value  any
}

// EQ returns a predicate matching rows whose column equals v.
func EQ(column string, v any) *Predicate {
	return &Predicate{column: column, value: v}
}

func (p *Predicate) build(b *Builder) {
	b.WriteString(" WHERE ").Ident(p.column).WriteString(" = ").Arg(p.value)
}

// DialectBuilder prefixes all statement builders with a dialect.
type DialectBuilder struct {
	dialect string
}

// Dialect creates a new DialectBuilder with the given dialect name.
func Dialect(name string) *DialectBuilder {
	return &DialectBuilder{dialect: name}
}

// Insert creates an InsertBuilder for the given table.
func (d *DialectBuilder) Insert(table string) *InsertBuilder {
	return &InsertBuilder{Builder: Builder{dialect: d.dialect}, table: table}
}

// Update creates an UpdateBuilder for the given table.
func (d *DialectBuilder) Update(table string) *UpdateBuilder {
	return &UpdateBuilder{Builder: Builder{dialect: d.dialect}, table: table}
}

// Delete creates a DeleteBuilder for the given table.
func (d *DialectBuilder) Delete(table string) *DeleteBuilder {
	return &DeleteBuilder{Builder: Builder{dialect: d.dialect}, table: table}
}

// Select creates a Selector for the given columns.
func (d *DialectBuilder) Select(columns ...string) *Selector {
	return &Selector{Builder: Builder{dialect: d.dialect}, columns: columns}
}

// InsertBuilder builds INSERT INTO <table> (<cols>) VALUES (<?,...>).
type InsertBuilder struct {
	Builder
	table   string
	columns []string
	values  []any
}

// Columns sets the inserted columns.
func (i *InsertBuilder) Columns(columns ...string) *InsertBuilder {
	i.columns = append(i.columns, columns...)
	return i
}

// Values sets the inserted values, in column order.
func (i *InsertBuilder) Values(values ...any) *InsertBuilder {
	i.values = append(i.values, values...)
	return i
}

// Set appends a column and its value.
func (i *InsertBuilder) Set(column string, v any) *InsertBuilder {
	i.columns = append(i.columns, column)
	i.values = append(i.values, v)
	return i
}

// Query returns the INSERT statement and its arguments.
func (i *InsertBuilder) Query() (string, []any) {
	if len(i.columns) != len(i.values) {
		i.errs = append(i.errs, fmt.Errorf("dialect/sql: insert %q: %d columns but %d values", i.table, len(i.columns), len(i.values)))
	}
	i.WriteString("INSERT INTO ").Ident(i.table)
	if len(i.columns) == 0 {
		if i.dialect == dialect.MySQL {
			i.WriteString(" () VALUES ()")
		} else {
			i.WriteString(" DEFAULT VALUES")
		}
		return i.sb.String(), i.args
	}
	i.WriteString(" (")
	i.identList(i.columns)
	i.WriteString(") VALUES (")
	for n, v := range i.values {
		if n > 0 {
			i.WriteString(", ")
		}
		i.Arg(v)
	}
	i.WriteString(")")
	return i.sb.String(), i.args
}

// UpdateBuilder builds UPDATE <table> SET <col> = ?, ... WHERE <col> = ?.
type UpdateBuilder struct {
	Builder
	table   string
	columns []string
	values  []any
	where   *Predicate
}

// Set appends a column assignment.
func (u *UpdateBuilder) Set(column string, v any) *UpdateBuilder {
	u.columns = append(u.columns, column)
	u.values = append(u.values, v)
	return u
}

// Where sets the update predicate.
func (u *UpdateBuilder) Where(p *Predicate) *UpdateBuilder {
	u.where = p
	return u
}

// Empty reports whether the update has no assignments.
func (u *UpdateBuilder) Empty() bool { return len(u.columns) == 0 }

// Query returns the UPDATE statement and its arguments.
func (u *UpdateBuilder) Query() (string, []any) {
	u.WriteString("UPDATE ").Ident(u.table).WriteString(" SET ")
	for n, c := range u.columns {
		if n > 0 {
			u.WriteString(", ")
		}
		u.Ident(c).WriteString(" = ").Arg(u.values[n])
	}
	if u.where != nil {
		u.where.build(&u.Builder)
	}
	return u.sb.String(), u.args
}

// DeleteBuilder builds DELETE FROM <table> WHERE <col> = ?.
type DeleteBuilder struct {
	Builder
	table string
	where *Predicate
}

// Where sets the delete predicate.
func (d *DeleteBuilder) Where(p *Predicate) *DeleteBuilder {
	d.where = p
	return d
}

// Query returns the DELETE statement and its arguments.
func (d *DeleteBuilder) Query() (string, []any) {
	d.WriteString("DELETE FROM ").Ident(d.table)
	if d.where != nil {
		d.where.build(&d.Builder)
	}
	return d.sb.String(), d.args
}

// Selector builds SELECT <cols> FROM <table> [WHERE <col> = ?].
type Selector struct {
	Builder
	table   string
	columns []string
	where   *Predicate
}

// From sets the source table.
func (s *Selector) From(table string) *Selector {
	s.table = table
	return s
}

// Where sets the selection predicate.
func (s *Selector) Where(p *Predicate) *Selector {
	s.where = p
	return s
}

// Query returns the SELECT statement and its arguments.
func (s *Selector) Query() (string, []any) {
	s.WriteString("SELECT ")
	s.identList(s.columns)
	s.WriteString(" FROM ").Ident(s.table)
	if s.where != nil {
		s.where.build(&s.Builder)
	}
	return s.sb.String(), s.args
}

var (
	_ Querier = (*InsertBuilder)(nil)
	_ Querier = (*UpdateBuilder)(nil)
	_ Querier = (*DeleteBuilder)(nil)
	_ Querier = (*Selector)(nil)
)
