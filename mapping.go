package tablemap

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-openapi/inflect"

	"github.com/syssam/tablemap/dialect/sql"
)

// EntityMapping is the ordered set of column bindings of the entity type T.
// Field order is the column order of every generated statement.
type EntityMapping[T any] struct {
	// Table is the mapped table name.
	Table string
	// PrimaryKey is the primary key field, if any. It is also part of Fields.
	PrimaryKey *FieldMapping[T]

	fields []*FieldMapping[T]
	errs   []error
}

// NewMapping returns an empty mapping for the given table. An empty table
// name defaults to the underscored plural of the entity type name, e.g.
// "order_lines" for OrderLine.
func NewMapping[T any](table string) *EntityMapping[T] {
	if table == "" {
		table = DefaultTableName(reflect.TypeFor[T]())
	}
	return &EntityMapping[T]{Table: table}
}

// rules keeps common initialisms in one word, so "CustomerID" becomes
// "customer_id" and not "customer_i_d". Longer acronyms go first.
var rules = func() *inflect.Ruleset {
	rs := inflect.NewDefaultRuleset()
	for _, a := range []string{"UUID", "HTTP", "JSON", "API", "SQL", "URL", "ID"} {
		rs.AddAcronym(a)
	}
	return rs
}()

// DefaultTableName returns the table name used for t when none is given.
func DefaultTableName(t reflect.Type) string {
	return rules.Underscore(rules.Pluralize(t.Name()))
}

// DefaultColumnName returns the column name used for a property when none is
// given.
func DefaultColumnName(property string) string {
	return rules.Underscore(property)
}

// Fields returns the fields in column order.
func (m *EntityMapping[T]) Fields() []*FieldMapping[T] {
	return m.fields
}

// Err returns the first error recorded by the builder methods.
func (m *EntityMapping[T]) Err() error {
	if len(m.errs) == 0 {
		return nil
	}
	return m.errs[0]
}

// AddField appends a plain column binding. An empty column name defaults
// to DefaultColumnName; the column type defaults to DefaultColumnType.
func (m *EntityMapping[T]) AddField(acc Accessor[T], column string, typ ...ColumnType) *EntityMapping[T] {
	m.add(newFieldMapping(acc, m.column(column, acc.Name()), typ))
	return m
}

// AddPrimaryKey appends the primary key binding. A mapping has at most one
// primary key; a second call records a ConfigError.
func (m *EntityMapping[T]) AddPrimaryKey(acc Accessor[T], column string, typ ...ColumnType) *EntityMapping[T] {
	if m.PrimaryKey != nil {
		m.errs = append(m.errs, configErrorf(m.entity(), acc.Name(), "primary key already set to %q", m.PrimaryKey.Property))
		return m
	}
	f := newFieldMapping(acc, m.column(column, acc.Name()), typ)
	m.PrimaryKey = f
	m.add(f)
	return m
}

// AddForeignKey appends a relation binding. The relation kind follows from
// the constructor of rel: Ref gives ScalarOwning, Refs OwnedCollection and
// BackRef BackReferenceCollection. For OwnedCollection, column names the
// column of the member table that points back at T. Without typ the column
// takes the primary key type of the entity on the other side once both are
// registered, and TypeString until then.
func (m *EntityMapping[T]) AddForeignKey(rel Relation[T], foreignTable, column string, typ ...ColumnType) *EntityMapping[T] {
	if rel.kind == Scalar {
		m.errs = append(m.errs, configErrorf(m.entity(), rel.name, "relation declared without Ref, Refs or BackRef"))
		return m
	}
	f := &FieldMapping[T]{
		Property:   rel.name,
		NativeType: rel.native,
		Column:     m.column(column, rel.name),
		ColumnType: TypeString,
	}
	if len(typ) > 0 {
		f.ColumnType = typ[0]
	}
	f.fk = &ForeignKeyMapping[T]{
		FieldMapping: f,
		ForeignTable: foreignTable,
		Kind:         rel.kind,
		ForeignType:  rel.foreign,
		rel:          rel,
		inferred:     len(typ) == 0,
	}
	m.add(f)
	return m
}

func (m *EntityMapping[T]) add(f *FieldMapping[T]) {
	for _, cur := range m.fields {
		// An owned collection has no column of its own, so it may share the
		// name of a real column.
		if cur.Column == f.Column && cur.Kind() != OwnedCollection && f.Kind() != OwnedCollection {
			m.errs = append(m.errs, configErrorf(m.entity(), f.Property, "column %q already mapped by %q", f.Column, cur.Property))
			return
		}
	}
	m.fields = append(m.fields, f)
}

func (m *EntityMapping[T]) column(column, property string) string {
	if column == "" {
		return DefaultColumnName(property)
	}
	return column
}

func (m *EntityMapping[T]) entity() string {
	return reflect.TypeFor[T]().Name()
}

// validate checks the mapping is usable for CRUD.
func (m *EntityMapping[T]) validate() error {
	if err := m.Err(); err != nil {
		return err
	}
	if m.Table == "" {
		return configErrorf(m.entity(), "", "no table name set")
	}
	if !sql.ValidIdentifier(m.Table) {
		return configErrorf(m.entity(), "", "invalid table name %q", m.Table)
	}
	for _, f := range m.fields {
		if f.Kind() != OwnedCollection && !sql.ValidIdentifier(f.Column) {
			return configErrorf(m.entity(), f.Property, "invalid column name %q", f.Column)
		}
		if f.Kind() == OwnedCollection && m.PrimaryKey == nil {
			return configErrorf(m.entity(), f.Property, "owned collection requires a primary key")
		}
	}
	return nil
}

// columns returns the selected fields: every field with a column of its own.
func (m *EntityMapping[T]) columns() []*FieldMapping[T] {
	fields := make([]*FieldMapping[T], 0, len(m.fields))
	for _, f := range m.fields {
		if f.Kind() != OwnedCollection {
			fields = append(fields, f)
		}
	}
	return fields
}

// owned returns the OwnedCollection relations.
func (m *EntityMapping[T]) owned() []*ForeignKeyMapping[T] {
	var fks []*ForeignKeyMapping[T]
	for _, f := range m.fields {
		if f.Kind() == OwnedCollection {
			fks = append(fks, f.fk)
		}
	}
	return fks
}

// backReference finds the BackReferenceCollection pointing at owner over
// column. Exactly one must exist.
func (m *EntityMapping[T]) backReference(owner reflect.Type, column string) (*ForeignKeyMapping[T], error) {
	var found []*ForeignKeyMapping[T]
	for _, f := range m.fields {
		if f.Kind() == BackReferenceCollection && f.fk.ForeignType == owner && f.Column == column {
			found = append(found, f.fk)
		}
	}
	switch len(found) {
	case 1:
		return found[0], nil
	case 0:
		return nil, configErrorf(m.entity(), "", "no back reference to %s over column %q", owner.Name(), column)
	default:
		return nil, configErrorf(m.entity(), "", "%d back references to %s over column %q", len(found), owner.Name(), column)
	}
}

// String implements the fmt.Stringer interface.
func (m *EntityMapping[T]) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Mapping for %q to table %q", reflect.TypeFor[T]().String(), m.Table)
	for _, f := range m.fields {
		sb.WriteString("\n  ")
		sb.WriteString(f.String())
		if f == m.PrimaryKey {
			sb.WriteString(" [pk]")
		}
	}
	return sb.String()
}
