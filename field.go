package tablemap

import (
	"fmt"
	"reflect"
)

// FieldMapping binds one column to one property of T.
type FieldMapping[T any] struct {
	// Property is the name of the bound property.
	Property string
	// NativeType is the Go type of the property.
	NativeType reflect.Type
	// Column is the column name.
	Column string
	// ColumnType is the type every parameter of this column is bound with.
	ColumnType ColumnType

	acc Accessor[T]
	fk  *ForeignKeyMapping[T]
}

func newFieldMapping[T any](acc Accessor[T], column string, typ []ColumnType) *FieldMapping[T] {
	f := &FieldMapping[T]{
		Property:   acc.Name(),
		NativeType: acc.Type(),
		Column:     column,
		ColumnType: acc.defaultColumnType(),
		acc:        acc,
	}
	if len(typ) > 0 {
		f.ColumnType = typ[0]
	}
	return f
}

// DBValue reads the property of e and returns it ready to be bound: pointers
// are dereferenced, enumerations reduced to int64, NULL returned as nil.
func (f *FieldMapping[T]) DBValue(e *T) (any, error) {
	v, err := f.acc.dbValue(e)
	if err != nil {
		return nil, err
	}
	b, err := f.ColumnType.bind(v)
	if err != nil {
		return nil, &ConversionError{Property: f.Property, From: v, To: f.ColumnType.String(), Err: err}
	}
	return b, nil
}

// SetDBValue converts a value read from a row to the native type of the
// property and assigns it. NULL is only accepted by nullable properties.
func (f *FieldMapping[T]) SetDBValue(e *T, raw any) error {
	return f.acc.setDBValue(e, raw)
}

// ForeignKey returns the foreign key view of the field, if it is one.
func (f *FieldMapping[T]) ForeignKey() (*ForeignKeyMapping[T], bool) {
	return f.fk, f.fk != nil
}

// Kind returns the relation kind, or Scalar for plain columns.
func (f *FieldMapping[T]) Kind() MapKind {
	if f.fk == nil {
		return Scalar
	}
	return f.fk.Kind
}

// String implements the fmt.Stringer interface.
func (f *FieldMapping[T]) String() string {
	if f.fk != nil {
		return fmt.Sprintf("ForeignKey %q (%s) --> %s.%s (%s, %s)", f.Property, f.NativeType, f.fk.ForeignTable, f.Column, f.ColumnType, f.fk.Kind)
	}
	return fmt.Sprintf("Field %q (%s) --> %q (%s)", f.Property, f.NativeType, f.Column, f.ColumnType)
}
