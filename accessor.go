package tablemap

import (
	"fmt"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"
)

// Accessor binds one property of the entity type T. Accessors are declared
// statically, once per mapping, with Prop or Encoded.
type Accessor[T any] interface {
	// Name returns the property name.
	Name() string
	// Type returns the native type of the property.
	Type() reflect.Type

	defaultColumnType() ColumnType
	dbValue(e *T) (any, error)
	setDBValue(e *T, raw any) error
}

// Prop returns an accessor for a property given a function returning its
// address. The address serves as both getter and setter:
//
//	tablemap.Prop("Name", func(a *Article) *string { return &a.Name })
//
// Pointer typed properties are nullable. Named integer types are treated as
// enumerations and stored as their integral value.
func Prop[T, V any](name string, ptr func(*T) *V) Accessor[T] {
	return &prop[T, V]{name: name, ptr: ptr}
}

type prop[T, V any] struct {
	name string
	ptr  func(*T) *V
}

func (p *prop[T, V]) Name() string                  { return p.name }
func (p *prop[T, V]) Type() reflect.Type            { return reflect.TypeFor[V]() }
func (p *prop[T, V]) defaultColumnType() ColumnType { return DefaultColumnType(p.Type()) }

func (p *prop[T, V]) dbValue(e *T) (any, error) {
	return nativeValue(reflect.ValueOf(p.ptr(e)).Elem()), nil
}

func (p *prop[T, V]) setDBValue(e *T, raw any) error {
	rv, err := convertValue(p.Type(), raw)
	if err != nil {
		return withProperty(err, p.name)
	}
	reflect.ValueOf(p.ptr(e)).Elem().Set(rv)
	return nil
}

// Encoded returns an accessor for a property stored as a msgpack encoded
// BLOB. It suits small structured values that have no column of their own.
func Encoded[T, V any](name string, ptr func(*T) *V) Accessor[T] {
	return &encoded[T, V]{name: name, ptr: ptr}
}

type encoded[T, V any] struct {
	name string
	ptr  func(*T) *V
}

func (p *encoded[T, V]) Name() string                  { return p.name }
func (p *encoded[T, V]) Type() reflect.Type            { return reflect.TypeFor[V]() }
func (p *encoded[T, V]) defaultColumnType() ColumnType { return TypeBlob }

func (p *encoded[T, V]) dbValue(e *T) (any, error) {
	b, err := msgpack.Marshal(p.ptr(e))
	if err != nil {
		return nil, &ConversionError{Property: p.name, From: *p.ptr(e), To: "msgpack", Err: err}
	}
	return b, nil
}

func (p *encoded[T, V]) setDBValue(e *T, raw any) error {
	var v V
	switch b := raw.(type) {
	case nil:
	case []byte:
		if err := msgpack.Unmarshal(b, &v); err != nil {
			return &ConversionError{Property: p.name, From: raw, To: p.Type().String(), Err: err}
		}
	case string:
		if err := msgpack.Unmarshal([]byte(b), &v); err != nil {
			return &ConversionError{Property: p.name, From: raw, To: p.Type().String(), Err: err}
		}
	default:
		return &ConversionError{Property: p.name, From: raw, To: p.Type().String(), Err: fmt.Errorf("expected encoded bytes")}
	}
	*p.ptr(e) = v
	return nil
}

func withProperty(err error, name string) error {
	if ce, ok := err.(*ConversionError); ok && ce.Property == "" {
		ce.Property = name
	}
	return err
}
