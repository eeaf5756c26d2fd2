package tablemap

import (
	"context"
	"fmt"
	"reflect"
)

// MapKind discriminates the relation a field takes part in.
type MapKind uint8

// Relation kinds.
const (
	// Scalar is a plain column, not a foreign key.
	Scalar MapKind = iota
	// ScalarOwning stores the primary key of a single referenced entity.
	ScalarOwning
	// OwnedCollection is the "1" side of a one-to-many relation. It has no
	// column; the members carry the foreign key.
	OwnedCollection
	// BackReferenceCollection is declared on the "N" side and names the
	// column pointing back at the owner. It is never read into a property.
	BackReferenceCollection
)

// String returns the kind name.
func (k MapKind) String() string {
	switch k {
	case ScalarOwning:
		return "scalar-owning"
	case OwnedCollection:
		return "owned-collection"
	case BackReferenceCollection:
		return "back-reference"
	default:
		return "scalar"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k MapKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// parentRef identifies the owner on whose behalf a member is written.
type parentRef struct {
	typ reflect.Type
	key any
}

func (p *parentRef) is(t reflect.Type) bool {
	return p != nil && p.typ == t
}

// Relation describes the property side of a foreign key. It is created with
// Ref, Refs or BackRef, which fix the kind and the foreign entity type, and
// carries the typed operations for its kind only.
type Relation[T any] struct {
	name    string
	native  reflect.Type
	kind    MapKind
	foreign reflect.Type

	// ScalarOwning.
	referenceKey func(reg *Registry, e *T) (any, error)
	resolve      func(ctx context.Context, reg *Registry, e *T, key any) error

	// OwnedCollection.
	load          func(ctx context.Context, reg *Registry, column string, e *T, key any) error
	cascadeCreate func(ctx context.Context, reg *Registry, column string, e *T, key any) error
	cascadeUpdate func(ctx context.Context, reg *Registry, column string, e *T, key any) error
	cascadeDelete func(ctx context.Context, reg *Registry, column string, key any) error
}

// Name returns the property name.
func (r Relation[T]) Name() string { return r.name }

// Type returns the native type of the property.
func (r Relation[T]) Type() reflect.Type { return r.native }

// Kind returns the relation kind.
func (r Relation[T]) Kind() MapKind { return r.kind }

// Ref declares a ScalarOwning relation: e stores the primary key of a
// single F.
//
//	tablemap.Ref("Article", func(l *OrderLine) **Article { return &l.Article })
func Ref[T, F any](name string, ptr func(*T) **F) Relation[T] {
	return Relation[T]{
		name:    name,
		native:  reflect.TypeFor[*F](),
		kind:    ScalarOwning,
		foreign: reflect.TypeFor[F](),
		referenceKey: func(reg *Registry, e *T) (any, error) {
			ref := *ptr(e)
			if ref == nil {
				return nil, nil
			}
			ff, err := FactoryFor[F](reg)
			if err != nil {
				return nil, err
			}
			return ff.persistedKey(ref)
		},
		resolve: func(ctx context.Context, reg *Registry, e *T, key any) error {
			ff, err := FactoryFor[F](reg)
			if err != nil {
				return err
			}
			ref, err := ff.getByID(ctx, key)
			if err != nil {
				return err
			}
			*ptr(e) = ref
			return nil
		},
	}
}

// Refs declares an OwnedCollection relation on the owner T. The members F
// must map a BackRef to T over the same column.
//
//	tablemap.Refs("Lines", func(o *Order) *[]*OrderLine { return &o.Lines })
func Refs[T, F any](name string, ptr func(*T) *[]*F) Relation[T] {
	owner := reflect.TypeFor[T]()
	return Relation[T]{
		name:    name,
		native:  reflect.TypeFor[[]*F](),
		kind:    OwnedCollection,
		foreign: reflect.TypeFor[F](),
		load: func(ctx context.Context, reg *Registry, column string, e *T, key any) error {
			ff, err := FactoryFor[F](reg)
			if err != nil {
				return err
			}
			members, err := ff.allWithForeignKey(ctx, owner, column, key)
			if err != nil {
				return err
			}
			*ptr(e) = members
			return nil
		},
		cascadeCreate: func(ctx context.Context, reg *Registry, column string, e *T, key any) error {
			ff, err := FactoryFor[F](reg)
			if err != nil {
				return err
			}
			if _, err := ff.backReference(owner, column); err != nil {
				return err
			}
			parent := &parentRef{typ: owner, key: key}
			for _, m := range *ptr(e) {
				if m == nil {
					continue
				}
				exists, err := ff.persisted(ctx, m)
				if err != nil {
					return err
				}
				if !exists {
					if err := ff.create(ctx, m, parent); err != nil {
						return err
					}
				}
			}
			return nil
		},
		cascadeUpdate: func(ctx context.Context, reg *Registry, column string, e *T, key any) error {
			ff, err := FactoryFor[F](reg)
			if err != nil {
				return err
			}
			stored, err := ff.keysWithForeignKey(ctx, owner, column, key)
			if err != nil {
				return err
			}
			// Membership is decided by primary key only.
			keep := make(map[string]struct{}, len(*ptr(e)))
			for _, m := range *ptr(e) {
				if m == nil {
					continue
				}
				k, err := ff.primaryKeyValue(m)
				if err != nil {
					return err
				}
				if !isZero(k) {
					keep[keyString(k)] = struct{}{}
				}
			}
			for _, k := range stored {
				if _, ok := keep[keyString(k)]; !ok {
					if err := ff.deleteKey(ctx, k); err != nil {
						return err
					}
				}
			}
			parent := &parentRef{typ: owner, key: key}
			for _, m := range *ptr(e) {
				if m == nil {
					continue
				}
				exists, err := ff.persisted(ctx, m)
				if err != nil {
					return err
				}
				if exists {
					err = ff.update(ctx, m, parent)
				} else {
					err = ff.create(ctx, m, parent)
				}
				if err != nil {
					return err
				}
			}
			return nil
		},
		cascadeDelete: func(ctx context.Context, reg *Registry, column string, key any) error {
			ff, err := FactoryFor[F](reg)
			if err != nil {
				return err
			}
			stored, err := ff.keysWithForeignKey(ctx, owner, column, key)
			if err != nil {
				return err
			}
			for _, k := range stored {
				if err := ff.deleteKey(ctx, k); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// BackRef declares a BackReferenceCollection relation on the member T. The
// accessor names the owner's collection property; the mapped column holds
// the owner's primary key.
//
//	tablemap.BackRef("Lines", func(o *Order) *[]*OrderLine { return &o.Lines })
func BackRef[T, P any](name string, _ func(*P) *[]*T) Relation[T] {
	return Relation[T]{
		name:    name,
		native:  reflect.TypeFor[[]*T](),
		kind:    BackReferenceCollection,
		foreign: reflect.TypeFor[P](),
	}
}

// ForeignKeyMapping is a FieldMapping taking part in a relation.
type ForeignKeyMapping[T any] struct {
	*FieldMapping[T]
	// ForeignTable is the table of the entity on the other side.
	ForeignTable string
	// Kind is the relation kind.
	Kind MapKind
	// ForeignType is the entity type on the other side.
	ForeignType reflect.Type

	rel      Relation[T]
	inferred bool
}

// columnType returns the column type the relation binds with. An inferred
// type follows the primary key of ForeignType in reg.
func (fk *ForeignKeyMapping[T]) columnType(reg *Registry) ColumnType {
	if !fk.inferred || reg == nil {
		return fk.ColumnType
	}
	ef, err := reg.Get(fk.ForeignType)
	if err != nil {
		return fk.ColumnType
	}
	if t, ok := ef.primaryKeyType(); ok {
		return t
	}
	return fk.ColumnType
}

// bindKey normalizes a primary key of the entity on the other side for the
// relation column.
func (fk *ForeignKeyMapping[T]) bindKey(reg *Registry, key any) (any, error) {
	t := fk.columnType(reg)
	v, err := t.bind(key)
	if err != nil {
		return nil, &ConversionError{Property: fk.Property, From: key, To: t.String(), Err: err}
	}
	return v, nil
}

// DBValue returns the column value of the relation for e. Only ScalarOwning
// relations have one: the primary key of the referenced entity, or nil.
func (fk *ForeignKeyMapping[T]) DBValue(reg *Registry, e *T) (any, error) {
	switch fk.Kind {
	case ScalarOwning:
		key, err := fk.rel.referenceKey(reg, e)
		if err != nil {
			return nil, err
		}
		return fk.bindKey(reg, key)
	default:
		return nil, nil
	}
}

// SetDBValue resolves a column value read from a row. For ScalarOwning the
// referenced entity is fetched by primary key through the registry; a NULL
// key leaves the property untouched.
func (fk *ForeignKeyMapping[T]) SetDBValue(ctx context.Context, reg *Registry, e *T, raw any) error {
	switch fk.Kind {
	case ScalarOwning:
		if raw == nil {
			return nil
		}
		return fk.rel.resolve(ctx, reg, e, raw)
	default:
		return nil
	}
}

// String implements the fmt.Stringer interface.
func (fk *ForeignKeyMapping[T]) String() string {
	return fmt.Sprintf("ForeignKey %q (%s) --> %s.%s (%s, %s)", fk.Property, fk.NativeType, fk.ForeignTable, fk.Column, fk.ColumnType, fk.Kind)
}

func isZero(v any) bool {
	if v == nil {
		return true
	}
	return reflect.ValueOf(v).IsZero()
}

func keyString(v any) string {
	switch k := v.(type) {
	case []byte:
		return string(k)
	default:
		return fmt.Sprint(k)
	}
}
