package tablemap

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"reflect"

	"github.com/syssam/tablemap/dialect"
	"github.com/syssam/tablemap/dialect/sql"
	"github.com/syssam/tablemap/dialect/sql/sqlerr"
)

// EntityFactory is the type-erased view of a Factory held by a Registry.
type EntityFactory interface {
	// EntityType returns the mapped entity type.
	EntityType() reflect.Type
	// TableName returns the mapped table name.
	TableName() string

	attach(r *Registry) error
	describe() tableDescription
	primaryKeyType() (ColumnType, bool)
}

// Option configures a Factory.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger used for debug output. The default is
// slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Factory is the CRUD engine of the entity type T. It turns entities into
// statements according to its mapping and materializes rows back into
// entities. Relations are resolved through the Registry the factory is
// registered in.
type Factory[T any] struct {
	mapping  *EntityMapping[T]
	conns    dialect.ConnFactory
	registry *Registry
	log      *slog.Logger
	label    string
}

// NewFactory returns a factory opening its connections with conns. The
// mapping is declared afterwards with CreateMapping.
func NewFactory[T any](conns dialect.ConnFactory, opts ...Option) *Factory[T] {
	return NewFactoryWithMapping(NewMapping[T](""), conns, opts...)
}

// NewFactoryWithMapping returns a factory for an already declared mapping.
func NewFactoryWithMapping[T any](m *EntityMapping[T], conns dialect.ConnFactory, opts ...Option) *Factory[T] {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	t := reflect.TypeFor[T]()
	return &Factory[T]{
		mapping: m,
		conns:   conns,
		log:     o.logger.With("entity", t.Name()),
		label:   t.Name(),
	}
}

// CreateMapping replaces the mapping with an empty one for table and
// returns it for declaration.
func (f *Factory[T]) CreateMapping(table string) *EntityMapping[T] {
	f.mapping = NewMapping[T](table)
	return f.mapping
}

// Mapping returns the mapping of the factory.
func (f *Factory[T]) Mapping() *EntityMapping[T] { return f.mapping }

// EntityType implements EntityFactory.
func (f *Factory[T]) EntityType() reflect.Type { return reflect.TypeFor[T]() }

// TableName implements EntityFactory.
func (f *Factory[T]) TableName() string { return f.mapping.Table }

// Registry returns the registry the factory is registered in, or nil.
func (f *Factory[T]) Registry() *Registry { return f.registry }

func (f *Factory[T]) attach(r *Registry) error {
	if f.registry != nil && f.registry != r {
		return configErrorf(f.label, "", "factory already registered in registry %q", f.registry.name)
	}
	if err := f.mapping.validate(); err != nil {
		return err
	}
	f.registry = r
	return nil
}

// FromEntity binds e to the factory.
func (f *Factory[T]) FromEntity(e *T) *Handle[T] {
	return &Handle[T]{entity: e, factory: f}
}

// HandleByID loads the entity with the given primary key and binds it.
func (f *Factory[T]) HandleByID(ctx context.Context, id any) (*Handle[T], error) {
	e, err := f.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return f.FromEntity(e), nil
}

// GetByID returns the entity with the given primary key. A missing row is
// reported as NotFoundError.
func (f *Factory[T]) GetByID(ctx context.Context, id any) (*T, error) {
	ctx, _ = withTrail(ctx)
	return f.getByID(ctx, id)
}

// TryGetByID is like GetByID but reports a missing row with ok == false
// instead of an error.
func (f *Factory[T]) TryGetByID(ctx context.Context, id any) (*T, bool, error) {
	ctx, _ = withTrail(ctx)
	return f.find(ctx, id)
}

// All returns the entities of the table. Each range over the sequence runs
// the query again. Rows are read and the connection released before the
// first entity is yielded; relations are resolved per element.
func (f *Factory[T]) All(ctx context.Context) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		ctx, _ := withTrail(ctx)
		if err := f.mapping.validate(); err != nil {
			yield(nil, err)
			return
		}
		rows, err := f.query(ctx, "all", f.selector())
		if err != nil {
			yield(nil, err)
			return
		}
		for _, row := range rows {
			e, err := f.materialize(ctx, row)
			if !yield(e, err) || err != nil {
				return
			}
		}
		f.log.DebugContext(ctx, "end of enumeration", "rows", len(rows))
	}
}

// GetAll collects All into a slice.
func (f *Factory[T]) GetAll(ctx context.Context) ([]*T, error) {
	var all []*T
	for e, err := range f.All(ctx) {
		if err != nil {
			return nil, err
		}
		all = append(all, e)
	}
	return all, nil
}

// Create inserts e and the members of its owned collections that are not
// stored yet. A zero primary key is replaced by the generated one.
func (f *Factory[T]) Create(ctx context.Context, e *T) error {
	ctx, _ = withTrail(ctx)
	return f.create(ctx, e, nil)
}

// Update writes e by primary key and reconciles its owned collections:
// stored members missing from the collection are deleted, present ones are
// updated or created.
func (f *Factory[T]) Update(ctx context.Context, e *T) error {
	ctx, _ = withTrail(ctx)
	return f.update(ctx, e, nil)
}

// Delete removes e and, first, the stored members of its owned
// collections. ScalarOwning references are left alone.
func (f *Factory[T]) Delete(ctx context.Context, e *T) error {
	ctx, _ = withTrail(ctx)
	key, err := f.primaryKeyValue(e)
	if err != nil {
		return err
	}
	return f.deleteKey(ctx, key)
}

func (f *Factory[T]) getByID(ctx context.Context, id any) (*T, error) {
	e, ok, err := f.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NewNotFoundError(f.label, id)
	}
	return e, nil
}

// find loads the entity with the given primary key. Only a missing row of
// this table yields ok == false; failures resolving its relations are
// errors.
func (f *Factory[T]) find(ctx context.Context, id any) (*T, bool, error) {
	pk, err := f.requirePrimaryKey("get")
	if err != nil {
		return nil, false, err
	}
	key, err := pk.ColumnType.bind(id)
	if err != nil {
		return nil, false, &ConversionError{Property: pk.Property, From: id, To: pk.ColumnType.String(), Err: err}
	}
	_, tr := withTrail(ctx)
	if e, ok := tr.loading(f.EntityType(), key); ok {
		return e.(*T), true, nil
	}
	rows, err := f.query(ctx, "get", f.selector().Where(sql.EQ(pk.Column, key)))
	if err != nil {
		return nil, false, err
	}
	switch len(rows) {
	case 0:
		return nil, false, nil
	case 1:
		e, err := f.materialize(ctx, rows[0])
		if err != nil {
			return nil, false, err
		}
		return e, true, nil
	default:
		return nil, false, NewNotSingularError(f.label, len(rows))
	}
}

// allWithForeignKey returns the entities whose back reference to owner over
// column equals key.
func (f *Factory[T]) allWithForeignKey(ctx context.Context, owner reflect.Type, column string, key any) ([]*T, error) {
	back, err := f.backReference(owner, column)
	if err != nil {
		return nil, err
	}
	key, err = back.bindKey(f.registry, key)
	if err != nil {
		return nil, err
	}
	rows, err := f.query(ctx, "all-with-foreign-key", f.selector().Where(sql.EQ(column, key)))
	if err != nil {
		return nil, err
	}
	all := make([]*T, 0, len(rows))
	for _, row := range rows {
		e, err := f.materialize(ctx, row)
		if err != nil {
			return nil, err
		}
		all = append(all, e)
	}
	return all, nil
}

// keysWithForeignKey is allWithForeignKey reduced to primary keys, without
// materializing entities.
func (f *Factory[T]) keysWithForeignKey(ctx context.Context, owner reflect.Type, column string, key any) ([]any, error) {
	pk, err := f.requirePrimaryKey("keys")
	if err != nil {
		return nil, err
	}
	back, err := f.backReference(owner, column)
	if err != nil {
		return nil, err
	}
	key, err = back.bindKey(f.registry, key)
	if err != nil {
		return nil, err
	}
	sel := sql.Dialect("").Select(pk.Column).From(f.mapping.Table).Where(sql.EQ(column, key))
	rows, err := f.query(ctx, "keys", sel)
	if err != nil {
		return nil, err
	}
	keys := make([]any, 0, len(rows))
	for _, row := range rows {
		k, err := f.normalizeKey(row[0])
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}

func (f *Factory[T]) backReference(owner reflect.Type, column string) (*ForeignKeyMapping[T], error) {
	if err := f.mapping.validate(); err != nil {
		return nil, err
	}
	return f.mapping.backReference(owner, column)
}

// persisted reports whether e has a primary key that exists in the table.
func (f *Factory[T]) persisted(ctx context.Context, e *T) (bool, error) {
	pk, err := f.requirePrimaryKey("exists")
	if err != nil {
		return false, err
	}
	key, err := pk.DBValue(e)
	if err != nil {
		return false, err
	}
	if isZero(key) {
		return false, nil
	}
	sel := sql.Dialect("").Select(pk.Column).From(f.mapping.Table).Where(sql.EQ(pk.Column, key))
	rows, err := f.query(ctx, "exists", sel)
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

func (f *Factory[T]) create(ctx context.Context, e *T, parent *parentRef) error {
	_, tr := withTrail(ctx)
	if !tr.write(e) {
		return nil
	}
	if err := f.mapping.validate(); err != nil {
		return err
	}
	pk := f.mapping.PrimaryKey
	insert := sql.Dialect("").Insert(f.mapping.Table)
	generated := false
	for _, field := range f.mapping.fields {
		var (
			v   any
			err error
		)
		switch field.Kind() {
		case Scalar:
			v, err = field.DBValue(e)
			if err == nil && field == pk && isZero(v) {
				generated = true
				continue
			}
		case ScalarOwning:
			if parent.is(field.fk.ForeignType) {
				v, err = field.fk.bindKey(f.registry, parent.key)
			} else {
				v, err = field.fk.DBValue(f.registry, e)
			}
		case BackReferenceCollection:
			if parent.is(field.fk.ForeignType) {
				v, err = field.fk.bindKey(f.registry, parent.key)
			}
		case OwnedCollection:
			continue
		}
		if err != nil {
			return NewMutationError(f.label, "create", err)
		}
		insert.Set(field.Column, v)
	}
	err := f.withConn(ctx, func(conn dialect.Conn) error {
		query, args, err := build(conn.Dialect(), insert)
		if err != nil {
			return err
		}
		f.log.DebugContext(ctx, "insert", "query", query)
		if _, err := sql.ExecAffected(ctx, conn, query, args); err != nil {
			return f.mutationErr("create", err)
		}
		if !generated {
			return nil
		}
		var id sql.NullInt64
		if err := sql.QueryScalar(ctx, conn, sql.LastInsertIDQuery(conn.Dialect()), []any{}, &id); err != nil {
			return f.mutationErr("create", err)
		}
		if !id.Valid || id.Int64 == 0 {
			return &IntegrityError{Entity: f.label, Err: ErrAutoIncrement}
		}
		return pk.SetDBValue(e, id.Int64)
	})
	if err != nil {
		return err
	}
	if len(f.mapping.owned()) == 0 {
		return nil
	}
	key, err := f.primaryKeyValue(e)
	if err != nil {
		return err
	}
	for _, fk := range f.mapping.owned() {
		if err := fk.rel.cascadeCreate(ctx, f.registry, fk.Column, e, key); err != nil {
			return err
		}
	}
	return nil
}

func (f *Factory[T]) update(ctx context.Context, e *T, parent *parentRef) error {
	_, tr := withTrail(ctx)
	if !tr.write(e) {
		return nil
	}
	pk, err := f.requirePrimaryKey("update")
	if err != nil {
		return err
	}
	if err := f.mapping.validate(); err != nil {
		return err
	}
	key, err := pk.DBValue(e)
	if err != nil {
		return NewMutationError(f.label, "update", err)
	}
	for _, fk := range f.mapping.owned() {
		if err := fk.rel.cascadeUpdate(ctx, f.registry, fk.Column, e, key); err != nil {
			return err
		}
	}
	upd := sql.Dialect("").Update(f.mapping.Table)
	for _, field := range f.mapping.fields {
		var v any
		switch field.Kind() {
		case Scalar:
			if field == pk {
				continue
			}
			v, err = field.DBValue(e)
		case ScalarOwning:
			if parent.is(field.fk.ForeignType) {
				v, err = field.fk.bindKey(f.registry, parent.key)
			} else {
				v, err = field.fk.DBValue(f.registry, e)
			}
		case BackReferenceCollection:
			// Only written when the owner moves the member under itself.
			if !parent.is(field.fk.ForeignType) {
				continue
			}
			v, err = field.fk.bindKey(f.registry, parent.key)
		case OwnedCollection:
			continue
		}
		if err != nil {
			return NewMutationError(f.label, "update", err)
		}
		upd.Set(field.Column, v)
	}
	if upd.Empty() {
		return nil
	}
	upd.Where(sql.EQ(pk.Column, key))
	return f.withConn(ctx, func(conn dialect.Conn) error {
		query, args, err := build(conn.Dialect(), upd)
		if err != nil {
			return err
		}
		f.log.DebugContext(ctx, "update", "query", query, "key", key)
		if _, err := sql.ExecAffected(ctx, conn, query, args); err != nil {
			return f.mutationErr("update", err)
		}
		return nil
	})
}

// deleteKey removes the row with the given primary key after cascading to
// the owned collections.
func (f *Factory[T]) deleteKey(ctx context.Context, key any) error {
	_, tr := withTrail(ctx)
	if !tr.delete(f.EntityType(), key) {
		return nil
	}
	pk, err := f.requirePrimaryKey("delete")
	if err != nil {
		return err
	}
	if err := f.mapping.validate(); err != nil {
		return err
	}
	for _, fk := range f.mapping.owned() {
		if err := fk.rel.cascadeDelete(ctx, f.registry, fk.Column, key); err != nil {
			return err
		}
	}
	del := sql.Dialect("").Delete(f.mapping.Table).Where(sql.EQ(pk.Column, key))
	return f.withConn(ctx, func(conn dialect.Conn) error {
		query, args, err := build(conn.Dialect(), del)
		if err != nil {
			return err
		}
		f.log.DebugContext(ctx, "delete", "query", query, "key", key)
		if _, err := sql.ExecAffected(ctx, conn, query, args); err != nil {
			return f.mutationErr("delete", err)
		}
		return nil
	})
}

// materialize builds a T from one row of selector(). Plain columns are set
// first so that the entity is known to the trail before its relations are
// resolved.
func (f *Factory[T]) materialize(ctx context.Context, row []any) (*T, error) {
	_, tr := withTrail(ctx)
	cols := f.mapping.columns()
	e := new(T)
	for i, field := range cols {
		if field.Kind() != Scalar {
			continue
		}
		if err := field.SetDBValue(e, row[i]); err != nil {
			return nil, NewQueryError(f.label, "materialize", err)
		}
	}
	pk := f.mapping.PrimaryKey
	var key any
	if pk != nil {
		k, err := pk.DBValue(e)
		if err != nil {
			return nil, NewQueryError(f.label, "materialize", err)
		}
		if prev, ok := tr.loading(f.EntityType(), k); ok {
			return prev.(*T), nil
		}
		tr.load(f.EntityType(), k, e)
		key = k
		f.log.DebugContext(ctx, "materialize", "key", key)
	}
	for i, field := range cols {
		if field.Kind() == ScalarOwning {
			if err := field.fk.SetDBValue(ctx, f.registry, e, row[i]); err != nil {
				return nil, err
			}
		}
	}
	for _, fk := range f.mapping.owned() {
		if err := fk.rel.load(ctx, f.registry, fk.Column, e, key); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// selector selects every column, in field order.
func (f *Factory[T]) selector() *sql.Selector {
	cols := f.mapping.columns()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Column
	}
	return sql.Dialect("").Select(names...).From(f.mapping.Table)
}

// query runs a statement on its own connection and returns the raw rows.
// The connection is released before the rows are returned.
func (f *Factory[T]) query(ctx context.Context, op string, q *sql.Selector) (values [][]any, err error) {
	err = f.withConn(ctx, func(conn dialect.Conn) error {
		query, args, err := build(conn.Dialect(), q)
		if err != nil {
			return err
		}
		f.log.DebugContext(ctx, "select", "query", query)
		rows := &sql.Rows{}
		if err := conn.Query(ctx, query, args, rows); err != nil {
			return NewQueryError(f.label, op, err)
		}
		values, err = sql.ScanValues(rows)
		if err != nil {
			return NewQueryError(f.label, op, err)
		}
		return nil
	})
	return values, err
}

// withConn acquires one connection for the duration of fn and releases it
// on every exit path.
func (f *Factory[T]) withConn(ctx context.Context, fn func(dialect.Conn) error) (rerr error) {
	if f.conns == nil {
		return configErrorf(f.label, "", "no connection factory")
	}
	conn, err := f.conns(ctx)
	if err != nil {
		return err
	}
	defer func() { rerr = errors.Join(rerr, conn.Close()) }()
	return fn(conn)
}

func (f *Factory[T]) mutationErr(op string, err error) error {
	if kind := sqlerr.Classify(err); kind != sqlerr.None {
		err = NewConstraintError(kind.String(), err)
	}
	return NewMutationError(f.label, op, err)
}

func (f *Factory[T]) requirePrimaryKey(op string) (*FieldMapping[T], error) {
	if f.mapping.PrimaryKey == nil {
		return nil, configErrorf(f.label, "", "%s requires a primary key", op)
	}
	return f.mapping.PrimaryKey, nil
}

// primaryKeyValue returns the bound primary key of e.
func (f *Factory[T]) primaryKeyValue(e *T) (any, error) {
	pk, err := f.requirePrimaryKey("primary key lookup")
	if err != nil {
		return nil, err
	}
	return pk.DBValue(e)
}

// persistedKey is primaryKeyValue for an entity referenced by another one;
// the key must have been assigned.
func (f *Factory[T]) persistedKey(e *T) (any, error) {
	key, err := f.primaryKeyValue(e)
	if err != nil {
		return nil, err
	}
	if isZero(key) {
		return nil, &IntegrityError{Entity: f.label, Err: ErrUnsavedReference}
	}
	return key, nil
}

// normalizeKey converts a raw primary key read from a row into the form
// produced by primaryKeyValue.
func (f *Factory[T]) normalizeKey(raw any) (any, error) {
	pk := f.mapping.PrimaryKey
	var e T
	if err := pk.SetDBValue(&e, raw); err != nil {
		return nil, err
	}
	return pk.DBValue(&e)
}

func (f *Factory[T]) describe() tableDescription {
	return describeMapping(f.registry, f.mapping)
}

func (f *Factory[T]) primaryKeyType() (ColumnType, bool) {
	if f.mapping == nil || f.mapping.PrimaryKey == nil {
		return 0, false
	}
	return f.mapping.PrimaryKey.ColumnType, true
}

// build renders q for the connection dialect.
func build(name string, q interface {
	sql.Querier
	SetDialect(string)
	Err() error
}) (string, []any, error) {
	q.SetDialect(name)
	query, args := q.Query()
	if err := q.Err(); err != nil {
		return "", nil, err
	}
	return query, args, nil
}
