package tablemap

import (
	"fmt"
	"io"
	"reflect"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
)

// Registry maps entity types to their factories. Relations look up the
// factory of the entity on the other side through the registry of the
// factory doing the lookup.
//
// A Registry is safe for concurrent use. Registration usually happens once,
// at startup.
type Registry struct {
	name string

	mu        sync.RWMutex
	factories map[reflect.Type]EntityFactory
}

var (
	registriesMu sync.Mutex
	registries   = map[string]*Registry{}

	defaultRegistry = Named("default")
)

// NewRegistry returns an empty registry that is not reachable by name.
func NewRegistry(name string) *Registry {
	return &Registry{name: name, factories: make(map[reflect.Type]EntityFactory)}
}

// Default returns the process-wide default registry.
func Default() *Registry { return defaultRegistry }

// Named returns the process-wide registry with the given name, creating it
// on first use.
func Named(name string) *Registry {
	registriesMu.Lock()
	defer registriesMu.Unlock()
	r, ok := registries[name]
	if !ok {
		r = NewRegistry(name)
		registries[name] = r
	}
	return r
}

// Name returns the registry name.
func (r *Registry) Name() string { return r.name }

// Register adds f under its entity type. The mapping of f is validated and
// f is bound to r, so it can only be registered in one registry. A second
// factory for the same type is rejected.
func (r *Registry) Register(f EntityFactory) error {
	if f == nil {
		return configErrorf("", "", "register nil factory")
	}
	t := f.EntityType()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[t]; ok {
		return configErrorf(t.Name(), "", "factory already registered in registry %q", r.name)
	}
	if err := f.attach(r); err != nil {
		return err
	}
	r.factories[t] = f
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(fs ...EntityFactory) {
	for _, f := range fs {
		if err := r.Register(f); err != nil {
			panic(err)
		}
	}
}

// Get returns the factory registered for t. An unregistered type is
// reported as ConfigError.
func (r *Registry) Get(t reflect.Type) (EntityFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[t]
	if !ok {
		return nil, configErrorf(t.Name(), "", "not registered in registry %q", r.name)
	}
	return f, nil
}

// Types returns the registered entity types ordered by name.
func (r *Registry) Types() []reflect.Type {
	r.mu.RLock()
	types := make([]reflect.Type, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	r.mu.RUnlock()
	slices.SortFunc(types, func(a, b reflect.Type) int {
		switch {
		case a.String() < b.String():
			return -1
		case a.String() > b.String():
			return 1
		}
		return 0
	})
	return types
}

// FactoryFor returns the typed factory registered for T in r.
func FactoryFor[T any](r *Registry) (*Factory[T], error) {
	t := reflect.TypeFor[T]()
	if r == nil {
		return nil, configErrorf(t.Name(), "", "factory is not registered")
	}
	ef, err := r.Get(t)
	if err != nil {
		return nil, err
	}
	f, ok := ef.(*Factory[T])
	if !ok {
		return nil, configErrorf(t.Name(), "", "registered factory is %T", ef)
	}
	return f, nil
}

type (
	tableDescription struct {
		Entity     string              `yaml:"entity"`
		Table      string              `yaml:"table"`
		PrimaryKey string              `yaml:"primary_key,omitempty"`
		Columns    []columnDescription `yaml:"columns"`
	}
	columnDescription struct {
		Property     string     `yaml:"property"`
		Column       string     `yaml:"column,omitempty"`
		Type         ColumnType `yaml:"type"`
		Native       string     `yaml:"native"`
		Relation     MapKind    `yaml:"relation,omitempty"`
		ForeignTable string     `yaml:"foreign_table,omitempty"`
		Foreign      string     `yaml:"foreign,omitempty"`
	}
)

func describeMapping[T any](reg *Registry, m *EntityMapping[T]) tableDescription {
	d := tableDescription{
		Entity: reflect.TypeFor[T]().String(),
		Table:  m.Table,
	}
	if m.PrimaryKey != nil {
		d.PrimaryKey = m.PrimaryKey.Column
	}
	for _, f := range m.fields {
		c := columnDescription{
			Property: f.Property,
			Column:   f.Column,
			Type:     f.ColumnType,
			Native:   f.NativeType.String(),
		}
		if fk := f.fk; fk != nil {
			c.Type = fk.columnType(reg)
			c.Relation = fk.Kind
			c.ForeignTable = fk.ForeignTable
			c.Foreign = fk.ForeignType.String()
		}
		d.Columns = append(d.Columns, c)
	}
	return d
}

// Describe writes the mappings of all registered factories to w as YAML.
func (r *Registry) Describe(w io.Writer) error {
	var tables []tableDescription
	for _, t := range r.Types() {
		f, err := r.Get(t)
		if err != nil {
			return err
		}
		tables = append(tables, f.describe())
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]any{"registry": r.name, "tables": tables}); err != nil {
		return fmt.Errorf("tablemap: describe registry %q: %w", r.name, err)
	}
	return enc.Close()
}
