package tablemap

import "context"

// Handle binds an entity to the factory that persists it.
type Handle[T any] struct {
	entity  *T
	factory *Factory[T]
}

// Entity returns the bound entity.
func (h *Handle[T]) Entity() *T { return h.entity }

// Mapping returns the mapping of the bound factory.
func (h *Handle[T]) Mapping() *EntityMapping[T] { return h.factory.Mapping() }

// TableName returns the table of the bound factory.
func (h *Handle[T]) TableName() string { return h.factory.TableName() }

// Create inserts the entity. See Factory.Create.
func (h *Handle[T]) Create(ctx context.Context) error { return h.factory.Create(ctx, h.entity) }

// Update writes the entity. See Factory.Update.
func (h *Handle[T]) Update(ctx context.Context) error { return h.factory.Update(ctx, h.entity) }

// Delete removes the entity. See Factory.Delete.
func (h *Handle[T]) Delete(ctx context.Context) error { return h.factory.Delete(ctx, h.entity) }
