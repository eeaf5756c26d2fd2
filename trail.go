package tablemap

import (
	"context"
	"reflect"
)

// trail records the entities visited by one top-level operation so that
// cyclic mapping graphs terminate. It lives in the context of that call
// only; nothing is kept between calls.
type trail struct {
	loaded  map[trailKey]any
	written map[any]struct{}
	deleted map[trailKey]struct{}
}

type trailKey struct {
	typ reflect.Type
	key string
}

type trailCtxKey struct{}

// withTrail returns ctx carrying a trail, starting a new one for top-level
// calls.
func withTrail(ctx context.Context) (context.Context, *trail) {
	if t, ok := ctx.Value(trailCtxKey{}).(*trail); ok {
		return ctx, t
	}
	t := &trail{
		loaded:  make(map[trailKey]any),
		written: make(map[any]struct{}),
		deleted: make(map[trailKey]struct{}),
	}
	return context.WithValue(ctx, trailCtxKey{}, t), t
}

// loading returns the instance already materialized for (typ, key).
func (t *trail) loading(typ reflect.Type, key any) (any, bool) {
	e, ok := t.loaded[trailKey{typ, keyString(key)}]
	return e, ok
}

func (t *trail) load(typ reflect.Type, key, e any) {
	t.loaded[trailKey{typ, keyString(key)}] = e
}

// write marks e as written and reports whether it was not already.
func (t *trail) write(e any) bool {
	if _, ok := t.written[e]; ok {
		return false
	}
	t.written[e] = struct{}{}
	return true
}

// delete marks (typ, key) as deleted and reports whether it was not already.
func (t *trail) delete(typ reflect.Type, key any) bool {
	k := trailKey{typ, keyString(key)}
	if _, ok := t.deleted[k]; ok {
		return false
	}
	t.deleted[k] = struct{}{}
	return true
}
