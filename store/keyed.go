package store

import (
	"fmt"
	"sync"

	"github.com/hupe1980/turnmesh/core"
)

// keyed is an insertion-ordered map guarded by a RWMutex. Values are cloned
// on the way in and out so callers never share internal state.
type keyed[V any] struct {
	mu    sync.RWMutex
	items map[string]V
	order []string
	clone func(V) V
	kind  string
}

func newKeyed[V any](kind string, clone func(V) V) *keyed[V] {
	return &keyed[V]{items: make(map[string]V), clone: clone, kind: kind}
}

func (k *keyed[V]) create(id string, v V) error {
	if id == "" {
		return fmt.Errorf("%s id must not be empty", k.kind)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if _, ok := k.items[id]; ok {
		return fmt.Errorf("%s '%s': %w", k.kind, id, core.ErrAlreadyExists)
	}
	k.items[id] = k.clone(v)
	k.order = append(k.order, id)
	return nil
}

func (k *keyed[V]) get(id string) (V, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	v, ok := k.items[id]
	if !ok {
		var zero V
		return zero, fmt.Errorf("%s '%s': %w", k.kind, id, core.ErrNotFound)
	}
	return k.clone(v), nil
}

func (k *keyed[V]) list() []V {
	k.mu.RLock()
	defer k.mu.RUnlock()

	out := make([]V, 0, len(k.order))
	for _, id := range k.order {
		out = append(out, k.clone(k.items[id]))
	}
	return out
}
