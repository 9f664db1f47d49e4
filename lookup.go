package action

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Lookup resolves entities by identifier. It backs existence validators and
// batches whose source is inferred from a model-backed field.
type Lookup interface {
	// FindByID returns the entity of kind identified by id, or nil when no
	// such entity exists.
	FindByID(ctx context.Context, kind string, id any) (any, error)

	// AllOf returns every known entity of kind.
	AllOf(ctx context.Context, kind string) ([]any, error)
}

// MemoryLookup is an in-process Lookup over registered instances. It is safe
// for concurrent use.
type MemoryLookup struct {
	mu    sync.RWMutex
	kinds map[string]*instances
}

type instances struct {
	order []string
	byID  map[string]any
}

// NewMemoryLookup returns an empty MemoryLookup.
func NewMemoryLookup() *MemoryLookup {
	return &MemoryLookup{kinds: make(map[string]*instances)}
}

// Add registers entity under kind and id. Re-adding an id replaces the
// entity but keeps its original position.
func (l *MemoryLookup) Add(kind string, id any, entity any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	set, ok := l.kinds[kind]
	if !ok {
		set = &instances{byID: make(map[string]any)}
		l.kinds[kind] = set
	}
	key := idKey(id)
	if _, exists := set.byID[key]; !exists {
		set.order = append(set.order, key)
	}
	set.byID[key] = entity
}

// FindByID implements Lookup.
func (l *MemoryLookup) FindByID(_ context.Context, kind string, id any) (any, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	set, ok := l.kinds[kind]
	if !ok {
		return nil, nil
	}
	return set.byID[idKey(id)], nil
}

// AllOf implements Lookup. Entities are returned in registration order.
func (l *MemoryLookup) AllOf(_ context.Context, kind string) ([]any, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	set, ok := l.kinds[kind]
	if !ok {
		return nil, nil
	}
	out := make([]any, 0, len(set.order))
	for _, key := range set.order {
		out = append(out, set.byID[key])
	}
	return out, nil
}

// idKey normalises identifiers so that 7, int64(7), float64(7) and the JSON
// numbers 7 and 7.0 address the same entity.
func idKey(id any) string {
	switch v := id.(type) {
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprint(int64(v))
		}
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return fmt.Sprint(n)
		}
		if f, err := v.Float64(); err == nil && f == float64(int64(f)) {
			return fmt.Sprint(int64(f))
		}
	}
	return fmt.Sprint(id)
}
