package state

import (
	"context"
	"sync"

	"github.com/goliatone/go-draft/structural"
)

var _ Store[struct{}] = (*MemoryStore[struct{}])(nil)

// MemoryStore is a minimal in-memory Store implementation intended for tests
// and examples. It uses Ref.Identifier() as its deterministic key and clones
// records on the way in and out so callers never share storage memory.
type MemoryStore[E any] struct {
	mu      sync.RWMutex
	records map[string]memoryRecord[E]
}

type memoryRecord[E any] struct {
	entity E
	meta   Meta
}

func NewMemoryStore[E any]() *MemoryStore[E] {
	return &MemoryStore[E]{records: map[string]memoryRecord[E]{}}
}

func (s *MemoryStore[E]) Load(_ context.Context, ref Ref) (E, Meta, bool, error) {
	var zero E
	key, err := ref.Identifier()
	if err != nil {
		return zero, Meta{}, false, err
	}

	s.mu.RLock()
	record, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return zero, Meta{}, false, nil
	}
	return structural.Clone(record.entity), cloneMeta(record.meta), true, nil
}

func (s *MemoryStore[E]) Save(_ context.Context, ref Ref, entity E, meta Meta) (Meta, error) {
	key, err := ref.Identifier()
	if err != nil {
		return Meta{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	record, exists := s.records[key]
	if err := CheckPrecondition(record.meta, meta, exists); err != nil {
		return Meta{}, err
	}
	saved := NextMeta(record.meta, meta)
	s.records[key] = memoryRecord[E]{entity: structural.Clone(entity), meta: cloneMeta(saved)}
	return cloneMeta(saved), nil
}

// Len reports how many records the store currently holds.
func (s *MemoryStore[E]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func cloneMeta(meta Meta) Meta {
	out := meta
	if meta.Extra == nil {
		return out
	}
	out.Extra = make(map[string]string, len(meta.Extra))
	for k, v := range meta.Extra {
		out.Extra[k] = v
	}
	return out
}
