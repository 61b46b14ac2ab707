package bucket

import (
	"context"
	"slices"
	"sync"

	"github.com/yash-srivastava19/canopy/internal/notes"
)

// Memory is an in-process bucket, used by tests and embedders.
type Memory[T Entity] struct {
	stamp func(v T, prev *T) T
	diff  func(orig *T, v T) map[string]any

	mu      sync.RWMutex
	order   []string
	items   map[string]T
	history map[string][]T

	emitter Emitter[T]
}

// NewMemory builds an empty bucket. stamp and diff may be nil.
func NewMemory[T Entity](stamp func(v T, prev *T) T, diff func(orig *T, v T) map[string]any) *Memory[T] {
	return &Memory[T]{
		stamp:   stamp,
		diff:    diff,
		items:   make(map[string]T),
		history: make(map[string][]T),
	}
}

// NewNoteMemory is a Memory bucket wired for notes.
func NewNoteMemory() *Memory[notes.Note] {
	return NewMemory(StampNote, DiffNote)
}

// Seed replaces the contents without emitting events.
func (m *Memory[T]) Seed(items ...T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.order = m.order[:0]
	m.items = make(map[string]T, len(items))
	for _, v := range items {
		m.order = append(m.order, v.Key())
		m.items[v.Key()] = v
	}
}

func (m *Memory[T]) List(ctx context.Context) ([]T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]T, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.items[id])
	}
	return out, nil
}

func (m *Memory[T]) Get(ctx context.Context, id string) (T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[id]
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	return v, nil
}

func (m *Memory[T]) Put(ctx context.Context, v T) (T, error) {
	m.mu.Lock()
	var prev *T
	if old, ok := m.items[v.Key()]; ok && v.Key() != "" {
		prev = &old
	}
	if m.stamp != nil {
		v = m.stamp(v, prev)
	}
	id := v.Key()
	if prev != nil {
		m.history[id] = append(m.history[id], *prev)
	} else {
		m.order = append(m.order, id)
	}
	m.items[id] = v
	m.mu.Unlock()

	ev := Event[T]{Kind: KindUpdate, ID: id, Data: &v, Original: prev}
	if m.diff != nil {
		ev.Patch = m.diff(prev, v)
	}
	m.emitter.Emit(ev)
	return v, nil
}

func (m *Memory[T]) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	if _, ok := m.items[id]; !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(m.items, id)
	delete(m.history, id)
	m.order = slices.DeleteFunc(m.order, func(k string) bool { return k == id })
	m.mu.Unlock()

	m.emitter.Emit(Event[T]{Kind: KindRemove, ID: id})
	return nil
}

func (m *Memory[T]) Index(ctx context.Context) error {
	items, err := m.List(ctx)
	if err != nil {
		return err
	}
	for i := range items {
		m.emitter.Emit(Event[T]{Kind: KindUpdate, ID: items[i].Key(), Data: &items[i], IsIndexing: true})
	}
	m.emitter.Emit(Event[T]{Kind: KindIndex, Items: items})
	return nil
}

func (m *Memory[T]) Subscribe(ctx context.Context) (*Subscription[T], error) {
	return m.emitter.Subscribe(ctx), nil
}

// Revisions returns the prior versions of id, oldest first.
func (m *Memory[T]) Revisions(ctx context.Context, id string) ([]T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.items[id]; !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(m.history[id]), nil
}
