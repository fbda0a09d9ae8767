package l3layout

import (
	"sync"
	"sync/atomic"
)

// Model holds the published layout. Reads are lock-free loads of the
// current snapshot; writes rebuild the whole item set and swap it in.
// Only the planning workflow writes; the alignment loop only reads.
type Model struct {
	snap atomic.Pointer[Layout]
	mu   sync.Mutex // serialises writers
}

// NewModel returns a model holding an empty layout.
func NewModel() *Model {
	m := &Model{}
	m.snap.Store(newLayout(0, map[ItemID]PlannedItem{}))
	return m
}

// Snapshot returns the current layout.
func (m *Model) Snapshot() *Layout {
	return m.snap.Load()
}

// TargetFor looks up an item in the current snapshot.
func (m *Model) TargetFor(id ItemID) (PlannedItem, error) {
	return m.Snapshot().TargetFor(id)
}

// Publish replaces the entire item set.
func (m *Model) Publish(items []PlannedItem) (*Layout, error) {
	idx, err := index(items)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	next := newLayout(m.snap.Load().version+1, idx)
	m.snap.Store(next)
	return next, nil
}

// SetTarget adds or replaces one item.
func (m *Model) SetTarget(item PlannedItem) (*Layout, error) {
	if err := item.Validate(); err != nil {
		return nil, err
	}
	return m.update(func(items map[ItemID]PlannedItem) error {
		items[item.ID] = item
		return nil
	})
}

// RemoveItem deletes one item, failing with *UnknownItemError if absent.
func (m *Model) RemoveItem(id ItemID) (*Layout, error) {
	return m.update(func(items map[ItemID]PlannedItem) error {
		if _, ok := items[id]; !ok {
			return &UnknownItemError{ID: id}
		}
		delete(items, id)
		return nil
	})
}

func (m *Model) update(fn func(map[ItemID]PlannedItem) error) (*Layout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.snap.Load()
	items := make(map[ItemID]PlannedItem, len(cur.items)+1)
	for k, v := range cur.items {
		items[k] = v
	}
	if err := fn(items); err != nil {
		return nil, err
	}
	next := newLayout(cur.version+1, items)
	m.snap.Store(next)
	return next, nil
}
