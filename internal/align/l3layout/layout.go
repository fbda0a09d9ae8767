package l3layout

import (
	"fmt"
	"sort"
)

// Layout is an immutable snapshot of a complete item set.
type Layout struct {
	version uint64
	items   map[ItemID]PlannedItem
}

func newLayout(version uint64, items map[ItemID]PlannedItem) *Layout {
	return &Layout{version: version, items: items}
}

// NewLayout validates items and builds a standalone snapshot. Duplicate
// ids are rejected.
func NewLayout(items []PlannedItem) (*Layout, error) {
	m, err := index(items)
	if err != nil {
		return nil, err
	}
	return newLayout(0, m), nil
}

func index(items []PlannedItem) (map[ItemID]PlannedItem, error) {
	m := make(map[ItemID]PlannedItem, len(items))
	for _, it := range items {
		if err := it.Validate(); err != nil {
			return nil, err
		}
		if _, dup := m[it.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %s", ErrInvalidItem, it.ID)
		}
		m[it.ID] = it
	}
	return m, nil
}

// TargetFor returns the planned item with the given id.
func (l *Layout) TargetFor(id ItemID) (PlannedItem, error) {
	if l != nil {
		if it, ok := l.items[id]; ok {
			return it, nil
		}
	}
	return PlannedItem{}, &UnknownItemError{ID: id}
}

// Items returns the items sorted by id.
func (l *Layout) Items() []PlannedItem {
	if l == nil {
		return nil
	}
	out := make([]PlannedItem, 0, len(l.items))
	for _, it := range l.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of items.
func (l *Layout) Len() int {
	if l == nil {
		return 0
	}
	return len(l.items)
}

// Version increases by one with every published change to a Model.
func (l *Layout) Version() uint64 {
	if l == nil {
		return 0
	}
	return l.version
}
