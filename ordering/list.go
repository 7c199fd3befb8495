// Package ordering holds the in-memory ordered sequences behind the to-do list and
// the kanban board, and the rules that turn drag gestures into moves on them.
//
// Every mutation leaves positions dense: the item at index i has Position i.
package ordering

import (
	"errors"
	"fmt"

	"github.com/CrowderSoup/studyboard/database"
)

var (
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrNotFound        = errors.New("not found")
)

// List is an ordered sequence of items for one scope (a to-do list or one column).
type List struct {
	items []database.Item
}

// NewList builds a list from items already in display order and renumbers them.
func NewList(items []database.Item) *List {
	l := &List{items: append([]database.Item(nil), items...)}
	l.renumber()
	return l
}

func (l *List) Len() int {
	return len(l.items)
}

// Items returns a copy of the sequence. It is never nil.
func (l *List) Items() []database.Item {
	out := make([]database.Item, len(l.items))
	copy(out, l.items)
	return out
}

// IDs returns item ids in order.
func (l *List) IDs() []string {
	ids := make([]string, len(l.items))
	for i, it := range l.items {
		ids[i] = it.ID
	}
	return ids
}

func (l *List) IndexOf(id string) int {
	for i, it := range l.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func (l *List) Get(id string) (database.Item, bool) {
	if i := l.IndexOf(id); i >= 0 {
		return l.items[i], true
	}
	return database.Item{}, false
}

// Append adds item at the tail with Position set to the current length.
func (l *List) Append(item database.Item) database.Item {
	item.Position = len(l.items)
	l.items = append(l.items, item)
	return item
}

// Insert places item at index, shifting later items. An index outside
// [0, Len()] appends.
func (l *List) Insert(index int, item database.Item) {
	if index < 0 || index > len(l.items) {
		index = len(l.items)
	}
	l.items = append(l.items, database.Item{})
	copy(l.items[index+1:], l.items[index:])
	l.items[index] = item
	l.renumber()
}

// RemoveByID drops the item and recompacts positions. Reports whether it was present.
func (l *List) RemoveByID(id string) (database.Item, bool) {
	i := l.IndexOf(id)
	if i < 0 {
		return database.Item{}, false
	}
	removed := l.items[i]
	l.items = append(l.items[:i], l.items[i+1:]...)
	l.renumber()
	return removed, true
}

// MoveWithin removes the element at from and reinserts it at to.
func (l *List) MoveWithin(from, to int) error {
	moved, err := Move(l.items, from, to)
	if err != nil {
		return err
	}
	l.items = moved
	l.renumber()
	return nil
}

// ToggleDone flips the done flag. Position is untouched.
func (l *List) ToggleDone(id string) (database.Item, bool) {
	i := l.IndexOf(id)
	if i < 0 {
		return database.Item{}, false
	}
	l.items[i].Done = !l.items[i].Done
	return l.items[i], true
}

func (l *List) Rename(id, title string) (database.Item, bool) {
	i := l.IndexOf(id)
	if i < 0 {
		return database.Item{}, false
	}
	l.items[i].Title = title
	return l.items[i], true
}

// SetGroup rewrites the group id of every item, used after a list changes column.
func (l *List) SetGroup(groupID string) {
	for i := range l.items {
		l.items[i].GroupID = groupID
	}
}

func (l *List) Clone() *List {
	return &List{items: l.Items()}
}

func (l *List) renumber() {
	for i := range l.items {
		l.items[i].Position = i
	}
}

// Move returns a copy of s with the element at from reinserted at to. The input
// is not modified.
func Move[T any](s []T, from, to int) ([]T, error) {
	if from < 0 || from >= len(s) || to < 0 || to >= len(s) {
		return nil, fmt.Errorf("move %d -> %d in sequence of %d: %w", from, to, len(s), ErrIndexOutOfRange)
	}
	out := make([]T, 0, len(s))
	out = append(out, s[:from]...)
	out = append(out, s[from+1:]...)
	out = append(out[:to], append([]T{s[from]}, out[to:]...)...)
	return out, nil
}
