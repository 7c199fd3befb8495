package ordering

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/CrowderSoup/studyboard/database"
)

const (
	DefaultGroupTitle  = "New Stage"
	UntitledGroupTitle = "Untitled"
	DefaultAccent      = "bg-sky-400"
)

// Direction selects the neighbouring column for ShiftItem.
type Direction string

var ErrInvalidDirection = errors.New("direction must be left or right")

const (
	Left  Direction = "left"
	Right Direction = "right"
)

type column struct {
	group database.Group
	items *List
}

// Board partitions an owner's cards into ordered columns.
type Board struct {
	ownerID string
	columns []*column
	orphans []database.Item
}

// NewBoard assembles a board from groups in display order and cards ordered by
// group then position. Cards whose group is unknown are left off the board and
// reported by Orphans.
func NewBoard(ownerID string, groups []database.Group, cards []database.Item) *Board {
	b := &Board{ownerID: ownerID}
	byGroup := make(map[string][]database.Item, len(groups))
	for _, c := range cards {
		byGroup[c.GroupID] = append(byGroup[c.GroupID], c)
	}
	for _, g := range groups {
		g.Items = nil
		b.columns = append(b.columns, &column{group: g, items: NewList(byGroup[g.ID])})
		delete(byGroup, g.ID)
	}
	for _, c := range cards {
		if _, ok := byGroup[c.GroupID]; ok {
			b.orphans = append(b.orphans, c)
		}
	}
	b.renumber()
	return b
}

// Orphans returns the cards NewBoard could not place.
func (b *Board) Orphans() []database.Item {
	return slices.Clone(b.orphans)
}

func (b *Board) OwnerID() string {
	return b.ownerID
}

// Groups returns a snapshot of every group with its items filled in.
func (b *Board) Groups() []database.Group {
	out := make([]database.Group, len(b.columns))
	for i, c := range b.columns {
		g := c.group
		g.Items = c.items.Items()
		out[i] = g
	}
	return out
}

func (b *Board) GroupIDs() []string {
	ids := make([]string, len(b.columns))
	for i, c := range b.columns {
		ids[i] = c.group.ID
	}
	return ids
}

// Items returns the ordered items of one group.
func (b *Board) Items(groupID string) ([]database.Item, bool) {
	c := b.column(groupID)
	if c == nil {
		return nil, false
	}
	return c.items.Items(), true
}

func (b *Board) GroupIndex(groupID string) int {
	for i, c := range b.columns {
		if c.group.ID == groupID {
			return i
		}
	}
	return -1
}

// GroupOf returns the id of the group holding itemID and the item's index in it.
func (b *Board) GroupOf(itemID string) (string, int, bool) {
	for _, c := range b.columns {
		if i := c.items.IndexOf(itemID); i >= 0 {
			return c.group.ID, i, true
		}
	}
	return "", -1, false
}

// AddGroup appends an empty group with a fresh id.
func (b *Board) AddGroup(title, accent string) database.Group {
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultGroupTitle
	}
	if accent == "" {
		accent = DefaultAccent
	}
	g := database.Group{
		ID:       "column-" + uuid.NewString(),
		OwnerID:  b.ownerID,
		Title:    title,
		Accent:   accent,
		Position: len(b.columns),
	}
	b.columns = append(b.columns, &column{group: g, items: NewList(nil)})
	return g
}

// RemoveGroup deletes the group and returns the items it contained.
func (b *Board) RemoveGroup(groupID string) ([]database.Item, bool) {
	i := b.GroupIndex(groupID)
	if i < 0 {
		return nil, false
	}
	removed := b.columns[i].items.Items()
	b.columns = append(b.columns[:i], b.columns[i+1:]...)
	b.renumber()
	return removed, true
}

// RenameGroup trims title; a blank title becomes "Untitled".
func (b *Board) RenameGroup(groupID, title string) (database.Group, bool) {
	c := b.column(groupID)
	if c == nil {
		return database.Group{}, false
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = UntitledGroupTitle
	}
	c.group.Title = title
	return c.group, true
}

// MoveGroup reorders the group sequence with the same semantics as List.MoveWithin.
func (b *Board) MoveGroup(from, to int) error {
	moved, err := Move(b.columns, from, to)
	if err != nil {
		return err
	}
	b.columns = moved
	b.renumber()
	return nil
}

// AddItem appends item to the group's tail.
func (b *Board) AddItem(groupID string, item database.Item) (database.Item, error) {
	c := b.column(groupID)
	if c == nil {
		return database.Item{}, fmt.Errorf("group %s: %w", groupID, ErrNotFound)
	}
	item.GroupID = groupID
	item.OwnerID = b.ownerID
	return c.items.Append(item), nil
}

// RemoveItem drops the item from whichever group holds it.
func (b *Board) RemoveItem(itemID string) (database.Item, bool) {
	for _, c := range b.columns {
		if it, ok := c.items.RemoveByID(itemID); ok {
			return it, true
		}
	}
	return database.Item{}, false
}

// MoveItem moves itemID into toGroup at toIndex. A negative or past-end index
// appends. Moves inside one group use MoveWithin semantics.
func (b *Board) MoveItem(itemID, toGroup string, toIndex int) error {
	fromGroup, fromIndex, ok := b.GroupOf(itemID)
	if !ok {
		return fmt.Errorf("item %s: %w", itemID, ErrNotFound)
	}
	dst := b.column(toGroup)
	if dst == nil {
		return fmt.Errorf("group %s: %w", toGroup, ErrNotFound)
	}
	if fromGroup == toGroup {
		if toIndex < 0 || toIndex >= dst.items.Len() {
			toIndex = dst.items.Len() - 1
		}
		return dst.items.MoveWithin(fromIndex, toIndex)
	}
	it, _ := b.column(fromGroup).items.RemoveByID(itemID)
	it.GroupID = toGroup
	dst.items.Insert(toIndex, it)
	return nil
}

// ShiftItem moves the item to the tail of the neighbouring group. It reports
// false when there is no group in that direction.
func (b *Board) ShiftItem(itemID string, dir Direction) (bool, error) {
	fromGroup, _, ok := b.GroupOf(itemID)
	if !ok {
		return false, fmt.Errorf("item %s: %w", itemID, ErrNotFound)
	}
	src := b.GroupIndex(fromGroup)
	var target int
	switch dir {
	case Left:
		target = src - 1
	case Right:
		target = src + 1
	default:
		return false, fmt.Errorf("%q: %w", dir, ErrInvalidDirection)
	}
	if target < 0 || target >= len(b.columns) {
		return false, nil
	}
	return true, b.MoveItem(itemID, b.columns[target].group.ID, -1)
}

// Clone returns a deep copy.
func (b *Board) Clone() *Board {
	out := &Board{ownerID: b.ownerID, columns: make([]*column, len(b.columns))}
	for i, c := range b.columns {
		out.columns[i] = &column{group: c.group, items: c.items.Clone()}
	}
	return out
}

func (b *Board) column(groupID string) *column {
	if i := b.GroupIndex(groupID); i >= 0 {
		return b.columns[i]
	}
	return nil
}

func (b *Board) renumber() {
	for i, c := range b.columns {
		c.group.Position = i
		c.items.SetGroup(c.group.ID)
	}
}
