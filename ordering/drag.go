package ordering

import (
	"errors"
	"fmt"
	"slices"

	"github.com/CrowderSoup/studyboard/database"
)

var (
	ErrDragInProgress = errors.New("another drag is in progress")
	ErrNotDragging    = errors.New("no drag in progress")
)

// DraggableKind says whether a card or a whole column is being dragged.
type DraggableKind string

const (
	DragItem  DraggableKind = "item"
	DragGroup DraggableKind = "group"
)

// TargetKind is what the pointer is over.
type TargetKind string

const (
	TargetItem  TargetKind = "item"
	TargetGroup TargetKind = "group"
	TargetTrash TargetKind = "trash"
)

type Draggable struct {
	Kind DraggableKind `json:"kind"`
	ID   string        `json:"id"`
}

type Target struct {
	Kind TargetKind `json:"kind"`
	ID   string     `json:"id,omitempty"`
}

// Placement is a drop resolved against the board: where the draggable comes
// from and where it lands. For group drags the group fields hold group indices
// in SourceIndex/DestinationIndex and the container fields are empty.
type Placement struct {
	Draggable        Draggable `json:"draggable"`
	SourceGroup      string    `json:"sourceGroup,omitempty"`
	SourceIndex      int       `json:"sourceIndex"`
	DestinationGroup string    `json:"destinationGroup,omitempty"`
	DestinationIndex int       `json:"destinationIndex"`
	Trash            bool      `json:"trash,omitempty"`
}

// Resolve turns a drop onto target into a placement. It reports false when the
// drop changes nothing or refers to something that is not on the board.
func Resolve(b *Board, d Draggable, t Target) (Placement, bool) {
	switch d.Kind {
	case DragGroup:
		return resolveGroup(b, d, t)
	case DragItem:
		return resolveItem(b, d, t)
	}
	return Placement{}, false
}

func resolveGroup(b *Board, d Draggable, t Target) (Placement, bool) {
	from := b.GroupIndex(d.ID)
	if from < 0 {
		return Placement{}, false
	}
	to := -1
	switch t.Kind {
	case TargetGroup:
		to = b.GroupIndex(t.ID)
	case TargetItem:
		if g, _, ok := b.GroupOf(t.ID); ok {
			to = b.GroupIndex(g)
		}
	}
	if to < 0 || to == from {
		return Placement{}, false
	}
	return Placement{Draggable: d, SourceIndex: from, DestinationIndex: to}, true
}

func resolveItem(b *Board, d Draggable, t Target) (Placement, bool) {
	srcGroup, srcIndex, ok := b.GroupOf(d.ID)
	if !ok {
		return Placement{}, false
	}
	p := Placement{Draggable: d, SourceGroup: srcGroup, SourceIndex: srcIndex}
	switch t.Kind {
	case TargetTrash:
		p.Trash = true
		return p, true
	case TargetItem:
		if t.ID == d.ID {
			return Placement{}, false
		}
		dstGroup, dstIndex, ok := b.GroupOf(t.ID)
		if !ok {
			return Placement{}, false
		}
		p.DestinationGroup, p.DestinationIndex = dstGroup, dstIndex
		return p, true
	case TargetGroup:
		if t.ID == srcGroup {
			return Placement{}, false
		}
		items, ok := b.Items(t.ID)
		if !ok {
			return Placement{}, false
		}
		p.DestinationGroup, p.DestinationIndex = t.ID, len(items)
		return p, true
	}
	return Placement{}, false
}

// Apply performs a resolved placement on b.
func Apply(b *Board, p Placement) error {
	if p.Draggable.Kind == DragGroup {
		return b.MoveGroup(p.SourceIndex, p.DestinationIndex)
	}
	if p.Trash {
		if _, ok := b.RemoveItem(p.Draggable.ID); !ok {
			return fmt.Errorf("item %s: %w", p.Draggable.ID, ErrNotFound)
		}
		return nil
	}
	return b.MoveItem(p.Draggable.ID, p.DestinationGroup, p.DestinationIndex)
}

// Commit describes what a finished drag changed.
type Commit struct {
	Groups            []string        `json:"groups"`
	GroupOrderChanged bool            `json:"groupOrderChanged"`
	Deleted           []database.Item `json:"deleted"`
}

func (c Commit) Empty() bool {
	return len(c.Groups) == 0 && !c.GroupOrderChanged && len(c.Deleted) == 0
}

// Diff compares two versions of a board.
func Diff(before, after *Board) Commit {
	var c Commit
	c.GroupOrderChanged = !slices.Equal(before.GroupIDs(), after.GroupIDs())

	remaining := make(map[string]bool)
	for _, g := range after.GroupIDs() {
		afterItems, _ := after.Items(g)
		beforeItems, _ := before.Items(g)
		for _, it := range afterItems {
			remaining[it.ID] = true
		}
		if !slices.Equal(itemIDs(afterItems), itemIDs(beforeItems)) {
			c.Groups = append(c.Groups, g)
		}
	}
	for _, g := range before.GroupIDs() {
		items, _ := before.Items(g)
		for _, it := range items {
			if !remaining[it.ID] {
				c.Deleted = append(c.Deleted, it)
			}
		}
	}
	return c
}

func itemIDs(items []database.Item) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}

// DragSession tracks the one drag allowed on a board at a time. Previews are
// applied to a working copy; End swaps the copy in, Cancel throws it away.
type DragSession struct {
	board   *Board
	working *Board
	active  *Draggable
	holder  string

	// last previewed target; repeating it must not move the draggable again
	lastOver *Target
}

func NewDragSession(b *Board) *DragSession {
	return &DragSession{board: b}
}

// Board returns the committed board.
func (s *DragSession) Board() *Board {
	return s.board
}

// Preview returns the working copy while dragging, otherwise the committed board.
func (s *DragSession) Preview() *Board {
	if s.working != nil {
		return s.working
	}
	return s.board
}

// Active reports the current draggable and who holds it.
func (s *DragSession) Active() (Draggable, string, bool) {
	if s.active == nil {
		return Draggable{}, "", false
	}
	return *s.active, s.holder, true
}

func (s *DragSession) Start(holder string, d Draggable) error {
	if s.active != nil {
		return ErrDragInProgress
	}
	switch d.Kind {
	case DragItem:
		if _, _, ok := s.board.GroupOf(d.ID); !ok {
			return fmt.Errorf("item %s: %w", d.ID, ErrNotFound)
		}
	case DragGroup:
		if s.board.GroupIndex(d.ID) < 0 {
			return fmt.Errorf("group %s: %w", d.ID, ErrNotFound)
		}
	default:
		return fmt.Errorf("draggable kind %q: %w", d.Kind, ErrNotFound)
	}
	s.active = &d
	s.holder = holder
	s.working = s.board.Clone()
	return nil
}

// Over previews the drop on the working copy. Hovering the trash does not preview.
func (s *DragSession) Over(t Target) (*Board, error) {
	if s.active == nil {
		return nil, ErrNotDragging
	}
	if t.Kind == TargetTrash || s.lastOver != nil && *s.lastOver == t {
		return s.working, nil
	}
	s.lastOver = &t
	if p, ok := Resolve(s.working, *s.active, t); ok {
		if err := Apply(s.working, p); err != nil {
			return nil, err
		}
	}
	return s.working, nil
}

// End finishes the drag. A nil target, or one that is not on the board,
// cancels it and discards any preview.
func (s *DragSession) End(t *Target) (Commit, error) {
	if s.active == nil {
		return Commit{}, ErrNotDragging
	}
	if t == nil || !s.droppable(*t) {
		s.Cancel()
		return Commit{}, nil
	}
	working := s.working
	if s.lastOver == nil || *s.lastOver != *t {
		if p, ok := Resolve(working, *s.active, *t); ok {
			if err := Apply(working, p); err != nil {
				s.Cancel()
				return Commit{}, err
			}
		}
	}
	c := Diff(s.board, working)
	s.board = working
	s.reset()
	return c, nil
}

// droppable reports whether t is somewhere the active draggable may land.
// Groups cannot be trashed.
func (s *DragSession) droppable(t Target) bool {
	switch t.Kind {
	case TargetTrash:
		return s.active.Kind == DragItem
	case TargetItem:
		_, _, ok := s.working.GroupOf(t.ID)
		return ok
	case TargetGroup:
		return s.working.GroupIndex(t.ID) >= 0
	}
	return false
}

func (s *DragSession) Cancel() {
	s.reset()
}

func (s *DragSession) reset() {
	s.active = nil
	s.holder = ""
	s.working = nil
	s.lastOver = nil
}

// Drop runs a whole drag in one step.
func (s *DragSession) Drop(holder string, d Draggable, t Target) (Commit, error) {
	if err := s.Start(holder, d); err != nil {
		return Commit{}, err
	}
	return s.End(&t)
}

// ReorderList applies a same-list drop of activeID onto overID: the dragged
// item takes over's index and over shifts by one. Self drops and unknown ids
// change nothing.
func ReorderList(l *List, activeID, overID string) (bool, error) {
	if activeID == overID {
		return false, nil
	}
	from, to := l.IndexOf(activeID), l.IndexOf(overID)
	if from < 0 || to < 0 {
		return false, nil
	}
	if err := l.MoveWithin(from, to); err != nil {
		return false, err
	}
	return true, nil
}
