package ordering

import (
	"errors"
	"slices"
	"testing"
)

func TestDropSameGroupInsertsAtTargetIndex(t *testing.T) {
	s := NewDragSession(newTestBoard(map[string][]string{"todo": {"a", "b", "c", "d"}}))
	c, err := s.Drop("tab-1", Draggable{Kind: DragItem, ID: "a"}, Target{Kind: TargetItem, ID: "c"})
	if err != nil {
		t.Fatalf("drop: %v", err)
	}
	if got := groupIDs(t, s.Board(), "todo"); !slices.Equal(got, []string{"b", "c", "a", "d"}) {
		t.Fatalf("unexpected order: %v", got)
	}
	if !slices.Equal(c.Groups, []string{"todo"}) || c.GroupOrderChanged || len(c.Deleted) != 0 {
		t.Fatalf("unexpected commit: %+v", c)
	}
}

func TestDropCrossGroupOntoItem(t *testing.T) {
	s := NewDragSession(newTestBoard(map[string][]string{
		"todo":  {"a", "b"},
		"doing": {"x", "y", "z"},
	}))
	c, err := s.Drop("tab-1", Draggable{Kind: DragItem, ID: "a"}, Target{Kind: TargetItem, ID: "y"})
	if err != nil {
		t.Fatal(err)
	}
	if got := groupIDs(t, s.Board(), "todo"); !slices.Equal(got, []string{"b"}) {
		t.Fatalf("source: %v", got)
	}
	if got := groupIDs(t, s.Board(), "doing"); !slices.Equal(got, []string{"x", "a", "y", "z"}) {
		t.Fatalf("destination: %v", got)
	}
	if !slices.Equal(c.Groups, []string{"todo", "doing"}) {
		t.Fatalf("unexpected changed groups: %v", c.Groups)
	}
}

func TestDropOntoGroupAppends(t *testing.T) {
	s := NewDragSession(newTestBoard(map[string][]string{"todo": {"a"}, "done": {"z"}}))
	if _, err := s.Drop("tab-1", Draggable{Kind: DragItem, ID: "a"}, Target{Kind: TargetGroup, ID: "done"}); err != nil {
		t.Fatal(err)
	}
	if got := groupIDs(t, s.Board(), "done"); !slices.Equal(got, []string{"z", "a"}) {
		t.Fatalf("unexpected order: %v", got)
	}
}

func TestDropOntoOwnGroupIsNoop(t *testing.T) {
	s := NewDragSession(newTestBoard(map[string][]string{"todo": {"a", "b"}}))
	c, err := s.Drop("tab-1", Draggable{Kind: DragItem, ID: "a"}, Target{Kind: TargetGroup, ID: "todo"})
	if err != nil {
		t.Fatal(err)
	}
	if !c.Empty() {
		t.Fatalf("expected empty commit, got %+v", c)
	}
}

func TestDropOnTrashDeletes(t *testing.T) {
	s := NewDragSession(newTestBoard(map[string][]string{"todo": {"a", "b", "c"}}))
	c, err := s.Drop("tab-1", Draggable{Kind: DragItem, ID: "b"}, Target{Kind: TargetTrash})
	if err != nil {
		t.Fatal(err)
	}
	if got := groupIDs(t, s.Board(), "todo"); !slices.Equal(got, []string{"a", "c"}) {
		t.Fatalf("unexpected order: %v", got)
	}
	if len(c.Deleted) != 1 || c.Deleted[0].ID != "b" {
		t.Fatalf("expected b deleted, got %+v", c.Deleted)
	}
}

func TestDropGroupReorders(t *testing.T) {
	s := NewDragSession(newTestBoard(map[string][]string{"done": {"z"}}))
	c, err := s.Drop("tab-1", Draggable{Kind: DragGroup, ID: "todo"}, Target{Kind: TargetItem, ID: "z"})
	if err != nil {
		t.Fatal(err)
	}
	if got := s.Board().GroupIDs(); !slices.Equal(got, []string{"doing", "done", "todo"}) {
		t.Fatalf("unexpected group order: %v", got)
	}
	if !c.GroupOrderChanged || len(c.Groups) != 0 {
		t.Fatalf("unexpected commit: %+v", c)
	}
}

func TestPreviewThenCancelLeavesBoardUnchanged(t *testing.T) {
	s := NewDragSession(newTestBoard(map[string][]string{"todo": {"a", "b"}, "doing": {"x"}}))
	if err := s.Start("tab-1", Draggable{Kind: DragItem, ID: "a"}); err != nil {
		t.Fatal(err)
	}
	preview, err := s.Over(Target{Kind: TargetItem, ID: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if got := groupIDs(t, preview, "doing"); !slices.Equal(got, []string{"a", "x"}) {
		t.Fatalf("preview: %v", got)
	}
	if got := groupIDs(t, s.Board(), "todo"); !slices.Equal(got, []string{"a", "b"}) {
		t.Fatalf("committed board changed during preview: %v", got)
	}

	c, err := s.End(nil)
	if err != nil || !c.Empty() {
		t.Fatalf("cancel: commit=%+v err=%v", c, err)
	}
	if got := groupIDs(t, s.Board(), "todo"); !slices.Equal(got, []string{"a", "b"}) {
		t.Fatalf("board changed after cancel: %v", got)
	}
	if _, _, ok := s.Active(); ok {
		t.Fatal("session should be idle")
	}
}

func TestEndOnUnknownTargetDiscardsPreview(t *testing.T) {
	tests := []struct {
		name   string
		drag   Draggable
		target Target
	}{
		{"unknown item", Draggable{Kind: DragItem, ID: "a"}, Target{Kind: TargetItem, ID: "ghost"}},
		{"unknown group", Draggable{Kind: DragItem, ID: "a"}, Target{Kind: TargetGroup, ID: "ghost"}},
		{"empty target", Draggable{Kind: DragItem, ID: "a"}, Target{}},
		{"unknown kind", Draggable{Kind: DragItem, ID: "a"}, Target{Kind: "shelf", ID: "doing"}},
		{"group on trash", Draggable{Kind: DragGroup, ID: "todo"}, Target{Kind: TargetTrash}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewDragSession(newTestBoard(map[string][]string{"todo": {"a", "b"}, "doing": {"x"}}))
			if err := s.Start("tab-1", tt.drag); err != nil {
				t.Fatal(err)
			}
			// leave a preview behind that must not be committed
			over := Target{Kind: TargetItem, ID: "x"}
			if tt.drag.Kind == DragGroup {
				over = Target{Kind: TargetGroup, ID: "done"}
			}
			if _, err := s.Over(over); err != nil {
				t.Fatal(err)
			}

			c, err := s.End(&tt.target)
			if err != nil {
				t.Fatalf("end: %v", err)
			}
			if !c.Empty() {
				t.Fatalf("expected empty commit, got %+v", c)
			}
			if got := s.Board().GroupIDs(); !slices.Equal(got, []string{"todo", "doing", "done"}) {
				t.Fatalf("group order changed: %v", got)
			}
			if got := groupIDs(t, s.Board(), "todo"); !slices.Equal(got, []string{"a", "b"}) {
				t.Fatalf("todo changed: %v", got)
			}
			if got := groupIDs(t, s.Board(), "doing"); !slices.Equal(got, []string{"x"}) {
				t.Fatalf("doing changed: %v", got)
			}
			if _, _, ok := s.Active(); ok {
				t.Fatal("session should be idle")
			}
		})
	}
}

func TestEndOnSelfKeepsPreview(t *testing.T) {
	s := NewDragSession(newTestBoard(map[string][]string{"todo": {"a", "b"}, "doing": {"x"}}))
	if err := s.Start("tab-1", Draggable{Kind: DragItem, ID: "a"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Over(Target{Kind: TargetItem, ID: "x"}); err != nil {
		t.Fatal(err)
	}
	c, err := s.End(&Target{Kind: TargetItem, ID: "a"})
	if err != nil {
		t.Fatal(err)
	}
	if got := groupIDs(t, s.Board(), "doing"); !slices.Equal(got, []string{"a", "x"}) {
		t.Fatalf("unexpected order: %v", got)
	}
	if !slices.Equal(c.Groups, []string{"todo", "doing"}) {
		t.Fatalf("unexpected commit: %+v", c)
	}
}

func TestPreviewCommitsOnEnd(t *testing.T) {
	s := NewDragSession(newTestBoard(map[string][]string{"todo": {"a", "b", "c"}}))
	if err := s.Start("tab-1", Draggable{Kind: DragItem, ID: "a"}); err != nil {
		t.Fatal(err)
	}
	for _, over := range []string{"b", "b", "c"} {
		if _, err := s.Over(Target{Kind: TargetItem, ID: over}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.Over(Target{Kind: TargetTrash}); err != nil {
		t.Fatal(err)
	}
	c, err := s.End(&Target{Kind: TargetItem, ID: "c"})
	if err != nil {
		t.Fatal(err)
	}
	if got := groupIDs(t, s.Board(), "todo"); !slices.Equal(got, []string{"b", "c", "a"}) {
		t.Fatalf("unexpected order: %v", got)
	}
	if !slices.Equal(c.Groups, []string{"todo"}) {
		t.Fatalf("unexpected commit: %+v", c)
	}
}

func TestSingleActiveDrag(t *testing.T) {
	s := NewDragSession(newTestBoard(map[string][]string{"todo": {"a", "b"}}))
	if err := s.Start("tab-1", Draggable{Kind: DragItem, ID: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Start("tab-2", Draggable{Kind: DragItem, ID: "b"}); !errors.Is(err, ErrDragInProgress) {
		t.Fatalf("expected ErrDragInProgress, got %v", err)
	}
	if _, holder, _ := s.Active(); holder != "tab-1" {
		t.Fatalf("unexpected holder %q", holder)
	}
	s.Cancel()
	if _, err := s.Over(Target{Kind: TargetItem, ID: "b"}); !errors.Is(err, ErrNotDragging) {
		t.Fatalf("expected ErrNotDragging, got %v", err)
	}
}

func TestStartUnknownDraggable(t *testing.T) {
	s := NewDragSession(newTestBoard(nil))
	if err := s.Start("tab-1", Draggable{Kind: DragItem, ID: "ghost"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
