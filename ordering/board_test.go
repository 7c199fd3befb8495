package ordering

import (
	"errors"
	"slices"
	"testing"

	"github.com/CrowderSoup/studyboard/database"
)

// newTestBoard builds groups "todo", "doing", "done" holding the given card ids.
func newTestBoard(cols map[string][]string) *Board {
	groups := []database.Group{{ID: "todo", Title: "Todo"}, {ID: "doing", Title: "Doing"}, {ID: "done", Title: "Done"}}
	var cards []database.Item
	for _, g := range groups {
		for _, id := range cols[g.ID] {
			cards = append(cards, database.Item{ID: id, GroupID: g.ID, Title: id})
		}
	}
	return NewBoard("owner-1", groups, cards)
}

func groupIDs(t *testing.T, b *Board, group string) []string {
	t.Helper()
	items, ok := b.Items(group)
	if !ok {
		t.Fatalf("group %s missing", group)
	}
	ids := make([]string, len(items))
	for i, it := range items {
		if it.Position != i {
			t.Fatalf("group %s: item %s at %d has position %d", group, it.ID, i, it.Position)
		}
		if it.GroupID != group {
			t.Fatalf("item %s reports group %s, expected %s", it.ID, it.GroupID, group)
		}
		ids[i] = it.ID
	}
	return ids
}

func TestMoveItemAcrossGroups(t *testing.T) {
	b := newTestBoard(map[string][]string{
		"todo":  {"a", "b", "c"},
		"doing": {"x", "y"},
	})
	if err := b.MoveItem("b", "doing", 1); err != nil {
		t.Fatalf("move: %v", err)
	}
	if got := groupIDs(t, b, "todo"); !slices.Equal(got, []string{"a", "c"}) {
		t.Fatalf("source group: %v", got)
	}
	if got := groupIDs(t, b, "doing"); !slices.Equal(got, []string{"x", "b", "y"}) {
		t.Fatalf("destination group: %v", got)
	}
}

func TestMoveItemAppendsOnNegativeIndex(t *testing.T) {
	b := newTestBoard(map[string][]string{"todo": {"a"}, "done": {"z"}})
	if err := b.MoveItem("a", "done", -1); err != nil {
		t.Fatal(err)
	}
	if got := groupIDs(t, b, "done"); !slices.Equal(got, []string{"z", "a"}) {
		t.Fatalf("unexpected order: %v", got)
	}
}

func TestMoveItemUnknown(t *testing.T) {
	b := newTestBoard(map[string][]string{"todo": {"a"}})
	if err := b.MoveItem("nope", "todo", 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := b.MoveItem("a", "nope", 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGroupLifecycle(t *testing.T) {
	b := newTestBoard(map[string][]string{"doing": {"x", "y"}})
	g := b.AddGroup("  ", "")
	if g.Title != DefaultGroupTitle || g.Accent != DefaultAccent || g.Position != 3 {
		t.Fatalf("unexpected new group: %+v", g)
	}
	if renamed, ok := b.RenameGroup(g.ID, "   "); !ok || renamed.Title != UntitledGroupTitle {
		t.Fatalf("blank rename: %+v", renamed)
	}
	if renamed, _ := b.RenameGroup(g.ID, "  Review "); renamed.Title != "Review" {
		t.Fatalf("rename should trim, got %q", renamed.Title)
	}

	removed, ok := b.RemoveGroup("doing")
	if !ok || len(removed) != 2 {
		t.Fatalf("remove group returned %v %v", removed, ok)
	}
	if got := b.GroupIDs(); !slices.Equal(got, []string{"todo", "done", g.ID}) {
		t.Fatalf("groups after remove: %v", got)
	}
	for i, grp := range b.Groups() {
		if grp.Position != i {
			t.Fatalf("group %s has position %d at %d", grp.ID, grp.Position, i)
		}
	}
}

func TestMoveGroup(t *testing.T) {
	b := newTestBoard(nil)
	if err := b.MoveGroup(0, 2); err != nil {
		t.Fatal(err)
	}
	if got := b.GroupIDs(); !slices.Equal(got, []string{"doing", "done", "todo"}) {
		t.Fatalf("unexpected group order: %v", got)
	}
	if err := b.MoveGroup(0, 3); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestShiftItem(t *testing.T) {
	b := newTestBoard(map[string][]string{"todo": {"a"}, "doing": {"x"}})
	moved, err := b.ShiftItem("a", Right)
	if err != nil || !moved {
		t.Fatalf("shift right: moved=%v err=%v", moved, err)
	}
	if got := groupIDs(t, b, "doing"); !slices.Equal(got, []string{"x", "a"}) {
		t.Fatalf("unexpected doing: %v", got)
	}
	if moved, _ := b.ShiftItem("x", Left); !moved {
		t.Fatal("expected x to move left")
	}
	if moved, _ := b.ShiftItem("x", Left); moved {
		t.Fatal("shifting past the first group should be a no-op")
	}
	for _, dir := range []Direction{"", "up", "LEFT"} {
		if moved, err := b.ShiftItem("a", dir); moved || !errors.Is(err, ErrInvalidDirection) {
			t.Fatalf("direction %q: moved=%v err=%v", dir, moved, err)
		}
	}
	if got := groupIDs(t, b, "doing"); !slices.Equal(got, []string{"a"}) {
		t.Fatalf("invalid direction moved a card: %v", got)
	}
}

func TestNewBoardReportsOrphans(t *testing.T) {
	groups := []database.Group{{ID: "todo", Title: "Todo"}}
	cards := []database.Item{
		{ID: "a", GroupID: "todo"},
		{ID: "lost", GroupID: "gone"},
		{ID: "b", GroupID: "todo", Position: 1},
	}
	b := NewBoard("owner-1", groups, cards)
	if got := groupIDs(t, b, "todo"); !slices.Equal(got, []string{"a", "b"}) {
		t.Fatalf("unexpected todo: %v", got)
	}
	orphans := b.Orphans()
	if len(orphans) != 1 || orphans[0].ID != "lost" {
		t.Fatalf("unexpected orphans: %+v", orphans)
	}
	if len(newTestBoard(map[string][]string{"todo": {"a"}}).Orphans()) != 0 {
		t.Fatal("expected no orphans on a consistent board")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	b := newTestBoard(map[string][]string{"todo": {"a", "b"}})
	c := b.Clone()
	if err := c.MoveItem("a", "done", -1); err != nil {
		t.Fatal(err)
	}
	if got := groupIDs(t, b, "todo"); !slices.Equal(got, []string{"a", "b"}) {
		t.Fatalf("original changed: %v", got)
	}
}
