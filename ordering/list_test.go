package ordering

import (
	"errors"
	"math/rand"
	"slices"
	"testing"

	"github.com/CrowderSoup/studyboard/database"
)

func listOf(ids ...string) *List {
	l := NewList(nil)
	for _, id := range ids {
		l.Append(database.Item{ID: id, Title: id})
	}
	return l
}

func assertDense(t *testing.T, l *List) {
	t.Helper()
	for i, it := range l.Items() {
		if it.Position != i {
			t.Fatalf("item %s at index %d has position %d", it.ID, i, it.Position)
		}
	}
}

func TestAppendToEmptyList(t *testing.T) {
	l := NewList(nil)
	it := l.Append(database.Item{ID: "a", Position: 7})
	if it.Position != 0 {
		t.Fatalf("expected position 0, got %d", it.Position)
	}
	if l.Len() != 1 {
		t.Fatalf("expected 1 item, got %d", l.Len())
	}
}

func TestRemoveByIDRecompacts(t *testing.T) {
	l := listOf("A", "B", "C")
	if _, ok := l.RemoveByID("B"); !ok {
		t.Fatal("expected B to be removed")
	}
	if got := l.IDs(); !slices.Equal(got, []string{"A", "C"}) {
		t.Fatalf("unexpected order: %v", got)
	}
	assertDense(t, l)
}

func TestRemoveByIDMissingIsNoop(t *testing.T) {
	l := listOf("A", "B")
	if _, ok := l.RemoveByID("Z"); ok {
		t.Fatal("expected missing id to report false")
	}
	if got := l.IDs(); !slices.Equal(got, []string{"A", "B"}) {
		t.Fatalf("list changed: %v", got)
	}
}

func TestMoveWithin(t *testing.T) {
	tests := []struct {
		name     string
		from, to int
		want     []string
	}{
		{"forward", 0, 2, []string{"B", "C", "A", "D"}},
		{"backward", 3, 1, []string{"A", "D", "B", "C"}},
		{"same index", 2, 2, []string{"A", "B", "C", "D"}},
		{"to tail", 0, 3, []string{"B", "C", "D", "A"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := listOf("A", "B", "C", "D")
			if err := l.MoveWithin(tt.from, tt.to); err != nil {
				t.Fatalf("move: %v", err)
			}
			if got := l.IDs(); !slices.Equal(got, tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			assertDense(t, l)
		})
	}
}

func TestMoveWithinRejectsOutOfRange(t *testing.T) {
	for _, c := range [][2]int{{-1, 0}, {0, 4}, {4, 0}, {0, -1}} {
		l := listOf("A", "B", "C", "D")
		err := l.MoveWithin(c[0], c[1])
		if !errors.Is(err, ErrIndexOutOfRange) {
			t.Fatalf("move %v: expected ErrIndexOutOfRange, got %v", c, err)
		}
		if got := l.IDs(); !slices.Equal(got, []string{"A", "B", "C", "D"}) {
			t.Fatalf("move %v changed list: %v", c, got)
		}
	}
}

func TestMoveWithinInverseRestoresOrder(t *testing.T) {
	for i := 0; i < 5; i++ {
		for j := 0; j < 5; j++ {
			if i == j {
				continue
			}
			l := listOf("A", "B", "C", "D", "E")
			if err := l.MoveWithin(i, j); err != nil {
				t.Fatal(err)
			}
			if err := l.MoveWithin(j, i); err != nil {
				t.Fatal(err)
			}
			if got := l.IDs(); !slices.Equal(got, []string{"A", "B", "C", "D", "E"}) {
				t.Fatalf("move %d<->%d: got %v", i, j, got)
			}
		}
	}
}

func TestToggleDoneKeepsPosition(t *testing.T) {
	l := listOf("A", "B")
	it, ok := l.ToggleDone("B")
	if !ok || !it.Done || it.Position != 1 {
		t.Fatalf("unexpected toggle result: %+v ok=%v", it, ok)
	}
	it, _ = l.ToggleDone("B")
	if it.Done {
		t.Fatal("second toggle should clear done")
	}
}

func TestRandomMutationsKeepPositionsDense(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	l := NewList(nil)
	next := 0
	for step := 0; step < 500; step++ {
		switch r.Intn(3) {
		case 0:
			l.Append(database.Item{ID: string(rune('a' + next%26)) + string(rune('0'+next/26%10))})
			next++
		case 1:
			if l.Len() > 0 {
				l.RemoveByID(l.IDs()[r.Intn(l.Len())])
			}
		case 2:
			if l.Len() > 0 {
				_ = l.MoveWithin(r.Intn(l.Len()), r.Intn(l.Len()))
			}
		}
		assertDense(t, l)
	}
}

func TestInsertClampsToTail(t *testing.T) {
	l := listOf("A", "B")
	l.Insert(10, database.Item{ID: "C"})
	l.Insert(0, database.Item{ID: "Z"})
	if got := l.IDs(); !slices.Equal(got, []string{"Z", "A", "B", "C"}) {
		t.Fatalf("unexpected order: %v", got)
	}
	assertDense(t, l)
}

func TestReorderList(t *testing.T) {
	l := listOf("A", "B", "C", "D")
	changed, err := ReorderList(l, "A", "C")
	if err != nil || !changed {
		t.Fatalf("reorder: changed=%v err=%v", changed, err)
	}
	if got := l.IDs(); !slices.Equal(got, []string{"B", "C", "A", "D"}) {
		t.Fatalf("unexpected order: %v", got)
	}
	if changed, _ := ReorderList(l, "A", "A"); changed {
		t.Fatal("self drop should not change the list")
	}
	if changed, _ := ReorderList(l, "A", "missing"); changed {
		t.Fatal("unknown target should not change the list")
	}
}
