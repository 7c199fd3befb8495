package services

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/CrowderSoup/studyboard/database"
)

func newTestLogger() *log.Logger {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger
}

type fakeBackend struct {
	database.Backend

	mu       sync.Mutex
	upserts  [][]database.ItemRecord
	deleted  []string
	failNext int
	block    chan struct{}
}

func (f *fakeBackend) UpsertItems(ctx context.Context, recs []database.ItemRecord) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext > 0 {
		f.failNext--
		return errors.New("store unavailable")
	}
	f.upserts = append(f.upserts, recs)
	return nil
}

func (f *fakeBackend) DeleteItem(ctx context.Context, ownerID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func todoItems(ids ...string) []database.Item {
	items := make([]database.Item, len(ids))
	for i, id := range ids {
		items[i] = database.Item{ID: id, OwnerID: "u1", Title: id, Position: i}
	}
	return items
}

func statusOf(t *testing.T, s *Synchronizer, owner, scope string) ScopeStatus {
	t.Helper()
	for _, st := range s.Status(owner) {
		if st.Scope == scope {
			return st
		}
	}
	t.Fatalf("no status for scope %s", scope)
	return ScopeStatus{}
}

func TestSynchronizerConfirmsWrites(t *testing.T) {
	store := &fakeBackend{}
	s := NewSynchronizer(store, newTestLogger(), time.Second)

	s.SyncItems("u1", TodoScope, todoItems("a", "b"), true)
	s.Wait()

	st := statusOf(t, s, "u1", TodoScope)
	if st.State != SyncSynced || st.Issued != 1 || st.Confirmed != 1 {
		t.Fatalf("unexpected status: %+v", st)
	}
	if len(store.upserts) != 1 || len(store.upserts[0]) != 2 {
		t.Fatalf("unexpected upserts: %+v", store.upserts)
	}
	if rec := store.upserts[0][1]; rec.ID != "b" || rec.Position != 1 || rec.Title == nil {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestSynchronizerFailureMarksScopeUntilLaterSuccess(t *testing.T) {
	store := &fakeBackend{failNext: 1}
	s := NewSynchronizer(store, newTestLogger(), time.Second)

	var mu sync.Mutex
	var seen []ScopeStatus
	s.OnStatus(func(owner string, st ScopeStatus) {
		mu.Lock()
		seen = append(seen, st)
		mu.Unlock()
	})

	s.SyncItems("u1", TodoScope, todoItems("a"), false)
	s.Wait()
	if st := statusOf(t, s, "u1", TodoScope); st.State != SyncUnsynced {
		t.Fatalf("expected unsynced after failure, got %+v", st)
	}

	s.SyncItems("u1", TodoScope, todoItems("a"), false)
	s.Wait()
	if st := statusOf(t, s, "u1", TodoScope); st.State != SyncSynced || st.Failed != 1 || st.Confirmed != 2 {
		t.Fatalf("expected synced after later success, got %+v", st)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0].State != SyncUnsynced || seen[1].State != SyncSynced {
		t.Fatalf("unexpected notifications: %+v", seen)
	}
}

func TestSynchronizerPendingWhileInFlight(t *testing.T) {
	store := &fakeBackend{block: make(chan struct{})}
	s := NewSynchronizer(store, newTestLogger(), time.Second)

	s.SyncItems("u1", TodoScope, todoItems("a"), false)
	if st := statusOf(t, s, "u1", TodoScope); st.State != SyncPending {
		t.Fatalf("expected pending, got %+v", st)
	}
	close(store.block)
	s.Wait()
	if st := statusOf(t, s, "u1", TodoScope); st.State != SyncSynced {
		t.Fatalf("expected synced, got %+v", st)
	}
}

func TestSynchronizerTimeoutFails(t *testing.T) {
	store := &fakeBackend{block: make(chan struct{})}
	s := NewSynchronizer(store, newTestLogger(), 20*time.Millisecond)

	s.SyncItems("u1", TodoScope, todoItems("a"), false)
	s.Wait()
	if st := statusOf(t, s, "u1", TodoScope); st.State != SyncUnsynced {
		t.Fatalf("expected unsynced after timeout, got %+v", st)
	}
}

func TestSynchronizerDeleteThenRecompact(t *testing.T) {
	store := &fakeBackend{}
	s := NewSynchronizer(store, newTestLogger(), time.Second)

	s.SyncDelete("u1", TodoScope, "b", todoItems("a", "c"), false)
	s.Wait()

	if len(store.deleted) != 1 || store.deleted[0] != "b" {
		t.Fatalf("unexpected deletes: %v", store.deleted)
	}
	if len(store.upserts) != 1 || store.upserts[0][1].ID != "c" || store.upserts[0][1].Position != 1 {
		t.Fatalf("unexpected upserts: %+v", store.upserts)
	}
	if store.upserts[0][0].Title != nil {
		t.Fatal("position-only sync should not send titles")
	}
}

func TestSynchronizerScopesAreIndependent(t *testing.T) {
	store := &fakeBackend{failNext: 1}
	s := NewSynchronizer(store, newTestLogger(), time.Second)

	s.SyncItems("u1", GroupScope("g1"), todoItems("a"), false)
	s.Wait()
	s.SyncItems("u1", GroupScope("g2"), todoItems("b"), false)
	s.Wait()

	if st := statusOf(t, s, "u1", GroupScope("g1")); st.State != SyncUnsynced {
		t.Fatalf("g1: %+v", st)
	}
	if st := statusOf(t, s, "u1", GroupScope("g2")); st.State != SyncSynced {
		t.Fatalf("g2: %+v", st)
	}
	if got := s.Status("someone-else"); len(got) != 0 {
		t.Fatalf("expected no status for other owner, got %+v", got)
	}
}
