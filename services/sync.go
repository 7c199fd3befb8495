package services

import (
	"context"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/CrowderSoup/studyboard/database"
)

// SyncState is the persistence state of one scope as seen from this process.
type SyncState string

const (
	SyncSynced   SyncState = "synced"
	SyncPending  SyncState = "pending"
	SyncUnsynced SyncState = "unsynced"
)

// Scope names. Board columns use GroupScope(id).
const (
	TodoScope   = "todo"
	GroupsScope = "groups"
)

func GroupScope(groupID string) string {
	return "group:" + groupID
}

// ScopeStatus reports the write sequence numbers of a scope. A scope is
// unsynced while its newest failed write is newer than its newest success.
type ScopeStatus struct {
	Scope     string    `json:"scope"`
	State     SyncState `json:"state"`
	Issued    uint64    `json:"issued"`
	Confirmed uint64    `json:"confirmed"`
	Failed    uint64    `json:"failed"`
}

type scopeKey struct {
	owner string
	scope string
}

type scopeState struct {
	issued, confirmed, failed uint64
}

func (s scopeState) status(scope string) ScopeStatus {
	st := ScopeStatus{Scope: scope, Issued: s.issued, Confirmed: s.confirmed, Failed: s.failed}
	switch {
	case s.failed > s.confirmed:
		st.State = SyncUnsynced
	case s.issued > max(s.confirmed, s.failed):
		st.State = SyncPending
	default:
		st.State = SyncSynced
	}
	return st
}

// Synchronizer pushes finished mutations to the store in the background.
// Writes are never cancelled or rolled back; a failure is logged and marks
// the scope unsynced until a later write to it succeeds.
type Synchronizer struct {
	store   database.Backend
	log     *log.Logger
	timeout time.Duration

	wg     sync.WaitGroup
	mu     sync.Mutex
	scopes map[scopeKey]*scopeState
	notify func(ownerID string, st ScopeStatus)
}

func NewSynchronizer(store database.Backend, logger *log.Logger, timeout time.Duration) *Synchronizer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Synchronizer{
		store:   store,
		log:     logger,
		timeout: timeout,
		scopes:  make(map[scopeKey]*scopeState),
	}
}

// OnStatus registers a callback fired after every write completes.
func (s *Synchronizer) OnStatus(fn func(ownerID string, st ScopeStatus)) {
	s.mu.Lock()
	s.notify = fn
	s.mu.Unlock()
}

// SyncItems upserts every item of a scope with its current position.
// withContent also sends title and done.
func (s *Synchronizer) SyncItems(ownerID, scope string, items []database.Item, withContent bool) {
	recs := records(items, withContent)
	s.run(ownerID, scope, "upsert items", func(ctx context.Context) error {
		return s.store.UpsertItems(ctx, recs)
	})
}

// SyncDelete deletes one item by id, then upserts the recompacted remainder.
func (s *Synchronizer) SyncDelete(ownerID, scope, id string, remaining []database.Item, withContent bool) {
	recs := records(remaining, withContent)
	s.run(ownerID, scope, "delete item", func(ctx context.Context) error {
		if err := s.store.DeleteItem(ctx, ownerID, id); err != nil {
			return err
		}
		return s.store.UpsertItems(ctx, recs)
	})
}

// SyncNewGroup stores a freshly added group.
func (s *Synchronizer) SyncNewGroup(ownerID string, g database.Group) {
	s.run(ownerID, GroupsScope, "insert group", func(ctx context.Context) error {
		_, err := s.store.InsertGroup(ctx, g)
		return err
	})
}

// SyncGroups upserts every group with its current position, title and accent.
func (s *Synchronizer) SyncGroups(ownerID string, groups []database.Group) {
	recs := make([]database.GroupRecord, len(groups))
	for i, g := range groups {
		recs[i] = database.GroupRecordFor(g)
	}
	s.run(ownerID, GroupsScope, "upsert groups", func(ctx context.Context) error {
		return s.store.UpsertGroups(ctx, recs)
	})
}

// SyncGroupDelete removes a group and its items, then upserts the remaining groups.
func (s *Synchronizer) SyncGroupDelete(ownerID, groupID string, contained []database.Item, remaining []database.Group) {
	recs := make([]database.GroupRecord, len(remaining))
	for i, g := range remaining {
		recs[i] = database.GroupRecordFor(g)
	}
	s.run(ownerID, GroupsScope, "delete group", func(ctx context.Context) error {
		for _, it := range contained {
			if err := s.store.DeleteItem(ctx, ownerID, it.ID); err != nil {
				return err
			}
		}
		if err := s.store.DeleteGroup(ctx, ownerID, groupID); err != nil {
			return err
		}
		return s.store.UpsertGroups(ctx, recs)
	})
}

// Status returns the state of every scope the owner has written to.
func (s *Synchronizer) Status(ownerID string) []ScopeStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []ScopeStatus{}
	for k, st := range s.scopes {
		if k.owner == ownerID {
			out = append(out, st.status(k.scope))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Scope < out[j].Scope })
	return out
}

// Wait blocks until every issued write has finished.
func (s *Synchronizer) Wait() {
	s.wg.Wait()
}

func (s *Synchronizer) run(ownerID, scope, op string, write func(ctx context.Context) error) {
	s.mu.Lock()
	st, ok := s.scopes[scopeKey{ownerID, scope}]
	if !ok {
		st = &scopeState{}
		s.scopes[scopeKey{ownerID, scope}] = st
	}
	st.issued++
	seq := st.issued
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		err := write(ctx)
		entry := s.log.WithFields(log.Fields{"owner": ownerID, "scope": scope, "seq": seq, "op": op})
		if err != nil {
			entry.WithError(err).Error("Remote write failed; local state kept")
		} else {
			entry.Debug("Remote write confirmed")
		}
		s.complete(ownerID, scope, seq, err)
	}()
}

func (s *Synchronizer) complete(ownerID, scope string, seq uint64, err error) {
	s.mu.Lock()
	st := s.scopes[scopeKey{ownerID, scope}]
	if err != nil {
		st.failed = max(st.failed, seq)
	} else {
		st.confirmed = max(st.confirmed, seq)
	}
	status := st.status(scope)
	notify := s.notify
	s.mu.Unlock()

	if notify != nil {
		notify(ownerID, status)
	}
}

func records(items []database.Item, withContent bool) []database.ItemRecord {
	recs := make([]database.ItemRecord, len(items))
	for i, it := range items {
		recs[i] = database.RecordFor(it, withContent)
	}
	return recs
}
