package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/CrowderSoup/studyboard/database"
	"github.com/CrowderSoup/studyboard/ordering"
)

var (
	ErrNoOwner    = errors.New("no owner for request")
	ErrEmptyTitle = errors.New("title must not be empty")
)

// MaxTitleLength matches the input limit of the to-do form.
const MaxTitleLength = 80

// Broadcaster delivers state snapshots to every open connection of an owner.
type Broadcaster interface {
	SendToOwner(ownerID string, msg WebSocketMessage)
}

// workspace is one owner's in-memory to-do list and board. Its mutex
// serializes every mutation for the owner.
type workspace struct {
	mu    sync.Mutex
	owner string
	todos *ordering.List
	board *ordering.DragSession
}

// Workspaces caches each owner's models in front of the store. Mutations are
// applied locally first and persisted in the background by the Synchronizer.
type Workspaces struct {
	store database.Backend
	sync  *Synchronizer
	out   Broadcaster
	log   *log.Logger

	mu      sync.Mutex
	byOwner map[string]*workspace
}

func NewWorkspaces(store database.Backend, syncer *Synchronizer, out Broadcaster, logger *log.Logger) *Workspaces {
	return &Workspaces{
		store:   store,
		sync:    syncer,
		out:     out,
		log:     logger,
		byOwner: make(map[string]*workspace),
	}
}

func (w *Workspaces) get(ownerID string) (*workspace, error) {
	if ownerID == "" {
		return nil, ErrNoOwner
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	ws, ok := w.byOwner[ownerID]
	if !ok {
		ws = &workspace{owner: ownerID}
		w.byOwner[ownerID] = ws
	}
	return ws, nil
}

func (w *Workspaces) loadTodos(ctx context.Context, ws *workspace) error {
	if ws.todos != nil {
		return nil
	}
	items, err := w.store.ListItems(ctx, ws.owner, "")
	if err != nil {
		return fmt.Errorf("failed to load to-do list: %w", err)
	}
	ws.todos = ordering.NewList(items)
	return nil
}

func (w *Workspaces) loadBoard(ctx context.Context, ws *workspace) error {
	if ws.board != nil {
		return nil
	}
	groups, err := w.store.ListGroups(ctx, ws.owner)
	if err != nil {
		return fmt.Errorf("failed to load groups: %w", err)
	}
	cards, err := w.store.ListCards(ctx, ws.owner)
	if err != nil {
		return fmt.Errorf("failed to load cards: %w", err)
	}
	board := ordering.NewBoard(ws.owner, groups, cards)
	for _, c := range board.Orphans() {
		w.log.WithFields(log.Fields{"owner": ws.owner, "card": c.ID, "group": c.GroupID}).Warn("Card references a missing group; leaving it off the board")
	}
	ws.board = ordering.NewDragSession(board)
	return nil
}

func (w *Workspaces) publish(ownerID, typ string, data any) {
	if w.out != nil {
		w.out.SendToOwner(ownerID, NewMessage(typ, data))
	}
}

func cleanTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", ErrEmptyTitle
	}
	if r := []rune(title); len(r) > MaxTitleLength {
		title = string(r[:MaxTitleLength])
	}
	return title, nil
}

// ---- to-do list ----

// Todos returns the owner's to-do list. Without an owner it is empty.
func (w *Workspaces) Todos(ctx context.Context, ownerID string) ([]database.Item, error) {
	if ownerID == "" {
		return []database.Item{}, nil
	}
	ws, _ := w.get(ownerID)
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if err := w.loadTodos(ctx, ws); err != nil {
		return nil, err
	}
	return ws.todos.Items(), nil
}

// AddTodo inserts a new item at the tail. The insert is synchronous so the
// caller gets the stored record.
func (w *Workspaces) AddTodo(ctx context.Context, ownerID, title string) (database.Item, error) {
	ws, err := w.get(ownerID)
	if err != nil {
		return database.Item{}, err
	}
	title, err = cleanTitle(title)
	if err != nil {
		return database.Item{}, err
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if err := w.loadTodos(ctx, ws); err != nil {
		return database.Item{}, err
	}

	created, err := w.store.InsertItem(ctx, database.Item{
		ID:       uuid.NewString(),
		OwnerID:  ownerID,
		Title:    title,
		Position: ws.todos.Len(),
	})
	if err != nil {
		return database.Item{}, err
	}
	created = ws.todos.Append(created)
	w.publish(ownerID, MessageTodos, ws.todos.Items())
	return created, nil
}

func (w *Workspaces) ToggleTodo(ctx context.Context, ownerID, id string) (database.Item, error) {
	return w.mutateTodo(ctx, ownerID, id, func(l *ordering.List) (database.Item, bool) {
		return l.ToggleDone(id)
	})
}

func (w *Workspaces) RenameTodo(ctx context.Context, ownerID, id, title string) (database.Item, error) {
	title, err := cleanTitle(title)
	if err != nil {
		return database.Item{}, err
	}
	return w.mutateTodo(ctx, ownerID, id, func(l *ordering.List) (database.Item, bool) {
		return l.Rename(id, title)
	})
}

func (w *Workspaces) mutateTodo(ctx context.Context, ownerID, id string, fn func(*ordering.List) (database.Item, bool)) (database.Item, error) {
	ws, err := w.get(ownerID)
	if err != nil {
		return database.Item{}, err
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if err := w.loadTodos(ctx, ws); err != nil {
		return database.Item{}, err
	}
	it, ok := fn(ws.todos)
	if !ok {
		return database.Item{}, fmt.Errorf("to-do %s: %w", id, ordering.ErrNotFound)
	}
	items := ws.todos.Items()
	w.sync.SyncItems(ownerID, TodoScope, items, true)
	w.publish(ownerID, MessageTodos, items)
	return it, nil
}

// DeleteTodo removes the item locally, then deletes it remotely and rewrites
// the remaining positions.
func (w *Workspaces) DeleteTodo(ctx context.Context, ownerID, id string) error {
	ws, err := w.get(ownerID)
	if err != nil {
		return err
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if err := w.loadTodos(ctx, ws); err != nil {
		return err
	}
	if _, ok := ws.todos.RemoveByID(id); !ok {
		return fmt.Errorf("to-do %s: %w", id, ordering.ErrNotFound)
	}
	items := ws.todos.Items()
	w.sync.SyncDelete(ownerID, TodoScope, id, items, false)
	w.publish(ownerID, MessageTodos, items)
	return nil
}

// ReorderTodos drops activeID onto overID. Drops that change nothing are not synced.
func (w *Workspaces) ReorderTodos(ctx context.Context, ownerID, activeID, overID string) ([]database.Item, error) {
	ws, err := w.get(ownerID)
	if err != nil {
		return nil, err
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if err := w.loadTodos(ctx, ws); err != nil {
		return nil, err
	}
	changed, err := ordering.ReorderList(ws.todos, activeID, overID)
	if err != nil {
		return nil, err
	}
	items := ws.todos.Items()
	if changed {
		w.sync.SyncItems(ownerID, TodoScope, items, true)
		w.publish(ownerID, MessageTodos, items)
	}
	return items, nil
}

// ---- kanban board ----

// Board returns the owner's groups with their cards. Without an owner it is empty.
func (w *Workspaces) Board(ctx context.Context, ownerID string) ([]database.Group, error) {
	if ownerID == "" {
		return []database.Group{}, nil
	}
	ws, _ := w.get(ownerID)
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if err := w.loadBoard(ctx, ws); err != nil {
		return nil, err
	}
	return ws.board.Board().Groups(), nil
}

// withBoard runs a non-drag board mutation. Any drag in progress is cancelled
// first because its working copy would overwrite the change.
func (w *Workspaces) withBoard(ctx context.Context, ownerID string, fn func(b *ordering.Board) error) error {
	ws, err := w.get(ownerID)
	if err != nil {
		return err
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if err := w.loadBoard(ctx, ws); err != nil {
		return err
	}
	if d, holder, ok := ws.board.Active(); ok {
		w.log.WithFields(log.Fields{"owner": ownerID, "draggable": d.ID, "holder": holder}).Info("Cancelling drag interrupted by board edit")
		ws.board.Cancel()
	}
	if err := fn(ws.board.Board()); err != nil {
		return err
	}
	w.publish(ownerID, MessageBoard, ws.board.Board().Groups())
	return nil
}

func (w *Workspaces) AddGroup(ctx context.Context, ownerID, title, accent string) (database.Group, error) {
	var g database.Group
	err := w.withBoard(ctx, ownerID, func(b *ordering.Board) error {
		g = b.AddGroup(title, accent)
		w.sync.SyncNewGroup(ownerID, g)
		return nil
	})
	g.Items = []database.Item{}
	return g, err
}

func (w *Workspaces) RenameGroup(ctx context.Context, ownerID, groupID, title string) (database.Group, error) {
	var g database.Group
	err := w.withBoard(ctx, ownerID, func(b *ordering.Board) error {
		var ok bool
		if g, ok = b.RenameGroup(groupID, title); !ok {
			return fmt.Errorf("group %s: %w", groupID, ordering.ErrNotFound)
		}
		w.sync.SyncGroups(ownerID, b.Groups())
		return nil
	})
	return g, err
}

// RemoveGroup drops a group and every card in it.
func (w *Workspaces) RemoveGroup(ctx context.Context, ownerID, groupID string) error {
	return w.withBoard(ctx, ownerID, func(b *ordering.Board) error {
		removed, ok := b.RemoveGroup(groupID)
		if !ok {
			return fmt.Errorf("group %s: %w", groupID, ordering.ErrNotFound)
		}
		w.sync.SyncGroupDelete(ownerID, groupID, removed, b.Groups())
		return nil
	})
}

func (w *Workspaces) MoveGroup(ctx context.Context, ownerID string, from, to int) error {
	return w.withBoard(ctx, ownerID, func(b *ordering.Board) error {
		if err := b.MoveGroup(from, to); err != nil {
			return err
		}
		if from != to {
			w.sync.SyncGroups(ownerID, b.Groups())
		}
		return nil
	})
}

// DefaultCardDescription stands in for a blank card description.
const DefaultCardDescription = "No description yet."

// maxAssignees caps how many assignee initials a card shows.
const maxAssignees = 3

// NewCard holds the user-supplied fields of a card.
type NewCard struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tag         string   `json:"tag"`
	Due         string   `json:"due"`
	Assignees   []string `json:"assignees"`
}

// AddCard inserts a card at the tail of a group.
func (w *Workspaces) AddCard(ctx context.Context, ownerID, groupID string, in NewCard) (database.Item, error) {
	title, err := cleanTitle(in.Title)
	if err != nil {
		return database.Item{}, err
	}
	description := strings.TrimSpace(in.Description)
	if description == "" {
		description = DefaultCardDescription
	}
	var card database.Item
	err = w.withBoard(ctx, ownerID, func(b *ordering.Board) error {
		items, ok := b.Items(groupID)
		if !ok {
			return fmt.Errorf("group %s: %w", groupID, ordering.ErrNotFound)
		}
		created, err := w.store.InsertItem(ctx, database.Item{
			ID:          "task-" + uuid.NewString(),
			OwnerID:     ownerID,
			GroupID:     groupID,
			Title:       title,
			Description: description,
			Tag:         strings.TrimSpace(in.Tag),
			Due:         strings.TrimSpace(in.Due),
			Assignees:   initials(in.Assignees),
			Position:    len(items),
		})
		if err != nil {
			return err
		}
		card, err = b.AddItem(groupID, created)
		return err
	})
	return card, err
}

// initials keeps the first two letters of each non-blank name, upper-cased.
func initials(names []string) database.Assignees {
	var out database.Assignees
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		r := []rune(name)
		if len(r) > 2 {
			r = r[:2]
		}
		out = append(out, strings.ToUpper(string(r)))
		if len(out) == maxAssignees {
			break
		}
	}
	return out
}

// ShiftCard moves a card to the tail of the neighbouring group.
func (w *Workspaces) ShiftCard(ctx context.Context, ownerID, cardID string, dir ordering.Direction) error {
	return w.withBoard(ctx, ownerID, func(b *ordering.Board) error {
		before := b.Clone()
		moved, err := b.ShiftItem(cardID, dir)
		if err != nil || !moved {
			return err
		}
		w.syncCommit(ownerID, b, ordering.Diff(before, b))
		return nil
	})
}

// ---- drag and drop ----

// Drop performs a whole drag in one call.
func (w *Workspaces) Drop(ctx context.Context, ownerID, holder string, d ordering.Draggable, t ordering.Target) (ordering.Commit, error) {
	var c ordering.Commit
	err := w.withDrag(ctx, ownerID, func(s *ordering.DragSession) (*ordering.Commit, error) {
		var err error
		c, err = s.Drop(holder, d, t)
		return &c, err
	})
	return c, err
}

func (w *Workspaces) DragStart(ctx context.Context, ownerID, holder string, d ordering.Draggable) error {
	return w.withDrag(ctx, ownerID, func(s *ordering.DragSession) (*ordering.Commit, error) {
		return nil, s.Start(holder, d)
	})
}

// DragOver returns the preview board for the holder's drag.
func (w *Workspaces) DragOver(ctx context.Context, ownerID, holder string, t ordering.Target) ([]database.Group, error) {
	var preview []database.Group
	err := w.withDrag(ctx, ownerID, func(s *ordering.DragSession) (*ordering.Commit, error) {
		if err := checkHolder(s, holder); err != nil {
			return nil, err
		}
		b, err := s.Over(t)
		if err != nil {
			return nil, err
		}
		preview = b.Groups()
		return nil, nil
	})
	return preview, err
}

// DragEnd commits the holder's drag onto t, or cancels it when t is nil.
func (w *Workspaces) DragEnd(ctx context.Context, ownerID, holder string, t *ordering.Target) (ordering.Commit, error) {
	var c ordering.Commit
	err := w.withDrag(ctx, ownerID, func(s *ordering.DragSession) (*ordering.Commit, error) {
		if err := checkHolder(s, holder); err != nil {
			return nil, err
		}
		var err error
		c, err = s.End(t)
		return &c, err
	})
	return c, err
}

func (w *Workspaces) DragCancel(ctx context.Context, ownerID, holder string) error {
	_, err := w.DragEnd(ctx, ownerID, holder, nil)
	return err
}

// ReleaseHolder cancels any drag held by holder, e.g. after its socket closed.
func (w *Workspaces) ReleaseHolder(ownerID, holder string) {
	ws, err := w.get(ownerID)
	if err != nil {
		return
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.board == nil {
		return
	}
	if _, h, ok := ws.board.Active(); ok && h == holder {
		ws.board.Cancel()
		w.log.WithFields(log.Fields{"owner": ownerID, "holder": holder}).Info("Cancelled drag of departed client")
	}
}

func checkHolder(s *ordering.DragSession, holder string) error {
	_, h, ok := s.Active()
	if !ok {
		return ordering.ErrNotDragging
	}
	if h != holder {
		return ordering.ErrDragInProgress
	}
	return nil
}

// withDrag runs one step of a drag. A step that returns a commit finished the
// drag: its changes are persisted and the committed board is published.
func (w *Workspaces) withDrag(ctx context.Context, ownerID string, fn func(s *ordering.DragSession) (*ordering.Commit, error)) error {
	ws, err := w.get(ownerID)
	if err != nil {
		return err
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if err := w.loadBoard(ctx, ws); err != nil {
		return err
	}
	c, err := fn(ws.board)
	if err != nil {
		return err
	}
	if c != nil {
		b := ws.board.Board()
		if !c.Empty() {
			w.syncCommit(ownerID, b, *c)
		}
		w.publish(ownerID, MessageBoard, b.Groups())
	}
	return nil
}

// syncCommit hands the changes of one finished board mutation to the synchronizer.
func (w *Workspaces) syncCommit(ownerID string, b *ordering.Board, c ordering.Commit) {
	handled := make(map[string]bool)
	for _, del := range c.Deleted {
		remaining, _ := b.Items(del.GroupID)
		w.sync.SyncDelete(ownerID, GroupScope(del.GroupID), del.ID, remaining, false)
		handled[del.GroupID] = true
	}
	for _, g := range c.Groups {
		if handled[g] {
			continue
		}
		items, _ := b.Items(g)
		w.sync.SyncItems(ownerID, GroupScope(g), items, false)
	}
	if c.GroupOrderChanged {
		w.sync.SyncGroups(ownerID, b.Groups())
	}
}

// SyncStatus reports the owner's per-scope persistence state.
func (w *Workspaces) SyncStatus(ownerID string) []ScopeStatus {
	if ownerID == "" {
		return []ScopeStatus{}
	}
	return w.sync.Status(ownerID)
}
