package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Item is a single to-do entry or kanban card. To-do items have an empty GroupID.
type Item struct {
	ID          string    `db:"id" json:"id"`
	OwnerID     string    `db:"owner_id" json:"ownerId"`
	GroupID     string    `db:"group_id" json:"groupId,omitempty"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description,omitempty"`
	Tag         string    `db:"tag" json:"tag,omitempty"`
	Due         string    `db:"due" json:"due,omitempty"`
	Assignees   Assignees `db:"assignees" json:"assignees,omitempty"`
	Done        bool      `db:"done" json:"done"`
	Position    int       `db:"position" json:"position"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// Assignees are a card's assignee initials, stored as a JSON array.
type Assignees []string

func (a Assignees) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(a))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (a *Assignees) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*a = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into Assignees", src)
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("invalid assignees %q: %w", raw, err)
	}
	if len(out) == 0 {
		out = nil
	}
	*a = out
	return nil
}

// Group is a kanban column. Items are kept in display order.
type Group struct {
	ID        string    `db:"id" json:"id"`
	OwnerID   string    `db:"owner_id" json:"ownerId"`
	Title     string    `db:"title" json:"title"`
	Accent    string    `db:"accent" json:"accent"`
	Position  int       `db:"position" json:"position"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	Items     []Item    `db:"-" json:"items"`
}

// ItemRecord is one row of a bulk upsert. Nil fields keep the stored value.
type ItemRecord struct {
	ID       string  `json:"id"`
	OwnerID  string  `json:"ownerId"`
	GroupID  string  `json:"groupId,omitempty"`
	Position int     `json:"position"`
	Done     *bool   `json:"done,omitempty"`
	Title    *string `json:"title,omitempty"`
}

// GroupRecord is one row of a bulk group upsert.
type GroupRecord struct {
	ID       string  `json:"id"`
	OwnerID  string  `json:"ownerId"`
	Position int     `json:"position"`
	Title    *string `json:"title,omitempty"`
	Accent   *string `json:"accent,omitempty"`
}

// RecordFor builds the upsert record for an item. withContent adds title and done.
func RecordFor(it Item, withContent bool) ItemRecord {
	rec := ItemRecord{
		ID:       it.ID,
		OwnerID:  it.OwnerID,
		GroupID:  it.GroupID,
		Position: it.Position,
	}
	if withContent {
		title, done := it.Title, it.Done
		rec.Title = &title
		rec.Done = &done
	}
	return rec
}

// GroupRecordFor builds the upsert record for a group.
func GroupRecordFor(g Group) GroupRecord {
	title, accent := g.Title, g.Accent
	return GroupRecord{
		ID:       g.ID,
		OwnerID:  g.OwnerID,
		Position: g.Position,
		Title:    &title,
		Accent:   &accent,
	}
}
