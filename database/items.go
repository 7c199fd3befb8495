package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrItemNotFound = errors.New("item not found")

const itemColumns = `id, owner_id, group_id, title, description, tag, due, assignees, done, position, created_at`

// InsertItem stores a new item and returns the created record.
func (s *Store) InsertItem(ctx context.Context, it Item) (Item, error) {
	if it.CreatedAt.IsZero() {
		it.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO items (`+itemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.ID, it.OwnerID, it.GroupID, it.Title, it.Description, it.Tag, it.Due, it.Assignees, it.Done, it.Position, it.CreatedAt,
	)
	if err != nil {
		return Item{}, fmt.Errorf("failed to insert item %s: %w", it.ID, err)
	}
	return s.getItem(ctx, it.OwnerID, it.ID)
}

func (s *Store) getItem(ctx context.Context, ownerID, id string) (Item, error) {
	var it Item
	err := s.db.GetContext(ctx, &it, `SELECT `+itemColumns+` FROM items WHERE owner_id = ? AND id = ?`, ownerID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, ErrItemNotFound
	}
	if err != nil {
		return Item{}, fmt.Errorf("failed to query item %s: %w", id, err)
	}
	return it, nil
}

// DeleteItem removes one item. Deleting a missing item is not an error.
func (s *Store) DeleteItem(ctx context.Context, ownerID, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE owner_id = ? AND id = ?`, ownerID, id); err != nil {
		return fmt.Errorf("failed to delete item %s: %w", id, err)
	}
	return nil
}

// UpsertItems inserts or updates every record by id in one transaction. Rows
// owned by someone else are left alone. Nil title/done keep stored values.
func (s *Store) UpsertItems(ctx context.Context, recs []ItemRecord) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO items (id, owner_id, group_id, position, title, done, created_at)
		VALUES (?, ?, ?, ?, COALESCE(?, ''), COALESCE(?, 0), ?)
		ON CONFLICT(id) DO UPDATE SET
			group_id = excluded.group_id,
			position = excluded.position,
			title    = COALESCE(?, items.title),
			done     = COALESCE(?, items.done)
		WHERE items.owner_id = excluded.owner_id`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, r := range recs {
		if _, err := stmt.ExecContext(ctx,
			r.ID, r.OwnerID, r.GroupID, r.Position, r.Title, r.Done, now,
			r.Title, r.Done,
		); err != nil {
			return fmt.Errorf("failed to upsert item %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListItems returns one scope of an owner's items ordered by position. The
// to-do list is the scope with an empty groupID. An empty owner yields no items.
func (s *Store) ListItems(ctx context.Context, ownerID, groupID string) ([]Item, error) {
	items := []Item{}
	if ownerID == "" {
		return items, nil
	}
	err := s.db.SelectContext(ctx, &items, `
		SELECT `+itemColumns+` FROM items
		WHERE owner_id = ? AND group_id = ?
		ORDER BY position ASC, created_at ASC`, ownerID, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return items, nil
}

// ListCards returns every kanban card of an owner ordered by group then position.
func (s *Store) ListCards(ctx context.Context, ownerID string) ([]Item, error) {
	items := []Item{}
	if ownerID == "" {
		return items, nil
	}
	err := s.db.SelectContext(ctx, &items, `
		SELECT `+itemColumns+` FROM items
		WHERE owner_id = ? AND group_id != ''
		ORDER BY group_id ASC, position ASC, created_at ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	return items, nil
}
