package database

import (
	"context"
	"fmt"
	"time"
)

const groupColumns = `id, owner_id, title, accent, position, created_at`

// InsertGroup stores a new group and returns the created record.
func (s *Store) InsertGroup(ctx context.Context, g Group) (Group, error) {
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO board_groups (`+groupColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)`,
		g.ID, g.OwnerID, g.Title, g.Accent, g.Position, g.CreatedAt,
	)
	if err != nil {
		return Group{}, fmt.Errorf("failed to insert group %s: %w", g.ID, err)
	}
	g.Items = []Item{}
	return g, nil
}

// DeleteGroup removes the group row only. Contained items are deleted by id by
// the caller.
func (s *Store) DeleteGroup(ctx context.Context, ownerID, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM board_groups WHERE owner_id = ? AND id = ?`, ownerID, id); err != nil {
		return fmt.Errorf("failed to delete group %s: %w", id, err)
	}
	return nil
}

// UpsertGroups inserts or updates groups by id in one transaction.
func (s *Store) UpsertGroups(ctx context.Context, recs []GroupRecord) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO board_groups (id, owner_id, position, title, accent, created_at)
		VALUES (?, ?, ?, COALESCE(?, ''), COALESCE(?, ''), ?)
		ON CONFLICT(id) DO UPDATE SET
			position = excluded.position,
			title    = COALESCE(?, board_groups.title),
			accent   = COALESCE(?, board_groups.accent)
		WHERE board_groups.owner_id = excluded.owner_id`)
	if err != nil {
		return fmt.Errorf("failed to prepare group upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, r := range recs {
		if _, err := stmt.ExecContext(ctx,
			r.ID, r.OwnerID, r.Position, r.Title, r.Accent, now,
			r.Title, r.Accent,
		); err != nil {
			return fmt.Errorf("failed to upsert group %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListGroups returns an owner's groups in display order, without items.
func (s *Store) ListGroups(ctx context.Context, ownerID string) ([]Group, error) {
	groups := []Group{}
	if ownerID == "" {
		return groups, nil
	}
	err := s.db.SelectContext(ctx, &groups, `
		SELECT `+groupColumns+` FROM board_groups
		WHERE owner_id = ?
		ORDER BY position ASC, created_at ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	return groups, nil
}
