package database

type migration struct {
	version int
	sql     string
}

// migrations must stay in ascending version order.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS board_groups (
	id         TEXT PRIMARY KEY,
	owner_id   TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	accent     TEXT NOT NULL DEFAULT '',
	position   INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS items (
	id          TEXT PRIMARY KEY,
	owner_id    TEXT NOT NULL,
	group_id    TEXT NOT NULL DEFAULT '',
	title       TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	done        INTEGER NOT NULL DEFAULT 0,
	position    INTEGER NOT NULL DEFAULT 0,
	created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_groups_owner ON board_groups(owner_id, position);
CREATE INDEX IF NOT EXISTS idx_items_owner_group ON items(owner_id, group_id, position);
`,
	},
	{
		version: 2,
		sql: `
ALTER TABLE items ADD COLUMN tag TEXT NOT NULL DEFAULT '';
ALTER TABLE items ADD COLUMN due TEXT NOT NULL DEFAULT '';
ALTER TABLE items ADD COLUMN assignees TEXT NOT NULL DEFAULT '[]';
`,
	},
}
