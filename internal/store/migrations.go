package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	owner          TEXT NOT NULL,
	id             INTEGER NOT NULL,
	title          TEXT NOT NULL,
	message        TEXT NOT NULL DEFAULT '',
	is_read        INTEGER NOT NULL DEFAULT 0 CHECK(is_read IN (0, 1)),
	attachment_url TEXT,
	student_id     INTEGER,
	batch_id       INTEGER,
	created_at     DATETIME NOT NULL,
	PRIMARY KEY (owner, id)
);

CREATE INDEX IF NOT EXISTS idx_notifications_owner ON notifications(owner);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS sync_state (
	owner     TEXT PRIMARY KEY,
	synced_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notifications_owner_created
	ON notifications(owner, created_at);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
