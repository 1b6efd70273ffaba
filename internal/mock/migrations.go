package mock

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations. Versions are
// sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	email         TEXT NOT NULL UNIQUE COLLATE NOCASE,
	username      TEXT NOT NULL DEFAULT '',
	password_hash BLOB NOT NULL,
	password_salt BLOB NOT NULL,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	token      TEXT PRIMARY KEY,
	user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	expires_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS graves (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id         INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	title           TEXT NOT NULL,
	content         TEXT NOT NULL DEFAULT '',
	unlock_date     TEXT NOT NULL,
	is_public       INTEGER NOT NULL DEFAULT 0,
	share_id        TEXT NOT NULL DEFAULT '',
	unlock_notified INTEGER NOT NULL DEFAULT 0,
	created_at      TEXT NOT NULL,
	updated_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS grave_files (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	grave_id   INTEGER NOT NULL REFERENCES graves(id) ON DELETE CASCADE,
	file_name  TEXT NOT NULL,
	mime_type  TEXT NOT NULL DEFAULT '',
	size       INTEGER NOT NULL DEFAULT 0,
	data       BLOB,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	id          TEXT PRIMARY KEY,
	user_id     INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	type        TEXT NOT NULL,
	title       TEXT NOT NULL,
	message     TEXT NOT NULL,
	grave_id    INTEGER,
	grave_title TEXT NOT NULL DEFAULT '',
	is_read     INTEGER NOT NULL DEFAULT 0,
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS preferences (
	user_id             INTEGER PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
	email_notifications INTEGER NOT NULL,
	push_notifications  INTEGER NOT NULL,
	capsule_unlocked    INTEGER NOT NULL,
	capsule_shared      INTEGER NOT NULL,
	collaborator_added  INTEGER NOT NULL,
	reminders           INTEGER NOT NULL,
	weekly_digest       INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_graves_user ON graves(user_id);
CREATE INDEX IF NOT EXISTS idx_files_grave ON grave_files(grave_id);
CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, is_read);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
