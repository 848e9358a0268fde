package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations. Versions are
// sequential starting from 1. Each one records itself in schema_version.
//
// Version 2 adds the daily digest time. Rows written before it carry NULL and
// are back-filled with the default when read.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS preferences (
	id                    INTEGER PRIMARY KEY CHECK (id = 1),
	enabled               INTEGER NOT NULL,
	reminder_lead_minutes INTEGER NOT NULL,
	daily_digest_enabled  INTEGER NOT NULL,
	sound_enabled         INTEGER NOT NULL,
	vibration_enabled     INTEGER NOT NULL,
	updated_at_ms         INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS visibility_overrides (
	candidate_id  TEXT PRIMARY KEY,
	state         TEXT NOT NULL CHECK (state IN ('muted', 'allowed')),
	updated_at_ms INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS ledger (
	handle          TEXT PRIMARY KEY,
	candidate_id    TEXT NOT NULL,
	kind            TEXT NOT NULL CHECK (kind IN ('reminder', 'digest')),
	scheduled_at_ms INTEGER NOT NULL,
	subject_at_ms   INTEGER NOT NULL,
	title           TEXT NOT NULL DEFAULT '',
	body            TEXT NOT NULL DEFAULT '',
	UNIQUE (candidate_id, kind)
);

CREATE INDEX IF NOT EXISTS idx_ledger_scheduled ON ledger (scheduled_at_ms);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
ALTER TABLE preferences ADD COLUMN daily_digest_time TEXT;

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
