package history

// SchemaVersion is the current history schema version.
const SchemaVersion = 1

// Schema creates the history tables.
const Schema = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	rule_root TEXT NOT NULL,
	started_at TIMESTAMP NOT NULL,
	completed_at TIMESTAMP,
	record_count INTEGER NOT NULL DEFAULT 0,
	violation_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS violations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	record_id TEXT NOT NULL,
	category TEXT NOT NULL,
	instrument TEXT NOT NULL,
	field TEXT NOT NULL,
	rule TEXT NOT NULL,
	message TEXT NOT NULL,
	recorded_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_violations_run_id ON violations(run_id);
`

// insertSchemaVersion records the schema version if absent.
const insertSchemaVersion = `INSERT OR IGNORE INTO schema_version (version) VALUES (?)`

// getSchemaVersion reads the recorded schema version.
const getSchemaVersion = `SELECT version FROM schema_version LIMIT 1`
