package storage

// schema is applied on every open; CREATE TABLE IF NOT EXISTS keeps it
// idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS projects (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	question   TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS codebook_versions (
	project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	version    INTEGER NOT NULL,
	codes      TEXT NOT NULL,
	created_at TEXT NOT NULL,
	PRIMARY KEY (project_id, version)
);

CREATE TABLE IF NOT EXISTS classifications (
	project_id       TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	response_id      TEXT NOT NULL,
	codebook_version INTEGER NOT NULL,
	assigned_codes   TEXT NOT NULL,
	evidence_text    TEXT NOT NULL DEFAULT '',
	pertinence       REAL NOT NULL DEFAULT 0,
	outcome          TEXT NOT NULL,
	failure_reason   TEXT NOT NULL DEFAULT '',
	created_at       TEXT NOT NULL,
	PRIMARY KEY (project_id, response_id)
);

CREATE INDEX IF NOT EXISTS idx_classifications_outcome
	ON classifications(project_id, outcome);
`
