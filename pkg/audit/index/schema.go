package index

// SchemaVersion is the current index schema version.
const SchemaVersion = 1

// Schema creates the index tables.
const Schema = `
CREATE TABLE IF NOT EXISTS entries (
    line INTEGER PRIMARY KEY,
    id TEXT NOT NULL,
    ts TIMESTAMP NOT NULL,
    mode TEXT NOT NULL,
    ruleset_hash TEXT NOT NULL,
    text_hash TEXT NOT NULL,
    passed BOOLEAN NOT NULL,
    score REAL NOT NULL,
    correction_of TEXT
);

CREATE TABLE IF NOT EXISTS violations (
    line INTEGER NOT NULL REFERENCES entries(line) ON DELETE CASCADE,
    directive_id INTEGER NOT NULL,
    PRIMARY KEY (line, directive_id)
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entries_ts ON entries(ts);
CREATE INDEX IF NOT EXISTS idx_entries_text_hash ON entries(text_hash);
CREATE INDEX IF NOT EXISTS idx_entries_ruleset_hash ON entries(ruleset_hash);
CREATE INDEX IF NOT EXISTS idx_entries_passed ON entries(passed);
CREATE INDEX IF NOT EXISTS idx_violations_directive ON violations(directive_id);
`

const insertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

const getSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`
