package store

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema creates the rules database. Timestamps are Unix nanoseconds so
// both drivers read them back identically.
const Schema = `
-- Stored rules
CREATE TABLE IF NOT EXISTS rules (
    name TEXT PRIMARY KEY,
    id TEXT NOT NULL UNIQUE,

    -- Encoding, possibly compressed
    encoding BLOB NOT NULL,
    compression TEXT NOT NULL DEFAULT 'none',

    -- Metadata of the uncompressed encoding
    checksum TEXT NOT NULL,
    size INTEGER NOT NULL,

    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

-- Schema version table
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rules_updated_at ON rules(updated_at);
`

// InsertSchemaVersion records the schema version.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the current schema version.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`

const (
	saveRuleSQL = `
		INSERT INTO rules (name, id, encoding, compression, checksum, size, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			encoding = excluded.encoding,
			compression = excluded.compression,
			checksum = excluded.checksum,
			size = excluded.size,
			updated_at = excluded.updated_at
	`

	loadRuleSQL = `SELECT encoding, compression, checksum FROM rules WHERE name = ?`

	deleteRuleSQL = `DELETE FROM rules WHERE name = ?`

	listRulesSQL = `
		SELECT name, id, checksum, size, created_at, updated_at
		FROM rules
		ORDER BY name
	`
)
