package localstore

import "fmt"

// schemaVersion is bumped whenever migrations are appended.
const schemaVersion = 1

const baseSchema = `
CREATE TABLE IF NOT EXISTS records (
    id               TEXT PRIMARY KEY,
    owner_id         TEXT NOT NULL,
    collection       TEXT NOT NULL DEFAULT '',
    payload          JSON NOT NULL,
    last_modified_at INTEGER NOT NULL,
    last_synced_at   INTEGER NOT NULL DEFAULT 0,
    dirty            INTEGER NOT NULL DEFAULT 0,
    deleted          INTEGER NOT NULL DEFAULT 0,
    pending_action   TEXT NOT NULL DEFAULT 'none'
);
CREATE INDEX IF NOT EXISTS idx_records_owner_dirty ON records(owner_id, dirty);
CREATE INDEX IF NOT EXISTS idx_records_owner_synced ON records(owner_id, last_synced_at);
CREATE INDEX IF NOT EXISTS idx_records_owner_collection ON records(owner_id, collection);

CREATE TABLE IF NOT EXISTS sync_conflicts (
    id                 INTEGER PRIMARY KEY AUTOINCREMENT,
    record_id          TEXT NOT NULL,
    local_data         TEXT,
    remote_data        TEXT,
    local_modified_at  INTEGER NOT NULL,
    remote_modified_at INTEGER NOT NULL,
    overwritten_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_conflicts_overwritten ON sync_conflicts(overwritten_at);
`

// initSchema creates tables on first open and applies migrations afterwards,
// tracked via PRAGMA user_version.
func (s *Store) initSchema() error {
	var version int
	if err := s.conn.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version >= schemaVersion {
		return nil
	}

	if _, err := s.conn.Exec(baseSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := s.conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return nil
}
