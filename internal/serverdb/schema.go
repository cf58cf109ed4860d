package serverdb

const serverSchema = `
-- Owners table
CREATE TABLE IF NOT EXISTS owners (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- API keys table
CREATE TABLE IF NOT EXISTS api_keys (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    key_hash TEXT UNIQUE NOT NULL,
    key_prefix TEXT NOT NULL,
    name TEXT NOT NULL DEFAULT '',
    last_used_at DATETIME,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (owner_id) REFERENCES owners(id) ON DELETE CASCADE
);

-- Records table. synced_at is the server receipt stamp assigned when a
-- mutation is accepted; pull reads are ordered and filtered by it.
CREATE TABLE IF NOT EXISTS records (
    id TEXT NOT NULL,
    owner_id TEXT NOT NULL,
    collection TEXT NOT NULL DEFAULT '',
    payload TEXT,
    last_modified_at INTEGER NOT NULL,
    synced_at INTEGER NOT NULL,
    deleted INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (id, owner_id)
);

-- Indexes
CREATE INDEX IF NOT EXISTS idx_api_keys_owner ON api_keys(owner_id);
CREATE INDEX IF NOT EXISTS idx_api_keys_prefix ON api_keys(key_prefix);
CREATE INDEX IF NOT EXISTS idx_records_owner_synced ON records(owner_id, synced_at);
`
