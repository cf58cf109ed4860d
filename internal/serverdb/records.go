package serverdb

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrRecordNotFound is returned when a record does not exist for the owner.
var ErrRecordNotFound = errors.New("record not found")

// Record is a stored sync record as the server sees it. The server never
// interprets the payload; conflict decisions happen on clients.
type Record struct {
	ID             string
	OwnerID        string
	Collection     string
	Payload        json.RawMessage
	LastModifiedAt int64
	SyncedAt       int64
	Deleted        bool
}

// Status summarizes an owner's stored data.
type Status struct {
	Records        int
	Tombstones     int
	LatestSyncedAt int64
}

// UpsertRecord applies a pushed record and returns the receipt stamp.
// A push whose last_modified_at is older than the stored row is ignored
// and acknowledged with the stored row's stamp, so retries and repeats
// of stale pushes are harmless.
func (db *ServerDB) UpsertRecord(rec Record) (int64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var storedModified, storedSynced int64
	err = tx.QueryRow(
		`SELECT last_modified_at, synced_at FROM records WHERE id = ? AND owner_id = ?`,
		rec.ID, rec.OwnerID,
	).Scan(&storedModified, &storedSynced)
	switch {
	case err == sql.ErrNoRows:
		// fresh record
	case err != nil:
		return 0, fmt.Errorf("load record: %w", err)
	case storedModified > rec.LastModifiedAt:
		return storedSynced, nil
	}

	stamp, err := nextStamp(tx, rec.OwnerID)
	if err != nil {
		return 0, err
	}

	_, err = tx.Exec(`
		INSERT INTO records (id, owner_id, collection, payload, last_modified_at, synced_at, deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, owner_id) DO UPDATE SET
			collection = excluded.collection,
			payload = excluded.payload,
			last_modified_at = excluded.last_modified_at,
			synced_at = excluded.synced_at,
			deleted = excluded.deleted`,
		rec.ID, rec.OwnerID, rec.Collection, string(rec.Payload), rec.LastModifiedAt, stamp, boolToInt(rec.Deleted),
	)
	if err != nil {
		return 0, fmt.Errorf("upsert record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return stamp, nil
}

// DeleteRecord turns a record into a tombstone and returns the receipt
// stamp. Deleting a record that is already a tombstone succeeds. Returns
// ErrRecordNotFound if the owner has no such record.
func (db *ServerDB) DeleteRecord(ownerID, id string, modifiedAt int64) (int64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var storedModified, storedSynced int64
	err = tx.QueryRow(
		`SELECT last_modified_at, synced_at FROM records WHERE id = ? AND owner_id = ?`,
		id, ownerID,
	).Scan(&storedModified, &storedSynced)
	if err == sql.ErrNoRows {
		return 0, ErrRecordNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("load record: %w", err)
	}
	if storedModified > modifiedAt {
		return storedSynced, nil
	}

	stamp, err := nextStamp(tx, ownerID)
	if err != nil {
		return 0, err
	}

	_, err = tx.Exec(
		`UPDATE records SET deleted = 1, payload = NULL, last_modified_at = ?, synced_at = ? WHERE id = ? AND owner_id = ?`,
		modifiedAt, stamp, id, ownerID,
	)
	if err != nil {
		return 0, fmt.Errorf("tombstone record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return stamp, nil
}

// PullSince returns all of an owner's records, tombstones included, whose
// receipt stamp is strictly newer than since, oldest first.
func (db *ServerDB) PullSince(ownerID string, since int64) ([]Record, error) {
	rows, err := db.conn.Query(`
		SELECT id, owner_id, collection, payload, last_modified_at, synced_at, deleted
		FROM records
		WHERE owner_id = ? AND synced_at > ?
		ORDER BY synced_at ASC`,
		ownerID, since,
	)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		var rec Record
		var payload sql.NullString
		var deleted int
		if err := rows.Scan(&rec.ID, &rec.OwnerID, &rec.Collection, &payload, &rec.LastModifiedAt, &rec.SyncedAt, &deleted); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if payload.Valid && payload.String != "" {
			rec.Payload = json.RawMessage(payload.String)
		}
		rec.Deleted = deleted != 0
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// OwnerStatus reports record counts and the latest receipt stamp for an owner.
func (db *ServerDB) OwnerStatus(ownerID string) (Status, error) {
	var st Status
	err := db.conn.QueryRow(`
		SELECT
			COUNT(CASE WHEN deleted = 0 THEN 1 END),
			COUNT(CASE WHEN deleted = 1 THEN 1 END),
			COALESCE(MAX(synced_at), 0)
		FROM records WHERE owner_id = ?`,
		ownerID,
	).Scan(&st.Records, &st.Tombstones, &st.LatestSyncedAt)
	if err != nil {
		return Status{}, fmt.Errorf("owner status: %w", err)
	}
	return st, nil
}

// nextStamp picks the receipt stamp for a mutation: wall-clock milliseconds,
// bumped past the owner's newest stored stamp so stamps strictly increase
// even when the clock stalls or steps backwards.
func nextStamp(tx *sql.Tx, ownerID string) (int64, error) {
	var latest int64
	err := tx.QueryRow(
		`SELECT COALESCE(MAX(synced_at), 0) FROM records WHERE owner_id = ?`,
		ownerID,
	).Scan(&latest)
	if err != nil {
		return 0, fmt.Errorf("latest stamp: %w", err)
	}
	stamp := time.Now().UnixMilli()
	if stamp <= latest {
		stamp = latest + 1
	}
	return stamp, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
