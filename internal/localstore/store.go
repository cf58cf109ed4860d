// Package localstore is the durable client-side store of sync records.
// It is the single source of truth for the device: the UI layer and the sync
// engine both read from it, and every metadata mutation goes through the same
// write path as regular domain mutations.
package localstore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/marcus/notesync/internal/record"
	_ "modernc.org/sqlite"
)

const dbFile = ".notesync/records.db"

// Store wraps the local SQLite database.
type Store struct {
	conn    *sql.DB
	baseDir string

	mu        sync.Mutex
	observers map[string][]chan struct{}
}

// Open opens an existing store and applies any pending schema changes.
func Open(baseDir string) (*Store, error) {
	dbPath := filepath.Join(baseDir, dbFile)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("store not found: run 'notesync init' first")
	}
	return open(baseDir, dbPath)
}

// Initialize creates the store directory and database.
func Initialize(baseDir string) (*Store, error) {
	dbPath := filepath.Join(baseDir, dbFile)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return open(baseDir, dbPath)
}

func open(baseDir, dbPath string) (*Store, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL allows concurrent reads while writes are serialized
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=500"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	conn.Exec("PRAGMA synchronous=NORMAL")

	s := &Store{
		conn:      conn,
		baseDir:   baseDir,
		observers: make(map[string][]chan struct{}),
	}
	if err := s.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.conn.Close()
}

// withWriteLock executes fn while holding the cross-process write lock,
// serializing writes from the CLI, the daemon, and the sync engine.
func (s *Store) withWriteLock(fn func() error) error {
	locker := newWriteLocker(s.baseDir)
	if err := locker.acquire(defaultTimeout); err != nil {
		return err
	}
	defer locker.release()
	return fn()
}

// Upsert writes the full record row, metadata included. The record must
// satisfy its metadata invariants.
func (s *Store) Upsert(rec record.Record) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	err := s.withWriteLock(func() error {
		_, err := s.conn.Exec(`
			INSERT OR REPLACE INTO records
				(id, owner_id, collection, payload, last_modified_at, last_synced_at, dirty, deleted, pending_action)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, rec.ID, rec.OwnerID, rec.Collection, []byte(rec.Payload),
			rec.LastModifiedAt, rec.LastSyncedAt,
			boolToInt(rec.Dirty), boolToInt(rec.Deleted), rec.Action.String())
		return err
	})
	if err != nil {
		return fmt.Errorf("upsert %s: %w", rec.ID, err)
	}
	s.notify(rec.OwnerID)
	return nil
}

// Get returns the record with the given id, or nil if it does not exist.
// Tombstones are returned; callers that only want live records filter on
// Deleted themselves.
func (s *Store) Get(id string) (*record.Record, error) {
	row := s.conn.QueryRow(selectColumns+` FROM records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	return rec, nil
}

// QueryDirty returns every record of the owner with an outstanding action,
// tombstones included.
func (s *Store) QueryDirty(ownerID string) ([]record.Record, error) {
	rows, err := s.conn.Query(selectColumns+`
		FROM records WHERE owner_id = ? AND dirty = 1
		ORDER BY last_modified_at ASC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query dirty: %w", err)
	}
	return collectRecords(rows)
}

// List returns the owner's live records (tombstones excluded), optionally
// filtered by collection, newest first. This is the read path the UI layer
// renders from.
func (s *Store) List(ownerID, collection string) ([]record.Record, error) {
	var rows *sql.Rows
	var err error
	if collection != "" {
		rows, err = s.conn.Query(selectColumns+`
			FROM records WHERE owner_id = ? AND collection = ? AND deleted = 0
			ORDER BY last_modified_at DESC
		`, ownerID, collection)
	} else {
		rows, err = s.conn.Query(selectColumns+`
			FROM records WHERE owner_id = ? AND deleted = 0
			ORDER BY last_modified_at DESC
		`, ownerID)
	}
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return collectRecords(rows)
}

// Delete physically removes a record. Used once a delete push is
// acknowledged, or when a pulled tombstone wins resolution.
func (s *Store) Delete(id string) error {
	var ownerID string
	err := s.withWriteLock(func() error {
		// Owner needed for observer notification after the row is gone
		if err := s.conn.QueryRow(`SELECT owner_id FROM records WHERE id = ?`, id).Scan(&ownerID); err != nil {
			if err == sql.ErrNoRows {
				return nil
			}
			return err
		}
		_, err := s.conn.Exec(`DELETE FROM records WHERE id = ?`, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	if ownerID != "" {
		s.notify(ownerID)
	}
	return nil
}

// AdoptOwner reassigns every record under fromOwner to toOwner and marks
// them dirty for upsert, so records created before a login get pushed to
// the account that claims them.
func (s *Store) AdoptOwner(fromOwner, toOwner string) (int64, error) {
	if fromOwner == toOwner {
		return 0, nil
	}
	var adopted int64
	err := s.withWriteLock(func() error {
		res, err := s.conn.Exec(`
			UPDATE records
			SET owner_id = ?, dirty = 1,
			    pending_action = CASE WHEN deleted = 1 THEN 'delete' ELSE 'upsert' END
			WHERE owner_id = ?
		`, toOwner, fromOwner)
		if err != nil {
			return err
		}
		adopted, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("adopt owner: %w", err)
	}
	if adopted > 0 {
		s.notify(toOwner)
	}
	return adopted, nil
}

// LatestSyncCheckpoint returns the highest last_synced_at across the owner's
// records, or 0 if none exist. Remote changes after this point have not been
// pulled yet.
func (s *Store) LatestSyncCheckpoint(ownerID string) (int64, error) {
	var checkpoint int64
	err := s.conn.QueryRow(`
		SELECT COALESCE(MAX(last_synced_at), 0) FROM records WHERE owner_id = ?
	`, ownerID).Scan(&checkpoint)
	if err != nil {
		return 0, fmt.Errorf("sync checkpoint: %w", err)
	}
	return checkpoint, nil
}

// MarkPushed records a successful upsert push: dirty cleared, pending action
// dropped, last_synced_at stamped. The transition is guarded on the pushed
// record's modification stamp. An edit that lands while the push is in
// flight re-stamps the row, the guard misses, and the record stays dirty
// for the next pass instead of losing the edit.
func (s *Store) MarkPushed(id string, modifiedAt, syncedAt int64) error {
	var ownerID string
	err := s.withWriteLock(func() error {
		return s.conn.QueryRow(`
			UPDATE records
			SET dirty = 0, pending_action = 'none', last_synced_at = ?
			WHERE id = ? AND last_modified_at = ?
			RETURNING owner_id
		`, syncedAt, id, modifiedAt).Scan(&ownerID)
	})
	if err == sql.ErrNoRows {
		// Edited or removed mid-push. Leave the row alone.
		return nil
	}
	if err != nil {
		return fmt.Errorf("mark pushed %s: %w", id, err)
	}
	s.notify(ownerID)
	return nil
}

// PurgeTombstone physically removes a tombstone once its delete push is
// acknowledged. Guarded the same way as MarkPushed: a record re-stamped
// while the push was in flight is kept for the next pass.
func (s *Store) PurgeTombstone(id string, modifiedAt int64) error {
	var ownerID string
	err := s.withWriteLock(func() error {
		err := s.conn.QueryRow(`
			DELETE FROM records
			WHERE id = ? AND last_modified_at = ?
			RETURNING owner_id
		`, id, modifiedAt).Scan(&ownerID)
		if err == sql.ErrNoRows {
			ownerID = ""
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("purge tombstone %s: %w", id, err)
	}
	if ownerID != "" {
		s.notify(ownerID)
	}
	return nil
}

// ClearPending drops a record's outstanding action without a successful
// push. Used for permanently rejected records to stop infinite retries.
func (s *Store) ClearPending(id string) error {
	err := s.withWriteLock(func() error {
		_, err := s.conn.Exec(`
			UPDATE records SET dirty = 0, pending_action = 'none' WHERE id = ?
		`, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("clear pending %s: %w", id, err)
	}
	return nil
}

// CountPending returns how many of the owner's records await a push.
func (s *Store) CountPending(ownerID string) (int64, error) {
	var count int64
	err := s.conn.QueryRow(`
		SELECT COUNT(*) FROM records WHERE owner_id = ? AND dirty = 1
	`, ownerID).Scan(&count)
	return count, err
}

const selectColumns = `SELECT id, owner_id, collection, payload, last_modified_at, last_synced_at, dirty, deleted, pending_action`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*record.Record, error) {
	var rec record.Record
	var payload []byte
	var dirty, deleted int
	var action string

	err := row.Scan(&rec.ID, &rec.OwnerID, &rec.Collection, &payload,
		&rec.LastModifiedAt, &rec.LastSyncedAt, &dirty, &deleted, &action)
	if err != nil {
		return nil, err
	}

	rec.Payload = payload
	rec.Dirty = dirty != 0
	rec.Deleted = deleted != 0
	rec.Action, err = record.ParseAction(action)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", rec.ID, err)
	}
	return &rec, nil
}

func collectRecords(rows *sql.Rows) ([]record.Record, error) {
	defer rows.Close()
	var recs []record.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
