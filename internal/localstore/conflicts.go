package localstore

import (
	"database/sql"
	"fmt"
	"time"
)

// Conflict is a journal entry for a local edit that was overwritten by a
// remote version during a sync pass. Kept so users can inspect (and
// manually recover) clobbered data.
type Conflict struct {
	ID               int64
	RecordID         string
	LocalData        string
	RemoteData       string
	LocalModifiedAt  int64
	RemoteModifiedAt int64
	OverwrittenAt    time.Time
}

// SaveConflict journals an overwritten local edit.
func (s *Store) SaveConflict(c Conflict) error {
	err := s.withWriteLock(func() error {
		_, err := s.conn.Exec(`
			INSERT INTO sync_conflicts (record_id, local_data, remote_data, local_modified_at, remote_modified_at)
			VALUES (?, ?, ?, ?, ?)
		`, c.RecordID, c.LocalData, c.RemoteData, c.LocalModifiedAt, c.RemoteModifiedAt)
		return err
	})
	if err != nil {
		return fmt.Errorf("save conflict for %s: %w", c.RecordID, err)
	}
	return nil
}

// RecentConflicts returns journal entries, most recent first. If since is
// non-nil, only entries after that time are returned.
func (s *Store) RecentConflicts(limit int, since *time.Time) ([]Conflict, error) {
	var rows *sql.Rows
	var err error

	if since != nil {
		rows, err = s.conn.Query(`
			SELECT id, record_id, COALESCE(local_data,''), COALESCE(remote_data,''), local_modified_at, remote_modified_at, overwritten_at
			FROM sync_conflicts
			WHERE overwritten_at >= ?
			ORDER BY overwritten_at DESC, id DESC
			LIMIT ?
		`, since.UTC().Format("2006-01-02 15:04:05"), limit)
	} else {
		rows, err = s.conn.Query(`
			SELECT id, record_id, COALESCE(local_data,''), COALESCE(remote_data,''), local_modified_at, remote_modified_at, overwritten_at
			FROM sync_conflicts
			ORDER BY overwritten_at DESC, id DESC
			LIMIT ?
		`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("query conflicts: %w", err)
	}
	defer rows.Close()

	var conflicts []Conflict
	for rows.Next() {
		var c Conflict
		var ts string
		if err := rows.Scan(&c.ID, &c.RecordID, &c.LocalData, &c.RemoteData, &c.LocalModifiedAt, &c.RemoteModifiedAt, &ts); err != nil {
			return nil, fmt.Errorf("scan conflict: %w", err)
		}
		parsed, parseErr := time.Parse("2006-01-02 15:04:05", ts)
		if parseErr != nil {
			return nil, fmt.Errorf("scan conflict %d: %w", c.ID, parseErr)
		}
		c.OverwrittenAt = parsed
		conflicts = append(conflicts, c)
	}
	return conflicts, rows.Err()
}
