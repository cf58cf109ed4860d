// Package record defines the envelope every synchronizable entity travels in.
// The sync engine never looks inside Payload; it only reads and rewrites the
// metadata fields that track what still has to be reconciled with the remote.
package record

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PendingAction is the operation that must be replayed against the remote
// store for a record. It is a closed enum so reconciliation switches can be
// checked for exhaustiveness.
type PendingAction int

const (
	// ActionNone means the record has no outstanding local changes.
	ActionNone PendingAction = iota
	// ActionUpsert means a local create or update awaits a push.
	ActionUpsert
	// ActionDelete means a local soft delete awaits a push.
	ActionDelete
)

// String returns a stable lowercase name, also used as the stored column value.
func (a PendingAction) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionUpsert:
		return "upsert"
	case ActionDelete:
		return "delete"
	default:
		return fmt.Sprintf("unknown(%d)", int(a))
	}
}

// ParseAction converts a stored action name back to a PendingAction.
func ParseAction(s string) (PendingAction, error) {
	switch s {
	case "none":
		return ActionNone, nil
	case "upsert":
		return ActionUpsert, nil
	case "delete":
		return ActionDelete, nil
	default:
		return ActionNone, fmt.Errorf("unknown pending action: %q", s)
	}
}

// Record is a versioned envelope around an opaque JSON payload.
//
// Timestamps are milliseconds since epoch. LastSyncedAt == 0 means the record
// has never been reconciled with the remote.
type Record struct {
	ID             string          `json:"id"`
	OwnerID        string          `json:"owner_id"`
	Collection     string          `json:"collection"`
	Payload        json.RawMessage `json:"payload"`
	LastModifiedAt int64           `json:"last_modified_at"`
	LastSyncedAt   int64           `json:"last_synced_at"`
	Dirty          bool            `json:"dirty"`
	Deleted        bool            `json:"deleted"`
	Action         PendingAction   `json:"pending_action"`
}

// NewID returns a fresh client-generated record identifier. Random 128-bit
// IDs let any device create records without server coordination.
func NewID() string {
	return uuid.NewString()
}

// New creates a record in its initial lifecycle state: dirty, pending upsert.
func New(ownerID, collection string, payload json.RawMessage, now time.Time) Record {
	return Record{
		ID:             NewID(),
		OwnerID:        ownerID,
		Collection:     collection,
		Payload:        payload,
		LastModifiedAt: now.UnixMilli(),
		Dirty:          true,
		Action:         ActionUpsert,
	}
}

// Touch records a local mutation: new payload, re-stamped modification time,
// back to pending upsert. A touch on a tombstone revives the record.
func (r *Record) Touch(payload json.RawMessage, now time.Time) {
	r.Payload = payload
	r.LastModifiedAt = now.UnixMilli()
	r.Deleted = false
	r.Dirty = true
	r.Action = ActionUpsert
}

// MarkDeleted tombstones the record locally. The row stays in the local
// store until the delete push is acknowledged remotely.
func (r *Record) MarkDeleted(now time.Time) {
	r.LastModifiedAt = now.UnixMilli()
	r.Deleted = true
	r.Dirty = true
	r.Action = ActionDelete
}

// MarkPushed transitions the record after a successful upsert push.
func (r *Record) MarkPushed(now time.Time) {
	r.Dirty = false
	r.Action = ActionNone
	r.LastSyncedAt = now.UnixMilli()
}

// ClearPending drops the outstanding action without a successful push. Used
// for permanently rejected records so they do not retry forever.
func (r *Record) ClearPending() {
	r.Dirty = false
	r.Action = ActionNone
}

// Validate reports the first metadata invariant violation, or nil.
func (r *Record) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("record has empty id")
	}
	if r.OwnerID == "" {
		return fmt.Errorf("record %s has empty owner_id", r.ID)
	}
	if r.Dirty != (r.Action != ActionNone) {
		return fmt.Errorf("record %s: dirty=%v inconsistent with pending action %s", r.ID, r.Dirty, r.Action)
	}
	if r.Deleted && r.Dirty && r.Action != ActionDelete {
		return fmt.Errorf("record %s: tombstone with pending action %s", r.ID, r.Action)
	}
	return nil
}
