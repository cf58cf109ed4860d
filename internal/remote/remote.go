// Package remote defines the client-side contract for the server half of
// synchronization, plus the HTTP implementation of it. The sync engine only
// sees the Store interface; transport is an implementation detail.
package remote

import (
	"context"

	"github.com/marcus/notesync/internal/record"
)

// Store is the remote end of a sync pass. All calls block on network I/O
// and honor ctx cancellation.
type Store interface {
	// Push creates or updates a record remotely. The returned ack is the
	// server's receipt stamp in Unix millis (0 if the server sent none);
	// callers store it as the record's LastSyncedAt so later pulls use a
	// timeline consistent with the server's.
	Push(ctx context.Context, rec record.Record) (int64, error)

	// PushDelete deletes a record remotely. modifiedAt is the local
	// tombstone time, so last-write-wins ordering applies server-side.
	// Deleting an already-absent record succeeds.
	PushDelete(ctx context.Context, id string, modifiedAt int64) error

	// PullSince returns every record of the owner modified strictly after
	// the given timestamp, tombstones included.
	PullSince(ctx context.Context, ownerID string, since int64) ([]record.Record, error)
}
