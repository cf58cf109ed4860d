// Package resolve decides which version of a record survives when the local
// and remote stores disagree. The policy is whole-record last-write-wins on
// the client-stamped modification time, with ties going to the remote so all
// devices converge on the same version without extra coordination.
//
// Known limitation: modification times come from device clocks. A device
// with a skewed clock can win or lose conflicts it should not; there is no
// vector clock or server-assigned ordering to correct for that.
package resolve

import "github.com/marcus/notesync/internal/record"

// Outcome describes which side won a resolution.
type Outcome int

const (
	// Created means there was no local record; the remote was taken as-is.
	Created Outcome = iota
	// TookRemote means the remote version replaced an existing local one.
	TookRemote
	// KeptLocal means a newer dirty local edit survived; the remote version
	// was discarded for this pass and will be overwritten on the next push.
	KeptLocal
)

// String returns a human-readable outcome name.
func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case TookRemote:
		return "took_remote"
	case KeptLocal:
		return "kept_local"
	default:
		return "unknown"
	}
}

// Resolve picks the surviving version of a record. local is nil when the
// record has never been seen on this device.
//
// The remote loses only when the local copy is dirty and strictly newer.
// In every other case, including equal timestamps, the remote payload and
// modification time replace the local ones and the dirty flag is cleared.
func Resolve(local *record.Record, remote record.Record) (record.Record, Outcome) {
	if local == nil {
		return takeRemote(remote), Created
	}

	if local.Dirty && local.LastModifiedAt > remote.LastModifiedAt {
		return *local, KeptLocal
	}

	return takeRemote(remote), TookRemote
}

// takeRemote normalizes a remote record for local storage: clean metadata,
// and a sync stamp no older than the remote modification time. The stamp is
// the server's receipt time when the transport supplied one.
func takeRemote(remote record.Record) record.Record {
	merged := remote
	merged.Dirty = false
	merged.Action = record.ActionNone
	if merged.LastSyncedAt < remote.LastModifiedAt {
		merged.LastSyncedAt = remote.LastModifiedAt
	}
	return merged
}
