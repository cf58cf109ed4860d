// Package engine orchestrates synchronization passes: push every dirty local
// record to the remote store, then pull remote changes since the last
// checkpoint and reconcile them into the local store.
//
// A pass is atomic per record but not across the pass: partial progress is
// committed and safe to resume. Running a pass twice with no intervening
// mutations is a no-op on the second run.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/marcus/notesync/internal/localstore"
	"github.com/marcus/notesync/internal/record"
	"github.com/marcus/notesync/internal/remote"
	"github.com/marcus/notesync/internal/resolve"
)

// defaultPushParallelism bounds concurrent push requests within one pass.
// Pushes for different records are independent, so a small fan-out hides
// network latency without hammering the server.
const defaultPushParallelism = 4

// LocalStore is the subset of the local store the engine needs. Satisfied
// by *localstore.Store.
type LocalStore interface {
	QueryDirty(ownerID string) ([]record.Record, error)
	Get(id string) (*record.Record, error)
	Upsert(rec record.Record) error
	Delete(id string) error
	LatestSyncCheckpoint(ownerID string) (int64, error)
	MarkPushed(id string, modifiedAt, syncedAt int64) error
	PurgeTombstone(id string, modifiedAt int64) error
	ClearPending(id string) error
	SaveConflict(c localstore.Conflict) error
}

// Coordinator runs sync passes against a pair of stores. Both stores are
// injected at construction; the coordinator holds no other state, so a
// single instance can serve many passes (serialized by the trigger).
type Coordinator struct {
	Local  LocalStore
	Remote remote.Store

	// PushParallelism bounds concurrent pushes within a pass.
	PushParallelism int

	// Now is the pass clock, overridable in tests.
	Now func() time.Time
}

// New creates a Coordinator with default parallelism and clock.
func New(local LocalStore, remoteStore remote.Store) *Coordinator {
	return &Coordinator{
		Local:           local,
		Remote:          remoteStore,
		PushParallelism: defaultPushParallelism,
		Now:             time.Now,
	}
}

// Failure describes a single record that could not be pushed this pass.
type Failure struct {
	RecordID  string
	Action    record.PendingAction
	Err       error
	Permanent bool
}

// Result summarizes one pass. When RunSyncPass also returns an error the
// pass aborted, but counts already committed remain valid.
type Result struct {
	Pushed    int
	Pulled    int
	Deleted   int // local purges: acked tombstones and pulled remote deletes
	Conflicts int // local edits overwritten by newer remote versions
	Failures  []Failure
	Duration  time.Duration
}

// Failed returns the number of per-record push failures.
func (r *Result) Failed() int {
	return len(r.Failures)
}

// fatalError marks a local store bookkeeping failure. The engine cannot
// trust its own metadata once the local store is failing, so these abort
// the pass instead of being accumulated.
type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

// RunSyncPass executes one push-then-pull reconciliation cycle for the
// owner. Per-record push failures are accumulated in the Result and do not
// abort the phase; local store errors and pull failures are terminal.
func (c *Coordinator) RunSyncPass(ctx context.Context, ownerID string) (*Result, error) {
	start := c.Now()
	res := &Result{}
	defer func() { res.Duration = c.Now().Sub(start) }()

	// The pull checkpoint is captured before pushing. Push acks advance
	// local sync stamps, and a stale push is acked with the stored record's
	// stamp; reading the checkpoint afterwards could skip right past the
	// newer remote version that stamp belongs to.
	checkpoint, err := c.Local.LatestSyncCheckpoint(ownerID)
	if err != nil {
		return res, fmt.Errorf("sync checkpoint: %w", err)
	}

	if err := c.pushPhase(ctx, ownerID, res); err != nil {
		return res, err
	}
	if err := c.pullPhase(ctx, ownerID, checkpoint, res); err != nil {
		return res, err
	}

	slog.Debug("sync pass complete", "owner", ownerID,
		"pushed", res.Pushed, "pulled", res.Pulled,
		"deleted", res.Deleted, "conflicts", res.Conflicts, "failed", res.Failed())
	return res, nil
}

// pushPhase replays every pending local action against the remote store.
// Records are pushed with bounded parallelism; order between records is
// not significant. Each record's metadata transition is the last step of
// processing it, so cancellation never leaves a record half-done.
func (c *Coordinator) pushPhase(ctx context.Context, ownerID string, res *Result) error {
	dirty, err := c.Local.QueryDirty(ownerID)
	if err != nil {
		return fmt.Errorf("query dirty: %w", err)
	}
	if len(dirty) == 0 {
		return nil
	}

	parallelism := c.PushParallelism
	if parallelism < 1 {
		parallelism = 1
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for _, rec := range dirty {
		g.Go(func() error {
			// Cooperative cancellation between records: anything not yet
			// processed simply stays dirty for the next pass.
			if err := gctx.Err(); err != nil {
				return err
			}

			outcome, err := c.pushOne(gctx, rec)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				switch outcome {
				case pushedUpsert:
					res.Pushed++
				case pushedDelete:
					res.Pushed++
					res.Deleted++
				}
				return nil
			case isFatal(err):
				return err
			case remote.Permanent(err):
				// Clear the action so the record does not retry forever;
				// the failure is surfaced as a diagnostic.
				if clearErr := c.Local.ClearPending(rec.ID); clearErr != nil {
					return &fatalError{clearErr}
				}
				res.Failures = append(res.Failures, Failure{
					RecordID: rec.ID, Action: rec.Action, Err: err, Permanent: true,
				})
				slog.Warn("push rejected permanently", "record", rec.ID, "action", rec.Action.String(), "err", err)
				return nil
			default:
				// Transient: metadata untouched, retried next pass.
				res.Failures = append(res.Failures, Failure{
					RecordID: rec.ID, Action: rec.Action, Err: err,
				})
				slog.Debug("push failed, will retry", "record", rec.ID, "err", err)
				return nil
			}
		})
	}
	return g.Wait()
}

type pushOutcome int

const (
	pushedNothing pushOutcome = iota
	pushedUpsert
	pushedDelete
)

// pushOne replays a single record's pending action. The switch is
// exhaustive over record.PendingAction.
func (c *Coordinator) pushOne(ctx context.Context, rec record.Record) (pushOutcome, error) {
	switch rec.Action {
	case record.ActionUpsert:
		syncedAt, err := c.Remote.Push(ctx, rec)
		if err != nil {
			return pushedNothing, err
		}
		if syncedAt == 0 {
			syncedAt = c.Now().UnixMilli()
		}
		if err := c.Local.MarkPushed(rec.ID, rec.LastModifiedAt, syncedAt); err != nil {
			return pushedNothing, &fatalError{err}
		}
		return pushedUpsert, nil

	case record.ActionDelete:
		err := c.Remote.PushDelete(ctx, rec.ID, rec.LastModifiedAt)
		if err != nil && !errors.Is(err, remote.ErrNotFound) {
			// Already-absent remotely counts as acknowledged.
			return pushedNothing, err
		}
		if err := c.Local.PurgeTombstone(rec.ID, rec.LastModifiedAt); err != nil {
			return pushedNothing, &fatalError{err}
		}
		return pushedDelete, nil

	case record.ActionNone:
		// QueryDirty never returns these; tolerate them as a no-op.
		return pushedNothing, nil

	default:
		return pushedNothing, fmt.Errorf("record %s: unknown pending action %d", rec.ID, int(rec.Action))
	}
}

// pullPhase fetches remote changes since the owner's checkpoint and
// reconciles each into the local store. Any failure here is terminal for
// the pass; push-phase progress is already committed.
func (c *Coordinator) pullPhase(ctx context.Context, ownerID string, checkpoint int64, res *Result) error {
	remoteRecs, err := c.Remote.PullSince(ctx, ownerID, checkpoint)
	if err != nil {
		return fmt.Errorf("pull since %d: %w", checkpoint, err)
	}

	for _, rr := range remoteRecs {
		if err := ctx.Err(); err != nil {
			return err
		}

		local, err := c.Local.Get(rr.ID)
		if err != nil {
			return fmt.Errorf("lookup %s: %w", rr.ID, err)
		}

		// A record this device just pushed comes straight back because the
		// checkpoint predates the push. The ack stamp identifies the echo.
		if local != nil && !local.Dirty &&
			local.LastSyncedAt == rr.LastSyncedAt && local.LastModifiedAt == rr.LastModifiedAt {
			continue
		}

		resolved, outcome := resolve.Resolve(local, rr)
		switch outcome {
		case resolve.KeptLocal:
			// Newer dirty local edit wins; the remote version is dropped
			// from this pass and overwritten by the next push.
			continue

		case resolve.Created:
			if resolved.Deleted {
				// Tombstone for a record this device never had.
				continue
			}

		case resolve.TookRemote:
			if local.Dirty {
				res.Conflicts++
				if err := c.Local.SaveConflict(localstore.Conflict{
					RecordID:         rr.ID,
					LocalData:        string(local.Payload),
					RemoteData:       string(rr.Payload),
					LocalModifiedAt:  local.LastModifiedAt,
					RemoteModifiedAt: rr.LastModifiedAt,
				}); err != nil {
					return fmt.Errorf("journal conflict %s: %w", rr.ID, err)
				}
				slog.Info("local edit overwritten by remote", "record", rr.ID,
					"local_modified", local.LastModifiedAt, "remote_modified", rr.LastModifiedAt)
			}
		}

		if resolved.Deleted {
			if err := c.Local.Delete(rr.ID); err != nil {
				return fmt.Errorf("apply remote delete %s: %w", rr.ID, err)
			}
			res.Deleted++
		} else {
			if err := c.Local.Upsert(resolved); err != nil {
				return fmt.Errorf("apply remote %s: %w", rr.ID, err)
			}
		}
		res.Pulled++
	}
	return nil
}

func isFatal(err error) bool {
	var fe *fatalError
	return errors.As(err, &fe)
}
