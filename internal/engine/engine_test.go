package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/marcus/notesync/internal/localstore"
	"github.com/marcus/notesync/internal/record"
	"github.com/marcus/notesync/internal/remote"
)

// fakeLocal is an in-memory LocalStore.
type fakeLocal struct {
	mu        sync.Mutex
	recs      map[string]record.Record
	conflicts []localstore.Conflict
	failNext  error // returned by the next bookkeeping call when set
}

func newFakeLocal() *fakeLocal {
	return &fakeLocal{recs: make(map[string]record.Record)}
}

func (f *fakeLocal) put(r record.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs[r.ID] = r
}

func (f *fakeLocal) QueryDirty(ownerID string) ([]record.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []record.Record
	for _, r := range f.recs {
		if r.OwnerID == ownerID && r.Dirty {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeLocal) Get(id string) (*record.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.recs[id]; ok {
		return &r, nil
	}
	return nil, nil
}

func (f *fakeLocal) Upsert(rec record.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs[rec.ID] = rec
	return nil
}

func (f *fakeLocal) Delete(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.recs, id)
	return nil
}

func (f *fakeLocal) LatestSyncCheckpoint(ownerID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var max int64
	for _, r := range f.recs {
		if r.OwnerID == ownerID && r.LastSyncedAt > max {
			max = r.LastSyncedAt
		}
	}
	return max, nil
}

func (f *fakeLocal) MarkPushed(id string, modifiedAt, syncedAt int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	r, ok := f.recs[id]
	if !ok || r.LastModifiedAt != modifiedAt {
		// edited or removed mid-push
		return nil
	}
	r.Dirty = false
	r.Action = record.ActionNone
	r.LastSyncedAt = syncedAt
	f.recs[id] = r
	return nil
}

func (f *fakeLocal) PurgeTombstone(id string, modifiedAt int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.recs[id]; ok && r.LastModifiedAt == modifiedAt {
		delete(f.recs, id)
	}
	return nil
}

func (f *fakeLocal) ClearPending(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.recs[id]
	if !ok {
		return nil
	}
	r.Dirty = false
	r.Action = record.ActionNone
	f.recs[id] = r
	return nil
}

func (f *fakeLocal) SaveConflict(c localstore.Conflict) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conflicts = append(f.conflicts, c)
	return nil
}

// fakeRemote is an in-memory remote.Store behaving like the real server:
// every accepted mutation gets a strictly increasing receipt stamp (kept in
// LastSyncedAt), stale pushes are ignored, and pull-since filters on the
// stamp.
type fakeRemote struct {
	mu       sync.Mutex
	recs     map[string]record.Record
	stamp    int64
	pushErr  map[string]error // per-record injected push failures
	pullErr  error
	pushed   int
	onPush   func(rec record.Record) // runs while a push is in flight
	onDelete func(id string)         // runs while a delete push is in flight
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{recs: make(map[string]record.Record), stamp: 999, pushErr: make(map[string]error)}
}

func (f *fakeRemote) nextStamp() int64 {
	f.stamp++
	return f.stamp
}

// seed stores a record server-side with a receipt stamp, as if another
// device had pushed it.
func (f *fakeRemote) seed(rec record.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec.LastSyncedAt = f.nextStamp()
	f.recs[rec.ID] = rec
}

func (f *fakeRemote) Push(ctx context.Context, rec record.Record) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.pushErr[rec.ID]; err != nil {
		return 0, err
	}
	if f.onPush != nil {
		f.onPush(rec)
	}
	if existing, ok := f.recs[rec.ID]; ok && existing.LastModifiedAt > rec.LastModifiedAt {
		return existing.LastSyncedAt, nil
	}
	f.pushed++
	rec.Dirty = false
	rec.Action = record.ActionNone
	rec.LastSyncedAt = f.nextStamp()
	f.recs[rec.ID] = rec
	return rec.LastSyncedAt, nil
}

func (f *fakeRemote) PushDelete(ctx context.Context, id string, modifiedAt int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.pushErr[id]; err != nil {
		return err
	}
	if f.onDelete != nil {
		f.onDelete(id)
	}
	existing, ok := f.recs[id]
	if ok && existing.LastModifiedAt > modifiedAt {
		return nil // newer remote version wins over the delete
	}
	f.recs[id] = record.Record{ID: id, OwnerID: existing.OwnerID, LastModifiedAt: modifiedAt, LastSyncedAt: f.nextStamp(), Deleted: true}
	return nil
}

func (f *fakeRemote) PullSince(ctx context.Context, ownerID string, since int64) ([]record.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pullErr != nil {
		return nil, f.pullErr
	}
	var out []record.Record
	for _, r := range f.recs {
		if r.LastSyncedAt > since {
			out = append(out, r)
		}
	}
	return out, nil
}

func testCoordinator(local *fakeLocal, rem *fakeRemote, nowMillis int64) *Coordinator {
	c := New(local, rem)
	c.Now = func() time.Time { return time.UnixMilli(nowMillis) }
	return c
}

func dirtyRec(id, owner string, payload string, modified int64) record.Record {
	return record.Record{
		ID:             id,
		OwnerID:        owner,
		Collection:     "notes",
		Payload:        json.RawMessage(payload),
		LastModifiedAt: modified,
		Dirty:          true,
		Action:         record.ActionUpsert,
	}
}

func TestRunSyncPass_PushUpsert(t *testing.T) {
	local := newFakeLocal()
	rem := newFakeRemote()
	local.put(dirtyRec("42", "o1", `"A"`, 100))

	c := testCoordinator(local, rem, 150)
	res, err := c.RunSyncPass(context.Background(), "o1")
	if err != nil {
		t.Fatalf("pass: %v", err)
	}
	if res.Pushed != 1 || res.Failed() != 0 {
		t.Fatalf("result: pushed=%d failed=%d", res.Pushed, res.Failed())
	}

	got, _ := local.Get("42")
	if got.Dirty || got.Action != record.ActionNone {
		t.Errorf("after push: dirty=%v action=%s", got.Dirty, got.Action)
	}
	if got.LastSyncedAt < 100 {
		t.Errorf("last_synced_at %d < last_modified_at 100", got.LastSyncedAt)
	}
	if _, ok := rem.recs["42"]; !ok {
		t.Error("record not on remote after push")
	}
}

func TestRunSyncPass_Idempotent(t *testing.T) {
	local := newFakeLocal()
	rem := newFakeRemote()
	local.put(dirtyRec("a", "o1", `"A"`, 100))
	local.put(dirtyRec("b", "o1", `"B"`, 110))

	c := testCoordinator(local, rem, 150)
	if _, err := c.RunSyncPass(context.Background(), "o1"); err != nil {
		t.Fatalf("first pass: %v", err)
	}

	before := fmt.Sprintf("%+v", local.recs)
	res, err := c.RunSyncPass(context.Background(), "o1")
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if res.Pushed != 0 || res.Pulled != 0 || res.Deleted != 0 || res.Failed() != 0 {
		t.Errorf("second pass not a no-op: %+v", res)
	}
	if after := fmt.Sprintf("%+v", local.recs); after != before {
		t.Errorf("local store changed on idempotent pass:\nbefore: %s\nafter:  %s", before, after)
	}
}

func TestRunSyncPass_PushDelete_PurgesTombstone(t *testing.T) {
	local := newFakeLocal()
	rem := newFakeRemote()
	r := dirtyRec("d1", "o1", `"gone"`, 100)
	r.Deleted = true
	r.Action = record.ActionDelete
	local.put(r)

	c := testCoordinator(local, rem, 150)
	res, err := c.RunSyncPass(context.Background(), "o1")
	if err != nil {
		t.Fatalf("pass: %v", err)
	}
	if res.Pushed != 1 || res.Deleted != 1 {
		t.Fatalf("result: %+v", res)
	}

	if got, _ := local.Get("d1"); got != nil {
		t.Error("tombstone still present after acknowledged delete")
	}
	dirty, _ := local.QueryDirty("o1")
	if len(dirty) != 0 {
		t.Errorf("dirty set after delete: %v", dirty)
	}
	if !rem.recs["d1"].Deleted {
		t.Error("remote missing tombstone")
	}
}

func TestRunSyncPass_EditDuringPushStaysDirty(t *testing.T) {
	local := newFakeLocal()
	rem := newFakeRemote()
	local.put(dirtyRec("n1", "o1", `"v1"`, 100))

	// An edit lands after the push request is sent but before the push is
	// recorded locally. The edit must survive with its dirty flag intact.
	rem.onPush = func(rec record.Record) {
		if rec.ID == "n1" {
			local.put(dirtyRec("n1", "o1", `"v2"`, 200))
		}
	}

	c := testCoordinator(local, rem, 150)
	res, err := c.RunSyncPass(context.Background(), "o1")
	if err != nil {
		t.Fatalf("pass: %v", err)
	}
	if res.Pushed != 1 {
		t.Fatalf("result: %+v", res)
	}

	got, _ := local.Get("n1")
	if got == nil {
		t.Fatal("record missing after pass")
	}
	if !got.Dirty || got.Action != record.ActionUpsert {
		t.Errorf("mid-push edit un-dirtied: dirty=%v action=%s", got.Dirty, got.Action)
	}
	if string(got.Payload) != `"v2"` {
		t.Errorf("mid-push edit lost: payload=%s", got.Payload)
	}

	// The next pass pushes the edited version and settles.
	rem.onPush = nil
	if _, err := c.RunSyncPass(context.Background(), "o1"); err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if string(rem.recs["n1"].Payload) != `"v2"` {
		t.Errorf("remote payload: %s", rem.recs["n1"].Payload)
	}
	got, _ = local.Get("n1")
	if got.Dirty {
		t.Error("record still dirty after the edit was pushed")
	}
}

func TestRunSyncPass_RecreatedDuringDeletePushIsKept(t *testing.T) {
	local := newFakeLocal()
	rem := newFakeRemote()
	r := dirtyRec("d1", "o1", `"gone"`, 100)
	r.Deleted = true
	r.Action = record.ActionDelete
	local.put(r)

	// The id is recreated while the delete push is in flight. The purge
	// must miss the re-stamped row and leave the new version pending.
	rem.onDelete = func(id string) {
		if id == "d1" {
			local.put(dirtyRec("d1", "o1", `"back"`, 200))
		}
	}

	c := testCoordinator(local, rem, 250)
	if _, err := c.RunSyncPass(context.Background(), "o1"); err != nil {
		t.Fatalf("pass: %v", err)
	}

	got, _ := local.Get("d1")
	if got == nil {
		t.Fatal("recreated record was purged by the stale delete ack")
	}
	if !got.Dirty || got.Action != record.ActionUpsert || string(got.Payload) != `"back"` {
		t.Errorf("recreated record mangled: dirty=%v action=%s payload=%s", got.Dirty, got.Action, got.Payload)
	}
}

func TestRunSyncPass_TransientFailure_KeepsDirty(t *testing.T) {
	local := newFakeLocal()
	rem := newFakeRemote()
	local.put(dirtyRec("ok", "o1", `"fine"`, 100))
	local.put(dirtyRec("sad", "o1", `"broken"`, 110))
	rem.pushErr["sad"] = errors.New("connection reset")

	c := testCoordinator(local, rem, 150)
	res, err := c.RunSyncPass(context.Background(), "o1")
	if err != nil {
		t.Fatalf("per-record failures must not abort the pass: %v", err)
	}
	if res.Pushed != 1 || res.Failed() != 1 {
		t.Fatalf("result: pushed=%d failed=%d", res.Pushed, res.Failed())
	}
	if res.Failures[0].Permanent {
		t.Error("network error classified as permanent")
	}

	got, _ := local.Get("sad")
	if !got.Dirty || got.Action != record.ActionUpsert {
		t.Errorf("failed record metadata must be untouched: dirty=%v action=%s", got.Dirty, got.Action)
	}
}

func TestRunSyncPass_PermanentFailure_ClearsPending(t *testing.T) {
	local := newFakeLocal()
	rem := newFakeRemote()
	local.put(dirtyRec("bad", "o1", `"rejected"`, 100))
	rem.pushErr["bad"] = fmt.Errorf("%w: schema", remote.ErrRejected)

	c := testCoordinator(local, rem, 150)
	res, err := c.RunSyncPass(context.Background(), "o1")
	if err != nil {
		t.Fatalf("pass: %v", err)
	}
	if res.Failed() != 1 || !res.Failures[0].Permanent {
		t.Fatalf("result: %+v", res)
	}

	got, _ := local.Get("bad")
	if got.Dirty || got.Action != record.ActionNone {
		t.Errorf("pending action must be cleared to stop the retry loop: dirty=%v action=%s", got.Dirty, got.Action)
	}

	// The record must not be retried on the next pass.
	res2, err := c.RunSyncPass(context.Background(), "o1")
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if res2.Failed() != 0 || rem.pushed != 0 {
		t.Errorf("permanently rejected record was retried: %+v", res2)
	}
}

func TestRunSyncPass_PullCreatesRecord(t *testing.T) {
	local := newFakeLocal()
	rem := newFakeRemote()
	rem.seed(record.Record{ID: "7", OwnerID: "o1", Collection: "notes", Payload: json.RawMessage(`"server"`), LastModifiedAt: 500})

	c := testCoordinator(local, rem, 600)
	res, err := c.RunSyncPass(context.Background(), "o1")
	if err != nil {
		t.Fatalf("pass: %v", err)
	}
	if res.Pulled != 1 {
		t.Fatalf("pulled: got %d, want 1", res.Pulled)
	}

	got, _ := local.Get("7")
	if got == nil {
		t.Fatal("pulled record missing locally")
	}
	if string(got.Payload) != `"server"` || got.Dirty {
		t.Errorf("pulled record: payload=%s dirty=%v", got.Payload, got.Dirty)
	}
	if got.LastSyncedAt < 500 {
		t.Errorf("last_synced_at: got %d, want >= 500", got.LastSyncedAt)
	}
}

func TestRunSyncPass_PullConflict_LocalWins(t *testing.T) {
	local := newFakeLocal()
	rem := newFakeRemote()
	local.put(dirtyRec("9", "o1", `"local"`, 300))
	rem.pushErr["9"] = errors.New("offline") // keep the record dirty through the push phase
	rem.seed(record.Record{ID: "9", OwnerID: "o1", Payload: json.RawMessage(`"remote"`), LastModifiedAt: 200})

	c := testCoordinator(local, rem, 400)
	if _, err := c.RunSyncPass(context.Background(), "o1"); err != nil {
		t.Fatalf("pass: %v", err)
	}

	got, _ := local.Get("9")
	if string(got.Payload) != `"local"` {
		t.Errorf("newer dirty local edit lost: %s", got.Payload)
	}
	if !got.Dirty {
		t.Error("record must stay dirty, eligible for next push")
	}
}

func TestRunSyncPass_PullConflict_RemoteWins_Journaled(t *testing.T) {
	local := newFakeLocal()
	rem := newFakeRemote()
	local.put(dirtyRec("9", "o1", `"local"`, 200))
	rem.pushErr["9"] = errors.New("offline")
	rem.seed(record.Record{ID: "9", OwnerID: "o1", Payload: json.RawMessage(`"remote"`), LastModifiedAt: 300})

	c := testCoordinator(local, rem, 400)
	res, err := c.RunSyncPass(context.Background(), "o1")
	if err != nil {
		t.Fatalf("pass: %v", err)
	}
	if res.Conflicts != 1 {
		t.Fatalf("conflicts: got %d, want 1", res.Conflicts)
	}
	if len(local.conflicts) != 1 || local.conflicts[0].LocalData != `"local"` {
		t.Errorf("conflict journal: %+v", local.conflicts)
	}

	got, _ := local.Get("9")
	if string(got.Payload) != `"remote"` || got.Dirty {
		t.Errorf("after overwrite: payload=%s dirty=%v", got.Payload, got.Dirty)
	}
}

func TestRunSyncPass_PullTombstone_PurgesLocal(t *testing.T) {
	local := newFakeLocal()
	rem := newFakeRemote()
	clean := dirtyRec("z", "o1", `"old"`, 100)
	clean.Dirty = false
	clean.Action = record.ActionNone
	clean.LastSyncedAt = 100
	local.put(clean)
	rem.seed(record.Record{ID: "z", OwnerID: "o1", LastModifiedAt: 200, Deleted: true})

	c := testCoordinator(local, rem, 300)
	res, err := c.RunSyncPass(context.Background(), "o1")
	if err != nil {
		t.Fatalf("pass: %v", err)
	}
	if res.Deleted != 1 {
		t.Fatalf("deleted: got %d, want 1", res.Deleted)
	}
	if got, _ := local.Get("z"); got != nil {
		t.Error("remote tombstone did not purge local record")
	}
}

func TestRunSyncPass_PullFatal_PreservesPushProgress(t *testing.T) {
	local := newFakeLocal()
	rem := newFakeRemote()
	local.put(dirtyRec("42", "o1", `"A"`, 100))
	rem.pullErr = errors.New("server down")

	c := testCoordinator(local, rem, 150)
	res, err := c.RunSyncPass(context.Background(), "o1")
	if err == nil {
		t.Fatal("pull failure must be terminal")
	}
	if res.Pushed != 1 {
		t.Errorf("push progress lost: pushed=%d", res.Pushed)
	}

	got, _ := local.Get("42")
	if got.Dirty {
		t.Error("pushed record reverted to dirty")
	}
}

func TestRunSyncPass_LocalStoreFailureIsFatal(t *testing.T) {
	local := newFakeLocal()
	rem := newFakeRemote()
	local.put(dirtyRec("42", "o1", `"A"`, 100))
	local.failNext = errors.New("disk I/O error")

	c := testCoordinator(local, rem, 150)
	if _, err := c.RunSyncPass(context.Background(), "o1"); err == nil {
		t.Fatal("local store bookkeeping failure must abort the pass")
	}
}

func TestRunSyncPass_Cancelled(t *testing.T) {
	local := newFakeLocal()
	rem := newFakeRemote()
	for i := 0; i < 20; i++ {
		local.put(dirtyRec(fmt.Sprintf("r%02d", i), "o1", `"x"`, int64(100+i)))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := testCoordinator(local, rem, 150)
	if _, err := c.RunSyncPass(ctx, "o1"); err == nil {
		t.Fatal("expected cancellation error")
	}

	// Unprocessed records simply remain dirty for the next pass.
	dirty, _ := local.QueryDirty("o1")
	if len(dirty) == 0 {
		t.Error("expected remaining dirty records after cancellation")
	}
}

func TestRunSyncPass_CheckpointMonotonic(t *testing.T) {
	local := newFakeLocal()
	rem := newFakeRemote()
	local.put(dirtyRec("a", "o1", `"A"`, 100))

	c := testCoordinator(local, rem, 150)
	var last int64
	for i := 0; i < 3; i++ {
		if _, err := c.RunSyncPass(context.Background(), "o1"); err != nil {
			t.Fatalf("pass %d: %v", i, err)
		}
		cp, _ := local.LatestSyncCheckpoint("o1")
		if cp < last {
			t.Fatalf("checkpoint regressed: %d -> %d", last, cp)
		}
		last = cp
	}
}
