package localstore

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/marcus/notesync/internal/record"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	s, err := Initialize(t.TempDir())
	if err != nil {
		t.Fatalf("initialize store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newRec(t *testing.T, owner string, modified int64) record.Record {
	t.Helper()
	r := record.New(owner, "notes", json.RawMessage(`{"title":"t"}`), time.UnixMilli(modified))
	return r
}

func TestUpsertGet_RoundTrip(t *testing.T) {
	s := setupStore(t)
	r := newRec(t, "o1", 100)

	if err := s.Upsert(r); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.Get(r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("record not found after upsert")
	}
	if got.OwnerID != "o1" || got.Collection != "notes" {
		t.Errorf("owner/collection: got %s/%s", got.OwnerID, got.Collection)
	}
	if !got.Dirty || got.Action != record.ActionUpsert {
		t.Errorf("metadata: dirty=%v action=%s", got.Dirty, got.Action)
	}
	if got.LastModifiedAt != 100 {
		t.Errorf("last_modified_at: got %d", got.LastModifiedAt)
	}
	if string(got.Payload) != `{"title":"t"}` {
		t.Errorf("payload: got %s", got.Payload)
	}
}

func TestGet_Missing(t *testing.T) {
	s := setupStore(t)
	got, err := s.Get("nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing record, got %+v", got)
	}
}

func TestUpsert_InvalidMetadataRejected(t *testing.T) {
	s := setupStore(t)
	r := newRec(t, "o1", 100)
	r.Dirty = false // inconsistent with ActionUpsert

	if err := s.Upsert(r); err == nil {
		t.Fatal("expected invariant violation to be rejected")
	}
}

func TestQueryDirty_ScopedByOwner(t *testing.T) {
	s := setupStore(t)

	dirty := newRec(t, "o1", 100)
	clean := newRec(t, "o1", 110)
	clean.MarkPushed(time.UnixMilli(120))
	other := newRec(t, "o2", 130)

	for _, r := range []record.Record{dirty, clean, other} {
		if err := s.Upsert(r); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	got, err := s.QueryDirty("o1")
	if err != nil {
		t.Fatalf("query dirty: %v", err)
	}
	if len(got) != 1 || got[0].ID != dirty.ID {
		t.Fatalf("dirty set: got %d records", len(got))
	}
}

func TestQueryDirty_IncludesTombstones(t *testing.T) {
	s := setupStore(t)
	r := newRec(t, "o1", 100)
	r.MarkDeleted(time.UnixMilli(200))
	if err := s.Upsert(r); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.QueryDirty("o1")
	if err != nil {
		t.Fatalf("query dirty: %v", err)
	}
	if len(got) != 1 || got[0].Action != record.ActionDelete {
		t.Fatalf("expected pending delete in dirty set, got %+v", got)
	}

	// but List must exclude the tombstone
	live, err := s.List("o1", "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(live) != 0 {
		t.Fatalf("tombstone leaked into list: %+v", live)
	}
}

func TestMarkPushed(t *testing.T) {
	s := setupStore(t)
	r := newRec(t, "o1", 100)
	if err := s.Upsert(r); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := s.MarkPushed(r.ID, 100, 150); err != nil {
		t.Fatalf("mark pushed: %v", err)
	}

	got, _ := s.Get(r.ID)
	if got.Dirty || got.Action != record.ActionNone {
		t.Errorf("after push: dirty=%v action=%s", got.Dirty, got.Action)
	}
	if got.LastSyncedAt != 150 {
		t.Errorf("last_synced_at: got %d, want 150", got.LastSyncedAt)
	}

	// Unknown records are a silent no-op, same as a row that moved on.
	if err := s.MarkPushed("missing", 100, 200); err != nil {
		t.Errorf("mark pushed missing record: %v", err)
	}
}

func TestMarkPushed_SkipsReStampedRecord(t *testing.T) {
	s := setupStore(t)
	r := newRec(t, "o1", 100)
	if err := s.Upsert(r); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// The record is edited while its push is in flight.
	r.Touch(json.RawMessage(`{"title":"edited"}`), time.UnixMilli(200))
	if err := s.Upsert(r); err != nil {
		t.Fatalf("edit: %v", err)
	}

	// The push ack arrives carrying the pre-edit stamp. It must not
	// un-dirty the edited row.
	if err := s.MarkPushed(r.ID, 100, 150); err != nil {
		t.Fatalf("mark pushed: %v", err)
	}

	got, _ := s.Get(r.ID)
	if !got.Dirty || got.Action != record.ActionUpsert {
		t.Errorf("edited record un-dirtied: dirty=%v action=%s", got.Dirty, got.Action)
	}
	if string(got.Payload) != `{"title":"edited"}` {
		t.Errorf("edit lost: payload=%s", got.Payload)
	}
	if got.LastSyncedAt != 0 {
		t.Errorf("stale stamp applied: last_synced_at=%d", got.LastSyncedAt)
	}
}

func TestPurgeTombstone_GuardedByStamp(t *testing.T) {
	s := setupStore(t)
	r := newRec(t, "o1", 100)
	r.MarkDeleted(time.UnixMilli(200))
	if err := s.Upsert(r); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// Wrong stamp: the row stays.
	if err := s.PurgeTombstone(r.ID, 100); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if got, _ := s.Get(r.ID); got == nil {
		t.Fatal("mismatched stamp removed the record")
	}

	// Matching stamp: the row goes.
	if err := s.PurgeTombstone(r.ID, 200); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if got, _ := s.Get(r.ID); got != nil {
		t.Fatal("tombstone still present after purge")
	}
}

func TestLatestSyncCheckpoint(t *testing.T) {
	s := setupStore(t)

	cp, err := s.LatestSyncCheckpoint("o1")
	if err != nil {
		t.Fatalf("checkpoint: %v", err)
	}
	if cp != 0 {
		t.Fatalf("empty store checkpoint: got %d, want 0", cp)
	}

	a := newRec(t, "o1", 100)
	a.MarkPushed(time.UnixMilli(180))
	b := newRec(t, "o1", 200)
	b.MarkPushed(time.UnixMilli(250))
	c := newRec(t, "o2", 300)
	c.MarkPushed(time.UnixMilli(900)) // different owner, must not count

	for _, r := range []record.Record{a, b, c} {
		if err := s.Upsert(r); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	cp, err = s.LatestSyncCheckpoint("o1")
	if err != nil {
		t.Fatalf("checkpoint: %v", err)
	}
	if cp != 250 {
		t.Fatalf("checkpoint: got %d, want 250", cp)
	}
}

func TestRecentConflicts_BadTimestampWrapped(t *testing.T) {
	s := setupStore(t)
	_, err := s.conn.Exec(`
		INSERT INTO sync_conflicts (record_id, local_data, remote_data, local_modified_at, remote_modified_at, overwritten_at)
		VALUES ('r1', 'a', 'b', 1, 2, 'not-a-timestamp')
	`)
	if err != nil {
		t.Fatalf("seed bad row: %v", err)
	}

	_, err = s.RecentConflicts(10, nil)
	if err == nil {
		t.Fatal("expected error for unparseable timestamp")
	}
	if !strings.Contains(err.Error(), "scan conflict") {
		t.Errorf("error lacks context: %v", err)
	}
}

func TestDelete_Idempotent(t *testing.T) {
	s := setupStore(t)
	r := newRec(t, "o1", 100)
	if err := s.Upsert(r); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := s.Delete(r.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ := s.Get(r.ID)
	if got != nil {
		t.Fatal("record still present after delete")
	}

	// deleting a missing record is a no-op
	if err := s.Delete(r.ID); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestObserve_NotifiesOnWrite(t *testing.T) {
	s := setupStore(t)
	ch, cancel := s.Observe("o1")
	defer cancel()

	r := newRec(t, "o1", 100)
	if err := s.Upsert(r); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no notification after upsert")
	}

	// writes for other owners are not signalled
	other := newRec(t, "o2", 100)
	if err := s.Upsert(other); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	select {
	case <-ch:
		t.Fatal("unexpected notification for other owner")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestConflictJournal(t *testing.T) {
	s := setupStore(t)

	err := s.SaveConflict(Conflict{
		RecordID:         "r1",
		LocalData:        `{"v":"local"}`,
		RemoteData:       `{"v":"remote"}`,
		LocalModifiedAt:  100,
		RemoteModifiedAt: 200,
	})
	if err != nil {
		t.Fatalf("save conflict: %v", err)
	}

	got, err := s.RecentConflicts(10, nil)
	if err != nil {
		t.Fatalf("recent conflicts: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("conflicts: got %d, want 1", len(got))
	}
	if got[0].RecordID != "r1" || got[0].RemoteModifiedAt != 200 {
		t.Errorf("conflict row: %+v", got[0])
	}
}

func TestOpen_MissingStore(t *testing.T) {
	if _, err := Open(t.TempDir()); err == nil {
		t.Fatal("expected error opening uninitialized store")
	}
}

func TestAdoptOwner(t *testing.T) {
	s := setupStore(t)

	kept := newRec(t, "local", 100)
	if err := s.Upsert(kept); err != nil {
		t.Fatal(err)
	}

	// A record that was already synced under "local" must go dirty again so
	// the new account receives it.
	synced := newRec(t, "local", 110)
	synced.MarkPushed(time.UnixMilli(120))
	if err := s.Upsert(synced); err != nil {
		t.Fatal(err)
	}

	other := newRec(t, "own_else", 130)
	if err := s.Upsert(other); err != nil {
		t.Fatal(err)
	}

	n, err := s.AdoptOwner("local", "own_1")
	if err != nil {
		t.Fatalf("adopt: %v", err)
	}
	if n != 2 {
		t.Fatalf("adopted: got %d, want 2", n)
	}

	dirty, err := s.QueryDirty("own_1")
	if err != nil {
		t.Fatal(err)
	}
	if len(dirty) != 2 {
		t.Fatalf("dirty after adopt: got %d, want 2", len(dirty))
	}
	for _, r := range dirty {
		if r.Action != record.ActionUpsert {
			t.Errorf("action after adopt: %v", r.Action)
		}
	}

	got, err := s.Get(other.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.OwnerID != "own_else" {
		t.Errorf("unrelated owner touched: %s", got.OwnerID)
	}

	n, err = s.AdoptOwner("own_1", "own_1")
	if err != nil || n != 0 {
		t.Errorf("self adopt: n=%d err=%v", n, err)
	}
}
