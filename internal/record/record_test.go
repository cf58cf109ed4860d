package record

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNew_InitialState(t *testing.T) {
	now := time.UnixMilli(1000)
	r := New("owner-1", "notes", json.RawMessage(`{"title":"a"}`), now)

	if r.ID == "" {
		t.Fatal("expected generated ID")
	}
	if !r.Dirty || r.Action != ActionUpsert {
		t.Errorf("new record: dirty=%v action=%s, want dirty upsert", r.Dirty, r.Action)
	}
	if r.LastModifiedAt != 1000 {
		t.Errorf("last_modified_at: got %d, want 1000", r.LastModifiedAt)
	}
	if r.LastSyncedAt != 0 {
		t.Errorf("last_synced_at: got %d, want 0 (never synced)", r.LastSyncedAt)
	}
	if err := r.Validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
}

func TestNewID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewID()
		if seen[id] {
			t.Fatalf("duplicate ID generated: %s", id)
		}
		seen[id] = true
	}
}

func TestLifecycle_TouchDeletePush(t *testing.T) {
	r := New("o", "notes", json.RawMessage(`{}`), time.UnixMilli(100))

	r.MarkPushed(time.UnixMilli(150))
	if r.Dirty || r.Action != ActionNone {
		t.Fatalf("after push: dirty=%v action=%s", r.Dirty, r.Action)
	}
	if r.LastSyncedAt != 150 {
		t.Fatalf("after push: last_synced_at=%d, want 150", r.LastSyncedAt)
	}
	if r.LastSyncedAt < r.LastModifiedAt {
		t.Fatalf("after push: synced %d < modified %d", r.LastSyncedAt, r.LastModifiedAt)
	}

	r.Touch(json.RawMessage(`{"v":2}`), time.UnixMilli(200))
	if !r.Dirty || r.Action != ActionUpsert {
		t.Fatalf("after touch: dirty=%v action=%s", r.Dirty, r.Action)
	}
	if r.LastModifiedAt != 200 {
		t.Fatalf("after touch: last_modified_at=%d", r.LastModifiedAt)
	}

	r.MarkDeleted(time.UnixMilli(300))
	if !r.Deleted || r.Action != ActionDelete || !r.Dirty {
		t.Fatalf("after delete: deleted=%v dirty=%v action=%s", r.Deleted, r.Dirty, r.Action)
	}
	if err := r.Validate(); err != nil {
		t.Errorf("tombstone validate: %v", err)
	}
}

func TestTouch_RevivesTombstone(t *testing.T) {
	r := New("o", "notes", json.RawMessage(`{}`), time.UnixMilli(100))
	r.MarkDeleted(time.UnixMilli(200))
	r.Touch(json.RawMessage(`{"back":true}`), time.UnixMilli(300))

	if r.Deleted {
		t.Error("touch should clear the tombstone")
	}
	if r.Action != ActionUpsert {
		t.Errorf("action: got %s, want upsert", r.Action)
	}
}

func TestClearPending(t *testing.T) {
	r := New("o", "notes", json.RawMessage(`{}`), time.UnixMilli(100))
	r.ClearPending()
	if r.Dirty || r.Action != ActionNone {
		t.Errorf("after clear: dirty=%v action=%s", r.Dirty, r.Action)
	}
	if err := r.Validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
}

func TestValidate_Inconsistent(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*Record)
	}{
		{"dirty without action", func(r *Record) { r.Dirty = true; r.Action = ActionNone }},
		{"action without dirty", func(r *Record) { r.Dirty = false; r.Action = ActionUpsert }},
		{"tombstone pending upsert", func(r *Record) { r.Deleted = true; r.Dirty = true; r.Action = ActionUpsert }},
		{"empty owner", func(r *Record) { r.OwnerID = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New("o", "notes", json.RawMessage(`{}`), time.UnixMilli(1))
			tt.mut(&r)
			if err := r.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestParseAction_RoundTrip(t *testing.T) {
	for _, a := range []PendingAction{ActionNone, ActionUpsert, ActionDelete} {
		got, err := ParseAction(a.String())
		if err != nil {
			t.Fatalf("parse %q: %v", a.String(), err)
		}
		if got != a {
			t.Errorf("round trip %s: got %s", a, got)
		}
	}
	if _, err := ParseAction("bogus"); err == nil {
		t.Error("expected error for unknown action")
	}
}
