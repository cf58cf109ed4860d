// Package syncharness spins up an in-process sync server plus any number of
// independent local stores, so multi-device flows can be tested end to end
// without touching the network or the filesystem outside t.TempDir.
package syncharness

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/marcus/notesync/internal/engine"
	"github.com/marcus/notesync/internal/localstore"
	"github.com/marcus/notesync/internal/models"
	"github.com/marcus/notesync/internal/record"
	"github.com/marcus/notesync/internal/remote"
	"github.com/marcus/notesync/internal/server"
	"github.com/marcus/notesync/internal/serverdb"
)

// Harness is one sync server with a single registered owner.
type Harness struct {
	Server  *httptest.Server
	Store   *serverdb.ServerDB
	OwnerID string
	APIKey  string
}

// NewHarness starts an in-process server and registers an owner with one
// API key.
func NewHarness(t *testing.T) *Harness {
	t.Helper()

	store, err := serverdb.Open(":memory:")
	if err != nil {
		t.Fatalf("open server db: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	owner, err := store.CreateOwner("harness")
	if err != nil {
		t.Fatalf("create owner: %v", err)
	}
	apiKey, _, err := store.GenerateAPIKey(owner.ID, "harness")
	if err != nil {
		t.Fatalf("generate api key: %v", err)
	}

	srv := server.NewServer(server.Config{ListenAddr: "127.0.0.1:0"}, store)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &Harness{Server: ts, Store: store, OwnerID: owner.ID, APIKey: apiKey}
}

// Device is an independent client: its own local store and coordinator,
// sharing only the server with other devices.
type Device struct {
	Name  string
	Store *localstore.Store
	Coord *engine.Coordinator
	owner string
}

// NewDevice creates a device with a fresh local store in its own directory.
func (h *Harness) NewDevice(t *testing.T, name string) *Device {
	t.Helper()

	store, err := localstore.Initialize(t.TempDir())
	if err != nil {
		t.Fatalf("init local store for %s: %v", name, err)
	}
	t.Cleanup(func() { store.Close() })

	client := remote.NewClient(h.Server.URL, h.APIKey, "device-"+name)
	return &Device{
		Name:  name,
		Store: store,
		Coord: engine.New(store, client),
		owner: h.OwnerID,
	}
}

// Sync runs one full pass and fails the test on pass-level errors or
// per-record failures.
func (d *Device) Sync(t *testing.T) *engine.Result {
	t.Helper()
	res, err := d.Coord.RunSyncPass(context.Background(), d.owner)
	if err != nil {
		t.Fatalf("%s: sync pass: %v", d.Name, err)
	}
	for _, f := range res.Failures {
		t.Fatalf("%s: record %s failed: %v", d.Name, f.RecordID, f.Err)
	}
	return res
}

// AddNote stores a new dirty note record and returns it.
func (d *Device) AddNote(t *testing.T, title, body string, at time.Time) record.Record {
	t.Helper()
	return d.AddNoteAs(t, d.owner, title, body, at)
}

// AddNoteAs stores a note under an arbitrary owner, for pre-login flows.
func (d *Device) AddNoteAs(t *testing.T, owner, title, body string, at time.Time) record.Record {
	t.Helper()
	payload, err := (&models.Note{Title: title, Body: body}).Marshal()
	if err != nil {
		t.Fatalf("marshal note: %v", err)
	}
	rec := record.New(owner, models.CollectionNotes, payload, at)
	if err := d.Store.Upsert(rec); err != nil {
		t.Fatalf("%s: upsert: %v", d.Name, err)
	}
	return rec
}

// EditNote rewrites a note's payload at the given time.
func (d *Device) EditNote(t *testing.T, id, title, body string, at time.Time) {
	t.Helper()
	rec := d.MustGet(t, id)
	payload, err := (&models.Note{Title: title, Body: body}).Marshal()
	if err != nil {
		t.Fatalf("marshal note: %v", err)
	}
	rec.Touch(payload, at)
	if err := d.Store.Upsert(*rec); err != nil {
		t.Fatalf("%s: upsert edit: %v", d.Name, err)
	}
}

// DeleteNote soft-deletes a note at the given time.
func (d *Device) DeleteNote(t *testing.T, id string, at time.Time) {
	t.Helper()
	rec := d.MustGet(t, id)
	rec.MarkDeleted(at)
	if err := d.Store.Upsert(*rec); err != nil {
		t.Fatalf("%s: upsert delete: %v", d.Name, err)
	}
}

// MustGet fetches a record that must exist.
func (d *Device) MustGet(t *testing.T, id string) *record.Record {
	t.Helper()
	rec, err := d.Store.Get(id)
	if err != nil {
		t.Fatalf("%s: get %s: %v", d.Name, id, err)
	}
	if rec == nil {
		t.Fatalf("%s: record %s not found", d.Name, id)
	}
	return rec
}

// Note decodes the payload of a stored record.
func (d *Device) Note(t *testing.T, id string) *models.Note {
	t.Helper()
	rec := d.MustGet(t, id)
	var n models.Note
	if err := json.Unmarshal(rec.Payload, &n); err != nil {
		t.Fatalf("%s: decode note %s: %v", d.Name, id, err)
	}
	return &n
}

// Titles lists live note titles on the device, for convergence checks.
func (d *Device) Titles(t *testing.T) map[string]string {
	t.Helper()
	recs, err := d.Store.List(d.owner, models.CollectionNotes)
	if err != nil {
		t.Fatalf("%s: list: %v", d.Name, err)
	}
	titles := make(map[string]string, len(recs))
	for _, rec := range recs {
		var n models.Note
		if err := json.Unmarshal(rec.Payload, &n); err != nil {
			t.Fatalf("%s: decode %s: %v", d.Name, rec.ID, err)
		}
		titles[rec.ID] = n.Title
	}
	return titles
}
