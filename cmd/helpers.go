package cmd

import (
	"fmt"
	"strings"

	"github.com/marcus/notesync/internal/localstore"
	"github.com/marcus/notesync/internal/models"
	"github.com/marcus/notesync/internal/remote"
	"github.com/marcus/notesync/internal/syncconfig"
)

// localOwnerID is the owner used before the user logs in. Records created
// under it stay on this machine until a login claims them.
const localOwnerID = "local"

// currentOwner returns the owner ID notes are stored under: the logged-in
// account if there is one, otherwise the local placeholder.
func currentOwner() string {
	creds, err := syncconfig.LoadAuth()
	if err == nil && creds != nil && creds.OwnerID != "" {
		return creds.OwnerID
	}
	return localOwnerID
}

// openStore opens the local store in the working directory.
func openStore() (*localstore.Store, error) {
	store, err := localstore.Open(getBaseDir())
	if err != nil {
		return nil, fmt.Errorf("no notesync store here (run 'notesync init' first): %w", err)
	}
	return store, nil
}

// newRemoteClient builds an HTTP client from stored credentials.
// Returns an error when the user has not logged in.
func newRemoteClient() (*remote.Client, error) {
	if !syncconfig.IsAuthenticated() {
		return nil, fmt.Errorf("not logged in (run 'notesync login' first)")
	}
	deviceID, err := syncconfig.GetDeviceID()
	if err != nil {
		return nil, fmt.Errorf("device id: %w", err)
	}
	return remote.NewClient(syncconfig.GetServerURL(), syncconfig.GetAPIKey(), deviceID), nil
}

// parseTags splits a comma-separated tag flag into clean tags.
func parseTags(raw string) []string {
	if raw == "" {
		return nil
	}
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// noteFromRecord decodes a record payload, tolerating malformed payloads by
// returning a placeholder so list views never fail on one bad row.
func noteFromRecord(payload []byte) *models.Note {
	n, err := models.UnmarshalNote(payload)
	if err != nil {
		return &models.Note{Title: "(unreadable note)"}
	}
	return n
}

// shortID trims a record UUID for list display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
