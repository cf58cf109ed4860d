package version

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// cacheTTL bounds how long a check result is reused before asking GitHub
// again.
const cacheTTL = 6 * time.Hour

// CacheEntry is the persisted result of an update check.
type CacheEntry struct {
	LatestVersion  string    `json:"latest_version"`
	CurrentVersion string    `json:"current_version"`
	CheckedAt      time.Time `json:"checked_at"`
	HasUpdate      bool      `json:"has_update"`
}

func cachePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "notesync", "update-check.json")
}

// IsCacheValid reports whether a cached entry can stand in for a fresh
// check of currentVersion. Entries from a different binary version are
// stale regardless of age.
func IsCacheValid(e *CacheEntry, currentVersion string) bool {
	if e == nil {
		return false
	}
	if e.CurrentVersion != currentVersion {
		return false
	}
	return time.Since(e.CheckedAt) < cacheTTL
}

// LoadCache reads the persisted check result.
func LoadCache() (*CacheEntry, error) {
	data, err := os.ReadFile(cachePath())
	if err != nil {
		return nil, err
	}
	var e CacheEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// SaveCache persists a check result, creating the config directory if
// needed.
func SaveCache(e *CacheEntry) error {
	path := cachePath()
	if path == "" {
		return os.ErrNotExist
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
