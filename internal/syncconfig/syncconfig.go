// Package syncconfig loads and saves the global notesync configuration and
// auth credentials stored under ~/.config/notesync/.
package syncconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AutoSyncConfig holds daemon auto-sync settings.
type AutoSyncConfig struct {
	Enabled  *bool  `json:"enabled,omitempty"`  // nil = default true
	Debounce string `json:"debounce,omitempty"` // duration string, default "3s"
	Interval string `json:"interval,omitempty"` // duration string, default "5m"
}

// SyncConfig holds sync-related settings.
type SyncConfig struct {
	URL  string         `json:"url"`
	Auto AutoSyncConfig `json:"auto"`
}

// Config is the global notesync config stored at ~/.config/notesync/config.json.
type Config struct {
	Sync SyncConfig `json:"sync"`
}

// AuthCredentials stores authentication state at ~/.config/notesync/auth.json.
type AuthCredentials struct {
	APIKey    string `json:"api_key"`
	OwnerID   string `json:"owner_id"`
	ServerURL string `json:"server_url"`
	DeviceID  string `json:"device_id"`
}

const defaultServerURL = "http://localhost:8080"

// ConfigDir returns ~/.config/notesync, creating it if necessary.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	dir := filepath.Join(home, ".config", "notesync")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	return dir, nil
}

// LoadConfig reads the global config from ~/.config/notesync/config.json.
func LoadConfig() (*Config, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "config.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveConfig writes the global config to ~/.config/notesync/config.json.
func SaveConfig(cfg *Config) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}

// LoadAuth reads auth credentials from ~/.config/notesync/auth.json.
// Returns nil without error if no credentials are stored.
func LoadAuth() (*AuthCredentials, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "auth.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var creds AuthCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

// SaveAuth writes auth credentials to ~/.config/notesync/auth.json (0600 perms).
func SaveAuth(creds *AuthCredentials) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "auth.json"), data, 0600)
}

// ClearAuth removes the auth.json file.
func ClearAuth() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(dir, "auth.json"))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// GetServerURL returns the sync server URL.
// Priority: NOTESYNC_URL env > auth.json > config.json > default.
func GetServerURL() string {
	if v := os.Getenv("NOTESYNC_URL"); v != "" {
		return v
	}
	creds, err := LoadAuth()
	if err == nil && creds != nil && creds.ServerURL != "" {
		return creds.ServerURL
	}
	cfg, err := LoadConfig()
	if err == nil && cfg.Sync.URL != "" {
		return cfg.Sync.URL
	}
	return defaultServerURL
}

// GetAPIKey returns the API key.
// Priority: NOTESYNC_API_KEY env > auth.json.
func GetAPIKey() string {
	if v := os.Getenv("NOTESYNC_API_KEY"); v != "" {
		return v
	}
	creds, err := LoadAuth()
	if err == nil && creds != nil {
		return creds.APIKey
	}
	return ""
}

// IsAuthenticated returns true if an API key is available.
func IsAuthenticated() bool {
	return GetAPIKey() != ""
}

// GetDeviceID returns the device ID from auth.json, generating and saving
// one if needed.
func GetDeviceID() (string, error) {
	creds, err := LoadAuth()
	if err != nil {
		return "", err
	}
	if creds != nil && creds.DeviceID != "" {
		return creds.DeviceID, nil
	}
	id := uuid.NewString()
	if creds != nil {
		creds.DeviceID = id
		if err := SaveAuth(creds); err != nil {
			return "", err
		}
	}
	return id, nil
}

// parseBoolEnv returns nil if env not set, pointer to bool if set.
func parseBoolEnv(envKey string) *bool {
	v := strings.ToLower(os.Getenv(envKey))
	if v == "1" || v == "true" {
		b := true
		return &b
	}
	if v == "0" || v == "false" {
		b := false
		return &b
	}
	return nil
}

// GetAutoSyncEnabled returns whether the daemon auto-sync is enabled.
// Priority: NOTESYNC_AUTO env > config.json sync.auto.enabled > true
func GetAutoSyncEnabled() bool {
	if v := parseBoolEnv("NOTESYNC_AUTO"); v != nil {
		return *v
	}
	cfg, err := LoadConfig()
	if err == nil && cfg.Sync.Auto.Enabled != nil {
		return *cfg.Sync.Auto.Enabled
	}
	return true
}

// GetAutoSyncDebounce returns the debounce window for post-mutation sync.
// Priority: NOTESYNC_AUTO_DEBOUNCE env > config.json sync.auto.debounce > 3s
func GetAutoSyncDebounce() time.Duration {
	if v := os.Getenv("NOTESYNC_AUTO_DEBOUNCE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	cfg, err := LoadConfig()
	if err == nil && cfg.Sync.Auto.Debounce != "" {
		if d, err := time.ParseDuration(cfg.Sync.Auto.Debounce); err == nil {
			return d
		}
	}
	return 3 * time.Second
}

// GetAutoSyncInterval returns the periodic sync interval.
// Priority: NOTESYNC_AUTO_INTERVAL env > config.json sync.auto.interval > 5m
func GetAutoSyncInterval() time.Duration {
	if v := os.Getenv("NOTESYNC_AUTO_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	cfg, err := LoadConfig()
	if err == nil && cfg.Sync.Auto.Interval != "" {
		if d, err := time.ParseDuration(cfg.Sync.Auto.Interval); err == nil {
			return d
		}
	}
	return 5 * time.Minute
}
