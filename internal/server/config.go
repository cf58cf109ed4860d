package server

import (
	"os"
	"time"
)

// LoadConfig reads server configuration from environment variables with
// sensible defaults.
func LoadConfig() Config {
	cfg := Config{
		ListenAddr:      ":8080",
		DBPath:          "./data/notesync.db",
		ShutdownTimeout: 30 * time.Second,
		LogFormat:       "json",
		LogLevel:        "info",
	}

	if v := os.Getenv("NOTESYNC_SERVER_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("NOTESYNC_SERVER_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("NOTESYNC_SERVER_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ShutdownTimeout = d
		}
	}
	if v := os.Getenv("NOTESYNC_SERVER_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("NOTESYNC_SERVER_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	return cfg
}
