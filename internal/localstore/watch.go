package localstore

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// WatchFiles watches the store's database files and invokes onChange when
// another process writes them. Observe only covers writes made through the
// same Store handle; CLI commands run in their own processes, so a daemon
// layers this on top. Blocks until ctx is done.
func (s *Store) WatchFiles(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory, not the files: SQLite creates and removes the
	// WAL sidecars as it checkpoints, and directory watches survive that.
	dir := filepath.Dir(filepath.Join(s.baseDir, dbFile))
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	base := filepath.Base(dbFile)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove) == 0 {
				continue
			}
			// records.db plus its -wal and -shm sidecars
			if !strings.HasPrefix(filepath.Base(ev.Name), base) {
				continue
			}
			onChange()
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Debug("store watcher error", "err", werr)
		}
	}
}
