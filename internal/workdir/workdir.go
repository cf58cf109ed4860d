// Package workdir locates the notesync data root, supporting shared roots
// via .notesync-root redirect files.
package workdir

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	dataDir  = ".notesync"
	rootFile = ".notesync-root"
)

// ResolveBaseDir walks upward from startDir looking for an initialized
// data directory or a redirect file. A .notesync-root file contains the
// path of the directory holding the real data root, so secondary checkouts
// can share one store. Relative redirect paths are resolved against the
// directory containing the file. Without any marker, startDir is returned
// unchanged, which is where 'notesync init' would create the store.
func ResolveBaseDir(startDir string) string {
	dir := startDir
	for {
		if target, ok := readRootFile(dir); ok {
			return target
		}
		if info, err := os.Stat(filepath.Join(dir, dataDir)); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}

func readRootFile(dir string) (string, bool) {
	content, err := os.ReadFile(filepath.Join(dir, rootFile))
	if err != nil {
		return "", false
	}
	target := strings.TrimSpace(string(content))
	if target == "" {
		return "", false
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(dir, target)
	}
	return target, true
}
