// Package fileutil creates the files borderstat keeps in its home directory.
// Everything is owner-only: Unix mode bits suffice there, and on Windows a
// DACL granting access to the current user alone is applied as well.
package fileutil

import (
	"log/slog"
	"os"
	"path/filepath"
)

// MkdirPrivate creates path and any missing parents with mode 0700.
func MkdirPrivate(path string) error {
	created := missingDirs(path)
	if err := os.MkdirAll(path, 0700); err != nil {
		return err
	}
	for _, dir := range created {
		warnIf(restrict(dir), dir)
	}
	return nil
}

// OpenAppend opens path for appending, creating it with mode 0600.
func OpenAppend(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, err
	}
	warnIf(restrict(path), path)
	return f, nil
}

// missingDirs lists path and the parents of it that do not exist yet,
// deepest first.
func missingDirs(path string) []string {
	var dirs []string
	p := filepath.Clean(path)
	for p != "" && p != "." && p != string(filepath.Separator) {
		if _, err := os.Stat(p); err == nil {
			break
		}
		dirs = append(dirs, p)
		parent := filepath.Dir(p)
		if parent == p {
			break
		}
		p = parent
	}
	return dirs
}

// Restricting permissions is best effort; the file already carries the
// owner-only mode.
func warnIf(err error, path string) {
	if err != nil {
		slog.Warn("fileutil: restrict permissions failed", "path", path, "error", err)
	}
}
