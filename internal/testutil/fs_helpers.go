package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// WriteFile writes content to a file in the given directory and returns its
// path. The name must stay inside dir.
func WriteFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()

	if filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		t.Fatalf("WriteFile: path must be relative: %s", name)
	}
	path := filepath.Join(dir, filepath.Clean(name))
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		t.Fatalf("WriteFile: path escapes directory: %s", name)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("create dir: %v", err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

// WriteDataDir lays out a data directory: the summary CSV under
// summaryName and one "<key>.csv" child file per group.
func WriteDataDir(t *testing.T, summaryName, summary string, groups map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	WriteFile(t, dir, summaryName, []byte(summary))
	for key, body := range groups {
		WriteFile(t, dir, key+".csv", []byte(body))
	}
	return dir
}
