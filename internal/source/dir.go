package source

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/wesm/borderstat/internal/table"
)

// DirFetcher reads CSV files from a directory.
type DirFetcher struct {
	dir  string
	fsys fs.FS
	cfg  Config
}

var _ table.Fetcher = (*DirFetcher)(nil)

// NewDir creates a fetcher for a local directory.
func NewDir(cfg Config) (*DirFetcher, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	dir := cfg.Location
	if dir == "" {
		dir = "."
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("data directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("data directory %s is not a directory", dir)
	}
	return &DirFetcher{dir: dir, fsys: os.DirFS(dir), cfg: cfg}, nil
}

// Dir returns the directory being read.
func (f *DirFetcher) Dir() string { return f.dir }

// FetchSummary opens the summary CSV.
func (f *DirFetcher) FetchSummary(ctx context.Context) (io.ReadCloser, error) {
	return f.open(ctx, f.cfg.Summary)
}

// FetchGroup opens the child CSV for key.
func (f *DirFetcher) FetchGroup(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	return f.open(ctx, childName(f.cfg.ChildPattern, key))
}

func (f *DirFetcher) open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !fs.ValidPath(name) {
		return nil, fmt.Errorf("invalid file name %q", name)
	}
	file, err := f.fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return utf8Body(file)
}
