package testutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// ErrNotFound is returned by Fetcher for unknown group keys.
var ErrNotFound = errors.New("not found")

// Fetcher serves summary and group CSV text from memory. It counts group
// fetches and can hold them at a gate until released.
type Fetcher struct {
	mu      sync.Mutex
	summary string
	groups  map[string]string
	fail    map[string]error
	calls   map[string]int
	gate    chan struct{}
	started chan string
}

// NewFetcher returns a fetcher serving summary and the given group files.
func NewFetcher(summary string, groups map[string]string) *Fetcher {
	g := make(map[string]string, len(groups))
	for k, v := range groups {
		g[k] = v
	}
	return &Fetcher{
		summary: summary,
		groups:  g,
		fail:    make(map[string]error),
		calls:   make(map[string]int),
		started: make(chan string, 64),
	}
}

// SetSummary replaces the summary text.
func (f *Fetcher) SetSummary(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summary = s
}

// Fail makes fetches of key return err; a nil err clears it.
func (f *Fetcher) Fail(key string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, key)
		return
	}
	f.fail[key] = err
}

// Hold makes group fetches block until Release is called.
func (f *Fetcher) Hold() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
}

// Release unblocks held fetches.
func (f *Fetcher) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gate != nil {
		close(f.gate)
		f.gate = nil
	}
}

// Started receives the key of every group fetch as it begins.
func (f *Fetcher) Started() <-chan string { return f.started }

// Calls returns how many times key was fetched.
func (f *Fetcher) Calls(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

// FetchSummary returns the summary text.
func (f *Fetcher) FetchSummary(ctx context.Context) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return io.NopCloser(strings.NewReader(f.summary)), nil
}

// FetchGroup returns the child text for key.
func (f *Fetcher) FetchGroup(ctx context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	f.calls[key]++
	gate := f.gate
	f.mu.Unlock()

	select {
	case f.started <- key:
	default:
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[key]; err != nil {
		return nil, err
	}
	body, ok := f.groups[key]
	if !ok {
		return nil, fmt.Errorf("group %s: %w", key, ErrNotFound)
	}
	return io.NopCloser(strings.NewReader(body)), nil
}
