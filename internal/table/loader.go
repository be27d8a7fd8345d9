package table

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Fetcher retrieves source CSV text. FetchSummary returns the headed
// top-level CSV; FetchGroup returns the header-less child CSV for one group
// key. Callers close the returned reader.
type Fetcher interface {
	FetchSummary(ctx context.Context) (io.ReadCloser, error)
	FetchGroup(ctx context.Context, key string) (io.ReadCloser, error)
}

// Pending is the eventual result of one group load. All callers asking for
// the same in-flight load share one Pending.
type Pending struct {
	key     string
	done    chan struct{}
	records []Record
	diags   Diagnostics
	err     error
}

func newPending(key string) *Pending {
	return &Pending{key: key, done: make(chan struct{})}
}

func settled(key string, records []Record, err error) *Pending {
	p := newPending(key)
	p.records, p.err = records, err
	close(p.done)
	return p
}

// Key returns the group key being loaded.
func (p *Pending) Key() string { return p.key }

// Done is closed once the load has settled.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the load settles or ctx ends. Giving up on the wait does
// not cancel the load.
func (p *Pending) Wait(ctx context.Context) ([]Record, error) {
	select {
	case <-p.done:
		return p.records, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Diagnostics returns the parse problems found in the fetched child CSV.
// Valid only after Done is closed.
func (p *Pending) Diagnostics() Diagnostics { return p.diags }

// loader populates stub groups. It shares the tree lock of its Table: start
// is called with the lock held, and the fetch runs without it.
type loader struct {
	mu        sync.Locker
	fetcher   Fetcher
	schema    *Schema
	keyColumn string
	aggs      Aggregators
	logger    *slog.Logger
	onFail    func(*Node)
}

// start moves n to Loading and fetches its children in the background. A
// node already Loading returns its in-flight Pending, and a Loaded node
// returns a settled one, so at most one fetch per node is ever running.
// The caller must hold l.mu.
func (l *loader) start(ctx context.Context, n *Node) *Pending {
	switch n.state {
	case Loading:
		return n.pending
	case Loaded:
		return settled(n.key, n.leafRecords(), nil)
	}
	p := newPending(n.key)
	n.state = Loading
	n.loadErr = nil
	n.pending = p
	go l.run(context.WithoutCancel(ctx), n, p)
	return p
}

func (l *loader) run(ctx context.Context, n *Node, p *Pending) {
	startTime := time.Now()
	l.logger.Debug("loading group", "key", n.key)

	records, diags, err := l.fetch(ctx, n.key)

	l.mu.Lock()
	if err != nil {
		n.state = Failed
		n.loadErr = &LoadError{Key: n.key, Err: err}
		p.err = n.loadErr
		if l.onFail != nil {
			l.onFail(n)
		}
	} else {
		n.setChildren(records)
		if len(records) > 0 {
			n.record = reaggregate(n.record, l.keyColumn, records, l.aggs)
		}
		n.state = Loaded
		p.records = records
	}
	p.diags = diags
	n.pending = nil
	l.mu.Unlock()
	close(p.done)

	if err != nil {
		l.logger.Warn("group load failed", "key", n.key, "error", err)
		return
	}
	for _, d := range diags {
		l.logger.Warn("child csv diagnostic", "key", n.key, "error", d)
	}
	l.logger.Debug("group loaded", "key", n.key, "rows", len(records), "duration", time.Since(startTime))
}

func (l *loader) fetch(ctx context.Context, key string) (records []Record, diags Diagnostics, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetch panic: %v", r)
		}
	}()
	rc, err := l.fetcher.FetchGroup(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	defer rc.Close()
	return ReadRecords(rc, l.schema)
}
