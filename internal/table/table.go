package table

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Mode selects how the top-level CSV becomes a tree.
type Mode int

const (
	// Lazy treats each top-level record as the summary of one group whose
	// members are fetched on first expansion.
	Lazy Mode = iota
	// Eager treats the top-level CSV as leaf records and groups them in
	// memory.
	Eager
)

// ParseMode maps a configuration name to a Mode.
func ParseMode(name string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "lazy":
		return Lazy, nil
	case "eager":
		return Eager, nil
	default:
		return Lazy, &ConfigurationError{Msg: fmt.Sprintf("unknown mode %q", name)}
	}
}

// Options configures a Table.
type Options struct {
	KeyColumn string
	Columns   []Column // descriptors merged into the header schema
	Order     SortOrder
	Mode      Mode
	Logger    *slog.Logger
}

// Table owns one tree, its expansion state and its sort order. It accepts
// the two external events, Promote and Toggle, and produces materialized
// rows. All mutations, including the completion of background loads, are
// serialized by one lock, so Rows never observes a half-applied change.
type Table struct {
	fetcher Fetcher
	opts    Options
	logger  *slog.Logger

	mu         sync.Mutex
	schema     *Schema
	aggs       Aggregators
	roots      []*Node
	groups     map[string]*Node
	order      SortOrder
	tracker    *Tracker
	diags      Diagnostics
	generation uint64
}

// Open fetches the top-level CSV through f and builds the table.
func Open(ctx context.Context, f Fetcher, opts Options) (*Table, error) {
	if opts.KeyColumn == "" {
		return nil, &ConfigurationError{Msg: "no group key column"}
	}
	t := &Table{fetcher: f, opts: opts, logger: opts.Logger}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	if err := t.Reload(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

// Reload discards the whole tree and rebuilds it from a fresh fetch of the
// top-level CSV. Expansion state is reset; the sort order is kept, minus
// keys on columns that no longer exist. Loads still running for discarded
// nodes finish against the discarded tree.
func (t *Table) Reload(ctx context.Context) error {
	rc, err := t.fetcher.FetchSummary(ctx)
	if err != nil {
		return fmt.Errorf("fetch summary: %w", err)
	}
	defer rc.Close()

	schema, records, diags, err := ReadCSV(rc, t.opts.Columns)
	if err != nil {
		return err
	}
	aggs := AggregatorsOf(schema)

	var roots []*Node
	switch t.opts.Mode {
	case Eager:
		roots, err = Group(schema, records, t.opts.KeyColumn, aggs)
	default:
		var more Diagnostics
		roots, more, err = Stubs(schema, records, t.opts.KeyColumn)
		diags = append(diags, more...)
	}
	if err != nil {
		return err
	}
	if err := aggs.validate(schema, t.opts.KeyColumn); err != nil {
		return err
	}

	groups := make(map[string]*Node, len(roots))
	for _, n := range roots {
		groups[n.id] = n
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	order := t.order
	if t.schema == nil {
		if err := t.opts.Order.Validate(schema); err != nil {
			return err
		}
		order = t.opts.Order
	} else {
		order = keepColumns(order, schema)
	}

	tracker := NewTracker()
	tracker.loader = &loader{
		mu:        &t.mu,
		fetcher:   t.fetcher,
		schema:    schema,
		keyColumn: t.opts.KeyColumn,
		aggs:      aggs,
		logger:    t.logger,
		onFail:    func(n *Node) { tracker.Collapse(n.id) },
	}

	t.schema = schema
	t.aggs = aggs
	t.roots = roots
	t.groups = groups
	t.order = order
	t.tracker = tracker
	t.diags = diags
	t.generation++

	t.logger.Info("table loaded", "groups", len(roots), "records", len(records), "diagnostics", len(diags))
	for _, d := range diags {
		t.logger.Warn("csv diagnostic", "error", d)
	}
	return nil
}

func keepColumns(o SortOrder, s *Schema) SortOrder {
	out := make(SortOrder, 0, len(o))
	for _, k := range o {
		if _, ok := s.byID[k.Column]; ok {
			out = append(out, k)
		}
	}
	return out
}

// Schema returns the current schema.
func (t *Table) Schema() *Schema {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.schema
}

// KeyColumn returns the group key column ID.
func (t *Table) KeyColumn() string { return t.opts.KeyColumn }

// Generation increases every time the tree is rebuilt.
func (t *Table) Generation() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.generation
}

// Diagnostics returns the parse problems of the last top-level load.
func (t *Table) Diagnostics() Diagnostics {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append(Diagnostics(nil), t.diags...)
}

// Order returns a copy of the current sort order.
func (t *Table) Order() SortOrder {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append(SortOrder(nil), t.order...)
}

// Promote moves col to the front of the sort order, flipping its direction
// if it is already there, and returns the new order.
func (t *Table) Promote(col string) (SortOrder, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.schema.Column(col)
	if !ok {
		return nil, fmt.Errorf("promote %q: %w", col, ErrUnknownColumn)
	}
	t.order = t.order.Promote(col, c.DefaultDirection())
	t.logger.Debug("sort promoted", "column", col, "order", t.order.String())
	return append(SortOrder(nil), t.order...), nil
}

// SetOrder replaces the sort order.
func (t *Table) SetOrder(o SortOrder) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := o.Validate(t.schema); err != nil {
		return err
	}
	t.order = append(SortOrder(nil), o...)
	return nil
}

// lookup finds a node by ID. The caller must hold t.mu.
func (t *Table) lookup(id string) (*Node, error) {
	if n, ok := t.groups[id]; ok {
		return n, nil
	}
	var found *Node
	for _, r := range t.roots {
		r.walk(func(n *Node) {
			if found == nil && n.id == id {
				found = n
			}
		})
	}
	if found == nil {
		return nil, fmt.Errorf("%q: %w", id, ErrUnknownNode)
	}
	return found, nil
}

// Toggle expands or collapses a group. When expanding starts or joins a
// load, the Pending for that load is returned; otherwise it is nil.
func (t *Table) Toggle(ctx context.Context, id string) (*Pending, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, err := t.lookup(id)
	if err != nil {
		return nil, err
	}
	if !n.group {
		return nil, fmt.Errorf("toggle %q: %w", id, ErrNotGroup)
	}
	return t.tracker.Toggle(ctx, n), nil
}

// Load populates a group without changing its expansion. Overlapping calls
// share one fetch.
func (t *Table) Load(ctx context.Context, id string) (*Pending, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, err := t.lookup(id)
	if err != nil {
		return nil, err
	}
	if !n.group {
		return nil, fmt.Errorf("load %q: %w", id, ErrNotGroup)
	}
	return t.tracker.loader.start(ctx, n), nil
}

// IsExpanded reports whether id is expanded.
func (t *Table) IsExpanded(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tracker.IsExpanded(id)
}

// State returns the load state of a node.
func (t *Table) State(id string) (LoadState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, err := t.lookup(id)
	if err != nil {
		return NotLoaded, err
	}
	return n.state, nil
}

// Rows materializes the current tree.
func (t *Table) Rows() []Row {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Materialize(t.roots, t.order, t.tracker)
}

// Snapshot is one consistent view of a Table: the rows were materialized
// from the schema, order and generation they are reported with.
type Snapshot struct {
	Schema     *Schema
	Generation uint64
	Order      SortOrder
	Rows       []Row
}

// Snapshot materializes the current tree together with the state it was
// built from, under a single hold of the lock.
func (t *Table) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		Schema:     t.schema,
		Generation: t.generation,
		Order:      append(SortOrder(nil), t.order...),
		Rows:       Materialize(t.roots, t.order, t.tracker),
	}
}

// LoadAll loads every group that is not yet Loaded, running at most jobs
// fetches at once. Failed groups are reported together after all loads
// settle.
func (t *Table) LoadAll(ctx context.Context, jobs int) error {
	t.mu.Lock()
	var todo []*Node
	for _, n := range t.roots {
		if n.group && n.state != Loaded {
			todo = append(todo, n)
		}
	}
	l := t.tracker.loader
	t.mu.Unlock()

	if jobs < 1 {
		jobs = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)

	var (
		errMu sync.Mutex
		errs  []error
	)
	for _, n := range todo {
		g.Go(func() error {
			t.mu.Lock()
			p := l.start(gctx, n)
			t.mu.Unlock()
			if _, err := p.Wait(gctx); err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				errMu.Lock()
				errs = append(errs, err)
				errMu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return errors.Join(errs...)
}

// ExpandAll expands every loaded group. Stubs stay collapsed so nothing is
// shown expanded before its children exist.
func (t *Table) ExpandAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range t.roots {
		r.walk(func(n *Node) {
			if n.group && n.state == Loaded {
				t.tracker.Expand(n.id)
			}
		})
	}
}

// CollapseAll collapses every group.
func (t *Table) CollapseAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range t.tracker.Expanded() {
		t.tracker.Collapse(id)
	}
}
