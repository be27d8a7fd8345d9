package table

import (
	"context"
	"sort"
)

// ExpansionState answers whether a node's children are visible.
type ExpansionState interface {
	IsExpanded(id string) bool
}

// Tracker holds the set of expanded node IDs and couples expansion of
// unpopulated groups to the loader. It is not safe for concurrent use; the
// owning Table serializes access.
type Tracker struct {
	expanded map[string]bool
	loader   *loader
}

// NewTracker returns a tracker with every node collapsed. Without a loader,
// expanding a stub only flips its flag.
func NewTracker() *Tracker {
	return &Tracker{expanded: make(map[string]bool)}
}

// IsExpanded reports whether id is expanded.
func (t *Tracker) IsExpanded(id string) bool { return t.expanded[id] }

// Toggle flips n between expanded and collapsed. Expanding a group that is
// NotLoaded or Failed starts a load; expanding one that is still Loading
// returns the in-flight load. Collapsing keeps loaded children and never
// cancels a load. The returned Pending is nil when no load is involved.
func (t *Tracker) Toggle(ctx context.Context, n *Node) *Pending {
	if t.expanded[n.id] {
		delete(t.expanded, n.id)
		return nil
	}
	t.expanded[n.id] = true
	if t.loader == nil {
		return nil
	}
	if n.needsLoad() {
		return t.loader.start(ctx, n)
	}
	if n.state == Loading {
		return n.pending
	}
	return nil
}

// Expand marks id expanded without loading anything.
func (t *Tracker) Expand(id string) { t.expanded[id] = true }

// Collapse marks id collapsed.
func (t *Tracker) Collapse(id string) { delete(t.expanded, id) }

// Expanded returns the expanded IDs in sorted order.
func (t *Tracker) Expanded() []string {
	ids := make([]string, 0, len(t.expanded))
	for id := range t.expanded {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
