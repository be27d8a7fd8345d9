package table

import (
	"strconv"
	"strings"
)

// LoadState tracks the population of a group's children.
type LoadState int

const (
	NotLoaded LoadState = iota
	Loading
	Loaded
	Failed
)

func (s LoadState) String() string {
	switch s {
	case NotLoaded:
		return "not_loaded"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Node is a group or a leaf in the table tree. A group carries an aggregate
// record and ordered children; a stub group has no children yet and is
// NotLoaded. Nodes are mutated only while the owning Table's lock is held.
type Node struct {
	id       string
	key      string
	group    bool
	record   Record
	children []*Node

	state   LoadState
	loadErr error
	pending *Pending
}

func newLeaf(id string, r Record) *Node {
	return &Node{id: id, record: r, state: Loaded}
}

// ID returns the node's identifier. Group IDs are their group key with '/'
// and '%' escaped; leaf IDs are the parent ID and partition index joined
// with "/".
func (n *Node) ID() string { return n.id }

// Key returns the group key, or "" for a leaf.
func (n *Node) Key() string { return n.key }

// IsGroup reports whether n is a group node.
func (n *Node) IsGroup() bool { return n.group }

// Record returns the leaf record or the group's aggregate record.
func (n *Node) Record() Record { return n.record }

// State returns the load state. Leaves are always Loaded.
func (n *Node) State() LoadState { return n.state }

// LoadErr returns the error of the last failed load.
func (n *Node) LoadErr() error { return n.loadErr }

// Children returns a copy of the child list in partition order.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// Len returns the number of children.
func (n *Node) Len() int { return len(n.children) }

// Expandable reports whether the node gets an expansion affordance: any
// group except a loaded one with a single member.
func (n *Node) Expandable() bool {
	if !n.group {
		return false
	}
	return !(n.state == Loaded && len(n.children) == 1)
}

func (n *Node) needsLoad() bool {
	return n.group && (n.state == NotLoaded || n.state == Failed)
}

var groupIDEscaper = strings.NewReplacer("%", "%25", "/", "%2F")

// groupID derives a group's node ID from its key. Leaf IDs append "/" and
// an index, so a '/' in the key is escaped to keep the two apart.
func groupID(key string) string { return groupIDEscaper.Replace(key) }

// setChildren replaces the children with leaves built from records.
func (n *Node) setChildren(records []Record) {
	n.children = make([]*Node, len(records))
	for i, r := range records {
		n.children[i] = newLeaf(n.id+"/"+strconv.Itoa(i), r)
	}
}

func (n *Node) leafRecords() []Record {
	out := make([]Record, len(n.children))
	for i, c := range n.children {
		out[i] = c.record
	}
	return out
}

// walk visits n and its descendants depth first.
func (n *Node) walk(fn func(*Node)) {
	fn(n)
	for _, c := range n.children {
		c.walk(fn)
	}
}
