package table

import "slices"

// Row is one line of the flattened table.
type Row struct {
	ID                 string
	Record             Record
	Depth              int
	IsGroupHeader      bool
	HasVisibleChildren bool
	Expandable         bool
	Expanded           bool
	Members            int // children of a group, 0 for leaves and stubs
	State              LoadState
	Err                error
}

// Materialize flattens the tree into the rows to display. Siblings are
// ordered with a stable sort by order, and a group's children follow it at
// depth+1 only while it is expanded.
func Materialize(roots []*Node, order SortOrder, exp ExpansionState) []Row {
	var rows []Row
	emit(&rows, roots, order, exp, 0)
	return rows
}

func emit(rows *[]Row, nodes []*Node, order SortOrder, exp ExpansionState, depth int) {
	sorted := slices.Clone(nodes)
	slices.SortStableFunc(sorted, func(a, b *Node) int {
		return order.Compare(a.record, b.record)
	})
	for _, n := range sorted {
		row := Row{
			ID:            n.id,
			Record:        n.record,
			Depth:         depth,
			IsGroupHeader: n.group,
			State:         n.state,
			Err:           n.loadErr,
		}
		if !n.group {
			*rows = append(*rows, row)
			continue
		}
		row.Expandable = n.Expandable()
		row.Expanded = exp != nil && exp.IsExpanded(n.id)
		row.Members = len(n.children)
		row.HasVisibleChildren = row.Expanded && len(n.children) > 0
		*rows = append(*rows, row)
		if row.HasVisibleChildren {
			emit(rows, n.children, order, exp, depth+1)
		}
	}
}
