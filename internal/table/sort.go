package table

import (
	"cmp"
	"fmt"
	"math"
	"strings"
)

// Direction is the direction of one sort key.
type Direction int

const (
	Asc Direction = iota
	Desc
)

func (d Direction) String() string {
	if d == Desc {
		return "desc"
	}
	return "asc"
}

// Flip returns the opposite direction.
func (d Direction) Flip() Direction {
	if d == Desc {
		return Asc
	}
	return Desc
}

// SortKey ranks rows by one column. Its priority is its index in the
// SortOrder that holds it.
type SortKey struct {
	Column string
	Dir    Direction
}

func (k SortKey) String() string { return k.Column + " " + k.Dir.String() }

// SortOrder is an ordered list of sort keys, highest priority first. A
// column appears at most once. SortOrder values are never modified in
// place; transitions return a new slice.
type SortOrder []SortKey

// NewSortOrder validates keys and returns them as an order.
func NewSortOrder(keys ...SortKey) (SortOrder, error) {
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if k.Column == "" {
			return nil, &ConfigurationError{Msg: "sort key without column"}
		}
		if seen[k.Column] {
			return nil, &ConfigurationError{Column: k.Column, Msg: "column sorted twice"}
		}
		seen[k.Column] = true
	}
	out := make(SortOrder, len(keys))
	copy(out, keys)
	return out, nil
}

// Index returns the priority of col, or -1 if it is not sorted.
func (o SortOrder) Index(col string) int {
	for i, k := range o {
		if k.Column == col {
			return i
		}
	}
	return -1
}

// Primary returns the highest priority key.
func (o SortOrder) Primary() (SortKey, bool) {
	if len(o) == 0 {
		return SortKey{}, false
	}
	return o[0], true
}

// Promote returns a new order with col at priority 0. If col already had
// priority 0 its direction is flipped. Otherwise it moves to the front
// (or is inserted there with direction def) and the remaining keys keep
// their relative order and directions.
func (o SortOrder) Promote(col string, def Direction) SortOrder {
	out := make(SortOrder, 0, len(o)+1)
	i := o.Index(col)
	switch {
	case i == 0:
		out = append(out, SortKey{Column: col, Dir: o[0].Dir.Flip()})
		out = append(out, o[1:]...)
	case i > 0:
		out = append(out, o[i])
		out = append(out, o[:i]...)
		out = append(out, o[i+1:]...)
	default:
		out = append(out, SortKey{Column: col, Dir: def})
		out = append(out, o...)
	}
	return out
}

func (o SortOrder) String() string {
	parts := make([]string, len(o))
	for i, k := range o {
		parts[i] = k.String()
	}
	return strings.Join(parts, ", ")
}

// Validate checks that every key names a column of s.
func (o SortOrder) Validate(s *Schema) error {
	if _, err := NewSortOrder(o...); err != nil {
		return err
	}
	for _, k := range o {
		if _, ok := s.byID[k.Column]; !ok {
			return fmt.Errorf("sort by %q: %w", k.Column, ErrUnknownColumn)
		}
	}
	return nil
}

// Compare orders two records lexicographically over the keys. Keys naming
// columns absent from the record's schema compare equal.
func (o SortOrder) Compare(a, b Record) int {
	for _, k := range o {
		c := compareValues(a.Get(k.Column), b.Get(k.Column))
		if c == 0 {
			continue
		}
		if k.Dir == Desc {
			return -c
		}
		return c
	}
	return 0
}

// compareValues uses numeric ordering when both values are numeric and
// lexical ordering otherwise. Missing numbers sort below every number.
func compareValues(a, b Value) int {
	if a.Kind == Numeric && b.Kind == Numeric {
		an, bn := math.IsNaN(a.Num), math.IsNaN(b.Num)
		switch {
		case an && bn:
			return 0
		case an:
			return -1
		case bn:
			return 1
		}
		return cmp.Compare(a.Num, b.Num)
	}
	return strings.Compare(a.Text, b.Text)
}
