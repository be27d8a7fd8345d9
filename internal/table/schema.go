// Package table implements the table state engine: parsed records, grouping
// with per-column aggregates, a re-prioritizable multi-key sort order,
// expansion tracking with lazily loaded group children, and materialization
// of the visible tree into a flat row sequence.
package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the value kind of a column.
type Kind int

const (
	Text Kind = iota
	Numeric
)

func (k Kind) String() string {
	switch k {
	case Text:
		return "text"
	case Numeric:
		return "numeric"
	default:
		return "unknown"
	}
}

// Aggregator reduces the member values of a group for one column.
type Aggregator int

const (
	AggNone Aggregator = iota
	AggSum
	AggCount
	AggFirst
)

func (a Aggregator) String() string {
	switch a {
	case AggNone:
		return "none"
	case AggSum:
		return "sum"
	case AggCount:
		return "count"
	case AggFirst:
		return "first"
	default:
		return fmt.Sprintf("Aggregator(%d)", int(a))
	}
}

func (a Aggregator) valid() bool {
	return a >= AggNone && a <= AggFirst
}

// ParseAggregator maps a configuration name to an Aggregator. The empty
// string means AggNone.
func ParseAggregator(name string) (Aggregator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return AggNone, nil
	case "sum":
		return AggSum, nil
	case "count":
		return AggCount, nil
	case "first":
		return AggFirst, nil
	default:
		return AggNone, &ConfigurationError{Msg: fmt.Sprintf("unknown aggregator %q", name)}
	}
}

// Format selects how a column's values are displayed.
type Format int

const (
	FormatAuto Format = iota
	FormatDecimal
	FormatVideos
	FormatText
)

// ParseFormat maps a configuration name to a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		return FormatAuto, nil
	case "number":
		return FormatDecimal, nil
	case "videos":
		return FormatVideos, nil
	case "text":
		return FormatText, nil
	default:
		return FormatAuto, &ConfigurationError{Msg: fmt.Sprintf("unknown format %q", name)}
	}
}

// Column describes one table column.
type Column struct {
	ID         string
	Label      string
	Kind       Kind
	Aggregator Aggregator
	DescFirst  bool // new sort keys on this column start descending
	Unit       string
	Hidden     bool
	Format     Format

	field int // position in the CSV row, -1 for computed columns
}

// Field returns the CSV position backing the column, or -1 if the column has
// no source field (for example a count-only column).
func (c Column) Field() int { return c.field }

// Title returns the label, falling back to the column ID.
func (c Column) Title() string {
	if c.Label != "" {
		return c.Label
	}
	return c.ID
}

// DefaultDirection is the direction a new sort key on this column gets.
func (c Column) DefaultDirection() Direction {
	if c.DescFirst {
		return Desc
	}
	return Asc
}

// Schema is the ordered column set shared by every record parsed from one
// source. It is immutable once built.
type Schema struct {
	cols    []Column
	byID    map[string]int
	byField []int // CSV position -> column index
}

// firstNumericField is the first CSV position parsed as a number.
const firstNumericField = 3

// HeaderSchema builds a schema from a CSV header line. Fields at positions
// below 3 are text, the rest numeric.
func HeaderSchema(names []string) (*Schema, error) {
	cols := make([]Column, len(names))
	for i, name := range names {
		kind := Text
		if i >= firstNumericField {
			kind = Numeric
		}
		cols[i] = Column{ID: strings.TrimSpace(name), Kind: kind, field: i}
	}
	return newSchema(cols, len(names))
}

func newSchema(cols []Column, width int) (*Schema, error) {
	s := &Schema{
		cols:    cols,
		byID:    make(map[string]int, len(cols)),
		byField: make([]int, width),
	}
	for i := range s.byField {
		s.byField[i] = -1
	}
	for i, c := range cols {
		if c.ID == "" {
			return nil, &ConfigurationError{Msg: fmt.Sprintf("column %d has no name", i)}
		}
		if _, dup := s.byID[c.ID]; dup {
			return nil, &ConfigurationError{Column: c.ID, Msg: "duplicate column"}
		}
		if !c.Aggregator.valid() {
			return nil, &ConfigurationError{Column: c.ID, Msg: fmt.Sprintf("invalid aggregator %d", int(c.Aggregator))}
		}
		s.byID[c.ID] = i
		if c.field >= 0 {
			s.byField[c.field] = i
		}
	}
	return s, nil
}

// Apply returns a new schema with the given descriptors merged in. A
// descriptor naming a header column overrides its presentation and
// aggregation settings but keeps its kind and position. A descriptor for an
// unknown ID adds a computed numeric column with no source field. Columns
// appear in descriptor order, followed by header columns not mentioned.
func (s *Schema) Apply(overrides []Column) (*Schema, error) {
	cols := make([]Column, 0, len(s.cols)+len(overrides))
	seen := make(map[string]bool, len(overrides))
	for _, o := range overrides {
		if seen[o.ID] {
			return nil, &ConfigurationError{Column: o.ID, Msg: "duplicate column"}
		}
		seen[o.ID] = true
		if i, ok := s.byID[o.ID]; ok {
			base := s.cols[i]
			o.Kind = base.Kind
			o.field = base.field
		} else {
			o.Kind = Numeric
			o.field = -1
		}
		cols = append(cols, o)
	}
	for _, c := range s.cols {
		if !seen[c.ID] {
			cols = append(cols, c)
		}
	}
	return newSchema(cols, len(s.byField))
}

// Columns returns a copy of the column descriptors in display order.
func (s *Schema) Columns() []Column {
	out := make([]Column, len(s.cols))
	copy(out, s.cols)
	return out
}

// Len returns the number of columns.
func (s *Schema) Len() int { return len(s.cols) }

// Width returns the number of fields in a source CSV row.
func (s *Schema) Width() int { return len(s.byField) }

// Index returns the position of column id.
func (s *Schema) Index(id string) (int, bool) {
	i, ok := s.byID[id]
	return i, ok
}

// Column returns the descriptor for id.
func (s *Schema) Column(id string) (Column, bool) {
	i, ok := s.byID[id]
	if !ok {
		return Column{}, false
	}
	return s.cols[i], true
}

// Value is one field of a record. Numeric values that are missing or
// unparseable hold NaN in Num and keep the raw text.
type Value struct {
	Kind Kind
	Text string
	Num  float64
}

// TextValue returns a text value.
func TextValue(s string) Value { return Value{Kind: Text, Text: s} }

// NumberValue returns a numeric value.
func NumberValue(f float64) Value {
	if math.IsNaN(f) {
		return missing(Numeric)
	}
	return Value{Kind: Numeric, Num: f, Text: strconv.FormatFloat(f, 'g', -1, 64)}
}

func missing(k Kind) Value {
	if k == Numeric {
		return Value{Kind: Numeric, Num: math.NaN()}
	}
	return Value{Kind: Text}
}

// Missing reports whether a numeric value has no usable number, or a text
// value is empty.
func (v Value) Missing() bool {
	if v.Kind == Numeric {
		return math.IsNaN(v.Num)
	}
	return v.Text == ""
}

// Float returns the numeric reading of v. Text values are parsed, and
// anything unusable reads as zero.
func (v Value) Float() float64 {
	if v.Kind == Numeric {
		if math.IsNaN(v.Num) {
			return 0
		}
		return v.Num
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v.Text), 64)
	if err != nil || math.IsNaN(f) {
		return 0
	}
	return f
}

func (v Value) String() string { return v.Text }
