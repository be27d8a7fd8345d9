package table

import "fmt"

// Aggregators maps column IDs to the aggregator computing their group value.
// Columns without an entry get an empty group value.
type Aggregators map[string]Aggregator

// AggregatorsOf collects the aggregators declared on s's column descriptors.
func AggregatorsOf(s *Schema) Aggregators {
	aggs := make(Aggregators)
	for _, c := range s.cols {
		if c.Aggregator != AggNone {
			aggs[c.ID] = c.Aggregator
		}
	}
	return aggs
}

func (a Aggregators) validate(s *Schema, keyColumn string) error {
	if _, ok := s.byID[keyColumn]; !ok {
		return &ConfigurationError{Column: keyColumn, Msg: "group key is not a column"}
	}
	for id, agg := range a {
		if _, ok := s.byID[id]; !ok {
			return &ConfigurationError{Column: id, Msg: fmt.Sprintf("%s aggregator for unknown column", agg)}
		}
		if !agg.valid() {
			return &ConfigurationError{Column: id, Msg: fmt.Sprintf("invalid aggregator %d", int(agg))}
		}
	}
	return nil
}

// Group partitions leaves by the value of keyColumn. Groups appear in the
// order their key is first seen and members keep their input order. Every
// group, including a single-member one, becomes a Loaded group node whose
// record holds the aggregate values.
func Group(s *Schema, leaves []Record, keyColumn string, aggs Aggregators) ([]*Node, error) {
	if err := aggs.validate(s, keyColumn); err != nil {
		return nil, err
	}
	var (
		groups  []*Node
		members = make(map[string][]Record)
	)
	for _, r := range leaves {
		key := r.Get(keyColumn).Text
		if _, ok := members[key]; !ok {
			groups = append(groups, &Node{id: groupID(key), key: key, group: true, state: Loaded})
		}
		members[key] = append(members[key], r)
	}
	for _, g := range groups {
		recs := members[g.key]
		g.setChildren(recs)
		g.record = aggregate(s, keyColumn, g.key, recs, aggs)
	}
	return groups, nil
}

// Stubs turns summary records, one per group key, into NotLoaded group
// nodes whose aggregate record is the summary record itself. Later records
// repeating a key are dropped and reported.
func Stubs(s *Schema, summary []Record, keyColumn string) ([]*Node, Diagnostics, error) {
	if _, ok := s.byID[keyColumn]; !ok {
		return nil, nil, &ConfigurationError{Column: keyColumn, Msg: "group key is not a column"}
	}
	var (
		nodes []*Node
		diags Diagnostics
		seen  = make(map[string]bool, len(summary))
	)
	for i, r := range summary {
		key := r.Get(keyColumn).Text
		if seen[key] {
			diags = append(diags, &ParseError{
				Line:   i + 2,
				Column: keyColumn,
				Msg:    fmt.Sprintf("duplicate group key %q", key),
			})
			continue
		}
		seen[key] = true
		nodes = append(nodes, &Node{id: groupID(key), key: key, group: true, record: r, state: NotLoaded})
	}
	return nodes, diags, nil
}

// reaggregate recomputes a stub's record from its loaded members. Columns
// without an aggregator keep the value the summary supplied.
func reaggregate(summary Record, keyColumn string, leaves []Record, aggs Aggregators) Record {
	s := summary.schema
	rec := aggregate(s, keyColumn, summary.Get(keyColumn).Text, leaves, aggs)
	for i, c := range s.cols {
		if c.ID != keyColumn && aggs[c.ID] == AggNone {
			rec.vals[i] = summary.At(i)
		}
	}
	return rec
}

// aggregate reduces the member records of one group into its aggregate
// record. Sums treat missing and non-numeric values as zero.
func aggregate(s *Schema, keyColumn, key string, leaves []Record, aggs Aggregators) Record {
	vals := make([]Value, len(s.cols))
	for i, c := range s.cols {
		if c.ID == keyColumn {
			if len(leaves) > 0 {
				vals[i] = leaves[0].Get(c.ID)
			} else {
				vals[i] = TextValue(key)
			}
			continue
		}
		switch aggs[c.ID] {
		case AggSum:
			var sum float64
			for _, r := range leaves {
				sum += r.Get(c.ID).Float()
			}
			vals[i] = NumberValue(sum)
		case AggCount:
			vals[i] = NumberValue(float64(len(leaves)))
		case AggFirst:
			if len(leaves) > 0 {
				vals[i] = leaves[0].Get(c.ID)
			} else {
				vals[i] = missing(c.Kind)
			}
		default:
			vals[i] = missing(c.Kind)
		}
	}
	return Record{schema: s, vals: vals}
}
