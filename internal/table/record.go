package table

// Record is one immutable row bound to a schema. Leaf records come from
// parsed CSV text; group nodes carry a record of aggregate values.
type Record struct {
	schema *Schema
	vals   []Value
}

// NewRecord builds a record from values in schema column order. Missing
// trailing values are filled in as empty.
func NewRecord(s *Schema, vals []Value) Record {
	out := make([]Value, s.Len())
	for i := range out {
		if i < len(vals) {
			out[i] = vals[i]
		} else {
			out[i] = missing(s.cols[i].Kind)
		}
	}
	return Record{schema: s, vals: out}
}

// Schema returns the schema the record is bound to.
func (r Record) Schema() *Schema { return r.schema }

// At returns the value of the column at position i.
func (r Record) At(i int) Value {
	if i < 0 || i >= len(r.vals) {
		return Value{}
	}
	return r.vals[i]
}

// Get returns the value of column id, or the zero Value if the column is
// unknown.
func (r Record) Get(id string) Value {
	if r.schema == nil {
		return Value{}
	}
	i, ok := r.schema.byID[id]
	if !ok {
		return Value{}
	}
	return r.vals[i]
}

// Values returns a copy of the values in schema column order.
func (r Record) Values() []Value {
	out := make([]Value, len(r.vals))
	copy(out, r.vals)
	return out
}

// Map returns the record's text values keyed by column ID.
func (r Record) Map() map[string]string {
	if r.schema == nil {
		return nil
	}
	m := make(map[string]string, len(r.vals))
	for i, c := range r.schema.cols {
		m[c.ID] = r.vals[i].Text
	}
	return m
}
