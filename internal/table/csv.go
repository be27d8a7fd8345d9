package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Delimiter separates fields in source CSV text.
const Delimiter = ';'

func newCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = Delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true
	return cr
}

// ReadCSV parses CSV text whose first line is a header. The overrides are
// applied to the header schema before any row is parsed, so every record is
// bound to the final schema. Malformed rows are recovered and reported in
// the returned Diagnostics; only I/O failures and a missing header are
// errors.
func ReadCSV(r io.Reader, overrides []Column) (*Schema, []Record, Diagnostics, error) {
	cr := newCSVReader(r)
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, nil, errors.New("read csv: missing header line")
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read csv header: %w", err)
	}
	names := make([]string, len(header))
	copy(names, header)
	if len(names) > 0 {
		names[0] = strings.TrimPrefix(names[0], "\ufeff")
	}

	schema, err := HeaderSchema(names)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(overrides) > 0 {
		if schema, err = schema.Apply(overrides); err != nil {
			return nil, nil, nil, err
		}
	}
	records, diags, err := readRows(cr, schema)
	if err != nil {
		return nil, nil, nil, err
	}
	return schema, records, diags, nil
}

// ReadRecords parses header-less CSV text against an existing schema. Child
// record sets are read this way with the parent's schema.
func ReadRecords(r io.Reader, schema *Schema) ([]Record, Diagnostics, error) {
	return readRows(newCSVReader(r), schema)
}

func readRows(cr *csv.Reader, schema *Schema) ([]Record, Diagnostics, error) {
	var (
		records []Record
		diags   Diagnostics
	)
	width := schema.Width()
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			diags = append(diags, &ParseError{Line: perr.Line, Msg: perr.Err.Error()})
			if fields == nil {
				continue
			}
		} else if err != nil {
			return nil, nil, fmt.Errorf("read csv: %w", err)
		}

		line, _ := cr.FieldPos(0)
		if len(fields) == 1 && strings.TrimSpace(fields[0]) == "" {
			continue
		}
		if len(fields) != width {
			diags = append(diags, &ParseError{
				Line: line,
				Msg:  fmt.Sprintf("expected %d fields, got %d", width, len(fields)),
			})
		}

		vals := make([]Value, schema.Len())
		for i, c := range schema.cols {
			vals[i] = missing(c.Kind)
		}
		for pos := 0; pos < width && pos < len(fields); pos++ {
			ci := schema.byField[pos]
			if ci < 0 {
				continue
			}
			col := schema.cols[ci]
			v, ok := parseField(col.Kind, fields[pos])
			if !ok {
				diags = append(diags, &ParseError{
					Line:   line,
					Column: col.ID,
					Msg:    fmt.Sprintf("not a number: %q", fields[pos]),
				})
			}
			vals[ci] = v
		}
		records = append(records, Record{schema: schema, vals: vals})
	}
	return records, diags, nil
}

// parseField converts raw text to a value of the given kind. An empty
// numeric field is missing but not an error; unparseable text keeps the raw
// text with a NaN number.
func parseField(kind Kind, raw string) (Value, bool) {
	if kind == Text {
		return TextValue(raw), true
	}
	s := strings.TrimSpace(raw)
	if s == "" {
		return missing(Numeric), true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Value{Kind: Numeric, Text: raw, Num: math.NaN()}, false
	}
	return Value{Kind: Numeric, Text: s, Num: f}, true
}
