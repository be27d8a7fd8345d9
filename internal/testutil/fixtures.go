package testutil

import "strings"

// PartsCSV is a small headed leaf CSV: two parts of France and one of
// Germany.
const PartsCSV = "iso;name;parts;perimeter\n" +
	"FR;France;2;100\n" +
	"FR;France;2;50\n" +
	"DE;Germany;1;30\n"

// SummaryHeader is the column layout of border summary files.
const SummaryHeader = "iso;name;videos;holes;perimeter;area"

// BorderSummary is a summary CSV with one record per country.
var BorderSummary = NewCSV(SummaryHeader).
	Row("FR", "France", "abc123 def456", "0", "3100.5", "551695").
	Row("DE", "Germany", "", "1", "3700.25", "357022").
	Row("LU", "Luxembourg", "xyz", "0", "0.005", "2586").
	String()

// BorderGroups holds the header-less child CSV for each summary key.
var BorderGroups = map[string]string{
	"FR": NewCSV("").
		Row("FR", "France", "abc123", "0", "3000", "550000").
		Row("FR", "France", "def456", "0", "100.5", "1695").
		String(),
	"DE": NewCSV("").
		Row("DE", "Germany", "", "1", "3700.25", "357022").
		String(),
	"LU": NewCSV("").
		Row("LU", "Luxembourg", "xyz", "0", "0.005", "2586").
		String(),
}

// CSVBuilder assembles semicolon-delimited CSV text.
type CSVBuilder struct {
	lines []string
}

// NewCSV starts a CSV with the given header line. An empty header produces
// header-less text.
func NewCSV(header string) *CSVBuilder {
	b := &CSVBuilder{}
	if header != "" {
		b.lines = append(b.lines, header)
	}
	return b
}

// Row appends one record.
func (b *CSVBuilder) Row(fields ...string) *CSVBuilder {
	b.lines = append(b.lines, strings.Join(fields, ";"))
	return b
}

// Line appends raw text as a line.
func (b *CSVBuilder) Line(s string) *CSVBuilder {
	b.lines = append(b.lines, s)
	return b
}

func (b *CSVBuilder) String() string {
	if len(b.lines) == 0 {
		return ""
	}
	return strings.Join(b.lines, "\n") + "\n"
}
