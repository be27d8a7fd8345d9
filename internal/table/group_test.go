package table

import (
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/wesm/borderstat/internal/testutil"
)

var partsAggregators = Aggregators{"perimeter": AggSum, "parts": AggCount, "name": AggFirst}

func readParts(t *testing.T) (*Schema, []Record) {
	t.Helper()
	schema, recs, _, err := ReadCSV(strings.NewReader(testutil.PartsCSV), nil)
	testutil.MustNoErr(t, err, "ReadCSV")
	return schema, recs
}

type rowView struct {
	ID        string
	Depth     int
	Group     bool
	Name      string
	Perimeter float64
	Parts     string
}

func viewRows(rows []Row) []rowView {
	out := make([]rowView, len(rows))
	for i, r := range rows {
		out[i] = rowView{
			ID:        r.ID,
			Depth:     r.Depth,
			Group:     r.IsGroupHeader,
			Name:      r.Record.Get("name").Text,
			Perimeter: r.Record.Get("perimeter").Num,
			Parts:     r.Record.Get("parts").Text,
		}
	}
	return out
}

func TestGroup_FranceGermany(t *testing.T) {
	schema, recs := readParts(t)
	groups, err := Group(schema, recs, "iso", partsAggregators)
	testutil.MustNoErr(t, err, "Group")

	order := SortOrder{{"perimeter", Desc}}
	tracker := NewTracker()

	testutil.AssertDiff(t, []rowView{
		{ID: "FR", Group: true, Name: "France", Perimeter: 150, Parts: "2"},
		{ID: "DE", Group: true, Name: "Germany", Perimeter: 30, Parts: "1"},
	}, viewRows(Materialize(groups, order, tracker)))

	tracker.Expand("FR")
	testutil.AssertDiff(t, []rowView{
		{ID: "FR", Group: true, Name: "France", Perimeter: 150, Parts: "2"},
		{ID: "FR/0", Depth: 1, Name: "France", Perimeter: 100, Parts: "2"},
		{ID: "FR/1", Depth: 1, Name: "France", Perimeter: 50, Parts: "2"},
		{ID: "DE", Group: true, Name: "Germany", Perimeter: 30, Parts: "1"},
	}, viewRows(Materialize(groups, order, tracker)))
}

func TestGroup_PreservesFirstOccurrenceOrder(t *testing.T) {
	schema, err := HeaderSchema([]string{"k", "name", "t", "v"})
	testutil.MustNoErr(t, err, "HeaderSchema")
	var recs []Record
	for _, k := range []string{"B", "A", "B", "C", "A"} {
		recs = append(recs, NewRecord(schema, []Value{TextValue(k)}))
	}
	groups, err := Group(schema, recs, "k", nil)
	testutil.MustNoErr(t, err, "Group")

	var keys []string
	for _, g := range groups {
		keys = append(keys, g.Key())
	}
	testutil.AssertStrings(t, keys, "B", "A", "C")
	if groups[0].Len() != 2 || groups[2].Len() != 1 {
		t.Errorf("member counts = %d, %d", groups[0].Len(), groups[2].Len())
	}
}

func TestGroup_UnknownAggregatorColumn(t *testing.T) {
	schema, recs := readParts(t)
	_, err := Group(schema, recs, "iso", Aggregators{"length": AggSum})
	ce := testutil.AssertErrorAs[*ConfigurationError](t, err)
	if ce.Column != "length" {
		t.Errorf("Column = %q, want length", ce.Column)
	}
}

func TestGroup_UnknownKeyColumn(t *testing.T) {
	schema, recs := readParts(t)
	_, err := Group(schema, recs, "country", partsAggregators)
	testutil.AssertErrorAs[*ConfigurationError](t, err)
}

func TestGroup_InvalidAggregatorKind(t *testing.T) {
	schema, recs := readParts(t)
	_, err := Group(schema, recs, "iso", Aggregators{"perimeter": Aggregator(42)})
	testutil.AssertErrorAs[*ConfigurationError](t, err)
}

func TestGroup_SumCoercesMissingToZero(t *testing.T) {
	input := testutil.NewCSV("iso;name;x;perimeter").
		Row("FR", "France", "", "10").
		Row("FR", "France", "", "oops").
		Row("FR", "France", "", "").
		Row("FR", "France", "", "2.5").
		String()
	schema, recs, _, err := ReadCSV(strings.NewReader(input), nil)
	testutil.MustNoErr(t, err, "ReadCSV")

	groups, err := Group(schema, recs, "iso", Aggregators{"perimeter": AggSum, "x": AggCount})
	testutil.MustNoErr(t, err, "Group")
	agg := groups[0].Record()
	if got := agg.Get("perimeter").Num; got != 12.5 {
		t.Errorf("sum = %v, want 12.5", got)
	}
	if got := agg.Get("x").Num; got != 4 {
		t.Errorf("count = %v, want 4", got)
	}
	if !agg.Get("name").Missing() {
		t.Errorf("column without aggregator should be empty, got %q", agg.Get("name").Text)
	}
}

func TestGroup_SingleMemberIsNotExpandable(t *testing.T) {
	schema, recs := readParts(t)
	groups, err := Group(schema, recs, "iso", partsAggregators)
	testutil.MustNoErr(t, err, "Group")

	rows := Materialize(groups, nil, NewTracker())
	if !rows[0].Expandable {
		t.Error("FR has two members and should be expandable")
	}
	if rows[1].Expandable {
		t.Error("DE has one member and should not be expandable")
	}
	if rows[1].Members != 1 || !rows[1].IsGroupHeader {
		t.Errorf("DE row = %+v, want a group header with one member", rows[1])
	}
}

func TestGroup_CountAndSumIndependentOfOrder(t *testing.T) {
	schema, err := HeaderSchema([]string{"k", "name", "t", "v"})
	if err != nil {
		t.Fatal(err)
	}
	aggs := Aggregators{"v": AggSum, "t": AggCount}

	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 40).Draw(t, "n")
		recs := make([]Record, n)
		wantCount := map[string]int{}
		wantSum := map[string]float64{}
		for i := range recs {
			k := rapid.SampledFrom([]string{"A", "B", "C", "D"}).Draw(t, "key")
			v := float64(rapid.IntRange(-1000, 1000).Draw(t, "value"))
			recs[i] = NewRecord(schema, []Value{TextValue(k), TextValue(k), TextValue(""), NumberValue(v)})
			wantCount[k]++
			wantSum[k] += v
		}
		perm := rapid.Permutation(recs).Draw(t, "perm")

		for _, input := range [][]Record{recs, perm} {
			groups, err := Group(schema, input, "k", aggs)
			if err != nil {
				t.Fatal(err)
			}
			if len(groups) != len(wantCount) {
				t.Fatalf("got %d groups, want %d", len(groups), len(wantCount))
			}
			for _, g := range groups {
				agg := g.Record()
				if got := int(agg.Get("t").Num); got != wantCount[g.Key()] || got != g.Len() {
					t.Fatalf("group %s count = %d, want %d", g.Key(), got, wantCount[g.Key()])
				}
				if got := agg.Get("v").Num; got != wantSum[g.Key()] {
					t.Fatalf("group %s sum = %v, want %v", g.Key(), got, wantSum[g.Key()])
				}
			}
		}
	})
}

func TestStubs_DropsDuplicateKeys(t *testing.T) {
	input := testutil.NewCSV(testutil.SummaryHeader).
		Row("FR", "France", "", "0", "1", "1").
		Row("FR", "France again", "", "0", "2", "2").
		String()
	schema, recs, _, err := ReadCSV(strings.NewReader(input), nil)
	testutil.MustNoErr(t, err, "ReadCSV")

	nodes, diags, err := Stubs(schema, recs, "iso")
	testutil.MustNoErr(t, err, "Stubs")
	if len(nodes) != 1 || len(diags) != 1 {
		t.Fatalf("got %d nodes, %d diags; want 1, 1", len(nodes), len(diags))
	}
	if nodes[0].State() != NotLoaded || nodes[0].Len() != 0 {
		t.Errorf("stub = state %v with %d children", nodes[0].State(), nodes[0].Len())
	}
	if got := nodes[0].Record().Get("name").Text; got != "France" {
		t.Errorf("stub record name = %q, want France", got)
	}
}
