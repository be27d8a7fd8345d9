package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wesm/borderstat/internal/table"
)

var validateChildren bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the data files for parse problems",
	Long: `Parse the summary CSV and report every malformed row or field.

With --children the child CSV of every group is fetched and parsed with the
summary's header as well. Exits with status 1 when anything is reported.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := openFetcher(cfg)
		if err != nil {
			return err
		}
		overrides, err := cfg.TableColumns()
		if err != nil {
			return err
		}
		reports, err := validateSource(cmd.Context(), f, overrides, cfg.Data.GroupKey, validateChildren, cfg.Fetch.Jobs)
		if err != nil {
			return err
		}
		if n := printReports(cmd.OutOrStdout(), reports); n > 0 {
			return fmt.Errorf("found %d problems", n)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().BoolVar(&validateChildren, "children", false, "also fetch and check every child CSV")
}

// fileReport is the outcome of parsing one CSV file.
type fileReport struct {
	Name  string
	Rows  int
	Diags table.Diagnostics
	Err   error // fetch or read failure
}

func (r fileReport) problems() int {
	n := len(r.Diags)
	if r.Err != nil {
		n++
	}
	return n
}

// validateSource parses the summary and, when children is set, every child
// CSV named by a distinct key in the summary. A summary that cannot be read
// at all is an error; child failures are reported.
func validateSource(ctx context.Context, f table.Fetcher, overrides []table.Column, keyColumn string, children bool, jobs int) ([]fileReport, error) {
	rc, err := f.FetchSummary(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch summary: %w", err)
	}
	schema, records, diags, err := table.ReadCSV(rc, overrides)
	_ = rc.Close()
	if err != nil {
		return nil, fmt.Errorf("read summary: %w", err)
	}
	reports := []fileReport{{Name: "summary", Rows: len(records), Diags: diags}}
	if !children {
		return reports, nil
	}
	if _, ok := schema.Index(keyColumn); !ok {
		return nil, &table.ConfigurationError{Column: keyColumn, Msg: "group key column not in summary header"}
	}

	var keys []string
	seen := make(map[string]bool)
	for _, r := range records {
		k := r.Get(keyColumn).Text
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}

	childReports := make([]fileReport, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(jobs, 1))
	for i, k := range keys {
		g.Go(func() error {
			childReports[i] = validateChild(gctx, f, schema, k)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return append(reports, childReports...), nil
}

func validateChild(ctx context.Context, f table.Fetcher, schema *table.Schema, key string) fileReport {
	report := fileReport{Name: "group " + key}
	rc, err := f.FetchGroup(ctx, key)
	if err != nil {
		report.Err = err
		return report
	}
	defer rc.Close()
	records, diags, err := table.ReadRecords(rc, schema)
	report.Rows, report.Diags, report.Err = len(records), diags, err
	return report
}

// printReports writes one line per problem and a summary line, and returns
// the number of problems.
func printReports(w io.Writer, reports []fileReport) int {
	var rows, problems int
	for _, r := range reports {
		rows += r.Rows
		problems += r.problems()
		if r.Err != nil {
			fmt.Fprintf(w, "%s: %v\n", r.Name, r.Err)
		}
		for _, d := range r.Diags {
			fmt.Fprintf(w, "%s: %v\n", r.Name, d)
		}
	}
	fmt.Fprintf(w, "Checked %d files, %d rows: %d problems\n", len(reports), rows, problems)
	return problems
}
