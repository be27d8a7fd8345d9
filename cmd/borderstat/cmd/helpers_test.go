package cmd

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/wesm/borderstat/internal/config"
	"github.com/wesm/borderstat/internal/table"
	"github.com/wesm/borderstat/internal/testutil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testConfig returns the default configuration rooted in a temp directory.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c, err := config.Load("", t.TempDir())
	testutil.MustNoErr(t, err, "config.Load")
	return c
}

// openTestTable opens the border fixtures with the default layout.
func openTestTable(t *testing.T, f *testutil.Fetcher) *table.Table {
	t.Helper()
	opts, err := testConfig(t).TableOptions()
	testutil.MustNoErr(t, err, "TableOptions")
	opts.Logger = testLogger()
	tbl, err := table.Open(context.Background(), f, opts)
	testutil.MustNoErr(t, err, "table.Open")
	return tbl
}
