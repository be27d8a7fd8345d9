package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/wesm/borderstat/internal/config"
	"github.com/wesm/borderstat/internal/source"
	"github.com/wesm/borderstat/internal/table"
)

var (
	cfgFile string
	homeDir string
	verbose bool
	cfg     *config.Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "borderstat",
	Short: "Browse country border statistics",
	Long: `borderstat shows a sortable, expandable table of country border
statistics. Each country row summarizes the border parts stored in its own
CSV file, which is fetched the first time the row is expanded.

Data comes from a directory or an HTTP(S) base URL holding a summary CSV and
one child CSV per country. Use the tui command to browse interactively, serve
to expose the table over HTTP, or export to print it.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for commands that don't need it
		if cmd.Name() == "version" {
			return nil
		}

		// Set up logging
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}))

		// --home is passed through so it influences where config.toml is
		// loaded from, like BORDERSTAT_HOME.
		var err error
		cfg, err = config.Load(cfgFile, homeDir)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		// Ensure home directory exists on first use
		if err := cfg.EnsureHomeDir(); err != nil {
			return fmt.Errorf("create home directory %s: %w", cfg.HomeDir, err)
		}

		return nil
	},
}

// Execute runs the root command with a background context.
// Prefer ExecuteContext for signal-aware execution.
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with the given context,
// enabling graceful shutdown when the context is cancelled.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// openFetcher builds the fetcher for the configured data source.
func openFetcher(c *config.Config) (table.Fetcher, error) {
	srcCfg, err := c.SourceConfig()
	if err != nil {
		return nil, err
	}
	f, err := source.New(srcCfg)
	if err != nil {
		return nil, fmt.Errorf("open source %s: %w", c.Data.Source, err)
	}
	return f, nil
}

// openTable fetches the summary CSV and builds the table.
func openTable(ctx context.Context, c *config.Config, l *slog.Logger) (*table.Table, error) {
	f, err := openFetcher(c)
	if err != nil {
		return nil, err
	}
	opts, err := c.TableOptions()
	if err != nil {
		return nil, err
	}
	opts.Logger = l

	tbl, err := table.Open(ctx, f, opts)
	if err != nil {
		return nil, fmt.Errorf("open table: %w", err)
	}
	if diags := tbl.Diagnostics(); len(diags) > 0 {
		l.Warn("summary has unparseable fields", "count", len(diags), "first", diags[0].Error())
	}
	return tbl, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.borderstat/config.toml)")
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "home directory (overrides BORDERSTAT_HOME)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
