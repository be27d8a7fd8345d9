package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/wesm/borderstat/internal/api"
	"github.com/wesm/borderstat/internal/scheduler"
	"github.com/wesm/borderstat/internal/source"
	"github.com/wesm/borderstat/internal/table"
)

var serveWatch bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the border table over HTTP",
	Long: `Run an HTTP API over the border table.

The server runs in the foreground and provides:
  - GET  /api/v1/rows             materialized rows and the sort order
  - POST /api/v1/sort/{column}    make column the primary sort key
  - POST /api/v1/toggle/{id}      expand or collapse a group (?wait=1 blocks)
  - POST /api/v1/reload           reload the summary CSV
  - Scheduled reloads when server.refresh_schedule is set

Configure in config.toml:
  [server]
  api_port = 8080
  bind_addr = "127.0.0.1"
  api_key = "secret"
  refresh_schedule = "*/30 * * * *"   # cron format

Cron format: minute hour day-of-month month day-of-week
  Examples:
    0 2 * * *     = 2:00 AM daily
    */15 * * * *  = Every 15 minutes
    @hourly       = Every hour

Use Ctrl+C to stop the server gracefully.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "reload when CSV files in the data directory change")
}

// reloadFunc adapts a table reload to a scheduled refresh job.
func reloadFunc(tbl *table.Table, l *slog.Logger) scheduler.RefreshFunc {
	return func(ctx context.Context, job string) error {
		if err := tbl.Reload(ctx); err != nil {
			return err
		}
		l.Info("table reloaded", "job", job, "generation", tbl.Generation(), "diagnostics", len(tbl.Diagnostics()))
		return nil
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	// Validate security posture before doing any work
	if err := cfg.Server.ValidateSecure(); err != nil {
		return err
	}
	if serveWatch && source.IsRemote(cfg.Data.Source) {
		return fmt.Errorf("--watch needs a local data directory, not %s", cfg.Data.Source)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	tbl, err := openTable(ctx, cfg, logger)
	if err != nil {
		return err
	}

	sched := scheduler.New(reloadFunc(tbl, logger)).WithLogger(logger)
	scheduled, err := sched.AddFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("schedule refresh: %w", err)
	}
	sched.Start()

	if serveWatch {
		w, err := source.NewWatcher(cfg.Data.Source, source.WithWatchLogger(logger))
		if err != nil {
			return fmt.Errorf("watch %s: %w", cfg.Data.Source, err)
		}
		reload := reloadFunc(tbl, logger)
		go func() {
			err := w.Run(ctx, func(name string) {
				if err := reload(ctx, "watch"); err != nil {
					logger.Error("reload after change failed", "file", name, "error", err)
				}
			})
			if err != nil {
				logger.Error("watcher stopped", "error", err)
			}
		}()
	}

	apiServer := api.NewServer(cfg, tbl, sched, logger)

	serverErr := make(chan error, 1)
	go func() {
		if err := apiServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	fmt.Printf("borderstat server started\n")
	fmt.Printf("  API server: http://%s\n", apiServer.Addr())
	fmt.Printf("  Data source: %s\n", cfg.Data.Source)
	fmt.Printf("  Rows: %d\n", len(tbl.Rows()))
	if scheduled {
		for _, status := range sched.Status() {
			fmt.Printf("  Next reload: %s\n", status.NextRun.Local().Format("2006-01-02 15:04:05"))
		}
	}
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop.")
	fmt.Println()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case runErr = <-serverErr:
		logger.Error("API server error", "error", runErr)
	}

	fmt.Println("Shutting down API server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("API server shutdown error", "error", err)
	}

	schedCtx := sched.Stop()
	select {
	case <-schedCtx.Done():
		fmt.Println("Shutdown complete.")
	case <-time.After(30 * time.Second):
		fmt.Println("Shutdown timed out after 30 seconds.")
	}
	return runErr
}
