package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/wesm/borderstat/internal/fileutil"
	"github.com/wesm/borderstat/internal/source"
	"github.com/wesm/borderstat/internal/tui"
)

var tuiWatch bool

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive terminal UI",
	Long: `Open an interactive table of country border statistics.

Countries are listed with their summed border length. Expanding a country
fetches its border parts and shows them underneath.

Navigation:
  ↑/k, ↓/j      Move up/down
  PgUp/PgDn     Page up/down
  Enter/Space   Expand or collapse a country
  ←/h, →/l      Select column
  s             Sort by the selected column (again to flip)
  1-9           Sort by column N
  /             Find a country by name, n for the next match
  R             Reload the data
  q             Quit

With --watch and a local data directory, the table reloads whenever a CSV
file in it changes. Logs go to borderstat.log in the home directory when
--verbose is set.`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
	tuiCmd.Flags().BoolVar(&tuiWatch, "watch", false, "reload when CSV files in the data directory change")
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// tuiLogger returns a logger that never writes to the terminal the TUI
// draws on: a file in the home directory with --verbose, nothing otherwise.
func tuiLogger() (*slog.Logger, func(), error) {
	if !verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}
	f, err := fileutil.OpenAppend(cfg.LogPath())
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	l := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return l, func() { _ = f.Close() }, nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	if !isTerminal(os.Stdout) {
		return errors.New("tui needs a terminal; use 'borderstat export' for piped output")
	}
	if tuiWatch && source.IsRemote(cfg.Data.Source) {
		return fmt.Errorf("--watch needs a local data directory, not %s", cfg.Data.Source)
	}

	l, closeLog, err := tuiLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	fmt.Fprintf(os.Stderr, "Loading %s...\n", cfg.Data.Source)
	tbl, err := openTable(ctx, cfg, l)
	if err != nil {
		return err
	}

	model := tui.New(tbl, tui.Options{Version: Version, Context: ctx})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if tuiWatch {
		w, err := source.NewWatcher(cfg.Data.Source, source.WithWatchLogger(l))
		if err != nil {
			return fmt.Errorf("watch %s: %w", cfg.Data.Source, err)
		}
		go func() {
			err := w.Run(ctx, func(string) { p.Send(tui.ReloadMsg{}) })
			if err != nil {
				l.Error("watcher stopped", "error", err)
			}
		}()
	}

	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}
