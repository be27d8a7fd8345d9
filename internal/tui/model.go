// Package tui provides a terminal user interface for the border table.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/wesm/borderstat/internal/table"
)

// Engine is the table the TUI drives. *table.Table implements it.
type Engine interface {
	Snapshot() table.Snapshot
	KeyColumn() string
	Promote(col string) (table.SortOrder, error)
	Toggle(ctx context.Context, id string) (*table.Pending, error)
	Reload(ctx context.Context) error
	Diagnostics() table.Diagnostics
}

// Options configuration for TUI.
type Options struct {
	Version string
	// Context bounds reloads. Background when nil.
	Context context.Context
}

// modalType represents the type of modal dialog.
type modalType int

const (
	modalNone modalType = iota
	modalHelp
)

// ReloadMsg asks the model to reload the table, e.g. after the data files
// changed on disk.
type ReloadMsg struct{}

// loadDoneMsg is sent when a load started by a toggle settles.
type loadDoneMsg struct {
	id         string
	generation uint64
	err        error
}

// reloadDoneMsg is sent when a reload finishes.
type reloadDoneMsg struct {
	err error
}

type flashClearMsg struct{}

type spinnerTickMsg struct{}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const spinnerInterval = 80 * time.Millisecond

const flashDuration = 4 * time.Second

// Model is the main TUI model following the Elm architecture.
type Model struct {
	engine  Engine
	ctx     context.Context
	version string

	// Materialized table and the schema and order it was built with
	rows       []table.Row
	schema     *table.Schema
	order      table.SortOrder
	cols       []table.Column // visible columns, schema order
	nameCol    int            // index into cols matched by find, -1 if none
	generation uint64

	cursor       int
	scrollOffset int
	selCol       int
	pageSize     int

	width  int
	height int

	// Loads started from the UI, by node ID
	loadingIDs map[string]bool
	reloading  bool

	spinnerFrame  int
	spinnerActive bool

	flashMessage   string
	flashExpiresAt time.Time

	modal      modalType
	helpScroll int

	findActive bool
	findInput  textinput.Model
	findQuery  string

	quitting bool
}

// New creates a model over engine.
func New(engine Engine, opts Options) Model {
	ti := textinput.New()
	ti.Placeholder = "find"
	ti.CharLimit = 100
	ti.Width = 40

	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	m := Model{
		engine:     engine,
		ctx:        ctx,
		version:    opts.Version,
		pageSize:   20,
		loadingIDs: make(map[string]bool),
		findInput:  ti,
	}
	m.refreshRows()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// refreshRows re-materializes the table and keeps the cursor on the same
// row when it still exists.
func (m *Model) refreshRows() {
	var keep string
	if m.cursor < len(m.rows) {
		keep = m.rows[m.cursor].ID
	}

	snap := m.engine.Snapshot()
	m.schema, m.order = snap.Schema, snap.Order
	if snap.Generation != m.generation {
		m.generation = snap.Generation
		m.cols = nil
		m.nameCol = -1
		for _, c := range snap.Schema.Columns() {
			if c.Hidden {
				continue
			}
			if m.nameCol < 0 && c.Kind == table.Text && c.Format != table.FormatVideos {
				m.nameCol = len(m.cols)
			}
			m.cols = append(m.cols, c)
		}
		if m.selCol >= len(m.cols) {
			m.selCol = 0
		}
	}

	m.rows = snap.Rows
	if keep != "" {
		for i, r := range m.rows {
			if r.ID == keep {
				m.cursor = i
				m.ensureCursorVisible()
				return
			}
		}
	}
	if m.cursor >= len(m.rows) {
		m.cursor = max(len(m.rows)-1, 0)
	}
	m.ensureCursorVisible()
}

// waitLoad returns a command that blocks until p settles.
func waitLoad(p *table.Pending, id string, generation uint64) tea.Cmd {
	return func() tea.Msg {
		_, err := p.Wait(context.Background())
		return loadDoneMsg{id: id, generation: generation, err: err}
	}
}

func (m Model) reloadCmd() tea.Cmd {
	engine, ctx := m.engine, m.ctx
	return func() (msg tea.Msg) {
		defer func() {
			if r := recover(); r != nil {
				msg = reloadDoneMsg{err: fmt.Errorf("reload panic: %v", r)}
			}
		}()
		return reloadDoneMsg{err: engine.Reload(ctx)}
	}
}

func spinnerTick() tea.Cmd {
	return tea.Tick(spinnerInterval, func(t time.Time) tea.Msg {
		return spinnerTickMsg{}
	})
}

// startSpinner returns a spinnerTick command if the spinner isn't already
// active, and marks it as active.
func (m *Model) startSpinner() tea.Cmd {
	if m.spinnerActive {
		return nil
	}
	m.spinnerActive = true
	m.spinnerFrame = 0
	return spinnerTick()
}

func (m Model) busy() bool {
	return m.reloading || len(m.loadingIDs) > 0
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = max(msg.Width, 0)
		m.height = max(msg.Height, 0)
		// title, sort line, header, separator, info line and footer
		m.pageSize = max(m.height-6, 1)
		m.ensureCursorVisible()
		return m, nil

	case loadDoneMsg:
		delete(m.loadingIDs, msg.id)
		if msg.generation != m.generation {
			return m, nil
		}
		m.refreshRows()
		if msg.err != nil {
			return m.showFlash(fmt.Sprintf("Failed to load %s: %v", msg.id, msg.err))
		}
		return m, nil

	case ReloadMsg:
		return m.startReload()

	case reloadDoneMsg:
		m.reloading = false
		if msg.err != nil {
			return m.showFlash(fmt.Sprintf("Reload failed: %v", msg.err))
		}
		clear(m.loadingIDs)
		m.refreshRows()
		if n := len(m.engine.Diagnostics()); n > 0 {
			return m.showFlash(fmt.Sprintf("Reloaded %d rows, %d diagnostics", len(m.rows), n))
		}
		return m.showFlash(fmt.Sprintf("Reloaded %d rows", len(m.rows)))

	case spinnerTickMsg:
		if !m.busy() {
			m.spinnerActive = false
			return m, nil
		}
		m.spinnerFrame = (m.spinnerFrame + 1) % len(spinnerFrames)
		return m, spinnerTick()

	case flashClearMsg:
		if !m.flashExpiresAt.IsZero() && !time.Now().Before(m.flashExpiresAt) {
			m.flashMessage = ""
			m.flashExpiresAt = time.Time{}
		}
		return m, nil
	}

	if m.findActive {
		var cmd tea.Cmd
		m.findInput, cmd = m.findInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

// toggleCurrent expands or collapses the group under the cursor.
func (m Model) toggleCurrent() (tea.Model, tea.Cmd) {
	if m.cursor >= len(m.rows) {
		return m, nil
	}
	row := m.rows[m.cursor]
	// Single-member groups cannot be opened, but one expanded while its
	// load was running can still be closed.
	if !row.IsGroupHeader || (!row.Expandable && !row.Expanded) {
		return m, nil
	}

	p, err := m.engine.Toggle(m.ctx, row.ID)
	if err != nil {
		return m.showFlash(err.Error())
	}
	m.refreshRows()
	if p == nil {
		return m, nil
	}
	m.loadingIDs[row.ID] = true
	return m, tea.Batch(m.startSpinner(), waitLoad(p, row.ID, m.generation))
}

// promote makes column i of the visible columns the primary sort key.
func (m Model) promote(i int) (tea.Model, tea.Cmd) {
	if i < 0 || i >= len(m.cols) {
		return m, nil
	}
	m.selCol = i
	if _, err := m.engine.Promote(m.cols[i].ID); err != nil {
		return m.showFlash(err.Error())
	}
	m.refreshRows()
	return m, nil
}

func (m Model) startReload() (tea.Model, tea.Cmd) {
	if m.reloading {
		return m, nil
	}
	m.reloading = true
	return m, tea.Batch(m.startSpinner(), m.reloadCmd())
}

// showFlash displays a temporary flash message.
func (m Model) showFlash(message string) (tea.Model, tea.Cmd) {
	m.flashMessage = message
	m.flashExpiresAt = time.Now().Add(flashDuration)
	return m, tea.Tick(flashDuration, func(t time.Time) tea.Msg {
		return flashClearMsg{}
	})
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "Loading..."
	}
	return fmt.Sprintf("%s\n%s\n%s",
		m.headerView(),
		m.tableView(),
		m.footerView(),
	)
}
