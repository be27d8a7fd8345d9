package tui

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/wesm/borderstat/internal/table"
	"github.com/wesm/borderstat/internal/testutil"
)

// ansiStart is the escape sequence prefix found in styled terminal output.
const ansiStart = "\x1b["

// colorProfileMu serializes tests that mutate the global lipgloss color profile.
var colorProfileMu sync.Mutex

// forceColorProfile sets lipgloss to ANSI color output for tests that assert
// on styled output. It acquires colorProfileMu to prevent data races with
// parallel tests and restores the original profile via t.Cleanup.
func forceColorProfile(t *testing.T) {
	t.Helper()
	colorProfileMu.Lock()
	orig := lipgloss.ColorProfile()
	lipgloss.SetColorProfile(termenv.ANSI)
	t.Cleanup(func() {
		lipgloss.SetColorProfile(orig)
		colorProfileMu.Unlock()
	})
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)

func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

func borderColumns() []table.Column {
	return []table.Column{
		{ID: "iso", Hidden: true},
		{ID: "name", Label: "Country", Aggregator: table.AggFirst},
		{ID: "perimeter", Label: "Border length", Aggregator: table.AggSum, Unit: "km", DescFirst: true},
		{ID: "videos", Aggregator: table.AggFirst, Format: table.FormatVideos},
	}
}

// newTestTable opens the border fixtures ordered by border length, longest
// first: DE, FR, LU.
func newTestTable(t *testing.T) (*table.Table, *testutil.Fetcher) {
	t.Helper()
	f := testutil.NewFetcher(testutil.BorderSummary, testutil.BorderGroups)
	tbl, err := table.Open(context.Background(), f, table.Options{
		KeyColumn: "iso",
		Columns:   borderColumns(),
		Order:     table.SortOrder{{Column: "perimeter", Dir: table.Desc}},
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	testutil.MustNoErr(t, err, "table.Open")
	return tbl, f
}

// newTestModel returns a sized model over the border fixtures.
func newTestModel(t *testing.T) (Model, *table.Table, *testutil.Fetcher) {
	t.Helper()
	tbl, f := newTestTable(t)
	m := New(tbl, Options{Version: "v1.0.0"})
	m = resizeModel(t, m, 120, 20)
	return m, tbl, f
}

func resizeModel(t *testing.T, m Model, w, h int) Model {
	t.Helper()
	m, _ = sendMsg(t, m, tea.WindowSizeMsg{Width: w, Height: h})
	return m
}

func sendKey(t *testing.T, m Model, k tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	newM, cmd := m.Update(k)
	return newM.(Model), cmd
}

// sendMsg sends any tea.Msg through Update and returns the concrete Model.
func sendMsg(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	newM, cmd := m.Update(msg)
	return newM.(Model), cmd
}

// typeText sends each rune of s as a key press.
func typeText(t *testing.T, m Model, s string) Model {
	t.Helper()
	for _, r := range s {
		m, _ = sendKey(t, m, key(r))
	}
	return m
}

// runCmd executes cmd with a deadline so a stuck command fails the test.
func runCmd(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	ch := make(chan tea.Msg, 1)
	go func() { ch <- cmd() }()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("command did not finish")
		return nil
	}
}

// settle runs the commands returned by a toggle or reload and feeds the
// load or reload result back into m. Follow-up commands such as flash
// timers are dropped.
func settle(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	msgs := []tea.Msg{runCmd(t, cmd)}
	if batch, ok := msgs[0].(tea.BatchMsg); ok {
		msgs = msgs[:0]
		for _, c := range batch {
			if c != nil {
				msgs = append(msgs, runCmd(t, c))
			}
		}
	}
	for _, msg := range msgs {
		switch msg.(type) {
		case loadDoneMsg, reloadDoneMsg:
			m, _ = sendMsg(t, m, msg)
			return m
		}
	}
	t.Fatal("command produced no load or reload result")
	return m
}

// rowIDs lists the IDs of the model's materialized rows.
func rowIDs(m Model) []string {
	ids := make([]string, len(m.rows))
	for i, r := range m.rows {
		ids[i] = r.ID
	}
	return ids
}

func key(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

// keyEnter returns a KeyMsg for the Enter key
func keyEnter() tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyEnter}
}

// keyEsc returns a KeyMsg for the Escape key
func keyEsc() tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyEscape}
}

// keyDown returns a KeyMsg for the Down arrow key
func keyDown() tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyDown}
}

// keyLeft returns a KeyMsg for the Left arrow key
func keyLeft() tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyLeft}
}

// keyRight returns a KeyMsg for the Right arrow key
func keyRight() tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRight}
}

// keyHome returns a KeyMsg for the Home key
func keyHome() tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyHome}
}

func keyEnd() tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyEnd}
}
