package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/wesm/borderstat/internal/table"
)

// Monochrome theme - adaptive for light and dark terminals
var (
	bgBase   = lipgloss.AdaptiveColor{Light: "#ffffff", Dark: "#000000"}
	bgAlt    = lipgloss.AdaptiveColor{Light: "#f0f0f0", Dark: "#181818"}
	bgCursor = lipgloss.AdaptiveColor{Light: "#e0e0e0", Dark: "#282828"}

	titleBarStyle = lipgloss.NewStyle().
			Bold(true).
			Background(lipgloss.AdaptiveColor{Light: "#e0e0e0", Dark: "#333333"}).
			Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#ffffff"}).
			Padding(0, 1)

	statsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#999999"}).
			Background(bgBase).
			Padding(0, 1)

	// Spinner style - NOT faint so it's visible
	spinnerStyle = lipgloss.NewStyle().
			Bold(true).
			Background(bgBase)

	tableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Background(bgBase)

	selectedColumnStyle = lipgloss.NewStyle().
				Bold(true).
				Underline(true)

	separatorStyle = lipgloss.NewStyle().
			Faint(true).
			Background(bgBase)

	cursorRowStyle = lipgloss.NewStyle().
			Background(bgCursor)

	groupRowStyle = lipgloss.NewStyle().
			Bold(true).
			Background(bgBase)

	normalRowStyle = lipgloss.NewStyle().
			Background(bgBase)

	altRowStyle = lipgloss.NewStyle().
			Background(bgAlt)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#999999"}).
			Background(bgBase).
			Padding(0, 1)

	failedMarkerStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.AdaptiveColor{Light: "#aa0000", Dark: "#ff5555"})

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(1, 2).
			Background(bgBase)

	modalTitleStyle = lipgloss.NewStyle().
			Bold(true)

	flashStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#996600", Dark: "#ffcc00"}).
			Background(bgBase)

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#000000"}).
			Background(lipgloss.AdaptiveColor{Light: "#e8d44d", Dark: "#e8d44d"}).
			Bold(true)
)

const (
	maxColumnWidth = 40
	columnGap      = 2
	cursorWidth    = 2
)

// Tree markers for group rows.
const (
	markerExpanded  = "▾"
	markerCollapsed = "▸"
	markerSingle    = "▹"
	markerFailed    = "!"
)

// sortArrow returns the indicator shown next to the primary sort column.
func sortArrow(d table.Direction) string {
	if d == table.Desc {
		return "▼"
	}
	return "▲"
}

// marker returns the tree marker for a row, or a spinner frame while its
// children are loading.
func (m Model) marker(r table.Row) string {
	if !r.IsGroupHeader {
		return " "
	}
	switch {
	case r.State == table.Loading:
		return m.spinnerIndicator()
	case r.State == table.Failed:
		return failedMarkerStyle.Render(markerFailed)
	case r.Expanded:
		return markerExpanded
	case !r.Expandable:
		return markerSingle
	default:
		return markerCollapsed
	}
}

func treePrefixWidth(depth int) int {
	return depth*2 + 2
}

func (m Model) headerTitle(c table.Column) string {
	title := c.Title()
	if order := m.order; len(order) > 0 && order[0].Column == c.ID {
		title += " " + sortArrow(order[0].Dir)
	}
	return title
}

// columnWidths sizes each visible column to its widest cell.
func (m Model) columnWidths() []int {
	widths := make([]int, len(m.cols))
	for i, c := range m.cols {
		widths[i] = lipgloss.Width(c.Title()) + 2
	}
	for _, r := range m.rows {
		for i, c := range m.cols {
			w := lipgloss.Width(cellText(c, r.Record.Get(c.ID)))
			if i == 0 {
				w += treePrefixWidth(r.Depth)
			}
			widths[i] = max(widths[i], w)
		}
	}
	for i := range widths {
		widths[i] = min(widths[i], maxColumnWidth)
	}
	return widths
}

func alignCell(c table.Column, s string, width int) string {
	if c.Kind == table.Numeric && c.Format != table.FormatVideos {
		return padLeft(s, width)
	}
	return padRight(s, width)
}

func (m Model) buildTitleBar() string {
	left := "borderstat"
	if m.version != "" {
		left += " " + m.version
	}
	groups := 0
	for _, r := range m.rows {
		if r.Depth == 0 {
			groups++
		}
	}
	right := fmt.Sprintf("%d groups", groups)
	if n := len(m.engine.Diagnostics()); n > 0 {
		right += fmt.Sprintf(" │ %d diagnostics", n)
	}
	contentWidth := max(m.width-2, 1)
	gap := max(contentWidth-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return titleBarStyle.Render(padRight(left+strings.Repeat(" ", gap)+right, contentWidth))
}

// buildSortLine lists the full sort order, highest priority first.
func (m Model) buildSortLine() string {
	schema, order := m.schema, m.order
	parts := make([]string, len(order))
	for i, k := range order {
		label := k.Column
		if c, ok := schema.Column(k.Column); ok {
			label = c.Title()
		}
		parts[i] = label + " " + sortArrow(k.Dir)
	}
	content := "Sort: " + strings.Join(parts, " › ")
	return statsStyle.Render(padRight(content, max(m.width-2, 1)))
}

func (m Model) headerView() string {
	return m.buildTitleBar() + "\n" + m.buildSortLine()
}

func (m Model) tableView() string {
	var sb strings.Builder
	widths := m.columnWidths()
	gap := strings.Repeat(" ", columnGap)

	cells := make([]string, len(m.cols))
	for i, c := range m.cols {
		cell := alignCell(c, m.headerTitle(c), widths[i])
		if i == m.selCol {
			cell = selectedColumnStyle.Render(cell)
		}
		cells[i] = cell
	}
	header := strings.Repeat(" ", cursorWidth) + strings.Join(cells, gap)
	sb.WriteString(tableHeaderStyle.Render(padRight(header, m.width)))
	sb.WriteString("\n")
	sb.WriteString(separatorStyle.Render(strings.Repeat("─", m.width)))
	sb.WriteString("\n")

	if len(m.rows) == 0 {
		sb.WriteString(normalRowStyle.Render(padRight("No data", m.width)))
		sb.WriteString("\n")
	}

	endRow := min(m.scrollOffset+m.pageSize, len(m.rows))
	for i := m.scrollOffset; i < endRow; i++ {
		sb.WriteString(m.renderRow(i, widths, gap))
		sb.WriteString("\n")
	}

	shown := endRow - m.scrollOffset
	if len(m.rows) == 0 {
		shown = 1
	}
	for i := shown; i < m.pageSize; i++ {
		sb.WriteString(normalRowStyle.Render(strings.Repeat(" ", m.width)))
		sb.WriteString("\n")
	}

	sb.WriteString(m.renderInfoLine())

	if m.modal != modalNone {
		return m.overlayModal(sb.String())
	}
	return sb.String()
}

func (m Model) renderRow(i int, widths []int, gap string) string {
	row := m.rows[i]
	cells := make([]string, len(m.cols))
	for ci, c := range m.cols {
		width := widths[ci]
		if ci == 0 {
			width = max(width-treePrefixWidth(row.Depth), 0)
		}
		text := truncateRunes(cellText(c, row.Record.Get(c.ID)), width)
		if ci == m.nameCol && m.findQuery != "" {
			text = highlightTerm(text, m.findQuery)
		}
		cell := alignCell(c, text, width)
		if ci == 0 {
			cell = padRight(strings.Repeat("  ", row.Depth)+m.marker(row)+" "+cell, widths[ci])
		}
		cells[ci] = cell
	}
	line := strings.Join(cells, gap)

	var style lipgloss.Style
	switch {
	case i == m.cursor:
		style = cursorRowStyle
	case row.IsGroupHeader && row.Depth == 0 && row.Expanded:
		style = groupRowStyle
	case i%2 == 0:
		style = normalRowStyle
	default:
		style = altRowStyle
	}

	indicator := "  "
	if i == m.cursor {
		indicator = "▶ "
	}
	return cursorRowStyle.Render(indicator) + style.Render(padRight(line, max(m.width-cursorWidth, 0)))
}

func (m Model) footerView() string {
	keys := []string{
		"↑/↓ move",
		"Enter toggle",
		"←/→ column",
		"s sort",
		"R reload",
		"/ find",
		"? help",
		"q quit",
	}
	var posStr string
	if len(m.rows) > 0 {
		posStr = fmt.Sprintf(" %d/%d ", m.cursor+1, len(m.rows))
	}
	keysStr := strings.Join(keys, " │ ")
	gap := max(m.width-lipgloss.Width(keysStr)-lipgloss.Width(posStr)-2, 0)
	return footerStyle.Render(keysStr + strings.Repeat(" ", gap) + posStr)
}

// spinnerIndicator returns the current spinner frame string.
func (m Model) spinnerIndicator() string {
	if m.spinnerFrame < len(spinnerFrames) {
		return spinnerFrames[m.spinnerFrame]
	}
	return spinnerFrames[0]
}

// renderInfoLine renders the line above the footer: the find input while it
// is open, otherwise a flash message or the active find text, with a
// right-aligned spinner while anything is loading.
func (m Model) renderInfoLine() string {
	contentWidth := max(m.width-2, 1)

	var content string
	style := statsStyle
	switch {
	case m.findActive:
		content = "/" + m.findInput.View()
	case m.flashMessage != "":
		content = m.flashMessage
		style = flashStyle.Padding(0, 1)
	case m.findQuery != "":
		content = fmt.Sprintf("Find: %q", m.findQuery)
	case m.reloading:
		content = "Reloading..."
	}

	if m.busy() {
		indicator := m.spinnerIndicator()
		gap := max(contentWidth-lipgloss.Width(content)-lipgloss.Width(indicator), 1)
		content += strings.Repeat(" ", gap) + spinnerStyle.Render(indicator)
	}
	return style.Render(padRight(content, contentWidth))
}

// rawHelpLines contains the help modal content. The first line is the title.
var rawHelpLines = []string{
	"Keyboard Shortcuts",
	"",
	"Navigation",
	"  ↑/k, ↓/j    Move cursor up/down",
	"  PgUp/PgDn   Page up/down",
	"  Home/End    Go to first/last",
	"  Enter/Space Expand or collapse group",
	"",
	"Sorting",
	"  ←/h, →/l    Select column",
	"  s           Sort by selected column",
	"  1-9         Sort by column N",
	"              (again on the same column flips it)",
	"",
	"Other",
	"  /           Find by name",
	"  n           Next match",
	"  R           Reload data",
	"  q           Quit",
	"",
	"[↑/↓] Scroll  [Any other key] Close",
}

// helpMaxVisible returns the max visible lines for the help modal given terminal height.
func (m Model) helpMaxVisible() int {
	return max(min(m.height-6, len(rawHelpLines)), 1)
}

func (m Model) renderHelpModal() string {
	maxVisible := m.helpMaxVisible()
	scroll := min(m.helpScroll, max(len(rawHelpLines)-maxVisible, 0))

	visible := rawHelpLines[scroll : scroll+maxVisible]
	rendered := make([]string, len(visible))
	for i, line := range visible {
		if scroll+i == 0 {
			rendered[i] = modalTitleStyle.Render(line)
		} else {
			rendered[i] = line
		}
	}
	return strings.Join(rendered, "\n")
}

// overlayModal renders the active modal centered over background.
func (m Model) overlayModal(background string) string {
	var modalContent string
	switch m.modal {
	case modalHelp:
		modalContent = m.renderHelpModal()
	}
	if modalContent == "" {
		return background
	}

	modal := modalStyle.Render(modalContent)
	bgLines := strings.Split(background, "\n")
	modalLines := strings.Split(modal, "\n")

	startLine := max((len(bgLines)-len(modalLines))/2, 0)
	modalWidth := lipgloss.Width(modal)
	leftPadding := max((m.width-modalWidth)/2, 0)

	for i, modalLine := range modalLines {
		lineIdx := startLine + i
		if lineIdx >= len(bgLines) {
			break
		}
		bgLine := bgLines[lineIdx]
		bgWidth := lipgloss.Width(bgLine)

		var composite strings.Builder
		if leftPadding > 0 {
			leftBg := truncateToWidth(bgLine, leftPadding)
			composite.WriteString(leftBg)
			if w := lipgloss.Width(leftBg); w < leftPadding {
				composite.WriteString(strings.Repeat(" ", leftPadding-w))
			}
		}
		composite.WriteString(modalLine)
		if rightStart := leftPadding + modalWidth; rightStart < bgWidth {
			composite.WriteString(skipToWidth(bgLine, rightStart))
		}
		bgLines[lineIdx] = composite.String()
	}
	return strings.Join(bgLines, "\n")
}
