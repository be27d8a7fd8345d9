package tui

import "github.com/wesm/borderstat/internal/table"

// calculateScrollOffset computes the new scroll offset to keep cursor visible within pageSize.
func calculateScrollOffset(cursor, currentOffset, pageSize int) int {
	if cursor < currentOffset {
		return cursor
	}
	if cursor >= currentOffset+pageSize {
		return cursor - pageSize + 1
	}
	return currentOffset
}

func (m *Model) ensureCursorVisible() {
	m.scrollOffset = calculateScrollOffset(m.cursor, m.scrollOffset, m.pageSize)
}

// navigateList moves the cursor for a navigation key and reports whether
// the key was one.
func (m *Model) navigateList(key string, itemCount int) bool {
	switch key {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < itemCount-1 {
			m.cursor++
		}
	case "pgup", "ctrl+u":
		m.cursor = max(m.cursor-m.pageSize, 0)
	case "pgdown", "ctrl+d":
		m.cursor = max(min(m.cursor+m.pageSize, itemCount-1), 0)
	case "home", "g":
		m.cursor = 0
		m.scrollOffset = 0
		return true
	case "end", "G":
		m.cursor = max(itemCount-1, 0)
	default:
		return false
	}
	m.ensureCursorVisible()
	return true
}

// rowName is the text find matches against: the first visible text column,
// or the group key when there is none.
func (m Model) rowName(r table.Row) string {
	if m.nameCol >= 0 && m.nameCol < len(m.cols) {
		return r.Record.Get(m.cols[m.nameCol].ID).Text
	}
	return r.Record.Get(m.engine.KeyColumn()).Text
}

// findNext moves the cursor to the next row after it whose name contains
// the find text, wrapping around. It reports whether a row matched.
func (m *Model) findNext() bool {
	if m.findQuery == "" || len(m.rows) == 0 {
		return false
	}
	n := len(m.rows)
	for step := 1; step <= n; step++ {
		i := (m.cursor + step) % n
		if containsFold(m.rowName(m.rows[i]), m.findQuery) {
			m.cursor = i
			m.ensureCursorVisible()
			return true
		}
	}
	return false
}
