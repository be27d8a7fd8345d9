package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"

	"github.com/wesm/borderstat/internal/table"
)

// highlightTerm wraps every case-insensitive occurrence of term in text with
// highlightStyle. It works on runes so case folding that changes byte length
// cannot shift the match offsets.
func highlightTerm(text, term string) string {
	if term == "" || text == "" {
		return text
	}
	textRunes := []rune(text)
	lowerRunes := []rune(strings.ToLower(text))
	termRunes := []rune(strings.ToLower(term))
	n := len(termRunes)
	if len(lowerRunes) != len(textRunes) {
		return text
	}

	var sb strings.Builder
	prev := 0
	for i := 0; i+n <= len(lowerRunes); i++ {
		if string(lowerRunes[i:i+n]) != string(termRunes) {
			continue
		}
		sb.WriteString(string(textRunes[prev:i]))
		sb.WriteString(highlightStyle.Render(string(textRunes[i : i+n])))
		i += n - 1
		prev = i + 1
	}
	if prev == 0 {
		return text
	}
	sb.WriteString(string(textRunes[prev:]))
	return sb.String()
}

// containsFold reports whether s contains substr, ignoring case.
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// cellText renders one value for a table cell. Video lists show as a count.
func cellText(c table.Column, v table.Value) string {
	if c.Format == table.FormatVideos {
		n := len(table.VideoLinks(v.Text))
		if n == 0 {
			return ""
		}
		return fmt.Sprintf("▶ %d", n)
	}
	return table.FormatValue(c, v)
}

// padRight pads a string with spaces to fill width terminal cells.
// Uses lipgloss.Width to correctly handle ANSI codes and full-width characters.
func padRight(s string, width int) string {
	sw := lipgloss.Width(s)
	if sw >= width {
		return ansi.Truncate(s, width, "")
	}
	return s + strings.Repeat(" ", width-sw)
}

// padLeft right-aligns s within width terminal cells.
func padLeft(s string, width int) string {
	sw := lipgloss.Width(s)
	if sw >= width {
		return ansi.Truncate(s, width, "")
	}
	return strings.Repeat(" ", width-sw) + s
}

// truncateRunes truncates a string to fit within maxWidth terminal cells.
// Control characters that would break the layout are replaced first.
func truncateRunes(s string, maxWidth int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\t", " ")

	width := runewidth.StringWidth(s)
	if width <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, "...")
}

// truncateToWidth returns the prefix of s that fits within maxWidth visual columns.
func truncateToWidth(s string, maxWidth int) string {
	return ansi.Truncate(s, maxWidth, "")
}

// skipToWidth returns the suffix of s starting after skipWidth visual columns.
func skipToWidth(s string, skipWidth int) string {
	return ansi.Cut(s, skipWidth, 10000)
}
