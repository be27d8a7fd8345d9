package tui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"

	"github.com/wesm/borderstat/internal/table"
)

func TestHighlightTerm(t *testing.T) {
	forceColorProfile(t)

	tests := []struct {
		name     string
		text     string
		term     string
		wantANSI bool
	}{
		{"match", "Luxembourg", "lux", true},
		{"case insensitive", "FRANCE", "fra", true},
		{"repeated", "Bosnia and Herzegovina", "a", true},
		{"non-ASCII", "Côte d'Ivoire", "ôte", true},
		{"no match", "Germany", "xyz", false},
		{"empty term", "Germany", "", false},
		{"empty text", "", "a", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := highlightTerm(tt.text, tt.term)
			if stripped := stripANSI(got); stripped != tt.text {
				t.Errorf("text changed: got %q, want %q", stripped, tt.text)
			}
			if hasANSI := strings.Contains(got, ansiStart); hasANSI != tt.wantANSI {
				t.Errorf("ANSI = %v, want %v (%q)", hasANSI, tt.wantANSI, got)
			}
		})
	}
}

func TestContainsFold(t *testing.T) {
	if !containsFold("Luxembourg", "BOURG") {
		t.Error("containsFold should ignore case")
	}
	if containsFold("France", "germ") {
		t.Error("containsFold matched unrelated text")
	}
}

func TestCellText(t *testing.T) {
	videos := table.Column{ID: "videos", Format: table.FormatVideos}
	perimeter := table.Column{ID: "perimeter", Kind: table.Numeric, Unit: "km"}

	tests := []struct {
		name string
		col  table.Column
		v    table.Value
		want string
	}{
		{"two videos", videos, table.TextValue("abc123 def456"), "▶ 2"},
		{"no videos", videos, table.TextValue(""), ""},
		{"number with unit", perimeter, table.NumberValue(3100.5), "3100.50 km"},
		{"tiny number", perimeter, table.NumberValue(0.005), "0.005 km"},
		{"text", table.Column{ID: "name"}, table.TextValue("France"), "France"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cellText(tt.col, tt.v); got != tt.want {
				t.Errorf("cellText = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPad(t *testing.T) {
	if got := padRight("ab", 5); got != "ab   " {
		t.Errorf("padRight = %q", got)
	}
	if got := padLeft("ab", 5); got != "   ab" {
		t.Errorf("padLeft = %q", got)
	}
	if got := padRight("abcdef", 3); got != "abc" {
		t.Errorf("padRight overflow = %q", got)
	}
	// Wide runes count as two cells.
	if got := padRight("日本", 6); lipgloss.Width(got) != 6 {
		t.Errorf("padRight wide width = %d", lipgloss.Width(got))
	}
}

func TestPad_StyledText(t *testing.T) {
	forceColorProfile(t)
	styled := highlightStyle.Render("ab")
	got := padLeft(styled, 4)
	if lipgloss.Width(got) != 4 || stripANSI(got) != "  ab" {
		t.Errorf("padLeft styled = %q", got)
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"France", 10, "France"},
		{"Luxembourg", 7, "Luxe..."},
		{"Luxembourg", 3, "Lux"},
		{"a\tb\nc", 10, "a b c"},
	}
	for _, tt := range tests {
		if got := truncateRunes(tt.in, tt.max); got != tt.want {
			t.Errorf("truncateRunes(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestOverlayHelpers(t *testing.T) {
	if got := truncateToWidth("abcdef", 3); got != "abc" {
		t.Errorf("truncateToWidth = %q", got)
	}
	if got := skipToWidth("abcdef", 2); got != "cdef" {
		t.Errorf("skipToWidth = %q", got)
	}
}
