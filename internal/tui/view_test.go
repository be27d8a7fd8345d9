package tui

import (
	"strings"
	"testing"

	"github.com/wesm/borderstat/internal/testutil"
)

func TestView_BeforeWindowSize(t *testing.T) {
	tbl, _ := newTestTable(t)
	m := New(tbl, Options{})
	if got := m.View(); got != "Loading..." {
		t.Errorf("View() = %q, want Loading...", got)
	}
}

func TestView_RendersTable(t *testing.T) {
	m, _, _ := newTestModel(t)
	view := stripANSI(m.View())

	testutil.AssertContainsAll(t, view, []string{
		"borderstat v1.0.0",
		"3 groups",
		"Sort: Border length ▼",
		"Country",
		"Border length ▼",
		"▸ Germany",
		"▸ France",
		"3100.50 km",
		"▶ 2", // FR has two video links
		"1/3",
	})
	if strings.Contains(view, "iso") {
		t.Error("hidden column header should not render")
	}
}

func TestView_FitsHeight(t *testing.T) {
	m, _, _ := newTestModel(t)
	for _, h := range []int{8, 20, 40} {
		m = resizeModel(t, m, 100, h)
		lines := strings.Split(m.View(), "\n")
		if len(lines) != h {
			t.Errorf("height %d: view has %d lines", h, len(lines))
		}
	}
}

func TestView_ExpandedGroup(t *testing.T) {
	m, _, _ := newTestModel(t)
	m, _ = sendKey(t, m, keyDown())
	m, cmd := sendKey(t, m, keyEnter())
	m = settle(t, m, cmd)

	view := stripANSI(m.View())
	testutil.AssertContainsAll(t, view, []string{
		"▾ France",
		"3000.00 km",
		"100.50 km",
		"2/5",
	})
}

func TestView_SingleMemberGroup(t *testing.T) {
	m, _, _ := newTestModel(t)
	m, cmd := sendKey(t, m, keyEnter()) // DE has one member
	m = settle(t, m, cmd)
	m, _ = sendKey(t, m, keyEnter()) // collapse

	if view := stripANSI(m.View()); !strings.Contains(view, markerSingle+" Germany") {
		t.Errorf("loaded single-member group should use %s:\n%s", markerSingle, view)
	}
}

func TestView_FailedGroupMarker(t *testing.T) {
	m, _, f := newTestModel(t)
	f.Fail("DE", testutil.ErrNotFound)
	m, cmd := sendKey(t, m, keyEnter())
	m = settle(t, m, cmd)

	if view := stripANSI(m.View()); !strings.Contains(view, markerFailed+" Germany") {
		t.Errorf("failed group should be marked:\n%s", view)
	}
}

func TestView_SortArrowFollowsPrimary(t *testing.T) {
	m, _, _ := newTestModel(t)
	m, _ = sendKey(t, m, key('1'))

	view := stripANSI(m.View())
	testutil.AssertContainsAll(t, view, []string{
		"Country ▲",
		"Sort: Country ▲ › Border length ▼",
	})
	if strings.Count(view, "Border length ▼") != 1 {
		t.Error("only the primary key should carry a header arrow")
	}
}

func TestView_FindInput(t *testing.T) {
	m, _, _ := newTestModel(t)
	m, _ = sendKey(t, m, key('/'))
	m = typeText(t, m, "ger")

	if view := stripANSI(m.View()); !strings.Contains(view, "/> ger") {
		t.Errorf("find input should render on the info line:\n%s", view)
	}
}

func TestView_FindHighlight(t *testing.T) {
	forceColorProfile(t)
	m, _, _ := newTestModel(t)
	m.findQuery = "fra"

	view := m.View()
	if !strings.Contains(view, highlightStyle.Render("Fra")) {
		t.Error("matching name should be highlighted")
	}
	if !strings.Contains(stripANSI(view), `Find: "fra"`) {
		t.Error("active find text should show on the info line")
	}
}

func TestView_FlashMessage(t *testing.T) {
	m, _, _ := newTestModel(t)
	m.flashMessage = "Reloaded 3 rows"

	if view := stripANSI(m.View()); !strings.Contains(view, "Reloaded 3 rows") {
		t.Errorf("flash should render:\n%s", view)
	}
}

func TestView_EmptyTable(t *testing.T) {
	m, _, _ := newTestModel(t)
	m.rows = nil
	if view := stripANSI(m.View()); !strings.Contains(view, "No data") {
		t.Errorf("empty table should say so:\n%s", view)
	}
	if lines := strings.Split(m.View(), "\n"); len(lines) != 20 {
		t.Errorf("empty view has %d lines, want 20", len(lines))
	}
}

func TestView_HelpOverlayKeepsHeight(t *testing.T) {
	m, _, _ := newTestModel(t)
	m, _ = sendKey(t, m, key('?'))

	lines := strings.Split(m.View(), "\n")
	if len(lines) != 20 {
		t.Errorf("help view has %d lines, want 20", len(lines))
	}
}
