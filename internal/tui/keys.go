package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.findActive {
		return m.handleFindKeys(msg)
	}
	if m.modal != modalNone {
		return m.handleModalKeys(msg)
	}
	if newM, cmd, handled := m.handleGlobalKeys(msg); handled {
		return newM, cmd
	}
	return m.handleTableKeys(msg)
}

// handleGlobalKeys handles quit and help.
// Returns (model, cmd, true) if the key was handled, or (model, nil, false) otherwise.
func (m Model) handleGlobalKeys(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit, true
	case "?":
		m.modal = modalHelp
		m.helpScroll = 0
		return m, nil, true
	}
	return m, nil, false
}

func (m Model) handleTableKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.navigateList(msg.String(), len(m.rows)) {
		return m, nil
	}

	switch k := msg.String(); k {
	case "enter", " ":
		return m.toggleCurrent()

	case "left", "h":
		if m.selCol > 0 {
			m.selCol--
		}
	case "right", "l":
		if m.selCol < len(m.cols)-1 {
			m.selCol++
		}
	case "s":
		return m.promote(m.selCol)
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		return m.promote(int(k[0] - '1'))

	case "R":
		return m.startReload()

	case "/":
		return m, m.activateFind()
	case "n":
		if m.findQuery == "" {
			return m, nil
		}
		if !m.findNext() {
			return m.showFlash(fmt.Sprintf("No match for %q", m.findQuery))
		}
	}
	return m, nil
}

func (m *Model) activateFind() tea.Cmd {
	m.findActive = true
	m.findInput.SetValue(m.findQuery)
	m.findInput.CursorEnd()
	m.findInput.Focus()
	return textinput.Blink
}

func (m Model) handleFindKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.findActive = false
		m.findInput.Blur()
		m.findQuery = m.findInput.Value()
		if m.findQuery == "" {
			return m, nil
		}
		if !m.findNext() {
			return m.showFlash(fmt.Sprintf("No match for %q", m.findQuery))
		}
		return m, nil

	case "esc":
		m.findActive = false
		m.findInput.Blur()
		return m, nil

	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.findInput, cmd = m.findInput.Update(msg)
	return m, cmd
}

// handleModalKeys scrolls the help modal; any other key closes it.
func (m Model) handleModalKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	maxScroll := max(len(rawHelpLines)-m.helpMaxVisible(), 0)
	switch msg.String() {
	case "up", "k":
		if m.helpScroll > 0 {
			m.helpScroll--
		}
	case "down", "j":
		if m.helpScroll < maxScroll {
			m.helpScroll++
		}
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	default:
		m.modal = modalNone
		m.helpScroll = 0
	}
	return m, nil
}
