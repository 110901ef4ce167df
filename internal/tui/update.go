package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// ─── Update ──────────────────────────────────────────────────────────────────

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		return m, nil

	case tea.KeyMsg:
		// Global quit — always works
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		// If the history filter is focused, let it handle most keys
		if m.Screen == ScreenHistory && m.FilterInput.Focused() {
			return m.handleFilterKeys(msg)
		}
		return m.handleKeyPress(msg.String())

	// ─── Data loaded messages ────────────────────────────────────────────
	case statsLoadedMsg:
		if msg.err != nil {
			m.ErrorMsg = msg.err.Error()
			return m, nil
		}
		m.Stats = msg.stats
		return m, nil

	case statusLoadedMsg:
		if msg.err != nil {
			m.ErrorMsg = msg.err.Error()
			return m, nil
		}
		m.Status = msg.status
		return m, nil

	case historyLoadedMsg:
		if msg.err != nil {
			m.ErrorMsg = msg.err.Error()
			return m, nil
		}
		m.Runs = msg.runs
		m.Screen = ScreenHistory
		m.Cursor = 0
		m.Scroll = 0
		return m, nil

	case documentLoadedMsg:
		if msg.err != nil {
			m.ErrorMsg = msg.err.Error()
			return m, nil
		}
		m.Doc = msg.doc
		m.Rendered = msg.rendered
		m.Screen = ScreenDocument
		m.DocScroll = 0
		return m, nil

	case syncDoneMsg:
		if msg.err != nil {
			m.ErrorMsg = msg.err.Error()
			return m, nil
		}
		m.Notice = fmt.Sprintf("synced: %d copied, %d unchanged, %d failed",
			msg.result.Copied(), msg.result.Unchanged(), msg.result.Failed())
		// Refresh whatever depends on the tree state.
		return m, tea.Batch(loadStatus(m.sync), loadStats(m.store))
	}

	return m, nil
}

// ─── Key Press Router ────────────────────────────────────────────────────────

func (m Model) handleKeyPress(key string) (tea.Model, tea.Cmd) {
	// Clear transient messages on any keypress
	m.ErrorMsg = ""
	m.Notice = ""

	switch m.Screen {
	case ScreenDashboard:
		return m.handleDashboardKeys(key)
	case ScreenTargets:
		return m.handleTargetsKeys(key)
	case ScreenHistory:
		return m.handleHistoryKeys(key)
	case ScreenDocument:
		return m.handleDocumentKeys(key)
	}
	return m, nil
}

// ─── Dashboard ───────────────────────────────────────────────────────────────

var dashboardMenuItems = []string{
	"Target status",
	"Sync now",
	"History",
	"View canonical document",
	"Quit",
}

func (m Model) handleDashboardKeys(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "up", "k":
		if m.Cursor > 0 {
			m.Cursor--
		}
	case "down", "j":
		if m.Cursor < len(dashboardMenuItems)-1 {
			m.Cursor++
		}
	case "enter", " ":
		return m.handleDashboardSelection()
	case "s":
		return m, runSync(m.sync, m.store)
	case "q":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) handleDashboardSelection() (tea.Model, tea.Cmd) {
	switch m.Cursor {
	case 0: // Target status
		m.PrevScreen = ScreenDashboard
		m.Screen = ScreenTargets
		m.Cursor = 0
		return m, loadStatus(m.sync)
	case 1: // Sync now
		return m, runSync(m.sync, m.store)
	case 2: // History
		m.PrevScreen = ScreenDashboard
		return m, loadHistory(m.store)
	case 3: // Document
		m.PrevScreen = ScreenDashboard
		return m, loadDocument(m.sync, m.Width)
	case 4: // Quit
		return m, tea.Quit
	}
	return m, nil
}

// ─── Targets ─────────────────────────────────────────────────────────────────

func (m Model) handleTargetsKeys(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "up", "k":
		if m.Cursor > 0 {
			m.Cursor--
		}
	case "down", "j":
		if m.Status != nil && m.Cursor < len(m.Status.Targets)-1 {
			m.Cursor++
		}
	case "r":
		return m, loadStatus(m.sync)
	case "s":
		return m, runSync(m.sync, m.store)
	case "esc", "q":
		m.Screen = ScreenDashboard
		m.Cursor = 0
		return m, nil
	}
	return m, nil
}

// ─── History ─────────────────────────────────────────────────────────────────

func (m Model) handleHistoryKeys(key string) (tea.Model, tea.Cmd) {
	visibleItems := m.Height - 8
	if visibleItems < 5 {
		visibleItems = 5
	}

	switch key {
	case "up", "k":
		if m.Cursor > 0 {
			m.Cursor--
			if m.Cursor < m.Scroll {
				m.Scroll = m.Cursor
			}
		}
	case "down", "j":
		if m.Cursor < len(m.FilteredRuns())-1 {
			m.Cursor++
			if m.Cursor >= m.Scroll+visibleItems {
				m.Scroll = m.Cursor - visibleItems + 1
			}
		}
	case "/":
		m.FilterInput.Focus()
		return m, nil
	case "r":
		return m, loadHistory(m.store)
	case "esc", "q":
		if m.Filter != "" {
			m.Filter = ""
			m.FilterInput.SetValue("")
			m.Cursor = 0
			m.Scroll = 0
			return m, nil
		}
		m.Screen = ScreenDashboard
		m.Cursor = 0
		m.Scroll = 0
		return m, nil
	}
	return m, nil
}

func (m Model) handleFilterKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.Filter = m.FilterInput.Value()
		m.FilterInput.Blur()
		m.Cursor = 0
		m.Scroll = 0
		return m, nil
	case "esc":
		m.FilterInput.Blur()
		m.FilterInput.SetValue("")
		m.Filter = ""
		return m, nil
	}

	var cmd tea.Cmd
	m.FilterInput, cmd = m.FilterInput.Update(msg)
	return m, cmd
}

// ─── Document ────────────────────────────────────────────────────────────────

func (m Model) handleDocumentKeys(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "up", "k":
		if m.DocScroll > 0 {
			m.DocScroll--
		}
	case "down", "j":
		m.DocScroll++
	case "r":
		return m, loadDocument(m.sync, m.Width)
	case "esc", "q":
		m.Screen = m.PrevScreen
		m.DocScroll = 0
		return m, nil
	}
	return m, nil
}
