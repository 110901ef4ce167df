package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vibesync/vibesync/internal/syncer"
)

// ─── Styles ──────────────────────────────────────────────────────────────────

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Italic(true)
)

// ─── View ────────────────────────────────────────────────────────────────────

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("vibesync") + "\n\n")

	switch m.Screen {
	case ScreenDashboard:
		b.WriteString(m.viewDashboard())
	case ScreenTargets:
		b.WriteString(m.viewTargets())
	case ScreenHistory:
		b.WriteString(m.viewHistory())
	case ScreenDocument:
		b.WriteString(m.viewDocument())
	}

	if m.Notice != "" {
		b.WriteString("\n" + noticeStyle.Render(m.Notice) + "\n")
	}
	if m.ErrorMsg != "" {
		b.WriteString("\n" + errStyle.Render("error: "+m.ErrorMsg) + "\n")
	}

	return b.String()
}

func (m Model) viewDashboard() string {
	var b strings.Builder

	b.WriteString(dimStyle.Render("canonical: "+m.cfg.Source) + "\n")
	if m.Stats != nil {
		b.WriteString(dimStyle.Render(fmt.Sprintf("%d sync runs recorded, last at %s",
			m.Stats.TotalRuns, orDash(m.Stats.LastRunAt))) + "\n")
	}
	b.WriteString("\n")

	for i, item := range dashboardMenuItems {
		cursor := "  "
		line := item
		if i == m.Cursor {
			cursor = "> "
			line = selectedStyle.Render(item)
		}
		b.WriteString(cursor + line + "\n")
	}

	b.WriteString("\n" + dimStyle.Render("↑/↓ move · enter select · s sync · q quit") + "\n")
	return b.String()
}

func (m Model) viewTargets() string {
	var b strings.Builder
	b.WriteString("Targets\n\n")

	if m.Status == nil {
		b.WriteString(dimStyle.Render("loading...") + "\n")
		return b.String()
	}

	b.WriteString(dimStyle.Render("source checksum: "+short(m.Status.Checksum)) + "\n\n")

	for i, tr := range m.Status.Targets {
		cursor := "  "
		if i == m.Cursor {
			cursor = "> "
		}
		state := renderState(tr.State)
		line := fmt.Sprintf("%s%-16s %-36s %s", cursor, tr.Target, tr.Path, state)
		if tr.Err != "" {
			line += " " + errStyle.Render(tr.Err)
		}
		b.WriteString(line + "\n")
	}

	b.WriteString("\n" + dimStyle.Render("r refresh · s sync · esc back") + "\n")
	return b.String()
}

func (m Model) viewHistory() string {
	var b strings.Builder
	b.WriteString("History\n\n")

	if m.FilterInput.Focused() || m.Filter != "" {
		b.WriteString("filter: " + m.FilterInput.View() + "\n\n")
	}

	runs := m.FilteredRuns()
	if len(runs) == 0 {
		b.WriteString(dimStyle.Render("no sync runs recorded") + "\n")
	}

	visibleItems := m.Height - 8
	if visibleItems < 5 {
		visibleItems = 5
	}

	for i := m.Scroll; i < len(runs) && i < m.Scroll+visibleItems; i++ {
		r := runs[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "> "
		}
		summary := fmt.Sprintf("%s  %s  %-6s %-12s copied=%d unchanged=%d",
			r.StartedAt, short(r.ID), r.Trigger, r.SyncedBy, r.Copied, r.Unchanged)
		if r.Failed > 0 {
			summary += " " + errStyle.Render(fmt.Sprintf("failed=%d", r.Failed))
		}
		b.WriteString(cursor + summary + "\n")
	}

	b.WriteString("\n" + dimStyle.Render("/ filter · r refresh · esc back") + "\n")
	return b.String()
}

func (m Model) viewDocument() string {
	var b strings.Builder

	title := "Canonical document"
	if m.Doc != nil {
		title = m.Doc.Title()
	}
	b.WriteString(title + "\n\n")

	if m.Rendered == "" {
		b.WriteString(dimStyle.Render("loading...") + "\n")
		return b.String()
	}

	lines := strings.Split(m.Rendered, "\n")
	visible := m.Height - 6
	if visible < 10 {
		visible = 10
	}

	start := m.DocScroll
	if start > len(lines)-1 {
		start = len(lines) - 1
	}
	if start < 0 {
		start = 0
	}
	end := start + visible
	if end > len(lines) {
		end = len(lines)
	}

	b.WriteString(strings.Join(lines[start:end], "\n"))
	b.WriteString("\n\n" + dimStyle.Render("↑/↓ scroll · r reload · esc back") + "\n")
	return b.String()
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func renderState(s syncer.TargetState) string {
	switch s {
	case syncer.StateInSync, syncer.StateCopied, syncer.StateUnchanged:
		return okStyle.Render(string(s))
	case syncer.StateDrifted, syncer.StateMissing:
		return warnStyle.Render(string(s))
	default:
		return errStyle.Render(string(s))
	}
}

func short(s string) string {
	if len(s) <= 8 {
		return s
	}
	return s[:8]
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
