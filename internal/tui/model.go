// Package tui is the interactive dashboard: target drift at a glance,
// sync history, and a rendered view of the canonical document.
package tui

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/vibesync/vibesync/internal/config"
	"github.com/vibesync/vibesync/internal/rules"
	"github.com/vibesync/vibesync/internal/store"
	"github.com/vibesync/vibesync/internal/syncer"
)

// Screen identifies the active view.
type Screen int

const (
	ScreenDashboard Screen = iota
	ScreenTargets
	ScreenHistory
	ScreenDocument
)

// Model is the bubbletea model for the dashboard.
type Model struct {
	cfg   config.Config
	sync  *syncer.Syncer
	store *store.Store

	Screen     Screen
	PrevScreen Screen
	Cursor     int
	Scroll     int
	Width      int
	Height     int
	ErrorMsg   string
	Notice     string

	// Targets screen
	Status *syncer.Result

	// History screen
	Runs        []store.Run
	FilterInput textinput.Model
	Filter      string

	// Document screen
	Doc       *rules.Document
	Rendered  string
	DocScroll int

	// Dashboard
	Stats *store.Stats
}

// New builds the initial model.
func New(cfg config.Config, sy *syncer.Syncer, st *store.Store) Model {
	filter := textinput.New()
	filter.Placeholder = "filter by target, trigger, or user"
	filter.CharLimit = 64

	return Model{
		cfg:         cfg,
		sync:        sy,
		store:       st,
		Screen:      ScreenDashboard,
		FilterInput: filter,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(loadStats(m.store), loadStatus(m.sync))
}

// ─── Messages ────────────────────────────────────────────────────────────────

type statsLoadedMsg struct {
	stats *store.Stats
	err   error
}

type statusLoadedMsg struct {
	status *syncer.Result
	err    error
}

type historyLoadedMsg struct {
	runs []store.Run
	err  error
}

type documentLoadedMsg struct {
	doc      *rules.Document
	rendered string
	err      error
}

type syncDoneMsg struct {
	result *syncer.Result
	err    error
}

// ─── Commands ────────────────────────────────────────────────────────────────

func loadStats(st *store.Store) tea.Cmd {
	return func() tea.Msg {
		stats, err := st.Stats()
		return statsLoadedMsg{stats: stats, err: err}
	}
}

func loadStatus(sy *syncer.Syncer) tea.Cmd {
	return func() tea.Msg {
		status, err := sy.Status()
		return statusLoadedMsg{status: status, err: err}
	}
}

func loadHistory(st *store.Store) tea.Cmd {
	return func() tea.Msg {
		runs, err := st.RecentRuns(50)
		return historyLoadedMsg{runs: runs, err: err}
	}
}

func loadDocument(sy *syncer.Syncer, width int) tea.Cmd {
	return func() tea.Msg {
		doc, err := rules.Load(sy.Source())
		if err != nil {
			return documentLoadedMsg{err: err}
		}

		wrap := width - 4
		if wrap < 40 {
			wrap = 80
		}

		rendered := string(doc.Body)
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(wrap),
		)
		if err == nil {
			if out, renderErr := renderer.Render(string(doc.Body)); renderErr == nil {
				rendered = out
			}
		}
		return documentLoadedMsg{doc: doc, rendered: rendered}
	}
}

func runSync(sy *syncer.Syncer, st *store.Store) tea.Cmd {
	return func() tea.Msg {
		result, err := sy.Sync("")
		if err != nil {
			return syncDoneMsg{err: err}
		}

		if st != nil {
			run := store.Run{
				ID:        result.RunID,
				Source:    result.Source,
				Checksum:  result.Checksum,
				Trigger:   "cli",
				SyncedBy:  result.SyncedBy,
				StartedAt: result.SyncedAt,
				Copied:    result.Copied(),
				Unchanged: result.Unchanged(),
				Failed:    result.Failed(),
			}
			outcomes := make([]store.TargetOutcome, 0, len(result.Targets))
			for _, tr := range result.Targets {
				outcomes = append(outcomes, store.TargetOutcome{
					RunID:  result.RunID,
					Target: tr.Target,
					Path:   tr.Path,
					State:  string(tr.State),
					Error:  tr.Err,
				})
			}
			_ = st.RecordRun(run, outcomes)
		}
		return syncDoneMsg{result: result}
	}
}

// FilteredRuns returns the history entries matching the current filter.
func (m Model) FilteredRuns() []store.Run {
	if m.Filter == "" {
		return m.Runs
	}
	var out []store.Run
	for _, r := range m.Runs {
		if containsFold(r.Trigger, m.Filter) || containsFold(r.SyncedBy, m.Filter) || containsFold(r.ID, m.Filter) {
			out = append(out, r)
		}
	}
	return out
}
