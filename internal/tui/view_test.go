package tui

import (
	"strings"
	"testing"

	"github.com/vibesync/vibesync/internal/store"
	"github.com/vibesync/vibesync/internal/syncer"
)

func TestShort(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "unchanged", in: "abc", want: "abc"},
		{name: "exact", in: "12345678", want: "12345678"},
		{name: "truncated", in: "0123456789abcdef", want: "01234567"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := short(tt.in); got != tt.want {
				t.Fatalf("short() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestContainsFold(t *testing.T) {
	if !containsFold("Watch", "watch") {
		t.Fatal("match should ignore case")
	}
	if !containsFold("alice@laptop", "LAPTOP") {
		t.Fatal("substring match should ignore case")
	}
	if containsFold("cli", "http") {
		t.Fatal("unrelated strings should not match")
	}
}

func TestViewDashboardShowsMenuAndStats(t *testing.T) {
	fx := newTestFixture(t)
	m := New(fx.cfg, fx.sync, fx.store)
	m.Stats = &store.Stats{TotalRuns: 3, LastRunAt: "2026-08-27T10:00:00Z"}

	out := m.View()
	for _, item := range dashboardMenuItems {
		if !strings.Contains(out, item) {
			t.Fatalf("dashboard should list %q", item)
		}
	}
	if !strings.Contains(out, "3 sync runs recorded") {
		t.Fatal("dashboard should show run count")
	}
	if !strings.Contains(out, fx.cfg.Source) {
		t.Fatal("dashboard should show the canonical path")
	}
}

func TestViewTargetsShowsStateAndErrors(t *testing.T) {
	fx := newTestFixture(t)
	m := New(fx.cfg, fx.sync, fx.store)
	m.Screen = ScreenTargets
	m.Status = &syncer.Result{
		Checksum: "deadbeefcafe",
		Targets: []syncer.TargetResult{
			{Target: "claude", Path: "claude-instructions.md", State: syncer.StateInSync},
			{Target: "cursor", Path: "cursor-rules.md", State: syncer.StateFailed, Err: "permission denied"},
		},
	}

	out := m.View()
	if !strings.Contains(out, "claude-instructions.md") {
		t.Fatal("targets view should list target paths")
	}
	if !strings.Contains(out, "permission denied") {
		t.Fatal("targets view should surface per-target errors")
	}
	if !strings.Contains(out, "deadbeef") {
		t.Fatal("targets view should show the source checksum prefix")
	}
}

func TestViewHistoryShowsRunsAndEmptyState(t *testing.T) {
	fx := newTestFixture(t)
	m := New(fx.cfg, fx.sync, fx.store)
	m.Screen = ScreenHistory

	if out := m.View(); !strings.Contains(out, "no sync runs recorded") {
		t.Fatal("empty history should say so")
	}

	m.Runs = []store.Run{
		{ID: "run-12345678", Trigger: "watch", SyncedBy: "alice", Copied: 4, Failed: 1},
	}
	out := m.View()
	if !strings.Contains(out, "watch") || !strings.Contains(out, "alice") {
		t.Fatal("history rows should include trigger and user")
	}
	if !strings.Contains(out, "failed=1") {
		t.Fatal("failed runs should be flagged")
	}
}

func TestViewDocumentScrolls(t *testing.T) {
	fx := newTestFixture(t)
	m := New(fx.cfg, fx.sync, fx.store)
	m.Screen = ScreenDocument
	m.Height = 16
	m.Rendered = "line-one\nline-two\nline-three"

	out := m.View()
	if !strings.Contains(out, "line-one") {
		t.Fatal("document view should render content")
	}

	m.DocScroll = 2
	out = m.View()
	if strings.Contains(out, "line-one") {
		t.Fatal("scrolled view should drop earlier lines")
	}
	if !strings.Contains(out, "line-three") {
		t.Fatal("scrolled view should keep later lines")
	}
}

func TestViewShowsNoticeAndError(t *testing.T) {
	fx := newTestFixture(t)
	m := New(fx.cfg, fx.sync, fx.store)
	m.Notice = "synced: 4 copied"
	m.ErrorMsg = "something broke"

	out := m.View()
	if !strings.Contains(out, "synced: 4 copied") {
		t.Fatal("notice should be rendered")
	}
	if !strings.Contains(out, "something broke") {
		t.Fatal("error should be rendered")
	}
}
