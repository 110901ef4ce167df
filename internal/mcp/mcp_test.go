package mcp

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	mcppkg "github.com/mark3labs/mcp-go/mcp"

	"github.com/vibesync/vibesync/internal/config"
	"github.com/vibesync/vibesync/internal/hooks"
	"github.com/vibesync/vibesync/internal/store"
	"github.com/vibesync/vibesync/internal/syncer"
)

func newTestDeps(t *testing.T, sourceContent string) Deps {
	t.Helper()

	root := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()

	if sourceContent != "" {
		src := filepath.Join(root, cfg.Source)
		if err := os.MkdirAll(filepath.Dir(src), 0755); err != nil {
			t.Fatalf("mkdir prompts: %v", err)
		}
		if err := os.WriteFile(src, []byte(sourceContent), 0644); err != nil {
			t.Fatalf("write source: %v", err)
		}
	}

	st, err := store.New(store.Config{DataDir: cfg.DataDir})
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	return Deps{
		Config: cfg,
		Syncer: syncer.New(cfg, root),
		Store:  st,
		Root:   root,
	}
}

func callTool(t *testing.T, h func(context.Context, mcppkg.CallToolRequest) (*mcppkg.CallToolResult, error), args map[string]any) *mcppkg.CallToolResult {
	t.Helper()
	req := mcppkg.CallToolRequest{Params: mcppkg.CallToolParams{Arguments: args}}
	res, err := h(context.Background(), req)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return res
}

func callResultText(t *testing.T, res *mcppkg.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatalf("expected non-empty tool result")
	}
	text, ok := mcppkg.AsTextContent(res.Content[0])
	if !ok {
		t.Fatalf("expected text content")
	}
	return text.Text
}

func TestNewServerRegistersTools(t *testing.T) {
	deps := newTestDeps(t, "X")
	if srv := NewServer(deps); srv == nil {
		t.Fatalf("expected MCP server instance")
	}
}

func TestHandleRulesGet(t *testing.T) {
	deps := newTestDeps(t, "---\ntitle: Team Rules\n---\n# Always test\n")

	res := callTool(t, handleRulesGet(deps), nil)
	if res.IsError {
		t.Fatalf("unexpected error: %s", callResultText(t, res))
	}

	text := callResultText(t, res)
	if !strings.Contains(text, "Team Rules") || !strings.Contains(text, "# Always test") {
		t.Fatalf("unexpected rules_get output: %q", text)
	}
}

func TestHandleRulesGetMissingSource(t *testing.T) {
	deps := newTestDeps(t, "")

	res := callTool(t, handleRulesGet(deps), nil)
	if !res.IsError {
		t.Fatalf("expected tool error for missing source")
	}
}

func TestHandleRulesSyncAndHistory(t *testing.T) {
	deps := newTestDeps(t, "X")

	res := callTool(t, handleRulesSync(deps), map[string]any{"synced_by": "agent"})
	if res.IsError {
		t.Fatalf("unexpected sync error: %s", callResultText(t, res))
	}

	text := callResultText(t, res)
	if !strings.Contains(text, "copied=4") || !strings.Contains(text, "failed=0") {
		t.Fatalf("unexpected sync output: %q", text)
	}

	// Targets were actually written.
	data, err := os.ReadFile(filepath.Join(deps.Root, "claude-instructions.md"))
	if err != nil || string(data) != "X" {
		t.Fatalf("target not written: %q, %v", data, err)
	}

	// The run shows up in history with the mcp trigger.
	histRes := callTool(t, handleSyncHistory(deps), map[string]any{"limit": float64(5)})
	histText := callResultText(t, histRes)
	if !strings.Contains(histText, "via mcp") || !strings.Contains(histText, "by agent") {
		t.Fatalf("unexpected history output: %q", histText)
	}
}

func TestHandleRulesSyncMissingSource(t *testing.T) {
	deps := newTestDeps(t, "")

	res := callTool(t, handleRulesSync(deps), nil)
	if !res.IsError {
		t.Fatalf("expected tool error for missing source")
	}
	if !strings.Contains(callResultText(t, res), "Sync failed") {
		t.Fatalf("unexpected error text: %q", callResultText(t, res))
	}
}

func TestHandleRulesStatus(t *testing.T) {
	deps := newTestDeps(t, "v1")

	// Before any sync: everything missing, drift reported.
	res := callTool(t, handleRulesStatus(deps), nil)
	text := callResultText(t, res)
	if !strings.Contains(text, "Drift detected") {
		t.Fatalf("expected drift before first sync: %q", text)
	}

	callTool(t, handleRulesSync(deps), nil)

	res = callTool(t, handleRulesStatus(deps), nil)
	text = callResultText(t, res)
	if !strings.Contains(text, "All targets in sync") {
		t.Fatalf("expected clean status after sync: %q", text)
	}
}

func TestHandleRulesList(t *testing.T) {
	deps := newTestDeps(t, "---\ntitle: Canonical\ntags: [core]\n---\nbody\n")

	extra := filepath.Join(deps.Root, "prompts", "adr-template.md")
	if err := os.WriteFile(extra, []byte("# ADR Template\n"), 0644); err != nil {
		t.Fatalf("write extra doc: %v", err)
	}

	res := callTool(t, handleRulesList(deps), nil)
	text := callResultText(t, res)
	if !strings.Contains(text, "Found 2 instruction documents") {
		t.Fatalf("unexpected list output: %q", text)
	}
	if !strings.Contains(text, "adr-template.md") || !strings.Contains(text, "[core]") {
		t.Fatalf("list output missing entries: %q", text)
	}
}

func TestHandleHooksInstall(t *testing.T) {
	oldInstall := installHooks
	t.Cleanup(func() { installHooks = oldInstall })

	installHooks = func(repoDir, hooksDir string) (*hooks.Result, error) {
		return &hooks.Result{HooksPath: hooksDir, Warning: "hooks directory .githooks does not exist yet"}, nil
	}

	deps := newTestDeps(t, "X")
	res := callTool(t, handleHooksInstall(deps), nil)
	text := callResultText(t, res)
	if !strings.Contains(text, "core.hooksPath set to .githooks") {
		t.Fatalf("unexpected install output: %q", text)
	}
	if !strings.Contains(text, "warning:") {
		t.Fatalf("warning not surfaced: %q", text)
	}
}

func TestHandleSyncHistoryEmpty(t *testing.T) {
	deps := newTestDeps(t, "X")

	res := callTool(t, handleSyncHistory(deps), nil)
	if !strings.Contains(callResultText(t, res), "No sync runs recorded yet") {
		t.Fatalf("unexpected empty history output: %q", callResultText(t, res))
	}
}
