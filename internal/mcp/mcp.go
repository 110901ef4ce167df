// Package mcp implements the Model Context Protocol server for vibesync.
//
// This exposes the instruction corpus via MCP stdio transport so ANY agent
// (Claude Code, Cursor, Windsurf, Copilot, etc.) can read the canonical
// rules and trigger a sync without shelling out.
package mcp

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/vibesync/vibesync/internal/config"
	"github.com/vibesync/vibesync/internal/hooks"
	"github.com/vibesync/vibesync/internal/rules"
	"github.com/vibesync/vibesync/internal/store"
	"github.com/vibesync/vibesync/internal/syncer"
)

var installHooks = hooks.Install

// Deps bundles what the tool handlers need.
type Deps struct {
	Config config.Config
	Syncer *syncer.Syncer
	Store  *store.Store
	Root   string
}

func NewServer(deps Deps) *server.MCPServer {
	srv := server.NewMCPServer(
		"vibesync",
		"0.1.0",
		server.WithToolCapabilities(true),
	)

	registerTools(srv, deps)
	return srv
}

func registerTools(srv *server.MCPServer, deps Deps) {
	// ─── rules_get ───────────────────────────────────────────────────
	srv.AddTool(
		mcp.NewTool("rules_get",
			mcp.WithDescription("Read the canonical coding instructions for this repository. Call this at the start of a session so your behavior matches the team's rules. The same content is mirrored to every assistant-specific file, so this is always the source of truth."),
		),
		handleRulesGet(deps),
	)

	// ─── rules_list ──────────────────────────────────────────────────
	srv.AddTool(
		mcp.NewTool("rules_list",
			mcp.WithDescription("List every instruction document in the prompts directory with title, tags, and checksum."),
		),
		handleRulesList(deps),
	)

	// ─── rules_sync ──────────────────────────────────────────────────
	srv.AddTool(
		mcp.NewTool("rules_sync",
			mcp.WithDescription("Mirror the canonical instructions file to every assistant-specific location (copilot-instructions.md, claude-instructions.md, cursor-rules.md, .github/copilot-instructions.md). Run this after editing the canonical file so all assistants see the same guidance."),
			mcp.WithString("synced_by",
				mcp.Description("Attribution for the sync run (default: current user)"),
			),
		),
		handleRulesSync(deps),
	)

	// ─── rules_status ────────────────────────────────────────────────
	srv.AddTool(
		mcp.NewTool("rules_status",
			mcp.WithDescription("Check whether the mirrored instruction files match the canonical source. Reports each target as in sync, drifted, or missing. Nothing is written."),
		),
		handleRulesStatus(deps),
	)

	// ─── hooks_install ───────────────────────────────────────────────
	srv.AddTool(
		mcp.NewTool("hooks_install",
			mcp.WithDescription("Point git's core.hooksPath at the repository's shared hooks directory. Safe to run repeatedly."),
		),
		handleHooksInstall(deps),
	)

	// ─── sync_history ────────────────────────────────────────────────
	srv.AddTool(
		mcp.NewTool("sync_history",
			mcp.WithDescription("Show recent sync runs — when the instructions were last mirrored, by whom, and whether any target failed."),
			mcp.WithNumber("limit",
				mcp.Description("Max runs to show (default: 10)"),
			),
		),
		handleSyncHistory(deps),
	)
}

// ─── Tool Handlers ───────────────────────────────────────────────────────────

func handleRulesGet(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		doc, err := rules.Load(deps.Syncer.Source())
		if err != nil {
			return mcp.NewToolResultError("Failed to read canonical instructions: " + err.Error()), nil
		}

		header := fmt.Sprintf("# %s\nsource: %s | checksum: %s\n\n", doc.Title(), deps.Config.Source, doc.Checksum[:8])
		return mcp.NewToolResultText(header + string(doc.Body)), nil
	}
}

func handleRulesList(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dir := filepath.Join(deps.Root, filepath.Dir(deps.Config.Source))
		docs, err := rules.LoadDir(dir)
		if err != nil {
			return mcp.NewToolResultError("Failed to list documents: " + err.Error()), nil
		}
		if len(docs) == 0 {
			return mcp.NewToolResultText("No instruction documents found in " + dir), nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Found %d instruction documents:\n\n", len(docs))
		for i, d := range docs {
			tags := ""
			if len(d.Meta.Tags) > 0 {
				tags = " [" + strings.Join(d.Meta.Tags, ", ") + "]"
			}
			fmt.Fprintf(&b, "[%d] %s — %s%s (checksum %s)\n", i+1, filepath.Base(d.Path), d.Title(), tags, d.Checksum[:8])
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}

func handleRulesSync(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		syncedBy, _ := req.GetArguments()["synced_by"].(string)

		result, err := deps.Syncer.Sync(syncedBy)
		if err != nil {
			return mcp.NewToolResultError("Sync failed: " + err.Error()), nil
		}

		recordRun(deps, result, "mcp")

		var b strings.Builder
		fmt.Fprintf(&b, "Synced %s (checksum %s)\n", result.Source, result.Checksum[:8])
		for _, tr := range result.Targets {
			line := fmt.Sprintf("  %-10s %s — %s", tr.Target, tr.Path, tr.State)
			if tr.Err != "" {
				line += ": " + tr.Err
			}
			b.WriteString(line + "\n")
		}
		fmt.Fprintf(&b, "copied=%d unchanged=%d failed=%d", result.Copied(), result.Unchanged(), result.Failed())

		if result.Failed() > 0 {
			return mcp.NewToolResultError(b.String()), nil
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}

func handleRulesStatus(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		status, err := deps.Syncer.Status()
		if err != nil {
			return mcp.NewToolResultError("Status failed: " + err.Error()), nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Canonical: %s (checksum %s)\n", status.Source, status.Checksum[:8])
		clean := true
		for _, tr := range status.Targets {
			fmt.Fprintf(&b, "  %-10s %s — %s\n", tr.Target, tr.Path, tr.State)
			if tr.State != syncer.StateInSync {
				clean = false
			}
		}
		if clean {
			b.WriteString("All targets in sync.")
		} else {
			b.WriteString("Drift detected — run rules_sync to repair.")
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}

func handleHooksInstall(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := installHooks(deps.Root, deps.Config.HooksDir)
		if err != nil {
			return mcp.NewToolResultError("Hooks install failed: " + err.Error()), nil
		}

		msg := fmt.Sprintf("core.hooksPath set to %s", result.HooksPath)
		if result.AlreadySet {
			msg += " (was already set)"
		}
		if result.Warning != "" {
			msg += "\nwarning: " + result.Warning
		}
		return mcp.NewToolResultText(msg), nil
	}
}

func handleSyncHistory(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := intArg(req, "limit", 10)

		runs, err := deps.Store.RecentRuns(limit)
		if err != nil {
			return mcp.NewToolResultError("History failed: " + err.Error()), nil
		}
		if len(runs) == 0 {
			return mcp.NewToolResultText("No sync runs recorded yet."), nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Last %d sync runs:\n\n", len(runs))
		for _, r := range runs {
			fmt.Fprintf(&b, "%s  %s  by %s via %s — copied=%d unchanged=%d failed=%d\n",
				r.StartedAt, shortID(r.ID), r.SyncedBy, r.Trigger, r.Copied, r.Unchanged, r.Failed)
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}

func recordRun(deps Deps, result *syncer.Result, trigger string) {
	if deps.Store == nil {
		return
	}
	run := store.Run{
		ID:        result.RunID,
		Source:    result.Source,
		Checksum:  result.Checksum,
		Trigger:   trigger,
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
	_ = deps.Store.RecordRun(run, outcomes)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
