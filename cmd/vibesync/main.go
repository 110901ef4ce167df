// Command vibesync keeps the per-assistant instruction mirrors in a
// repository identical to the canonical vibe coding document.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strconv"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/hashicorp/go-hclog"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/vibesync/vibesync/internal/config"
	"github.com/vibesync/vibesync/internal/hooks"
	"github.com/vibesync/vibesync/internal/mcp"
	"github.com/vibesync/vibesync/internal/rules"
	vibesrv "github.com/vibesync/vibesync/internal/server"
	"github.com/vibesync/vibesync/internal/store"
	"github.com/vibesync/vibesync/internal/syncer"
	"github.com/vibesync/vibesync/internal/tui"
	"github.com/vibesync/vibesync/internal/watch"
)

var version = "0.3.0"

const defaultPort = 7588

// Seams for tests. Production wiring lives here; tests swap in fakes.
var (
	exitFunc = os.Exit

	storeNew      = store.New
	hooksInstall  = hooks.Install
	newHTTPServer = vibesrv.New
	startHTTP     = func(s *vibesrv.Server) error { return s.Start() }
	serveMCP      = func(s *mcpserver.MCPServer, opts ...mcpserver.StdioOption) error {
		return mcpserver.ServeStdio(s, opts...)
	}
	newTeaProgram = tea.NewProgram
	runTeaProgram = func(p *tea.Program) (tea.Model, error) { return p.Run() }
	watchNew      = watch.New
	signalContext = func() (context.Context, context.CancelFunc) {
		return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	}
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		exitFunc(1)
		return
	}

	cfg, root, err := loadEnv()
	if err != nil {
		fatal(err)
		return
	}

	switch os.Args[1] {
	case "sync":
		cmdSync(cfg, root)
	case "status":
		cmdStatus(cfg, root)
	case "rules":
		cmdRules(cfg, root)
	case "hooks":
		cmdHooks(cfg, root)
	case "history":
		cmdHistory(cfg)
	case "stats":
		cmdStats(cfg)
	case "serve":
		cmdServe(cfg, root)
	case "watch":
		cmdWatch(cfg, root)
	case "mcp":
		cmdMCP(cfg, root)
	case "tui":
		cmdTUI(cfg, root)
	case "version", "-v", "--version":
		fmt.Printf("vibesync v%s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "vibesync: unknown command %q\n\n", os.Args[1])
		printUsage()
		exitFunc(1)
	}
}

// loadEnv resolves the working directory and the optional .vibesync.yaml
// override file inside it.
func loadEnv() (config.Config, string, error) {
	root, err := os.Getwd()
	if err != nil {
		return config.Config{}, "", fmt.Errorf("resolve working directory: %w", err)
	}
	cfg, err := config.Load(".vibesync.yaml")
	if err != nil {
		return config.Config{}, "", err
	}
	return cfg, root, nil
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "vibesync: %v\n", err)
	exitFunc(1)
}

func printUsage() {
	fmt.Printf(`vibesync v%s — one canonical instruction file, many assistant mirrors

Usage:
  vibesync <command> [arguments]

Commands:
  sync              Copy the canonical document to every mirror
  status            Report drift between the canonical document and mirrors
  rules             List the instruction documents under prompts/
  hooks             Point git's core.hooksPath at the shared hooks directory
  history [limit]   Show recent sync runs
  stats             Show aggregate sync statistics
  serve [port]      Start the HTTP API (default port %d)
  watch             Re-sync automatically when the canonical document changes
  mcp               Serve the MCP tools over stdio for AI assistants
  tui               Open the interactive dashboard
  version           Print version
  help              Show this help

Environment:
  VIBESYNC_DATA_DIR   Where the sync history database lives (default ~/.vibesync)
  VIBESYNC_PORT       Default port for serve

Configuration:
  .vibesync.yaml in the working directory overrides the canonical source
  path, the mirror list, and the hooks directory.
`, version, defaultPort)
}

// ─── Core Commands ───────────────────────────────────────────────────────────

func cmdSync(cfg config.Config, root string) {
	sy := syncer.New(cfg, root)

	result, err := sy.Sync("")
	if err != nil {
		fatal(err)
		return
	}

	for _, tr := range result.Targets {
		switch tr.State {
		case syncer.StateFailed:
			fmt.Fprintf(os.Stderr, "  ✗ %-16s %s (%s)\n", tr.Target, tr.Path, tr.Err)
		default:
			fmt.Printf("  ✓ %-16s %s (%s)\n", tr.Target, tr.Path, tr.State)
		}
	}
	fmt.Printf("Synced %s: %d copied, %d unchanged, %d failed\n",
		result.Source, result.Copied(), result.Unchanged(), result.Failed())

	recordRun(cfg, result)

	if result.Failed() > 0 {
		exitFunc(1)
	}
}

func cmdStatus(cfg config.Config, root string) {
	sy := syncer.New(cfg, root)

	result, err := sy.Status()
	if err != nil {
		fatal(err)
		return
	}

	drifted := 0
	for _, tr := range result.Targets {
		marker := "✓"
		if tr.State != syncer.StateInSync {
			marker = "✗"
			drifted++
		}
		fmt.Printf("  %s %-16s %s (%s)\n", marker, tr.Target, tr.Path, tr.State)
	}

	if drifted == 0 {
		fmt.Println("All targets in sync.")
		return
	}
	fmt.Printf("%d target(s) out of sync — run 'vibesync sync' to repair.\n", drifted)
	exitFunc(1)
}

func cmdRules(cfg config.Config, root string) {
	dir := filepath.Join(root, promptDir(cfg))
	docs, err := rules.LoadDir(dir)
	if err != nil {
		fatal(err)
		return
	}
	if len(docs) == 0 {
		fmt.Println("No instruction documents found.")
		return
	}

	for _, doc := range docs {
		fmt.Printf("  %-40s %s\n", doc.Title(), doc.Checksum[:8])
	}
	fmt.Printf("%d document(s) under %s\n", len(docs), promptDir(cfg))
}

func cmdHooks(cfg config.Config, root string) {
	result, err := hooksInstall(root, cfg.HooksDir)
	if err != nil {
		fatal(err)
		return
	}

	if result.Warning != "" {
		fmt.Fprintf(os.Stderr, "warning: %s\n", result.Warning)
	}
	if result.AlreadySet {
		fmt.Printf("core.hooksPath already set to %s\n", result.HooksPath)
		return
	}
	fmt.Printf("core.hooksPath set to %s\n", result.HooksPath)
}

func cmdHistory(cfg config.Config) {
	limit := 20
	if len(os.Args) > 2 {
		if n, err := strconv.Atoi(os.Args[2]); err == nil && n > 0 {
			limit = n
		}
	}

	st, err := storeNew(store.Config{DataDir: cfg.DataDir})
	if err != nil {
		fatal(err)
		return
	}
	defer st.Close()

	runs, err := st.RecentRuns(limit)
	if err != nil {
		fatal(err)
		return
	}
	if len(runs) == 0 {
		fmt.Println("No sync runs recorded yet.")
		return
	}

	for _, r := range runs {
		line := fmt.Sprintf("  %s  %-8s %-6s %-12s copied=%d unchanged=%d",
			r.StartedAt, shortID(r.ID), r.Trigger, r.SyncedBy, r.Copied, r.Unchanged)
		if r.Failed > 0 {
			line += fmt.Sprintf(" failed=%d", r.Failed)
		}
		fmt.Println(line)
	}
	fmt.Printf("%d run(s)\n", len(runs))
}

func cmdStats(cfg config.Config) {
	st, err := storeNew(store.Config{DataDir: cfg.DataDir})
	if err != nil {
		fatal(err)
		return
	}
	defer st.Close()

	stats, err := st.Stats()
	if err != nil {
		fatal(err)
		return
	}

	fmt.Printf("Total runs:  %d\n", stats.TotalRuns)
	fmt.Printf("Failed runs: %d\n", stats.FailedRuns)
	if stats.LastRunAt != "" {
		fmt.Printf("Last run:    %s\n", stats.LastRunAt)
	}
	for trigger, n := range stats.ByTrigger {
		fmt.Printf("  via %-6s %d\n", trigger, n)
	}
	if len(stats.TargetsSeen) > 0 {
		fmt.Printf("Targets:     %v\n", stats.TargetsSeen)
	}
}

// ─── Daemons ─────────────────────────────────────────────────────────────────

func cmdServe(cfg config.Config, root string) {
	port := defaultPort
	if env := os.Getenv("VIBESYNC_PORT"); env != "" {
		if p, err := strconv.Atoi(env); err == nil {
			port = p
		}
	}
	if len(os.Args) > 2 {
		if p, err := strconv.Atoi(os.Args[2]); err == nil {
			port = p
		}
	}

	st, err := storeNew(store.Config{DataDir: cfg.DataDir})
	if err != nil {
		fatal(err)
		return
	}
	defer st.Close()

	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "vibesync",
		Level: hclog.Info,
	})

	srv := newHTTPServer(cfg, syncer.New(cfg, root), st, root, port, logger)
	fmt.Printf("vibesync API listening on http://127.0.0.1:%d\n", port)
	if err := startHTTP(srv); err != nil {
		fatal(err)
	}
}

func cmdWatch(cfg config.Config, root string) {
	st, err := storeNew(store.Config{DataDir: cfg.DataDir})
	if err != nil {
		fatal(err)
		return
	}
	defer st.Close()

	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "vibesync",
		Level: hclog.Info,
	})

	w, err := watchNew(cfg, root, syncer.New(cfg, root), st, logger)
	if err != nil {
		fatal(err)
		return
	}

	ctx, cancel := signalContext()
	defer cancel()

	if err := w.Start(ctx); err != nil {
		fatal(err)
		return
	}
	fmt.Printf("Watching %s — press Ctrl+C to stop\n", cfg.Source)

	<-ctx.Done()
	w.Stop()
}

func cmdMCP(cfg config.Config, root string) {
	st, err := storeNew(store.Config{DataDir: cfg.DataDir})
	if err != nil {
		fatal(err)
		return
	}
	defer st.Close()

	srv := mcp.NewServer(mcp.Deps{
		Config: cfg,
		Syncer: syncer.New(cfg, root),
		Store:  st,
		Root:   root,
	})
	if err := serveMCP(srv); err != nil {
		fatal(err)
	}
}

func cmdTUI(cfg config.Config, root string) {
	st, err := storeNew(store.Config{DataDir: cfg.DataDir})
	if err != nil {
		fatal(err)
		return
	}
	defer st.Close()

	model := tui.New(cfg, syncer.New(cfg, root), st)
	p := newTeaProgram(model, tea.WithAltScreen())
	if _, err := runTeaProgram(p); err != nil {
		fatal(err)
	}
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// recordRun persists the outcome. History is best-effort from the CLI; a
// broken database must not mask a successful sync.
func recordRun(cfg config.Config, result *syncer.Result) {
	st, err := storeNew(store.Config{DataDir: cfg.DataDir})
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: history unavailable: %v\n", err)
		return
	}
	defer st.Close()

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
	if err := st.RecordRun(run, outcomes); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to record run: %v\n", err)
	}
}

// promptDir is the directory holding the canonical document. Config paths
// always use forward slashes.
func promptDir(cfg config.Config) string {
	return path.Dir(cfg.Source)
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
