// Package server provides the HTTP API for vibesync.
//
// CI jobs and editor extensions talk to this instead of shelling out to
// the CLI. Simple JSON over a loopback listener.
package server

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/hashicorp/go-hclog"

	"github.com/vibesync/vibesync/internal/config"
	"github.com/vibesync/vibesync/internal/hooks"
	"github.com/vibesync/vibesync/internal/rules"
	"github.com/vibesync/vibesync/internal/store"
	"github.com/vibesync/vibesync/internal/syncer"
)

var installHooks = hooks.Install

type Server struct {
	cfg    config.Config
	sync   *syncer.Syncer
	store  *store.Store
	root   string
	mux    *http.ServeMux
	port   int
	log    hclog.Logger
	listen func(network, address string) (net.Listener, error)
	serve  func(net.Listener, http.Handler) error
}

func New(cfg config.Config, sy *syncer.Syncer, st *store.Store, root string, port int, logger hclog.Logger) *Server {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	srv := &Server{
		cfg:    cfg,
		sync:   sy,
		store:  st,
		root:   root,
		port:   port,
		log:    logger,
		listen: net.Listen,
		serve:  http.Serve,
	}
	srv.mux = http.NewServeMux()
	srv.routes()
	return srv
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("127.0.0.1:%d", s.port)
	listenFn := s.listen
	if listenFn == nil {
		listenFn = net.Listen
	}
	serveFn := s.serve
	if serveFn == nil {
		serveFn = http.Serve
	}

	ln, err := listenFn("tcp", addr)
	if err != nil {
		return fmt.Errorf("vibesync server: listen %s: %w", addr, err)
	}
	s.log.Info("HTTP server listening", "addr", addr)
	return serveFn(ln, s.mux)
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	// Sync
	s.mux.HandleFunc("POST /sync", s.handleSync)
	s.mux.HandleFunc("GET /status", s.handleStatus)

	// Rule documents
	s.mux.HandleFunc("GET /rules", s.handleListRules)
	s.mux.HandleFunc("GET /rules/canonical", s.handleCanonical)

	// History
	s.mux.HandleFunc("GET /history", s.handleHistory)
	s.mux.HandleFunc("GET /history/{id}", s.handleRunDetail)

	// Hooks
	s.mux.HandleFunc("POST /hooks/install", s.handleInstallHooks)

	// Stats
	s.mux.HandleFunc("GET /stats", s.handleStats)
}

// ─── Handlers ────────────────────────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "vibesync",
		"source":  s.cfg.Source,
	})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SyncedBy string `json:"synced_by"`
	}
	json.NewDecoder(r.Body).Decode(&body)

	result, err := s.sync.Sync(body.SyncedBy)
	if err != nil {
		s.log.Error("sync failed", "error", err)
		jsonError(w, http.StatusConflict, err.Error())
		return
	}

	s.recordRun(result, "http")

	status := http.StatusOK
	if result.Failed() > 0 {
		status = http.StatusMultiStatus
	}
	jsonResponse(w, status, result)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	result, err := s.sync.Status()
	if err != nil {
		jsonError(w, http.StatusConflict, err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, result)
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	docs, err := rules.LoadDir(filepath.Join(s.root, filepath.Dir(s.cfg.Source)))
	if err != nil {
		jsonError(w, http.StatusNotFound, err.Error())
		return
	}

	type item struct {
		Path        string   `json:"path"`
		Title       string   `json:"title"`
		Description string   `json:"description,omitempty"`
		Tags        []string `json:"tags,omitempty"`
		Checksum    string   `json:"checksum"`
	}
	items := make([]item, 0, len(docs))
	for _, d := range docs {
		rel, _ := filepath.Rel(s.root, d.Path)
		items = append(items, item{
			Path:        filepath.ToSlash(rel),
			Title:       d.Title(),
			Description: d.Meta.Description,
			Tags:        d.Meta.Tags,
			Checksum:    d.Checksum,
		})
	}
	jsonResponse(w, http.StatusOK, items)
}

func (s *Server) handleCanonical(w http.ResponseWriter, r *http.Request) {
	doc, err := rules.Load(s.sync.Source())
	if err != nil {
		jsonError(w, http.StatusNotFound, err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"path":     s.cfg.Source,
		"title":    doc.Title(),
		"checksum": doc.Checksum,
		"content":  string(doc.Raw),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 10)

	runs, err := s.store.RecentRuns(limit)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	jsonResponse(w, http.StatusOK, runs)
}

func (s *Server) handleRunDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	run, err := s.store.GetRun(id)
	if err != nil {
		jsonError(w, http.StatusNotFound, err.Error())
		return
	}
	outcomes, err := s.store.RunResults(id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"run":     run,
		"targets": outcomes,
	})
}

func (s *Server) handleInstallHooks(w http.ResponseWriter, r *http.Request) {
	result, err := installHooks(s.root, s.cfg.HooksDir)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"hooks_path":  result.HooksPath,
		"already_set": result.AlreadySet,
		"warning":     result.Warning,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats()
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, stats)
}

func (s *Server) recordRun(result *syncer.Result, trigger string) {
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
	if err := s.store.RecordRun(run, outcomes); err != nil {
		s.log.Warn("failed to record sync run", "run_id", result.RunID, "error", err)
	}
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, status int, msg string) {
	jsonResponse(w, status, map[string]string{"error": msg})
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}
