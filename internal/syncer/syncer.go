// Package syncer mirrors the canonical instructions file to its targets.
//
// The contract is deliberately simple:
//
//   - Missing source → error, nothing written.
//   - Each target is overwritten unconditionally with the source bytes.
//   - A target that already matches is reported as unchanged, not rewritten.
//   - One failing target does not stop the others; failures are collected
//     per target and the caller decides the exit status.
//
// Every run updates .vibesync/manifest.json with the checksum written to
// each target, so Status can tell drift from a clean tree without touching
// any destination.
package syncer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/vibesync/vibesync/internal/config"
	"github.com/vibesync/vibesync/internal/rules"
)

var (
	osWriteFile         = os.WriteFile
	osMkdirAll          = os.MkdirAll
	osHostname          = os.Hostname
	jsonMarshalManifest = json.MarshalIndent
)

// ManifestDir is the state directory created at the repo root.
const ManifestDir = ".vibesync"

// ─── Results ─────────────────────────────────────────────────────────────────

// TargetState describes one target after a sync or status check.
type TargetState string

const (
	StateCopied    TargetState = "copied"
	StateUnchanged TargetState = "unchanged"
	StateFailed    TargetState = "failed"
	StateInSync    TargetState = "in sync"
	StateDrifted   TargetState = "drifted"
	StateMissing   TargetState = "missing"
)

// TargetResult is the outcome for a single target.
type TargetResult struct {
	Target string      `json:"target"`
	Path   string      `json:"path"`
	State  TargetState `json:"state"`
	Err    string      `json:"error,omitempty"`
}

// Result is returned by Sync.
type Result struct {
	RunID    string         `json:"run_id"`
	Source   string         `json:"source"`
	Checksum string         `json:"checksum"`
	SyncedBy string         `json:"synced_by"`
	SyncedAt string         `json:"synced_at"`
	Targets  []TargetResult `json:"targets"`
}

// Copied returns how many targets were rewritten.
func (r *Result) Copied() int { return r.count(StateCopied) }

// Unchanged returns how many targets already matched the source.
func (r *Result) Unchanged() int { return r.count(StateUnchanged) }

// Failed returns how many targets could not be written.
func (r *Result) Failed() int { return r.count(StateFailed) }

func (r *Result) count(s TargetState) int {
	n := 0
	for _, t := range r.Targets {
		if t.State == s {
			n++
		}
	}
	return n
}

// ─── Manifest ────────────────────────────────────────────────────────────────

// Manifest records what the last sync wrote, per target path.
type Manifest struct {
	Version  int                     `json:"version"`
	LastRun  string                  `json:"last_run,omitempty"`
	SyncedBy string                  `json:"synced_by,omitempty"`
	SyncedAt string                  `json:"synced_at,omitempty"`
	Checksum string                  `json:"checksum,omitempty"`
	Targets  map[string]TargetRecord `json:"targets"`
}

// TargetRecord is the per-target manifest entry.
type TargetRecord struct {
	Checksum string `json:"checksum"`
	SyncedAt string `json:"synced_at"`
}

// ─── Syncer ──────────────────────────────────────────────────────────────────

// Syncer copies the canonical file to its targets. Paths in cfg are
// resolved relative to root.
type Syncer struct {
	cfg  config.Config
	root string
}

// New creates a Syncer rooted at the repository directory.
func New(cfg config.Config, root string) *Syncer {
	return &Syncer{cfg: cfg, root: root}
}

// Source returns the absolute path of the canonical file.
func (sy *Syncer) Source() string {
	return sy.abs(sy.cfg.Source)
}

// Sync mirrors the source to every target. A missing or unreadable source
// aborts before any target is touched; per-target write failures are
// collected in the result instead.
func (sy *Syncer) Sync(syncedBy string) (*Result, error) {
	doc, err := rules.Load(sy.Source())
	if err != nil {
		return nil, err
	}

	if syncedBy == "" {
		syncedBy = Username()
	}

	manifest, err := sy.readManifest()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	result := &Result{
		RunID:    uuid.NewString(),
		Source:   sy.cfg.Source,
		Checksum: doc.Checksum,
		SyncedBy: syncedBy,
		SyncedAt: now,
	}

	for _, target := range sy.cfg.Targets {
		tr := TargetResult{Target: target.Name, Path: target.Path}
		dest := sy.abs(target.Path)

		if existing, err := os.ReadFile(dest); err == nil && rules.Checksum(existing) == doc.Checksum {
			tr.State = StateUnchanged
		} else if err := sy.writeTarget(dest, doc.Raw); err != nil {
			tr.State = StateFailed
			tr.Err = err.Error()
		} else {
			tr.State = StateCopied
		}

		if tr.State != StateFailed {
			manifest.Targets[filepath.ToSlash(target.Path)] = TargetRecord{
				Checksum: doc.Checksum,
				SyncedAt: now,
			}
		}
		result.Targets = append(result.Targets, tr)
	}

	manifest.LastRun = result.RunID
	manifest.SyncedBy = syncedBy
	manifest.SyncedAt = now
	manifest.Checksum = doc.Checksum

	if err := sy.writeManifest(manifest); err != nil {
		return nil, err
	}
	return result, nil
}

// Status reports drift without writing anything. The source is read to
// compute the reference checksum; each target is then compared against it.
func (sy *Syncer) Status() (*Result, error) {
	doc, err := rules.Load(sy.Source())
	if err != nil {
		return nil, err
	}

	result := &Result{
		Source:   sy.cfg.Source,
		Checksum: doc.Checksum,
	}

	for _, target := range sy.cfg.Targets {
		tr := TargetResult{Target: target.Name, Path: target.Path}

		existing, err := os.ReadFile(sy.abs(target.Path))
		switch {
		case err != nil && os.IsNotExist(err):
			tr.State = StateMissing
		case err != nil:
			tr.State = StateFailed
			tr.Err = err.Error()
		case rules.Checksum(existing) == doc.Checksum:
			tr.State = StateInSync
		default:
			tr.State = StateDrifted
		}

		result.Targets = append(result.Targets, tr)
	}
	return result, nil
}

// InSync reports whether every target currently matches the source.
func (sy *Syncer) InSync() (bool, error) {
	status, err := sy.Status()
	if err != nil {
		return false, err
	}
	for _, t := range status.Targets {
		if t.State != StateInSync {
			return false, nil
		}
	}
	return true, nil
}

func (sy *Syncer) writeTarget(dest string, data []byte) error {
	if dir := filepath.Dir(dest); dir != "." {
		if err := osMkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	if err := osWriteFile(dest, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return nil
}

func (sy *Syncer) abs(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(sy.root, path)
}

// ─── Manifest I/O ────────────────────────────────────────────────────────────

func (sy *Syncer) manifestPath() string {
	return filepath.Join(sy.root, ManifestDir, "manifest.json")
}

func (sy *Syncer) readManifest() (*Manifest, error) {
	data, err := os.ReadFile(sy.manifestPath())
	if err != nil {
		if os.IsNotExist(err) {
			return &Manifest{Version: 1, Targets: map[string]TargetRecord{}}, nil
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if m.Targets == nil {
		m.Targets = map[string]TargetRecord{}
	}
	return &m, nil
}

func (sy *Syncer) writeManifest(m *Manifest) error {
	if err := osMkdirAll(filepath.Join(sy.root, ManifestDir), 0755); err != nil {
		return fmt.Errorf("create %s: %w", ManifestDir, err)
	}
	data, err := jsonMarshalManifest(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := osWriteFile(sy.manifestPath(), data, 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// Username returns who ran the sync, for manifest attribution.
func Username() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	if u := os.Getenv("USERNAME"); u != "" {
		return u
	}
	hostname, _ := osHostname()
	if hostname != "" {
		return hostname
	}
	return "unknown"
}
