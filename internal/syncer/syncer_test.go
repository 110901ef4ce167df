package syncer

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vibesync/vibesync/internal/config"
	"github.com/vibesync/vibesync/internal/rules"
)

func testSyncer(t *testing.T, content string) (*Syncer, string) {
	t.Helper()
	root := t.TempDir()
	cfg := config.DefaultConfig()

	if content != "" {
		src := filepath.Join(root, cfg.Source)
		if err := os.MkdirAll(filepath.Dir(src), 0755); err != nil {
			t.Fatalf("mkdir prompts: %v", err)
		}
		if err := os.WriteFile(src, []byte(content), 0644); err != nil {
			t.Fatalf("write source: %v", err)
		}
	}
	return New(cfg, root), root
}

func readTarget(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, rel))
	if err != nil {
		t.Fatalf("read target %s: %v", rel, err)
	}
	return string(data)
}

func TestSyncCopiesSourceToEveryTarget(t *testing.T) {
	sy, root := testSyncer(t, "X")

	result, err := sy.Sync("tester")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}

	if result.Copied() != 4 || result.Failed() != 0 {
		t.Fatalf("expected 4 copied targets, got copied=%d failed=%d", result.Copied(), result.Failed())
	}

	for _, rel := range []string{
		"copilot-instructions.md",
		"claude-instructions.md",
		"cursor-rules.md",
		filepath.Join(".github", "copilot-instructions.md"),
	} {
		if got := readTarget(t, root, rel); got != "X" {
			t.Fatalf("target %s = %q, want %q", rel, got, "X")
		}
	}

	if result.Checksum != rules.Checksum([]byte("X")) {
		t.Fatalf("result checksum mismatch")
	}
	if result.RunID == "" || result.SyncedBy != "tester" {
		t.Fatalf("run metadata missing: %+v", result)
	}
}

func TestSyncIsIdempotent(t *testing.T) {
	sy, root := testSyncer(t, "stable content\n")

	if _, err := sy.Sync(""); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	before := readTarget(t, root, "cursor-rules.md")

	second, err := sy.Sync("")
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if second.Unchanged() != 4 || second.Copied() != 0 {
		t.Fatalf("second run should be all unchanged, got copied=%d unchanged=%d",
			second.Copied(), second.Unchanged())
	}
	if after := readTarget(t, root, "cursor-rules.md"); after != before {
		t.Fatalf("idempotent sync changed target contents")
	}
}

func TestSyncOverwritesDriftedTargets(t *testing.T) {
	sy, root := testSyncer(t, "canonical")

	if err := os.WriteFile(filepath.Join(root, "claude-instructions.md"), []byte("stale edit"), 0644); err != nil {
		t.Fatalf("seed drifted target: %v", err)
	}

	result, err := sy.Sync("")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if result.Copied() != 4 {
		t.Fatalf("expected all targets copied, got %d", result.Copied())
	}
	if got := readTarget(t, root, "claude-instructions.md"); got != "canonical" {
		t.Fatalf("drifted target not overwritten: %q", got)
	}
}

func TestSyncMissingSourceWritesNothing(t *testing.T) {
	sy, root := testSyncer(t, "")

	_, err := sy.Sync("")
	if !errors.Is(err, rules.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	for _, rel := range []string{"copilot-instructions.md", "claude-instructions.md", "cursor-rules.md"} {
		if _, statErr := os.Stat(filepath.Join(root, rel)); !os.IsNotExist(statErr) {
			t.Fatalf("target %s should not exist after failed sync", rel)
		}
	}
	if _, statErr := os.Stat(filepath.Join(root, ManifestDir)); !os.IsNotExist(statErr) {
		t.Fatalf("manifest should not be written after failed sync")
	}
}

func TestSyncCollectsPerTargetFailures(t *testing.T) {
	sy, root := testSyncer(t, "content")

	oldWrite := osWriteFile
	t.Cleanup(func() { osWriteFile = oldWrite })

	osWriteFile = func(name string, data []byte, perm os.FileMode) error {
		if strings.Contains(name, "cursor-rules.md") {
			return os.ErrPermission
		}
		return oldWrite(name, data, perm)
	}

	result, err := sy.Sync("")
	if err != nil {
		t.Fatalf("sync should not abort on a target failure: %v", err)
	}
	if result.Failed() != 1 || result.Copied() != 3 {
		t.Fatalf("expected 1 failed + 3 copied, got failed=%d copied=%d", result.Failed(), result.Copied())
	}

	var failed *TargetResult
	for i := range result.Targets {
		if result.Targets[i].State == StateFailed {
			failed = &result.Targets[i]
		}
	}
	if failed == nil || failed.Target != "cursor" || failed.Err == "" {
		t.Fatalf("failure not attributed to cursor target: %+v", result.Targets)
	}

	// The other targets were still written.
	if got := readTarget(t, root, "copilot-instructions.md"); got != "content" {
		t.Fatalf("surviving target not written: %q", got)
	}
}

func TestSyncUpdatesManifest(t *testing.T) {
	sy, root := testSyncer(t, "manifest me")

	result, err := sy.Sync("alice")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, ManifestDir, "manifest.json"))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("parse manifest: %v", err)
	}
	if m.Version != 1 || m.LastRun != result.RunID || m.SyncedBy != "alice" {
		t.Fatalf("manifest metadata wrong: %+v", m)
	}
	if len(m.Targets) != 4 {
		t.Fatalf("expected 4 manifest target entries, got %d", len(m.Targets))
	}
	entry, ok := m.Targets[".github/copilot-instructions.md"]
	if !ok {
		t.Fatalf("manifest keys should use slash paths: %v", m.Targets)
	}
	if entry.Checksum != result.Checksum {
		t.Fatalf("manifest checksum mismatch")
	}
}

func TestStatusReportsDrift(t *testing.T) {
	sy, root := testSyncer(t, "v1")

	if _, err := sy.Sync(""); err != nil {
		t.Fatalf("sync: %v", err)
	}

	// One target drifts, one disappears.
	if err := os.WriteFile(filepath.Join(root, "cursor-rules.md"), []byte("edited by hand"), 0644); err != nil {
		t.Fatalf("drift target: %v", err)
	}
	if err := os.Remove(filepath.Join(root, "claude-instructions.md")); err != nil {
		t.Fatalf("remove target: %v", err)
	}

	status, err := sy.Status()
	if err != nil {
		t.Fatalf("status: %v", err)
	}

	states := map[string]TargetState{}
	for _, tr := range status.Targets {
		states[tr.Target] = tr.State
	}
	if states["copilot"] != StateInSync {
		t.Fatalf("copilot should be in sync, got %s", states["copilot"])
	}
	if states["cursor"] != StateDrifted {
		t.Fatalf("cursor should be drifted, got %s", states["cursor"])
	}
	if states["claude"] != StateMissing {
		t.Fatalf("claude should be missing, got %s", states["claude"])
	}

	inSync, err := sy.InSync()
	if err != nil {
		t.Fatalf("in sync: %v", err)
	}
	if inSync {
		t.Fatalf("tree with drift must not report in sync")
	}
}

func TestStatusMissingSource(t *testing.T) {
	sy, _ := testSyncer(t, "")
	if _, err := sy.Status(); !errors.Is(err, rules.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUsernameFallbacks(t *testing.T) {
	t.Setenv("USER", "")
	t.Setenv("USERNAME", "")

	oldHostname := osHostname
	t.Cleanup(func() { osHostname = oldHostname })

	osHostname = func() (string, error) { return "buildbox", nil }
	if got := Username(); got != "buildbox" {
		t.Fatalf("expected hostname fallback, got %q", got)
	}

	osHostname = func() (string, error) { return "", os.ErrInvalid }
	if got := Username(); got != "unknown" {
		t.Fatalf("expected unknown fallback, got %q", got)
	}

	t.Setenv("USER", "carol")
	if got := Username(); got != "carol" {
		t.Fatalf("expected USER env, got %q", got)
	}
}
