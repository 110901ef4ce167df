// Package hooks points a repository's git hooks path at the shared
// .githooks directory.
//
// Installation is a single `git config core.hooksPath` call, so running it
// twice is a no-op. The hooks directory itself is not validated — a missing
// directory only produces a warning, matching the sync scripts this
// replaces.
package hooks

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

var (
	lookGit = func() (string, error) { return exec.LookPath("git") }
	runGit  = func(gitBin, repoDir string, args ...string) ([]byte, error) {
		cmd := exec.Command(gitBin, append([]string{"-C", repoDir}, args...)...)
		return cmd.CombinedOutput()
	}
)

// Result holds the outcome of an installation.
type Result struct {
	HooksPath  string
	AlreadySet bool
	Warning    string
}

// Install sets core.hooksPath to hooksDir in the repository at repoDir.
func Install(repoDir, hooksDir string) (*Result, error) {
	gitBin, err := lookGit()
	if err != nil {
		return nil, fmt.Errorf("git not found in PATH: %w", err)
	}

	result := &Result{HooksPath: hooksDir}

	// `git config --get` exits 1 when the key is unset; that's not an error.
	if out, err := runGit(gitBin, repoDir, "config", "--get", "core.hooksPath"); err == nil {
		if strings.TrimSpace(string(out)) == hooksDir {
			result.AlreadySet = true
		}
	}

	out, err := runGit(gitBin, repoDir, "config", "core.hooksPath", hooksDir)
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("git config core.hooksPath: %s", msg)
	}

	if _, err := os.Stat(filepath.Join(repoDir, hooksDir)); err != nil {
		result.Warning = fmt.Sprintf("hooks directory %s does not exist yet", hooksDir)
	}

	return result, nil
}

// Installed returns the current core.hooksPath value, or "" when unset.
func Installed(repoDir string) (string, error) {
	gitBin, err := lookGit()
	if err != nil {
		return "", fmt.Errorf("git not found in PATH: %w", err)
	}

	out, err := runGit(gitBin, repoDir, "config", "--get", "core.hooksPath")
	if err != nil {
		// Unset key — git exits nonzero with empty output.
		if strings.TrimSpace(string(out)) == "" {
			return "", nil
		}
		return "", fmt.Errorf("git config --get core.hooksPath: %s", strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}
