// Package config holds the vibesync configuration.
//
// Defaults mirror the canonical repository layout: one source-of-truth
// instructions file under prompts/, mirrored verbatim to the locations each
// assistant reads. A .vibesync.yaml at the repo root overrides any of it.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file looked up at the repository root.
const DefaultFile = ".vibesync.yaml"

// Target is a single mirror destination for the canonical file.
type Target struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

// Config is the full tool configuration.
type Config struct {
	// Source is the canonical instructions file, relative to the repo root.
	Source string `yaml:"source"`

	// Targets are the mirror destinations, written in order.
	Targets []Target `yaml:"targets"`

	// HooksDir is the directory core.hooksPath is pointed at.
	HooksDir string `yaml:"hooks_dir"`

	// DataDir is where the sync history database lives.
	DataDir string `yaml:"data_dir"`

	// Debounce is how long the watcher waits for writes to settle.
	Debounce time.Duration `yaml:"debounce"`
}

// DefaultConfig returns the configuration used when no .vibesync.yaml exists.
// The source and target set match the repository's sync contract exactly.
func DefaultConfig() Config {
	return Config{
		Source: filepath.Join("prompts", "vibe-coding-instructions.md"),
		Targets: []Target{
			{Name: "copilot", Path: "copilot-instructions.md"},
			{Name: "claude", Path: "claude-instructions.md"},
			{Name: "cursor", Path: "cursor-rules.md"},
			{Name: "github-copilot", Path: filepath.Join(".github", "copilot-instructions.md")},
		},
		HooksDir: ".githooks",
		DataDir:  defaultDataDir(),
		Debounce: 500 * time.Millisecond,
	}
}

// Load reads the config file at path, filling unset fields from
// DefaultConfig. A missing file is not an error — defaults apply.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	if file.Source != "" {
		cfg.Source = file.Source
	}
	if len(file.Targets) > 0 {
		cfg.Targets = file.Targets
	}
	if file.HooksDir != "" {
		cfg.HooksDir = file.HooksDir
	}
	if file.DataDir != "" {
		cfg.DataDir = file.DataDir
	}
	if file.Debounce > 0 {
		cfg.Debounce = file.Debounce
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the config invariants: a source, at least one target,
// no duplicate target paths, and no target that shadows the source.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Source, validation.Required),
		validation.Field(&c.Targets,
			validation.Required.Error("at least one target is required"),
			validation.By(c.checkTargets),
		),
		validation.Field(&c.HooksDir, validation.Required),
	)
}

func (c Config) checkTargets(value any) error {
	targets, _ := value.([]Target)
	seen := make(map[string]string, len(targets))
	for _, t := range targets {
		if t.Path == "" {
			return fmt.Errorf("target %q has no path", t.Name)
		}
		clean := filepath.Clean(t.Path)
		if clean == filepath.Clean(c.Source) {
			return fmt.Errorf("target %q points at the source file", t.Name)
		}
		if prev, ok := seen[clean]; ok {
			return fmt.Errorf("targets %q and %q share path %s", prev, t.Name, clean)
		}
		seen[clean] = t.Name
	}
	return nil
}

// TargetNames returns the configured target names in order.
func (c Config) TargetNames() []string {
	names := make([]string, 0, len(c.Targets))
	for _, t := range c.Targets {
		names = append(names, t.Name)
	}
	return names
}

func defaultDataDir() string {
	if dir := os.Getenv("VIBESYNC_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".vibesync-data"
	}
	return filepath.Join(home, ".vibesync")
}
