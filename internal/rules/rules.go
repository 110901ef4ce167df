// Package rules loads instruction documents from the prompts directory.
//
// A document is a Markdown file with optional YAML frontmatter. The mirror
// copies are always byte-for-byte, so the checksum covers the raw file
// including the frontmatter block.
package rules

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/adrg/frontmatter"
)

// ErrNotFound is returned when the requested document does not exist.
var ErrNotFound = errors.New("instruction file not found")

// FrontMatter is the metadata block at the top of a document.
type FrontMatter struct {
	Title       string         `yaml:"title"`
	Description string         `yaml:"description"`
	Tags        []string       `yaml:"tags"`
	Version     string         `yaml:"version"`
	Updated     time.Time      `yaml:"updated"`
	Custom      map[string]any `yaml:",inline"`
}

// Document is a loaded instruction file.
type Document struct {
	Path     string
	Meta     FrontMatter
	Raw      []byte // full file, exactly what gets mirrored
	Body     []byte // markdown without the frontmatter block
	Checksum string // hex SHA-256 of Raw
	Modified time.Time
}

// Title returns the frontmatter title, falling back to the file name.
func (d *Document) Title() string {
	if d.Meta.Title != "" {
		return d.Meta.Title
	}
	return strings.TrimSuffix(filepath.Base(d.Path), filepath.Ext(d.Path))
}

// Load reads and parses a single document.
func Load(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	var meta FrontMatter
	body, err := frontmatter.Parse(bytes.NewReader(raw), &meta)
	if err != nil {
		return nil, fmt.Errorf("parse frontmatter in %s: %w", path, err)
	}

	return &Document{
		Path:     path,
		Meta:     meta,
		Raw:      raw,
		Body:     body,
		Checksum: Checksum(raw),
		Modified: info.ModTime(),
	}, nil
}

// LoadDir loads every .md document directly under dir, sorted by path.
func LoadDir(dir string) ([]*Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, dir)
		}
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	var docs []*Document
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		doc, err := Load(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	return docs, nil
}

// Checksum returns the hex SHA-256 of data.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
