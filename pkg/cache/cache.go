// Package cache implements component C7, the content-addressed result
// cache: a SHA-256 digest over every loaded framework, data file, and
// extra query, used as a key under which a converged store snapshot is
// persisted so a second run with identical inputs can skip inference
// entirely.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/gitrdm/rdfinfer/pkg/framework"
	"github.com/gitrdm/rdfinfer/pkg/term"
)

// DefaultDir is the cache directory used when the caller does not
// specify one: a rdfinfer-cache subdirectory of the OS temp directory
// (SPEC_FULL.md §3), rather than a hardcoded "/tmp" as in the original.
func DefaultDir() string {
	return filepath.Join(os.TempDir(), "rdfinfer-cache")
}

// Manager persists and retrieves converged inference results, keyed by a
// hash of the inputs that produced them.
type Manager struct {
	dir string
}

// New constructs a Manager rooted at dir, creating it if necessary. An
// empty dir defaults to DefaultDir().
func New(dir string) (*Manager, error) {
	if dir == "" {
		dir = DefaultDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: creating cache dir %q: %w", dir, err)
	}
	return &Manager{dir: dir}, nil
}

// ExtraQuery is an additional SPARQL CONSTRUCT or UPDATE query supplied
// outside of any framework bundle.
type ExtraQuery struct {
	Query string
	Name  string
}

// ComputeHash hashes every framework (in execution order), every user
// data file path and its content (in sorted path order), and every extra
// query (in the order supplied), producing the SHA-256 hex digest used
// as this run's cache key.
func ComputeHash(frameworks []*framework.Framework, dataFiles []string, extraQueries, updateQueries []ExtraQuery) (string, error) {
	h := sha256.New()

	for _, fw := range framework.Ordered(frameworks) {
		hashFramework(h, fw)
	}

	sortedData := append([]string(nil), dataFiles...)
	sort.Strings(sortedData)
	for _, path := range sortedData {
		h.Write([]byte(path))
		content, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("cache: reading data file %q: %w", path, err)
		}
		h.Write(content)
	}

	for _, q := range extraQueries {
		h.Write([]byte(q.Query))
		h.Write([]byte(q.Name))
	}
	for _, q := range updateQueries {
		h.Write([]byte(q.Query))
		h.Write([]byte(q.Name))
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func hashFramework(h interface{ Write([]byte) (int, error) }, fw *framework.Framework) {
	h.Write([]byte(fw.Name))
	h.Write([]byte(fw.Tier.String()))
	h.Write([]byte(fw.Version))

	for _, kind := range fw.SortedFileKinds() {
		files := append([]*framework.IncludedFile(nil), fw.Files[kind]...)
		sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
		for _, f := range files {
			h.Write([]byte(f.Path))
			h.Write([]byte(f.Kind.String()))
			h.Write(f.Content)
		}
	}
}

// Path returns the on-disk path for a given content hash's cached
// snapshot.
func (m *Manager) Path(contentHash string) string {
	return filepath.Join(m.dir, "cache-"+contentHash+".db")
}

// Exists reports whether a cache entry for contentHash is present.
func (m *Manager) Exists(contentHash string) bool {
	_, err := os.Stat(m.Path(contentHash))
	return err == nil
}

// Save persists quads as the cached result for contentHash, writing to a
// temporary file first and renaming into place so a concurrent reader
// never observes a partially written cache file.
func (m *Manager) Save(contentHash string, quads []term.Quad) error {
	sorted := append([]term.Quad(nil), quads...)
	sort.Sort(term.ByNQuad(sorted))

	finalPath := m.Path(contentHash)
	tempPath := finalPath + ".tmp"

	f, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("cache: creating temp file %q: %w", tempPath, err)
	}
	for _, q := range sorted {
		if _, err := f.WriteString(q.NQuad() + "\n"); err != nil {
			f.Close()
			os.Remove(tempPath)
			return fmt.Errorf("cache: writing %q: %w", tempPath, err)
		}
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("cache: closing %q: %w", tempPath, err)
	}

	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("cache: renaming %q to %q: %w", tempPath, finalPath, err)
	}
	return nil
}

// Load reads back a cache entry written by Save. It returns the raw
// N-Quads lines; parsing them into term.Quad values is the caller's
// responsibility (the store facade is the appropriate place to parse
// N-Quads text, and this package has no dependency on a quad parser).
func (m *Manager) Load(contentHash string) ([]string, error) {
	path := m.Path(contentHash)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cache: reading %q: %w", path, err)
	}
	return splitNonEmptyLines(string(data)), nil
}

func splitNonEmptyLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			if line := s[start:i]; line != "" {
				lines = append(lines, line)
			}
			start = i + 1
		}
	}
	if start < len(s) {
		if line := s[start:]; line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// Clear removes the entire cache directory and recreates it empty.
func (m *Manager) Clear() error {
	if err := os.RemoveAll(m.dir); err != nil {
		return fmt.Errorf("cache: clearing %q: %w", m.dir, err)
	}
	return os.MkdirAll(m.dir, 0o755)
}
