package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"
)

// ErrInvalidRecord is returned by Set when a record would span more than one line.
var ErrInvalidRecord = errors.New("cache record contains a newline")

// Store is a line-oriented cache rooted in one directory. The directory is
// derived from a namespace and a caller-supplied discriminator, normally the
// working directory of the invocation, so entries never leak between projects.
//
// Writes are not synchronized between processes. Concurrent writers follow
// last-writer-wins; each Set issues the whole entry in a single write.
type Store struct {
	dir string
}

// EntryInfo describes one cache entry on disk.
type EntryInfo struct {
	Path    string
	Exists  bool
	Records int
	Size    int64
	ModTime time.Time
}

// DefaultRoot returns the platform's per-user cache directory.
func DefaultRoot() (string, error) {
	root, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user cache directory: %w", err)
	}
	return root, nil
}

// KeyDir maps namespace+discriminator to a directory under root.
// The key is hashed so that any path, including Windows volume names,
// yields a valid single directory name.
func KeyDir(root, namespace, discriminator string) string {
	sum := sha256.Sum256([]byte(namespace + discriminator))
	return filepath.Join(root, namespace, hex.EncodeToString(sum[:]))
}

// New creates a Store for the given key. Nothing is created on disk until
// the first Set.
func New(root, namespace, discriminator string) *Store {
	return &Store{
		dir: KeyDir(root, namespace, discriminator),
	}
}

// Dir returns the directory holding this store's entries.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

// Get returns the cached lines for name. A missing or empty entry yields an
// empty slice and no error; only a failure to read an existing file is
// reported. Records have no length limit.
func (s *Store) Get(name string) ([]string, error) {
	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache file %s: %w", s.path(name), err)
	}
	if len(data) == 0 {
		return []string{}, nil
	}

	content := strings.TrimSuffix(string(data), "\n")
	return lo.Map(strings.Split(content, "\n"), func(line string, _ int) string {
		return strings.TrimSuffix(line, "\r")
	}), nil
}

// Set replaces the entry for name with lines, one record per line.
// An empty list is never stored: it removes the entry instead, so that an
// empty result always reads back as a miss.
func (s *Store) Set(name string, lines []string) error {
	if len(lines) == 0 {
		return s.Clear(name)
	}

	var buf strings.Builder
	for _, line := range lines {
		if strings.ContainsAny(line, "\r\n") {
			return fmt.Errorf("%w: %q", ErrInvalidRecord, line)
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	if err := os.WriteFile(s.path(name), []byte(buf.String()), 0644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	return nil
}

// Clear removes the entry for name. Removing a missing entry is a no-op.
func (s *Store) Clear(name string) error {
	err := os.Remove(s.path(name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete cache file: %w", err)
	}
	return nil
}

// Stat reports on the entry for name without modifying it.
func (s *Store) Stat(name string) (EntryInfo, error) {
	info := EntryInfo{Path: s.path(name)}

	fileInfo, err := os.Stat(info.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return info, nil
	}
	if err != nil {
		return info, fmt.Errorf("failed to stat cache file: %w", err)
	}

	lines, err := s.Get(name)
	if err != nil {
		return info, err
	}

	info.Exists = true
	info.Records = len(lines)
	info.Size = fileInfo.Size()
	info.ModTime = fileInfo.ModTime()
	return info, nil
}
