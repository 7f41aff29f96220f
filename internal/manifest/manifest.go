// Package manifest persists the mapping from source file paths to their
// last-ingested fingerprint and chunk IDs. It is the single source of truth
// for whether a file's current on-disk content is already represented in the
// vector index.
package manifest

import (
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Entry records what the index currently holds for one source file.
type Entry struct {
	Fingerprint string    `json:"fingerprint"`
	ChunkIDs    []string  `json:"chunk_ids"`
	IndexedAt   time.Time `json:"indexed_at"`
}

// Store is a mutex-guarded manifest backed by a JSON file. Save writes to a
// temp file and renames it into place, so a crash mid-write never corrupts
// previously committed entries.
type Store struct {
	path string

	mu      sync.Mutex
	entries map[string]Entry
}

// Load reads the manifest at path. A missing or unreadable file starts an
// empty manifest (forcing a full rescan) instead of failing the run.
func Load(path string, warn func(msg string, err error)) *Store {
	s := &Store{path: path, entries: make(map[string]Entry)}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) && warn != nil {
			warn("manifest unreadable, starting empty", err)
		}
		return s
	}
	if err := json.Unmarshal(data, &s.entries); err != nil {
		if warn != nil {
			warn("manifest corrupt, starting empty", err)
		}
		s.entries = make(map[string]Entry)
	}
	return s
}

// Get returns the entry for a path, if present.
func (s *Store) Get(path string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[path]
	return e, ok
}

// Put records or replaces the entry for a path.
func (s *Store) Put(path string, e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[path] = e
}

// Remove deletes the entry for a path.
func (s *Store) Remove(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, path)
}

// Paths returns all recorded source paths, sorted.
func (s *Store) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths := make([]string, 0, len(s.entries))
	for p := range s.entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Len returns the number of recorded entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Clear drops all entries. Used by reset mode.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]Entry)
}

// Save atomically persists the manifest: write to a temp file in the same
// directory, then rename over the target.
func (s *Store) Save() error {
	s.mu.Lock()
	data, err := json.MarshalIndent(s.entries, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create manifest dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".manifest-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp manifest: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp manifest: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace manifest: %w", err)
	}
	return nil
}

// fingerprint hashing reads at most this much from each end of large files.
const (
	fullHashLimit = 16 << 20 // 16 MiB
	edgeHashSize  = 1 << 20  // 1 MiB
)

// Fingerprint returns a content signature that changes on any modification:
// size, mtime and a SHA-1 over the content (head+tail only for large files,
// to keep scans fast).
func Fingerprint(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	size := info.Size()
	mtime := info.ModTime().UnixNano()

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha1.New()
	if size <= fullHashLimit {
		if _, err := io.Copy(h, f); err != nil {
			return "", fmt.Errorf("hash %s: %w", path, err)
		}
	} else {
		if _, err := io.CopyN(h, f, edgeHashSize); err != nil {
			return "", fmt.Errorf("hash head of %s: %w", path, err)
		}
		if _, err := f.Seek(size-edgeHashSize, io.SeekStart); err != nil {
			return "", fmt.Errorf("seek tail of %s: %w", path, err)
		}
		if _, err := io.Copy(h, f); err != nil {
			return "", fmt.Errorf("hash tail of %s: %w", path, err)
		}
	}

	return fmt.Sprintf("%d:%d:%x", size, mtime, h.Sum(nil)), nil
}
