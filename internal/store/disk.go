package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/4000degrees/airmq-wind-server/internal/wind"
)

// artifactExt is the suffix of published dataset files. Anything else in
// the directory (temp files, stray downloads) is not a cache record.
const artifactExt = ".json"

// DiskStore is a concurrency-safe dataset cache keyed by cycle, one JSON
// artifact file per cycle named by its canonical timestamp.
//
// Writes go to a temp file in the same directory and are renamed into
// place, so readers and the eviction pass only ever see fully published
// artifacts.
type DiskStore struct {
	mu  sync.RWMutex
	dir string
}

// NewDiskStore creates a store rooted at dir. The directory is created
// lazily on first write.
func NewDiskStore(dir string) *DiskStore {
	return &DiskStore{dir: dir}
}

// Dir returns the dataset directory.
func (s *DiskStore) Dir() string {
	return s.dir
}

func (s *DiskStore) path(c wind.Cycle) string {
	return filepath.Join(s.dir, c.Stamp()+artifactExt)
}

// Exists reports whether a published artifact exists for the cycle.
func (s *DiskStore) Exists(c wind.Cycle) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err := os.Stat(s.path(c))
	return err == nil
}

// Read returns the artifact bytes for the cycle, or wind.ErrNotAvailable
// if nothing is published for it.
func (s *DiskStore) Read(c wind.Cycle) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(c))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("cycle %s: %w", c.Stamp(), wind.ErrNotAvailable)
		}
		return nil, fmt.Errorf("read artifact for cycle %s: %w", c.Stamp(), err)
	}
	return data, nil
}

// Write publishes an artifact for the cycle. The artifact is written to a
// temp file and renamed into place so a concurrent reader sees either the
// prior state or the complete new artifact, never a partial one.
func (s *DiskStore) Write(c wind.Cycle, artifact []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create dataset dir: %w", err)
	}

	final := s.path(c)
	tmp := final + ".tmp"

	if err := os.WriteFile(tmp, artifact, 0o644); err != nil {
		return fmt.Errorf("write temp artifact for cycle %s: %w", c.Stamp(), err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("publish artifact for cycle %s: %w", c.Stamp(), err)
	}
	return nil
}

// ListCycles enumerates the cycles with a published artifact. Files that
// do not parse as cycle artifacts are ignored.
func (s *DiskStore) ListCycles() ([]wind.Cycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.listLocked()
}

func (s *DiskStore) listLocked() ([]wind.Cycle, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list dataset dir: %w", err)
	}

	var cycles []wind.Cycle
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		c, ok := cycleForFile(entry.Name())
		if !ok {
			continue
		}
		cycles = append(cycles, c)
	}
	return cycles, nil
}

// EvictExcept deletes every published artifact whose cycle is not in keep
// and returns how many were removed. Temp files from in-progress writes
// are never artifacts, so they are never touched here.
func (s *DiskStore) EvictExcept(keep []wind.Cycle) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keepSet := make(map[string]struct{}, len(keep))
	for _, c := range keep {
		keepSet[c.Stamp()] = struct{}{}
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("list dataset dir: %w", err)
	}

	removed := 0
	var firstErr error
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		c, ok := cycleForFile(entry.Name())
		if !ok {
			continue
		}
		if _, kept := keepSet[c.Stamp()]; kept {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("evict cycle %s: %w", c.Stamp(), err)
			}
			continue
		}
		removed++
	}
	return removed, firstErr
}

// cycleForFile maps a directory entry name to its cycle, if the name is a
// canonical artifact name.
func cycleForFile(name string) (wind.Cycle, bool) {
	if !strings.HasSuffix(name, artifactExt) {
		return wind.Cycle{}, false
	}
	c, err := wind.ParseStamp(strings.TrimSuffix(name, artifactExt))
	if err != nil {
		return wind.Cycle{}, false
	}
	return c, true
}
