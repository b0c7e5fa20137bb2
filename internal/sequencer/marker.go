package sequencer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Marker records that a step's side effects have been fully applied.
type Marker struct {
	Step        string    `yaml:"step"`
	CompletedAt time.Time `yaml:"completed_at"`
}

// MarkerStore persists completion markers. Mark must be durable before it
// returns: the sequencer proceeds to the next step right after.
type MarkerStore interface {
	Has(step string) (bool, error)
	Mark(step string, at time.Time) error
	List() ([]Marker, error)
	Clear() error
}

const markerSuffix = ".done"

// FileStore keeps one YAML file per completed step under a directory.
type FileStore struct {
	fs  afero.Fs
	dir string
}

// NewFileStore returns a store rooted at dir on fsys.
func NewFileStore(fsys afero.Fs, dir string) *FileStore {
	return &FileStore{fs: fsys, dir: dir}
}

// Dir returns the directory holding the markers.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(step string) string {
	return filepath.Join(s.dir, step+markerSuffix)
}

// Has reports whether a marker exists for step.
func (s *FileStore) Has(step string) (bool, error) {
	ok, err := afero.Exists(s.fs, s.path(step))
	if err != nil {
		return false, fmt.Errorf("failed to stat marker for %s: %w", step, err)
	}
	return ok, nil
}

// Mark writes the marker through a temporary file that is synced and renamed
// into place, so a crash never leaves a half-written marker behind.
func (s *FileStore) Mark(step string, at time.Time) error {
	if err := s.fs.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := yaml.Marshal(Marker{Step: step, CompletedAt: at.UTC()})
	if err != nil {
		return fmt.Errorf("failed to encode marker: %w", err)
	}

	tmp := s.path(step) + ".tmp"
	f, err := s.fs.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create marker for %s: %w", step, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write marker for %s: %w", step, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to sync marker for %s: %w", step, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close marker for %s: %w", step, err)
	}
	if err := s.fs.Rename(tmp, s.path(step)); err != nil {
		return fmt.Errorf("failed to commit marker for %s: %w", step, err)
	}
	return nil
}

// List returns every marker ordered by completion time.
func (s *FileStore) List() ([]Marker, error) {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state directory: %w", err)
	}

	var markers []Marker
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), markerSuffix) {
			continue
		}
		data, err := afero.ReadFile(s.fs, filepath.Join(s.dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read marker %s: %w", e.Name(), err)
		}
		var m Marker
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("failed to decode marker %s: %w", e.Name(), err)
		}
		if m.Step == "" {
			m.Step = strings.TrimSuffix(e.Name(), markerSuffix)
		}
		markers = append(markers, m)
	}
	sortMarkers(markers)
	return markers, nil
}

// Clear removes every marker, including leftovers of interrupted writes.
// Other files in the directory are kept.
func (s *FileStore) Clear() error {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read state directory: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !(strings.HasSuffix(name, markerSuffix) || strings.HasSuffix(name, markerSuffix+".tmp")) {
			continue
		}
		if err := s.fs.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove marker %s: %w", name, err)
		}
	}
	return nil
}

// Remove deletes the marker of a single step, forcing it to run again.
func (s *FileStore) Remove(step string) error {
	err := s.fs.Remove(s.path(step))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove marker for %s: %w", step, err)
	}
	return nil
}

// MemoryStore is a process-local MarkerStore.
type MemoryStore struct {
	mu      sync.Mutex
	markers map[string]time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{markers: make(map[string]time.Time)}
}

func (s *MemoryStore) Has(step string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.markers[step]
	return ok, nil
}

func (s *MemoryStore) Mark(step string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markers[step] = at
	return nil
}

func (s *MemoryStore) List() ([]Marker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	markers := make([]Marker, 0, len(s.markers))
	for step, at := range s.markers {
		markers = append(markers, Marker{Step: step, CompletedAt: at})
	}
	sortMarkers(markers)
	return markers, nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markers = make(map[string]time.Time)
	return nil
}

func sortMarkers(markers []Marker) {
	sort.Slice(markers, func(i, j int) bool {
		if markers[i].CompletedAt.Equal(markers[j].CompletedAt) {
			return markers[i].Step < markers[j].Step
		}
		return markers[i].CompletedAt.Before(markers[j].CompletedAt)
	})
}
