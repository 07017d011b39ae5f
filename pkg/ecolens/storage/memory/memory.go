package memory

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/greenlight-eco/ecolens/pkg/ecolens"
)

type object struct {
	data    []byte
	modTime time.Time
}

// Store is an in-memory implementation of the ecolens.SlotStore interface.
// It exists for tests; SetModTime makes eviction order controllable.
type Store struct {
	mu    sync.RWMutex
	slots map[string]map[string]object
	now   func() time.Time
}

// New creates a new in-memory slot store
func New() *Store {
	return &Store{
		slots: make(map[string]map[string]object),
		now:   time.Now,
	}
}

// SetClock overrides the time source used to timestamp writes.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// SetModTime rewrites the stored modification time of one file.
func (s *Store) SetModTime(slot, name string, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if files, ok := s.slots[slot]; ok {
		if obj, ok := files[name]; ok {
			obj.modTime = t
			files[name] = obj
		}
	}
}

// List returns every file in the slot, ordered by name for determinism.
func (s *Store) List(ctx context.Context, slot string) ([]ecolens.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files := s.slots[slot]
	entries := make([]ecolens.Entry, 0, len(files))
	for name, obj := range files {
		entries = append(entries, ecolens.Entry{
			Name:    name,
			Size:    int64(len(obj.data)),
			ModTime: obj.modTime,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Stat returns the entry for a single file
func (s *Store) Stat(ctx context.Context, slot, name string) (*ecolens.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.slots[slot][name]
	if !ok {
		return nil, ecolens.ErrFileNotFound
	}
	return &ecolens.Entry{
		Name:    name,
		Size:    int64(len(obj.data)),
		ModTime: obj.modTime,
	}, nil
}

// Write stores a file in memory
func (s *Store) Write(ctx context.Context, slot, name string, reader io.Reader) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.slots[slot] == nil {
		s.slots[slot] = make(map[string]object)
	}
	s.slots[slot][name] = object{data: data, modTime: s.now()}
	return nil
}

// Open reads a stored file
func (s *Store) Open(ctx context.Context, slot, name string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.slots[slot][name]
	if !ok {
		return nil, ecolens.ErrFileNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// Delete removes a file
func (s *Store) Delete(ctx context.Context, slot, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.slots[slot][name]; !ok {
		return ecolens.ErrFileNotFound
	}
	delete(s.slots[slot], name)
	return nil
}
