package session

import (
	"context"
	"sync"
)

// MemoryStore keeps session records in a map. It doubles as the cache layer
// in front of a durable store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewMemoryStore creates an empty in-memory session store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

func (s *MemoryStore) Save(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.records[rec.ID] = &cp
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return ErrNotFound
	}
	delete(s.records, id)
	return nil
}

// CachedStore fronts a durable store with an in-memory cache so repeated
// session lookups skip the backing store.
type CachedStore struct {
	cache   *MemoryStore
	backing Store
}

// NewCachedStore wraps backing with a memory cache.
func NewCachedStore(backing Store) *CachedStore {
	return &CachedStore{cache: NewMemoryStore(), backing: backing}
}

func (s *CachedStore) Save(ctx context.Context, rec *Record) error {
	if err := s.backing.Save(ctx, rec); err != nil {
		return err
	}
	return s.cache.Save(ctx, rec)
}

func (s *CachedStore) Load(ctx context.Context, id string) (*Record, error) {
	if rec, err := s.cache.Load(ctx, id); err == nil {
		return rec, nil
	}
	rec, err := s.backing.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Save(ctx, rec)
	return rec, nil
}

func (s *CachedStore) Delete(ctx context.Context, id string) error {
	_ = s.cache.Delete(ctx, id)
	return s.backing.Delete(ctx, id)
}
