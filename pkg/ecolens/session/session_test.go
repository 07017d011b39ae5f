package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord(id string) *Record {
	return &Record{
		ID:            id,
		Slot:          "uploads",
		CreatedAt:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		FrontURL:      "http://localhost:5001/uploads/front-1-1.jpg",
		ExtractedData: json.RawMessage(`{"product_name":"Oat Milk"}`),
	}
}

func TestNewID(t *testing.T) {
	id := NewID()
	assert.True(t, strings.HasPrefix(id, "session_"))
	assert.True(t, ValidID(id))

	// IDs must not repeat across calls.
	assert.NotEqual(t, id, NewID())
}

func TestValidID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"session_123_abcd1234", true},
		{"", false},
		{"../etc/passwd", false},
		{"a b", false},
		{"a/b", false},
		{"a\\b", false},
		{strings.Repeat("x", 129), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.valid, ValidID(tt.id), "ValidID(%q)", tt.id)
	}
}

// roundTrip exercises the Store contract shared by every implementation.
func roundTrip(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Load(ctx, "session_1_missing")
	assert.ErrorIs(t, err, ErrNotFound)

	rec := testRecord("session_1_abcd1234")
	require.NoError(t, store.Save(ctx, rec))

	loaded, err := store.Load(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, loaded.ID)
	assert.Equal(t, rec.Slot, loaded.Slot)
	assert.JSONEq(t, string(rec.ExtractedData), string(loaded.ExtractedData))

	// Saving again overwrites.
	rec.BackURL = "http://localhost:5001/uploads/back-2-2.jpg"
	require.NoError(t, store.Save(ctx, rec))
	loaded, err = store.Load(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.BackURL, loaded.BackURL)

	require.NoError(t, store.Delete(ctx, rec.ID))
	_, err = store.Load(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, rec.ID), ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	roundTrip(t, NewMemoryStore())
}

func TestMemoryStoreCopiesRecords(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	rec := testRecord("session_1_abcd1234")
	require.NoError(t, store.Save(ctx, rec))

	// Mutating the saved record must not affect the stored copy.
	rec.Slot = "product1"
	loaded, err := store.Load(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "uploads", loaded.Slot)
}

func TestFSStore(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	roundTrip(t, store)
}

func TestFSStoreRejectsInvalidIDs(t *testing.T) {
	ctx := context.Background()
	store, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	rec := testRecord("../escape")
	assert.Error(t, store.Save(ctx, rec))

	_, err = store.Load(ctx, "../escape")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCachedStore(t *testing.T) {
	backing, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	roundTrip(t, NewCachedStore(backing))
}

func TestCachedStoreBackfillsFromBacking(t *testing.T) {
	ctx := context.Background()
	backing := NewMemoryStore()

	// A record written straight to the backing store is still visible
	// through a fresh cache, as after a process restart.
	rec := testRecord("session_1_abcd1234")
	require.NoError(t, backing.Save(ctx, rec))

	cached := NewCachedStore(backing)
	loaded, err := cached.Load(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, loaded.ID)

	// Backing loss after a cache hit does not lose the record.
	require.NoError(t, backing.Delete(ctx, rec.ID))
	loaded, err = cached.Load(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, loaded.ID)
}

func TestCachedStoreSaveFailureSkipsCache(t *testing.T) {
	ctx := context.Background()
	cached := NewCachedStore(failingStore{})

	rec := testRecord("session_1_abcd1234")
	assert.Error(t, cached.Save(ctx, rec))

	_, err := cached.Load(ctx, rec.ID)
	assert.Error(t, err)
}

type failingStore struct{}

func (failingStore) Save(ctx context.Context, rec *Record) error { return errors.New("backing down") }
func (failingStore) Load(ctx context.Context, id string) (*Record, error) {
	return nil, errors.New("backing down")
}
func (failingStore) Delete(ctx context.Context, id string) error { return errors.New("backing down") }
