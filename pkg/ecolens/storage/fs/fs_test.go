package fs

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/greenlight-eco/ecolens/pkg/ecolens"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(Config{
		BaseDir: t.TempDir(),
		Slots:   []string{"uploads", "product1"},
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return store
}

func TestNewRequiresBaseDir(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for empty base directory")
	}
}

func TestNewCreatesSlotDirectories(t *testing.T) {
	base := t.TempDir()
	_, err := New(Config{BaseDir: base, Slots: []string{"uploads", "product1"}})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	for _, slot := range []string{"uploads", "product1"} {
		info, err := os.Stat(filepath.Join(base, slot))
		if err != nil || !info.IsDir() {
			t.Errorf("slot directory %s missing: %v", slot, err)
		}
	}

	// Creating the store again over the same directory must succeed.
	if _, err := New(Config{BaseDir: base, Slots: []string{"uploads"}}); err != nil {
		t.Errorf("second New() over existing directories failed: %v", err)
	}
}

func TestWriteListOpen(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	content := "fake image bytes"
	if err := store.Write(ctx, "uploads", "front-1-1.jpg", strings.NewReader(content)); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}

	entries, err := store.List(ctx, "uploads")
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("List() returned %d entries, want 1", len(entries))
	}
	if entries[0].Name != "front-1-1.jpg" {
		t.Errorf("entry name = %q, want front-1-1.jpg", entries[0].Name)
	}
	if entries[0].Size != int64(len(content)) {
		t.Errorf("entry size = %d, want %d", entries[0].Size, len(content))
	}

	rc, err := store.Open(ctx, "uploads", "front-1-1.jpg")
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("reading opened file failed: %v", err)
	}
	if string(data) != content {
		t.Errorf("read %q, want %q", data, content)
	}
}

func TestListSkipsDirectories(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := os.Mkdir(filepath.Join(store.SlotDir("uploads"), "nested"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := store.Write(ctx, "uploads", "back-1-1.png", strings.NewReader("x")); err != nil {
		t.Fatal(err)
	}

	entries, err := store.List(ctx, "uploads")
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "back-1-1.png" {
		t.Errorf("List() = %v, want just back-1-1.png", entries)
	}
}

func TestStatModTime(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.Write(ctx, "uploads", "front-1-1.jpg", strings.NewReader("x")); err != nil {
		t.Fatal(err)
	}

	want := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	path := filepath.Join(store.SlotDir("uploads"), "front-1-1.jpg")
	if err := os.Chtimes(path, want, want); err != nil {
		t.Fatal(err)
	}

	entry, err := store.Stat(ctx, "uploads", "front-1-1.jpg")
	if err != nil {
		t.Fatalf("Stat() failed: %v", err)
	}
	if !entry.ModTime.Equal(want) {
		t.Errorf("ModTime = %v, want %v", entry.ModTime, want)
	}
}

func TestMissingFileErrors(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if _, err := store.Stat(ctx, "uploads", "nope.jpg"); !errors.Is(err, ecolens.ErrFileNotFound) {
		t.Errorf("Stat() error = %v, want ErrFileNotFound", err)
	}
	if _, err := store.Open(ctx, "uploads", "nope.jpg"); !errors.Is(err, ecolens.ErrFileNotFound) {
		t.Errorf("Open() error = %v, want ErrFileNotFound", err)
	}
	if err := store.Delete(ctx, "uploads", "nope.jpg"); !errors.Is(err, ecolens.ErrFileNotFound) {
		t.Errorf("Delete() error = %v, want ErrFileNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.Write(ctx, "uploads", "front-1-1.jpg", strings.NewReader("x")); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, "uploads", "front-1-1.jpg"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}

	entries, err := store.List(ctx, "uploads")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("List() after delete returned %d entries, want 0", len(entries))
	}
}
