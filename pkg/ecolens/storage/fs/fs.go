package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/greenlight-eco/ecolens/pkg/ecolens"
)

// Store is a filesystem implementation of the ecolens.SlotStore interface.
// Each slot is a directory under the base directory; modification time is
// taken from the filesystem and drives eviction order.
type Store struct {
	baseDir string
}

// Config options for the filesystem store
type Config struct {
	BaseDir string   // Base directory holding one subdirectory per slot
	Slots   []string // Slot directories to create up front
}

// New creates a new filesystem slot store. Slot directories are created
// idempotently so a fresh deployment starts with all slots present.
func New(config Config) (*Store, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	for _, slot := range config.Slots {
		if err := os.MkdirAll(filepath.Join(config.BaseDir, slot), 0755); err != nil {
			return nil, fmt.Errorf("failed to create slot directory %s: %w", slot, err)
		}
	}

	return &Store{baseDir: config.BaseDir}, nil
}

// SlotDir returns the directory backing a slot, for static file serving.
func (s *Store) SlotDir(slot string) string {
	return filepath.Join(s.baseDir, slot)
}

// List returns every regular file in the slot directory.
func (s *Store) List(ctx context.Context, slot string) ([]ecolens.Entry, error) {
	dirEntries, err := os.ReadDir(s.SlotDir(slot))
	if err != nil {
		return nil, fmt.Errorf("failed to read slot directory: %w", err)
	}

	entries := make([]ecolens.Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		info, err := de.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", de.Name(), err)
		}
		entries = append(entries, ecolens.Entry{
			Name:    de.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return entries, nil
}

// Stat returns the entry for a single slot file.
func (s *Store) Stat(ctx context.Context, slot, name string) (*ecolens.Entry, error) {
	info, err := os.Stat(filepath.Join(s.SlotDir(slot), name))
	if os.IsNotExist(err) {
		return nil, ecolens.ErrFileNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	return &ecolens.Entry{
		Name:    name,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Write stores a new file in the slot directory.
func (s *Store) Write(ctx context.Context, slot, name string, reader io.Reader) error {
	filePath := filepath.Join(s.SlotDir(slot), name)

	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// Open reads a stored slot file.
func (s *Store) Open(ctx context.Context, slot, name string) (io.ReadCloser, error) {
	file, err := os.Open(filepath.Join(s.SlotDir(slot), name))
	if os.IsNotExist(err) {
		return nil, ecolens.ErrFileNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// Delete removes a file from the slot directory.
func (s *Store) Delete(ctx context.Context, slot, name string) error {
	filePath := filepath.Join(s.SlotDir(slot), name)

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return ecolens.ErrFileNotFound
	}

	if err := os.Remove(filePath); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}
