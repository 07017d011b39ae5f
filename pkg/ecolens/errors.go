package ecolens

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrInvalidSlot indicates the named slot is not configured
	ErrInvalidSlot = errors.New("invalid slot specified")

	// ErrInvalidImageType indicates the extension or MIME type is outside the allow-list
	ErrInvalidImageType = errors.New("only images (jpeg, jpg, png, webp) are allowed")

	// ErrFileTooLarge indicates the upload exceeds the size cap
	ErrFileTooLarge = errors.New("file exceeds maximum upload size")

	// ErrNoImages indicates a slot holds no images when at least one is required
	ErrNoImages = errors.New("no images found in the specified slot")

	// ErrFileNotFound indicates a slot file was not found
	ErrFileNotFound = errors.New("file not found")
)

// SlotError wraps a failure of a slot operation with its location.
type SlotError struct {
	Slot string
	Op   string
	Err  error
}

func (e *SlotError) Error() string {
	return fmt.Sprintf("slot operation %s failed for slot %s: %v", e.Op, e.Slot, e.Err)
}

func (e *SlotError) Unwrap() error {
	return e.Err
}

// StorageError wraps a failure of the underlying slot store.
type StorageError struct {
	Slot string
	Name string
	Op   string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for %s/%s: %v", e.Op, e.Slot, e.Name, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
