package ecolens

import (
	"context"
	"io"
)

// SlotStore abstracts the storage holding slot files. Implementations exist
// for the local filesystem, memory (tests), and S3-compatible buckets.
type SlotStore interface {
	// List returns every file currently present in the slot, including
	// files outside the image allow-list.
	List(ctx context.Context, slot string) ([]Entry, error)

	// Stat returns the entry for a single file
	Stat(ctx context.Context, slot, name string) (*Entry, error)

	// Write stores a new file in the slot
	Write(ctx context.Context, slot, name string, reader io.Reader) error

	// Open reads a stored file
	Open(ctx context.Context, slot, name string) (io.ReadCloser, error)

	// Delete removes a file from the slot
	Delete(ctx context.Context, slot, name string) error
}

// Service is the slot allocator: it decides the role of each uploaded image
// and keeps the one-front/one-back invariant per slot.
type Service interface {
	// Upload validates the request, assigns a role, evicts the stale image
	// when both roles are occupied, and writes the new file.
	Upload(ctx context.Context, req UploadRequest) (*UploadResult, error)

	// Status is a read-only view of the slot; calling it twice with no
	// intervening upload returns identical results.
	Status(ctx context.Context, slot string) (*SlotStatus, error)

	// Slots returns the configured slot names.
	Slots() []string
}

// EventSink receives notifications about slot lifecycle events.
type EventSink interface {
	// ImageUploaded is fired after a new image is written
	ImageUploaded(ctx context.Context, slot string, name string, role Role) error

	// ImageEvicted is fired for every file deleted to make room
	ImageEvicted(ctx context.Context, slot string, name string, role Role) error

	// InvariantViolated is fired when the defensive cleanup finds more than
	// one file for a role, which means concurrent writers got past the
	// one-front/one-back guarantee at some earlier point.
	InvariantViolated(ctx context.Context, slot string, role Role, names []string) error
}
