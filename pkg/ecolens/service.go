package ecolens

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// service implements the Service interface
type service struct {
	store     SlotStore
	eventSink EventSink
	slots     map[string]bool
	slotNames []string
	maxSize   int64
	now       func() time.Time

	// locks serializes the list/stat/delete/write sequence per slot.
	// Without it two concurrent uploads can both observe an empty role and
	// claim it, leaving two files with the same prefix.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithSlotStore sets the storage backend for the service
func WithSlotStore(store SlotStore) Option {
	return func(s *service) {
		s.store = store
	}
}

// WithSlots sets the permitted slot names
func WithSlots(names ...string) Option {
	return func(s *service) {
		s.slotNames = names
		s.slots = make(map[string]bool, len(names))
		for _, n := range names {
			s.slots[n] = true
		}
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithMaxUploadSize overrides the default 5 MiB upload cap
func WithMaxUploadSize(n int64) Option {
	return func(s *service) {
		s.maxSize = n
	}
}

// WithClock overrides the time source used for generated filenames.
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// DefaultSlots are the slot names used when none are configured.
var DefaultSlots = []string{"uploads", "product1", "product2"}

// New creates a new slot allocator service with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		eventSink: NewNoopEventSink(),
		maxSize:   MaxUploadSize,
		now:       time.Now,
		locks:     make(map[string]*sync.Mutex),
	}

	for _, option := range options {
		option(s)
	}

	if s.store == nil {
		return nil, fmt.Errorf("slot store is required")
	}
	if len(s.slotNames) == 0 {
		WithSlots(DefaultSlots...)(s)
	}

	return s, nil
}

func (s *service) Slots() []string {
	out := make([]string, len(s.slotNames))
	copy(out, s.slotNames)
	return out
}

// slotLock returns the mutex guarding one slot, creating it on first use.
func (s *service) slotLock(slot string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[slot]
	if !ok {
		l = &sync.Mutex{}
		s.locks[slot] = l
	}
	return l
}

// Validate checks an upload request against the slot list, the image
// allow-list and the size cap. It runs before any storage access, so a
// rejected upload leaves the slot untouched.
func (s *service) validate(req UploadRequest) error {
	if !s.slots[req.Slot] {
		return ErrInvalidSlot
	}
	ext := strings.ToLower(filepath.Ext(req.FileName))
	if !allowedExtensions[ext] {
		return ErrInvalidImageType
	}
	if !allowedMimeTypes[strings.ToLower(req.MimeType)] {
		return ErrInvalidImageType
	}
	if req.Size > s.maxSize {
		return ErrFileTooLarge
	}
	return nil
}

func (s *service) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	lock := s.slotLock(req.Slot)
	lock.Lock()
	defer lock.Unlock()

	status, err := s.status(ctx, req.Slot)
	if err != nil {
		return nil, &SlotError{Slot: req.Slot, Op: "upload", Err: err}
	}

	// Role assignment: fill front first, then back; with both occupied,
	// replace whichever is older. Equal timestamps count back as stale.
	var role Role
	switch {
	case len(status.Front) == 0:
		role = RoleFront
	case len(status.Back) == 0:
		role = RoleBack
	default:
		front := oldest(status.Front)
		back := oldest(status.Back)
		if front.ModTime.Before(back.ModTime) {
			role = RoleFront
		} else {
			role = RoleBack
		}
	}

	evicted, err := s.cleanupRole(ctx, req.Slot, role, status)
	if err != nil {
		return nil, &SlotError{Slot: req.Slot, Op: "upload", Err: err}
	}

	name := s.generateFileName(role, req.FileName)
	if err := s.store.Write(ctx, req.Slot, name, req.Reader); err != nil {
		return nil, &StorageError{Slot: req.Slot, Name: name, Op: "write", Err: err}
	}

	// Event failures never fail the upload itself.
	_ = s.eventSink.ImageUploaded(ctx, req.Slot, name, role)

	total := len(status.All) - len(evicted) + 1
	return &UploadResult{
		Slot:        req.Slot,
		FileName:    name,
		Role:        role,
		Size:        req.Size,
		Evicted:     evicted,
		TotalImages: total,
	}, nil
}

// cleanupRole deletes every image currently carrying the role's prefix.
// Under the invariant there is at most one file; finding more means the
// invariant was already broken and is reported through the event sink.
func (s *service) cleanupRole(ctx context.Context, slot string, role Role, status *SlotStatus) ([]string, error) {
	var matches []Entry
	switch role {
	case RoleFront:
		matches = status.Front
	case RoleBack:
		matches = status.Back
	}
	if len(matches) == 0 {
		return nil, nil
	}

	if len(matches) > 1 {
		names := make([]string, len(matches))
		for i, e := range matches {
			names[i] = e.Name
		}
		_ = s.eventSink.InvariantViolated(ctx, slot, role, names)
	}

	evicted := make([]string, 0, len(matches))
	for _, e := range matches {
		if err := s.store.Delete(ctx, slot, e.Name); err != nil {
			return evicted, &StorageError{Slot: slot, Name: e.Name, Op: "delete", Err: err}
		}
		evicted = append(evicted, e.Name)
		_ = s.eventSink.ImageEvicted(ctx, slot, e.Name, role)
	}
	return evicted, nil
}

func (s *service) Status(ctx context.Context, slot string) (*SlotStatus, error) {
	if !s.slots[slot] {
		return nil, ErrInvalidSlot
	}
	status, err := s.status(ctx, slot)
	if err != nil {
		return nil, &SlotError{Slot: slot, Op: "status", Err: err}
	}
	return status, nil
}

// status lists the slot and partitions image entries by role prefix.
// Non-image files are ignored but never deleted.
func (s *service) status(ctx context.Context, slot string) (*SlotStatus, error) {
	entries, err := s.store.List(ctx, slot)
	if err != nil {
		return nil, err
	}

	status := &SlotStatus{Slot: slot}
	for _, e := range entries {
		if !IsImageFile(e.Name) {
			continue
		}
		status.All = append(status.All, e)
		switch e.Role() {
		case RoleFront:
			status.Front = append(status.Front, e)
		case RoleBack:
			status.Back = append(status.Back, e)
		}
	}

	sortByModTime(status.Front)
	sortByModTime(status.Back)
	sortByModTime(status.All)
	return status, nil
}

// generateFileName builds "<role>-<unixms>-<rand><ext>". The random part
// keeps two uploads in the same millisecond from colliding.
func (s *service) generateFileName(role Role, original string) string {
	suffix := fmt.Sprintf("%d-%d", s.now().UnixMilli(), rand.Int63n(1_000_000_000))
	ext := strings.ToLower(filepath.Ext(original))
	return role.Prefix() + suffix + ext
}

func sortByModTime(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].ModTime.Equal(entries[j].ModTime) {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].ModTime.Before(entries[j].ModTime)
	})
}

func oldest(entries []Entry) Entry {
	o := entries[0]
	for _, e := range entries[1:] {
		if e.ModTime.Before(o.ModTime) {
			o = e
		}
	}
	return o
}
