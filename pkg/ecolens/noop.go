package ecolens

import (
	"context"
	"log/slog"
)

// NoopEventSink is a no-operation implementation of EventSink
// Useful when you don't need event handling or for testing
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

// ImageUploaded does nothing and returns nil
func (n *NoopEventSink) ImageUploaded(ctx context.Context, slot, name string, role Role) error {
	return nil
}

// ImageEvicted does nothing and returns nil
func (n *NoopEventSink) ImageEvicted(ctx context.Context, slot, name string, role Role) error {
	return nil
}

// InvariantViolated does nothing and returns nil
func (n *NoopEventSink) InvariantViolated(ctx context.Context, slot string, role Role, names []string) error {
	return nil
}

// SlogEventSink logs slot events through a structured logger.
type SlogEventSink struct {
	logger *slog.Logger
}

// NewSlogEventSink creates an event sink backed by the given logger. A nil
// logger falls back to slog.Default.
func NewSlogEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogEventSink{logger: logger}
}

func (s *SlogEventSink) ImageUploaded(ctx context.Context, slot, name string, role Role) error {
	s.logger.InfoContext(ctx, "image uploaded", "slot", slot, "file", name, "role", role)
	return nil
}

func (s *SlogEventSink) ImageEvicted(ctx context.Context, slot, name string, role Role) error {
	s.logger.InfoContext(ctx, "image evicted", "slot", slot, "file", name, "role", role)
	return nil
}

func (s *SlogEventSink) InvariantViolated(ctx context.Context, slot string, role Role, names []string) error {
	s.logger.WarnContext(ctx, "slot invariant violated: multiple files for one role",
		"slot", slot, "role", role, "files", names)
	return nil
}
