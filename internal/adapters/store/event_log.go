package store

import (
	"context"
	"sync"

	"c5isr-identity/internal/core/domain"
)

// EventLog is a bounded, newest-first audit stream
type EventLog interface {
	// Append assigns the next sequential id and stores evt, evicting the oldest entry at capacity.
	Append(ctx context.Context, evt domain.AuditEvent) (domain.AuditEvent, error)
	// Recent returns up to limit entries newest-first, skipping offset.
	Recent(ctx context.Context, offset, limit int) ([]domain.AuditEvent, error)
	Len(ctx context.Context) (int, error)
	Capacity() int
}

// MemoryEventLog is a fixed-capacity ring buffer
type MemoryEventLog struct {
	mu    sync.RWMutex
	buf   []domain.AuditEvent
	next  int // slot the next append writes to
	count int
	seq   int64
}

// NewMemoryEventLog creates a ring holding at most capacity events
func NewMemoryEventLog(capacity int) *MemoryEventLog {
	if capacity < 1 {
		capacity = 1
	}
	return &MemoryEventLog{buf: make([]domain.AuditEvent, capacity)}
}

// Append implements EventLog
func (l *MemoryEventLog) Append(_ context.Context, evt domain.AuditEvent) (domain.AuditEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	evt.ID = l.seq
	l.buf[l.next] = evt
	l.next = (l.next + 1) % len(l.buf)
	if l.count < len(l.buf) {
		l.count++
	}
	return evt, nil
}

// Recent implements EventLog
func (l *MemoryEventLog) Recent(_ context.Context, offset, limit int) ([]domain.AuditEvent, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || offset >= l.count {
		return []domain.AuditEvent{}, nil
	}
	n := l.count - offset
	if n > limit {
		n = limit
	}

	out := make([]domain.AuditEvent, 0, n)
	size := len(l.buf)
	for i := 0; i < n; i++ {
		idx := (l.next - 1 - offset - i + 2*size) % size
		out = append(out, l.buf[idx])
	}
	return out, nil
}

// Len implements EventLog
func (l *MemoryEventLog) Len(_ context.Context) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.count, nil
}

// Capacity implements EventLog
func (l *MemoryEventLog) Capacity() int {
	return len(l.buf)
}
