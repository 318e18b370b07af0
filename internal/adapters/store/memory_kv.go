package store

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"time"

	"c5isr-identity/internal/pkg/clock"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryKV is the single-process KV backend
type MemoryKV struct {
	mu    sync.Mutex
	data  map[string]memoryEntry
	clock clock.Clock
}

// NewMemoryKV creates an empty in-memory store
func NewMemoryKV(clk clock.Clock) *MemoryKV {
	if clk == nil {
		clk = clock.Real{}
	}
	return &MemoryKV{
		data:  make(map[string]memoryEntry),
		clock: clk,
	}
}

// lookup returns the live entry for key, dropping it if expired. Caller holds mu.
func (m *MemoryKV) lookup(key string, now time.Time) (memoryEntry, bool) {
	e, ok := m.data[key]
	if !ok {
		return memoryEntry{}, false
	}
	if e.expired(now) {
		delete(m.data, key)
		return memoryEntry{}, false
	}
	return e, true
}

func (m *MemoryKV) entry(value []byte, ttl time.Duration, now time.Time) memoryEntry {
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	return e
}

// Get returns a copy of the value stored at key
func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(key, m.clock.Now())
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), e.value...), nil
}

// Put stores value at key, replacing any previous value
func (m *MemoryKV) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = m.entry(value, ttl, m.clock.Now())
	return nil
}

// Delete removes key
func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}

// CompareAndSwap implements KV
func (m *MemoryKV) CompareAndSwap(_ context.Context, key string, old, next []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	e, ok := m.lookup(key, now)
	if old == nil {
		if ok {
			return false, nil
		}
	} else if !ok || !bytes.Equal(e.value, old) {
		return false, nil
	}

	m.data[key] = m.entry(next, ttl, now)
	return true, nil
}

// CompareAndDelete implements KV
func (m *MemoryKV) CompareAndDelete(_ context.Context, key string, old []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(key, m.clock.Now())
	if !ok || !bytes.Equal(e.value, old) {
		return false, nil
	}
	delete(m.data, key)
	return true, nil
}

// Scan implements KV
func (m *MemoryKV) Scan(_ context.Context, prefix string) (map[string][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	out := make(map[string][]byte)
	for k := range m.data {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if e, ok := m.lookup(k, now); ok {
			out[k] = append([]byte(nil), e.value...)
		}
	}
	return out, nil
}

// Sweep drops every expired entry and reports how many were removed
func (m *MemoryKV) Sweep(_ context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	removed := 0
	for k, e := range m.data {
		if e.expired(now) {
			delete(m.data, k)
			removed++
		}
	}
	return removed
}

// Len reports the number of stored entries, expired or not
func (m *MemoryKV) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}
