package cache

import (
	"context"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// Memory is an in-process cache. Entries are dropped lazily when a read finds
// them expired.
type Memory struct {
	entries *xsync.Map[string, memoryEntry]
	now     func() time.Time
}

// NewMemory creates an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{
		entries: xsync.NewMap[string, memoryEntry](),
		now:     time.Now,
	}
}

func (m *Memory) Name() string { return BackendMemory }

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := m.entries.Load(key)
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(e.expires) {
		// Only delete if nobody stored a fresh value in between.
		m.entries.Compute(key, func(old memoryEntry, loaded bool) (memoryEntry, xsync.ComputeOp) {
			if loaded && !m.now().Before(old.expires) {
				return old, xsync.DeleteOp
			}
			return old, xsync.CancelOp
		})
		return nil, false, nil
	}
	return e.value, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	m.entries.Store(key, memoryEntry{value: value, expires: m.now().Add(ttl)})
	return nil
}

func (m *Memory) Purge(context.Context) (int64, error) {
	var n int64
	m.entries.Range(func(key string, _ memoryEntry) bool {
		m.entries.Delete(key)
		n++
		return true
	})
	return n, nil
}

// Len counts stored entries, expired ones included.
func (m *Memory) Len() int { return m.entries.Size() }

func (m *Memory) Health(context.Context) error { return nil }
