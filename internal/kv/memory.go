package kv

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used by tests and by `serve --dev`.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value     string
	expiresAt int64
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if e.expiresAt > 0 && e.expiresAt <= nowMillis() {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return "", false, nil
	}
	return e.value, true, nil
}

func (s *MemoryStore) Put(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	s.entries[key] = memoryEntry{value: value, expiresAt: expiryMillis(ttl)}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) List(_ context.Context, prefix string, limit int) ([]Entry, error) {
	now := nowMillis()
	s.mu.RLock()
	var entries []Entry
	for key, e := range s.entries {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if e.expiresAt > 0 && e.expiresAt <= now {
			continue
		}
		entry := Entry{Name: key}
		if e.expiresAt > 0 {
			entry.Expiration = time.UnixMilli(e.expiresAt)
		}
		entries = append(entries, entry)
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Sweep removes expired keys.
func (s *MemoryStore) Sweep(_ context.Context) (int64, error) {
	now := nowMillis()
	var removed int64
	s.mu.Lock()
	for key, e := range s.entries {
		if e.expiresAt > 0 && e.expiresAt <= now {
			delete(s.entries, key)
			removed++
		}
	}
	s.mu.Unlock()
	return removed, nil
}

func (s *MemoryStore) Close() error { return nil }
