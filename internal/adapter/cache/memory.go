// Package cache implements the result cache: sanitized documents stored by
// composite key. Entries are immutable once written; regeneration clears
// then rewrites. A change to any key component (version, persona, mode)
// produces a different fingerprint, so stale hits are structurally
// impossible.
package cache

import (
	"context"
	"sync"
	"time"

	"mentorstream/internal/domain"
)

type memEntry struct {
	content   string
	expiresAt time.Time // zero = no expiry
}

// Memory is an in-process TTL result cache.
type Memory struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]memEntry
}

// NewMemory creates a memory cache. ttl of 0 disables expiry.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, entries: make(map[string]memEntry)}
}

// Get returns the cached document for key, if present and unexpired.
func (m *Memory) Get(_ context.Context, key domain.ContentKey) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key.Fingerprint()]
	if !ok {
		return "", false, nil
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		return "", false, nil
	}
	return e.content, true, nil
}

// Set stores content under key.
func (m *Memory) Set(_ context.Context, key domain.ContentKey, content string) error {
	e := memEntry{content: content}
	if m.ttl > 0 {
		e.expiresAt = time.Now().Add(m.ttl)
	}
	m.mu.Lock()
	m.entries[key.Fingerprint()] = e
	m.mu.Unlock()
	return nil
}

// Clear removes the entry for key, if any.
func (m *Memory) Clear(_ context.Context, key domain.ContentKey) error {
	m.mu.Lock()
	delete(m.entries, key.Fingerprint())
	m.mu.Unlock()
	return nil
}

// Sweep removes expired entries and reports how many were dropped.
func (m *Memory) Sweep(_ context.Context) (int, error) {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, e := range m.entries {
		if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

// Len reports the number of live entries (including not-yet-swept expired
// ones); used by the status endpoint.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
