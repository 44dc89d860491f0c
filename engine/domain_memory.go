package engine

import (
	"sync"
	"time"
)

type memoryEntry struct {
	engine    string
	expiresAt time.Time
}

// DomainMemory remembers, per host, which engine last fetched successfully.
// A nil *DomainMemory remembers nothing.
type DomainMemory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewDomainMemory creates a memory whose entries live for ttl.
func NewDomainMemory(ttl time.Duration) *DomainMemory {
	return &DomainMemory{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the remembered engine for host, or "".
func (m *DomainMemory) Get(host string) string {
	if m == nil {
		return ""
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[host]
	if !ok {
		return ""
	}
	if m.now().After(e.expiresAt) {
		delete(m.entries, host)
		return ""
	}
	return e.engine
}

// Set records the winning engine for host.
func (m *DomainMemory) Set(host, engine string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[host] = memoryEntry{engine: engine, expiresAt: m.now().Add(m.ttl)}
}

// Delete forgets host.
func (m *DomainMemory) Delete(host string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, host)
}

// Prune drops expired entries and returns how many remain.
func (m *DomainMemory) Prune() int {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for host, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, host)
		}
	}
	return len(m.entries)
}
