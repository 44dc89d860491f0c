package fingerprint

import "sync"

// Baselines remembers, per host, the layout fingerprint of the last page that
// produced products. It is safe for concurrent use.
type Baselines struct {
	mu  sync.Mutex
	fps map[string]uint64
}

// NewBaselines creates an empty set.
func NewBaselines() *Baselines {
	return &Baselines{fps: make(map[string]uint64)}
}

// Record stores fp as host's baseline. A zero fingerprint is ignored.
func (b *Baselines) Record(host string, fp uint64) {
	if fp == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fps[host] = fp
}

// Drifted reports whether fp is more than threshold bits from host's
// baseline. It is false when the host has no baseline yet.
func (b *Baselines) Drifted(host string, fp uint64, threshold int) bool {
	b.mu.Lock()
	base, ok := b.fps[host]
	b.mu.Unlock()
	if !ok || fp == 0 {
		return false
	}
	return !Similar(base, fp, threshold)
}
