package crawler

import (
	"context"
	"sync"

	"github.com/use-agent/catalog/models"
	"github.com/use-agent/catalog/resolver"
)

// Snapshot is the decoded sources one visit produced, replayable without
// the browser.
type Snapshot map[models.SourceKind]any

// recorder captures every source its provider yields.
type recorder struct {
	p resolver.Provider

	mu  sync.Mutex
	got Snapshot
}

func newRecorder(p resolver.Provider) *recorder {
	return &recorder{p: p, got: make(Snapshot)}
}

func (r *recorder) Fetch(ctx context.Context, kind models.SourceKind, ec models.ExtractionContext) (any, error) {
	v, err := r.p.Fetch(ctx, kind, ec)
	if err == nil && v != nil {
		r.mu.Lock()
		r.got[kind] = v
		r.mu.Unlock()
	}
	return v, err
}

func (r *recorder) snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(Snapshot, len(r.got))
	for k, v := range r.got {
		out[k] = v
	}
	return out
}
