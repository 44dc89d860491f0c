package resolver

import (
	"context"
	"fmt"
	"sync"

	"github.com/use-agent/catalog/models"
	"github.com/use-agent/catalog/payload"
)

// Provider yields the raw JSON for one source. It is called lazily, so a
// source the resolver does not need is never fetched.
//
// A nil payload with a nil error means the source is absent. Implementations
// report fetch failures (non-2xx, missing global) as *SourceUnavailableError.
type Provider interface {
	Fetch(ctx context.Context, kind models.SourceKind, ec models.ExtractionContext) (any, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, kind models.SourceKind, ec models.ExtractionContext) (any, error)

func (f ProviderFunc) Fetch(ctx context.Context, kind models.SourceKind, ec models.ExtractionContext) (any, error) {
	return f(ctx, kind, ec)
}

// SourceUnavailableError means a source produced no JSON.
type SourceUnavailableError struct {
	Kind   models.SourceKind
	Status int
	Err    error
}

func (e *SourceUnavailableError) Error() string {
	msg := fmt.Sprintf("source %s unavailable", e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SourceUnavailableError) Unwrap() error {
	return e.Err
}

// StaticProvider serves pre-decoded payloads. It records which sources were
// requested.
type StaticProvider struct {
	payloads map[models.SourceKind]any
	errs     map[models.SourceKind]error

	mu    sync.Mutex
	calls []models.SourceKind
}

// NewStaticProvider creates a provider over already-decoded payloads.
func NewStaticProvider(payloads map[models.SourceKind]any) *StaticProvider {
	if payloads == nil {
		payloads = make(map[models.SourceKind]any)
	}
	return &StaticProvider{payloads: payloads, errs: make(map[models.SourceKind]error)}
}

// DecodeStaticProvider decodes raw (JSON or JSON5) bytes per source. Empty
// entries are treated as absent sources.
func DecodeStaticProvider(raw map[models.SourceKind][]byte) (*StaticProvider, error) {
	p := NewStaticProvider(nil)
	for kind, b := range raw {
		v, err := payload.Decode(b)
		if err != nil {
			return nil, fmt.Errorf("resolver: decode %s: %w", kind, err)
		}
		if v != nil {
			p.payloads[kind] = v
		}
	}
	return p, nil
}

// Set serves v for kind. A nil v makes the source absent.
func (p *StaticProvider) Set(kind models.SourceKind, v any) *StaticProvider {
	if v == nil {
		delete(p.payloads, kind)
		return p
	}
	p.payloads[kind] = v
	return p
}

// Has reports whether kind has a payload.
func (p *StaticProvider) Has(kind models.SourceKind) bool {
	_, ok := p.payloads[kind]
	return ok
}

// Fail makes kind return err.
func (p *StaticProvider) Fail(kind models.SourceKind, err error) *StaticProvider {
	p.errs[kind] = err
	return p
}

// Fetch implements Provider.
func (p *StaticProvider) Fetch(_ context.Context, kind models.SourceKind, _ models.ExtractionContext) (any, error) {
	p.mu.Lock()
	p.calls = append(p.calls, kind)
	p.mu.Unlock()

	if err, ok := p.errs[kind]; ok {
		return nil, err
	}
	return p.payloads[kind], nil
}

// Calls returns the sources requested so far, in order.
func (p *StaticProvider) Calls() []models.SourceKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.SourceKind(nil), p.calls...)
}
