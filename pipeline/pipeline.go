// Package pipeline runs one page visit through resolution, dedup and
// persistence.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/use-agent/catalog/locator"
	"github.com/use-agent/catalog/metrics"
	"github.com/use-agent/catalog/models"
	"github.com/use-agent/catalog/normalizer"
	"github.com/use-agent/catalog/resolver"
	"github.com/use-agent/catalog/sink"
	"github.com/use-agent/catalog/tracker"
)

// Options wires the extraction tunables.
type Options struct {
	Locator    locator.Options
	Normalizer normalizer.Options
}

// Pipeline is safe for concurrent use; per-run state lives in tracker.State.
type Pipeline struct {
	resolver *resolver.Resolver
	sink     sink.Sink
	metrics  *metrics.Metrics
}

// New creates a Pipeline. sink and m may be nil.
func New(opts Options, s sink.Sink, m *metrics.Metrics) *Pipeline {
	if s == nil {
		s = sink.Discard{}
	}
	return &Pipeline{
		resolver: resolver.New(locator.New(opts.Locator), normalizer.New(opts.Normalizer)),
		sink:     s,
		metrics:  m,
	}
}

// Result is what one page visit produced.
type Result struct {
	Outcome models.Outcome
	Sources []models.SourceReport

	// Resolved is every record the sources produced, before dedup.
	Resolved []models.NormalizedProduct

	// Accepted is the subset the tracker let through and the sink received.
	Accepted []models.NormalizedProduct

	// Saved is the run's saved count after this page.
	Saved int
	Done  bool
}

// Process resolves one page, applies the tracker and writes accepted records
// to the sink. A sink failure is returned after the tracker has been updated;
// the accepted records are still reported.
func (p *Pipeline) Process(ctx context.Context, prov resolver.Provider, ec models.ExtractionContext, state *tracker.State) (*Result, error) {
	start := time.Now()
	if ec.TargetCount <= 0 {
		ec.TargetCount = state.Target()
	}

	// ── 1. Resolve sources ──────────────────────────────────────────
	res, err := p.resolver.Resolve(ctx, prov, ec, state)
	if err != nil {
		return nil, err
	}
	p.metrics.ObserveSources(res.Sources)

	// ── 2. Dedup + quota ────────────────────────────────────────────
	accepted := state.Accept(res.Products)
	out := &Result{
		Outcome:  res.Outcome,
		Sources:  res.Sources,
		Resolved: res.Products,
		Accepted: accepted,
		Saved:    state.Saved(),
		Done:     state.Done(),
	}

	// ── 3. Persist ──────────────────────────────────────────────────
	if len(accepted) > 0 {
		if err := p.sink.Write(ctx, accepted); err != nil {
			p.metrics.SinkError(p.sink.Name())
			slog.Error("pipeline: sink write failed", "sink", p.sink.Name(), "records", len(accepted), "error", err)
			return out, models.NewCatalogError(models.ErrCodeSinkFailed, "failed to persist records", err)
		}
		p.metrics.AddSaved(len(accepted))
	}

	slog.Debug("pipeline: page processed",
		"categoryId", ec.CategoryID,
		"page", ec.Page,
		"outcome", res.Outcome,
		"resolved", len(res.Products),
		"accepted", len(accepted),
		"saved", out.Saved,
		"elapsed", time.Since(start),
	)
	return out, nil
}

// Extract runs resolution only, without a tracker or sink. Duplicate ids are
// dropped and the result is capped at ec.TargetCount when it is set.
func (p *Pipeline) Extract(ctx context.Context, prov resolver.Provider, ec models.ExtractionContext) (*Result, error) {
	res, err := p.resolver.Resolve(ctx, prov, ec, nil)
	if err != nil {
		return nil, err
	}
	target := ec.TargetCount
	if target <= 0 {
		target = len(res.Products)
	}
	state := tracker.New(target)
	p.metrics.ObserveSources(res.Sources)
	accepted := state.Accept(res.Products)
	return &Result{
		Outcome:  res.Outcome,
		Sources:  res.Sources,
		Resolved: res.Products,
		Accepted: accepted,
		Saved:    state.Saved(),
		Done:     state.Done(),
	}, nil
}
