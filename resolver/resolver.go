// Package resolver picks which raw source a page's products come from.
//
// Sources are tried in priority order:
//
//	embedded_state → internal_api → structured_markup
//
// The internal API is fetched whenever a category id is known and the
// embedded state alone cannot meet the target; its records are merged with
// the embedded ones by product id, API values winning on conflict.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"reflect"

	"dario.cat/mergo"

	"github.com/use-agent/catalog/locator"
	"github.com/use-agent/catalog/models"
	"github.com/use-agent/catalog/normalizer"
)

// Resolution is the outcome of one page visit.
type Resolution struct {
	Outcome  models.Outcome
	Products []models.NormalizedProduct

	// Sources holds one report per source kind, in priority order.
	Sources []models.SourceReport
}

// Source returns the report for kind.
func (r Resolution) Source(kind models.SourceKind) models.SourceReport {
	for _, s := range r.Sources {
		if s.Kind == kind {
			return s
		}
	}
	return models.SourceReport{Kind: kind}
}

// Resolver is stateless and safe for concurrent use.
type Resolver struct {
	locator    *locator.Locator
	normalizer *normalizer.Normalizer
}

// New creates a Resolver.
func New(l *locator.Locator, n *normalizer.Normalizer) *Resolver {
	return &Resolver{locator: l, normalizer: n}
}

// Progress is what the resolver needs to know about the run so far.
// *tracker.State satisfies it.
type Progress interface {
	Saved() int
	Seen(id string) bool
}

// Resolve runs the source state machine for one page. prog describes the run
// before this page; nil means nothing has been saved yet. The only error
// returned is ctx's.
func (r *Resolver) Resolve(ctx context.Context, p Provider, ec models.ExtractionContext, prog Progress) (Resolution, error) {
	res := Resolution{
		Outcome: models.OutcomeNoProducts,
		Sources: []models.SourceReport{
			{Kind: models.SourceEmbeddedState},
			{Kind: models.SourceInternalAPI},
			{Kind: models.SourceStructuredMarkup},
		},
	}

	// ── 1. Embedded state ───────────────────────────────────────────
	embedded := r.attempt(ctx, p, models.SourceEmbeddedState, ec, &res.Sources[0])
	if err := ctx.Err(); err != nil {
		return res, err
	}
	products := embedded
	if saved, unseen := progress(prog, embedded); unseen > 0 && saved+unseen >= ec.TargetCount {
		return found(res, products), nil
	}

	// ── 2. Internal API (forced when a category id is known) ────────
	if ec.CategoryID != "" {
		api := r.attempt(ctx, p, models.SourceInternalAPI, ec, &res.Sources[1])
		if err := ctx.Err(); err != nil {
			return res, err
		}
		products = Merge(embedded, api)
	}
	if len(products) > 0 {
		return found(res, products), nil
	}

	// ── 3. Structured markup ────────────────────────────────────────
	markup := r.attempt(ctx, p, models.SourceStructuredMarkup, ec, &res.Sources[2])
	if err := ctx.Err(); err != nil {
		return res, err
	}
	if len(markup) > 0 {
		return found(res, markup), nil
	}

	slog.Debug("resolver: no products from any source",
		"locale", ec.Locale,
		"categoryId", ec.CategoryID,
		"page", ec.Page,
	)
	return res, nil
}

// progress returns the saved count and how many distinct ids in products the
// run has not seen yet. Only those can still count toward the target.
func progress(prog Progress, products []models.NormalizedProduct) (saved, unseen int) {
	if prog != nil {
		saved = prog.Saved()
	}
	ids := make(map[string]struct{}, len(products))
	for _, p := range products {
		if _, dup := ids[p.ProductID]; dup {
			continue
		}
		ids[p.ProductID] = struct{}{}
		if prog == nil || !prog.Seen(p.ProductID) {
			unseen++
		}
	}
	return saved, unseen
}

func found(res Resolution, products []models.NormalizedProduct) Resolution {
	res.Outcome = models.OutcomeFound
	res.Products = products
	return res
}

// attempt fetches, locates and normalizes one source, filling rep.
func (r *Resolver) attempt(ctx context.Context, p Provider, kind models.SourceKind, ec models.ExtractionContext, rep *models.SourceReport) []models.NormalizedProduct {
	rep.Attempted = true

	raw, err := p.Fetch(ctx, kind, ec)
	if err != nil {
		var sue *SourceUnavailableError
		if errors.As(err, &sue) {
			rep.Status = sue.Status
		}
		rep.Error = err.Error()
		slog.Debug("resolver: source unavailable", "source", kind, "error", err)
		return nil
	}
	if raw == nil {
		return nil
	}
	rep.Available = true

	loc := r.locator.Locate(raw)
	if !loc.Found() {
		if loc.DepthLimited {
			slog.Warn("resolver: search depth exhausted without candidates",
				"source", kind,
				"categoryId", ec.CategoryID,
			)
		}
		return nil
	}
	rep.Path = loc.Path
	rep.Located = len(loc.Candidates)

	products, rejected := r.normalizer.NormalizeAll(loc.Candidates, ec)
	rep.Normalized = len(products)
	rep.Rejected = rejected

	slog.Debug("resolver: source resolved",
		"source", kind,
		"path", loc.Path,
		"strategy", loc.Strategy,
		"located", rep.Located,
		"normalized", rep.Normalized,
		"rejected", rejected,
	)
	return products
}

// Merge combines embedded and API records by product id. Embedded discovery
// order comes first, then API-only records in API order. On conflict the API
// record wins field by field and the embedded record fills its gaps.
// Duplicate ids within one source keep the first occurrence.
func Merge(embedded, api []models.NormalizedProduct) []models.NormalizedProduct {
	if len(api) == 0 {
		return dedupe(embedded)
	}
	if len(embedded) == 0 {
		return dedupe(api)
	}

	fromAPI := make(map[string]models.NormalizedProduct, len(api))
	for _, p := range api {
		if _, dup := fromAPI[p.ProductID]; !dup {
			fromAPI[p.ProductID] = p
		}
	}

	out := make([]models.NormalizedProduct, 0, len(embedded)+len(api))
	placed := make(map[string]struct{}, len(embedded)+len(api))
	for _, e := range embedded {
		if _, dup := placed[e.ProductID]; dup {
			continue
		}
		placed[e.ProductID] = struct{}{}

		a, ok := fromAPI[e.ProductID]
		if !ok {
			out = append(out, e)
			continue
		}
		out = append(out, mergeOne(a, e))
	}
	for _, a := range api {
		if _, dup := placed[a.ProductID]; dup {
			continue
		}
		placed[a.ProductID] = struct{}{}
		out = append(out, a)
	}
	return out
}

// mergeOne fills the gaps of an API record from its embedded twin. A field
// the API set, even to a zero value such as a price of 0, is kept. A
// defaulted API currency yields to one the embedded record actually read.
func mergeOne(a, e models.NormalizedProduct) models.NormalizedProduct {
	merged := a.Clone()
	if err := mergo.Merge(&merged, e.Clone(), mergo.WithTransformers(presence{})); err != nil {
		slog.Debug("resolver: merge failed, keeping api record", "productId", e.ProductID, "error", err)
		return a.Clone()
	}
	if a.CurrencyDefaulted && !e.CurrencyDefaulted {
		merged.Currency = e.Currency
	}
	merged.CurrencyDefaulted = a.CurrencyDefaulted && e.CurrencyDefaulted
	return merged
}

// presence makes mergo treat a non-nil pointer or slice as set, whatever it
// points at.
type presence struct{}

func (presence) Transformer(t reflect.Type) func(dst, src reflect.Value) error {
	if t.Kind() != reflect.Pointer && t.Kind() != reflect.Slice {
		return nil
	}
	return func(dst, src reflect.Value) error {
		if dst.IsNil() && dst.CanSet() {
			dst.Set(src)
		}
		return nil
	}
}

func dedupe(in []models.NormalizedProduct) []models.NormalizedProduct {
	seen := make(map[string]struct{}, len(in))
	out := make([]models.NormalizedProduct, 0, len(in))
	for _, p := range in {
		if _, dup := seen[p.ProductID]; dup {
			continue
		}
		seen[p.ProductID] = struct{}{}
		out = append(out, p)
	}
	return out
}
