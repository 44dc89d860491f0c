// Package normalizer converts located product candidates into canonical
// NormalizedProduct records using the rules tables.
package normalizer

import (
	"log/slog"

	"github.com/use-agent/catalog/models"
	"github.com/use-agent/catalog/payload"
	"github.com/use-agent/catalog/rules"
)

// wrapperKeys are tried in order when a candidate carries its real fields one
// level deeper.
var wrapperKeys = []string{"detail", "item", "product"}

// Options configures normalization.
type Options struct {
	// DefaultCurrency is used when no currency rule matches. Default: "GBP".
	DefaultCurrency string

	// MinIDLength rejects ids shorter than this. Default: 3.
	MinIDLength int

	// MinorUnitThreshold: integer prices above it are minor units. Default: 100.
	MinorUnitThreshold float64

	// StaticHost is the media origin for root-relative image paths.
	StaticHost string

	// ImageWidth is the width used when assembling media paths. Default: 750.
	ImageWidth int
}

func (o *Options) defaults() {
	if o.DefaultCurrency == "" {
		o.DefaultCurrency = "GBP"
	}
	if o.MinIDLength <= 0 {
		o.MinIDLength = 3
	}
	if o.MinorUnitThreshold <= 0 {
		o.MinorUnitThreshold = 100
	}
	if o.ImageWidth <= 0 {
		o.ImageWidth = 750
	}
}

// Normalizer is stateless and safe for concurrent use.
type Normalizer struct {
	opts Options
}

// New creates a Normalizer.
func New(opts Options) *Normalizer {
	opts.defaults()
	return &Normalizer{opts: opts}
}

// Normalize converts one candidate. It returns nil when the candidate has no
// usable id or name, or when reading it fails for any reason.
func (n *Normalizer) Normalize(candidate any, ctx models.ExtractionContext) (out *models.NormalizedProduct) {
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("normalizer: candidate dropped", "panic", r)
			out = nil
		}
	}()

	obj := payload.Object(candidate)
	if obj == nil {
		return nil
	}

	env := &rules.Env{
		Ctx:                ctx,
		StaticHost:         n.opts.StaticHost,
		MinorUnitThreshold: n.opts.MinorUnitThreshold,
		ImageWidth:         n.opts.ImageWidth,
	}
	layers := n.layers(obj)

	// ── 1. Identity ─────────────────────────────────────────────────
	id, ok := first(rules.ID, layers, env)
	if !ok || len(id) < n.opts.MinIDLength {
		return nil
	}
	name, ok := first(rules.Name, layers, env)
	if !ok {
		return nil
	}

	p := &models.NormalizedProduct{ProductID: id, Name: name}

	// ── 2. Commercial fields ────────────────────────────────────────
	if price, ok := first(rules.Price, layers, env); ok {
		p.Price = &price
	}
	p.Currency, p.CurrencyDefaulted = n.opts.DefaultCurrency, true
	if cur, ok := first(rules.Currency, layers, env); ok {
		p.Currency, p.CurrencyDefaulted = cur, false
	}

	// ── 3. Links ────────────────────────────────────────────────────
	if img, ok := first(rules.Image, layers, env); ok {
		p.ImageURL = &img
	}
	u, ok := first(rules.URL, layers, env)
	if !ok {
		u = rules.FallbackProductURL(id, env)
	}
	if u != "" {
		p.ProductURL = &u
	}

	// ── 4. Passthrough ──────────────────────────────────────────────
	p.Availability = optional(first(rules.Availability, layers, env))
	p.Category = optional(first(rules.Category, layers, env))
	p.Subcategory = optional(first(rules.Subcategory, layers, env))
	if colors, ok := first(rules.Colors, layers, env); ok {
		p.Colors = colors
	}

	return p
}

// NormalizeAll normalizes a batch in input order. A failing candidate never
// affects the rest; rejected counts the dropped ones.
func (n *Normalizer) NormalizeAll(candidates []any, ctx models.ExtractionContext) (products []models.NormalizedProduct, rejected int) {
	products = make([]models.NormalizedProduct, 0, len(candidates))
	for _, c := range candidates {
		p := n.Normalize(c, ctx)
		if p == nil {
			rejected++
			continue
		}
		products = append(products, *p)
	}
	return products, rejected
}

// layers returns the objects rule chains are evaluated against, primary
// first. When the candidate lacks its own id+name pair, the first wrapper
// child is primary and the candidate itself is the fallback; otherwise a
// "detail" child, if any, is the fallback.
func (n *Normalizer) layers(obj map[string]any) []map[string]any {
	if !n.identifiable(obj) {
		for _, k := range wrapperKeys {
			if inner := payload.Object(obj[k]); inner != nil {
				return []map[string]any{inner, obj}
			}
		}
		return []map[string]any{obj}
	}
	if detail := payload.Object(obj["detail"]); detail != nil {
		return []map[string]any{obj, detail}
	}
	return []map[string]any{obj}
}

// identifiable reports whether obj carries its own id and name, ignoring the
// seo fallbacks that also appear on wrapper objects.
func (n *Normalizer) identifiable(obj map[string]any) bool {
	return hasScalar(obj, "id", "productId", "reference") && hasScalar(obj, "name", "displayName", "title")
}

func hasScalar(obj map[string]any, keys ...string) bool {
	for _, k := range keys {
		if payload.Scalar(obj[k]) != "" {
			return true
		}
	}
	return false
}

func first[T any](c rules.Chain[T], layers []map[string]any, env *rules.Env) (T, bool) {
	for _, l := range layers {
		if v, _, ok := c.First(l, env); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func optional(s string, ok bool) *string {
	if !ok {
		return nil
	}
	return &s
}
