// Package locator finds the array of product-like objects inside an
// arbitrarily nested JSON tree.
//
// Search order:
//
//	1. Well-known paths (productGroups, products, category.products, ...)
//	2. Bounded depth-first traversal, keys in sorted order, arrays in index order
//
// Every array found is tested against the product-array predicate. Arrays of
// grouping containers (elements / commercialComponents) are unwrapped one
// level at a time instead of being accepted.
package locator

import (
	"log/slog"
	"sort"
	"strconv"

	"github.com/use-agent/catalog/payload"
)

// DefaultWellKnownPaths are probed before the deep search.
var DefaultWellKnownPaths = []string{
	"productGroups",
	"products",
	"productList",
	"category.products",
	"data.products",
	"data.productGroups",
	"props.pageProps.products",
	"itemListElement",
}

// groupKeys mark a grouping container: an object holding groups or products
// rather than being a product itself.
var groupKeys = []string{"elements", "commercialComponents"}

// identifyingKeys mark an object as product-like.
var identifyingKeys = []string{"id", "productId", "detail", "item", "product", "sku"}

// Options tunes the locator.
type Options struct {
	// MaxDepth bounds the deep search. Default: 10.
	MaxDepth int

	// WellKnownPaths are probed first. Default: DefaultWellKnownPaths.
	WellKnownPaths []string

	// MediaFormatIDMax rejects elements whose numeric id is below it and that
	// carry no name: a known image-format enumeration shape. Default: 100.
	MediaFormatIDMax float64
}

func (o *Options) defaults() {
	if o.MaxDepth <= 0 {
		o.MaxDepth = 10
	}
	if o.WellKnownPaths == nil {
		o.WellKnownPaths = DefaultWellKnownPaths
	}
	if o.MediaFormatIDMax <= 0 {
		o.MediaFormatIDMax = 100
	}
}

// Result is the outcome of one Locate call. An empty Candidates slice is a
// normal outcome, not a fault.
type Result struct {
	Candidates []any

	// Path is the dot path of the accepted array ("productGroups" or
	// "state.listing.items"); unwrapped levels are suffixed with "[*]".
	Path string

	// Strategy is "well_known" or "deep_search"; empty when nothing matched.
	Strategy string

	// DepthLimited reports that the deep search hit MaxDepth somewhere.
	DepthLimited bool
}

// Found reports whether a candidate array was located.
func (r Result) Found() bool { return len(r.Candidates) > 0 }

// Locator is safe for concurrent use; it holds no per-call state.
type Locator struct {
	opts Options
}

// New creates a Locator.
func New(opts Options) *Locator {
	opts.defaults()
	return &Locator{opts: opts}
}

// Locate returns the first array in root that satisfies the product-array
// predicate.
func (l *Locator) Locate(root any) Result {
	if root == nil {
		return Result{}
	}

	// ── 1. Well-known paths ─────────────────────────────────────────
	for _, path := range l.opts.WellKnownPaths {
		v, ok := payload.Lookup(root, path)
		if !ok {
			continue
		}
		if arr := payload.Array(v); arr != nil {
			if found, suffix := l.accept(arr, l.opts.MaxDepth); found != nil {
				return Result{Candidates: found, Path: path + suffix, Strategy: "well_known"}
			}
		}
	}

	// ── 2. Bounded deep search ──────────────────────────────────────
	s := &search{l: l, onPath: make(map[payload.Identity]struct{})}
	if arr, ok := root.([]any); ok {
		if found, suffix := l.accept(arr, l.opts.MaxDepth); found != nil {
			return Result{Candidates: found, Path: "$" + suffix, Strategy: "deep_search"}
		}
	}
	found, path := s.walk(root, "", 0)
	res := Result{DepthLimited: s.depthLimited}
	if found != nil {
		res.Candidates = found
		res.Path = path
		res.Strategy = "deep_search"
		return res
	}

	if s.depthLimited {
		slog.Debug("locator: depth bound reached without a product array",
			"maxDepth", l.opts.MaxDepth,
		)
	}
	return res
}

// accept applies the product-array predicate to arr. Grouping arrays are
// flattened one level and re-tested, at most budget times.
func (l *Locator) accept(arr []any, budget int) ([]any, string) {
	suffix := ""
	for ; budget >= 0; budget-- {
		if len(arr) == 0 {
			return nil, ""
		}
		first := payload.Object(arr[0])
		if first == nil {
			return nil, ""
		}
		if isGroup(first) {
			arr = flattenGroups(arr)
			suffix += "[*]"
			continue
		}
		if l.isMediaFormat(first) {
			return nil, ""
		}
		if !hasAnyKey(first, identifyingKeys) {
			return nil, ""
		}
		return arr, suffix
	}
	return nil, ""
}

// isMediaFormat matches {id: <small int>, ...} with no name.
func (l *Locator) isMediaFormat(obj map[string]any) bool {
	id, ok := payload.Number(obj["id"])
	if !ok || id >= l.opts.MediaFormatIDMax {
		return false
	}
	return payload.Scalar(obj["name"]) == ""
}

func isGroup(obj map[string]any) bool {
	for _, k := range groupKeys {
		if payload.Array(obj[k]) != nil {
			return true
		}
	}
	return false
}

// flattenGroups concatenates the child arrays of every grouping container in
// arr, preserving discovery order.
func flattenGroups(arr []any) []any {
	var out []any
	for _, e := range arr {
		obj := payload.Object(e)
		if obj == nil {
			continue
		}
		for _, k := range groupKeys {
			if children := payload.Array(obj[k]); children != nil {
				out = append(out, children...)
				break
			}
		}
	}
	return out
}

func hasAnyKey(obj map[string]any, keys []string) bool {
	for _, k := range keys {
		if v, ok := obj[k]; ok && v != nil {
			return true
		}
	}
	return false
}

// search carries the state of one deep traversal.
type search struct {
	l            *Locator
	onPath       map[payload.Identity]struct{}
	depthLimited bool
}

func (s *search) walk(v any, path string, depth int) ([]any, string) {
	if depth > s.l.opts.MaxDepth {
		s.depthLimited = true
		return nil, ""
	}

	id, hasID := payload.IdentityOf(v)
	if hasID {
		if _, seen := s.onPath[id]; seen {
			return nil, ""
		}
		s.onPath[id] = struct{}{}
		defer delete(s.onPath, id)
	}

	switch node := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(node))
		for k := range node {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			child := node[k]
			childPath := join(path, k)
			if arr, ok := child.([]any); ok {
				if found, suffix := s.l.accept(arr, s.l.opts.MaxDepth-depth); found != nil {
					return found, childPath + suffix
				}
			}
			if found, p := s.walk(child, childPath, depth+1); found != nil {
				return found, p
			}
		}
	case []any:
		for i, child := range node {
			childPath := join(path, strconv.Itoa(i))
			if arr, ok := child.([]any); ok {
				if found, suffix := s.l.accept(arr, s.l.opts.MaxDepth-depth); found != nil {
					return found, childPath + suffix
				}
			}
			if found, p := s.walk(child, childPath, depth+1); found != nil {
				return found, p
			}
		}
	}
	return nil, ""
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
