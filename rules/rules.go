// Package rules holds the per-field extractor tables used by the normalizer.
//
// Each field is an ordered Chain of Rules. A Rule is a predicate plus
// transform over one candidate object; the first Rule that reports ok wins.
// Chains never panic on well-formed decoded JSON, but the normalizer recovers
// anyway since site data is unvalidated.
package rules

import (
	"strings"

	"github.com/use-agent/catalog/models"
	"github.com/use-agent/catalog/payload"
)

// Env is the read-only context every rule sees.
type Env struct {
	Ctx models.ExtractionContext

	// StaticHost is the origin media paths are absolutized against.
	// Falls back to Ctx.BaseURL when empty.
	StaticHost string

	// MinorUnitThreshold: integer prices above it are minor units. Default: 100.
	MinorUnitThreshold float64

	// ImageWidth is the width segment used when assembling media paths. Default: 750.
	ImageWidth int
}

func (e *Env) minorUnitThreshold() float64 {
	if e == nil || e.MinorUnitThreshold <= 0 {
		return 100
	}
	return e.MinorUnitThreshold
}

func (e *Env) imageWidth() int {
	if e == nil || e.ImageWidth <= 0 {
		return 750
	}
	return e.ImageWidth
}

// Rule extracts one field value from a candidate object.
type Rule[T any] struct {
	Name    string
	Extract func(obj map[string]any, env *Env) (T, bool)
}

// Chain is an ordered list of rules for one field.
type Chain[T any] []Rule[T]

// First evaluates the chain in order and returns the first satisfied value
// along with the name of the rule that produced it.
func (c Chain[T]) First(obj map[string]any, env *Env) (T, string, bool) {
	var zero T
	if obj == nil {
		return zero, "", false
	}
	for _, r := range c {
		if v, ok := r.Extract(obj, env); ok {
			return v, r.Name, true
		}
	}
	return zero, "", false
}

// Names lists the rule names in evaluation order.
func (c Chain[T]) Names() []string {
	out := make([]string, len(c))
	for i, r := range c {
		out[i] = r.Name
	}
	return out
}

// scalarAt reads a non-empty scalar at path.
func scalarAt(path string) Rule[string] {
	return Rule[string]{
		Name: path,
		Extract: func(obj map[string]any, _ *Env) (string, bool) {
			v, ok := payload.Lookup(obj, path)
			if !ok {
				return "", false
			}
			s := payload.Scalar(v)
			return s, s != ""
		},
	}
}

// stringAt reads a non-empty string at path; numbers and booleans are ignored.
func stringAt(path string) Rule[string] {
	return Rule[string]{
		Name: path,
		Extract: func(obj map[string]any, _ *Env) (string, bool) {
			v, ok := payload.Lookup(obj, path)
			if !ok {
				return "", false
			}
			s, isStr := v.(string)
			s = strings.TrimSpace(s)
			return s, isStr && s != ""
		},
	}
}

// nameOrString reads a string, or the "name" of an object, at path.
func nameOrString(path string) Rule[string] {
	return Rule[string]{
		Name: path,
		Extract: func(obj map[string]any, _ *Env) (string, bool) {
			v, ok := payload.Lookup(obj, path)
			if !ok {
				return "", false
			}
			if m := payload.Object(v); m != nil {
				v = m["name"]
			}
			s, isStr := v.(string)
			s = strings.TrimSpace(s)
			return s, isStr && s != ""
		},
	}
}
