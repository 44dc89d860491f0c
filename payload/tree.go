// Package payload holds the raw JSON side of the pipeline: decoding source
// bytes into an untyped tree, tagging value kinds, path lookups, and pulling
// embedded state and ItemList blocks out of rendered HTML.
package payload

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
)

// Kind tags a decoded JSON value.
type Kind int

const (
	KindUnknown Kind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// KindOf classifies v. Integer types are accepted alongside float64 so that
// trees built in-process behave like decoded ones.
func KindOf(v any) Kind {
	switch v.(type) {
	case nil:
		return KindNull
	case bool:
		return KindBool
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, json.Number:
		return KindNumber
	case string:
		return KindString
	case []any:
		return KindArray
	case map[string]any:
		return KindObject
	default:
		return KindUnknown
	}
}

// Object returns v as an object, or nil.
func Object(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// Array returns v as an array, or nil.
func Array(v any) []any {
	a, _ := v.([]any)
	return a
}

// Number returns v as a float64 when it is numeric.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// Scalar renders strings, numbers and booleans as a trimmed string.
// Objects, arrays and null yield "".
func Scalar(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case bool:
		return strconv.FormatBool(s)
	case json.Number:
		return s.String()
	}
	if f, ok := Number(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return ""
}

// Lookup walks a dot-separated path ("colors.0.xmedia") through objects and
// arrays. It reports false when any step is missing or the final value is null.
func Lookup(v any, path string) (any, bool) {
	cur := v
	for _, key := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[key]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(key)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}

// Identity is a comparable key for a container value, used to detect a node
// that is already on the current traversal path.
type Identity struct {
	kind Kind
	ptr  uintptr
	n    int
}

// IdentityOf returns the identity of an object or non-empty array.
// Scalars and empty arrays have no identity and cannot form cycles.
func IdentityOf(v any) (Identity, bool) {
	switch v.(type) {
	case map[string]any:
		rv := reflect.ValueOf(v)
		if rv.IsNil() {
			return Identity{}, false
		}
		return Identity{kind: KindObject, ptr: rv.Pointer()}, true
	case []any:
		rv := reflect.ValueOf(v)
		if rv.Len() == 0 {
			return Identity{}, false
		}
		return Identity{kind: KindArray, ptr: rv.Pointer(), n: rv.Len()}, true
	}
	return Identity{}, false
}
