package rules

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/use-agent/catalog/payload"
)

// priceToken matches the first numeric token in a display string, keeping
// grouping and decimal separators ("1,299.00", "35,99", "1 299,00"). A group
// separator must be followed by exactly three digits, so "£35.99 2 colours"
// stops at "35.99".
var priceToken = regexp.MustCompile(`\d+(?:[.,\x{00a0} ]\d{3}\b)*(?:[.,]\d+)?`)

// MinorUnits applies the unit heuristic to a numeric price: an integer above
// threshold is read as minor units (pence) and divided by 100; anything else
// is returned unchanged.
func MinorUnits(v, threshold float64) float64 {
	if v > threshold && v == math.Trunc(v) {
		return v / 100
	}
	return v
}

// ParsePrice extracts the first numeric token from s and parses it as a
// major-unit amount, resolving thousands and decimal separators.
func ParsePrice(s string) (float64, bool) {
	tok := priceToken.FindString(s)
	if tok == "" {
		return 0, false
	}
	tok = strings.NewReplacer(" ", "", "\u00a0", "").Replace(tok)

	lastDot := strings.LastIndexByte(tok, '.')
	lastComma := strings.LastIndexByte(tok, ',')
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			tok = strings.ReplaceAll(tok, ".", "")
			tok = strings.Replace(tok, ",", ".", 1)
		} else {
			tok = strings.ReplaceAll(tok, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(tok, ",") == 1 && len(tok)-lastComma-1 != 3 {
			tok = strings.Replace(tok, ",", ".", 1)
		} else {
			tok = strings.ReplaceAll(tok, ",", "")
		}
	case lastDot >= 0:
		if strings.Count(tok, ".") > 1 || (len(tok)-lastDot-1 == 3 && tok[:lastDot] != "0") {
			tok = strings.ReplaceAll(tok, ".", "")
		}
	}

	f, err := strconv.ParseFloat(tok, 64)
	if err != nil || !finite(f) {
		return 0, false
	}
	return f, true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// priceValue reads a raw price value: numbers go through the unit
// heuristic, strings are parsed as display text.
func priceValue(v any, env *Env) (float64, bool) {
	if n, ok := payload.Number(v); ok {
		if !finite(n) {
			return 0, false
		}
		return MinorUnits(n, env.minorUnitThreshold()), true
	}
	if s, ok := v.(string); ok {
		return ParsePrice(s)
	}
	return 0, false
}

func priceAt(path string) Rule[float64] {
	return Rule[float64]{
		Name: path,
		Extract: func(obj map[string]any, env *Env) (float64, bool) {
			v, ok := payload.Lookup(obj, path)
			if !ok {
				return 0, false
			}
			return priceValue(v, env)
		},
	}
}

// priceObject reads {value|amount|formattedPrice} under path.
func priceObject(path string) Rule[float64] {
	return Rule[float64]{
		Name: path + "{}",
		Extract: func(obj map[string]any, env *Env) (float64, bool) {
			v, _ := payload.Lookup(obj, path)
			m := payload.Object(v)
			if m == nil {
				return 0, false
			}
			for _, k := range []string{"value", "amount", "formattedPrice"} {
				if p, ok := priceValue(m[k], env); ok {
					return p, true
				}
			}
			return 0, false
		},
	}
}

// majorAt reads a price that is always in major units (schema.org offers).
func majorAt(path string) Rule[float64] {
	return Rule[float64]{
		Name: path,
		Extract: func(obj map[string]any, _ *Env) (float64, bool) {
			v, ok := payload.Lookup(obj, path)
			if !ok {
				return 0, false
			}
			if n, ok := payload.Number(v); ok {
				return n, finite(n)
			}
			if s, ok := v.(string); ok {
				return ParsePrice(s)
			}
			return 0, false
		},
	}
}

// Price is the price chain, in major currency units.
var Price = Chain[float64]{
	priceObject("price"),
	priceAt("price"),
	priceAt("displayPrice"),
	priceAt("formattedPrice"),
	priceObject("prices"),
	majorAt("offers.price"),
	majorAt("offers.lowPrice"),
	majorAt("offers.0.price"),
}
