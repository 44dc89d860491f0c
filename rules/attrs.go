package rules

import (
	"strings"

	"golang.org/x/text/currency"

	"github.com/use-agent/catalog/payload"
)

// ParseCurrency validates an ISO 4217 code, case-insensitively.
func ParseCurrency(s string) (string, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) != 3 {
		return "", false
	}
	unit, err := currency.ParseISO(s)
	if err != nil {
		return "", false
	}
	return unit.String(), true
}

func currencyAt(path string) Rule[string] {
	base := stringAt(path)
	return Rule[string]{
		Name: path,
		Extract: func(obj map[string]any, env *Env) (string, bool) {
			s, ok := base.Extract(obj, env)
			if !ok {
				return "", false
			}
			return ParseCurrency(s)
		},
	}
}

// Currency is the ISO currency chain. The configured default applies when
// no rule matches.
var Currency = Chain[string]{
	currencyAt("currency"),
	currencyAt("currencyIso"),
	currencyAt("currencyCode"),
	currencyAt("price.currency"),
	currencyAt("price.currencyCode"),
	currencyAt("offers.priceCurrency"),
	currencyAt("offers.0.priceCurrency"),
}

// schemaAvailability maps schema.org ItemAvailability names.
var schemaAvailability = map[string]string{
	"InStock":             "in_stock",
	"InStoreOnly":         "in_stock",
	"LimitedAvailability": "in_stock",
	"OnlineOnly":          "in_stock",
	"OutOfStock":          "out_of_stock",
	"SoldOut":             "out_of_stock",
	"Discontinued":        "out_of_stock",
	"PreOrder":            "pre_order",
	"PreSale":             "pre_order",
	"BackOrder":           "back_order",
}

// NormalizeAvailability maps schema.org availability URLs and bare
// ItemAvailability names ("InStock") onto snake_case statuses. Any other
// value is the site's own status and passes through unchanged.
func NormalizeAvailability(s string) string {
	s = strings.TrimSpace(s)
	token := s
	if i := strings.LastIndexByte(token, '/'); i >= 0 {
		token = token[i+1:]
	}
	if v, ok := schemaAvailability[token]; ok {
		return v
	}
	return s
}

func availabilityAt(path string) Rule[string] {
	base := nameOrStatus(path)
	return Rule[string]{
		Name: path,
		Extract: func(obj map[string]any, env *Env) (string, bool) {
			s, ok := base.Extract(obj, env)
			if !ok {
				return "", false
			}
			return NormalizeAvailability(s), true
		},
	}
}

// nameOrStatus reads a string, or the "status" of an object, at path.
func nameOrStatus(path string) Rule[string] {
	return Rule[string]{
		Name: path,
		Extract: func(obj map[string]any, _ *Env) (string, bool) {
			v, ok := payload.Lookup(obj, path)
			if !ok {
				return "", false
			}
			if m := payload.Object(v); m != nil {
				v = m["status"]
			}
			s, isStr := v.(string)
			s = strings.TrimSpace(s)
			return s, isStr && s != ""
		},
	}
}

func stockFlag(path string) Rule[string] {
	return Rule[string]{
		Name: path,
		Extract: func(obj map[string]any, _ *Env) (string, bool) {
			v, ok := payload.Lookup(obj, path)
			if !ok {
				return "", false
			}
			b, isBool := v.(bool)
			if !isBool {
				return "", false
			}
			if b {
				return "in_stock", true
			}
			return "out_of_stock", true
		},
	}
}

// Availability is the stock-status chain.
var Availability = Chain[string]{
	availabilityAt("availability"),
	stockFlag("inStock"),
	availabilityAt("offers.availability"),
	availabilityAt("offers.0.availability"),
}

// Category is the top-level category chain.
var Category = Chain[string]{
	nameOrString("category"),
	stringAt("familyName"),
	stringAt("sectionName"),
}

// Subcategory is the second-level category chain.
var Subcategory = Chain[string]{
	nameOrString("subcategory"),
	nameOrString("subCategory"),
	stringAt("subfamilyName"),
}

func arrayAt(path string) Rule[[]any] {
	return Rule[[]any]{
		Name: path,
		Extract: func(obj map[string]any, _ *Env) ([]any, bool) {
			v, ok := payload.Lookup(obj, path)
			if !ok {
				return nil, false
			}
			arr := payload.Array(v)
			return arr, arr != nil
		},
	}
}

// Colors passes the colour variant array through unchanged.
var Colors = Chain[[]any]{
	arrayAt("colors"),
	arrayAt("colours"),
}
