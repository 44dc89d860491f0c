package rules

import (
	"regexp"
	"strings"
)

// variantSuffix is the internal colour/variant suffix appended to ids.
var variantSuffix = regexp.MustCompile(`-I\d+$`)

// CleanID strips the variant suffix and surrounding whitespace.
func CleanID(id string) string {
	return variantSuffix.ReplaceAllString(strings.TrimSpace(id), "")
}

func cleanedID(path string) Rule[string] {
	base := scalarAt(path)
	return Rule[string]{
		Name: path,
		Extract: func(obj map[string]any, env *Env) (string, bool) {
			s, ok := base.Extract(obj, env)
			if !ok {
				return "", false
			}
			s = CleanID(s)
			return s, s != ""
		},
	}
}

// ID is the product identifier chain.
var ID = Chain[string]{
	cleanedID("id"),
	cleanedID("productId"),
	cleanedID("reference"),
	cleanedID("seo.seoProductId"),
	cleanedID("sku"),
}

// Name is the display name chain.
var Name = Chain[string]{
	stringAt("name"),
	stringAt("displayName"),
	stringAt("title"),
	scalarAt("seo.seoProductId"),
}
