package payload

import (
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

var (
	ldJSONScripts = cascadia.MustCompile(`script[type*="ld+json"]`)
	inlineScripts = cascadia.MustCompile(`script:not([src])`)
)

// ItemList concatenates the elements of every ItemList-typed structured-data
// block in rawHTML into a single {"@type":"ItemList","itemListElement":[...]}
// value. Blocks nested in "@graph" are included. It returns nil when the page
// carries no ItemList.
func ItemList(rawHTML string) any {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil
	}

	var elements []any
	doc.FindMatcher(ldJSONScripts).Each(func(i int, s *goquery.Selection) {
		v, err := DecodeString(s.Text())
		if err != nil {
			slog.Debug("skipping malformed ld+json block", "index", i, "error", err)
			return
		}
		elements = collectItemLists(v, elements)
	})

	if len(elements) == 0 {
		return nil
	}
	return map[string]any{
		"@type":           "ItemList",
		"itemListElement": elements,
	}
}

func collectItemLists(v any, out []any) []any {
	switch node := v.(type) {
	case []any:
		for _, child := range node {
			out = collectItemLists(child, out)
		}
	case map[string]any:
		if graph, ok := node["@graph"]; ok {
			out = collectItemLists(graph, out)
		}
		if isType(node["@type"], "ItemList") {
			out = append(out, Array(node["itemListElement"])...)
		}
	}
	return out
}

func isType(v any, want string) bool {
	switch t := v.(type) {
	case string:
		return strings.EqualFold(t, want)
	case []any:
		for _, e := range t {
			if s, ok := e.(string); ok && strings.EqualFold(s, want) {
				return true
			}
		}
	}
	return false
}
