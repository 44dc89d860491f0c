package fingerprint

import (
	"strings"

	"golang.org/x/net/html"
)

// shingleSize is the n in the n-gram shingles over the element sequence.
const shingleSize = 3

// skipped elements carry no layout.
var skipped = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"path":     true,
	"link":     true,
	"meta":     true,
}

// Layout fingerprints the element structure of a document. Each element
// contributes its tag name and first class token, so a listing grid keeps
// the same fingerprint as its products change, while a redesigned grid does
// not.
func Layout(rawHTML string) uint64 {
	elems := elements(rawHTML)
	if len(elems) == 0 {
		return 0
	}
	shingles := makeShingles(elems, shingleSize)
	if len(shingles) == 0 {
		return Hash(strings.Join(elems, " "))
	}
	return Hash(strings.Join(shingles, " "))
}

// Title returns the text of the document's first <title> element.
func Title(rawHTML string) string {
	z := html.NewTokenizer(strings.NewReader(rawHTML))
	inTitle := false
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			name, _ := z.TagName()
			inTitle = string(name) == "title"
		case html.TextToken:
			if inTitle {
				return strings.TrimSpace(string(z.Text()))
			}
		case html.EndTagToken:
			if inTitle {
				return ""
			}
		}
	}
}

func elements(rawHTML string) []string {
	z := html.NewTokenizer(strings.NewReader(rawHTML))
	var out []string
	for {
		switch z.Next() {
		case html.ErrorToken:
			return out
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			tag := string(name)
			if skipped[tag] {
				continue
			}
			if class := firstClass(z, hasAttr); class != "" {
				tag += "." + class
			}
			out = append(out, tag)
		}
	}
}

func firstClass(z *html.Tokenizer, more bool) string {
	for more {
		var key, val []byte
		key, val, more = z.TagAttr()
		if string(key) == "class" {
			if f := strings.Fields(string(val)); len(f) > 0 {
				return f[0]
			}
			return ""
		}
	}
	return ""
}

// makeShingles creates n-gram shingles from a slice of tokens.
func makeShingles(tokens []string, n int) []string {
	if len(tokens) < n {
		return nil
	}
	shingles := make([]string, 0, len(tokens)-n+1)
	for i := 0; i <= len(tokens)-n; i++ {
		shingles = append(shingles, strings.Join(tokens[i:i+n], "_"))
	}
	return shingles
}
