package payload

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// InlineState looks for page state serialized into inline scripts, either as
// a JSON script tagged with the global's name as its id
// (<script id="__NEXT_DATA__" type="application/json">) or as an assignment
// ("window.__PRELOADED_STATE__ = {...};"). Globals are tried in order and the
// first one that decodes wins. It returns nil when none is found.
func InlineState(rawHTML string, globals []string) any {
	if len(globals) == 0 {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil
	}

	var scripts []*goquery.Selection
	doc.FindMatcher(inlineScripts).Each(func(_ int, s *goquery.Selection) {
		scripts = append(scripts, s)
	})

	for _, global := range globals {
		for _, s := range scripts {
			if id, _ := s.Attr("id"); id != "" && id == global {
				if v, err := DecodeString(s.Text()); err == nil && v != nil {
					return v
				}
			}
		}
		for _, s := range scripts {
			literal := assignedLiteral(s.Text(), global)
			if literal == "" {
				continue
			}
			if v, err := DecodeString(literal); err == nil && v != nil {
				return v
			}
		}
	}
	return nil
}

// assignedLiteral returns the object or array literal assigned to global in
// src, or "". Both "window.x = " and bare "x = " forms are matched.
func assignedLiteral(src, global string) string {
	for _, prefix := range []string{"window." + global, global} {
		idx := 0
		for {
			at := strings.Index(src[idx:], prefix)
			if at < 0 {
				break
			}
			rest := strings.TrimLeft(src[idx+at+len(prefix):], " \t\r\n")
			if strings.HasPrefix(rest, "=") && !strings.HasPrefix(rest, "==") {
				if lit := balancedLiteral(strings.TrimLeft(rest[1:], " \t\r\n")); lit != "" {
					return lit
				}
			}
			idx += at + len(prefix)
		}
	}
	return ""
}

// balancedLiteral returns the leading {...} or [...] of s, honouring quoted
// strings, or "" when s does not start with one or never closes.
func balancedLiteral(s string) string {
	if s == "" || (s[0] != '{' && s[0] != '[') {
		return ""
	}
	depth := 0
	var quote byte
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}
