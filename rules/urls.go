package rules

import (
	"net/url"
	"strings"
)

// AbsoluteURL resolves raw against base. Protocol-relative URLs get https.
// Returns "" when raw cannot be parsed or base is unusable for a relative raw.
func AbsoluteURL(raw, base string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if u.IsAbs() {
		if u.Scheme != "http" && u.Scheme != "https" {
			return ""
		}
		return u.String()
	}

	b, err := url.Parse(originOf(base))
	if err != nil || b.Host == "" {
		return ""
	}
	return b.ResolveReference(u).String()
}

// StripQuery drops the query string and fragment from an absolute URL.
func StripQuery(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// originOf adds a scheme to bare hosts ("static.example.net").
func originOf(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return ""
	}
	if strings.HasPrefix(base, "//") {
		return "https:" + base
	}
	if !strings.Contains(base, "://") {
		return "https://" + base
	}
	return base
}

// ImageURL absolutizes raw against the static host (or the base URL when no
// static host is configured) and strips its query string.
func ImageURL(raw string, env *Env) string {
	host := ""
	if env != nil {
		host = env.StaticHost
		if host == "" {
			host = env.Ctx.BaseURL
		}
	}
	abs := AbsoluteURL(raw, host)
	if abs == "" {
		return ""
	}
	return StripQuery(abs)
}

// ProductURL absolutizes raw against the canonical site origin.
func ProductURL(raw string, env *Env) string {
	if env == nil {
		return AbsoluteURL(raw, "")
	}
	return AbsoluteURL(raw, env.Ctx.BaseURL)
}

// FallbackProductURL builds the generic /product/{id}.html location.
func FallbackProductURL(id string, env *Env) string {
	if id == "" {
		return ""
	}
	return ProductURL("/product/"+url.PathEscape(id)+".html", env)
}

// seoURL assembles {localePrefix}/{slug}-p{seoId}.html.
var seoURL = Rule[string]{
	Name: "seo.keyword",
	Extract: func(obj map[string]any, env *Env) (string, bool) {
		slug, _ := stringAt("seo.keyword").Extract(obj, env)
		seoID, _ := scalarAt("seo.seoProductId").Extract(obj, env)
		if slug == "" || seoID == "" {
			return "", false
		}
		prefix := ""
		if env != nil {
			prefix = env.Ctx.LocalePrefix()
		}
		u := ProductURL(prefix+"/"+strings.Trim(slug, "/")+"-p"+seoID+".html", env)
		return u, u != ""
	},
}

func productURLAt(path string) Rule[string] {
	base := stringAt(path)
	return Rule[string]{
		Name: path,
		Extract: func(obj map[string]any, env *Env) (string, bool) {
			s, ok := base.Extract(obj, env)
			if !ok {
				return "", false
			}
			u := ProductURL(s, env)
			return u, u != ""
		},
	}
}

// URL is the product page chain. The /product/{id}.html fallback needs the
// final cleaned id and is applied by the caller.
var URL = Chain[string]{
	seoURL,
	productURLAt("semanticUrl"),
	productURLAt("url"),
	productURLAt("item.url"),
	productURLAt("@id"),
}
