package rules

import (
	"strconv"
	"strings"

	"github.com/use-agent/catalog/payload"
)

// mediaRef returns the raw (unresolved) URL of one media entry: a string,
// an object with url/src, or an object with path+name.
func mediaRef(v any, env *Env) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	m := payload.Object(v)
	if m == nil {
		return ""
	}
	for _, k := range []string{"url", "src", "contentUrl"} {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	path, _ := m["path"].(string)
	name, _ := m["name"].(string)
	if path != "" && name != "" {
		path = "/" + strings.Trim(path, "/")
		return "/photos" + path + "/w/" + strconv.Itoa(env.imageWidth()) + "/" + name + ".jpg"
	}
	return ""
}

// isVideo reports whether a media entry is a video clip.
func isVideo(v any) bool {
	m := payload.Object(v)
	if m == nil {
		if s, ok := v.(string); ok {
			return hasVideoExt(s)
		}
		return false
	}
	for _, k := range []string{"type", "kind", "mediaType", "format"} {
		if s, ok := m[k].(string); ok && strings.Contains(strings.ToLower(s), "video") {
			return true
		}
	}
	if s, ok := m["url"].(string); ok {
		return hasVideoExt(s)
	}
	return false
}

func hasVideoExt(s string) bool {
	s = strings.ToLower(s)
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	return strings.HasSuffix(s, ".mp4") || strings.HasSuffix(s, ".m3u8") || strings.HasSuffix(s, ".webm")
}

// pickMedia chooses the first non-video entry with a usable URL, falling back
// to the first usable entry of any type.
func pickMedia(v any, env *Env) string {
	entries := payload.Array(v)
	if entries == nil {
		if v == nil {
			return ""
		}
		entries = []any{v}
	}

	fallback := ""
	for _, e := range entries {
		ref := mediaRef(e, env)
		if ref == "" {
			continue
		}
		abs := ImageURL(ref, env)
		if abs == "" {
			continue
		}
		if !isVideo(e) {
			return abs
		}
		if fallback == "" {
			fallback = abs
		}
	}
	return fallback
}

func mediaAt(path string) Rule[string] {
	return Rule[string]{
		Name: path,
		Extract: func(obj map[string]any, env *Env) (string, bool) {
			v, ok := payload.Lookup(obj, path)
			if !ok {
				return "", false
			}
			u := pickMedia(v, env)
			return u, u != ""
		},
	}
}

// Image is the primary image chain.
var Image = Chain[string]{
	mediaAt("colors.0.pdpMedia"),
	mediaAt("colors.0.xmedia"),
	mediaAt("xmedia"),
	mediaAt("image"),
	mediaAt("images"),
	mediaAt("image.url"),
}
