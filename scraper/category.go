package scraper

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/use-agent/catalog/models"
)

// categorySuffix matches listing paths such as "/uk/en/man-shirts-l737.html".
var categorySuffix = regexp.MustCompile(`-l(\d+)\.html$`)

// localeSegment matches one locale path segment ("uk", "en", "en-gb").
var localeSegment = regexp.MustCompile(`^[a-z]{2}(-[a-z]{2})?$`)

// CategoryID extracts the listing's category id from the "v1" query
// parameter or the "-l<digits>.html" path suffix. It returns "" when the URL
// carries neither.
func CategoryID(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	if v := strings.TrimSpace(u.Query().Get("v1")); v != "" {
		return v
	}
	if m := categorySuffix.FindStringSubmatch(u.Path); m != nil {
		return m[1]
	}
	return ""
}

// LocaleOf returns the leading locale segments of the URL path ("uk/en").
func LocaleOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	var parts []string
	for _, seg := range strings.Split(strings.Trim(u.Path, "/"), "/") {
		if len(parts) == 2 || !localeSegment.MatchString(strings.ToLower(seg)) {
			break
		}
		parts = append(parts, strings.ToLower(seg))
	}
	return strings.Join(parts, "/")
}

// BaseURL returns the scheme and host of rawURL.
func BaseURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	scheme := u.Scheme
	if scheme == "" {
		scheme = "https"
	}
	return scheme + "://" + u.Host
}

// PageURL returns the listing URL for a 1-based page. Page 1 is the URL
// without a page parameter.
func PageURL(rawURL string, page int) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	if page <= 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(page))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// APIURL builds the internal listing endpoint for ec, or "" without a
// category id.
func APIURL(ec models.ExtractionContext) string {
	if ec.CategoryID == "" {
		return ""
	}
	u := strings.TrimRight(ec.BaseURL, "/") + ec.LocalePrefix() +
		"/category/" + url.PathEscape(ec.CategoryID) + "/products?ajax=true"
	if ec.Page > 1 {
		u += "&page=" + strconv.Itoa(ec.Page)
	}
	return u
}

// ContextFor builds the extraction context for one listing page. An empty
// locale is derived from the URL.
func ContextFor(rawURL, locale string, targetCount, page int) models.ExtractionContext {
	if locale == "" {
		locale = LocaleOf(rawURL)
	}
	if page < 1 {
		page = 1
	}
	return models.ExtractionContext{
		Locale:      locale,
		BaseURL:     BaseURL(rawURL),
		CategoryID:  CategoryID(rawURL),
		TargetCount: targetCount,
		Page:        page,
	}
}

// blockedTitles are lower-cased fragments of interstitial and bot-wall page
// titles.
var blockedTitles = []string{
	"access denied",
	"attention required",
	"just a moment",
	"pardon our interruption",
	"are you a robot",
	"request unsuccessful",
	"captcha",
	"forbidden",
	"bot detection",
	"security check",
}

// BlockedTitle reports whether a page title looks like a block page.
func BlockedTitle(title string) bool {
	t := strings.ToLower(strings.TrimSpace(title))
	if t == "" {
		return false
	}
	for _, frag := range blockedTitles {
		if strings.Contains(t, frag) {
			return true
		}
	}
	return false
}

// Blocked reports whether a navigation answered with a block status or a
// block-page title.
func Blocked(status int, title string) bool {
	return status == 403 || status == 429 || BlockedTitle(title)
}
