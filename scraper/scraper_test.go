package scraper

import (
	"testing"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ysmood/gson"

	"github.com/use-agent/catalog/models"
)

func TestCategoryID(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.example.com/uk/en/man-shirts-l737.html", "737"},
		{"https://www.example.com/uk/en/man-shirts-l737.html?v1=2112345", "2112345"},
		{"https://www.example.com/uk/en/woman-new-in-l1180.html?page=3", "1180"},
		{"https://www.example.com/uk/en/shirts.html", ""},
		{"https://www.example.com/uk/en/man-l737.htm", ""},
		{"::not a url", ""},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, CategoryID(tt.url))
		})
	}
}

func TestLocaleOf(t *testing.T) {
	assert.Equal(t, "uk/en", LocaleOf("https://www.example.com/uk/en/man-shirts-l737.html"))
	assert.Equal(t, "de", LocaleOf("https://www.example.com/de/herren-l1.html"))
	assert.Equal(t, "es/en-gb", LocaleOf("https://www.example.com/ES/en-gb/x/y"))
	assert.Equal(t, "", LocaleOf("https://www.example.com/shop/shirts"))
	assert.Equal(t, "", LocaleOf("https://www.example.com/"))
}

func TestPageURL(t *testing.T) {
	base := "https://www.example.com/uk/en/man-shirts-l737.html?v1=2112345"
	assert.Equal(t, base, PageURL(base, 1))
	assert.Equal(t, "https://www.example.com/uk/en/man-shirts-l737.html?page=3&v1=2112345", PageURL(base, 3))
	assert.Equal(t, base, PageURL(PageURL(base, 4), 1))
}

func TestAPIURL(t *testing.T) {
	ec := models.ExtractionContext{
		Locale:     "uk/en",
		BaseURL:    "https://www.example.com/",
		CategoryID: "737",
		Page:       1,
	}
	assert.Equal(t, "https://www.example.com/uk/en/category/737/products?ajax=true", APIURL(ec))

	ec.Page = 2
	assert.Equal(t, "https://www.example.com/uk/en/category/737/products?ajax=true&page=2", APIURL(ec))

	ec.CategoryID = ""
	assert.Empty(t, APIURL(ec))
}

func TestContextFor(t *testing.T) {
	ec := ContextFor("https://www.example.com/uk/en/man-shirts-l737.html", "", 50, 0)
	assert.Equal(t, models.ExtractionContext{
		Locale:      "uk/en",
		BaseURL:     "https://www.example.com",
		CategoryID:  "737",
		TargetCount: 50,
		Page:        1,
	}, ec)

	ec = ContextFor("https://www.example.com/uk/en/man-shirts-l737.html", "gb/en", 50, 2)
	assert.Equal(t, "gb/en", ec.Locale)
	assert.Equal(t, 2, ec.Page)
}

func TestBlocked(t *testing.T) {
	assert.True(t, BlockedTitle("Access Denied"))
	assert.True(t, BlockedTitle("Just a moment..."))
	assert.True(t, BlockedTitle("  Pardon Our Interruption "))
	assert.False(t, BlockedTitle("Shirts | Men | Example UK"))
	assert.False(t, BlockedTitle(""))

	assert.True(t, Blocked(403, "Shirts"))
	assert.True(t, Blocked(429, ""))
	assert.True(t, Blocked(200, "Attention Required! | Cloudflare"))
	assert.False(t, Blocked(200, "Shirts"))
	assert.False(t, Blocked(404, "Page not found"))
}

func TestIsAdDomain(t *testing.T) {
	assert.True(t, isAdDomain("doubleclick.net"))
	assert.True(t, isAdDomain("stats.g.doubleclick.net"))
	assert.True(t, isAdDomain("WWW.Google-Analytics.com."))
	assert.False(t, isAdDomain("www.example.com"))
	assert.False(t, isAdDomain("notdoubleclick.net"))
	assert.False(t, isAdDomain(""))
}

func TestShouldBlock(t *testing.T) {
	blocked := blockedTypeSet([]string{"Image", "Font", "Bogus"})
	require.Len(t, blocked, 2)

	assert.True(t, shouldBlock(blocked, false, proto.NetworkResourceTypeImage, "https://static.example.com/a.jpg"))
	assert.False(t, shouldBlock(blocked, false, proto.NetworkResourceTypeXHR, "https://www.example.com/api"))
	assert.False(t, shouldBlock(blocked, false, proto.NetworkResourceTypeScript, "https://www.googletagmanager.com/gtm.js"))
	assert.True(t, shouldBlock(blocked, true, proto.NetworkResourceTypeScript, "https://www.googletagmanager.com/gtm.js"))
	assert.False(t, shouldBlock(blocked, true, proto.NetworkResourceTypeFetch, "https://www.example.com/uk/en/category/737/products?ajax=true"))
}

func TestParsePageFetch(t *testing.T) {
	v := gson.NewFrom(`{
		"status": 200,
		"type": "application/json",
		"url": "https://www.example.com/final",
		"body": "{\"productGroups\":[]}"
	}`)
	res := parsePageFetch(v, "https://www.example.com/req")
	assert.Equal(t, 200, res.StatusCode)
	assert.Equal(t, "application/json", res.ContentType)
	assert.Equal(t, "https://www.example.com/final", res.FinalURL)
	assert.JSONEq(t, `{"productGroups":[]}`, string(res.Body))

	res = parsePageFetch(gson.NewFrom(`{"status": 403, "body": ""}`), "https://www.example.com/req")
	assert.Equal(t, 403, res.StatusCode)
	assert.Equal(t, "https://www.example.com/req", res.FinalURL)
}

func TestToHTTPCookies(t *testing.T) {
	in := []*proto.NetworkCookie{
		{Name: "session", Value: "abc", Domain: ".example.com", Path: "/", Secure: true, HTTPOnly: true},
		nil,
		{Name: "", Value: "orphan"},
	}
	out := toHTTPCookies(in)
	require.Len(t, out, 1)
	assert.Equal(t, "session", out[0].Name)
	assert.Equal(t, "abc", out[0].Value)
	assert.True(t, out[0].Secure)
	assert.True(t, out[0].HttpOnly)
}
