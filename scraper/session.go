package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"github.com/use-agent/catalog/engine"
	"github.com/use-agent/catalog/models"
	"github.com/use-agent/catalog/payload"
	"github.com/use-agent/catalog/resolver"
)

// Session is one rendered listing page. It implements resolver.Provider:
// each source is read only when the resolver asks for it.
type Session struct {
	scraper *Scraper
	page    *rod.Page

	URL        string
	FinalURL   string
	Title      string
	StatusCode int

	NavigationTime  time.Duration
	BlockedRequests int64

	htmlOnce sync.Once
	html     string
	htmlErr  error
}

var _ resolver.Provider = (*Session)(nil)

// Blocked reports whether the page looks like a bot wall.
func (s *Session) Blocked() bool {
	return Blocked(s.StatusCode, s.Title)
}

// HTML returns the rendered document, read once.
func (s *Session) HTML() (string, error) {
	s.htmlOnce.Do(func() {
		s.html, s.htmlErr = s.page.HTML()
	})
	return s.html, s.htmlErr
}

// Fetch implements resolver.Provider.
func (s *Session) Fetch(ctx context.Context, kind models.SourceKind, ec models.ExtractionContext) (any, error) {
	switch kind {
	case models.SourceEmbeddedState:
		return s.embeddedState(ctx)
	case models.SourceInternalAPI:
		return s.internalAPI(ctx, ec)
	case models.SourceStructuredMarkup:
		return s.structuredMarkup()
	default:
		return nil, fmt.Errorf("scraper: unknown source %q", kind)
	}
}

// stateJS returns the first configured global that serialises, or "".
const stateJS = `(names) => {
	for (const n of names) {
		const v = window[n];
		if (v === undefined || v === null) continue;
		try { return JSON.stringify(v); } catch (e) {}
	}
	return "";
}`

func (s *Session) embeddedState(ctx context.Context) (any, error) {
	globals := s.scraper.scraperCfg.StateGlobals

	res, err := s.page.Context(ctx).Eval(stateJS, globals)
	if err == nil {
		if raw := res.Value.Str(); raw != "" {
			v, decErr := payload.DecodeString(raw)
			if decErr != nil {
				return nil, &resolver.SourceUnavailableError{Kind: models.SourceEmbeddedState, Err: decErr}
			}
			return v, nil
		}
	}

	// The global may have been consumed and deleted by hydration; the
	// inline script that assigned it is still in the document.
	html, htmlErr := s.HTML()
	if htmlErr != nil {
		return nil, &resolver.SourceUnavailableError{Kind: models.SourceEmbeddedState, Err: htmlErr}
	}
	if v := payload.InlineState(html, globals); v != nil {
		return v, nil
	}
	if err != nil {
		return nil, &resolver.SourceUnavailableError{Kind: models.SourceEmbeddedState, Err: err}
	}
	return nil, nil
}

func (s *Session) internalAPI(ctx context.Context, ec models.ExtractionContext) (any, error) {
	apiURL := APIURL(ec)
	if apiURL == "" {
		return nil, nil
	}

	cookies, err := s.page.Context(ctx).Cookies([]string{apiURL})
	if err != nil {
		cookies = nil
	}

	d := engine.NewDispatcher(
		[]engine.Engine{s.scraper.httpEngine, engine.NewRodEngine(s.pageFetch)},
		[]time.Duration{0, s.scraper.engineCfg.EscalationDelay},
		s.scraper.memory,
	)
	res, err := d.Dispatch(ctx, &engine.FetchRequest{
		URL:     apiURL,
		Headers: map[string]string{"Referer": s.FinalURL},
		Cookies: toHTTPCookies(cookies),
		Timeout: s.scraper.engineCfg.HTTPTimeout,
	})
	if err != nil {
		var se *engine.StatusError
		if errors.As(err, &se) {
			return nil, &resolver.SourceUnavailableError{Kind: models.SourceInternalAPI, Status: se.Status, Err: err}
		}
		return nil, &resolver.SourceUnavailableError{Kind: models.SourceInternalAPI, Err: err}
	}

	v, err := payload.Decode(res.Body)
	if err != nil {
		return nil, &resolver.SourceUnavailableError{Kind: models.SourceInternalAPI, Status: res.StatusCode, Err: err}
	}
	return v, nil
}

func (s *Session) structuredMarkup() (any, error) {
	html, err := s.HTML()
	if err != nil {
		return nil, &resolver.SourceUnavailableError{Kind: models.SourceStructuredMarkup, Err: err}
	}
	return payload.ItemList(html), nil
}

// pageFetchJS issues a same-origin fetch with the page's own session.
const pageFetchJS = `async (url, headers) => {
	const r = await fetch(url, { credentials: "include", headers });
	return {
		status: r.status,
		type: r.headers.get("content-type") || "",
		url: r.url,
		body: await r.text(),
	};
}`

// pageFetch is the in-page engine.
func (s *Session) pageFetch(ctx context.Context, req *engine.FetchRequest) (*engine.FetchResult, error) {
	headers := map[string]string{
		"Accept":           "application/json, text/plain, */*",
		"X-Requested-With": "XMLHttpRequest",
	}
	res, err := s.page.Context(ctx).Eval(pageFetchJS, req.URL, headers)
	if err != nil {
		return nil, fmt.Errorf("page: in-page fetch: %w", err)
	}
	return parsePageFetch(res.Value, req.URL), nil
}

func parsePageFetch(v gson.JSON, reqURL string) *engine.FetchResult {
	finalURL := v.Get("url").Str()
	if finalURL == "" {
		finalURL = reqURL
	}
	return &engine.FetchResult{
		Body:        []byte(v.Get("body").Str()),
		ContentType: v.Get("type").Str(),
		StatusCode:  v.Get("status").Int(),
		FinalURL:    finalURL,
	}
}

// toHTTPCookies converts browser cookies for the HTTP engine.
func toHTTPCookies(in []*proto.NetworkCookie) []http.Cookie {
	out := make([]http.Cookie, 0, len(in))
	for _, c := range in {
		if c == nil || c.Name == "" {
			continue
		}
		out = append(out, http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		})
	}
	return out
}
