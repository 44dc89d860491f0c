package scraper

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/use-agent/catalog/engine"
	"github.com/use-agent/catalog/models"
)

// VisitRequest describes one listing page visit.
type VisitRequest struct {
	URL     string
	Timeout time.Duration
	Stealth bool
	Headers map[string]string
	Actions []models.Action
}

// Visit navigates a pooled tab to req.URL and calls fn with a Session over
// the rendered page. The tab is reset and returned to the pool when fn
// returns, so fn must not retain the Session.
//
// Lifecycle:
//
//  1. Timeout guard          – hard deadline on the entire visit
//  2. Acquire page           – borrow a tab from the pool (or create one)
//  3. DEFER: cleanup         – about:blank + return to pool
//  4. Stealth + identity     – evasions, user agent, referer (before navigation!)
//  5. Hijack mount           – block heavy resources and ad hosts (before navigation!)
//  6. Navigate + settle      – DOM stable, status code, title
//  7. Page preparation       – overlays, configured actions, lazy-load scroll
//  8. Hand off               – fn(session)
func (s *Scraper) Visit(ctx context.Context, req *VisitRequest, fn func(*Session) error) error {
	// ── 1. Timeout guard ──────────────────────────────────────────────
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = s.scraperCfg.DefaultTimeout
	}
	if s.scraperCfg.MaxTimeout > 0 && timeout > s.scraperCfg.MaxTimeout {
		timeout = s.scraperCfg.MaxTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// ── 2. Acquire page from pool ─────────────────────────────────────
	s.activePages.Add(1)
	defer s.activePages.Add(-1)

	page, acquireErr := s.pagePool.Get(func() (*rod.Page, error) {
		return s.browser.Page(proto.TargetCreateTarget{})
	})
	if acquireErr != nil {
		return models.NewCatalogError(
			models.ErrCodeBrowserCrash,
			"failed to acquire page from pool",
			acquireErr,
		)
	}

	// ── 3. Cleanup: reset DOM and return the tab ─────────────────────
	defer func() {
		if navErr := page.Navigate("about:blank"); navErr != nil {
			slog.Warn("cleanup: failed to navigate to about:blank", "error", navErr)
		}
		s.pagePool.Put(page)
	}()

	// ── 4. Stealth + identity ─────────────────────────────────────────
	if req.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
		}
	}
	_ = proto.NetworkSetUserAgentOverride{UserAgent: engine.UserAgent}.Call(page)

	extraHeaders := make(map[string]string, len(req.Headers)+1)
	if _, hasReferer := req.Headers["Referer"]; !hasReferer {
		if u, parseErr := url.Parse(req.URL); parseErr == nil {
			extraHeaders["Referer"] = "https://www.google.com/search?q=" + url.QueryEscape(u.Hostname())
		}
	}
	for k, v := range req.Headers {
		extraHeaders[k] = v
	}
	if len(extraHeaders) > 0 {
		_ = proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(extraHeaders)}.Call(page)
	}

	// ── 5. Mount hijack router ────────────────────────────────────────
	h := setupHijack(page, s.scraperCfg.BlockedResourceTypes, s.scraperCfg.BlockAds)
	if h != nil {
		defer h.Stop()
	}

	p := page.Context(ctx)

	// ── 6. Navigate + settle ──────────────────────────────────────────
	start := time.Now()
	if err := p.Navigate(req.URL); err != nil {
		return categorizeError(err, "navigation to listing page failed")
	}
	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM", "url", req.URL, "error", err)
	}

	// Navigation timing carries the status without a Network listener,
	// which would conflict with the hijack router's Fetch domain.
	statusCode := 0
	if res, err := p.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch (e) {}
		return 0;
	}`); err == nil {
		statusCode = res.Value.Int()
	}

	sess := &Session{
		scraper:    s,
		page:       p,
		URL:        req.URL,
		FinalURL:   evalStringOrEmpty(p, `() => window.location.href`),
		Title:      evalStringOrEmpty(p, `() => document.title`),
		StatusCode: statusCode,
	}
	if sess.FinalURL == "" {
		sess.FinalURL = req.URL
	}

	// ── 7. Page preparation ───────────────────────────────────────────
	// A block page has nothing to click or scroll.
	if !Blocked(sess.StatusCode, sess.Title) {
		if s.scraperCfg.RemoveOverlays {
			removeOverlays(p)
		}
		if len(req.Actions) > 0 {
			if err := executeActions(ctx, page, req.Actions); err != nil {
				return err
			}
		}
		if s.scraperCfg.ScrollSteps > 0 {
			if err := execScroll(p, models.Action{Type: "scroll", Amount: s.scraperCfg.ScrollSteps}); err != nil {
				slog.Debug("lazy-load scroll failed", "url", req.URL, "error", err)
			}
		}
	}
	sess.NavigationTime = time.Since(start)
	if h != nil {
		sess.BlockedRequests = h.Blocked()
	}

	// ── 8. Hand off ───────────────────────────────────────────────────
	return fn(sess)
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors.
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// toHeadersMap converts a plain string map to proto.NetworkHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// removeOverlays removes fixed/sticky elements with a high z-index, which
// are typically cookie consent banners and newsletter popups.
func removeOverlays(p *rod.Page) {
	const js = `() => {
		for (const el of document.querySelectorAll('*')) {
			const style = window.getComputedStyle(el);
			if (style.position === 'fixed' || style.position === 'sticky') {
				const z = parseInt(style.zIndex, 10);
				if (z >= 900) el.remove();
			}
		}
		const selectors = [
			'[class*="cookie"]', '[class*="consent"]', '[id*="cookie"]',
			'[id*="consent"]', '[id*="onetrust"]', '[class*="gdpr"]',
			'[class*="newsletter-popup"]', '[class*="modal-backdrop"]',
		];
		for (const sel of selectors) {
			document.querySelectorAll(sel).forEach(el => {
				const pos = window.getComputedStyle(el).position;
				if (pos === 'fixed' || pos === 'sticky' || pos === 'absolute') el.remove();
			});
		}
		document.documentElement.style.overflow = '';
		document.body.style.overflow = '';
	}`
	_, _ = p.Eval(js)
}

// categorizeError wraps raw errors into typed CatalogErrors so the API layer
// can map them to HTTP status codes.
func categorizeError(err error, msg string) *models.CatalogError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewCatalogError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewCatalogError(models.ErrCodeTimeout, "visit canceled", err)
	default:
		return models.NewCatalogError(models.ErrCodeNavigation, msg, err)
	}
}
