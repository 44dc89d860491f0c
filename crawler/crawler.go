// Package crawler runs catalog crawls: it visits category listing pages,
// paginates until the run's target is met or the listing is exhausted, and
// feeds every page through the extraction pipeline.
package crawler

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/use-agent/catalog/cache"
	"github.com/use-agent/catalog/config"
	"github.com/use-agent/catalog/engine"
	"github.com/use-agent/catalog/fingerprint"
	"github.com/use-agent/catalog/metrics"
	"github.com/use-agent/catalog/models"
	"github.com/use-agent/catalog/pipeline"
	"github.com/use-agent/catalog/resolver"
	"github.com/use-agent/catalog/scraper"
	"github.com/use-agent/catalog/tracker"
	"github.com/use-agent/catalog/webhook"
)

// Options tune crawl runs.
type Options struct {
	// Concurrency is the number of categories crawled in parallel.
	Concurrency int

	// RequestsPerSecond and Burst pace page visits within one run. Zero
	// disables pacing.
	RequestsPerSecond float64
	Burst             int

	// LayoutDriftDistance is the fingerprint distance above which an empty
	// page is reported as a layout change.
	LayoutDriftDistance int

	// WebhookSecret signs events when the run has no secret of its own.
	WebhookSecret string
}

// OptionsFrom converts the crawl configuration.
func OptionsFrom(c config.CrawlConfig) Options {
	return Options{
		Concurrency:         c.Concurrency,
		RequestsPerSecond:   c.RequestsPerSecond,
		Burst:               c.Burst,
		LayoutDriftDistance: c.LayoutDriftDistance,
	}
}

// Deps are the collaborators of a Crawler. Browser and Pipeline are
// required; the rest may be nil.
type Deps struct {
	Browser  Browser
	Pipeline *pipeline.Pipeline
	Metrics  *metrics.Metrics
	Notifier *webhook.Notifier
	Cache    *cache.Cache[Snapshot]
	Memory   *engine.DomainMemory
}

// Crawler is safe for concurrent runs.
type Crawler struct {
	deps      Deps
	opts      Options
	baselines *fingerprint.Baselines
}

// New creates a Crawler.
func New(deps Deps, opts Options) *Crawler {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	return &Crawler{deps: deps, opts: opts, baselines: fingerprint.NewBaselines()}
}

// run is the shared state of one crawl run.
type run struct {
	job      *models.RunJob
	req      models.RunRequest
	state    *tracker.State
	limiter  *rate.Limiter
	secret   string
	failures atomic.Int32
}

// Run crawls every category in req, records pages on job, and returns the
// terminal status it set on job.
//
// Categories run concurrently and share one tracker, so the target and the
// seen-id set hold across the whole run. A category stops paginating when
// the target is met, a page yields no new records, or MaxPages is reached.
func (c *Crawler) Run(ctx context.Context, job *models.RunJob, req models.RunRequest) string {
	req.Defaults()
	start := time.Now()

	c.deps.Metrics.RunStarted()
	defer c.deps.Metrics.RunFinished()

	r := &run{
		job:     job,
		req:     req,
		state:   tracker.New(req.TargetCount),
		limiter: c.newLimiter(),
		secret:  req.WebhookSecret,
	}
	if r.secret == "" {
		r.secret = c.opts.WebhookSecret
	}

	slog.Info("crawl run started",
		"runId", job.ID,
		"categories", len(req.CategoryURLs),
		"targetCount", req.TargetCount,
		"maxPages", req.MaxPages,
	)

	// ── 1. Fan out over categories ───────────────────────────────────
	sem := make(chan struct{}, c.opts.Concurrency)
	var wg sync.WaitGroup
dispatch:
	for _, categoryURL := range req.CategoryURLs {
		if r.state.Done() {
			break
		}
		select {
		case <-ctx.Done():
			break dispatch
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			defer func() { <-sem }()
			if !c.crawlCategory(ctx, r, u) {
				r.failures.Add(1)
			}
		}(categoryURL)
	}
	wg.Wait()

	// ── 2. Finish ────────────────────────────────────────────────────
	status := finalStatus(ctx.Err() != nil, int(r.failures.Load()), r.state.Saved())
	job.Finish(status)
	c.deps.Memory.Prune()

	event := webhook.EventRunCompleted
	if status == models.RunFailed {
		event = webhook.EventRunFailed
	}
	c.deps.Notifier.DeliverAsync(req.WebhookURL, r.secret, webhook.NewEvent(event, job.ID, job.StatusResponse()))

	slog.Info("crawl run finished",
		"runId", job.ID,
		"status", status,
		"saved", r.state.Saved(),
		"target", req.TargetCount,
		"failedCategories", r.failures.Load(),
		"elapsed", time.Since(start),
	)
	return status
}

// finalStatus: completed when no category failed, partial when some did but
// records were saved, failed otherwise.
func finalStatus(canceled bool, failures, saved int) string {
	switch {
	case (canceled || failures > 0) && saved == 0:
		return models.RunFailed
	case canceled || failures > 0:
		return models.RunPartial
	default:
		return models.RunCompleted
	}
}

func (c *Crawler) newLimiter() *rate.Limiter {
	if c.opts.RequestsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, c.opts.Burst)
	}
	return rate.NewLimiter(rate.Limit(c.opts.RequestsPerSecond), c.opts.Burst)
}

// crawlCategory paginates one category. It returns false when a page failed.
func (c *Crawler) crawlCategory(ctx context.Context, r *run, categoryURL string) bool {
	for page := 1; page <= r.req.MaxPages; page++ {
		if r.state.Done() {
			return true
		}
		if err := r.limiter.Wait(ctx); err != nil {
			return false
		}

		pr, accepted, err := c.visitPage(ctx, r, categoryURL, page)
		r.job.AddPage(pr, accepted, r.state.Saved())
		c.deps.Notifier.DeliverAsync(r.req.WebhookURL, r.secret, webhook.NewEvent(webhook.EventRunPage, r.job.ID, pr))

		if err != nil {
			slog.Warn("crawl page failed", "runId", r.job.ID, "url", pr.URL, "error", err)
			return false
		}
		if pr.Outcome != models.OutcomeFound || len(accepted) == 0 {
			slog.Debug("category exhausted", "runId", r.job.ID, "url", categoryURL, "page", page, "reason", pr.EmptyReason)
			return true
		}
	}
	return true
}

// visitPage resolves one listing page, from the cache when possible.
func (c *Crawler) visitPage(ctx context.Context, r *run, categoryURL string, page int) (*models.PageResult, []models.NormalizedProduct, error) {
	start := time.Now()
	pageURL := scraper.PageURL(categoryURL, page)
	ec := scraper.ContextFor(categoryURL, r.req.Locale, r.req.TargetCount, page)
	pr := &models.PageResult{URL: pageURL, Page: page, CategoryID: ec.CategoryID}
	key := cache.Key(pageURL, ec.Locale)

	finish := func(res *pipeline.Result, err error) (*models.PageResult, []models.NormalizedProduct, error) {
		pr.Timing.TotalMs = time.Since(start).Milliseconds()
		pr.Timing.ExtractionMs = pr.Timing.TotalMs - pr.Timing.NavigationMs
		if err != nil {
			pr.Error = errorDetail(err)
		}
		if res == nil {
			return pr, nil, err
		}
		pr.Outcome = res.Outcome
		pr.Sources = res.Sources
		pr.Accepted = len(res.Accepted)
		c.deps.Metrics.ObservePage(res.Outcome, pr.EmptyReason, time.Since(start))
		return pr, res.Accepted, err
	}

	// ── 1. Cached sources ────────────────────────────────────────────
	if snap, ok := c.deps.Cache.Get(key); ok {
		pr.Cached = true
		return finish(c.deps.Pipeline.Process(ctx, resolver.NewStaticProvider(snap), ec, r.state))
	}

	// ── 2. Live visit ────────────────────────────────────────────────
	var (
		res     *pipeline.Result
		procErr error
	)
	visitErr := c.deps.Browser.Visit(ctx, &scraper.VisitRequest{
		URL:     pageURL,
		Timeout: time.Duration(r.req.Timeout) * time.Second,
		Stealth: r.req.Stealth,
		Actions: r.req.Actions,
	}, func(p *Page) error {
		pr.Title = p.Title
		pr.StatusCode = p.StatusCode
		pr.Timing.NavigationMs = p.NavigationTime.Milliseconds()

		rec := newRecorder(p.Provider)
		res, procErr = c.deps.Pipeline.Process(ctx, rec, ec, r.state)
		if res == nil {
			return procErr
		}

		html, _ := p.HTML()
		if pr.Title == "" {
			pr.Title = fingerprint.Title(html)
		}
		host := hostOf(p.FinalURL)
		layout := fingerprint.Layout(html)
		if res.Outcome == models.OutcomeFound {
			c.baselines.Record(host, layout)
			c.deps.Cache.Set(key, rec.snapshot())
			return nil
		}
		pr.EmptyReason = c.classify(pr.StatusCode, pr.Title, host, layout)
		return nil
	})
	if visitErr != nil {
		return finish(nil, visitErr)
	}
	return finish(res, procErr)
}

// classify explains a page that produced no products.
func (c *Crawler) classify(status int, title, host string, layout uint64) models.EmptyReason {
	switch {
	case scraper.Blocked(status, title):
		return models.EmptyReasonBlocked
	case c.opts.LayoutDriftDistance > 0 && c.baselines.Drifted(host, layout, c.opts.LayoutDriftDistance):
		return models.EmptyReasonLayoutChanged
	default:
		return models.EmptyReasonEmpty
	}
}

func errorDetail(err error) *models.ErrorDetail {
	var ce *models.CatalogError
	if errors.As(err, &ce) {
		return ce.ToDetail()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &models.ErrorDetail{Code: models.ErrCodeTimeout, Message: err.Error()}
	}
	return &models.ErrorDetail{Code: models.ErrCodeInternal, Message: err.Error()}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}
