// Package scraper drives the browser side of a crawl: it visits listing pages
// through a pool of rod tabs and exposes each visit as a lazy source provider
// for the resolver.
package scraper

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"

	"github.com/use-agent/catalog/config"
	"github.com/use-agent/catalog/engine"
	"github.com/use-agent/catalog/models"
)

// Scraper manages the browser lifecycle, the page pool and the engines used
// for internal API fetches. It is safe for concurrent use.
type Scraper struct {
	browser    *rod.Browser
	pagePool   rod.Pool[rod.Page]
	browserCfg config.BrowserConfig
	scraperCfg config.ScraperConfig
	engineCfg  config.EngineConfig

	httpEngine *engine.HTTPEngine
	memory     *engine.DomainMemory

	// attached is true when the browser was not launched by us and must
	// not be killed on Close.
	attached    bool
	activePages atomic.Int32
	startTime   time.Time
}

// NewScraper launches a browser (or attaches to browserCfg.ControlURL) and
// initialises the page pool.
func NewScraper(browserCfg config.BrowserConfig, scraperCfg config.ScraperConfig, engineCfg config.EngineConfig) (*Scraper, error) {
	controlURL := browserCfg.ControlURL
	attached := controlURL != ""

	if !attached {
		l := launcher.New().
			Headless(browserCfg.Headless).
			NoSandbox(browserCfg.NoSandbox)

		if browserCfg.BrowserBin != "" {
			l = l.Bin(browserCfg.BrowserBin)
		}
		if browserCfg.DefaultProxy != "" {
			l = l.Proxy(browserCfg.DefaultProxy)
		}

		// ── Stealth flags ────────────────────────────────────────────────
		l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
		l.Delete(flags.Flag("enable-automation"))
		l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
		l.Set(flags.Flag("disable-ipc-flooding-protection"))
		l.Set(flags.Flag("disable-popup-blocking"))
		l.Set(flags.Flag("disable-renderer-backgrounding"))
		l.Set(flags.Flag("disable-background-timer-throttling"))
		l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
		l.Set(flags.Flag("disable-component-update"))
		l.Set(flags.Flag("disable-default-apps"))
		l.Set(flags.Flag("disable-dev-shm-usage"))
		l.Set(flags.Flag("disable-extensions"))
		l.Set(flags.Flag("no-first-run"))

		u, err := l.Launch()
		if err != nil {
			return nil, models.NewCatalogError(
				models.ErrCodeBrowserCrash,
				"failed to launch browser",
				err,
			)
		}
		controlURL = u
		slog.Info("browser launched", "controlURL", controlURL)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewCatalogError(
			models.ErrCodeBrowserCrash,
			"failed to connect to browser",
			err,
		)
	}

	pool := rod.NewPagePool(browserCfg.MaxPages)
	slog.Info("page pool created", "maxPages", browserCfg.MaxPages, "attached", attached)

	return &Scraper{
		browser:    browser,
		pagePool:   pool,
		browserCfg: browserCfg,
		scraperCfg: scraperCfg,
		engineCfg:  engineCfg,
		httpEngine: engine.NewHTTPEngine(),
		memory:     engine.NewDomainMemory(engineCfg.MemoryTTL),
		attached:   attached,
		startTime:  time.Now(),
	}, nil
}

// Memory returns the per-host engine memory shared by every visit.
func (s *Scraper) Memory() *engine.DomainMemory {
	return s.memory
}

// Stats returns a snapshot of the pool's current state.
func (s *Scraper) Stats() models.PoolStats {
	return models.PoolStats{
		MaxPages:    s.browserCfg.MaxPages,
		ActivePages: int(s.activePages.Load()),
	}
}

// Uptime is the time since the scraper started.
func (s *Scraper) Uptime() time.Duration {
	return time.Since(s.startTime)
}

// Close drains the page pool and kills the browser process. An attached
// browser is left running.
func (s *Scraper) Close() {
	slog.Info("scraper shutting down: draining page pool")
	s.pagePool.Cleanup(func(p *rod.Page) {
		_ = p.Close()
	})
	if s.attached {
		// Browser.Close would terminate a browser we do not own.
		slog.Info("scraper shutdown complete", "attached", true)
		return
	}
	slog.Info("scraper shutting down: closing browser")
	s.browser.MustClose()
	slog.Info("scraper shutdown complete")
}
