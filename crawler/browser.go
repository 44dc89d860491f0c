package crawler

import (
	"context"
	"time"

	"github.com/use-agent/catalog/resolver"
	"github.com/use-agent/catalog/scraper"
)

// Page is one rendered listing page.
type Page struct {
	URL            string
	FinalURL       string
	Title          string
	StatusCode     int
	NavigationTime time.Duration

	// Provider serves the page's sources to the resolver.
	Provider resolver.Provider

	// HTML returns the rendered document.
	HTML func() (string, error)
}

// Browser visits listing pages. fn must not retain the Page.
type Browser interface {
	Visit(ctx context.Context, req *scraper.VisitRequest, fn func(*Page) error) error
}

// ScraperBrowser adapts a scraper to Browser.
func ScraperBrowser(s *scraper.Scraper) Browser {
	return scraperBrowser{s: s}
}

type scraperBrowser struct {
	s *scraper.Scraper
}

func (b scraperBrowser) Visit(ctx context.Context, req *scraper.VisitRequest, fn func(*Page) error) error {
	return b.s.Visit(ctx, req, func(sess *scraper.Session) error {
		return fn(&Page{
			URL:            sess.URL,
			FinalURL:       sess.FinalURL,
			Title:          sess.Title,
			StatusCode:     sess.StatusCode,
			NavigationTime: sess.NavigationTime,
			Provider:       sess,
			HTML:           sess.HTML,
		})
	})
}
