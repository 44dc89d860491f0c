package crawler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/catalog/cache"
	"github.com/use-agent/catalog/metrics"
	"github.com/use-agent/catalog/models"
	"github.com/use-agent/catalog/pipeline"
	"github.com/use-agent/catalog/resolver"
	"github.com/use-agent/catalog/scraper"
	"github.com/use-agent/catalog/webhook"
)

type fakePage struct {
	title    string
	status   int
	html     string
	payloads map[models.SourceKind]any
	err      error
}

type fakeBrowser struct {
	mu     sync.Mutex
	pages  map[string]fakePage
	visits []string
}

func newFakeBrowser() *fakeBrowser {
	return &fakeBrowser{pages: make(map[string]fakePage)}
}

func (b *fakeBrowser) add(url string, p fakePage) {
	b.pages[url] = p
}

func (b *fakeBrowser) Visit(_ context.Context, req *scraper.VisitRequest, fn func(*Page) error) error {
	b.mu.Lock()
	b.visits = append(b.visits, req.URL)
	p, ok := b.pages[req.URL]
	b.mu.Unlock()
	if !ok {
		p = fakePage{title: "Shirts", status: 200, html: listingHTML("tile")}
	}
	if p.err != nil {
		return p.err
	}
	return fn(&Page{
		URL:        req.URL,
		FinalURL:   req.URL,
		Title:      p.title,
		StatusCode: p.status,
		Provider:   resolver.NewStaticProvider(p.payloads),
		HTML:       func() (string, error) { return p.html, nil },
	})
}

func (b *fakeBrowser) visited() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.visits...)
}

type memSink struct {
	mu  sync.Mutex
	got []models.NormalizedProduct
}

func (m *memSink) Name() string { return "mem" }
func (m *memSink) Write(_ context.Context, p []models.NormalizedProduct) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.got = append(m.got, p...)
	return nil
}
func (m *memSink) Close() error { return nil }

func embedded(ids ...int) map[models.SourceKind]any {
	arr := make([]any, len(ids))
	for i, id := range ids {
		arr[i] = map[string]any{"id": float64(id), "name": fmt.Sprintf("Shirt %d", id), "price": 2599.0}
	}
	return map[models.SourceKind]any{models.SourceEmbeddedState: map[string]any{"products": arr}}
}

func listingHTML(tile string) string {
	var b strings.Builder
	b.WriteString(`<html><head><title>Shirts</title></head><body><header class="top"><nav class="menu"></nav></header><main class="listing"><ul class="grid">`)
	for i := 0; i < 6; i++ {
		fmt.Fprintf(&b, `<li class="%s"><a class="link"><img class="media"><span class="name">x</span></a></li>`, tile)
	}
	b.WriteString(`</ul></main><footer class="bottom"></footer></body></html>`)
	return b.String()
}

const redesignHTML = `<html><head><title>Shirts</title></head><body><div id="root"><div class="app-shell"><section class="plp"><div class="plp-grid"><article class="card"><figure class="card-media"><picture class="pic"></picture></figure></article></div></section></div></div></body></html>`

const cat = "https://www.example.com/uk/en/man-shirts.html"

func newCrawler(b Browser, s *memSink, opts Options, c *cache.Cache[Snapshot]) *Crawler {
	return New(Deps{
		Browser:  b,
		Pipeline: pipeline.New(pipeline.Options{}, s, nil),
		Metrics:  metrics.New(nil),
		Cache:    c,
	}, opts)
}

func TestRunPaginatesToTarget(t *testing.T) {
	b := newFakeBrowser()
	b.add(cat, fakePage{title: "Shirts", status: 200, html: listingHTML("tile"), payloads: embedded(1001, 1002)})
	b.add(scraper.PageURL(cat, 2), fakePage{title: "Shirts", status: 200, html: listingHTML("tile"), payloads: embedded(1003, 1004)})
	b.add(scraper.PageURL(cat, 3), fakePage{title: "Shirts", status: 200, html: listingHTML("tile"), payloads: embedded(1005, 1006)})

	s := &memSink{}
	job := models.NewRunJob("run_1", 5, time.Now().Unix())
	status := newCrawler(b, s, Options{Concurrency: 1}, nil).Run(context.Background(), job, models.RunRequest{
		CategoryURLs: []string{cat},
		TargetCount:  5,
		MaxPages:     10,
	})

	assert.Equal(t, models.RunCompleted, status)
	assert.Equal(t, models.RunCompleted, job.Status())
	assert.Len(t, s.got, 5)
	assert.Len(t, b.visited(), 3)

	resp := job.StatusResponse()
	assert.Equal(t, 5, resp.SavedCount)
	require.Len(t, resp.Pages, 3)
	assert.Equal(t, 1, resp.Pages[2].Accepted)
	assert.Len(t, job.Products(), 5)
}

func TestRunStopsWhenPageAddsNothing(t *testing.T) {
	b := newFakeBrowser()
	b.add(cat, fakePage{title: "Shirts", status: 200, payloads: embedded(1001, 1002)})
	b.add(scraper.PageURL(cat, 2), fakePage{title: "Shirts", status: 200, payloads: embedded(1001, 1002)})

	s := &memSink{}
	job := models.NewRunJob("run_2", 50, time.Now().Unix())
	status := newCrawler(b, s, Options{}, nil).Run(context.Background(), job, models.RunRequest{
		CategoryURLs: []string{cat},
		TargetCount:  50,
		MaxPages:     5,
	})

	assert.Equal(t, models.RunCompleted, status)
	assert.Len(t, b.visited(), 2)
	assert.Len(t, s.got, 2)
}

func TestRunClassifiesEmptyPages(t *testing.T) {
	other := "https://www.example.com/uk/en/man-linen.html"
	blocked := "https://www.example.com/uk/en/man-denim.html"

	b := newFakeBrowser()
	b.add(cat, fakePage{title: "Shirts", status: 200, html: listingHTML("tile"), payloads: embedded(1001)})
	b.add(other, fakePage{title: "Linen", status: 200, html: redesignHTML})
	b.add(blocked, fakePage{title: "Access Denied", status: 403, html: "<html><body><h1>Access Denied</h1></body></html>"})

	job := models.NewRunJob("run_3", 10, time.Now().Unix())
	newCrawler(b, &memSink{}, Options{Concurrency: 1, LayoutDriftDistance: 10}, nil).Run(context.Background(), job, models.RunRequest{
		CategoryURLs: []string{cat, other, blocked},
		TargetCount:  10,
		MaxPages:     1,
	})

	pages := job.StatusResponse().Pages
	require.Len(t, pages, 3)
	byURL := make(map[string]*models.PageResult)
	for _, p := range pages {
		byURL[p.URL] = p
	}
	assert.Equal(t, models.OutcomeFound, byURL[cat].Outcome)
	assert.Equal(t, models.EmptyReasonNone, byURL[cat].EmptyReason)
	assert.Equal(t, models.OutcomeNoProducts, byURL[other].Outcome)
	assert.Equal(t, models.EmptyReasonLayoutChanged, byURL[other].EmptyReason)
	assert.Equal(t, models.EmptyReasonBlocked, byURL[blocked].EmptyReason)
}

func TestRunEmptyWithoutBaseline(t *testing.T) {
	b := newFakeBrowser()
	b.add(cat, fakePage{title: "Shirts", status: 200, html: redesignHTML})

	job := models.NewRunJob("run_4", 10, time.Now().Unix())
	status := newCrawler(b, &memSink{}, Options{LayoutDriftDistance: 10}, nil).Run(context.Background(), job, models.RunRequest{
		CategoryURLs: []string{cat},
		MaxPages:     1,
	})

	assert.Equal(t, models.RunCompleted, status)
	pages := job.StatusResponse().Pages
	require.Len(t, pages, 1)
	assert.Equal(t, models.EmptyReasonEmpty, pages[0].EmptyReason)
}

func TestRunVisitFailure(t *testing.T) {
	broken := "https://www.example.com/uk/en/broken.html"
	b := newFakeBrowser()
	b.add(broken, fakePage{err: models.NewCatalogError(models.ErrCodeNavigation, "navigation failed", errors.New("net::ERR_CONNECTION_RESET"))})

	job := models.NewRunJob("run_5", 10, time.Now().Unix())
	status := newCrawler(b, &memSink{}, Options{}, nil).Run(context.Background(), job, models.RunRequest{
		CategoryURLs: []string{broken},
		MaxPages:     3,
	})
	assert.Equal(t, models.RunFailed, status)
	pages := job.StatusResponse().Pages
	require.Len(t, pages, 1)
	require.NotNil(t, pages[0].Error)
	assert.Equal(t, models.ErrCodeNavigation, pages[0].Error.Code)

	b.add(cat, fakePage{title: "Shirts", status: 200, payloads: embedded(1001)})
	job = models.NewRunJob("run_6", 10, time.Now().Unix())
	status = newCrawler(b, &memSink{}, Options{Concurrency: 2}, nil).Run(context.Background(), job, models.RunRequest{
		CategoryURLs: []string{broken, cat},
		MaxPages:     1,
	})
	assert.Equal(t, models.RunPartial, status)
}

func TestRunReplaysCachedPages(t *testing.T) {
	b := newFakeBrowser()
	b.add(cat, fakePage{title: "Shirts", status: 200, payloads: embedded(1001, 1002)})

	pages := cache.New[Snapshot](10, time.Minute)
	defer pages.Close()
	c := newCrawler(b, &memSink{}, Options{}, pages)
	req := models.RunRequest{CategoryURLs: []string{cat}, TargetCount: 2, MaxPages: 1}

	c.Run(context.Background(), models.NewRunJob("run_7", 2, 0), req)
	require.Len(t, b.visited(), 1)

	job := models.NewRunJob("run_8", 2, 0)
	status := c.Run(context.Background(), job, req)
	assert.Equal(t, models.RunCompleted, status)
	assert.Len(t, b.visited(), 1, "second run served from cache")
	got := job.StatusResponse().Pages
	require.Len(t, got, 1)
	assert.True(t, got[0].Cached)
	assert.Equal(t, 2, got[0].Accepted)
}

func TestRunCanceled(t *testing.T) {
	b := newFakeBrowser()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job := models.NewRunJob("run_9", 10, 0)
	status := newCrawler(b, &memSink{}, Options{}, nil).Run(ctx, job, models.RunRequest{CategoryURLs: []string{cat}})
	assert.Equal(t, models.RunFailed, status)
	assert.Empty(t, b.visited())
}

func TestRunDeliversWebhooks(t *testing.T) {
	var (
		mu     sync.Mutex
		events []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var ev webhook.Event
		if json.Unmarshal(body, &ev) == nil {
			mu.Lock()
			events = append(events, ev.Type)
			mu.Unlock()
		}
	}))
	defer srv.Close()

	b := newFakeBrowser()
	b.add(cat, fakePage{title: "Shirts", status: 200, payloads: embedded(1001)})

	c := New(Deps{
		Browser:  b,
		Pipeline: pipeline.New(pipeline.Options{}, nil, nil),
		Notifier: webhook.New(webhook.Options{Timeout: time.Second}),
	}, Options{})
	c.Run(context.Background(), models.NewRunJob("run_10", 1, 0), models.RunRequest{
		CategoryURLs: []string{cat},
		TargetCount:  1,
		WebhookURL:   srv.URL,
	})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 2
	}, 2*time.Second, 10*time.Millisecond)
	mu.Lock()
	assert.ElementsMatch(t, []string{webhook.EventRunPage, webhook.EventRunCompleted}, events)
	mu.Unlock()
}

func TestFinalStatus(t *testing.T) {
	assert.Equal(t, models.RunCompleted, finalStatus(false, 0, 0))
	assert.Equal(t, models.RunCompleted, finalStatus(false, 0, 5))
	assert.Equal(t, models.RunPartial, finalStatus(false, 1, 5))
	assert.Equal(t, models.RunPartial, finalStatus(true, 0, 5))
	assert.Equal(t, models.RunFailed, finalStatus(false, 2, 0))
	assert.Equal(t, models.RunFailed, finalStatus(true, 0, 0))
}
