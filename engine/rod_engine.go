package engine

import (
	"context"
	"fmt"
)

// PageFetchFunc performs a fetch from inside a live browser page, so the
// request carries the page's own session, cookies and origin. It is supplied
// by the scraper to avoid an import cycle.
type PageFetchFunc func(ctx context.Context, req *FetchRequest) (*FetchResult, error)

// RodEngine adapts an in-page fetch to Engine.
type RodEngine struct {
	fetch PageFetchFunc
}

// NewRodEngine creates a RodEngine.
func NewRodEngine(fetch PageFetchFunc) *RodEngine {
	return &RodEngine{fetch: fetch}
}

func (e *RodEngine) Name() string { return "page" }

func (e *RodEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if e.fetch == nil {
		return nil, fmt.Errorf("page: fetch func not configured")
	}
	res, err := e.fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	if !ok(res.StatusCode) {
		return nil, &StatusError{Engine: e.Name(), Status: res.StatusCode, URL: req.URL}
	}
	res.EngineName = e.Name()
	return res, nil
}
