package models

// ExtractResponse is the response for POST /api/v1/extract.
type ExtractResponse struct {
	Success bool `json:"success"`

	Outcome  Outcome             `json:"outcome,omitempty"`
	Products []NormalizedProduct `json:"products"`

	// Sources reports each source the resolver looked at, in order.
	Sources []SourceReport `json:"sources,omitempty"`

	Timing TimingInfo `json:"timing"`

	// CacheStatus is "hit" when the response was served from cache.
	CacheStatus string `json:"cache_status,omitempty"`

	Error *ErrorDetail `json:"error,omitempty"`
}

// ErrorResponse is the body of every failed request outside /extract.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error"`
}

// RunResponse is the immediate response for POST /api/v1/runs.
type RunResponse struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Error  *ErrorDetail `json:"error,omitempty"`
}

// RunStatusResponse is the response for GET /api/v1/runs/:id.
type RunStatusResponse struct {
	ID          string        `json:"id"`
	Status      string        `json:"status"`
	TargetCount int           `json:"target_count"`
	SavedCount  int           `json:"saved_count"`
	Pages       []*PageResult `json:"pages,omitempty"`
}

// RunProductsResponse is the response for GET /api/v1/runs/:id/products.
type RunProductsResponse struct {
	ID       string              `json:"id"`
	Total    int                 `json:"total"`
	Products []NormalizedProduct `json:"products"`
}

// TimingInfo breaks down the time spent in each phase.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`

	// NavigationMs is the time spent navigating and rendering the page.
	NavigationMs int64 `json:"navigation_ms,omitempty"`

	// ExtractionMs is the time spent locating and normalizing candidates.
	ExtractionMs int64 `json:"extraction_ms"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status        string    `json:"status"` // "healthy" or "degraded"
	Uptime        string    `json:"uptime"`
	PoolStats     PoolStats `json:"pool_stats"`
	MemoryPercent float64   `json:"memory_percent"`
	ActiveRuns    int       `json:"active_runs"`
	Version       string    `json:"version"`
}

// PoolStats reports the state of the browser page pool.
type PoolStats struct {
	MaxPages    int `json:"max_pages"`
	ActivePages int `json:"active_pages"`
}
