package models

import "sync"

// Run status values.
const (
	RunProcessing = "processing"
	RunCompleted  = "completed"
	RunPartial    = "partial"
	RunFailed     = "failed"
)

// PageResult is the outcome of one page visit within a run.
type PageResult struct {
	URL         string         `json:"url"`
	Page        int            `json:"page"`
	CategoryID  string         `json:"category_id,omitempty"`
	Title       string         `json:"title,omitempty"`
	StatusCode  int            `json:"status_code,omitempty"`
	Outcome     Outcome        `json:"outcome,omitempty"`
	EmptyReason EmptyReason    `json:"empty_reason,omitempty"`
	Accepted    int            `json:"accepted"`
	Cached      bool           `json:"cached,omitempty"`
	Sources     []SourceReport `json:"sources,omitempty"`
	Timing      TimingInfo     `json:"timing"`
	Error       *ErrorDetail   `json:"error,omitempty"`
}

// RunJob tracks an in-progress crawl run. It is safe for concurrent use.
type RunJob struct {
	ID            string
	TargetCount   int
	CreatedAt     int64 // unix timestamp
	WebhookURL    string
	WebhookSecret string

	mu       sync.Mutex
	status   string
	saved    int
	pages    []*PageResult
	products []NormalizedProduct
}

// NewRunJob creates a job in the processing state.
func NewRunJob(id string, targetCount int, createdAt int64) *RunJob {
	return &RunJob{
		ID:          id,
		TargetCount: targetCount,
		CreatedAt:   createdAt,
		status:      RunProcessing,
	}
}

// AddPage records a finished page visit and the products it persisted.
func (j *RunJob) AddPage(res *PageResult, accepted []NormalizedProduct, savedCount int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.pages = append(j.pages, res)
	j.products = append(j.products, accepted...)
	if savedCount > j.saved {
		j.saved = savedCount
	}
}

// Finish sets the terminal status.
func (j *RunJob) Finish(status string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = status
}

// Status returns the current status.
func (j *RunJob) Status() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// StatusResponse snapshots the job for the API.
func (j *RunJob) StatusResponse() RunStatusResponse {
	j.mu.Lock()
	defer j.mu.Unlock()
	pages := make([]*PageResult, len(j.pages))
	copy(pages, j.pages)
	return RunStatusResponse{
		ID:          j.ID,
		Status:      j.status,
		TargetCount: j.TargetCount,
		SavedCount:  j.saved,
		Pages:       pages,
	}
}

// Products returns a copy of every product persisted so far, in save order.
func (j *RunJob) Products() []NormalizedProduct {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]NormalizedProduct, len(j.products))
	copy(out, j.products)
	return out
}
