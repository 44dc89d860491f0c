package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/catalog/models"
)

// Runner executes a crawl run to completion.
type Runner interface {
	Run(ctx context.Context, job *models.RunJob, req models.RunRequest) string
}

// RunStore holds in-flight and finished runs. Finished runs older than the
// retention are dropped by Sweep.
type RunStore struct {
	runs      sync.Map
	retention time.Duration
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewRunStore creates a store. Runs it starts are canceled by Shutdown.
func NewRunStore(retention time.Duration) *RunStore {
	ctx, cancel := context.WithCancel(context.Background())
	return &RunStore{retention: retention, ctx: ctx, cancel: cancel}
}

// Get returns a run by id.
func (s *RunStore) Get(id string) (*models.RunJob, bool) {
	v, ok := s.runs.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*models.RunJob), true
}

// Active counts runs still processing.
func (s *RunStore) Active() int {
	n := 0
	s.runs.Range(func(_, v any) bool {
		if v.(*models.RunJob).Status() == models.RunProcessing {
			n++
		}
		return true
	})
	return n
}

// Start registers job and runs it in the background.
func (s *RunStore) Start(r Runner, job *models.RunJob, req models.RunRequest) {
	s.runs.Store(job.ID, job)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		r.Run(s.ctx, job, req)
	}()
}

// Sweep drops finished runs created before the retention window.
func (s *RunStore) Sweep(now time.Time) int {
	cutoff := now.Add(-s.retention).Unix()
	n := 0
	s.runs.Range(func(k, v any) bool {
		job := v.(*models.RunJob)
		if job.CreatedAt < cutoff && job.Status() != models.RunProcessing {
			s.runs.Delete(k)
			n++
		}
		return true
	})
	return n
}

// Shutdown cancels running crawls and waits for them to record their final
// status, or for ctx to expire.
func (s *RunStore) Shutdown(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PostRun returns a handler for POST /api/v1/runs. A nil runner means the
// service runs without a browser.
func PostRun(r Runner, store *RunStore, defaults func(*models.RunRequest)) gin.HandlerFunc {
	return func(c *gin.Context) {
		if r == nil {
			respondError(c, models.NewCatalogError(models.ErrCodeBrowserCrash, "crawling is disabled: no browser configured", nil))
			return
		}

		var req models.RunRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.NewCatalogError(models.ErrCodeInvalidInput, err.Error(), err))
			return
		}
		if defaults != nil {
			defaults(&req)
		}
		req.Defaults()

		job := models.NewRunJob("run_"+randomID(), req.TargetCount, time.Now().Unix())
		job.WebhookURL = req.WebhookURL
		job.WebhookSecret = req.WebhookSecret
		store.Start(r, job, req)

		c.JSON(http.StatusAccepted, models.RunResponse{
			ID:     job.ID,
			Status: models.RunProcessing,
		})
	}
}

// GetRun returns a handler for GET /api/v1/runs/:id.
func GetRun(store *RunStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := store.Get(c.Param("id"))
		if !ok {
			respondError(c, models.NewCatalogError(models.ErrCodeNotFound, "run not found", nil))
			return
		}
		c.JSON(http.StatusOK, job.StatusResponse())
	}
}

// GetRunProducts returns a handler for GET /api/v1/runs/:id/products.
func GetRunProducts(store *RunStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := store.Get(c.Param("id"))
		if !ok {
			respondError(c, models.NewCatalogError(models.ErrCodeNotFound, "run not found", nil))
			return
		}
		products := job.Products()
		c.JSON(http.StatusOK, models.RunProductsResponse{
			ID:       job.ID,
			Total:    len(products),
			Products: products,
		})
	}
}
