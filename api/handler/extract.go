package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/use-agent/catalog/cache"
	"github.com/use-agent/catalog/models"
	"github.com/use-agent/catalog/payload"
	"github.com/use-agent/catalog/pipeline"
	"github.com/use-agent/catalog/resolver"
)

// Extract returns a handler for POST /api/v1/extract.
//
// Orchestration flow:
//  1. Parse & validate the request.
//  2. Cache lookup keyed by the exact request body.
//  3. Decode each posted source (json5); HTML stands in for markup.
//  4. Pipeline.Extract → resolution + in-request dedup, no persistence.
//  5. Fill Timing, cache, return 200.
func Extract(p *pipeline.Pipeline, cc *cache.Cache[*models.ExtractResponse]) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		// ── 1. Parse request ────────────────────────────────────────
		var req models.ExtractRequest
		if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
			c.JSON(http.StatusBadRequest, models.ExtractResponse{
				Success:  false,
				Products: []models.NormalizedProduct{},
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}

		// ── 2. Cache lookup ─────────────────────────────────────────
		var key string
		if body, ok := c.Get(gin.BodyBytesKey); ok {
			if b, ok := body.([]byte); ok {
				key = cache.Key(string(b))
			}
		}
		if cached, hit := cc.Get(key); hit && key != "" {
			resp := *cached
			resp.CacheStatus = "hit"
			resp.Timing = models.TimingInfo{TotalMs: time.Since(totalStart).Milliseconds()}
			c.JSON(http.StatusOK, resp)
			return
		}

		// ── 3. Decode sources ───────────────────────────────────────
		prov, err := resolver.DecodeStaticProvider(map[models.SourceKind][]byte{
			models.SourceEmbeddedState:    req.EmbeddedState,
			models.SourceInternalAPI:      req.APIResponse,
			models.SourceStructuredMarkup: req.StructuredMarkup,
		})
		if err != nil {
			respondExtractError(c, models.NewCatalogError(models.ErrCodeInvalidInput, err.Error(), err), totalStart)
			return
		}
		if req.HTML != "" && !prov.Has(models.SourceStructuredMarkup) {
			prov.Set(models.SourceStructuredMarkup, payload.ItemList(req.HTML))
		}

		// ── 4. Resolve ──────────────────────────────────────────────
		extractStart := time.Now()
		res, err := p.Extract(c.Request.Context(), prov, req.Context)
		if err != nil {
			respondExtractError(c, models.NewCatalogError(models.ErrCodeTimeout, "request canceled", err), totalStart)
			return
		}

		// ── 5. Respond ──────────────────────────────────────────────
		products := res.Accepted
		if products == nil {
			products = []models.NormalizedProduct{}
		}
		resp := &models.ExtractResponse{
			Success:  true,
			Outcome:  res.Outcome,
			Products: products,
			Sources:  res.Sources,
			Timing: models.TimingInfo{
				TotalMs:      time.Since(totalStart).Milliseconds(),
				ExtractionMs: time.Since(extractStart).Milliseconds(),
			},
		}
		if key != "" {
			cc.Set(key, resp)
		}
		c.JSON(http.StatusOK, resp)
	}
}

func respondExtractError(c *gin.Context, ce *models.CatalogError, start time.Time) {
	c.JSON(mapErrorToStatus(ce), models.ExtractResponse{
		Success:  false,
		Products: []models.NormalizedProduct{},
		Error:    ce.ToDetail(),
		Timing:   models.TimingInfo{TotalMs: time.Since(start).Milliseconds()},
	})
}
