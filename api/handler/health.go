package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/use-agent/catalog/models"
)

// Version is reported by the health endpoint.
const Version = "0.3.0"

// PoolStatser reports browser pool utilisation.
type PoolStatser interface {
	Stats() models.PoolStats
}

// Health returns a handler for GET /api/v1/health.
//
// Degrades status when > 80% of pages are active or host memory is above 90%.
// pool may be nil when the service runs without a browser.
func Health(pool PoolStatser, store *RunStore, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		var stats models.PoolStats
		if pool != nil {
			stats = pool.Stats()
		}

		var memPercent float64
		if vm, err := mem.VirtualMemoryWithContext(c.Request.Context()); err == nil {
			memPercent = vm.UsedPercent
		}

		status := "healthy"
		if stats.MaxPages > 0 && stats.ActivePages > int(float64(stats.MaxPages)*0.8) {
			status = "degraded"
		}
		if memPercent > 90 {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:        status,
			Uptime:        time.Since(startTime).Round(time.Second).String(),
			PoolStats:     stats,
			MemoryPercent: memPercent,
			ActiveRuns:    store.Active(),
			Version:       Version,
		})
	}
}
