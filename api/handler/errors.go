package handler

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/catalog/models"
)

// asCatalogError wraps untyped errors as INTERNAL_ERROR.
func asCatalogError(err error) *models.CatalogError {
	var ce *models.CatalogError
	if errors.As(err, &ce) {
		return ce
	}
	return models.NewCatalogError(models.ErrCodeInternal, err.Error(), err)
}

// respondError writes a failed response with the status mapped from the
// error code.
func respondError(c *gin.Context, err error) {
	ce := asCatalogError(err)
	c.JSON(mapErrorToStatus(ce), models.ErrorResponse{
		Success: false,
		Error:   ce.ToDetail(),
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.CatalogError) int {
	switch e.Code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation, models.ErrCodeSourceUnavailable:
		return http.StatusBadGateway // 502
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeNotFound:
		return http.StatusNotFound // 404
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	case models.ErrCodeBrowserCrash:
		return http.StatusServiceUnavailable // 503
	default:
		return http.StatusInternalServerError // 500
	}
}

// randomID generates a short random hex string for run IDs.
func randomID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
