package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/use-agent/catalog/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/ping", func(c *gin.Context) {
		key, _ := c.Get(APIKeyContextKey)
		c.JSON(http.StatusOK, gin.H{"key": key})
	})
	return r
}

func get(r http.Handler, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	r := newEngine(Auth([]string{"alpha", " beta ", ""}))

	tests := []struct {
		name    string
		headers map[string]string
		want    int
	}{
		{"missing", nil, http.StatusUnauthorized},
		{"wrong", map[string]string{"X-API-Key": "gamma"}, http.StatusUnauthorized},
		{"x-api-key", map[string]string{"X-API-Key": "alpha"}, http.StatusOK},
		{"bearer", map[string]string{"Authorization": "Bearer beta"}, http.StatusOK},
		{"bearer lower-case", map[string]string{"Authorization": "bearer alpha"}, http.StatusOK},
		{"basic", map[string]string{"Authorization": "Basic alpha"}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(r, tt.headers)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
			}
		})
	}
}

func TestAuthOpenWithoutKeys(t *testing.T) {
	assert.Equal(t, http.StatusOK, get(newEngine(Auth(nil)), nil).Code)
}

func TestRateLimit(t *testing.T) {
	r := newEngine(Auth([]string{"alpha", "beta"}), RateLimit(config.RateLimitConfig{RequestsPerSecond: 0.5, Burst: 2}))

	alpha := map[string]string{"X-API-Key": "alpha"}
	assert.Equal(t, http.StatusOK, get(r, alpha).Code)
	assert.Equal(t, http.StatusOK, get(r, alpha).Code)
	w := get(r, alpha)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))

	// Buckets are per key.
	assert.Equal(t, http.StatusOK, get(r, map[string]string{"X-API-Key": "beta"}).Code)
}

func TestRateLimitDisabled(t *testing.T) {
	r := newEngine(RateLimit(config.RateLimitConfig{}))
	for i := 0; i < 20; i++ {
		assert.Equal(t, http.StatusOK, get(r, nil).Code)
	}
}

func TestLimiterSweep(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := &limiters{entries: make(map[string]*limiterEntry), limit: 1, burst: 1, now: func() time.Time { return now }}
	l.get("a")
	now = now.Add(2 * time.Hour)
	l.get("b")
	l.sweep()
	assert.Equal(t, 1, l.size())
}
