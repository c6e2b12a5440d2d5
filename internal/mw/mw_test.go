package mw

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func init() { gin.SetMode(gin.TestMode) }

func serve(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestCacheServesRepeatedGets(t *testing.T) {
	store := cache.New(time.Minute, time.Minute)
	calls := 0

	r := gin.New()
	r.Use(Invalidate(store))
	r.GET("/loaners", Cache(store, time.Minute), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"calls": calls})
	})
	r.POST("/book", func(c *gin.Context) { c.Status(http.StatusCreated) })

	first := serve(r, http.MethodGet, "/loaners?date=2026-03-02")
	second := serve(r, http.MethodGet, "/loaners?date=2026-03-02")
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, calls)

	serve(r, http.MethodGet, "/loaners?date=2026-03-03")
	assert.Equal(t, 2, calls, "query is part of the key")

	serve(r, http.MethodPost, "/book")
	serve(r, http.MethodGet, "/loaners?date=2026-03-02")
	assert.Equal(t, 3, calls, "a successful write flushes the cache")
}

func TestCacheSkipsErrors(t *testing.T) {
	store := cache.New(time.Minute, time.Minute)
	calls := 0
	r := gin.New()
	r.GET("/x", Cache(store, time.Minute), func(c *gin.Context) {
		calls++
		c.Status(http.StatusBadRequest)
	})

	serve(r, http.MethodGet, "/x")
	serve(r, http.MethodGet, "/x")
	assert.Equal(t, 2, calls)
}

func TestRateLimiter(t *testing.T) {
	r := gin.New()
	r.Use(RateLimiter(NewIPRateLimiter(rate.Limit(1), 2)))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodGet, "/").Code)
}

func TestPruneDropsIdleClients(t *testing.T) {
	l := NewIPRateLimiter(rate.Limit(1), 1)
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.GetLimiter("10.0.0.1")
	now = now.Add(10 * time.Minute)
	l.GetLimiter("10.0.0.2")

	assert.Equal(t, 1, l.Prune(5*time.Minute))
	assert.Len(t, l.ips, 1)
}

func TestLoggerWritesRequest(t *testing.T) {
	var buf bytes.Buffer
	r := gin.New()
	r.Use(Logger(zerolog.New(&buf), nil))
	r.GET("/api/breaks/active", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	serve(r, http.MethodGet, "/api/breaks/active")
	assert.Contains(t, buf.String(), `"path":"/api/breaks/active"`)
	assert.Contains(t, buf.String(), `"status":204`)
}
