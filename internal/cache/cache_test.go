package cache

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/orgpulse/maturity-meter/internal/monitoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_SetGet(t *testing.T) {
	c := NewCache(time.Minute)

	_, found := c.Get("missing")
	assert.False(t, found)

	c.Set("key", []byte("payload"))
	data, found := c.Get("key")
	require.True(t, found)
	assert.Equal(t, []byte("payload"), data)

	c.Delete("key")
	_, found = c.Get("key")
	assert.False(t, found)
}

func TestCache_Expiry(t *testing.T) {
	c := NewCache(10 * time.Millisecond)

	c.Set("key", []byte("payload"))
	time.Sleep(30 * time.Millisecond)

	_, found := c.Get("key")
	assert.False(t, found)
}

func TestCache_Clear(t *testing.T) {
	c := NewCache(time.Minute)
	c.Set("a", []byte("1"))
	c.Set("b", []byte("2"))
	require.Equal(t, 2, c.Size())

	c.Clear()
	assert.Equal(t, 0, c.Size())
}

func TestCache_Stats(t *testing.T) {
	c := NewCache(time.Minute)
	c.Set("a", []byte("1"))

	stats := c.Stats()
	assert.Equal(t, 1, stats["total_items"])
	assert.Equal(t, 1, stats["active_items"])
}

func cachedRouter(t *testing.T, handlerCalls *int64) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	c := NewCache(time.Minute)
	metrics := monitoring.NewMetrics()

	r := gin.New()
	r.Use(c.Middleware(metrics))
	r.POST("/api/v1/evaluate", func(ctx *gin.Context) {
		atomic.AddInt64(handlerCalls, 1)
		ctx.JSON(http.StatusOK, gin.H{"evaluated": true})
	})
	r.GET("/api/v1/categories", func(ctx *gin.Context) {
		atomic.AddInt64(handlerCalls, 1)
		ctx.JSON(http.StatusOK, gin.H{"categories": []string{}})
	})
	return r
}

func TestMiddleware_CachesEvaluateResponses(t *testing.T) {
	var handlerCalls int64
	r := cachedRouter(t, &handlerCalls)

	body := `{"scope_node_id":"ORG","project_level":3}`

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/evaluate", bytes.NewBufferString(body))
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"evaluated":true}`, w.Body.String())
	}

	assert.Equal(t, int64(1), atomic.LoadInt64(&handlerCalls), "second identical request must hit the cache")
}

func TestMiddleware_DifferentBodiesMiss(t *testing.T) {
	var handlerCalls int64
	r := cachedRouter(t, &handlerCalls)

	for _, body := range []string{
		`{"scope_node_id":"ORG","project_level":3}`,
		`{"scope_node_id":"DEPT-A","project_level":3}`,
	} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/evaluate", bytes.NewBufferString(body))
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}

	assert.Equal(t, int64(2), atomic.LoadInt64(&handlerCalls))
}

func TestMiddleware_IgnoresOtherRoutes(t *testing.T) {
	var handlerCalls int64
	r := cachedRouter(t, &handlerCalls)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/categories", nil)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}

	assert.Equal(t, int64(2), atomic.LoadInt64(&handlerCalls), "only evaluate responses are cached")
}
