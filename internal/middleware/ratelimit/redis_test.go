package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRouter(l *Limiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/contact", l.Middleware("contact"), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func post(r *gin.Engine, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/contact", nil)
	req.RemoteAddr = ip + ":1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSlidingWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(client, time.Minute, 2, zap.NewNop())
	l.now = func() time.Time { return clock }
	r := newRouter(l)

	assert.Equal(t, http.StatusNoContent, post(r, "10.0.0.1").Code)
	clock = clock.Add(10 * time.Second)
	assert.Equal(t, http.StatusNoContent, post(r, "10.0.0.1").Code)

	w := post(r, "10.0.0.1")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "50", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), `"code":"rate_limited"`)

	assert.Equal(t, http.StatusNoContent, post(r, "10.0.0.2").Code, "keys are per IP")

	clock = clock.Add(51 * time.Second)
	assert.Equal(t, http.StatusNoContent, post(r, "10.0.0.1").Code)
}

func TestPassThroughWithoutRedis(t *testing.T) {
	r := newRouter(New(nil, time.Minute, 1, zap.NewNop()))
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusNoContent, post(r, "10.0.0.1").Code)
	}

	var nilLimiter *Limiter
	r = newRouter(nilLimiter)
	assert.Equal(t, http.StatusNoContent, post(r, "10.0.0.1").Code)
}

func TestFailOpenOnRedisError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	r := newRouter(New(client, time.Minute, 1, zap.NewNop()))
	assert.Equal(t, http.StatusNoContent, post(r, "10.0.0.1").Code)
}
