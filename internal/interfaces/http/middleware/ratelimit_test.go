package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/erp/stockledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newMemoryLimiter(t *testing.T, limit int, every time.Duration) *MemoryLimiter {
	t.Helper()
	rl := NewMemoryLimiter(limit, every)
	t.Cleanup(rl.Stop)
	return rl
}

func newRedisLimiter(t *testing.T, limit int, every time.Duration) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLimiter(client, limit, every), mr
}

func TestMemoryLimiter(t *testing.T) {
	ctx := context.Background()

	t.Run("window exhausts then resets", func(t *testing.T) {
		rl := newMemoryLimiter(t, 2, time.Minute)
		now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
		rl.now = func() time.Time { return now }

		ok, remaining, err := rl.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 1, remaining)

		ok, remaining, _ = rl.Allow(ctx, "10.0.0.1")
		assert.True(t, ok)
		assert.Equal(t, 0, remaining)

		ok, _, _ = rl.Allow(ctx, "10.0.0.1")
		assert.False(t, ok)

		ok, _, _ = rl.Allow(ctx, "10.0.0.2")
		assert.True(t, ok, "other clients keep their own window")

		now = now.Add(time.Minute)
		ok, remaining, _ = rl.Allow(ctx, "10.0.0.1")
		assert.True(t, ok)
		assert.Equal(t, 1, remaining)
	})

	t.Run("concurrent callers never exceed limit", func(t *testing.T) {
		rl := newMemoryLimiter(t, 50, time.Minute)

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			allowed int
		)
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if ok, _, _ := rl.Allow(ctx, "shared"); ok {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 50, allowed)
	})

	t.Run("stop is idempotent", func(t *testing.T) {
		rl := NewMemoryLimiter(1, time.Minute)
		rl.Stop()
		rl.Stop()
	})
}

func TestRedisLimiter(t *testing.T) {
	ctx := context.Background()
	rl, mr := newRedisLimiter(t, 2, time.Minute)

	for i, want := range []bool{true, true, false} {
		ok, _, err := rl.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.Equal(t, want, ok, "request %d", i+1)
	}
	assert.Equal(t, time.Minute, mr.TTL("ratelimit:10.0.0.1"))

	mr.FastForward(time.Minute)
	ok, remaining, err := rl.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, remaining)

	mr.Close()
	_, _, err = rl.Allow(ctx, "10.0.0.1")
	assert.Error(t, err)
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name    string
		limiter func(t *testing.T) Limiter
	}{
		{"memory", func(t *testing.T) Limiter { return newMemoryLimiter(t, 2, time.Minute) }},
		{"redis", func(t *testing.T) Limiter { rl, _ := newRedisLimiter(t, 2, time.Minute); return rl }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(RequestID(), RateLimit(tt.limiter(t), zaptest.NewLogger(t)))
			router.GET("/stock/balance", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

			var w *httptest.ResponseRecorder
			for i := 0; i < 3; i++ {
				w = httptest.NewRecorder()
				req := httptest.NewRequest(http.MethodGet, "/stock/balance", nil)
				req.RemoteAddr = "192.0.2.10:5000"
				router.ServeHTTP(w, req)
				if i < 2 {
					assert.Equal(t, http.StatusOK, w.Code)
				}
			}

			assert.Equal(t, http.StatusTooManyRequests, w.Code)
			assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
			assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

			var resp dto.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, dto.ErrCodeRateLimited, resp.Error.Code)
			assert.NotEmpty(t, resp.Error.RequestID)
		})
	}
}

func TestRateLimitMiddleware_FailsOpen(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl, mr := newRedisLimiter(t, 1, time.Minute)
	mr.Close()

	router := gin.New()
	router.Use(RateLimit(rl, zaptest.NewLogger(t)))
	router.GET("/test", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	}
}

func TestRateLimitByKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := newMemoryLimiter(t, 1, time.Minute)

	router := gin.New()
	router.Use(RateLimitByKey(rl, nil, func(c *gin.Context) string {
		return c.GetHeader(IdempotencyKeyHeader)
	}))
	router.POST("/test", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	send := func(key string) int {
		req := httptest.NewRequest(http.MethodPost, "/test", nil)
		req.Header.Set(IdempotencyKeyHeader, key)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("k1"))
	assert.Equal(t, http.StatusTooManyRequests, send("k1"))
	assert.Equal(t, http.StatusOK, send("k2"))
}
