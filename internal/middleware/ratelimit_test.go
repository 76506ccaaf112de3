package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trailsocial/engagement/internal/viewer"
)

// fakeCounter is an in-memory WindowCounter.
type fakeCounter struct {
	mu     sync.Mutex
	counts map[string]int64
	keys   []string
	err    error
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: make(map[string]int64)}
}

func (f *fakeCounter) IncrWindow(_ context.Context, key string, _ time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.counts[key]++
	f.keys = append(f.keys, key)
	return f.counts[key], nil
}

func newLimitedRouter(config RateLimitConfig, counter WindowCounter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimit(config, counter))
	router.POST("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

func hit(router *gin.Engine, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/test", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimiterLocalBuckets(t *testing.T) {
	router := newLimitedRouter(RateLimitConfig{Name: "test", Limit: 3, Window: time.Minute}, nil)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, hit(router, "203.0.113.1:1000").Code, "request %d should succeed", i+1)
	}

	w := hit(router, "203.0.113.1:1000")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
	assert.Contains(t, w.Body.String(), "RATE_LIMITED")

	// Other clients have their own bucket
	assert.Equal(t, http.StatusOK, hit(router, "203.0.113.2:1000").Code)
}

func TestRateLimiterSharedCounter(t *testing.T) {
	counter := newFakeCounter()
	router := newLimitedRouter(RateLimitConfig{Name: "views", Limit: 2, Window: time.Minute}, counter)

	assert.Equal(t, http.StatusOK, hit(router, "203.0.113.1:1000").Code)
	assert.Equal(t, http.StatusOK, hit(router, "203.0.113.1:1000").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(router, "203.0.113.1:1000").Code)

	require.NotEmpty(t, counter.keys)
	for _, key := range counter.keys {
		assert.Contains(t, key, "rate_limit:views:a:")
		assert.NotContains(t, key, "203.0.113.1", "raw client address must not be used as a key")
	}
}

func TestRateLimiterFallsBackWhenCounterFails(t *testing.T) {
	counter := newFakeCounter()
	counter.err = errors.New("connection refused")
	router := newLimitedRouter(RateLimitConfig{Name: "views", Limit: 1, Window: time.Minute}, counter)

	assert.Equal(t, http.StatusOK, hit(router, "203.0.113.1:1000").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(router, "203.0.113.1:1000").Code)
}

func TestClientKeyPrefersUserID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	keyFunc := ClientKey(viewer.NewResolver(false))

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("POST", "/", nil)
	anonKey := keyFunc(c)
	assert.Contains(t, anonKey, "a:")

	c.Set("user_id", int64(42))
	assert.Equal(t, "u:42", keyFunc(c))
}

func TestTokenBucketRefills(t *testing.T) {
	tb := NewTokenBucket(1, 1000)
	assert.True(t, tb.Allow())
	time.Sleep(5 * time.Millisecond)
	assert.True(t, tb.Allow())
}
