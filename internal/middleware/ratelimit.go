package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/trailsocial/engagement/internal/errors"
	"github.com/trailsocial/engagement/internal/logger"
	"github.com/trailsocial/engagement/internal/util"
	"github.com/trailsocial/engagement/internal/viewer"
	"go.uber.org/zap"
)

// WindowCounter is a shared fixed-window counter (Redis in production).
type WindowCounter interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	// Name labels the limiter in keys and metrics
	Name string
	// Requests per window
	Limit int
	// Window duration
	Window time.Duration
	// KeyFunc identifies the caller; defaults to ClientKey without forwarded headers
	KeyFunc func(c *gin.Context) string
}

// ViewRateLimitConfig returns limits for view submissions
func ViewRateLimitConfig(limit int, window time.Duration) RateLimitConfig {
	return RateLimitConfig{Name: "views", Limit: limit, Window: window}
}

// ClapRateLimitConfig returns limits for clap submissions
func ClapRateLimitConfig(limit int, window time.Duration) RateLimitConfig {
	return RateLimitConfig{Name: "claps", Limit: limit, Window: window}
}

// ClientKey keys authenticated callers by user id and anonymous callers by a
// hash of their address, so raw IPs never reach the shared store.
func ClientKey(resolver *viewer.Resolver) func(c *gin.Context) string {
	return func(c *gin.Context) string {
		if userID := util.OptionalUserID(c); userID != nil {
			return "u:" + strconv.FormatInt(*userID, 10)
		}
		sum := sha256.Sum256([]byte(resolver.ClientIP(c.Request)))
		return "a:" + hex.EncodeToString(sum[:12])
	}
}

// TokenBucket for rate limiting
type TokenBucket struct {
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	mu         sync.Mutex
}

// NewTokenBucket creates a new token bucket
func NewTokenBucket(maxTokens float64, refillRate float64) *TokenBucket {
	return &TokenBucket{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Allow checks if a request is allowed based on token availability
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	tb.tokens = min(tb.maxTokens, tb.tokens+elapsed*tb.refillRate)
	tb.lastRefill = now

	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

// GetRetryAfter returns seconds to wait before next request
func (tb *TokenBucket) GetRetryAfter() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if tb.tokens < 1 {
		timeToToken := (1 - tb.tokens) / tb.refillRate
		return int(timeToToken) + 1
	}
	return 0
}

func (tb *TokenBucket) idleSince(t time.Time) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.lastRefill.Before(t)
}

// RateLimiter limits callers with a shared window counter when one is
// available, and per-process token buckets otherwise.
type RateLimiter struct {
	config    RateLimitConfig
	counter   WindowCounter
	buckets   map[string]*TokenBucket
	lastSweep time.Time
	mu        sync.Mutex
}

// NewRateLimiter creates a limiter. counter may be nil.
func NewRateLimiter(config RateLimitConfig, counter WindowCounter) *RateLimiter {
	if config.KeyFunc == nil {
		config.KeyFunc = ClientKey(viewer.NewResolver(false))
	}
	if config.Name == "" {
		config.Name = "default"
	}
	return &RateLimiter{
		config:    config,
		counter:   counter,
		buckets:   make(map[string]*TokenBucket),
		lastSweep: time.Now(),
	}
}

// Middleware returns the gin handler
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rl.config.KeyFunc(c)
		allowed, retryAfter := rl.Allow(c.Request.Context(), key)
		if !allowed {
			RecordRateLimitExceeded(rl.config.Name, c.Request.Method)
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.Header("X-RateLimit-Limit", strconv.Itoa(rl.config.Limit))
			c.Header("X-RateLimit-Remaining", "0")
			util.RespondWithAPIError(c, errors.RateLimited("").
				WithDetails(fmt.Sprintf("retry after %d seconds", retryAfter)))
			return
		}
		c.Next()
	}
}

// Allow checks whether key may make another request, returning a retry hint
// in seconds when it may not.
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, int) {
	if rl.counter != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		count, err := rl.counter.IncrWindow(ctx, "rate_limit:"+rl.config.Name+":"+key, rl.config.Window)
		if err == nil {
			if count > int64(rl.config.Limit) {
				return false, int(rl.config.Window.Seconds()) + 1
			}
			return true, 0
		}
		logger.Log.Warn("Shared rate limiter unavailable, using local buckets",
			zap.String("limiter", rl.config.Name),
			zap.Error(err),
		)
	}
	return rl.allowLocal(key)
}

func (rl *RateLimiter) allowLocal(key string) (bool, int) {
	rl.mu.Lock()
	rl.sweepLocked()
	bucket, exists := rl.buckets[key]
	if !exists {
		refillRate := float64(rl.config.Limit) / rl.config.Window.Seconds()
		bucket = NewTokenBucket(float64(rl.config.Limit), refillRate)
		rl.buckets[key] = bucket
	}
	rl.mu.Unlock()

	if bucket.Allow() {
		return true, 0
	}
	return false, bucket.GetRetryAfter()
}

// sweepLocked drops buckets idle for more than two windows; an idle bucket
// has refilled completely and is equivalent to a fresh one.
func (rl *RateLimiter) sweepLocked() {
	now := time.Now()
	if now.Sub(rl.lastSweep) < rl.config.Window {
		return
	}
	cutoff := now.Add(-2 * rl.config.Window)
	for key, bucket := range rl.buckets {
		if bucket.idleSince(cutoff) {
			delete(rl.buckets, key)
		}
	}
	rl.lastSweep = now
}

// RateLimit returns middleware for config backed by counter (may be nil)
func RateLimit(config RateLimitConfig, counter WindowCounter) gin.HandlerFunc {
	return NewRateLimiter(config, counter).Middleware()
}
