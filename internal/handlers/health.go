package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is a dependency the health check probes.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health reports liveness and the state of the database and, when
// configured, Redis.
// GET /health
func (h *Handlers) Health(redis Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		checks := gin.H{}

		if sqlDB, err := h.db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			checks["database"] = "unavailable"
			status = http.StatusServiceUnavailable
		} else {
			checks["database"] = "ok"
		}

		if redis != nil {
			if err := redis.Ping(ctx); err != nil {
				// Rate limiting falls back to local buckets and rebuilds to the
				// in-process lock, so Redis loss degrades rather than fails.
				checks["redis"] = "degraded"
			} else {
				checks["redis"] = "ok"
			}
		}

		state := "ok"
		if status != http.StatusOK {
			state = "unavailable"
		}
		c.JSON(status, gin.H{
			"status":    state,
			"timestamp": time.Now().UTC(),
			"service":   "trail-engagement",
			"checks":    checks,
		})
	}
}
