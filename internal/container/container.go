// Package container builds the engagement service's dependency graph from
// configuration and owns its shutdown order.
package container

import (
	"context"
	"fmt"
	"sync"

	"github.com/trailsocial/engagement/internal/auth"
	"github.com/trailsocial/engagement/internal/cache"
	"github.com/trailsocial/engagement/internal/config"
	"github.com/trailsocial/engagement/internal/database"
	"github.com/trailsocial/engagement/internal/engagement"
	"github.com/trailsocial/engagement/internal/handlers"
	"github.com/trailsocial/engagement/internal/logger"
	"github.com/trailsocial/engagement/internal/middleware"
	"github.com/trailsocial/engagement/internal/permalink"
	"github.com/trailsocial/engagement/internal/repository"
	"github.com/trailsocial/engagement/internal/telemetry"
	"github.com/trailsocial/engagement/internal/viewer"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Container holds all application dependencies and provides type-safe access.
type Container struct {
	cfg config.Config

	// Core infrastructure
	db    *gorm.DB
	cache *cache.RedisClient

	// Identity
	obfuscator *permalink.Obfuscator
	resolver   *viewer.Resolver
	auth       *auth.Service

	// Engagement stores
	counters *engagement.CounterCache
	recorder *engagement.Recorder
	claps    *engagement.ClapLedger
	content  repository.ContentRepository

	// Lifecycle hooks
	cleanupFuncs []func(context.Context) error
	mu           sync.RWMutex
}

// New creates a new empty container.
func New(cfg config.Config) *Container {
	return &Container{
		cfg:          cfg,
		cleanupFuncs: make([]func(context.Context) error, 0),
	}
}

// Build connects the database and, when configured, Redis, then wires the
// engagement stores on top of them. A Redis that cannot be reached is logged
// and skipped: rate limiting and the rebuild lock fall back to in-process
// state.
func Build(cfg config.Config) (*Container, error) {
	c := New(cfg)
	fail := func(err error) (*Container, error) {
		_ = c.Cleanup(context.Background())
		return nil, err
	}

	db, err := database.Open(cfg.Database, cfg.Log.Level == "debug")
	if err != nil {
		return nil, err
	}
	c.OnCleanup(func(context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})

	if cfg.Telemetry.Enabled {
		if err := db.Use(telemetry.GORMTracingPlugin(telemetry.DBSystem(cfg.Database.Driver))); err != nil {
			return fail(fmt.Errorf("failed to install tracing plugin: %w", err))
		}
	}

	if cfg.Redis.Enabled() {
		client, err := cache.NewRedisClient(cfg.Redis)
		if err != nil {
			logger.Log.Warn("Redis unavailable, continuing with in-process rate limits and locks", zap.Error(err))
		} else {
			c.SetCache(client)
			c.OnCleanup(func(context.Context) error { return client.Close() })
		}
	}

	if cfg.JWTSecret != "" {
		svc, err := auth.NewService([]byte(cfg.JWTSecret))
		if err != nil {
			return fail(err)
		}
		c.auth = svc
	}

	if err := c.Wire(db); err != nil {
		return fail(err)
	}
	if err := c.Validate(); err != nil {
		return fail(err)
	}
	return c, nil
}

// Wire builds the engagement stores on db. Build calls it; tests call it
// directly with their own database.
func (c *Container) Wire(db *gorm.DB) error {
	obfuscator, err := permalink.New(c.cfg.PermalinkSalt)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.db = db
	c.obfuscator = obfuscator
	c.resolver = viewer.NewResolver(c.cfg.TrustForwardedFor)
	c.counters = engagement.NewCounterCache(db, c.lockerLocked())
	c.recorder = engagement.NewRecorder(db, c.counters, c.cfg.DedupWindow)
	c.claps = engagement.NewClapLedger(db)
	c.content = repository.NewContentRepository(db)
	return nil
}

// Migrate creates the engagement tables, plus the content tables when
// withContent is set (SQLite development databases and seeding).
func (c *Container) Migrate(withContent bool) error {
	db := c.DB()
	if err := database.Migrate(db); err != nil {
		return err
	}
	if withContent {
		return database.MigrateContent(db)
	}
	return nil
}

// ============================================================================
// GETTERS
// ============================================================================

// Config returns the configuration the container was built from
func (c *Container) Config() config.Config {
	return c.cfg
}

// DB returns the database connection
func (c *Container) DB() *gorm.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}

// SetCache registers the Redis client
func (c *Container) SetCache(client *cache.RedisClient) *Container {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = client
	return c
}

// Cache returns the Redis client, or nil when Redis is not in use
func (c *Container) Cache() *cache.RedisClient {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cache
}

// Obfuscator returns the permalink codec
func (c *Container) Obfuscator() *permalink.Obfuscator {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.obfuscator
}

// Auth returns the token service, or nil when no JWT secret is configured
func (c *Container) Auth() *auth.Service {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.auth
}

// Counters returns the view counter cache
func (c *Container) Counters() *engagement.CounterCache {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.counters
}

// Claps returns the clap ledger
func (c *Container) Claps() *engagement.ClapLedger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.claps
}

// Resolver returns the viewer identity resolver
func (c *Container) Resolver() *viewer.Resolver {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resolver
}

// TokenValidator returns the bearer token validator, or nil for an
// anonymous-only deployment.
func (c *Container) TokenValidator() auth.TokenValidator {
	if svc := c.Auth(); svc != nil {
		return svc
	}
	return nil
}

// WindowCounter returns the shared rate-limit counter, or nil when limits
// are kept per process.
func (c *Container) WindowCounter() middleware.WindowCounter {
	if client := c.Cache(); client != nil {
		return client
	}
	return nil
}

// HealthPinger returns the Redis client as a health probe, or nil.
func (c *Container) HealthPinger() handlers.Pinger {
	if client := c.Cache(); client != nil {
		return client
	}
	return nil
}

func (c *Container) lockerLocked() engagement.Locker {
	if c.cache != nil {
		return c.cache
	}
	return engagement.NewLocalLocker()
}

// Handlers builds the HTTP handlers over the wired stores
func (c *Container) Handlers() *handlers.Handlers {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return handlers.NewHandlers(handlers.Deps{
		DB:         c.db,
		Obfuscator: c.obfuscator,
		Resolver:   c.resolver,
		Recorder:   c.recorder,
		Counters:   c.counters,
		Claps:      c.claps,
		Content:    c.content,
	})
}

// ============================================================================
// LIFECYCLE MANAGEMENT
// ============================================================================

// OnCleanup registers a cleanup function to be called during shutdown.
// Cleanup functions are called in LIFO order.
func (c *Container) OnCleanup(fn func(context.Context) error) *Container {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupFuncs = append(c.cleanupFuncs, fn)
	return c
}

// Cleanup runs the registered cleanup functions in reverse order. Failures
// are logged and do not stop the remaining functions.
func (c *Container) Cleanup(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for i := len(c.cleanupFuncs) - 1; i >= 0; i-- {
		if err := c.cleanupFuncs[i](ctx); err != nil {
			logger.Log.Error("Cleanup function failed", zap.Int("index", i), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	c.cleanupFuncs = c.cleanupFuncs[:0]
	return firstErr
}

// ============================================================================
// VALIDATION
// ============================================================================

// Validate checks that all required dependencies are registered.
func (c *Container) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	missingDeps := []string{}
	if c.db == nil {
		missingDeps = append(missingDeps, "database (DB)")
	}
	if c.obfuscator == nil {
		missingDeps = append(missingDeps, "permalink obfuscator")
	}
	if c.counters == nil || c.recorder == nil || c.claps == nil {
		missingDeps = append(missingDeps, "engagement stores")
	}

	if len(missingDeps) > 0 {
		return NewInitializationError("Missing required dependencies", missingDeps)
	}

	if c.auth == nil {
		logger.Log.Warn("JWT_SECRET not set; every request is anonymous")
	}
	return nil
}
