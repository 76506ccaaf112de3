package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/trailsocial/engagement/internal/config"
	"github.com/trailsocial/engagement/internal/logger"
	"github.com/trailsocial/engagement/internal/metrics"
	"go.uber.org/zap"
)

// RedisClient wraps redis.Client with the few operations the service needs:
// fixed-window counters for rate limiting and a lease lock for maintenance jobs.
type RedisClient struct {
	client redis.UniversalClient
	owner  string
}

// NewRedisClient connects to Redis and verifies the connection with a ping.
func NewRedisClient(cfg config.RedisConfig) (*RedisClient, error) {
	host, port := cfg.Host, cfg.Port
	if host == "" {
		host = "localhost"
	}
	if port == "" {
		port = "6379"
	}
	addr := fmt.Sprintf("%s:%s", host, port)

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   3,
		PoolSize:     10,
		MinIdleConns: 2,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.ErrorWithFields("Failed to connect to Redis", err)
		client.Close()
		return nil, err
	}

	logger.Log.Info("Redis client connected", zap.String("address", addr))
	return NewFromClient(client), nil
}

// NewFromClient wraps an existing client.
func NewFromClient(client redis.UniversalClient) *RedisClient {
	return &RedisClient{client: client, owner: newOwnerToken()}
}

// Close closes the Redis connection gracefully
func (rc *RedisClient) Close() error {
	if rc == nil || rc.client == nil {
		return nil
	}
	return rc.client.Close()
}

// Ping tests the Redis connection
func (rc *RedisClient) Ping(ctx context.Context) error {
	return observe("ping", func() error {
		return rc.client.Ping(ctx).Err()
	})
}

// IncrWindow increments key and returns the new count. The key expires one
// window after its first increment, giving fixed-window counting.
func (rc *RedisClient) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	var incr *redis.IntCmd
	err := observe("incr_window", func() error {
		_, err := rc.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			incr = pipe.Incr(ctx, key)
			pipe.ExpireNX(ctx, key, window)
			return nil
		})
		return err
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// Acquire takes a lease on key for ttl using SET NX. It reports false when
// another owner holds the lease.
func (rc *RedisClient) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	var ok bool
	err := observe("lock_acquire", func() error {
		var err error
		ok, err = rc.client.SetNX(ctx, key, rc.owner, ttl).Result()
		return err
	})
	return ok, err
}

// releaseScript deletes the lock only if this client still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Release drops a lease taken by Acquire. Releasing a lease that expired or
// was taken over by another owner is a no-op.
func (rc *RedisClient) Release(ctx context.Context, key string) error {
	return observe("lock_release", func() error {
		err := releaseScript.Run(ctx, rc.client, []string{key}, rc.owner).Err()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	})
}

func observe(operation string, fn func() error) error {
	m := metrics.Get()
	start := time.Now()
	err := fn()
	m.RedisOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	status := "ok"
	if err != nil {
		status = "error"
	}
	m.RedisOperationsTotal.WithLabelValues(operation, status).Inc()
	return err
}
