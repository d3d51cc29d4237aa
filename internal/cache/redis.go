package cache

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"unscored/internal/observability"

	"github.com/redis/go-redis/v9"
)

const responseKeyPrefix = "unscored:response:"

type metricsHook struct{}

func (h metricsHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h metricsHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		if err != nil && !errors.Is(err, redis.Nil) {
			observability.RedisErrors.WithLabelValues(cmd.Name()).Inc()
		}
		return err
	}
}

func (h metricsHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		if err != nil && !errors.Is(err, redis.Nil) {
			observability.RedisErrors.WithLabelValues("pipeline").Inc()
		}
		return err
	}
}

// InitRedis connects to the Redis server at addr, which may be a host:port or
// a redis:// URL. It returns nil when Redis is unreachable so callers fall back
// to in-process state.
func InitRedis(addr string) *redis.Client {
	if addr == "" {
		return nil
	}

	var opts *redis.Options
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			observability.Logger.Warn("Redis connection warning: invalid REDIS_URL (continuing without redis)",
				slog.String("addr", addr), slog.String("error", err.Error()))
			return nil
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr}
	}

	client := redis.NewClient(opts)
	client.AddHook(metricsHook{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		observability.Logger.Warn("Redis connection warning (continuing without redis)", slog.String("error", err.Error()))
		_ = client.Close()
		return nil
	}
	observability.Logger.Info("Redis connected successfully")
	return client
}

// RedisCache is a ResponseCache shared between processes through Redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps an existing client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Get returns the cached value for key. Redis errors count as misses.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.client.Get(ctx, responseKeyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			observability.Logger.WarnContext(ctx, "response cache read failed", slog.String("error", err.Error()))
		}
		observability.ResponseCacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
	observability.ResponseCacheLookups.WithLabelValues("hit").Inc()
	return val, true
}

// Set stores value under key with ttl. Failures are logged and dropped.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	if err := c.client.Set(ctx, responseKeyPrefix+key, value, ttl).Err(); err != nil {
		observability.Logger.WarnContext(ctx, "response cache write failed", slog.String("error", err.Error()))
	}
}

// New returns a Redis-backed cache when client is non-nil, else an in-process one.
func New(client *redis.Client) ResponseCache {
	if client != nil {
		return NewRedisCache(client)
	}
	return NewMemoryCache()
}
