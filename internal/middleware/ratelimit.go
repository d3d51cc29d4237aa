// Package middleware holds the fiber middleware guarding the AJAX surface:
// per-address rate limits, address blocks, admin authentication and request
// logging.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"unscored/internal/models"
	"unscored/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// RateLimitWindow is how often every address counter is reset.
const RateLimitWindow = 2 * time.Minute

// FailPolicy defines the behavior when the rate limit store is unavailable.
type FailPolicy int

const (
	// FailOpen allows the request to proceed if the store is unavailable.
	FailOpen FailPolicy = iota
	// FailClosed blocks the request (503 Service Unavailable) if the store is unavailable.
	FailClosed
)

// Limiter counts requests per client address.
type Limiter interface {
	Allow(ctx context.Context, addr string) (bool, error)
}

// CheckRateLimit counts one request of id against resource and reports
// whether it is within limit for the current window.
func CheckRateLimit(ctx context.Context, rdb *redis.Client, resource, id string, limit int, window time.Duration) (bool, error) {
	if rdb == nil {
		return false, fmt.Errorf("redis client is nil")
	}

	key := fmt.Sprintf("rl:%s:%s", resource, id)

	// INCR and set EXPIRE if new
	cnt, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if cnt == 1 {
		rdb.Expire(ctx, key, window)
	}
	return cnt <= int64(limit), nil
}

// RedisLimiter shares counters between processes through Redis.
type RedisLimiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
}

// NewRedisLimiter allows limit requests per address and window.
func NewRedisLimiter(rdb *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, limit: limit, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, addr string) (bool, error) {
	return CheckRateLimit(ctx, l.rdb, "ajax", addr, l.limit, l.window)
}

// MemoryLimiter keeps per-address counters in process. All counters are
// cleared together once the window has passed.
type MemoryLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	counts  map[string]int
	resetAt time.Time
	now     func() time.Time
}

// NewMemoryLimiter allows limit requests per address and window.
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	l := &MemoryLimiter{
		limit:  limit,
		window: window,
		counts: make(map[string]int),
		now:    time.Now,
	}
	l.resetAt = l.now().Add(window)
	return l
}

func (l *MemoryLimiter) Allow(_ context.Context, addr string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if now.After(l.resetAt) {
		clear(l.counts)
		l.resetAt = now.Add(l.window)
	}
	l.counts[addr]++
	return l.counts[addr] <= l.limit, nil
}

// RateLimit rejects blocked addresses and addresses over their request
// budget with REQUEST_BLOCKED. Either limiter or blocks may be nil.
func RateLimit(limiter Limiter, blocks *Blocklist, policy FailPolicy) fiber.Handler {
	return func(c *fiber.Ctx) error {
		addr := c.IP()

		allowed := true
		var err error
		if limiter != nil {
			allowed, err = limiter.Allow(c.UserContext(), addr)
		}

		if blocks != nil && blocks.Contains(addr) {
			return models.RespondWithError(c, models.NewRequestBlockedError("Address blocked"))
		}

		if err != nil {
			observability.Logger.WarnContext(c.UserContext(), "rate limit store unavailable",
				slog.String("ip", addr),
				slog.String("error", err.Error()),
			)
			if policy == FailClosed {
				return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
					Error: "rate limit unavailable",
				})
			}
			return c.Next()
		}

		if !allowed {
			return models.RespondWithError(c, models.NewRequestBlockedError("Rate limit exceeded"))
		}
		return c.Next()
	}
}
