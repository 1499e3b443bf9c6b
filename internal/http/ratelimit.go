package http

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	apperrors "github.com/wenwu/saas-platform/odoo-admin-service/internal/errors"
	"github.com/wenwu/saas-platform/odoo-admin-service/internal/logger"
)

// Limiter decides whether one more request for key fits in the window.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// MemoryLimiter 简单的内存速率限制器 (单实例部署)
type MemoryLimiter struct {
	mu        sync.Mutex
	requests  map[string][]time.Time
	limit     int           // 最大请求数
	window    time.Duration // 时间窗口
	now       func() time.Time
	lastSweep time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

// Len reports how many clients are currently tracked.
func (rl *MemoryLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.requests)
}

func (rl *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.window)
	if now.Sub(rl.lastSweep) >= rl.window {
		rl.sweep(windowStart)
		rl.lastSweep = now
	}

	// 清理过期请求
	var valid []time.Time
	for _, t := range rl.requests[key] {
		if t.After(windowStart) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return false, nil
	}

	rl.requests[key] = append(valid, now)
	return true, nil
}

// sweep drops clients with no request inside the window.
func (rl *MemoryLimiter) sweep(windowStart time.Time) {
	for key, times := range rl.requests {
		if len(times) == 0 || !times[len(times)-1].After(windowStart) {
			delete(rl.requests, key)
		}
	}
}

// RedisLimiter is a sliding-window limiter shared by every instance that
// talks to the same redis.
type RedisLimiter struct {
	client *redis.Client
	scope  string
	limit  int
	window time.Duration
}

func NewRedisLimiter(client *redis.Client, scope string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, scope: scope, limit: limit, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := time.Now()
	redisKey := fmt.Sprintf("ratelimit:%s:%s", l.scope, key)
	windowStart := now.Add(-l.window).UnixNano()

	pipe := l.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", strconv.FormatInt(windowStart, 10))
	zcard := pipe.ZCard(ctx, redisKey)
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: uuid.NewString()})
	pipe.Expire(ctx, redisKey, l.window+time.Minute)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit pipeline: %w", err)
	}
	return zcard.Val() < int64(l.limit), nil
}

// RateLimitMiddleware limits requests per client IP. When the limiter
// itself fails the request is let through.
func RateLimitMiddleware(l Limiter) gin.HandlerFunc {
	log := logger.WithComponent("ratelimit")
	return func(c *gin.Context) {
		key := c.ClientIP()
		allowed, err := l.Allow(c.Request.Context(), key)
		if err != nil {
			log.Warn("rate limiter unavailable", "error", err)
			c.Next()
			return
		}
		if !allowed {
			writeError(c, apperrors.NewRateLimitError("请求过于频繁，请稍后再试"))
			return
		}
		c.Next()
	}
}
