package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"divan_bot/internal/logger"
	"divan_bot/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	redis "github.com/redis/go-redis/v9"
)

// NewRedisClient connects to addr and returns nil when addr is empty or the
// server does not answer, which leaves rate limiting on the in-process window.
func NewRedisClient(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, using local rate limiter", "addr", addr, "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

type windowInfo struct {
	start time.Time
	count int64
}

// RateLimiter is a fixed-window limiter using Redis INCR/EXPIRE. Without
// Redis it counts in process. On Redis errors requests are allowed.
type RateLimiter struct {
	client *redis.Client
	clock  clockwork.Clock

	mu    sync.Mutex
	local map[string]*windowInfo
}

func NewRateLimiter(client *redis.Client, clock clockwork.Clock) *RateLimiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RateLimiter{client: client, clock: clock, local: make(map[string]*windowInfo)}
}

// hit increments the counter for key and returns the count in the current window.
func (rl *RateLimiter) hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	if rl.client == nil {
		return rl.hitLocal(key, window), nil
	}
	val, err := rl.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if val == 1 {
		rl.client.Expire(ctx, key, window)
	}
	return val, nil
}

func (rl *RateLimiter) hitLocal(key string, window time.Duration) int64 {
	now := rl.clock.Now()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	w, ok := rl.local[key]
	if !ok || now.Sub(w.start) >= window {
		// drop stale windows while holding the lock
		for k, v := range rl.local {
			if now.Sub(v.start) >= window {
				delete(rl.local, k)
			}
		}
		w = &windowInfo{start: now}
		rl.local[key] = w
	}
	w.count++
	return w.count
}

func (rl *RateLimiter) limit(name string, maxRequests int, window time.Duration, ident func(c *gin.Context) string) gin.HandlerFunc {
	secs := strconv.FormatInt(int64(window.Seconds()), 10)
	return func(c *gin.Context) {
		endpoint := name + ":" + c.FullPath()
		key := "rl:" + name + ":" + secs + ":" + ident(c)

		val, err := rl.hit(c.Request.Context(), key, window)
		if err != nil {
			c.Header("X-RateLimit-Error", "redis-error")
			logger.WithContext(c.Request.Context()).Warn("rate limiter redis error", "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(max(0, int64(maxRequests)-val), 10))

		if val > int64(maxRequests) {
			metrics.RLBlocked.WithLabelValues(endpoint).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"reason":      "rate_limited",
				"retry_after": int(window.Seconds()),
			})
			return
		}

		metrics.RLRequests.WithLabelValues(endpoint).Inc()
		c.Next()
	}
}

// PerIP limits requests per client address.
func (rl *RateLimiter) PerIP(name string, maxRequests int, window time.Duration) gin.HandlerFunc {
	return rl.limit(name, maxRequests, window, func(c *gin.Context) string {
		return c.ClientIP()
	})
}

// PerUser limits requests per authenticated user and falls back to the client
// address. Requires JWT to run first.
func (rl *RateLimiter) PerUser(name string, maxRequests int, window time.Duration) gin.HandlerFunc {
	return rl.limit(name, maxRequests, window, func(c *gin.Context) string {
		if id := c.GetInt64(UserIDKey); id != 0 {
			return "u" + strconv.FormatInt(id, 10)
		}
		return c.ClientIP()
	})
}
