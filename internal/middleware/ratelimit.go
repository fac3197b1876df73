package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"autorepair-shop-server/internal/logging"
	"autorepair-shop-server/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimitKeyPrefix namespaces limiter counters in Redis.
const RateLimitKeyPrefix = "ratelimit:"

// RateLimit allows max requests per client IP per fixed window. The counter
// lives in Redis so every replica shares it. A nil client disables limiting.
// Redis failures let the request through. Needs Redis 7 for EXPIRE NX.
func RateLimit(client redis.Cmdable, window time.Duration, max int) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := RateLimitKeyPrefix + c.ClientIP()

		// EXPIRE NX runs on every hit: a counter that lost its TTL gets one back.
		var incr *redis.IntCmd
		_, err := client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			incr = pipe.Incr(ctx, key)
			pipe.ExpireNX(ctx, key, window)
			return nil
		})
		if err != nil {
			logging.FromContext(ctx).Warn("rate limiter unavailable", slog.String("error", err.Error()))
			c.Next()
			return
		}
		count := incr.Val()

		remaining := max - int(count)
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(max))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if int(count) > max {
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			utils.Error(c, http.StatusTooManyRequests, "Too many requests from this IP, please try again later.")
			c.Abort()
			return
		}
		c.Next()
	}
}
