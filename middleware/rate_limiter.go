// middleware/rate_limiter.go
package middleware

import (
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// RateLimiter applies a fixed-window request limit per client IP and route
// group, backed by Redis so limits hold across all service replicas.
//
// Usage:
//
//	play.Use(middleware.RateLimiter(rdb, "play", 60, time.Minute))
func RateLimiter(rdb *redis.Client, group string, limit int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		windowStart := time.Now().UTC().Truncate(window).Unix()
		key := fmt.Sprintf("ratelimit:%s:%s:%d", group, c.IP(), windowStart)

		count, err := rdb.Incr(c.Context(), key).Result()
		if err != nil {
			// Fail open: a Redis outage must not take gameplay down with it
			log.Printf("⚠️ [RATE_LIMIT] Redis error for %s: %v", key, err)
			return c.Next()
		}
		if count == 1 {
			rdb.Expire(c.Context(), key, window)
		}

		if count > int64(limit) {
			log.Printf("🚫 [RATE_LIMIT] %s exceeded %d req/%s on group %s", c.IP(), limit, window, group)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate limit exceeded, slow down",
			})
		}
		return c.Next()
	}
}
