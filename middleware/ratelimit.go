package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Yulian302/lfusys-services-handshake/apperror"
	"github.com/Yulian302/lfusys-services-handshake/logging"
	"github.com/Yulian302/lfusys-services-handshake/ratelimit"
)

// RateLimiterMiddleware allows limit requests per client IP per window. It
// fails open when the limiter is unavailable.
func RateLimiterMiddleware(limiter ratelimit.RateLimiter, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logging.FromContext(c.Request.Context())
		key := fmt.Sprintf("rate:ip:%s", c.ClientIP())

		count, err := limiter.Incr(c, key)
		if err != nil {
			log.Warn("rate limiter unavailable", slog.Any("err", err))
			c.Next()
			return
		}

		if count == 1 {
			if err := limiter.Expire(c, key, window); err != nil {
				log.Warn("could not set expiration for rate limiting", slog.Any("err", err))
			}
		}

		remaining := int64(limit) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(limit) {
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			apperror.Respond(c, http.StatusTooManyRequests, "Too many requests. Please try again later")
			return
		}

		c.Next()
	}
}
