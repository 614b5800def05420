package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"houseshower/internal/infrastructure/ratelimit"
	"houseshower/pkg/logger"
)

// RateLimit limits action per client IP.
func RateLimit(limiter *ratelimit.RateLimiter, action string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()

			allowed, wait := limiter.Allow(ip, action)
			if !allowed {
				retryAfter := int(math.Ceil(wait.Seconds()))
				logger.Warn("Rate limit hit: ip=%s action=%s retry_after=%ds", ip, action, retryAfter)

				c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"error":       "Too many requests, please try again later",
					"retry_after": retryAfter,
				})
			}

			return next(c)
		}
	}
}
