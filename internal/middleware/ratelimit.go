package middleware

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-reservation/internal/ratelimit"
)

// RateLimit meters every request against the shared token bucket. Requests
// pass untouched when the limiter is disabled or Redis fails.
func RateLimit(l *ratelimit.Limiter) echo.MiddlewareFunc {
	if !l.Enabled() {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := l.Key(c.RealIP(), username(c))
			res, err := l.Allow(c.Request().Context(), key)
			if err != nil {
				if l.Debug() {
					c.Logger().Warnf("[ratelimit] redis error for key=%s: %v", key, err)
				}
				return next(c)
			}

			c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(l.Capacity()))
			c.Response().Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			if !res.Allowed {
				secs := res.RetrySeconds()
				c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				if l.Debug() {
					c.Logger().Infof("[ratelimit] block key=%s retry=%s", key, res.RetryAfter)
				}
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":       "too_many_requests",
					"message":     "rate limit exceeded",
					"retry_after": secs,
				})
			}
			return next(c)
		}
	}
}
