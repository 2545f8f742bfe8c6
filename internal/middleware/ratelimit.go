package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"bookmyturf-proxy/internal/config"
)

// IPExtractor picks how the client IP is resolved for rate limiting and logs.
// Forwarded headers are only honored when explicitly trusted, and then only
// from loopback and private-network hops.
func IPExtractor(cfg config.ServerConfig) echo.IPExtractor {
	if cfg.TrustForwardedFor {
		return echo.ExtractIPFromXFFHeader()
	}
	return echo.ExtractIPDirect()
}

// RateLimiter returns a per-client-IP rate limiter backed by Echo's in-memory
// store. Rejections use the same {error, details} body as upstream failures.
func RateLimiter(cfg config.RateLimitConfig) echo.MiddlewareFunc {
	store := echomw.NewRateLimiterMemoryStore(rate.Limit(cfg.RequestsPerSecond))
	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			return c.JSON(http.StatusTooManyRequests, map[string]string{
				"error":   "rate_limited",
				"details": "too many requests",
			})
		},
	})
}
