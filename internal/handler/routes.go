// Package handler wires the inbound HTTP surface of the proxy.
package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bookmyturf-proxy/internal/config"
	"bookmyturf-proxy/internal/metrics"
)

// RegisterRoutes wires all route handlers onto the Echo instance.
// Echo's router prefers static routes over the prefix wildcard, so the
// liveness path is answered locally even though it sits under the prefix.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, proxy *ProxyHandler, health *HealthHandler) {
	// HEAD is registered explicitly so load balancer probes under the prefix
	// are not forwarded by the wildcard.
	for _, path := range []string{"/healthz", cfg.Proxy.HealthPath} {
		e.GET(path, health.Healthz)
		e.HEAD(path, health.Healthz)
	}
	e.GET("/proxy/status", health.Status)
	e.HEAD("/proxy/status", health.Status)

	// Same forwarding logic as the catch-all; auth_verify_path may live
	// outside the prefix.
	e.Any(cfg.Proxy.AuthVerifyPath, proxy.Handle)

	e.Any(cfg.Proxy.Prefix, proxy.Handle)
	e.Any(cfg.Proxy.Prefix+"/*", proxy.Handle)
}

// RegisterMetrics exposes the Prometheus registry when metrics are enabled.
func RegisterMetrics(e *echo.Echo, cfg *config.Config, m *metrics.Metrics) {
	if !cfg.Metrics.Enabled || m == nil {
		return
	}
	e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
}
