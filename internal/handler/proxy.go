package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"bookmyturf-proxy/internal/metrics"
	"bookmyturf-proxy/internal/model"
	"bookmyturf-proxy/internal/service"
)

// Error categories reported in the body of a failed proxy call.
const (
	ErrCategoryTimeout          = "upstream_timeout"
	ErrCategoryClientCanceled   = "client_canceled"
	ErrCategoryUnreachable      = "upstream_unreachable"
	ErrCategoryConnectionFailed = "upstream_connection_failed"
	ErrCategoryRequestFailed    = "upstream_request_failed"
)

// failureStatus is returned for every upstream failure, whatever its category.
const failureStatus = http.StatusInternalServerError

const corsResponseHeaderPrefix = "Access-Control-"

// ErrorResponse is the JSON body returned when the upstream call fails.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

// ProxyHandler forwards API requests to the upstream backend.
type ProxyHandler struct {
	service *service.ProxyService
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewProxyHandler creates a ProxyHandler. The metrics parameter is optional.
func NewProxyHandler(svc *service.ProxyService, logger *slog.Logger, m *metrics.Metrics) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		logger:  logger.With("component", "proxy_handler"),
		metrics: m,
	}
}

// Handle proxies the request to the upstream and streams the response back.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()

	pr := &model.ProxyRequest{
		Ctx:           req.Context(),
		Method:        req.Method,
		Path:          req.URL.Path,
		RawQuery:      req.URL.RawQuery,
		Header:        req.Header,
		Body:          req.Body,
		ContentLength: req.ContentLength,
	}

	resp, err := h.service.Forward(pr)
	if err != nil {
		return h.mapError(c, err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Copy response headers. Add keeps repeated Set-Cookie values separate.
	// CORS headers already set by the proxy's own middleware win over the
	// upstream's, so the browser never sees duplicates.
	out := c.Response().Header()
	for key, vals := range resp.Header {
		if strings.HasPrefix(key, corsResponseHeaderPrefix) && out.Get(key) != "" {
			continue
		}
		for _, v := range vals {
			out.Add(key, v)
		}
	}

	c.Response().WriteHeader(resp.StatusCode)

	// Stream the upstream body directly to the client. If io.Copy fails
	// mid-stream (e.g. client disconnect), the status has already been sent
	// and the client receives a truncated body; we only log it.
	if _, err := io.Copy(c.Response(), resp.Body); err != nil {
		h.logger.Error("streaming response body",
			"err", err,
			"path", req.URL.Path,
		)
	}

	return nil
}

// mapError classifies an upstream failure and always answers with the fixed
// failure status and an ErrorResponse body.
func (h *ProxyHandler) mapError(c echo.Context, err error) error {
	category := classifyError(err)

	h.logger.Error("proxy error",
		"err", err,
		"category", category,
		"method", c.Request().Method,
		"path", c.Request().URL.Path,
	)
	if h.metrics != nil {
		h.metrics.UpstreamErrors.WithLabelValues(category).Inc()
	}

	return c.JSON(failureStatus, ErrorResponse{
		Error:   category,
		Details: err.Error(),
	})
}

func classifyError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrCategoryTimeout
	}
	if errors.Is(err, context.Canceled) {
		return ErrCategoryClientCanceled
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrCategoryTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrCategoryUnreachable
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ErrCategoryConnectionFailed
	}

	return ErrCategoryRequestFailed
}
