// Package service implements the core proxy forwarding logic.
package service

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"bookmyturf-proxy/internal/client"
	"bookmyturf-proxy/internal/config"
	"bookmyturf-proxy/internal/cookie"
	"bookmyturf-proxy/internal/metrics"
	"bookmyturf-proxy/internal/model"
)

// hopByHopHeaders are meaningful only for a single connection and are never
// forwarded in either direction.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"TE",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// ProxyService forwards requests to the configured backend and adapts its
// cookies for cross-site delivery. It holds no per-request state.
type ProxyService struct {
	client         *client.UpstreamClient
	logger         *slog.Logger
	metrics        *metrics.Metrics
	baseURL        *url.URL
	prefix         string
	upstreamPrefix string
	forceJSON      bool
}

// NewProxyService creates a ProxyService. The metrics parameter is optional.
func NewProxyService(c *client.UpstreamClient, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*ProxyService, error) {
	u, err := url.Parse(cfg.Upstream.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream base_url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("upstream base_url %q has no host", cfg.Upstream.BaseURL)
	}

	return &ProxyService{
		client:         c,
		logger:         logger.With("component", "proxy_service"),
		metrics:        m,
		baseURL:        u,
		prefix:         cfg.Proxy.Prefix,
		upstreamPrefix: cfg.Proxy.UpstreamPrefix,
		forceJSON:      cfg.Proxy.ForceJSONContentType,
	}, nil
}

// Forward sends a ProxyRequest to the upstream and returns the response with
// its Set-Cookie directives rewritten. The caller is responsible for closing
// the response body.
//
// Exactly one upstream call is made; failures are returned, never retried.
func (s *ProxyService) Forward(pr *model.ProxyRequest) (*model.ProxyResponse, error) {
	upstreamURL := s.buildUpstreamURL(pr.Path, pr.RawQuery)
	header := s.filterRequestHeaders(pr.Header)

	s.logger.Debug("forwarding request",
		"method", pr.Method,
		"path", pr.Path,
		"upstream_path", upstreamURL.Path,
	)

	resp, err := s.client.DoStream(pr.Ctx, pr.Method, upstreamURL.String(), header, pr.Body, pr.ContentLength)
	if err != nil {
		return nil, fmt.Errorf("forward to upstream: %w", err)
	}

	resp.Header = s.filterResponseHeaders(resp.Header)
	if n := cookie.RewriteHeader(resp.Header); n > 0 {
		s.logger.Debug("rewrote upstream cookies", "count", n, "path", pr.Path)
		if s.metrics != nil {
			s.metrics.CookiesRewritten.Add(float64(n))
		}
	}
	return resp, nil
}

// buildUpstreamURL maps the inbound path onto the upstream: the configured
// prefix is swapped for the upstream prefix and any base URL path is kept in
// front. The query string is passed through untouched.
func (s *ProxyService) buildUpstreamURL(path, rawQuery string) *url.URL {
	u := *s.baseURL
	u.Path = strings.TrimSuffix(s.baseURL.Path, "/") + s.rewritePath(path)
	u.RawPath = ""
	u.RawQuery = rawQuery
	return &u
}

func (s *ProxyService) rewritePath(path string) string {
	if path != s.prefix && !strings.HasPrefix(path, s.prefix+"/") {
		return path
	}
	target := strings.TrimSuffix(s.upstreamPrefix, "/") + strings.TrimPrefix(path, s.prefix)
	if target == "" {
		return "/"
	}
	return target
}

// filterRequestHeaders copies every inbound header except Host and hop-by-hop
// headers. Host is dropped so the outbound request carries the upstream's own
// host. Cookie is copied verbatim.
func (s *ProxyService) filterRequestHeaders(src http.Header) http.Header {
	dst := src.Clone()
	if dst == nil {
		dst = make(http.Header)
	}
	removeHopByHop(dst)
	dst.Del("Host")

	if cookies := src.Values("Cookie"); len(cookies) > 0 {
		dst["Cookie"] = append([]string(nil), cookies...)
	}
	if s.forceJSON {
		dst.Set("Content-Type", "application/json")
	}
	return dst
}

// filterResponseHeaders copies every upstream header except hop-by-hop ones.
func (s *ProxyService) filterResponseHeaders(src http.Header) http.Header {
	dst := src.Clone()
	if dst == nil {
		dst = make(http.Header)
	}
	removeHopByHop(dst)
	return dst
}

// removeHopByHop deletes the standard hop-by-hop headers plus any named in
// the Connection header.
func removeHopByHop(h http.Header) {
	for _, v := range h.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				h.Del(name)
			}
		}
	}
	for _, name := range hopByHopHeaders {
		h.Del(name)
	}
}
