package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	e := echo.New()
	e.Use(RequestLogger(logger))
	e.GET("/api/turfs", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/turfs", http.NoBody)
	req.Header.Set(echo.HeaderOrigin, "http://localhost:5173")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	out := buf.String()
	for _, want := range []string{"level=INFO", "path=/api/turfs", "status=200", "origin=http://localhost:5173"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q: %s", want, out)
		}
	}
}

func TestRequestLogger_ServerErrorAtWarn(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	e := echo.New()
	e.Use(RequestLogger(logger))
	e.GET("/api/turfs", func(c echo.Context) error {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "upstream_timeout"})
	})

	req := httptest.NewRequest(http.MethodGet, "/api/turfs", http.NoBody)
	e.ServeHTTP(httptest.NewRecorder(), req)

	if !strings.Contains(buf.String(), "level=WARN") {
		t.Errorf("expected warn level for 500, got: %s", buf.String())
	}
}
