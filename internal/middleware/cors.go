package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"bookmyturf-proxy/internal/config"
)

var corsAllowMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodDelete,
	http.MethodPatch,
	http.MethodOptions,
}

var corsAllowHeaders = []string{
	echo.HeaderContentType,
	echo.HeaderAuthorization,
	echo.HeaderAccept,
	echo.HeaderOrigin,
	echo.HeaderCookie,
}

// CORS returns a credentialed CORS middleware restricted to the configured
// origins. Preflight requests are answered locally and never reach the upstream.
func CORS(cfg config.CORSConfig) echo.MiddlewareFunc {
	return echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     corsAllowMethods,
		AllowHeaders:     corsAllowHeaders,
		AllowCredentials: true,
		MaxAge:           cfg.MaxAgeSeconds,
	})
}
