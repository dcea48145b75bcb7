package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

var baseSecurityHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"X-XSS-Protection", "0"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Referrer-Policy", "no-referrer"},
	{"Permissions-Policy", "camera=(), microphone=(), geolocation=()"},
}

// publicPrefixes may be cached by browsers and proxies on GET. Everything
// else can carry personal data and is sent with no-store.
var publicPrefixes = []string{"/api/blog", "/uploads/"}

// SecurityHeaders sets the hardening headers on every response. HSTS is
// added only when hsts is true, which the server ties to production.
func SecurityHeaders(hsts bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			for _, kv := range baseSecurityHeaders {
				h.Set(kv[0], kv[1])
			}
			if hsts {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			if !cacheable(c.Request()) {
				h.Set("Cache-Control", "no-store")
			}
			return next(c)
		}
	}
}

func cacheable(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return false
	}
	for _, p := range publicPrefixes {
		if strings.HasPrefix(r.URL.Path, p) {
			return true
		}
	}
	return false
}
