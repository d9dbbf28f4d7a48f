package middleware

import (
	"github.com/labstack/echo/v4"
)

// defaultSecurityHeaders is applied to every response. Queue payloads carry
// patient names and phone numbers, so nothing is cached.
var defaultSecurityHeaders = map[string]string{
	"X-Content-Type-Options":    "nosniff",
	"X-Frame-Options":           "DENY",
	"X-XSS-Protection":          "0",
	"Content-Security-Policy":   "default-src 'none'; frame-ancestors 'none'",
	"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
	"Referrer-Policy":           "no-referrer",
	"Permissions-Policy":        "camera=(), microphone=(), geolocation=()",
	"Cache-Control":             "no-store",
}

// SecurityHeaders sets defaultSecurityHeaders. HSTS is skipped in development
// where the API is served over plain HTTP.
func SecurityHeaders(dev bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			for k, v := range defaultSecurityHeaders {
				if dev && k == "Strict-Transport-Security" {
					continue
				}
				h.Set(k, v)
			}
			return next(c)
		}
	}
}
