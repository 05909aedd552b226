package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SecurityOptions configures SecurityHeaders.
type SecurityOptions struct {
	// EnableHSTS emits Strict-Transport-Security on HTTPS requests only.
	EnableHSTS bool
	// HSTSMaxAge defaults to 180 days.
	HSTSMaxAge time.Duration
	// NoStore disables caching of every response.
	NoStore bool
	// FrameAncestors, when set, replaces X-Frame-Options: DENY with a CSP
	// frame-ancestors list so the mini app can be embedded by its host.
	FrameAncestors []string
}

// SecurityHeaders attaches hardening headers and exposes X-Request-ID to
// browser clients.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := int64(opt.HSTSMaxAge / time.Second)
	if maxAge <= 0 {
		maxAge = int64(180 * 24 * time.Hour / time.Second)
	}
	hsts := "max-age=" + strconv.FormatInt(maxAge, 10) + "; includeSubDomains"
	ancestors := strings.Join(opt.FrameAncestors, " ")

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "no-referrer")
		if ancestors != "" {
			h.Set("Content-Security-Policy", "frame-ancestors "+ancestors)
		} else {
			h.Set("X-Frame-Options", "DENY")
		}
		if opt.NoStore {
			h.Set("Cache-Control", "no-store")
		}
		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}

		const expose = "Access-Control-Expose-Headers"
		switch cur := h.Get(expose); {
		case cur == "":
			h.Set(expose, requestIDHeader)
		case !strings.Contains(cur, requestIDHeader):
			h.Set(expose, cur+", "+requestIDHeader)
		}

		c.Next()
	}
}

func isHTTPS(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
