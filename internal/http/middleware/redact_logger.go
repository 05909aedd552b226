package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// RedactOptions configures AccessLogger.
type RedactOptions struct {
	// MaskHeaders are extra header names (case-insensitive) whose values are
	// replaced with "[REDACTED]". Authorization, Cookie and Set-Cookie are
	// always masked.
	MaskHeaders []string
	// LogHeaders includes scrubbed request headers in the access log.
	LogHeaders bool
}

var (
	// A 32-byte hex secret. Matched before addresses, which are a prefix.
	privKeyRE = regexp.MustCompile(`(?i)\b(?:0x)?[0-9a-f]{64}\b`)
	addressRE = regexp.MustCompile(`(?i)\b0x[0-9a-f]{40}\b`)
	emailRE   = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
)

// Redact scrubs secrets and identifiers from s. Private keys and transaction
// hashes are masked; wallet addresses keep their first 6 and last 4 chars.
func Redact(s string) string {
	if s == "" {
		return s
	}
	s = privKeyRE.ReplaceAllString(s, "[REDACTED:hex]")
	s = addressRE.ReplaceAllStringFunc(s, func(a string) string {
		return a[:6] + "…" + a[len(a)-4:]
	})
	return emailRE.ReplaceAllString(s, "[REDACTED:email]")
}

// AccessLogger installs a request-scoped logger carrying the request ID,
// route and wallet address, then emits one scrubbed access log line per
// request. Bodies are never logged. Level follows the outcome: error for 5xx
// or gin errors, warn for 4xx, info otherwise.
func AccessLogger(opts RedactOptions) gin.HandlerFunc {
	mask := map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			mask[h] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		lc := log.With().
			Str("request_id", RequestIDFrom(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("remote_ip", c.ClientIP())
		if a := AddressFrom(c); a != "" {
			lc = lc.Str("address", Redact(a))
		}
		if lane := c.Param("lane"); lane != "" {
			lc = lc.Str("lane", lane)
		}
		l := lc.Logger()
		c.Set(loggerKey, &l)

		query := Redact(truncate(c.Request.URL.RawQuery, maxQueryLogLength))
		var headers map[string]string
		if opts.LogHeaders {
			headers = make(map[string]string, len(c.Request.Header))
			for k, vv := range c.Request.Header {
				if _, ok := mask[strings.ToLower(k)]; ok {
					headers[k] = "[REDACTED]"
					continue
				}
				headers[k] = Redact(strings.Join(vv, ", "))
			}
		}

		c.Next()

		status := c.Writer.Status()
		ev := l.Info()
		switch {
		case len(c.Errors) > 0 || status >= 500:
			ev = l.Error()
			if len(c.Errors) > 0 {
				ev = ev.Str("errors", Redact(c.Errors.String()))
			}
		case status >= 400:
			ev = l.Warn()
		}
		if headers != nil {
			ev = ev.Interface("headers", headers)
		}
		ev.Str("query", query).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Msg("http_request")
	}
}
