// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements Idempotency-Key support for lane submissions. The
// validator checks the header, stashes the key, and asks a lookup whether the
// same (address, lane, key) already started an attempt. On a hit the original
// attempt id is stored in the context so the handler can answer the retry
// without starting a second transaction, and the rate limiter lets it through.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the request header carrying the client's key.
const HeaderIdempotencyKey = "Idempotency-Key"

// Gin context keys.
const (
	ctxKeyIdemKey     = "idem.key"
	ctxKeyIdemAttempt = "idem.attempt"
	ctxKeyRateBypass  = "rate.bypass"
	ctxKeyAddress     = "address"
)

var defaultKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// GetIdempotencyKey returns the validated key, if any.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	s := c.GetString(ctxKeyIdemKey)
	return s, s != ""
}

// ReplayedAttempt returns the attempt id a previous request with the same key
// started. ok is false when this request is not a replay.
func ReplayedAttempt(c *gin.Context) (id string, ok bool) {
	v, exists := c.Get(ctxKeyIdemAttempt)
	if !exists {
		return "", false
	}
	id, ok = v.(string)
	return id, ok
}

// IdempotencyOptions configures IdempotencyValidator.
type IdempotencyOptions struct {
	// MaxLen caps the key length. Values <= 0 default to 200.
	MaxLen int
	// Pattern restricts allowed characters; nil means ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
	// Now is the clock used for TTL checks; nil means time.Now.
	Now func() time.Time
}

// IdempotencyLookup reports the attempt previously started for (address,
// lane, key), if it is still within its TTL. Errors are treated as a miss.
type IdempotencyLookup func(ctx context.Context, address, lane, key string, now time.Time) (attemptID string, found bool, err error)

// IdempotencyValidator validates the header on requests that carry it and
// marks replays. Requests without the header pass through untouched.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultKeyPattern
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)

		if lookup != nil {
			id, found, err := lookup(c.Request.Context(), AddressFrom(c), c.Param("lane"), key, now().UTC())
			if err == nil && found {
				c.Set(ctxKeyIdemAttempt, id)
				c.Set(ctxKeyRateBypass, true)
			}
		}
		c.Next()
	}
}

// WalletAddress stores the connected wallet address in the context. The
// address function is evaluated per request so a late wallet connection is
// picked up.
func WalletAddress(address func() string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if address != nil {
			if a := strings.ToLower(strings.TrimSpace(address())); a != "" {
				c.Set(ctxKeyAddress, a)
			}
		}
		c.Next()
	}
}

// AddressFrom returns the wallet address set by WalletAddress, or "".
func AddressFrom(c *gin.Context) string {
	return c.GetString(ctxKeyAddress)
}
