// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements an in-memory token-bucket rate limiter keyed by wallet
// address or client IP, built on golang.org/x/time/rate. Idle buckets are
// evicted opportunistically. Long-lived routes such as the event stream can
// be exempted, and idempotent replays bypass the limiter.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// KeyFunc maps a request to its bucket.
type KeyFunc func(*gin.Context) string

// KeyByAddressOrIP buckets by wallet address when one is connected, else by
// client IP.
func KeyByAddressOrIP() KeyFunc {
	return func(c *gin.Context) string {
		if a := AddressFrom(c); a != "" {
			return "addr:" + a
		}
		return "ip:" + c.ClientIP()
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter holds one token bucket per key. It is safe for concurrent use.
type RateLimiter struct {
	rps    rate.Limit
	burst  int
	keyFn  KeyFunc
	exempt map[string]struct{}

	mu       sync.Mutex
	visitors map[string]*visitor
	ttl      time.Duration
	lookups  uint64
	gcEvery  uint64
	now      func() time.Time
}

// NewRateLimiter creates a limiter allowing rps tokens per second with the
// given burst (coerced to at least 1).
func NewRateLimiter(rps float64, burst int, keyFn KeyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if keyFn == nil {
		keyFn = KeyByAddressOrIP()
	}
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		keyFn:    keyFn,
		exempt:   map[string]struct{}{},
		visitors: make(map[string]*visitor),
		ttl:      10 * time.Minute,
		gcEvery:  5000,
		now:      time.Now,
	}
}

// Exempt skips limiting for the given route patterns (as reported by
// gin.Context.FullPath).
func (rl *RateLimiter) Exempt(routes ...string) *RateLimiter {
	for _, r := range routes {
		rl.exempt[r] = struct{}{}
	}
	return rl
}

// limiter returns the bucket for key. Idle buckets are swept first so a stale
// entry is replaced rather than refreshed.
func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.lookups++
	if rl.lookups >= rl.gcEvery {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.lookups = 0
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}

// Len returns the number of live buckets.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

// IsRateBypass reports whether IdempotencyValidator marked the request as a
// replay.
func IsRateBypass(c *gin.Context) bool {
	return c.GetBool(ctxKeyRateBypass)
}

// Handler enforces the limits, answering 429 with Retry-After when a bucket
// is empty.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, skip := rl.exempt[c.FullPath()]; skip || IsRateBypass(c) {
			c.Next()
			return
		}
		if rl.limiter(rl.keyFn(c)).Allow() {
			c.Next()
			return
		}
		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get(requestIDHeader),
			"code":       "too_many_requests",
			"message":    "rate limit exceeded",
		})
	}
}
