package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestRateLimiter_BurstThen429(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(0.001, 2, nil)
	r := gin.New()
	r.Use(RequestID(), rl.Handler())
	r.GET("/game", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 3)
	for i := range codes {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/game", nil))
		codes[i] = w.Code
		if i == 2 && w.Header().Get("Retry-After") != "1" {
			t.Errorf("Retry-After = %q", w.Header().Get("Retry-After"))
		}
	}
	if codes[0] != 200 || codes[1] != 200 || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v", codes)
	}
}

func TestRateLimiter_ExemptRoutesAndReplays(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(0.001, 1, nil).Exempt("/events")
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if c.GetHeader("X-Replay") != "" {
			c.Set(ctxKeyRateBypass, true)
		}
		c.Next()
	}, rl.Handler())
	r.GET("/events", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/game", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("exempt route limited on call %d", i)
		}
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/game", nil))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/game", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second call = %d, want 429", w.Code)
	}

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/game", nil)
	req.Header.Set("X-Replay", "1")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("replay = %d, want 200", w.Code)
	}
}

func TestKeyByAddressOrIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = "10.1.2.3:5555"

	key := KeyByAddressOrIP()
	if got := key(c); got != "ip:10.1.2.3" {
		t.Fatalf("ip key = %q", got)
	}
	c.Set(ctxKeyAddress, "0xabc")
	if got := key(c); got != "addr:0xabc" {
		t.Fatalf("address key = %q", got)
	}
}

func TestRateLimiter_SweepsIdleBuckets(t *testing.T) {
	rl := NewRateLimiter(1, 1, nil)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	rl.gcEvery = 2

	rl.limiter("a")
	now = now.Add(11 * time.Minute)
	rl.limiter("b")

	if rl.Len() != 1 {
		t.Fatalf("Len = %d, want 1 after sweep", rl.Len())
	}
}
