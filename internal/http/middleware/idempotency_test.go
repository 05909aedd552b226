package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func idemRouter(lookup IdempotencyLookup, addr string, handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), WalletAddress(func() string { return addr }))
	r.Use(IdempotencyValidator(IdempotencyOptions{}, lookup))
	r.POST("/lanes/:lane/submit", handler)
	return r
}

func TestIdempotencyValidator_NoHeaderSkipsLookup(t *testing.T) {
	called := false
	lookup := func(context.Context, string, string, string, time.Time) (string, bool, error) {
		called = true
		return "", false, nil
	}
	r := idemRouter(lookup, "", func(c *gin.Context) {
		if _, ok := GetIdempotencyKey(c); ok {
			t.Error("key should be absent")
		}
		if _, ok := ReplayedAttempt(c); ok {
			t.Error("not a replay")
		}
		c.Status(http.StatusAccepted)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/lanes/shoot/submit", nil))
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d", w.Code)
	}
	if called {
		t.Fatal("lookup should not run without a header")
	}
}

func TestIdempotencyValidator_RejectsBadKeys(t *testing.T) {
	r := idemRouter(nil, "", func(c *gin.Context) { c.Status(http.StatusAccepted) })

	for _, key := range []string{"has space", "semi;colon", strings.Repeat("k", 201)} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/lanes/shoot/submit", nil)
		req.Header.Set(HeaderIdempotencyKey, key)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("key %.20q: status = %d, want 400", key, w.Code)
		}
		if !strings.Contains(w.Body.String(), "bad_idempotency_key") {
			t.Errorf("body = %s", w.Body.String())
		}
	}
}

func TestIdempotencyValidator_ReplayCarriesAttemptAndLane(t *testing.T) {
	var gotAddr, gotLane, gotKey string
	lookup := func(_ context.Context, addr, lane, key string, now time.Time) (string, bool, error) {
		gotAddr, gotLane, gotKey = addr, lane, key
		if now.Location() != time.UTC {
			t.Errorf("now should be UTC")
		}
		return "attempt-1", true, nil
	}
	r := idemRouter(lookup, " 0xABCdef0000000000000000000000000000000001 ", func(c *gin.Context) {
		id, ok := ReplayedAttempt(c)
		if !ok || id != "attempt-1" {
			t.Errorf("replay = %q %v", id, ok)
		}
		if !IsRateBypass(c) {
			t.Error("replay should bypass the rate limiter")
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/lanes/mint_ducks/submit", nil)
	req.Header.Set(HeaderIdempotencyKey, "k-1")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if gotAddr != "0xabcdef0000000000000000000000000000000001" || gotLane != "mint_ducks" || gotKey != "k-1" {
		t.Fatalf("lookup args = %q %q %q", gotAddr, gotLane, gotKey)
	}
}

func TestIdempotencyValidator_LookupErrorIsAMiss(t *testing.T) {
	lookup := func(context.Context, string, string, string, time.Time) (string, bool, error) {
		return "x", true, errors.New("db down")
	}
	r := idemRouter(lookup, "", func(c *gin.Context) {
		if _, ok := ReplayedAttempt(c); ok {
			t.Error("errored lookup must not mark a replay")
		}
		if k, _ := GetIdempotencyKey(c); k != "k-2" {
			t.Errorf("key = %q", k)
		}
		c.Status(http.StatusAccepted)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/lanes/shoot/submit", nil)
	req.Header.Set(HeaderIdempotencyKey, "k-2")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestWalletAddress_EmptyLeavesContextUnset(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(WalletAddress(func() string { return "  " }))
	r.GET("/", func(c *gin.Context) {
		if a := AddressFrom(c); a != "" {
			t.Errorf("address = %q", a)
		}
		c.Status(http.StatusNoContent)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}
