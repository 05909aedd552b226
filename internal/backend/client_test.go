package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", WithUserAgent("test-agent"))
}

func TestGameData_DecodesStringAndNumberFields(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/game-data" || r.Method != http.MethodGet {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("user agent = %q", r.Header.Get("User-Agent"))
		}
		_, _ = w.Write([]byte(`{"duckPrice":"2220000000000000","zapperPrice":198400000000000,
			"huntingSeason":true,"ducksMinted":120,"ducksRekt":20,"zappersMinted":300,
			"zappersBurned":50,"ducksMintEndTimestamp":"1735689600","winner":null,"lastUpdate":1}`))
	})

	g, err := c.GameData(context.Background())
	if err != nil {
		t.Fatalf("GameData: %v", err)
	}
	if g.DuckPrice != "2220000000000000" || g.ZapperPrice != "198400000000000" {
		t.Fatalf("prices = %q / %q", g.DuckPrice, g.ZapperPrice)
	}
	if g.DucksMintEndTimestamp != 1735689600 || !g.HuntingSeason || g.LiveDucks() != 100 {
		t.Fatalf("unexpected game data: %+v", g)
	}
	if g.Winner != "0x0000000000000000000000000000000000000000" || g.IsGameOver() {
		t.Fatalf("null winner should map to zero address, got %q", g.Winner)
	}
}

func TestUserBalances_AndInvalidate(t *testing.T) {
	var invalidated bool
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/user/0xabc/balances":
			_, _ = w.Write([]byte(`{"duckBalance":2,"zapperBalance":7,"zapCount":3}`))
		case r.Method == http.MethodPost && r.URL.Path == "/api/user/0xabc/invalidate-cache":
			invalidated = true
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	})

	b, err := c.UserBalances(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("UserBalances: %v", err)
	}
	if b.Address != "0xabc" || b.ZapperBalance != 7 || b.ZapCount != 3 {
		t.Fatalf("unexpected balances: %+v", b)
	}
	if err := c.InvalidateUserCache(context.Background(), "0xabc"); err != nil || !invalidated {
		t.Fatalf("InvalidateUserCache: %v (called=%v)", err, invalidated)
	}
}

func TestHoldersAndLeaderboard(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/holders":
			_, _ = w.Write([]byte(`{"holders":[{"address":"0x1","balance":4},{"address":"0x2","balance":1}]}`))
		case "/api/leaderboard":
			_, _ = w.Write([]byte(`{"topHunters":[{"address":"0x9","zapCount":12}],"topHolders":[{"address":"0x1","balance":4}]}`))
		}
	})
	h, err := c.Holders(context.Background())
	if err != nil || len(h) != 2 || h[0].Balance != 4 {
		t.Fatalf("Holders = %+v, %v", h, err)
	}
	lb, err := c.Leaderboard(context.Background())
	if err != nil || len(lb.TopHunters) != 1 || lb.TopHunters[0].ZapCount != 12 {
		t.Fatalf("Leaderboard = %+v, %v", lb, err)
	}
}

func TestStatusError(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "cache warming", http.StatusServiceUnavailable)
	})
	_, err := c.GameData(context.Background())
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %T %v", err, err)
	}
	if se.Code != http.StatusServiceUnavailable || !strings.Contains(se.Error(), "cache warming") {
		t.Fatalf("unexpected status error: %v", se)
	}
}

func TestDecodeError(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	})
	if _, err := c.Leaderboard(context.Background()); err == nil || !strings.Contains(err.Error(), "decode") {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestContextCancel(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.Holders(ctx); err == nil {
		t.Fatalf("expected error after context deadline")
	}
}

func TestRawScalar(t *testing.T) {
	cases := map[string]string{
		`"0.00222"`: "0.00222",
		`123`:       "123",
		`null`:      "",
		``:          "",
		`true`:      "",
		`" 42 "`:    "42",
	}
	for in, want := range cases {
		if got := rawScalar([]byte(in)); got != want {
			t.Fatalf("rawScalar(%s) = %q; want %q", in, got, want)
		}
	}
}
