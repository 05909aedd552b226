// Package backend is the HTTP client for the game's cache and leaderboard
// API. The backend is read-mostly: every call is a short JSON request with
// its own timeout, and errors surface as *StatusError or wrapped transport
// errors.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tbourn/punkhunt/internal/domain"
)

// Default per-call timeouts.
const (
	GameDataTimeout = 10 * time.Second
	UserTimeout     = 8 * time.Second
	DefaultTimeout  = 10 * time.Second
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Client talks to the backend API at baseURL.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// NewClient creates a client for baseURL (e.g. https://punkhunt.gg).
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		userAgent:  "punkhunt-companion",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GameData fetches GET /api/game-data.
func (c *Client) GameData(ctx context.Context) (domain.GameData, error) {
	var raw gameDataWire
	if err := c.do(ctx, GameDataTimeout, http.MethodGet, "/api/game-data", &raw); err != nil {
		return domain.GameData{}, err
	}
	return raw.toDomain(), nil
}

// UserBalances fetches GET /api/user/{address}/balances.
func (c *Client) UserBalances(ctx context.Context, address string) (domain.UserBalances, error) {
	var out domain.UserBalances
	path := "/api/user/" + url.PathEscape(address) + "/balances"
	if err := c.do(ctx, UserTimeout, http.MethodGet, path, &out); err != nil {
		return domain.UserBalances{}, err
	}
	out.Address = address
	return out, nil
}

// InvalidateUserCache asks the backend to drop its cached balances for
// address. The response body is ignored.
func (c *Client) InvalidateUserCache(ctx context.Context, address string) error {
	path := "/api/user/" + url.PathEscape(address) + "/invalidate-cache"
	return c.do(ctx, UserTimeout, http.MethodPost, path, nil)
}

// Holders fetches GET /api/holders.
func (c *Client) Holders(ctx context.Context) ([]domain.Holder, error) {
	var out struct {
		Holders []domain.Holder `json:"holders"`
	}
	if err := c.do(ctx, DefaultTimeout, http.MethodGet, "/api/holders", &out); err != nil {
		return nil, err
	}
	return out.Holders, nil
}

// Leaderboard fetches GET /api/leaderboard.
func (c *Client) Leaderboard(ctx context.Context) (domain.Leaderboard, error) {
	var out domain.Leaderboard
	if err := c.do(ctx, DefaultTimeout, http.MethodGet, "/api/leaderboard", &out); err != nil {
		return domain.Leaderboard{}, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, timeout time.Duration, method, path string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if method == http.MethodPost {
		body = bytes.NewReader([]byte("{}"))
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode: %w", method, path, err)
	}
	return nil
}

// gameDataWire tolerates prices and timestamps sent as either JSON numbers
// or strings.
type gameDataWire struct {
	DuckPrice             json.RawMessage `json:"duckPrice"`
	ZapperPrice           json.RawMessage `json:"zapperPrice"`
	HuntingSeason         bool            `json:"huntingSeason"`
	GameStarted           bool            `json:"gameStarted"`
	DucksMinted           int64           `json:"ducksMinted"`
	DucksRekt             int64           `json:"ducksRekt"`
	ZappersMinted         int64           `json:"zappersMinted"`
	ZappersBurned         int64           `json:"zappersBurned"`
	DucksMintEndTimestamp json.RawMessage `json:"ducksMintEndTimestamp"`
	Winner                string          `json:"winner"`
	SecondPlace           string          `json:"secondPlace"`
	ThirdPlace            string          `json:"thirdPlace"`
	TopShooter            string          `json:"topShooter"`
	LastUpdate            int64           `json:"lastUpdate"`
}

func (w gameDataWire) toDomain() domain.GameData {
	g := domain.GameData{
		DuckPrice:     rawScalar(w.DuckPrice),
		ZapperPrice:   rawScalar(w.ZapperPrice),
		HuntingSeason: w.HuntingSeason,
		GameStarted:   w.GameStarted,
		DucksMinted:   w.DucksMinted,
		DucksRekt:     w.DucksRekt,
		ZappersMinted: w.ZappersMinted,
		ZappersBurned: w.ZappersBurned,
		Winner:        orZero(w.Winner),
		SecondPlace:   orZero(w.SecondPlace),
		ThirdPlace:    orZero(w.ThirdPlace),
		TopShooter:    orZero(w.TopShooter),
		LastUpdate:    w.LastUpdate,
	}
	if n, err := json.Number(rawScalar(w.DucksMintEndTimestamp)).Int64(); err == nil {
		g.DucksMintEndTimestamp = n
	}
	return g
}

// rawScalar returns the textual value of a JSON string or number, or "" for
// null and anything else.
func rawScalar(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	if strings.HasPrefix(s, `"`) {
		var out string
		if err := json.Unmarshal(raw, &out); err != nil {
			return ""
		}
		return strings.TrimSpace(out)
	}
	if s[0] == '-' || (s[0] >= '0' && s[0] <= '9') {
		return s
	}
	return ""
}

func orZero(addr string) string {
	if strings.TrimSpace(addr) == "" {
		return domain.ZeroAddress
	}
	return addr
}
