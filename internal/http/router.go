// Package httpapi wires the HTTP transport (Gin) to the companion's
// services, middleware, and route handlers. It centralizes cross-cutting
// concerns such as tracing, correlation IDs, logging/redaction, panic
// recovery, metrics, CORS, security headers, idempotency, and rate limiting.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/punkhunt/internal/config"
	"github.com/tbourn/punkhunt/internal/domain"
	"github.com/tbourn/punkhunt/internal/http/handlers"
	"github.com/tbourn/punkhunt/internal/http/middleware"
	"github.com/tbourn/punkhunt/internal/repo"
)

// maxBodyBytes caps every request body.
const maxBodyBytes = 1 << 20

// IdempotencyStore adapts the repo helpers to handlers.IdempotencyStore.
type IdempotencyStore struct {
	DB  *gorm.DB
	TTL time.Duration
}

// NewIdempotencyStore returns a store whose records live for ttl.
func NewIdempotencyStore(db *gorm.DB, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &IdempotencyStore{DB: db, TTL: ttl}
}

// Get proxies repo.GetIdempotency.
func (s *IdempotencyStore) Get(ctx context.Context, address, lane, key string, now time.Time) (*domain.Idempotency, error) {
	return repo.GetIdempotency(ctx, s.DB, address, lane, key, now)
}

// Create proxies repo.CreateIdempotency with the store TTL.
func (s *IdempotencyStore) Create(ctx context.Context, address, lane, key string, seq uint64, status int) (*domain.Idempotency, error) {
	return repo.CreateIdempotency(ctx, s.DB, address, lane, key, seq, status, s.TTL)
}

// SetAttemptID proxies repo.SetIdempotencyAttemptID.
func (s *IdempotencyStore) SetAttemptID(ctx context.Context, id, attemptID string) error {
	return repo.SetIdempotencyAttemptID(ctx, s.DB, id, attemptID)
}

// Lookup is the middleware view of the store. The lane comes straight from
// the path, so aliases are resolved before the query; unknown lanes are a
// miss and the handler answers 404.
func (s *IdempotencyStore) Lookup(ctx context.Context, address, lane, key string, now time.Time) (string, bool, error) {
	l, err := domain.ParseLane(lane)
	if err != nil {
		return "", false, nil
	}
	rec, err := s.Get(ctx, address, string(l), key, now)
	if errors.Is(err, repo.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return rec.ID, true, nil
}

var _ handlers.IdempotencyStore = (*IdempotencyStore)(nil)

// HistoryStore serves the reconciliation record from the database.
type HistoryStore struct {
	DB *gorm.DB
}

// LaneStats proxies repo.LaneStats.
func (s HistoryStore) LaneStats(ctx context.Context, lane domain.Lane) (int64, *time.Time, error) {
	return repo.LaneStats(ctx, s.DB, string(lane))
}

// Recent proxies repo.RecentProcessed.
func (s HistoryStore) Recent(ctx context.Context, limit int) ([]domain.ProcessedTransaction, error) {
	return repo.RecentProcessed(ctx, s.DB, limit)
}

var _ handlers.History = HistoryStore{}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and mounts the API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry
//  2. RequestID, then the connected wallet address
//  3. Access log with redaction, then panic recovery
//  4. Body size limit and metrics
//  5. Idempotency validator (before the rate limiter so replays bypass it)
//  6. Rate limiter per wallet or IP
//  7. gzip, CORS, and security headers
func RegisterRoutes(r *gin.Engine, d handlers.Deps, store *IdempotencyStore, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	base := strings.TrimRight(cfg.APIBasePath, "/")
	stream := base + "/events"

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	if d.Lanes != nil {
		r.Use(middleware.WalletAddress(d.Lanes.Address))
	}
	r.Use(middleware.AccessLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-Wallet-Key"},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))

	r.Use(middleware.Metrics(stream))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	var lookup middleware.IdempotencyLookup
	if store != nil {
		lookup = store.Lookup
		d.Idempotency = store
	}
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}, lookup))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByAddressOrIP()).
		Exempt(stream, "/health", "/metrics")
	r.Use(rl.Handler())

	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{stream})))

	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", "Last-Event-ID", middleware.HeaderIdempotencyKey}
	exposeHeaders := []string{"X-Request-ID", "Content-Length", "Idempotent-Replay", "Retry-After"}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even without an Origin header (health checks, embeds).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	} else {
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, found := allowed[origin]; found {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:     cfg.Security.EnableHSTS,
		HSTSMaxAge:     cfg.Security.HSTSMaxAge,
		FrameAncestors: cfg.Security.FrameAncestors,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if d.Manifest.URL == "" {
		d.Manifest = cfg.Manifest
	}
	if d.HelpThreshold == 0 {
		d.HelpThreshold = cfg.HelpThreshold
	}
	h := handlers.New(d)

	r.GET("/.well-known/farcaster.json", h.GetManifest)

	api := groupWithPrefix(r, base)
	{
		// Game data
		api.GET("/game", h.GetGame)
		api.GET("/holders", h.GetHolders)
		api.GET("/leaderboard", h.GetLeaderboard)
		api.GET("/users/:address/balances", h.GetBalances)
		api.POST("/users/:address/invalidate", h.InvalidateBalances)

		// Lanes
		api.GET("/lanes", h.ListLanes)
		api.GET("/lanes/:lane", h.GetLane)
		api.POST("/lanes/:lane/submit", h.SubmitLane)
		api.POST("/lanes/:lane/reset", h.ResetLane)
		api.GET("/history", h.GetHistory)

		// Notifications and the event stream
		api.GET("/notifications", h.ListNotifications)
		api.DELETE("/notifications/:id", h.DismissNotification)
		api.GET("/events", h.Events)

		// Trollbox
		api.GET("/chat", h.GetChat)
		api.POST("/chat", h.SendChat)

		// Preferences and help
		api.GET("/preferences/sound", h.GetSound)
		api.PUT("/preferences/sound", h.PutSound)
		api.GET("/help", h.SearchHelp)
	}
}

// limitBody caps the request body at maxBytes; larger bodies fail on read.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
