// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes settings for the
// companion HTTP server, logging, persistence, the game backend and chain
// endpoints, transaction display windows, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS     bool
	HSTSMaxAge     time.Duration
	FrameAncestors []string // FRAME_ANCESTORS (csv); empty denies framing
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "punkhunt")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// GameConfig points at the external collaborators: the backend cache API,
// its Socket.IO channel, the chain RPC, and the game contract.
type GameConfig struct {
	BackendURL      string // PUNKHUNT_BACKEND_URL
	SocketURL       string // PUNKHUNT_SOCKET_URL (defaults to BackendURL)
	RPCURL          string // PUNKHUNT_RPC_URL
	ChainID         int64  // PUNKHUNT_CHAIN_ID (Base mainnet = 8453)
	ContractAddress string // PUNKHUNT_CONTRACT
	ExplorerTxURL   string // PUNKHUNT_EXPLORER_TX_URL, "%s" replaced by hash

	// WalletKey is a hex secp256k1 key. Empty means read-only mode.
	WalletKey string // PUNKHUNT_WALLET_KEY
	// WalletAddress is used for balance reads when no key is configured.
	WalletAddress string // PUNKHUNT_WALLET_ADDRESS
}

// TimingConfig holds polling intervals and the display windows of the
// transaction lifecycle and notification queue.
type TimingConfig struct {
	GamePoll            time.Duration // PUNKHUNT_GAME_POLL
	UserPoll            time.Duration // PUNKHUNT_USER_POLL
	ActiveGamePoll      time.Duration // PUNKHUNT_ACTIVE_GAME_POLL
	ActiveUserPoll      time.Duration // PUNKHUNT_ACTIVE_USER_POLL
	BalanceCacheTTL     time.Duration // PUNKHUNT_BALANCE_CACHE_TTL
	ConfirmedWindow     time.Duration // PUNKHUNT_CONFIRMED_WINDOW
	FailedWindow        time.Duration // PUNKHUNT_FAILED_WINDOW
	BalanceRefreshDelay time.Duration // PUNKHUNT_BALANCE_REFRESH_DELAY
	NotificationExpiry  time.Duration // PUNKHUNT_NOTIFICATION_EXPIRY
	NotificationStagger time.Duration // PUNKHUNT_NOTIFICATION_STAGGER
	NotificationMax     int           // PUNKHUNT_NOTIFICATION_MAX
	ReceiptTimeout      time.Duration // PUNKHUNT_RECEIPT_TIMEOUT
}

// ManifestConfig feeds the /.well-known/farcaster.json mini-app manifest.
type ManifestConfig struct {
	URL              string   // PUNKHUNT_PUBLIC_URL
	Name             string   // PUNKHUNT_APP_NAME
	IconURL          string   // PUNKHUNT_ICON_URL
	SplashImageURL   string   // PUNKHUNT_SPLASH_IMAGE_URL
	SplashBackground string   // PUNKHUNT_SPLASH_BACKGROUND
	Subtitle         string   // PUNKHUNT_SUBTITLE
	Description      string   // PUNKHUNT_DESCRIPTION
	Category         string   // PUNKHUNT_CATEGORY
	Screenshots      []string // PUNKHUNT_SCREENSHOT_URLS (csv)
	Tags             []string // PUNKHUNT_TAGS (csv)
	Header           string   // FARCASTER_HEADER
	Payload          string   // FARCASTER_PAYLOAD
	Signature        string   // FARCASTER_SIGNATURE
	AllowedAddress   string   // BASE_BUILDER_ALLOWED_ADDRESS
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // 0 keeps SSE streams open
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel    string // debug|info|warn|error|fatal|panic
	LogPretty   bool   // pretty console logs in dev
	APIBasePath string // base path for API routes

	// App
	DBPath        string  // SQLite path
	HelpThreshold float64 // minimum help search score [0,1]

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	Game     GameConfig
	Timing   TimingConfig
	Manifest ManifestConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	backend := strings.TrimRight(getenv("PUNKHUNT_BACKEND_URL", "https://punkhunt.gg"), "/")
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 0),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:   getbool("LOG_PRETTY", false),
		APIBasePath: normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath:        getenv("DB_PATH", "punkhunt.db"),
		HelpThreshold: getfloat("HELP_THRESHOLD", 0.05),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
			FrameAncestors: splitCSV(getenv("FRAME_ANCESTORS", "")),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 10*time.Minute),

		Game: GameConfig{
			BackendURL:      backend,
			SocketURL:       strings.TrimRight(getenv("PUNKHUNT_SOCKET_URL", backend), "/"),
			RPCURL:          getenv("PUNKHUNT_RPC_URL", "https://mainnet.base.org"),
			ChainID:         int64(getint("PUNKHUNT_CHAIN_ID", 8453)),
			ContractAddress: getenv("PUNKHUNT_CONTRACT", "0x85244A9D4A539C42dD71d0c5EcE83B9139EEd0C8"),
			ExplorerTxURL:   getenv("PUNKHUNT_EXPLORER_TX_URL", "https://basescan.org/tx/%s"),
			WalletKey:       strings.TrimPrefix(getenv("PUNKHUNT_WALLET_KEY", ""), "0x"),
			WalletAddress:   getenv("PUNKHUNT_WALLET_ADDRESS", ""),
		},

		Timing: TimingConfig{
			GamePoll:            getdur("PUNKHUNT_GAME_POLL", 15*time.Second),
			UserPoll:            getdur("PUNKHUNT_USER_POLL", 45*time.Second),
			ActiveGamePoll:      getdur("PUNKHUNT_ACTIVE_GAME_POLL", 5*time.Second),
			ActiveUserPoll:      getdur("PUNKHUNT_ACTIVE_USER_POLL", 10*time.Second),
			BalanceCacheTTL:     getdur("PUNKHUNT_BALANCE_CACHE_TTL", 30*time.Second),
			ConfirmedWindow:     getdur("PUNKHUNT_CONFIRMED_WINDOW", 1500*time.Millisecond),
			FailedWindow:        getdur("PUNKHUNT_FAILED_WINDOW", 3*time.Second),
			BalanceRefreshDelay: getdur("PUNKHUNT_BALANCE_REFRESH_DELAY", 1500*time.Millisecond),
			NotificationExpiry:  getdur("PUNKHUNT_NOTIFICATION_EXPIRY", 5*time.Second),
			NotificationStagger: getdur("PUNKHUNT_NOTIFICATION_STAGGER", 200*time.Millisecond),
			NotificationMax:     getint("PUNKHUNT_NOTIFICATION_MAX", 10),
			ReceiptTimeout:      getdur("PUNKHUNT_RECEIPT_TIMEOUT", 2*time.Minute),
		},

		Manifest: ManifestConfig{
			URL:              getenv("PUNKHUNT_PUBLIC_URL", backend),
			Name:             getenv("PUNKHUNT_APP_NAME", "Punk HUNT"),
			IconURL:          getenv("PUNKHUNT_ICON_URL", ""),
			SplashImageURL:   getenv("PUNKHUNT_SPLASH_IMAGE_URL", ""),
			SplashBackground: getenv("PUNKHUNT_SPLASH_BACKGROUND", "#97E500"),
			Subtitle:         getenv("PUNKHUNT_SUBTITLE", ""),
			Description:      getenv("PUNKHUNT_DESCRIPTION", ""),
			Category:         getenv("PUNKHUNT_CATEGORY", "games"),
			Screenshots:      splitCSV(getenv("PUNKHUNT_SCREENSHOT_URLS", "")),
			Tags:             splitCSV(getenv("PUNKHUNT_TAGS", "")),
			Header:           getenv("FARCASTER_HEADER", ""),
			Payload:          getenv("FARCASTER_PAYLOAD", ""),
			Signature:        getenv("FARCASTER_SIGNATURE", ""),
			AllowedAddress:   getenv("BASE_BUILDER_ALLOWED_ADDRESS", ""),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "punkhunt"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.WriteTimeout < 0 {
		return cfg, errors.New("WRITE_TIMEOUT must be >= 0")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.HelpThreshold < 0 || cfg.HelpThreshold > 1 {
		return cfg, errors.New("HELP_THRESHOLD must be between 0 and 1")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if !strings.HasPrefix(cfg.Game.BackendURL, "http://") && !strings.HasPrefix(cfg.Game.BackendURL, "https://") {
		return cfg, errors.New("PUNKHUNT_BACKEND_URL must be an http(s) URL")
	}
	if !isHexAddress(cfg.Game.ContractAddress) {
		return cfg, errors.New("PUNKHUNT_CONTRACT must be a 0x-prefixed 20-byte hex address")
	}
	if cfg.Game.WalletAddress != "" && !isHexAddress(cfg.Game.WalletAddress) {
		return cfg, errors.New("PUNKHUNT_WALLET_ADDRESS must be a 0x-prefixed 20-byte hex address")
	}
	if cfg.Game.ChainID <= 0 {
		return cfg, errors.New("PUNKHUNT_CHAIN_ID must be > 0")
	}
	t := cfg.Timing
	if t.GamePoll <= 0 || t.UserPoll <= 0 || t.ActiveGamePoll <= 0 || t.ActiveUserPoll <= 0 {
		return cfg, errors.New("poll intervals must be positive durations")
	}
	if t.ConfirmedWindow <= 0 || t.FailedWindow <= 0 || t.NotificationExpiry <= 0 {
		return cfg, errors.New("display windows must be positive durations")
	}
	if t.NotificationStagger < 0 || t.BalanceRefreshDelay < 0 || t.BalanceCacheTTL < 0 {
		return cfg, errors.New("delays must be >= 0")
	}
	if t.NotificationMax < 1 {
		return cfg, errors.New("PUNKHUNT_NOTIFICATION_MAX must be >= 1")
	}
	if t.ReceiptTimeout <= 0 {
		return cfg, errors.New("PUNKHUNT_RECEIPT_TIMEOUT must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// isHexAddress reports whether s looks like 0x + 40 hex digits.
func isHexAddress(s string) bool {
	if len(s) != 42 || !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return false
	}
	for _, r := range s[2:] {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
