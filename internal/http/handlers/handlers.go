package handlers

import (
	"context"
	"time"

	"github.com/tbourn/punkhunt/internal/cache"
	"github.com/tbourn/punkhunt/internal/config"
	"github.com/tbourn/punkhunt/internal/domain"
	"github.com/tbourn/punkhunt/internal/events"
	"github.com/tbourn/punkhunt/internal/search"
)

//
// Service contracts
//

// GameReader exposes the shared game-data snapshot.
type GameReader interface {
	Snapshot() cache.GameSnapshot
}

// HoldersReader serves the holders and leaderboard panels.
type HoldersReader interface {
	Holders(ctx context.Context) ([]domain.Holder, error)
	Leaderboard(ctx context.Context) (domain.Leaderboard, error)
}

// BalanceStore is the shared balance cache of one address.
type BalanceStore interface {
	Snapshot() cache.UserSnapshot
	Refresh(ctx context.Context) (cache.UserSnapshot, error)
	Invalidate(ctx context.Context) error
}

// LaneService drives the three transaction lanes of the connected wallet.
type LaneService interface {
	Address() string
	Submit(ctx context.Context, lane domain.Lane, amount int64) (domain.TransactionAttempt, error)
	Snapshot(lane domain.Lane) (domain.TransactionAttempt, error)
	Reset(lane domain.Lane) (domain.TransactionAttempt, error)
	Snapshots() []domain.TransactionAttempt
}

// IdempotencyStore remembers which attempt an Idempotency-Key started.
type IdempotencyStore interface {
	Get(ctx context.Context, address, lane, key string, now time.Time) (*domain.Idempotency, error)
	Create(ctx context.Context, address, lane, key string, seq uint64, status int) (*domain.Idempotency, error)
	SetAttemptID(ctx context.Context, id, attemptID string) error
}

// Notifications is the outcome notification queue.
type Notifications interface {
	List() []domain.Notification
	Dismiss(id string) bool
}

// EventSource feeds the server-sent event stream.
type EventSource interface {
	Subscribe(topics ...events.Topic) (<-chan events.Event, func())
}

// ChatService relays the trollbox.
type ChatService interface {
	History(limit int) []domain.ChatMessage
	Send(ctx context.Context, address, text string) (domain.ChatMessage, error)
	Closed() bool
}

// History reads the reconciliation record.
type History interface {
	LaneStats(ctx context.Context, lane domain.Lane) (int64, *time.Time, error)
	Recent(ctx context.Context, limit int) ([]domain.ProcessedTransaction, error)
}

// SoundPreference is the persisted sound toggle.
type SoundPreference interface {
	Enabled() bool
	SetEnabled(ctx context.Context, on bool) error
}

//
// Handler wiring
//

// Deps carries everything the handlers call. Nil members make their
// endpoints answer 503.
type Deps struct {
	Game          GameReader
	Holders       HoldersReader
	Balances      func(address string) BalanceStore
	Lanes         LaneService
	Idempotency   IdempotencyStore
	Notifications Notifications
	History       History
	Events        EventSource
	Chat          ChatService
	Sound         SoundPreference
	Help          search.Index
	HelpThreshold float64 // results scoring below are dropped
	Manifest      config.ManifestConfig

	// Heartbeat is the keep-alive interval of the event stream (default 15s).
	Heartbeat time.Duration
	// Now is the clock used for projections (default time.Now).
	Now func() time.Time
}

// Handlers groups the view API endpoints.
type Handlers struct {
	d Deps
}

// New constructs Handlers bound to d.
func New(d Deps) *Handlers {
	if d.Heartbeat <= 0 {
		d.Heartbeat = 15 * time.Second
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Handlers{d: d}
}
