package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/tbourn/punkhunt/internal/domain"
	"github.com/tbourn/punkhunt/internal/events"
	"github.com/tbourn/punkhunt/internal/repo"
)

// UserSource fetches and invalidates per-address balances.
type UserSource interface {
	UserBalances(ctx context.Context, address string) (domain.UserBalances, error)
	InvalidateUserCache(ctx context.Context, address string) error
}

// UserSnapshot is what readers of a user store see.
type UserSnapshot struct {
	Balances  domain.UserBalances `json:"balances"`
	Loaded    bool                `json:"loaded"`
	Warm      bool                `json:"warm"` // served from the persisted snapshot
	FetchedAt time.Time           `json:"fetched_at"`
	LastError string              `json:"last_error,omitempty"`
}

// UserOptions tunes a UserStore.
type UserOptions struct {
	Interval        time.Duration
	ActiveInterval  time.Duration
	SnapshotTTL     time.Duration
	InvalidateDelay time.Duration
}

// UserStore caches the balances of one address.
type UserStore struct {
	addr string
	src  UserSource
	db   *gorm.DB
	hub  *events.Hub
	p    *poller
	sf   singleflight.Group
	opts UserOptions
	now  func() time.Time

	mu   sync.RWMutex
	snap UserSnapshot
}

// NewUserStore creates the store for address. db may be nil, in which case
// no warm-start snapshot is persisted.
func NewUserStore(address string, src UserSource, db *gorm.DB, hub *events.Hub, opts UserOptions) *UserStore {
	if opts.SnapshotTTL <= 0 {
		opts.SnapshotTTL = 30 * time.Second
	}
	if opts.InvalidateDelay < 0 {
		opts.InvalidateDelay = 0
	}
	s := &UserStore{
		addr: address,
		src:  src,
		db:   db,
		hub:  hub,
		p:    newPoller(opts.Interval, opts.ActiveInterval),
		opts: opts,
		now:  time.Now,
	}
	s.snap.Balances.Address = address
	s.warmStart()
	return s
}

func (s *UserStore) warmStart() {
	if s.db == nil {
		return
	}
	b, at, err := repo.GetBalanceSnapshot(context.Background(), s.db, s.addr, s.opts.SnapshotTTL, s.now())
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			log.Debug().Err(err).Str("address", s.addr).Msg("balance snapshot unavailable")
		}
		return
	}
	b.Address = s.addr
	s.snap = UserSnapshot{Balances: *b, Loaded: true, Warm: true, FetchedAt: at}
}

// Address returns the address this store tracks.
func (s *UserStore) Address() string { return s.addr }

// Snapshot returns the current cached balances.
func (s *UserStore) Snapshot() UserSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Refresh fetches once, sharing the request with concurrent callers.
func (s *UserStore) Refresh(ctx context.Context) (UserSnapshot, error) {
	_, err, _ := s.sf.Do("balances", func() (any, error) {
		b, err := s.src.UserBalances(ctx, s.addr)
		if err != nil {
			s.mu.Lock()
			s.snap.LastError = err.Error()
			s.mu.Unlock()
			return nil, err
		}
		b.Address = s.addr
		at := s.now().UTC()
		s.mu.Lock()
		s.snap = UserSnapshot{Balances: b, Loaded: true, FetchedAt: at}
		snap := s.snap
		s.mu.Unlock()

		if s.db != nil {
			if err := repo.SaveBalanceSnapshot(ctx, s.db, b, at); err != nil {
				log.Warn().Err(err).Str("address", s.addr).Msg("persist balance snapshot failed")
			}
		}
		s.hub.Publish(events.TopicUser, snap)
		return nil, nil
	})
	if err != nil {
		log.Warn().Err(err).Str("component", "user_store").Str("address", s.addr).Msg("balance refresh failed; keeping last value")
	}
	return s.Snapshot(), err
}

// Invalidate drops the persisted snapshot, asks the backend to drop its
// cache, waits InvalidateDelay and refetches. The refetch happens even when
// the backend invalidation fails.
func (s *UserStore) Invalidate(ctx context.Context) error {
	if s.db != nil {
		if err := repo.DeleteBalanceSnapshot(ctx, s.db, s.addr); err != nil {
			log.Warn().Err(err).Str("address", s.addr).Msg("drop balance snapshot failed")
		}
	}
	if err := s.src.InvalidateUserCache(ctx, s.addr); err != nil {
		log.Warn().Err(err).Str("address", s.addr).Msg("backend cache invalidation failed; refetching anyway")
	}
	if d := s.opts.InvalidateDelay; d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	_, err := s.Refresh(ctx)
	return err
}

// SetActive tightens or relaxes polling; calls are counted.
func (s *UserStore) SetActive(on bool) { s.p.setActive(on) }

// Interval returns the polling interval currently in effect.
func (s *UserStore) Interval() time.Duration { return s.p.current() }

// Run polls until ctx is done.
func (s *UserStore) Run(ctx context.Context) {
	s.p.run(ctx, func(ctx context.Context) { _, _ = s.Refresh(ctx) })
}

// Registry hands out exactly one UserStore per address.
type Registry struct {
	src  UserSource
	db   *gorm.DB
	hub  *events.Hub
	opts UserOptions

	mu     sync.Mutex
	ctx    context.Context
	stores map[string]*UserStore
}

// NewRegistry creates an empty registry.
func NewRegistry(src UserSource, db *gorm.DB, hub *events.Hub, opts UserOptions) *Registry {
	return &Registry{src: src, db: db, hub: hub, opts: opts, stores: map[string]*UserStore{}}
}

// Start makes every store created from now on (and every existing one) poll
// under ctx.
func (r *Registry) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctx = ctx
	for _, s := range r.stores {
		go s.Run(ctx)
	}
}

// User returns the store for address, creating it on first use. Addresses
// are compared case-insensitively.
func (r *Registry) User(address string) *UserStore {
	key := strings.ToLower(strings.TrimSpace(address))
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.stores[key]; ok {
		return s
	}
	s := NewUserStore(address, r.src, r.db, r.hub, r.opts)
	r.stores[key] = s
	if r.ctx != nil {
		go s.Run(r.ctx)
	}
	return s
}

// Len returns the number of tracked addresses.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}
