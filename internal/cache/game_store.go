package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/tbourn/punkhunt/internal/domain"
	"github.com/tbourn/punkhunt/internal/events"
)

// Fallback unit prices in wei, used only for display before the first
// successful fetch.
const (
	FallbackDuckPriceWei   = "2220000000000000" // 0.00222 ETH
	FallbackZapperPriceWei = "198400000000000"  // 0.0001984 ETH
)

// GameSource fetches the backend's cached game data.
type GameSource interface {
	GameData(ctx context.Context) (domain.GameData, error)
}

// GameSnapshot is what readers of the game store see. Fallback is set until
// the first successful fetch; prices in a fallback snapshot must not be used
// to price a transaction.
type GameSnapshot struct {
	Data      domain.GameData `json:"data"`
	Fallback  bool            `json:"fallback"`
	FetchedAt time.Time       `json:"fetched_at"`
	LastError string          `json:"last_error,omitempty"`
}

// GameStore is the single shared game-data cache.
type GameStore struct {
	src GameSource
	hub *events.Hub
	p   *poller
	sf  singleflight.Group
	now func() time.Time

	mu     sync.RWMutex
	snap   GameSnapshot
	loaded bool
}

// NewGameStore creates a store polling src every interval, or every
// activeInterval while active.
func NewGameStore(src GameSource, hub *events.Hub, interval, activeInterval time.Duration) *GameStore {
	return &GameStore{
		src: src,
		hub: hub,
		p:   newPoller(interval, activeInterval),
		now: time.Now,
	}
}

func fallbackGame() GameSnapshot {
	return GameSnapshot{
		Data: domain.GameData{
			DuckPrice:   FallbackDuckPriceWei,
			ZapperPrice: FallbackZapperPriceWei,
			Winner:      domain.ZeroAddress,
			SecondPlace: domain.ZeroAddress,
			ThirdPlace:  domain.ZeroAddress,
			TopShooter:  domain.ZeroAddress,
		},
		Fallback: true,
	}
}

// Snapshot returns the last good value, or the fallback defaults before the
// first successful fetch.
func (s *GameStore) Snapshot() GameSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		fb := fallbackGame()
		fb.LastError = s.snap.LastError
		return fb
	}
	return s.snap
}

// Refresh fetches once. Concurrent callers share one request. On error the
// previous value is kept and the error recorded.
func (s *GameStore) Refresh(ctx context.Context) (GameSnapshot, error) {
	_, err, _ := s.sf.Do("game", func() (any, error) {
		data, err := s.src.GameData(ctx)
		s.mu.Lock()
		if err != nil {
			s.snap.LastError = err.Error()
			s.mu.Unlock()
			return nil, err
		}
		s.snap = GameSnapshot{Data: data, FetchedAt: s.now().UTC()}
		s.loaded = true
		snap := s.snap
		s.mu.Unlock()
		s.hub.Publish(events.TopicGame, snap)
		return nil, nil
	})
	if err != nil {
		log.Warn().Err(err).Str("component", "game_store").Msg("game data refresh failed; keeping last value")
	}
	return s.Snapshot(), err
}

// SetActive tightens (true) or relaxes (false) the polling interval. Calls
// are counted, so every true needs a matching false.
func (s *GameStore) SetActive(on bool) { s.p.setActive(on) }

// Interval returns the polling interval currently in effect.
func (s *GameStore) Interval() time.Duration { return s.p.current() }

// Run polls until ctx is done.
func (s *GameStore) Run(ctx context.Context) {
	s.p.run(ctx, func(ctx context.Context) { _, _ = s.Refresh(ctx) })
}
