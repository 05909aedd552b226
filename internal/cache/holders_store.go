package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tbourn/punkhunt/internal/domain"
	"github.com/tbourn/punkhunt/internal/events"
)

// HoldersSource fetches holder and leaderboard data.
type HoldersSource interface {
	Holders(ctx context.Context) ([]domain.Holder, error)
	Leaderboard(ctx context.Context) (domain.Leaderboard, error)
}

// HoldersStore serves holders and leaderboard on demand, reusing a fetched
// value for ttl.
type HoldersStore struct {
	src HoldersSource
	hub *events.Hub
	ttl time.Duration
	sf  singleflight.Group
	now func() time.Time

	mu        sync.Mutex
	holders   []domain.Holder
	holdersAt time.Time
	board     domain.Leaderboard
	boardAt   time.Time
}

// NewHoldersStore creates the store. ttl defaults to 15s.
func NewHoldersStore(src HoldersSource, hub *events.Hub, ttl time.Duration) *HoldersStore {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &HoldersStore{src: src, hub: hub, ttl: ttl, now: time.Now}
}

// Holders returns the cached holders, refetching when stale.
func (s *HoldersStore) Holders(ctx context.Context) ([]domain.Holder, error) {
	s.mu.Lock()
	if !s.holdersAt.IsZero() && s.now().Sub(s.holdersAt) < s.ttl {
		out := s.holders
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()

	v, err, _ := s.sf.Do("holders", func() (any, error) {
		h, err := s.src.Holders(ctx)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.holders, s.holdersAt = h, s.now()
		s.mu.Unlock()
		return h, nil
	})
	if err != nil {
		return s.staleHolders(), err
	}
	return v.([]domain.Holder), nil
}

func (s *HoldersStore) staleHolders() []domain.Holder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.holders
}

// Leaderboard returns the cached leaderboard, refetching when stale.
func (s *HoldersStore) Leaderboard(ctx context.Context) (domain.Leaderboard, error) {
	s.mu.Lock()
	if !s.boardAt.IsZero() && s.now().Sub(s.boardAt) < s.ttl {
		out := s.board
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()

	v, err, _ := s.sf.Do("leaderboard", func() (any, error) {
		lb, err := s.src.Leaderboard(ctx)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.board, s.boardAt = lb, s.now()
		s.mu.Unlock()
		return lb, nil
	})
	if err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.board, err
	}
	return v.(domain.Leaderboard), nil
}

// PushLeaderboard replaces the cached leaderboard with one pushed over the
// realtime channel and republishes it.
func (s *HoldersStore) PushLeaderboard(lb domain.Leaderboard) {
	s.mu.Lock()
	s.board, s.boardAt = lb, s.now()
	s.mu.Unlock()
	s.hub.Publish(events.TopicLeaderboard, lb)
}
