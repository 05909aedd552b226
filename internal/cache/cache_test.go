package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/punkhunt/internal/domain"
	"github.com/tbourn/punkhunt/internal/events"
	"github.com/tbourn/punkhunt/internal/repo"
)

type fakeGame struct {
	mu    sync.Mutex
	data  domain.GameData
	err   error
	calls atomic.Int32
	gate  chan struct{}
}

func (f *fakeGame) GameData(ctx context.Context) (domain.GameData, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data, f.err
}

type fakeUser struct {
	mu          sync.Mutex
	balances    domain.UserBalances
	err         error
	invalidErr  error
	fetches     int
	invalidates int
}

func (f *fakeUser) UserBalances(ctx context.Context, address string) (domain.UserBalances, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	return f.balances, f.err
}

func (f *fakeUser) InvalidateUserCache(ctx context.Context, address string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidates++
	return f.invalidErr
}

func newCacheDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestGameStore_FallbackUntilFirstSuccess(t *testing.T) {
	src := &fakeGame{err: errors.New("boom")}
	s := NewGameStore(src, nil, time.Minute, time.Second)

	snap := s.Snapshot()
	if !snap.Fallback || snap.Data.DuckPrice != FallbackDuckPriceWei || snap.Data.ZapperPrice != FallbackZapperPriceWei {
		t.Fatalf("expected fallback snapshot, got %+v", snap)
	}
	if _, err := s.Refresh(context.Background()); err == nil {
		t.Fatalf("expected refresh error")
	}
	if snap := s.Snapshot(); !snap.Fallback || snap.LastError != "boom" {
		t.Fatalf("expected fallback with error, got %+v", snap)
	}

	src.mu.Lock()
	src.err = nil
	src.data = domain.GameData{DuckPrice: "100", DucksMinted: 3}
	src.mu.Unlock()
	if _, err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	// A later failure keeps the last good value.
	src.mu.Lock()
	src.err = errors.New("down")
	src.mu.Unlock()
	_, _ = s.Refresh(context.Background())
	snap = s.Snapshot()
	if snap.Fallback || snap.Data.DuckPrice != "100" || snap.LastError != "down" {
		t.Fatalf("expected last good value kept, got %+v", snap)
	}
}

func TestGameStore_RefreshPublishes(t *testing.T) {
	hub := events.NewHub(4)
	ch, cancel := hub.Subscribe(events.TopicGame)
	defer cancel()
	s := NewGameStore(&fakeGame{data: domain.GameData{DucksMinted: 9}}, hub, time.Minute, time.Second)
	if _, err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	select {
	case ev := <-ch:
		if snap, ok := ev.Data.(GameSnapshot); !ok || snap.Data.DucksMinted != 9 {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("no game event")
	}
}

func TestGameStore_ConcurrentRefreshesCollapse(t *testing.T) {
	src := &fakeGame{gate: make(chan struct{})}
	s := NewGameStore(src, nil, time.Minute, time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Refresh(context.Background())
		}()
	}
	// Let every goroutine reach singleflight before releasing the fetch.
	time.Sleep(50 * time.Millisecond)
	close(src.gate)
	wg.Wait()
	if n := src.calls.Load(); n != 1 {
		t.Fatalf("expected 1 backend call, got %d", n)
	}
}

func TestPoller_ActiveIntervalIsCounted(t *testing.T) {
	s := NewGameStore(&fakeGame{}, nil, 15*time.Second, 5*time.Second)
	if s.Interval() != 15*time.Second {
		t.Fatalf("idle interval = %v", s.Interval())
	}
	s.SetActive(true)
	s.SetActive(true)
	if s.Interval() != 5*time.Second {
		t.Fatalf("active interval = %v", s.Interval())
	}
	s.SetActive(false)
	if s.Interval() != 5*time.Second {
		t.Fatalf("still one active holder; interval = %v", s.Interval())
	}
	s.SetActive(false)
	s.SetActive(false) // extra release clamps at zero
	if s.Interval() != 15*time.Second {
		t.Fatalf("relaxed interval = %v", s.Interval())
	}
}

func TestGameStore_RunPollsUntilCancel(t *testing.T) {
	src := &fakeGame{}
	s := NewGameStore(src, nil, 10*time.Millisecond, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { s.Run(ctx); close(done) }()
	time.Sleep(60 * time.Millisecond)
	cancel()
	<-done
	if src.calls.Load() < 2 {
		t.Fatalf("expected repeated polling, got %d calls", src.calls.Load())
	}
}

func TestUserStore_WarmStartFromSnapshot(t *testing.T) {
	db := newCacheDB(t)
	now := time.Now()
	if err := repo.SaveBalanceSnapshot(context.Background(), db, domain.UserBalances{Address: "0xabc", ZapperBalance: 4}, now.Add(-10*time.Second)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	s := NewUserStore("0xABC", &fakeUser{}, db, nil, UserOptions{Interval: time.Minute, SnapshotTTL: 30 * time.Second})
	snap := s.Snapshot()
	if !snap.Loaded || !snap.Warm || snap.Balances.ZapperBalance != 4 || snap.Balances.Address != "0xABC" {
		t.Fatalf("expected warm snapshot, got %+v", snap)
	}
}

func TestUserStore_StaleSnapshotIgnored(t *testing.T) {
	db := newCacheDB(t)
	if err := repo.SaveBalanceSnapshot(context.Background(), db, domain.UserBalances{Address: "0xabc", ZapperBalance: 4}, time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	s := NewUserStore("0xabc", &fakeUser{}, db, nil, UserOptions{Interval: time.Minute, SnapshotTTL: 30 * time.Second})
	if s.Snapshot().Loaded {
		t.Fatalf("stale snapshot must not warm the store")
	}
}

func TestUserStore_RefreshPersists(t *testing.T) {
	db := newCacheDB(t)
	src := &fakeUser{balances: domain.UserBalances{DuckBalance: 1, ZapperBalance: 6}}
	s := NewUserStore("0xdef", src, db, nil, UserOptions{Interval: time.Minute})
	snap, err := s.Refresh(context.Background())
	if err != nil || snap.Balances.ZapperBalance != 6 || snap.Warm {
		t.Fatalf("Refresh = %+v, %v", snap, err)
	}
	b, _, err := repo.GetBalanceSnapshot(context.Background(), db, "0xdef", time.Minute, time.Now())
	if err != nil || b.ZapperBalance != 6 {
		t.Fatalf("persisted snapshot = %+v, %v", b, err)
	}
}

func TestUserStore_InvalidateRefetchesEvenWhenBackendFails(t *testing.T) {
	db := newCacheDB(t)
	src := &fakeUser{balances: domain.UserBalances{ZapperBalance: 2}, invalidErr: errors.New("503")}
	s := NewUserStore("0x1", src, db, nil, UserOptions{Interval: time.Minute, InvalidateDelay: 5 * time.Millisecond})
	_ = repo.SaveBalanceSnapshot(context.Background(), db, domain.UserBalances{Address: "0x1", ZapperBalance: 9}, time.Now())

	if err := s.Invalidate(context.Background()); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if src.invalidates != 1 || src.fetches != 1 {
		t.Fatalf("invalidates=%d fetches=%d", src.invalidates, src.fetches)
	}
	if got := s.Snapshot().Balances.ZapperBalance; got != 2 {
		t.Fatalf("balance after invalidate = %d", got)
	}
}

func TestUserStore_InvalidateHonorsContext(t *testing.T) {
	src := &fakeUser{}
	s := NewUserStore("0x1", src, nil, nil, UserOptions{Interval: time.Minute, InvalidateDelay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Invalidate(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if src.fetches != 0 {
		t.Fatalf("no refetch expected after cancel")
	}
}

func TestRegistry_OneStorePerAddress(t *testing.T) {
	r := NewRegistry(&fakeUser{}, nil, nil, UserOptions{Interval: time.Minute})
	a := r.User("0xAbC")
	b := r.User(" 0xabc ")
	if a != b || r.Len() != 1 {
		t.Fatalf("expected shared store instance")
	}
	if r.User("0xdef") == a || r.Len() != 2 {
		t.Fatalf("distinct addresses must get distinct stores")
	}
}

type fakeHolders struct {
	holders []domain.Holder
	err     error
	calls   int
}

func (f *fakeHolders) Holders(context.Context) ([]domain.Holder, error) {
	f.calls++
	return f.holders, f.err
}

func (f *fakeHolders) Leaderboard(context.Context) (domain.Leaderboard, error) {
	f.calls++
	return domain.Leaderboard{TopHunters: []domain.Hunter{{Address: "0x9", ZapCount: 1}}}, f.err
}

func TestHoldersStore_TTL(t *testing.T) {
	src := &fakeHolders{holders: []domain.Holder{{Address: "0x1", Balance: 3}}}
	s := NewHoldersStore(src, nil, time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if h, err := s.Holders(context.Background()); err != nil || len(h) != 1 {
			t.Fatalf("Holders = %+v, %v", h, err)
		}
	}
	if src.calls != 1 {
		t.Fatalf("expected 1 fetch within ttl, got %d", src.calls)
	}
	now = now.Add(2 * time.Minute)
	src.err = errors.New("down")
	h, err := s.Holders(context.Background())
	if err == nil || len(h) != 1 {
		t.Fatalf("expected stale holders with error, got %+v, %v", h, err)
	}
}

func TestHoldersStore_PushLeaderboard(t *testing.T) {
	src := &fakeHolders{}
	s := NewHoldersStore(src, nil, time.Minute)
	s.PushLeaderboard(domain.Leaderboard{TopHunters: []domain.Hunter{{Address: "0x7", ZapCount: 40}}})
	lb, err := s.Leaderboard(context.Background())
	if err != nil || lb.TopHunters[0].ZapCount != 40 || src.calls != 0 {
		t.Fatalf("expected pushed leaderboard served from cache, got %+v, %v (calls=%d)", lb, err, src.calls)
	}
}
