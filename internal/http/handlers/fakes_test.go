package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/punkhunt/internal/cache"
	"github.com/tbourn/punkhunt/internal/domain"
	"github.com/tbourn/punkhunt/internal/http/middleware"
	"github.com/tbourn/punkhunt/internal/repo"
	"github.com/tbourn/punkhunt/internal/services"
)

const testWallet = "0x1234567890abcdef1234567890abcdef12345678"

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeGame struct{ snap cache.GameSnapshot }

func (f *fakeGame) Snapshot() cache.GameSnapshot { return f.snap }

type fakeHolders struct {
	holders []domain.Holder
	board   domain.Leaderboard
	err     error
}

func (f *fakeHolders) Holders(context.Context) ([]domain.Holder, error) { return f.holders, f.err }
func (f *fakeHolders) Leaderboard(context.Context) (domain.Leaderboard, error) {
	return f.board, f.err
}

type fakeBalance struct {
	mu          sync.Mutex
	snap        cache.UserSnapshot
	fetched     cache.UserSnapshot
	refreshErr  error
	refreshes   int
	invalidates int
}

func (f *fakeBalance) Snapshot() cache.UserSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeBalance) Refresh(context.Context) (cache.UserSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	if f.refreshErr != nil {
		return f.snap, f.refreshErr
	}
	f.snap = f.fetched
	return f.snap, nil
}

func (f *fakeBalance) Invalidate(ctx context.Context) error {
	f.mu.Lock()
	f.invalidates++
	f.mu.Unlock()
	_, err := f.Refresh(ctx)
	return err
}

type fakeLanes struct {
	mu        sync.Mutex
	addr      string
	atts      map[domain.Lane]domain.TransactionAttempt
	submitErr error
	submits   []int64
	resets    int
}

func newFakeLanes(addr string) *fakeLanes {
	f := &fakeLanes{addr: addr, atts: map[domain.Lane]domain.TransactionAttempt{}}
	for _, l := range domain.Lanes {
		f.atts[l] = domain.TransactionAttempt{Lane: l, Stage: domain.StageIdle}
	}
	return f
}

func (f *fakeLanes) Address() string { return f.addr }

func (f *fakeLanes) Submit(_ context.Context, lane domain.Lane, amount int64) (domain.TransactionAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return domain.TransactionAttempt{}, f.submitErr
	}
	f.submits = append(f.submits, amount)
	att := f.atts[lane]
	if att.IsTransacting() {
		return att, services.ErrTransactionInFlight
	}
	att = domain.TransactionAttempt{Lane: lane, Seq: att.Seq + 1, Stage: domain.StagePreparing, PayloadAmount: amount}
	f.atts[lane] = att
	return att, nil
}

func (f *fakeLanes) Snapshot(lane domain.Lane) (domain.TransactionAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.atts[lane], nil
}

func (f *fakeLanes) Reset(lane domain.Lane) (domain.TransactionAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	att := f.atts[lane]
	att = domain.TransactionAttempt{Lane: lane, Seq: att.Seq + 1, Stage: domain.StageIdle}
	f.atts[lane] = att
	return att, nil
}

func (f *fakeLanes) Snapshots() []domain.TransactionAttempt {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.TransactionAttempt, 0, len(domain.Lanes))
	for _, l := range domain.Lanes {
		out = append(out, f.atts[l])
	}
	return out
}

func (f *fakeLanes) set(att domain.TransactionAttempt) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.atts[att.Lane] = att
}

type fakeIdem struct {
	mu   sync.Mutex
	recs map[string]*domain.Idempotency
	sets int
}

func idemKey(address, lane, key string) string { return address + "|" + lane + "|" + key }

func (f *fakeIdem) Get(_ context.Context, address, lane, key string, _ time.Time) (*domain.Idempotency, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, found := f.recs[idemKey(address, lane, key)]
	if !found {
		return nil, repo.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeIdem) Create(_ context.Context, address, lane, key string, seq uint64, status int) (*domain.Idempotency, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := idemKey(address, lane, key)
	if _, dup := f.recs[k]; dup {
		return nil, repo.ErrDuplicate
	}
	rec := &domain.Idempotency{ID: "rec-" + key, Address: address, Lane: lane, Key: key, AttemptSeq: seq, Status: status}
	f.recs[k] = rec
	return rec, nil
}

func (f *fakeIdem) SetAttemptID(_ context.Context, id, attemptID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.recs {
		if r.ID == id {
			r.AttemptID = attemptID
			f.sets++
			return nil
		}
	}
	return repo.ErrNotFound
}

func (f *fakeIdem) lookup(ctx context.Context, address, lane, key string, now time.Time) (string, bool, error) {
	l, err := domain.ParseLane(lane)
	if err != nil {
		return "", false, nil
	}
	rec, err := f.Get(ctx, address, string(l), key, now)
	if errors.Is(err, repo.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return rec.ID, true, nil
}

type fakeNotes struct {
	list      []domain.Notification
	dismissed []string
}

func (f *fakeNotes) List() []domain.Notification { return f.list }
func (f *fakeNotes) Dismiss(id string) bool {
	for i, n := range f.list {
		if n.ID == id {
			f.list = append(f.list[:i], f.list[i+1:]...)
			f.dismissed = append(f.dismissed, id)
			return true
		}
	}
	return false
}

type fakeChat struct {
	history []domain.ChatMessage
	closed  bool
	err     error
	sentBy  string
	sent    string
	limit   int
}

func (f *fakeChat) History(limit int) []domain.ChatMessage {
	f.limit = limit
	if len(f.history) > limit {
		return f.history[len(f.history)-limit:]
	}
	return f.history
}

func (f *fakeChat) Send(_ context.Context, address, text string) (domain.ChatMessage, error) {
	if f.err != nil {
		return domain.ChatMessage{}, f.err
	}
	f.sentBy, f.sent = address, text
	return domain.ChatMessage{User: services.ShortAddress(address), Message: strings.TrimSpace(text)}, nil
}

func (f *fakeChat) Closed() bool { return f.closed }

type fakeSound struct {
	on  bool
	err error
}

func (f *fakeSound) Enabled() bool { return f.on }
func (f *fakeSound) SetEnabled(_ context.Context, on bool) error {
	if f.err != nil {
		return f.err
	}
	f.on = on
	return nil
}

// newTestRouter mounts every handler the way the production router does,
// minus the ambient middleware that has its own tests.
type fakeHistory struct {
	txs   []domain.ProcessedTransaction
	err   error
	limit int
}

func (f *fakeHistory) LaneStats(_ context.Context, lane domain.Lane) (int64, *time.Time, error) {
	var (
		n    int64
		last *time.Time
	)
	for i := range f.txs {
		if f.txs[i].Lane == string(lane) {
			n++
			if last == nil || f.txs[i].CreatedAt.After(*last) {
				last = &f.txs[i].CreatedAt
			}
		}
	}
	return n, last, f.err
}

func (f *fakeHistory) Recent(_ context.Context, limit int) ([]domain.ProcessedTransaction, error) {
	f.limit = limit
	if limit < len(f.txs) {
		return f.txs[:limit], f.err
	}
	return f.txs, f.err
}

func newTestRouter(d Deps, idem *fakeIdem) *gin.Engine {
	gin.SetMode(gin.TestMode)
	if d.Now == nil {
		d.Now = func() time.Time { return fixedNow }
	}
	h := New(d)
	r := gin.New()
	r.Use(middleware.RequestID())
	if d.Lanes != nil {
		r.Use(middleware.WalletAddress(d.Lanes.Address))
	}
	var lookup middleware.IdempotencyLookup
	if idem != nil {
		lookup = idem.lookup
	}
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, lookup))

	r.GET("/.well-known/farcaster.json", h.GetManifest)
	api := r.Group("/api/v1")
	api.GET("/game", h.GetGame)
	api.GET("/holders", h.GetHolders)
	api.GET("/leaderboard", h.GetLeaderboard)
	api.GET("/users/:address/balances", h.GetBalances)
	api.POST("/users/:address/invalidate", h.InvalidateBalances)
	api.GET("/lanes", h.ListLanes)
	api.GET("/lanes/:lane", h.GetLane)
	api.POST("/lanes/:lane/submit", h.SubmitLane)
	api.POST("/lanes/:lane/reset", h.ResetLane)
	api.GET("/history", h.GetHistory)
	api.GET("/notifications", h.ListNotifications)
	api.DELETE("/notifications/:id", h.DismissNotification)
	api.GET("/events", h.Events)
	api.GET("/chat", h.GetChat)
	api.POST("/chat", h.SendChat)
	api.GET("/preferences/sound", h.GetSound)
	api.PUT("/preferences/sound", h.PutSound)
	api.GET("/help", h.SearchHelp)
	return r
}

func do(t *testing.T, r http.Handler, method, path, body string, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func liveGame() *fakeGame {
	return &fakeGame{snap: cache.GameSnapshot{Data: domain.GameData{
		DuckPrice:             "2220000000000000",
		ZapperPrice:           "198400000000000",
		HuntingSeason:         true,
		GameStarted:           true,
		DucksMinted:           10,
		DucksRekt:             2,
		ZappersMinted:         20,
		DucksMintEndTimestamp: fixedNow.Add(26 * time.Hour).Unix(),
	}}}
}
