package services

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/punkhunt/internal/cache"
	"github.com/tbourn/punkhunt/internal/chain"
	"github.com/tbourn/punkhunt/internal/domain"
	"github.com/tbourn/punkhunt/internal/events"
)

// Lifecycle defaults.
const (
	DefaultConfirmedWindow     = 1500 * time.Millisecond
	DefaultFailedWindow        = 3 * time.Second
	DefaultBalanceRefreshDelay = 1500 * time.Millisecond

	// AbandonedError is the error recorded when an in-flight attempt is reset.
	AbandonedError = "transaction abandoned"
)

// Wallet submits contract writes on behalf of one address.
type Wallet interface {
	// Address returns the connected address, or "" when disconnected.
	Address() string
	// Submit signs and broadcasts call, returning its transaction hash.
	Submit(ctx context.Context, call chain.Call) (string, error)
	// Wait blocks until hash is mined and reports receipt success.
	Wait(ctx context.Context, hash string) (bool, error)
}

// GameReader exposes the shared game-data snapshot.
type GameReader interface {
	Snapshot() cache.GameSnapshot
}

// BalanceReader exposes one address's shared balance snapshot.
type BalanceReader interface {
	Snapshot() cache.UserSnapshot
	Invalidate(ctx context.Context) error
}

// activity is implemented by stores whose polling tightens while a lane is
// transacting.
type activity interface {
	SetActive(on bool)
}

// ControllerOptions configures a Controller. Zero durations take defaults.
type ControllerOptions struct {
	ConfirmedWindow     time.Duration
	FailedWindow        time.Duration
	BalanceRefreshDelay time.Duration
	Clock               Clock
	Hub                 *events.Hub
	Sound               SoundSink
	Outcomes            OutcomeHandler
	// BaseContext outlives individual requests; background work for an
	// attempt runs under it.
	BaseContext context.Context
}

// Controller owns the transaction lifecycle of one lane.
type Controller struct {
	lane    domain.Lane
	wallet  Wallet
	game    GameReader
	balance BalanceReader
	opts    ControllerOptions
	logger  zerolog.Logger

	mu         sync.Mutex
	att        domain.TransactionAttempt
	seq        uint64
	resetTimer Timer
	holding    bool // SetActive(true) issued for the current attempt
}

// NewController builds the controller for lane. wallet and balance may be
// nil when no wallet is connected.
func NewController(lane domain.Lane, wallet Wallet, game GameReader, balance BalanceReader, opts ControllerOptions) *Controller {
	if opts.ConfirmedWindow <= 0 {
		opts.ConfirmedWindow = DefaultConfirmedWindow
	}
	if opts.FailedWindow <= 0 {
		opts.FailedWindow = DefaultFailedWindow
	}
	if opts.BalanceRefreshDelay <= 0 {
		opts.BalanceRefreshDelay = DefaultBalanceRefreshDelay
	}
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	if opts.BaseContext == nil {
		opts.BaseContext = context.Background()
	}
	c := &Controller{
		lane:    lane,
		wallet:  wallet,
		game:    game,
		balance: balance,
		opts:    opts,
		logger:  log.With().Str("component", "controller").Str("lane", string(lane)).Logger(),
	}
	c.att = domain.TransactionAttempt{Lane: lane, Stage: domain.StageIdle, UpdatedAt: opts.Clock.Now()}
	return c
}

// Lane returns the lane this controller drives.
func (c *Controller) Lane() domain.Lane { return c.lane }

// Snapshot returns a copy of the current attempt.
func (c *Controller) Snapshot() domain.TransactionAttempt {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.att
}

// Submit validates and starts a new attempt for amount. On success the
// returned snapshot is in Preparing and the wallet runs in the background.
// Validation errors and ErrTransactionInFlight leave the stage untouched and
// never reach the wallet.
func (c *Controller) Submit(ctx context.Context, amount int64) (domain.TransactionAttempt, error) {
	tr := otel.Tracer("services/Controller")
	_, span := tr.Start(ctx, "Submit",
		trace.WithAttributes(
			attribute.String("lane", string(c.lane)),
			attribute.Int64("amount", amount),
		),
	)
	defer span.End()

	if c.opts.Sound != nil {
		c.opts.Sound.Play(laneCue(c.lane))
	}

	c.mu.Lock()
	if c.att.Stage != domain.StageIdle {
		snap := c.att
		c.mu.Unlock()
		actionRejections.WithLabelValues(string(c.lane), rejectionReason(ErrTransactionInFlight)).Inc()
		c.logger.Debug().Str("stage", string(snap.Stage)).Msg("action ignored: transaction in flight")
		return snap, ErrTransactionInFlight
	}
	call, err := c.validate(amount)
	if err != nil {
		snap := c.att
		c.mu.Unlock()
		actionRejections.WithLabelValues(string(c.lane), rejectionReason(err)).Inc()
		c.logger.Info().Err(err).Int64("amount", amount).Msg("action rejected")
		return snap, err
	}

	c.seq++
	seq := c.seq
	c.stopResetTimerLocked()
	c.att = domain.TransactionAttempt{
		Lane:          c.lane,
		Seq:           seq,
		Stage:         domain.StagePreparing,
		PayloadAmount: amount,
		UpdatedAt:     c.opts.Clock.Now(),
	}
	c.holdLocked(true)
	snap := c.att
	c.mu.Unlock()

	c.announce(snap)
	go c.run(seq, call)
	return snap, nil
}

// validate checks preconditions under c.mu and builds the wallet call.
func (c *Controller) validate(amount int64) (chain.Call, error) {
	if c.wallet == nil || strings.TrimSpace(c.wallet.Address()) == "" {
		return chain.Call{}, ErrWalletDisconnected
	}
	if amount <= 0 {
		return chain.Call{}, ErrInvalidAmount
	}
	game := c.game.Snapshot()

	switch c.lane {
	case domain.LaneMintDucks:
		if game.Data.IsGameOver() {
			return chain.Call{}, ErrGameOver
		}
		if end := game.Data.DucksMintEndTimestamp; end > 0 && !c.opts.Clock.Now().Before(time.Unix(end, 0)) {
			return chain.Call{}, ErrMintClosed
		}
		value, err := totalValue(game, game.Data.DuckPrice, amount)
		if err != nil {
			return chain.Call{}, err
		}
		return chain.Call{Method: chain.MethodMintDucks, Amount: amount, Value: value}, nil

	case domain.LaneMintZappers:
		value, err := totalValue(game, game.Data.ZapperPrice, amount)
		if err != nil {
			return chain.Call{}, err
		}
		return chain.Call{Method: chain.MethodMintZappers, Amount: amount, Value: value}, nil

	case domain.LaneShoot:
		if !game.Data.HuntingSeason || game.Data.LiveDucks() <= 1 {
			return chain.Call{}, ErrHuntingClosed
		}
		var zappers int64
		if c.balance != nil {
			zappers = c.balance.Snapshot().Balances.ZapperBalance
		}
		if amount > zappers {
			return chain.Call{}, ErrInsufficientZappers
		}
		return chain.Call{Method: chain.MethodSendZappers, Amount: amount}, nil
	}
	return chain.Call{}, ErrUnknownLane
}

// totalValue returns price × amount in wei. Fallback snapshots never price a
// transaction.
func totalValue(game cache.GameSnapshot, price string, amount int64) (*big.Int, error) {
	if game.Fallback || strings.TrimSpace(price) == "" {
		return nil, ErrPriceUnavailable
	}
	unit, ok := new(big.Int).SetString(strings.TrimSpace(price), 10)
	if !ok || unit.Sign() <= 0 {
		return nil, ErrPriceUnavailable
	}
	return unit.Mul(unit, big.NewInt(amount)), nil
}

// run drives one attempt through the wallet. Every transition is applied
// only if seq is still the current attempt.
func (c *Controller) run(seq uint64, call chain.Call) {
	ctx := c.opts.BaseContext

	hash, err := c.wallet.Submit(ctx, call)
	if err != nil {
		c.fail(seq, walletErrorText(err))
		return
	}
	if !c.transition(seq, domain.StagePending, func(a *domain.TransactionAttempt) { a.ID = hash }) {
		return
	}

	ok, err := c.wallet.Wait(ctx, hash)
	if err != nil {
		c.fail(seq, walletErrorText(err))
		return
	}
	if !c.transition(seq, domain.StageConfirming, nil) {
		return
	}
	if !ok {
		c.fail(seq, chain.ErrReverted.Error())
		return
	}
	if !c.transition(seq, domain.StageConfirmed, nil) {
		return
	}
	c.onConfirmed(ctx, seq, hash, call.Amount)
}

func walletErrorText(err error) string {
	if errors.Is(err, chain.ErrUserRejected) {
		return chain.ErrUserRejected.Error()
	}
	return err.Error()
}

// transition moves the current attempt to next when seq is current and the
// move is legal. mutate runs under the lock before publishing.
func (c *Controller) transition(seq uint64, next domain.Stage, mutate func(*domain.TransactionAttempt)) bool {
	c.mu.Lock()
	if seq != c.seq || !c.att.Stage.CanTransition(next) {
		stale := seq != c.seq
		from := c.att.Stage
		c.mu.Unlock()
		if stale {
			c.logger.Debug().Uint64("seq", seq).Str("to", string(next)).Msg("discarding result of stale attempt")
		} else {
			c.logger.Warn().Str("from", string(from)).Str("to", string(next)).Msg("illegal stage transition refused")
		}
		return false
	}
	c.att.Stage = next
	c.att.UpdatedAt = c.opts.Clock.Now()
	if mutate != nil {
		mutate(&c.att)
	}
	switch next {
	case domain.StageConfirmed:
		c.scheduleResetLocked(seq, c.opts.ConfirmedWindow)
	case domain.StageFailed:
		c.scheduleResetLocked(seq, c.opts.FailedWindow)
	}
	snap := c.att
	c.mu.Unlock()

	c.announce(snap)
	return true
}

func (c *Controller) fail(seq uint64, msg string) {
	if c.transition(seq, domain.StageFailed, func(a *domain.TransactionAttempt) { a.Error = msg }) {
		c.logger.Warn().Str("error", msg).Msg("transaction failed")
	}
}

func (c *Controller) onConfirmed(ctx context.Context, seq uint64, hash string, amount int64) {
	c.logger.Info().Str("tx", hash).Int64("amount", amount).Msg("transaction confirmed")
	if c.balance != nil {
		c.opts.Clock.AfterFunc(c.opts.BalanceRefreshDelay, func() {
			if err := c.balance.Invalidate(ctx); err != nil {
				c.logger.Warn().Err(err).Msg("balance refresh after confirmation failed")
			}
		})
	}
	if c.opts.Outcomes != nil {
		go c.opts.Outcomes.Handle(ctx, ReconcileRequest{TransactionID: hash, PayloadAmount: amount, Lane: c.lane})
	}
}

// scheduleResetLocked arms the auto-reset back to Idle for attempt seq.
func (c *Controller) scheduleResetLocked(seq uint64, d time.Duration) {
	c.stopResetTimerLocked()
	c.resetTimer = c.opts.Clock.AfterFunc(d, func() { c.autoReset(seq) })
}

func (c *Controller) stopResetTimerLocked() {
	if c.resetTimer != nil {
		c.resetTimer.Stop()
		c.resetTimer = nil
	}
}

func (c *Controller) autoReset(seq uint64) {
	c.mu.Lock()
	if seq != c.seq || !c.att.Stage.IsTerminal() {
		c.mu.Unlock()
		return
	}
	c.toIdleLocked()
	snap := c.att
	c.mu.Unlock()
	c.announce(snap)
}

// Reset returns the lane to Idle. From Confirmed or Failed it is the manual
// form of the auto-reset. While in flight the attempt is abandoned: it is
// marked Failed, then Idle, and any result still arriving for it is
// discarded. Reset on an Idle lane does nothing.
func (c *Controller) Reset() domain.TransactionAttempt {
	c.mu.Lock()
	switch {
	case c.att.Stage == domain.StageIdle:
		snap := c.att
		c.mu.Unlock()
		return snap

	case c.att.Stage.IsTransacting():
		c.att.Stage = domain.StageFailed
		c.att.Error = AbandonedError
		c.att.UpdatedAt = c.opts.Clock.Now()
		failed := c.att
		// Bumping seq invalidates every pending callback of the old attempt.
		c.seq++
		c.toIdleLocked()
		snap := c.att
		c.mu.Unlock()
		c.announce(failed)
		c.announce(snap)
		return snap
	}

	c.toIdleLocked()
	snap := c.att
	c.mu.Unlock()
	c.announce(snap)
	return snap
}

func (c *Controller) toIdleLocked() {
	c.stopResetTimerLocked()
	c.att = domain.TransactionAttempt{
		Lane:      c.lane,
		Seq:       c.seq,
		Stage:     domain.StageIdle,
		UpdatedAt: c.opts.Clock.Now(),
	}
	c.holdLocked(false)
}

// holdLocked pairs SetActive calls on the shared stores with the attempt's
// lifetime.
func (c *Controller) holdLocked(on bool) {
	if on == c.holding {
		return
	}
	c.holding = on
	if on {
		inFlight.Inc()
	} else {
		inFlight.Dec()
	}
	for _, s := range []any{c.game, c.balance} {
		if a, ok := s.(activity); ok && a != nil {
			a.SetActive(on)
		}
	}
}

func (c *Controller) announce(a domain.TransactionAttempt) {
	stageTransitions.WithLabelValues(string(a.Lane), string(a.Stage)).Inc()
	c.opts.Hub.Publish(events.TopicStage, a)
}
