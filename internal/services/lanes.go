package services

import (
	"context"
	"fmt"

	"github.com/tbourn/punkhunt/internal/domain"
)

// Lanes owns the three controllers of one wallet. Lanes are independent;
// each enforces its own single-flight guard.
type Lanes struct {
	wallet Wallet
	ctrls  map[domain.Lane]*Controller
}

// NewLanes builds a controller per lane sharing the same collaborators.
func NewLanes(wallet Wallet, game GameReader, balance BalanceReader, opts ControllerOptions) *Lanes {
	l := &Lanes{wallet: wallet, ctrls: make(map[domain.Lane]*Controller, len(domain.Lanes))}
	for _, lane := range domain.Lanes {
		l.ctrls[lane] = NewController(lane, wallet, game, balance, opts)
	}
	return l
}

// Address returns the connected wallet address, or "".
func (l *Lanes) Address() string {
	if l.wallet == nil {
		return ""
	}
	return l.wallet.Address()
}

// Get returns the controller for lane.
func (l *Lanes) Get(lane domain.Lane) (*Controller, error) {
	c, ok := l.ctrls[lane]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLane, lane)
	}
	return c, nil
}

// Submit starts an attempt on lane.
func (l *Lanes) Submit(ctx context.Context, lane domain.Lane, amount int64) (domain.TransactionAttempt, error) {
	c, err := l.Get(lane)
	if err != nil {
		return domain.TransactionAttempt{}, err
	}
	return c.Submit(ctx, amount)
}

// MintDucks mints amount ducks at the cached duck price.
func (l *Lanes) MintDucks(ctx context.Context, amount int64) (domain.TransactionAttempt, error) {
	return l.Submit(ctx, domain.LaneMintDucks, amount)
}

// MintZappers mints amount zappers at the cached zapper price.
func (l *Lanes) MintZappers(ctx context.Context, amount int64) (domain.TransactionAttempt, error) {
	return l.Submit(ctx, domain.LaneMintZappers, amount)
}

// SendZappers fires amount zappers.
func (l *Lanes) SendZappers(ctx context.Context, amount int64) (domain.TransactionAttempt, error) {
	return l.Submit(ctx, domain.LaneShoot, amount)
}

// Snapshots returns every lane's attempt in display order.
func (l *Lanes) Snapshots() []domain.TransactionAttempt {
	out := make([]domain.TransactionAttempt, 0, len(domain.Lanes))
	for _, lane := range domain.Lanes {
		out = append(out, l.ctrls[lane].Snapshot())
	}
	return out
}

// AnyTransacting reports whether some lane has an attempt in flight.
func (l *Lanes) AnyTransacting() bool {
	for _, c := range l.ctrls {
		if c.Snapshot().IsTransacting() {
			return true
		}
	}
	return false
}

// Snapshot returns the current attempt of lane.
func (l *Lanes) Snapshot(lane domain.Lane) (domain.TransactionAttempt, error) {
	c, err := l.Get(lane)
	if err != nil {
		return domain.TransactionAttempt{}, err
	}
	return c.Snapshot(), nil
}

// Reset returns lane to Idle, abandoning an in-flight attempt.
func (l *Lanes) Reset(lane domain.Lane) (domain.TransactionAttempt, error) {
	c, err := l.Get(lane)
	if err != nil {
		return domain.TransactionAttempt{}, err
	}
	return c.Reset(), nil
}
