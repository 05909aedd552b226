package services

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/punkhunt/internal/cache"
	"github.com/tbourn/punkhunt/internal/domain"
)

func TestLanes_AreIndependent(t *testing.T) {
	w := newFakeWallet("0x1111111111111111111111111111111111111111")
	game := &fakeGame{snap: liveGame()}
	bal := &fakeBalance{snap: cache.UserSnapshot{Loaded: true, Balances: domain.UserBalances{ZapperBalance: 3}}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := NewLanes(w, game, bal, ControllerOptions{Clock: newManualClock(), BaseContext: ctx})

	if _, err := l.SendZappers(context.Background(), 1); err != nil {
		t.Fatalf("SendZappers: %v", err)
	}
	<-w.submitted
	if !l.AnyTransacting() {
		t.Fatalf("shoot lane should be transacting")
	}
	if _, err := l.MintDucks(context.Background(), 1); err != nil {
		t.Fatalf("a busy shoot lane must not block minting: %v", err)
	}
	<-w.submitted
	if _, err := l.SendZappers(context.Background(), 1); !errors.Is(err, ErrTransactionInFlight) {
		t.Fatalf("err = %v", err)
	}

	snaps := l.Snapshots()
	if len(snaps) != 3 || snaps[0].Lane != domain.LaneMintDucks || snaps[2].Lane != domain.LaneShoot {
		t.Fatalf("snapshots = %+v", snaps)
	}
	if snaps[1].Stage != domain.StageIdle {
		t.Fatalf("zappers lane = %s", snaps[1].Stage)
	}
	if game.active.Load() != 2 {
		t.Fatalf("each in-flight lane holds the store active; got %d", game.active.Load())
	}
	if l.Address() == "" {
		t.Fatalf("Address empty")
	}
}

func TestLanes_UnknownLane(t *testing.T) {
	l := NewLanes(nil, &fakeGame{}, nil, ControllerOptions{Clock: newManualClock()})
	if _, err := l.Submit(context.Background(), domain.Lane("fly"), 1); !errors.Is(err, ErrUnknownLane) {
		t.Fatalf("err = %v", err)
	}
	if l.Address() != "" {
		t.Fatalf("nil wallet should report no address")
	}
}
