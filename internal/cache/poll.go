// Package cache holds the shared, read-mostly stores of backend state. Every
// consumer of game data or of one address's balances reads the same store
// instance, so a guard in the controller sees exactly what the view shows.
package cache

import (
	"context"
	"sync/atomic"
	"time"
)

// poller runs refresh on a fixed interval that tightens while at least one
// caller has marked the store active.
type poller struct {
	interval       time.Duration
	activeInterval time.Duration
	active         atomic.Int32
	wake           chan struct{}
}

func newPoller(interval, activeInterval time.Duration) *poller {
	if activeInterval <= 0 || activeInterval > interval {
		activeInterval = interval
	}
	return &poller{
		interval:       interval,
		activeInterval: activeInterval,
		wake:           make(chan struct{}, 1),
	}
}

// setActive increments or decrements the active counter and reschedules the
// next tick when the effective interval changes.
func (p *poller) setActive(on bool) {
	var n int32
	if on {
		n = p.active.Add(1)
	} else {
		n = p.active.Add(-1)
		if n < 0 {
			p.active.Store(0)
			n = 0
		}
	}
	if (on && n == 1) || (!on && n == 0) {
		select {
		case p.wake <- struct{}{}:
		default:
		}
	}
}

func (p *poller) isActive() bool { return p.active.Load() > 0 }

func (p *poller) current() time.Duration {
	if p.isActive() {
		return p.activeInterval
	}
	return p.interval
}

// run calls refresh immediately and then on every tick until ctx is done.
func (p *poller) run(ctx context.Context, refresh func(context.Context)) {
	refresh(ctx)
	t := time.NewTimer(p.current())
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.wake:
			if !t.Stop() {
				select {
				case <-t.C:
				default:
				}
			}
			t.Reset(p.current())
		case <-t.C:
			refresh(ctx)
			t.Reset(p.current())
		}
	}
}
