// cmd/punkhunt/app.go
package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tbourn/punkhunt/internal/backend"
	"github.com/tbourn/punkhunt/internal/cache"
	"github.com/tbourn/punkhunt/internal/chain"
	"github.com/tbourn/punkhunt/internal/config"
	"github.com/tbourn/punkhunt/internal/events"
	httpapi "github.com/tbourn/punkhunt/internal/http"
	"github.com/tbourn/punkhunt/internal/http/handlers"
	"github.com/tbourn/punkhunt/internal/realtime"
	"github.com/tbourn/punkhunt/internal/repo"
	"github.com/tbourn/punkhunt/internal/search"
	"github.com/tbourn/punkhunt/internal/services"
)

const (
	hubBuffer        = 64
	holdersTTL       = 15 * time.Second
	purgeInterval    = 5 * time.Minute
	chainDialTimeout = 15 * time.Second
)

// app is one wired companion: caches, lanes, notifications and chat over a
// single database and event hub.
type app struct {
	cfg config.Config

	db      *gorm.DB
	hub     *events.Hub
	backend *backend.Client
	chain   *chain.Client

	game    *cache.GameStore
	users   *cache.Registry
	holders *cache.HoldersStore

	sound      *services.SoundBoard
	queue      *services.NotificationQueue
	reconciler *services.Reconciler
	lanes      *services.Lanes

	socket *realtime.Socket
	feed   *realtime.ChatFeed
	chat   *services.ChatService
	help   search.Index
}

// newApp opens storage and builds every component. confirm gates each
// wallet request; nil approves automatically. ctx bounds background work
// started by lane attempts.
func newApp(ctx context.Context, cfg config.Config, confirm chain.Confirmer) (*app, error) {
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	a := &app{cfg: cfg, db: db, hub: events.NewHub(hubBuffer)}
	a.backend = backend.NewClient(cfg.Game.BackendURL, backend.WithUserAgent("punkhunt/"+version))
	a.game = cache.NewGameStore(a.backend, a.hub, cfg.Timing.GamePoll, cfg.Timing.ActiveGamePoll)
	a.users = cache.NewRegistry(a.backend, db, a.hub, cache.UserOptions{
		Interval:        cfg.Timing.UserPoll,
		ActiveInterval:  cfg.Timing.ActiveUserPoll,
		SnapshotTTL:     cfg.Timing.BalanceCacheTTL,
		InvalidateDelay: time.Second,
	})
	a.holders = cache.NewHoldersStore(a.backend, a.hub, holdersTTL)

	a.sound = services.NewSoundBoard(ctx, a.hub, db)
	a.queue = services.NewNotificationQueue(services.QueueOptions{
		Expiry: cfg.Timing.NotificationExpiry,
		MaxLen: cfg.Timing.NotificationMax,
		Hub:    a.hub,
		Sound:  a.sound,
	})

	a.chain = chain.NewClient(cfg.Game.RPCURL)
	wallet, err := a.openWallet(ctx, confirm)
	if err != nil {
		a.close()
		return nil, err
	}

	a.reconciler = services.NewReconciler(services.ReconcilerOptions{
		Contract: common.HexToAddress(cfg.Game.ContractAddress),
		Receipts: a.chain,
		Queue:    a.queue,
		DB:       db,
		Stagger:  cfg.Timing.NotificationStagger,
	})

	// balance stays a nil interface, not a typed nil, without a wallet.
	var balance services.BalanceReader
	if wallet != nil {
		balance = a.users.User(wallet.Address())
	}
	a.lanes = services.NewLanes(wallet, a.game, balance, services.ControllerOptions{
		ConfirmedWindow:     cfg.Timing.ConfirmedWindow,
		FailedWindow:        cfg.Timing.FailedWindow,
		BalanceRefreshDelay: cfg.Timing.BalanceRefreshDelay,
		Hub:                 a.hub,
		Sound:               a.sound,
		Outcomes:            a.reconciler,
		BaseContext:         ctx,
	})

	a.socket, err = realtime.NewSocket(cfg.Game.SocketURL, realtime.WithStateFunc(func(connected bool) {
		log.Info().Bool("connected", connected).Msg("trollbox connection changed")
	}))
	if err != nil {
		a.close()
		return nil, fmt.Errorf("socket url: %w", err)
	}
	a.feed = realtime.NewChatFeed(a.socket, realtime.FeedOptions{
		Hub:         a.hub,
		Leaderboard: a.holders,
		Game:        a.game,
	})
	a.socket.Handle(a.feed.HandleEvent)
	a.chat = services.NewChatService(a.feed, a.game)

	if a.help, err = search.Help(); err != nil {
		a.close()
		return nil, fmt.Errorf("load help: %w", err)
	}
	return a, nil
}

// openWallet returns a signing wallet when a key is configured, a watch-only
// wallet when only an address is, and nil otherwise.
func (a *app) openWallet(ctx context.Context, confirm chain.Confirmer) (services.Wallet, error) {
	g := a.cfg.Game
	switch {
	case g.WalletKey != "":
		dctx, cancel := context.WithTimeout(ctx, chainDialTimeout)
		defer cancel()
		if err := a.chain.Connect(dctx); err != nil {
			return nil, err
		}
		id, err := a.chain.ChainID(dctx)
		if err != nil {
			return nil, err
		}
		if g.ChainID != 0 && id.Int64() != g.ChainID {
			return nil, fmt.Errorf("rpc serves chain %s, expected %d", id, g.ChainID)
		}
		w, err := chain.NewKeyedWallet(a.chain, common.HexToAddress(g.ContractAddress), g.WalletKey, confirm, a.cfg.Timing.ReceiptTimeout)
		if err != nil {
			return nil, err
		}
		log.Info().Str("address", w.Address()).Int64("chain_id", id.Int64()).Msg("wallet connected")
		return w, nil
	case g.WalletAddress != "":
		w, err := chain.NewWatchWallet(g.WalletAddress)
		if err != nil {
			return nil, err
		}
		log.Info().Str("address", w.Address()).Msg("watch-only wallet")
		return w, nil
	}
	log.Info().Msg("no wallet configured; lanes are disabled")
	return nil, nil
}

// address is the connected wallet, or "".
func (a *app) address() string { return a.lanes.Address() }

// deps exposes the components to the HTTP handlers.
func (a *app) deps() handlers.Deps {
	return handlers.Deps{
		Game:          a.game,
		Holders:       a.holders,
		Balances:      func(addr string) handlers.BalanceStore { return a.users.User(addr) },
		Lanes:         a.lanes,
		Notifications: a.queue,
		History:       httpapi.HistoryStore{DB: a.db},
		Events:        a.hub,
		Chat:          a.chat,
		Sound:         a.sound,
		Help:          a.help,
		Manifest:      a.cfg.Manifest,
		HelpThreshold: a.cfg.HelpThreshold,
	}
}

// runOptions selects the background loops run starts.
type runOptions struct {
	socket bool
	purge  bool
}

// run drives the pollers (and optionally the trollbox socket and record
// purge) until ctx is done.
func (a *app) run(ctx context.Context, opts runOptions) error {
	g, gctx := errgroup.WithContext(ctx)
	a.users.Start(gctx)
	g.Go(func() error {
		a.game.Run(gctx)
		return nil
	})
	if opts.socket {
		g.Go(func() error { return ignoreCancel(a.socket.Run(gctx)) })
	}
	if opts.purge {
		g.Go(func() error {
			a.purgeLoop(gctx)
			return nil
		})
	}
	return g.Wait()
}

// purgeLoop deletes expired idempotency records.
func (a *app) purgeLoop(ctx context.Context) {
	t := time.NewTicker(purgeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeExpiredIdempotency(ctx, a.db, now.UTC())
			if err != nil {
				log.Warn().Err(err).Msg("purge idempotency records failed")
				continue
			}
			if n > 0 {
				log.Debug().Int64("deleted", n).Msg("purged idempotency records")
			}
		}
	}
}

func (a *app) close() {
	a.hub.Close()
	if a.chain != nil {
		_ = a.chain.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
