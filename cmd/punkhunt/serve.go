// cmd/punkhunt/serve.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/punkhunt/internal/events"
	httpapi "github.com/tbourn/punkhunt/internal/http"
	"github.com/tbourn/punkhunt/internal/observability"
)

const shutdownGrace = 10 * time.Second

func newServeCmd() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the companion HTTP API",
		Long: `Run the companion HTTP API: game data, lanes, notifications, the
server-sent event stream, the trollbox and the mini-app manifest.

Submissions through the API are treated as already confirmed by the caller;
no terminal prompt is shown.

Examples:
  # Serve on the configured PORT
  punkhunt serve

  # Serve on another port with debug logs
  punkhunt serve --port 9090 --log-level debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port != "" {
				cfg.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "override PORT")
	return cmd
}

func serve(ctx context.Context) error {
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version,
		attribute.Int64("chain.id", cfg.Game.ChainID),
		attribute.String("game.contract", cfg.Game.ContractAddress),
	)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	a, err := newApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.close()
	prometheus.MustRegister(hubCollectors(a.hub)...)

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, a.deps(), httpapi.NewIdempotencyStore(a.db, cfg.IdempotencyTTL), cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.run(gctx, runOptions{socket: true, purge: true})
	})
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("base", cfg.APIBasePath).Str("version", version).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		// Closing the hub ends open event streams.
		a.hub.Close()
		log.Info().Msg("shutting down")
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

// hubCollectors exposes the event hub's fan-out health.
func hubCollectors(h *events.Hub) []prometheus.Collector {
	return []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "punkhunt_event_subscribers",
			Help: "Open event hub subscriptions (SSE streams and CLI followers).",
		}, func() float64 { return float64(h.Subscribers()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "punkhunt_events_dropped_total",
			Help: "Events dropped because a subscriber buffer was full.",
		}, func() float64 { return float64(h.Dropped()) }),
	}
}
