package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"workshop-scheduler/internal/api"
	"workshop-scheduler/internal/availability"
	"workshop-scheduler/internal/breaks"
	"workshop-scheduler/internal/mw"
	"workshop-scheduler/internal/notification"
	"workshop-scheduler/internal/recompute"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the break sweeper and push delivery",
	RunE:  serve,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := setup(ctx, "workshopd")
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg := rt.cfg

	var webpushOptions *webpush.Options
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
	} else {
		rt.log.Warn().Msg("VAPID keys are not configured, push notifications disabled")
	}

	g, ctx := errgroup.WithContext(ctx)

	if webpushOptions != nil {
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, rt.db, webpushOptions, rt.metrics,
			rt.log.With().Str("component", "notification").Logger())
		pool.Start(ctx)
		sub := rt.bus.Subscribe()
		g.Go(func() error {
			defer rt.bus.Unsubscribe(sub)
			pool.Forward(ctx, sub)
			return nil
		})
	}

	sweeper := breaks.NewSweeper(rt.tracker, cfg.Scheduling.BreakSweepInterval,
		rt.log.With().Str("component", "sweeper").Logger())
	g.Go(func() error {
		sweeper.Run(ctx)
		return nil
	})

	limiter := mw.NewIPRateLimiter(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst)
	g.Go(func() error {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if n := limiter.Prune(30 * time.Minute); n > 0 {
					rt.log.Debug().Int("clients", n).Msg("pruned idle rate limiters")
				}
			}
		}
	})

	handler := api.NewHandler(
		rt.store,
		rt.tracker,
		availability.NewChecker(rt.store),
		recompute.NewService(rt.store, rt.bus, rt.metrics,
			rt.log.With().Str("component", "recompute").Logger(), cfg.Scheduling.RecomputeTimeout),
		webpushOptions,
		cfg.Scheduling.Location,
	)
	router := api.NewRouter(handler, api.RouterOptions{
		CacheTTL: time.Duration(cfg.Server.CacheTTLSeconds) * time.Second,
		Metrics:  rt.metrics,
		Logger:   rt.log.With().Str("component", "http").Logger(),
		Limiter:  limiter,
	})
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		rt.log.Info().Int("port", cfg.Server.Port).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		rt.log.Info().Msg("shutdown signal received, stopping services")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	rt.log.Info().Msg("server gracefully stopped")
	return nil
}
