package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cuongdcdev/shade-trader/internal/scheduler"
	"github.com/cuongdcdev/shade-trader/internal/server"
	"github.com/cuongdcdev/shade-trader/internal/server/handler"
	"github.com/cuongdcdev/shade-trader/internal/service"
)

// TradeMode runs the order processor loop. The HTTP server is started
// alongside it when enabled.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode")

	g, ctx := errgroup.WithContext(ctx)

	sched := a.buildScheduler(deps)
	a.runScheduler(ctx, g, sched)

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, sched)
	}

	return g.Wait()
}

// MonitorMode polls market data on the processor interval without
// touching any orders, and serves the API read-only alongside. Useful
// for verifying provider connectivity before funding a wallet.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)

	interval := a.cfg.Scheduler.Interval.Duration
	if interval <= 0 {
		interval = scheduler.DefaultInterval
	}
	symbols := []string{a.cfg.Intents.BaseToken, "NEAR", "BTC"}

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				snap, err := deps.Market.Snapshot(ctx, symbols)
				if err != nil {
					a.logger.WarnContext(ctx, "monitor: snapshot failed",
						slog.String("error", err.Error()),
					)
					continue
				}
				a.logger.InfoContext(ctx, "monitor: snapshot",
					slog.Int("prices", len(snap.Prices)),
					slog.Float64("btc_dominance", snap.BTCDominance),
				)
			}
		}
	})

	a.startHTTPServer(ctx, g, deps, nil)

	return g.Wait()
}

// ServerMode serves the API without auto-starting the processor. The
// processor endpoints can still start it on demand.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)

	sched := a.buildScheduler(deps)
	g.Go(func() error {
		<-ctx.Done()
		sched.Stop()
		return ctx.Err()
	})

	a.startHTTPServer(ctx, g, deps, sched)

	return g.Wait()
}

// FullMode runs the processor loop and the HTTP server together.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	sched := a.buildScheduler(deps)
	a.runScheduler(ctx, g, sched)
	a.startHTTPServer(ctx, g, deps, sched)

	return g.Wait()
}

// buildScheduler assembles the order processor from wired dependencies.
func (a *App) buildScheduler(deps *Dependencies) *scheduler.Scheduler {
	return scheduler.New(
		scheduler.Config{
			Interval:  a.cfg.Scheduler.Interval.Duration,
			BaseToken: a.cfg.Intents.BaseToken,
			LockTTL:   a.cfg.Scheduler.LockTTL.Duration,
		},
		deps.OrderStore,
		deps.UserStore,
		deps.Market,
		deps.Engine,
		deps.Notifier,
		deps.LockManager,
		a.logger,
	)
}

// runScheduler starts the processor loop and ties its lifetime to the
// group context.
func (a *App) runScheduler(ctx context.Context, g *errgroup.Group, sched *scheduler.Scheduler) {
	sched.Start()
	g.Go(func() error {
		<-ctx.Done()
		sched.Stop()
		return ctx.Err()
	})
}

// startHTTPServer builds the handler set and runs the API server on the
// group. A nil sched leaves the processor endpoints unregistered.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, sched *scheduler.Scheduler) {
	orderSvc := service.NewOrderService(deps.OrderStore, deps.UserStore, deps.Registry, a.logger)
	walletSvc := service.NewWalletService(deps.Engine, deps.Registry, a.logger)

	handlers := server.Handlers{
		Health:  handler.NewHealthHandler(a.logger),
		Orders:  handler.NewOrderHandler(orderSvc, a.logger),
		Users:   handler.NewUserHandler(orderSvc, a.logger),
		Wallets: handler.NewWalletHandler(walletSvc, a.logger),
	}
	if sched != nil {
		handlers.Processor = handler.NewProcessorHandler(sched, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		Limiter:         deps.RateLimiter,
		RateLimitPerMin: a.cfg.Server.RateLimitPerMin,
	}, handlers, a.logger)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.Int("port", a.cfg.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", a.cfg.Server.Port)),
		)
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			a.logger.Warn("HTTP server shutdown failed", slog.String("error", err.Error()))
		}
		return ctx.Err()
	})
}
