// Package app provides the top-level application lifecycle for the campus
// market engine. It wires together all dependencies (stores, cache, event
// bus, blob storage, services, handlers) and runs the HTTP server, WebSocket
// hub, and archive loop until the context is cancelled.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/varsitymarkets/campusmarket/internal/config"
	"github.com/varsitymarkets/campusmarket/internal/notify"
	"github.com/varsitymarkets/campusmarket/internal/server"
	"github.com/varsitymarkets/campusmarket/internal/server/handler"
	"github.com/varsitymarkets/campusmarket/internal/server/ws"
	"github.com/varsitymarkets/campusmarket/internal/service"
)

// shutdownTimeout bounds how long in-flight requests may run after a
// termination signal.
const shutdownTimeout = 10 * time.Second

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, seeds starter
// markets, starts the server goroutines, and blocks until the context is
// cancelled. On return it runs all registered cleanup functions.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	a.logger.InfoContext(ctx, "starting engine",
		slog.String("storage", a.cfg.Storage.Driver),
		slog.Bool("redis", a.cfg.Redis.Enabled),
		slog.Bool("archive", a.cfg.Archive.Enabled),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	if err := seedMarkets(ctx, a.cfg, deps.Markets, a.logger); err != nil {
		return fmt.Errorf("app: %w", err)
	}

	// --- Services ---
	marketSvc := service.NewMarketService(
		deps.Markets,
		deps.Directory,
		deps.SignalBus,
		a.logger.With(slog.String("component", "market_service")),
	)
	tradeSvc := service.NewTradeService(
		deps.Ledger,
		deps.SeriesCache,
		deps.SignalBus,
		a.logger.With(slog.String("component", "trade_service")),
	)
	historySvc := service.NewHistoryService(
		deps.Ledger,
		deps.SeriesCache,
		a.logger.With(slog.String("component", "history_service")),
	)

	var archiver service.ArchiveTrigger
	if deps.Archive != nil {
		archiver = deps.Archive
	}
	resolutionSvc := service.NewResolutionService(
		deps.Ledger,
		deps.Directory,
		deps.SeriesCache,
		deps.SignalBus,
		archiver,
		a.logger.With(slog.String("component", "resolution_service")),
	)

	// --- HTTP server + WebSocket hub ---
	hub := ws.NewHub(deps.SignalBus, a.logger.With(slog.String("component", "ws")))

	handlers := server.Handlers{
		Health:  handler.NewHealthHandler(a.logger),
		Markets: handler.NewMarketHandler(marketSvc, historySvc, a.logger),
		Trades:  handler.NewTradeHandler(tradeSvc, a.logger),
		Resolve: handler.NewResolveHandler(resolutionSvc, a.logger),
		History: handler.NewHistoryHandler(historySvc, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, hub, a.logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		if err := hub.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if deps.Archive != nil {
		g.Go(func() error {
			if err := deps.Archive.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	// Chat announcements, when any channel is configured.
	var senders []notify.Sender
	if a.cfg.Notify.TelegramToken != "" && a.cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(a.cfg.Notify.TelegramToken, a.cfg.Notify.TelegramChatID))
	}
	if a.cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(a.cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) > 0 {
		announcer := notify.NewAnnouncer(deps.SignalBus, senders, a.logger)
		g.Go(func() error {
			if err := announcer.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	// Stop accepting requests once the context is cancelled or any goroutine
	// fails.
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("app: %w", err)
	}
	return nil
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
