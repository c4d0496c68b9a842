package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/riky-24/bot-medsos-sub000/core/bootstrap"
	"github.com/riky-24/bot-medsos-sub000/core/logger"
	coremetrics "github.com/riky-24/bot-medsos-sub000/core/metrics"
	tg "github.com/riky-24/bot-medsos-sub000/core/telegram"
	"github.com/riky-24/bot-medsos-sub000/core/telegram/middleware"
	"github.com/riky-24/bot-medsos-sub000/core/telegram/router"
	tgsender "github.com/riky-24/bot-medsos-sub000/core/telegram/sender"
	"github.com/riky-24/bot-medsos-sub000/core/telegram/state"
	"github.com/riky-24/bot-medsos-sub000/core/telegram/ui"
	"github.com/riky-24/bot-medsos-sub000/internal/catalog"
	"github.com/riky-24/bot-medsos-sub000/internal/chatlock"
	"github.com/riky-24/bot-medsos-sub000/internal/ratelimit"
	"github.com/riky-24/bot-medsos-sub000/internal/recon"
	"github.com/riky-24/bot-medsos-sub000/internal/repo"
	"github.com/riky-24/bot-medsos-sub000/internal/shop"
	"github.com/riky-24/bot-medsos-sub000/internal/tripay"
	"github.com/riky-24/bot-medsos-sub000/internal/webhook"
)

// App owns the wired storefront and exposes the bot run options.
type App struct {
	cfg  *Config
	boot *bootstrap.Result

	metrics    *coremetrics.Metrics
	dispatcher *tgsender.Dispatcher

	sessions state.Manager
	locks    *chatlock.Guard
	refresh  *ratelimit.Cooldown
	updates  *ratelimit.Cooldown
	quota    *ratelimit.Quota

	transactions *repo.Transactions
	provider     *catalog.Client
	catalogSvc   *catalog.Service
	validator    *catalog.Validator
	gateway      *tripay.Client
	channels     *tripay.ChannelService

	messenger  *lateMessenger
	bubble     *ui.Bubble
	reconciler *recon.Reconciler
	callbacks  *webhook.Server

	sweepDone chan struct{}
	stopOnce  sync.Once
}

// New bootstraps infrastructure (logger, Postgres, migrations, Redis)
// and wires every component that does not need the live bot.
func New(cfg *Config) (*App, error) {
	boot, err := bootstrap.Run(bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.Database,
		Cache:    cfg.Cache,
	})
	if err != nil {
		return nil, err
	}

	m := coremetrics.Registry(cfg.Metrics.Namespace)
	middleware.SetMetrics(m)

	a := &App{
		cfg:       cfg,
		boot:      boot,
		metrics:   m,
		sweepDone: make(chan struct{}),
	}

	a.dispatcher = tgsender.NewDispatcher(tgsender.Options{})

	a.sessions = state.NewMemoryManager(cfg.Session.TTL)
	a.locks = chatlock.NewGuard()
	a.refresh = ratelimit.NewCooldown(cfg.Limits.RefreshCooldown, cfg.Limits.SweepEvery)
	a.quota = ratelimit.NewQuota(cfg.Limits.ValidateMax, cfg.Limits.ValidateWindow, cfg.Limits.SweepEvery)
	if interval := time.Duration(cfg.Core.RateLimit.IntervalMS) * time.Millisecond; interval > 0 {
		a.updates = ratelimit.NewCooldown(interval, cfg.Limits.SweepEvery)
	}

	a.transactions = repo.NewTransactions(boot.DB)

	a.provider = catalog.NewClient(cfg.VIP, m)
	a.catalogSvc = catalog.NewService(a.provider, boot.Cache, cfg.VIP.CacheTTL)
	a.validator = catalog.NewValidator(a.provider)

	a.gateway = tripay.NewClient(cfg.Tripay, m)
	a.channels = tripay.NewChannelService(a.gateway, boot.Cache, cfg.Tripay.ChannelCacheTTL)

	a.messenger = &lateMessenger{}
	a.bubble = ui.NewBubble(a.messenger, a.sessions)

	a.reconciler = recon.New(a.transactions, a.gateway, a.provider, shop.NewStatusNotifier(a.bubble), a.dispatcher, m)
	a.callbacks = webhook.NewServer(cfg.Callback, webhook.NewHandler(cfg.Tripay.PrivateKey, a.reconciler, m))

	return a, nil
}

// TelegramRunOptions registers the storefront handlers and assembles
// the run options for the core runtime.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	core := a.cfg.CoreConfig()

	reg := tg.NewRegistry()
	handlers := shop.New(a.cfg.Shop, shop.Deps{
		Sessions:     a.sessions,
		Bubble:       a.bubble,
		Catalog:      a.catalogSvc,
		Validator:    a.validator,
		Channels:     a.channels,
		Gateway:      a.gateway,
		Store:        a.transactions,
		Recon:        a.reconciler,
		Locks:        a.locks,
		Cooldown:     a.refresh,
		Quota:        a.quota,
		Metrics:      a.metrics,
		CatalogCache: a.catalogSvc,
		ChannelCache: a.channels,
	})
	handlers.Register(reg)

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: core.Telegram.AdminID,
	})
	routes = append(routes, router.TextRoutes(a.sessions, reg, router.TextOptions{})...)
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))

	var limiter middleware.Allower
	if a.updates != nil {
		limiter = a.updates
	}

	return tg.RunOptions{
		Config:      core,
		Registry:    reg,
		Dispatcher:  a.dispatcher,
		Middlewares: tg.DefaultMiddlewares(core, limiter, nil),
		Routes:      routes,
		OnStart:     a.onStart,
		OnStop:      a.onStop,
	}, nil
}

func (a *App) onStart(ctx context.Context, rt tg.Runtime) error {
	a.messenger.Bind(ui.NewTelebotMessenger(rt.Bot))

	// Warm failures are not fatal; the catalog falls back to Redis or
	// the first on-demand load.
	if err := a.catalogSvc.Warm(ctx); err != nil {
		logger.Warn(ctx, "app", "catalog.warm",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}

	go func() {
		if err := a.callbacks.Start(); err != nil {
			logger.Error(context.Background(), "app", "webhook.serve",
				slog.String("err", err.Error()),
			)
		}
	}()

	go a.sweepLoop(ctx)

	return nil
}

func (a *App) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.Session.SweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.sweepDone:
			return
		case <-ticker.C:
			removed := a.sessions.CleanupExpired(a.cfg.Session.MaxIdle)
			active := a.sessions.Len()
			a.metrics.SessionsActive.Set(float64(active))
			if removed > 0 {
				logger.Debug(ctx, "app", "session.sweep",
					slog.Int("removed", removed),
					slog.Int("active", active),
				)
			}
		}
	}
}

func (a *App) onStop(ctx context.Context, rt tg.Runtime) error {
	a.stopOnce.Do(func() { close(a.sweepDone) })

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.callbacks.Shutdown(shutdownCtx); err != nil {
		logger.Warn(shutdownCtx, "app", "webhook.shutdown",
			slog.String("err", err.Error()),
		)
	}

	a.refresh.Close()
	if a.updates != nil {
		a.updates.Close()
	}
	a.quota.Close()
	a.locks.Close()

	return nil
}

// Close releases the database and cache handles. Call it only after
// the bot runtime has returned; detached reconciler jobs write through
// these handles until the dispatcher drains.
func (a *App) Close() error {
	var errs []error
	if a.boot.Cache != nil {
		if err := a.boot.Cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cache: %w", err))
		}
	}
	if a.boot.DB != nil {
		if err := a.boot.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}
