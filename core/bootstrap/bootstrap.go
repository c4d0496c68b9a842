package bootstrap

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	corecache "github.com/riky-24/bot-medsos-sub000/core/cache"
	coreconfig "github.com/riky-24/bot-medsos-sub000/core/config"
	coredatabase "github.com/riky-24/bot-medsos-sub000/core/database"
	"github.com/riky-24/bot-medsos-sub000/core/logger"
)

// Options control the generic bootstrap pipeline shared between bots.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config
	Cache    corecache.Config

	LoggerInit   func(*coreconfig.Config) error
	Connect      func(coredatabase.Config) (*sqlx.DB, error)
	Migrate      func(coredatabase.Config) error
	CacheConnect func(context.Context, corecache.Config) (*corecache.Cache, error)
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	DB    *sqlx.DB
	Cache *corecache.Cache
}

// Run initializes the logger, connects to the database, applies migrations,
// and connects the optional Redis cache.
func Run(opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	connect := opts.Connect
	if connect == nil {
		connect = coredatabase.Connect
	}
	db, err := connect(opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}

	migrate := opts.Migrate
	if migrate == nil {
		migrate = coredatabase.RunMigrations
	}
	if err := migrate(opts.Database); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
	}

	cacheConnect := opts.CacheConnect
	if cacheConnect == nil {
		cacheConnect = corecache.Connect
	}
	cacheClient, err := cacheConnect(context.Background(), opts.Cache)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: cache initialization failed: %w", err)
	}

	return &Result{DB: db, Cache: cacheClient}, nil
}
