package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/blocknews/blocknews/internal/aggregator"
	"github.com/blocknews/blocknews/internal/auth"
	"github.com/blocknews/blocknews/internal/cache"
	"github.com/blocknews/blocknews/internal/config"
	"github.com/blocknews/blocknews/internal/database"
	"github.com/blocknews/blocknews/internal/httpapi"
	"github.com/blocknews/blocknews/internal/logging"
	"github.com/blocknews/blocknews/internal/ratelimit"
	"github.com/blocknews/blocknews/internal/sources"
)

// App holds all application dependencies
type App struct {
	Config         *config.Config
	Logger         *logging.Logger
	Cache          cache.Cache
	Aggregator     *aggregator.Aggregator
	AuthService    *auth.Service
	AuthMiddleware *auth.Middleware
	HTTPServer     *httpapi.Server

	db           *database.DB
	articleStore *database.ArticleStore
	xdataStore   *database.XDataStore
	xuserStore   *database.XUserStore
	scheduler    *cron.Cron
}

// New creates and initializes a new App instance
func New(cfg *config.Config) (*App, error) {
	app := &App{Config: cfg}

	// Initialize logger
	app.Logger = app.initLogger()

	// Initialize cache
	app.Cache = app.initCache()

	// Initialize feed fetchers behind a per-host rate limiter
	limiter := ratelimit.New(cfg.Server.RateLimitDur)
	fetchers := app.initFetchers(limiter)

	// Initialize aggregator
	app.Aggregator = aggregator.New(fetchers, app.Cache, app.Logger, aggregator.Options{
		MaxCount: cfg.News.MaxCount,
		CacheTTL: cfg.News.CacheTTL,
	})

	// Initialize auth
	app.AuthService = auth.NewService(cfg.Auth)
	app.AuthMiddleware = auth.NewMiddleware(app.AuthService)

	// Initialize database and stores
	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	// Initialize HTTP server
	app.initServer()

	return app, nil
}

// Run starts the HTTP server, the scheduled refresh, and a background
// warm-up fetch.
func (a *App) Run(ctx context.Context) error {
	if err := a.startScheduler(); err != nil {
		a.Logger.Warn("Scheduled refresh disabled", logging.WithField("error", err.Error()))
	}

	// Pre-fetch news feeds in background
	go func() {
		a.Logger.Info("Pre-fetching news feeds in background...")
		if _, err := a.Aggregator.Refresh(ctx); err != nil {
			a.Logger.Warn("Initial fetch had errors", logging.WithField("error", err.Error()))
		} else {
			a.Logger.Info("Initial fetch complete")
		}
	}()

	a.Logger.Info("Starting HTTP server", logging.WithField("addr", a.Config.Server.HTTPAddr))
	return a.HTTPServer.Start(a.Config.Server.HTTPAddr)
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown(ctx context.Context) error {
	if a.scheduler != nil {
		stopCtx := a.scheduler.Stop()
		select {
		case <-stopCtx.Done():
		case <-ctx.Done():
		}
	}

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error("HTTP server shutdown error", logging.WithField("error", err.Error()))
		}
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.Logger.Error("Database close error", logging.WithField("error", err.Error()))
		}
	}

	return nil
}

func (a *App) initLogger() *logging.Logger {
	level := logging.LevelInfo
	switch a.Config.Logging.Level {
	case "debug":
		level = logging.LevelDebug
	case "warn":
		level = logging.LevelWarn
	case "error":
		level = logging.LevelError
	}
	return logging.New(level)
}

func (a *App) initCache() cache.Cache {
	switch a.Config.Cache.Backend {
	case "redis":
		a.Logger.Info("Using Redis cache backend", logging.WithField("addr", a.Config.Cache.RedisAddr))
		redisCache, err := cache.NewRedis(cache.RedisConfig{
			Addr: a.Config.Cache.RedisAddr,
		}, a.Config.Cache.TTL)
		if err != nil {
			a.Logger.Error("Failed to connect to Redis, falling back to memory cache", logging.WithField("error", err.Error()))
			return cache.NewMemory(a.Config.Cache.TTL)
		}
		return redisCache
	default:
		a.Logger.Info("Using in-memory cache backend")
		return cache.NewMemory(a.Config.Cache.TTL)
	}
}

func (a *App) initFetchers(limiter *ratelimit.Limiter) []sources.Fetcher {
	fetcherConfig := sources.DefaultConfig()

	// A feeds.json file overrides the flat RSS feed list, allowing site
	// scrapers alongside RSS sources.
	if configPath := sources.FindFeedsConfig(); configPath != "" {
		feedsConfig, err := sources.LoadFeedsConfig(configPath)
		if err != nil {
			a.Logger.Warn("Failed to load feeds config, using configured feed URLs", logging.WithFields(map[string]interface{}{
				"path":  configPath,
				"error": err.Error(),
			}))
		} else {
			a.Logger.Info("Loaded feeds configuration", logging.WithFields(map[string]interface{}{
				"path":    configPath,
				"sources": len(feedsConfig.Sources),
			}))
			return sources.FetchersFromConfig(feedsConfig, limiter, fetcherConfig)
		}
	}

	return sources.NewRSSFetchers(a.Config.News.Feeds, limiter, fetcherConfig)
}

func (a *App) initDatabase() error {
	dbConfig := database.DefaultConfig()
	dbConfig.Host = a.Config.Database.Host
	dbConfig.Port = a.Config.Database.Port
	dbConfig.User = a.Config.Database.User
	dbConfig.Password = a.Config.Database.Password
	dbConfig.Database = a.Config.Database.Database
	dbConfig.SSLMode = a.Config.Database.SSLMode

	db, err := database.New(dbConfig)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}

	if err := db.Migrate(context.Background()); err != nil {
		db.Close()
		return fmt.Errorf("run migrations: %w", err)
	}

	a.Logger.Info("Connected to PostgreSQL")

	a.db = db
	a.articleStore = database.NewArticleStore(db)
	a.xdataStore = database.NewXDataStore(db)
	a.xuserStore = database.NewXUserStore(db)

	return nil
}

func (a *App) initServer() {
	articlesAPI := httpapi.NewArticlesAPI(a.articleStore, a.Config.Sources, a.Config.Server.BaseURL, a.Logger)
	xAPI := httpapi.NewXAPI(a.xdataStore, a.xuserStore, a.Config.Server.BaseURL, a.Logger)
	newsAPI := httpapi.NewNewsAPI(a.Aggregator, a.Logger)

	a.HTTPServer = httpapi.New(articlesAPI, xAPI, newsAPI, a.Aggregator, a.AuthMiddleware, a.Logger)
}

// startScheduler arms the optional cron-driven news refresh.
func (a *App) startScheduler() error {
	spec := a.Config.News.RefreshCron
	if spec == "" {
		return nil
	}

	a.scheduler = cron.New()
	_, err := a.scheduler.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		items, err := a.Aggregator.Refresh(ctx)
		if err != nil {
			a.Logger.Warn("Scheduled refresh failed", logging.WithField("error", err.Error()))
			return
		}
		a.Logger.Info("Scheduled refresh complete", logging.WithField("items", len(items)))
	})
	if err != nil {
		a.scheduler = nil
		return fmt.Errorf("invalid refresh cron %q: %w", spec, err)
	}

	a.scheduler.Start()
	a.Logger.Info("Scheduled news refresh armed", logging.WithField("cron", spec))
	return nil
}
