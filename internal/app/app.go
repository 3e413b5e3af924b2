package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/backtrackers-api/internal/handler"
	"github.com/noah-isme/backtrackers-api/internal/repository"
	"github.com/noah-isme/backtrackers-api/internal/service"
	"github.com/noah-isme/backtrackers-api/pkg/cache"
	"github.com/noah-isme/backtrackers-api/pkg/config"
	"github.com/noah-isme/backtrackers-api/pkg/database"
	"github.com/noah-isme/backtrackers-api/pkg/imaging"
	"github.com/noah-isme/backtrackers-api/pkg/storage"
)

// App owns the HTTP server and the connections behind it.
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *sqlx.DB
	cache  *repository.CacheRepository
	server *http.Server
}

// New connects to Postgres and, when enabled, Redis, then wires every service into the router.
// A Redis outage at startup disables the listing cache instead of failing.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	cacheEnabled := cfg.Search.CacheEnabled && cfg.Redis.Enabled
	cacheRepo := repository.NewCacheRepository(nil, logger)
	if cacheEnabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("redis unavailable, listing cache disabled", zap.Error(err))
			cacheEnabled = false
		} else {
			cacheRepo = repository.NewCacheRepository(client, logger)
		}
	}

	blobs, err := storage.NewLocalStorage(cfg.Media.StorageDir)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init media storage: %w", err)
	}
	media := storage.NewMediaStore(blobs, imaging.NewNormalizer(cfg.Media.AllowedMIMEs, cfg.Media.MaxDimension), cfg.Media.PublicBaseURL, logger)

	validate := validator.New()
	metrics := service.NewMetricsService()
	users := repository.NewUserRepository(db)
	itemsRepo := repository.NewItemRepository(db)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Search.CacheTTL, logger, cacheEnabled)
	items := service.NewItemService(itemsRepo, media, cacheSvc, metrics, validate, logger, service.ItemServiceConfig{
		MaxImages: cfg.Media.MaxImages,
		CacheTTL:  cfg.Search.CacheTTL,
	})

	svc := Services{
		Auth: service.NewAuthService(users, validate, logger, service.AuthConfig{
			AccessTokenSecret: cfg.JWT.Secret,
			AccessTokenExpiry: cfg.JWT.Expiration,
			Issuer:            cfg.JWT.Issuer,
		}),
		Items:         items,
		Verifications: service.NewVerificationService(repository.NewVerificationRepository(db), items, metrics, validate, logger),
		Search:        service.NewSearchService(items, cfg.Search.MaxResults),
		Export:        service.NewExportService(itemsRepo, logger),
		Metrics:       metrics,
		Audit:         users,
		Ready: map[string]handler.Pinger{
			"database": itemsRepo,
			"cache":    cacheRepo,
		},
	}

	return &App{
		cfg:    cfg,
		logger: logger,
		db:     db,
		cache:  cacheRepo,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           NewRouter(cfg, logger, svc),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       60 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}, nil
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Sugar().Infow("server starting", "addr", a.server.Addr, "env", a.cfg.Env)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close releases database and cache connections.
func (a *App) Close() {
	if err := a.cache.Close(); err != nil {
		a.logger.Warn("close redis", zap.Error(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("close postgres", zap.Error(err))
	}
}
