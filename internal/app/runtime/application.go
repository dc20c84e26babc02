// Package runtime builds the record store from configuration and runs its
// HTTP server.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"

	app "github.com/R3E-Network/recordstore/internal/app"
	"github.com/R3E-Network/recordstore/internal/app/auth"
	"github.com/R3E-Network/recordstore/internal/app/cache"
	"github.com/R3E-Network/recordstore/internal/app/httpapi"
	"github.com/R3E-Network/recordstore/internal/app/storage/postgres"
	"github.com/R3E-Network/recordstore/internal/config"
	"github.com/R3E-Network/recordstore/internal/logging"
	"github.com/R3E-Network/recordstore/internal/middleware"
	"github.com/R3E-Network/recordstore/internal/platform/database"
	"github.com/R3E-Network/recordstore/internal/platform/migrations"
)

const auditCapacity = 500

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg        *config.Config
	log        *logging.Logger
	app        *app.Application
	handler    http.Handler
	httpServer *http.Server
	limiter    *middleware.RateLimiter

	db        *sqlx.DB
	redis     *cache.Redis
	auditFile *httpapi.FileAuditSink
	stop      chan struct{}
}

// NewApplication connects to the configured backends and builds the HTTP
// handler. An empty database DSN selects the in-memory store and an empty
// redis address the in-process cache.
func NewApplication(ctx context.Context, cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	log := logging.New("recordstore", cfg.Logging.Level, cfg.Logging.Format)
	a := &Application{cfg: cfg, log: log, stop: make(chan struct{})}

	health := map[string]httpapi.HealthCheck{}
	stores, err := a.buildStores(ctx, health)
	if err != nil {
		a.closeBackends()
		return nil, fmt.Errorf("configure stores: %w", err)
	}
	catalogCache, err := a.buildCache(ctx, health)
	if err != nil {
		a.closeBackends()
		return nil, fmt.Errorf("configure cache: %w", err)
	}

	opts := app.Options{Cache: catalogCache, CacheTTL: cfg.Redis.CacheTTL}
	if cfg.Sweeper.Enabled {
		opts.SweepSchedule = cfg.Sweeper.Schedule
		opts.CartTTL = cfg.Sweeper.CartTTL
	}
	application, err := app.New(stores, opts, log)
	if err != nil {
		a.closeBackends()
		return nil, fmt.Errorf("build application: %w", err)
	}
	a.app = application

	uploads, err := middleware.NewUploadMiddleware(cfg.Uploads.Dir, cfg.Uploads.MaxBytes, nil, log.Named("upload"))
	if err != nil {
		a.closeBackends()
		return nil, err
	}

	var sinks []httpapi.AuditSink
	if cfg.Server.AuditLogPath != "" {
		fileSink, err := httpapi.NewFileAuditSink(cfg.Server.AuditLogPath)
		if err != nil {
			a.closeBackends()
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		a.auditFile = fileSink
		sinks = append(sinks, fileSink)
	}
	if a.db != nil {
		sinks = append(sinks, httpapi.NewPostgresAuditSink(a.db))
	}
	audit := httpapi.NewAuditLog(auditCapacity, sinks...).WithLogger(log.Named("audit"))

	if cfg.RateLimit.RequestsPerSecond > 0 {
		a.limiter = middleware.NewRateLimiter(float64(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst, log.Named("ratelimit"))
	}

	handler, err := httpapi.NewHandler(application, httpapi.Options{
		Auth:        auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Issuer),
		Uploads:     uploads,
		Audit:       audit,
		Limiter:     a.limiter,
		CORSOrigins: cfg.CORS.Origins(),
		Health:      health,
		Logger:      log.Named("http"),
	})
	if err != nil {
		a.closeBackends()
		return nil, err
	}
	a.handler = handler
	a.httpServer = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}
	return a, nil
}

func (a *Application) buildStores(ctx context.Context, health map[string]httpapi.HealthCheck) (app.Stores, error) {
	dbCfg := a.cfg.Database
	if dbCfg.DSN == "" {
		a.log.Warn("DATABASE_URL not set; using in-memory store")
		return app.Stores{}, nil
	}

	db, err := database.Open(ctx, dbCfg.DSN, database.Options{
		MaxOpenConns:    dbCfg.MaxOpenConns,
		MaxIdleConns:    dbCfg.MaxIdleConns,
		ConnMaxLifetime: dbCfg.ConnMaxLifetime,
	})
	if err != nil {
		return app.Stores{}, err
	}
	a.db = db

	if dbCfg.AutoMigrate {
		if err := migrations.Apply(ctx, db.DB); err != nil {
			return app.Stores{}, fmt.Errorf("apply migrations: %w", err)
		}
		a.log.Info("database migrations applied")
	}

	store := postgres.New(db)
	health["postgres"] = store.Ping
	return app.Stores{
		Users:   store,
		Genres:  store,
		Groups:  store,
		Records: store,
		Carts:   store,
		Orders:  store,
	}, nil
}

func (a *Application) buildCache(ctx context.Context, health map[string]httpapi.HealthCheck) (cache.Cache, error) {
	redisCfg := a.cfg.Redis
	if redisCfg.Addr == "" {
		return cache.NewMemory(), nil
	}
	r, err := cache.NewRedis(ctx, cache.RedisOptions{
		Addr:     redisCfg.Addr,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})
	if err != nil {
		return nil, err
	}
	a.redis = r
	health["redis"] = r.Ping
	return r, nil
}

// App exposes the composed services.
func (a *Application) App() *app.Application {
	return a.app
}

// Handler is the fully wrapped HTTP handler.
func (a *Application) Handler() http.Handler {
	return a.handler
}

// Run starts background services and the HTTP server, blocking until ctx is
// cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}
	if a.limiter != nil {
		a.limiter.StartCleanup(5*time.Minute, a.stop)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.WithField("addr", a.httpServer.Addr).Info("HTTP server listening")
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown stops the HTTP server, background services and backends.
func (a *Application) Shutdown(ctx context.Context) error {
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var errs []error
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http server: %w", err))
	}
	if err := a.app.Stop(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("services: %w", err))
	}
	select {
	case <-a.stop:
	default:
		close(a.stop)
	}
	a.closeBackends()
	return errors.Join(errs...)
}

func (a *Application) closeBackends() {
	if a.auditFile != nil {
		if err := a.auditFile.Close(); err != nil {
			a.log.WithError(err).Warn("error closing audit log")
		}
		a.auditFile = nil
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.WithError(err).Warn("error closing redis connection")
		}
		a.redis = nil
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("error closing database connection")
		}
		a.db = nil
	}
}
