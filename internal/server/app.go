// Package server wires the identity service together: storage, lockout,
// metrics and the HTTP and gRPC transports, with graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/khazana/internal/logging"
	"github.com/dmitrijs2005/khazana/internal/server/auth"
	"github.com/dmitrijs2005/khazana/internal/server/config"
	"github.com/dmitrijs2005/khazana/internal/server/httpapi"
	"github.com/dmitrijs2005/khazana/internal/server/lockout"
	"github.com/dmitrijs2005/khazana/internal/server/metrics"
	"github.com/dmitrijs2005/khazana/internal/server/repositories/identities"
	"github.com/dmitrijs2005/khazana/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/khazana/internal/server/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/khazana/internal/server/grpc"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	metrics *metrics.Metrics
	service *services.IdentityService
	closers []func() error
}

// NewApp builds every component from c. The bootstrap admin is created
// before NewApp returns.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)
	app := &App{config: c, logger: logger}

	store, err := app.initStore(ctx)
	if err != nil {
		app.close()
		return nil, err
	}

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret:                c.JWTSecret,
		Algorithm:             c.JWTAlgorithm,
		RequireExplicitScopes: c.RequireExplicitScopes,
	})
	if err != nil {
		app.close()
		return nil, err
	}

	verifier, err := auth.NewCredentialVerifier(c.BcryptCost)
	if err != nil {
		app.close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.metrics = metrics.New(registry)

	app.service = services.NewIdentityService(services.Dependencies{
		Store:    store,
		Tokens:   tokens,
		Verifier: verifier,
		Lockout:  app.initLockout(),
		Metrics:  app.metrics,
		Logger:   logger,
	}, c)

	if err := app.service.EnsureBootstrapAdmin(ctx); err != nil {
		app.close()
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}

	return app, nil
}

func (app *App) initStore(ctx context.Context) (services.Store, error) {
	if app.config.DatabaseDSN == "" {
		app.logger.Warn(ctx, "no database configured, identities are kept in memory")
		return services.NewMemoryStore(identities.NewMemoryRepository()), nil
	}

	db, err := repomanager.Open(ctx, app.config.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app.closers = append(app.closers, db.Close)

	manager := repomanager.NewPostgresRepositoryManager()
	if err := manager.RunMigrations(ctx, db); err != nil {
		return nil, err
	}

	return services.NewSQLStore(db, manager), nil
}

func (app *App) initLockout() lockout.Store {
	if !app.config.LockoutEnabled() {
		return lockout.NoopStore{}
	}

	client := redis.NewClient(&redis.Options{Addr: app.config.RedisAddr})
	app.closers = append(app.closers, client.Close)
	return lockout.NewRedisStore(client, app.config.LockoutThreshold, app.config.LockoutWindow)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.GRPCAddr, app.logger, app.service)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "grpc server failed", "error", err)
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	h := httpapi.NewHandler(app.service, app.metrics, app.logger)
	srv := &http.Server{
		Addr:              app.config.HTTPAddr,
		Handler:           httpapi.NewRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "http shutdown failed", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", app.config.HTTPAddr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, "http server failed", "error", err)
		cancelFunc()
	}
}

// Run serves both transports until a signal arrives, ctx is cancelled or a
// transport fails, then releases storage and cache connections.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.close()
	app.logger.Info(context.Background(), "App stopped")
}

func (app *App) close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			app.logger.Error(context.Background(), "close failed", "error", err)
		}
	}
	app.closers = nil
}
