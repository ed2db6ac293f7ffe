// Package app wires configuration, logging, metrics, the record store and
// the HTTP transport into a runnable service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"keyserve/internal/config"
	"keyserve/internal/infrastructure"
	"keyserve/internal/license"
	customMiddleware "keyserve/internal/middleware"
	"keyserve/internal/services"
	"keyserve/internal/store"
	transport "keyserve/internal/transport/http"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// Application owns every long-lived component of the service.
type Application struct {
	Config  *config.Config
	Logger  *slog.Logger
	Server  *http.Server
	Metrics *infrastructure.MetricsProvider

	store       store.Store
	redisClient *redis.Client
	service     services.LicenseService
}

// NewApplication builds the full service from configuration.
func NewApplication(ctx context.Context) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewApplicationWithConfig(ctx, cfg)
}

// NewApplicationWithConfig builds the service from an explicit config,
// used by tests and the operator tool.
func NewApplicationWithConfig(ctx context.Context, cfg *config.Config) (*Application, error) {
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	slog.SetDefault(logger)

	app := &Application{
		Config: cfg,
		Logger: logger,
	}

	app.Metrics, err = infrastructure.NewMetricsProvider("keyserve", Version)
	if err != nil {
		return nil, fmt.Errorf("initialize metrics: %w", err)
	}

	if err := app.initializeStore(ctx); err != nil {
		return nil, err
	}
	app.initializeRedis()

	metrics, err := license.InitMetrics(app.Metrics.Meter(license.MeterName))
	if err != nil {
		return nil, fmt.Errorf("initialize license metrics: %w", err)
	}
	app.service = services.NewLicenseService(app.store, logger, services.WithMetrics(metrics))

	app.createServer(app.setupRouter())

	logger.InfoContext(ctx, "application initialized",
		slog.String("version", Version),
		slog.String("store_driver", cfg.Store.Driver),
		slog.Int("port", cfg.Server.Port),
	)
	return app, nil
}

func (a *Application) initializeStore(ctx context.Context) error {
	switch a.Config.Store.Driver {
	case "memory":
		a.store = store.NewMemoryStore()
		return nil

	case "mongo":
		client, err := mongo.Connect(options.Client().ApplyURI(a.Config.Store.URI))
		if err != nil {
			return fmt.Errorf("connect mongo: %w", err)
		}

		st, err := store.NewMongoStore(ctx, client.Database(a.Config.Store.Database),
			store.WithCollectionName(a.Config.Store.Collection),
			store.WithOpTimeout(a.Config.Store.OpTimeout),
		)
		if err != nil {
			_ = client.Disconnect(ctx)
			return fmt.Errorf("initialize mongo store: %w", err)
		}
		a.store = st
		return nil

	default:
		return fmt.Errorf("unknown store driver %q", a.Config.Store.Driver)
	}
}

// initializeRedis connects the optional rate-limit backend. An empty addr
// means the limiter runs in-process.
func (a *Application) initializeRedis() {
	if a.Config.Redis.Addr == "" {
		return
	}
	a.redisClient = redis.NewClient(&redis.Options{
		Addr:     a.Config.Redis.Addr,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	})
}

func (a *Application) setupRouter() chi.Router {
	cfg := a.Config
	loc := cfg.DisplayLocation()

	r := chi.NewRouter()
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(customMiddleware.Recoverer(a.Logger))
	r.Use(customMiddleware.SecurityHeaders)
	r.Use(chimiddleware.Timeout(cfg.Server.RequestTimeout))
	if cfg.Security.EnableCORS {
		r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{
			AllowedOrigins: cfg.Security.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			MaxAge:         300,
		}))
	}

	licenseHandler := transport.NewLicenseHandler(a.service, a.Logger, loc)
	adminHandler := transport.NewAdminHandler(a.service, a.Logger, loc)
	healthHandler := transport.NewHealthHandler(a.service, a.Logger, loc, Version)

	r.Get("/healthz", healthHandler.Health)
	r.Handle("/metrics", promhttp.HandlerFor(a.Metrics.Registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/time", healthHandler.ServerTime)

		r.Group(func(r chi.Router) {
			if cfg.Security.RateLimit.Enabled {
				limiter := customMiddleware.NewAttemptLimiter(
					a.redisClient,
					cfg.Security.RateLimit.RPS,
					cfg.Security.RateLimit.Burst,
					cfg.Security.RateLimit.Window,
					cfg.Security.RateLimit.PerKey,
					a.Logger,
				)
				r.Use(limiter.Handler)
			}
			r.Mount("/license", licenseHandler.Routes())
		})

		r.Mount("/admin", adminHandler.Routes())
	})

	return r
}

func (a *Application) createServer(handler http.Handler) {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      handler,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Run starts the server and blocks until ctx is cancelled or the listener
// fails.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("http server listening", slog.String("addr", a.Server.Addr))
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		return a.Stop(context.Background())
	}
}

// Stop shuts the server and every backend down within the configured
// shutdown timeout.
func (a *Application) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	a.Logger.Info("shutting down")

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if a.store != nil {
		if err := a.store.Close(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("store close: %w", err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if a.Metrics != nil {
		if err := a.Metrics.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("metrics shutdown: %w", err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	a.Logger.Info("shutdown complete")
	return nil
}
