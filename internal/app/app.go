package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dyagdi/PriceLess/internal/config"
	"github.com/dyagdi/PriceLess/internal/event"
	"github.com/dyagdi/PriceLess/internal/favorites"
	handler "github.com/dyagdi/PriceLess/internal/handler/http"
	"github.com/dyagdi/PriceLess/internal/service"
	"github.com/dyagdi/PriceLess/internal/session"
	apperrors "github.com/dyagdi/PriceLess/pkg/errors"
	"github.com/dyagdi/PriceLess/pkg/health"
	pkgkafka "github.com/dyagdi/PriceLess/pkg/kafka"
	"github.com/dyagdi/PriceLess/pkg/middleware"
	"github.com/dyagdi/PriceLess/pkg/tracing"
)

// App wires together all dependencies and runs the storefront service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	storage        *backend
	producer       *pkgkafka.Producer
	sessions       *session.Registry
	httpServer     *http.Server
	tracerShutdown tracing.ShutdownFunc

	expiryWG sync.WaitGroup
	started  bool
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		_ = tracerShutdown(context.Background())
		return nil, err
	}

	// Events are optional; without brokers the service runs on a no-op
	// publisher.
	var (
		publisher event.Publisher = event.Noop{}
		producer  *pkgkafka.Producer
	)
	if cfg.EventsEnabled {
		producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		if err := producer.Ping(ctx); err != nil {
			logger.Warn("kafka ping failed, continuing in degraded mode",
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
		}
		publisher = event.NewProducer(producer, logger)
	}

	favOpts := []favorites.Option{favorites.WithPersistErrorHook(service.PersistFailureHook)}
	if cfg.FavoritesStableIDs {
		favOpts = append(favOpts, favorites.WithStableIDs())
	}
	sessions := session.NewRegistry(store.kv, logger,
		session.WithIdleTTL(cfg.SessionIdleTTL()),
		session.WithKeyPrefix(cfg.FavoritesKeyPrefix),
		session.WithFavoritesOptions(favOpts...),
	)
	storefront := service.NewStorefrontService(sessions, publisher, logger)

	healthHandler := health.NewHandler()
	healthHandler.SetTimeout(cfg.ReadinessTimeout())
	healthHandler.Register("storage", unavailableOnError(store.ping))
	if producer != nil {
		healthHandler.Register("kafka", unavailableOnError(producer.Ping))
	}
	logger.Info("readiness checks registered",
		slog.Any("checks", healthHandler.Names()),
		slog.Duration("timeout", cfg.ReadinessTimeout()),
	)

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins
	router := handler.NewRouter(storefront, healthHandler, logger, cors)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		storage:        store,
		producer:       producer,
		sessions:       sessions,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// unavailableOnError reports a failed dependency check as a 503 error.
func unavailableOnError(check health.Checker) health.Checker {
	return func(ctx context.Context) error {
		if err := check(ctx); err != nil {
			return apperrors.Unavailable(err)
		}
		return nil
	}
}

// Run starts the HTTP server and session expiry, then blocks until the
// context is canceled or the server fails.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	a.started = true
	a.expiryWG.Add(1)
	go func() {
		defer a.expiryWG.Done()
		a.sessions.Start()
	}()

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
			slog.String("storage", a.cfg.StorageDriver),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
	}

	if err := a.Shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	if a.started {
		a.sessions.Stop()
		a.expiryWG.Wait()
		a.started = false
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}

	if err := a.storage.close(); err != nil {
		a.logger.Error("storage close error", slog.String("error", err.Error()))
	}

	if err := a.tracerShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}
