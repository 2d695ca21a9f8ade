package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"golang.org/x/sync/errgroup"

	"ocrdash/internal/config"
	apierrors "ocrdash/internal/errors"
	"ocrdash/internal/infrastructure"
	customMiddleware "ocrdash/internal/middleware"
	"ocrdash/internal/services"
	"ocrdash/internal/session"
	handlers "ocrdash/internal/transport/http"
)

var (
	// Version is set at compile time
	Version = config.AppVersion
	// BuildTime is set at compile time
	BuildTime = "unknown"
)

// Application represents the main application container
type Application struct {
	Config         *config.Config
	Paths          *config.Paths
	Router         *chi.Mux
	Server         *http.Server
	Store          *session.MemoryStore
	ResultsService *services.ResultsService
	HealthService  *services.HealthService
	Metrics        *infrastructure.BusinessMetrics
	OTelProviders  *infrastructure.OTelProviders
	Logger         *slog.Logger

	errorHandler *apierrors.ErrorHandler
}

// NewApplication wires the application from cfg. A nil cfg means the
// defaults and a nil logger means the global logger.
func NewApplication(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	logger.Info("Application starting",
		slog.String("name", config.AppName),
		slog.String("version", Version),
		slog.String("build_time", BuildTime))

	paths, err := config.ResolvePaths("", cfg.Paths)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindStorage, "resolve paths", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, apierrors.Wrap(apierrors.KindStorage, "create directories", err)
	}
	paths.LogPathResolution(logger)

	otelProviders, err := infrastructure.InitializeOTel(cfg.Telemetry, logger)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindTelemetry, "initialize OpenTelemetry", err)
	}
	metrics, err := infrastructure.CreateBusinessMetrics(otelProviders.Meter)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindTelemetry, "create business metrics", err)
	}

	app := &Application{
		Config:        cfg,
		Paths:         paths,
		Metrics:       metrics,
		OTelProviders: otelProviders,
		Logger:        logger,
		errorHandler:  apierrors.NewErrorHandler(logger, cfg.Logging.Development),
	}

	if err := app.initializeServices(); err != nil {
		return nil, err
	}
	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices creates the session store and the services on top of it
func (a *Application) initializeServices() error {
	a.Store = session.NewMemoryStore(session.StoreOptions{
		TTL:             a.Config.Upload.SessionTTL,
		JanitorInterval: a.Config.Upload.JanitorInterval,
		MaxSessions:     a.Config.Upload.MaxSessions,
		OnEvict:         services.SessionEvictHook(a.Metrics, a.Logger),
		Logger:          a.Logger,
	})

	results, err := services.NewResultsService(a.Store, services.ResultsServiceOptions{
		Loader:         a.Config.Loader,
		Export:         a.Config.Export,
		MaxUploadBytes: a.Config.Upload.MaxBytes,
		Metrics:        a.Metrics,
		Tracer:         a.OTelProviders.Tracer,
		Logger:         a.Logger,
	})
	if err != nil {
		a.Store.Close()
		return apierrors.Wrap(apierrors.KindConfig, "create results service", err)
	}
	a.ResultsService = results

	a.HealthService = services.NewHealthService(Version, BuildTime, config.PathsConfig{
		DataDir:    a.Paths.DataDir,
		ExportsDir: a.Paths.ExportsDir,
		LogsDir:    a.Paths.LogsDir,
	}, a.Store, a.Logger)

	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// RequestID, RealIP, Telemetry, AccessLog, Recoverer, SecurityHeaders, CORS, RateLimit
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	r.Use(customMiddleware.NewTelemetry(a.OTelProviders.Tracer, a.Metrics, "/metrics").Handler)

	r.Use(customMiddleware.AccessLog(a.Logger))
	r.Use(customMiddleware.Recoverer(a.Logger))
	r.Use(customMiddleware.SecurityHeaders)

	if a.Config.Security.EnableCORS {
		r.Use(customMiddleware.CORS(a.getCORSConfig()))
	}

	if a.Config.Security.RateLimit.Enabled {
		r.Use(customMiddleware.NewRateLimiter(
			a.Config.Security.RateLimit.RPS,
			a.Config.Security.RateLimit.Burst,
			a.Logger,
		).Handler)
	}

	r.NotFound(a.errorHandler.NotFound)
	r.MethodNotAllowed(a.errorHandler.MethodNotAllowed)

	a.setupAPIRoutes(r)

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	healthHandler := handlers.NewHealthHandler(a.HealthService)
	resultsHandler := handlers.NewResultsHandler(
		a.ResultsService,
		customMiddleware.NewRequestValidator(a.Logger),
		a.Config.Upload.MaxBytes,
		a.Logger,
		a.errorHandler,
	)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout, a.Logger))
		r.Use(a.errorHandler.Middleware)

		healthHandler.Register(r)

		r.Mount("/sessions", resultsHandler.Routes())
	})
}

// getCORSConfig returns the CORS configuration for the configured origins
func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	return customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.Security.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"X-Request-ID",
			"X-Requested-With",
		},
		ExposedHeaders: []string{
			"Content-Disposition",
			"X-Notice",
			"X-Record-Count",
			"X-Request-ID",
		},
		AllowCredentials: false,
		MaxAge:           300,
		Logger:           a.Logger,
	}
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           a.Config.Server.Addr(),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Run listens on the configured address and serves until ctx is done or
// the process receives SIGINT or SIGTERM.
func (a *Application) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done or a termination signal arrives, then
// shuts the application down.
func (a *Application) Serve(ctx context.Context, ln net.Listener) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.Logger.InfoContext(ctx, "Application started",
		slog.String("address", "http://"+ln.Addr().String()),
		slog.Int64("max_upload_bytes", a.Config.Upload.MaxBytes),
		slog.Duration("session_ttl", a.Config.Upload.SessionTTL))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(gctx, "Server error", slog.String("error", err.Error()))
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return a.Stop(context.WithoutCancel(gctx))
	})

	return g.Wait()
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}

	a.Store.Close()

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}
