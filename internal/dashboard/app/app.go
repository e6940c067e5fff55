package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/parlourtech/whopdash/internal/dashboard/http"
	"github.com/parlourtech/whopdash/internal/dashboard/service"
	"github.com/parlourtech/whopdash/internal/dashboard/store"
	"github.com/parlourtech/whopdash/internal/dashboard/store/drivers/sqlite"
	"github.com/parlourtech/whopdash/pkg/credx"
	"github.com/parlourtech/whopdash/pkg/cryptox"
	"github.com/parlourtech/whopdash/pkg/slogx"
	"github.com/parlourtech/whopdash/pkg/whopapi"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the dashboard service with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db       store.Store
	platform *whopapi.Client

	// Services
	resolverService     *service.ResolverService
	installationService *service.InstallationService
	handshakeService    *service.HandshakeService
	sessionService      *service.SessionService
	metricsService      *service.MetricsService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "dashboard-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initServices(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	// Start housekeeping service
	app.housekeepingService.Start()

	app.logger.Info("dashboard service starting", "port", app.cfg.Port, "version", BuildVersion)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down dashboard service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Shutdown the HTTP server
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	// Stop the housekeeping service
	app.housekeepingService.Stop()

	// Close database connection
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("dashboard service stopped")
	return nil
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() error {
	secret, err := loadSessionSecret(app.cfg, app.logger)
	if err != nil {
		return err
	}

	// One secret, two purpose-bound keys: tokens are signed with one, stored
	// platform credentials are sealed with the other.
	codec, err := credx.NewCodec(cryptox.DeriveKey("signing", secret))
	if err != nil {
		return fmt.Errorf("failed to initialize credential codec: %w", err)
	}
	sealKey := cryptox.DeriveKey("sealing", secret)

	app.platform = whopapi.NewClient(
		app.cfg.WhopAPIURL,
		app.cfg.WhopAuthorizeURL,
		app.cfg.WhopClientID,
		app.cfg.WhopClientSecret,
	)

	app.resolverService = &service.ResolverService{Store: app.db}

	app.installationService = &service.InstallationService{
		Store:   app.db,
		SealKey: sealKey,
	}

	app.handshakeService = &service.HandshakeService{
		Codec:         codec,
		Resolver:      app.resolverService,
		Installations: app.installationService,
		Platform:      app.platform,
		Store:         app.db,
		CallbackPath:  "/v1/oauth/callback",
		StateMaxAge:   app.cfg.StateMaxAge,
	}

	app.sessionService = &service.SessionService{
		Codec: codec,
		Store: app.db,
		TTL:   app.cfg.SessionTTL,
	}

	app.metricsService = &service.MetricsService{
		Store:         app.db,
		Installations: app.installationService,
		Platform:      app.platform,
	}

	// Retain consumed nonces well past the state window before pruning.
	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
		4*app.cfg.StateMaxAge+time.Hour,
	)

	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		BuildVersion,
		app.cfg.DashboardURL,
		app.db,
		app.logger,
	)

	// Wire services to router
	router.ResolverService = app.resolverService
	router.HandshakeService = app.handshakeService
	router.SessionService = app.sessionService
	router.InstallationService = app.installationService
	router.MetricsService = app.metricsService
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
