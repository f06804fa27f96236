package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fenilmodi00/tibia-lookup-backend/config"
	"github.com/fenilmodi00/tibia-lookup-backend/database"
	"github.com/fenilmodi00/tibia-lookup-backend/handlers"
	"github.com/fenilmodi00/tibia-lookup-backend/jobs"
	"github.com/fenilmodi00/tibia-lookup-backend/services"
	"github.com/fenilmodi00/tibia-lookup-backend/shared"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	shared.ConfigureLogging(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	store, err := database.Connect(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	// Upstream client
	clientFactory := shared.NewHTTPClientFactory()
	defer clientFactory.CleanupAllClients()
	metrics := shared.NewLookupMetrics()
	client := services.NewTibiaDataClient(
		cfg.TibiaDataBaseURL,
		clientFactory.CreateAPIClient(cfg.ConnectTimeout, cfg.RequestTimeout),
		shared.NewHTTPRequestRateLimiter(cfg.RequestRateLimit),
		metrics,
	)

	monitor, err := shared.NewConnectivityMonitor(cfg.TibiaDataBaseURL, cfg.ConnectTimeout)
	if err != nil {
		logrus.Fatalf("Invalid upstream URL: %v", err)
	}

	sessions := services.NewSessionManager(client, store, monitor, metrics, services.SessionConfig{
		CacheTTL:        cfg.CacheTTL,
		CacheMaxEntries: cfg.CacheMaxEntries,
		CacheMaxBytes:   cfg.CacheMaxBytes,
		MinLoading:      cfg.MinLoading,
		MaxSessions:     cfg.MaxSessions,
	})
	defer sessions.Shutdown()

	logrus.WithFields(logrus.Fields{
		"upstream":          cfg.TibiaDataBaseURL,
		"database_driver":   cfg.DatabaseDriver,
		"cache_ttl":         cfg.CacheTTL,
		"cache_max_entries": cfg.CacheMaxEntries,
		"min_loading":       cfg.MinLoading,
		"request_timeout":   cfg.RequestTimeout,
	}).Info("Character lookup services initialized")

	// Initialize Jobs
	cleanupJob := jobs.NewCacheCleanupJob(sessions, cfg.CacheCleanupInterval)
	probeJob := jobs.NewConnectivityProbeJob(monitor, cfg.ConnectivityProbeInterval)
	reaperJob := jobs.NewSessionReaperJob(sessions, cfg.SessionIdleTimeout)
	metricsJob := jobs.NewMetricsSummaryJob(metrics, time.Hour)

	// Initialize handlers
	lookupTimeout := cfg.RequestTimeout + cfg.MinLoading + 5*time.Second
	routes := handlers.Handlers{
		Character:    handlers.NewCharacterHandler(sessions, lookupTimeout),
		RecentSearch: handlers.NewRecentSearchHandler(sessions, lookupTimeout),
		Metrics:      handlers.NewMetricsHandler(sessions, store),
		Health:       handlers.NewHealthHandler(store, monitor),
		Admin:        handlers.NewAdminHandler(sessions, cleanupJob, probeJob, reaperJob),
	}

	// Setup Fiber
	app := fiber.New(fiber.Config{
		AppName:      "tibia-lookup-backend",
		ReadTimeout:  10 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorHandler: handlers.ErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		ExposeHeaders: handlers.SessionHeader,
	}))

	handlers.RegisterRoutes(app, routes)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return cleanupJob.Start(groupCtx) })
	group.Go(func() error { return probeJob.Start(groupCtx) })
	group.Go(func() error { return reaperJob.Start(groupCtx) })
	group.Go(func() error { return metricsJob.Start(groupCtx) })

	group.Go(func() error {
		logrus.Infof("Server starting on port %s", cfg.ServerPort)
		return app.Listen(":" + cfg.ServerPort)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logrus.Info("Shutting down server")
		// closes open state streams
		sessions.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logrus.Errorf("Server stopped with error: %v", err)
	}
}
