package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"dispatch/internal/app"
	"dispatch/internal/config"
	"dispatch/internal/handler"
	internalRedis "dispatch/internal/redis"
	"dispatch/internal/repository/postgres"
	"dispatch/internal/service"
)

func main() {
	// Load configuration.
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Printf("failed to initialize New Relic: %v", err)
		} else {
			log.Printf("New Relic enabled: app=%s (with DB instrumentation)", cfg.NewRelic.AppName)
		}
	}

	// Initialize database with New Relic instrumentation.
	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to PostgreSQL")

	// Initialize Redis with New Relic instrumentation.
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Connected to Redis")

	// Wire dependencies.
	server, monitor := wireServer(db, redisClient, nrApp, cfg)

	// The timeout sweep owns the revert decision exclusively; it stops with
	// the server so no orphaned timer keeps mutating state after shutdown.
	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	defer stopMonitor()
	go monitor.Run(monitorCtx)

	// Start server in goroutine.
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	stopMonitor()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// wireServer wires all dependencies and returns the HTTP server and the
// timeout monitor.
func wireServer(db *sql.DB, redisClient *redis.Client, nrApp *newrelic.Application, cfg *config.Config) (*http.Server, *service.TimeoutMonitor) {
	// Initialize Redis stores.
	positionStore := internalRedis.NewPositionStore(redisClient)
	lockStore := internalRedis.NewLockStore(redisClient)
	geocodeCache := internalRedis.NewGeocodeCache(redisClient)
	feed := internalRedis.NewFeed(redisClient)

	// Initialize repositories.
	orderRepo := postgres.NewOrderRepository(db)
	historyRepo := postgres.NewHistoryRepository(db)

	// Initialize services.
	geocoder := service.NewCachingGeocoder(service.NoopGeocoder{}, geocodeCache)
	locationService := service.NewLocationService(positionStore, cfg.Dispatch.PositionTTL)
	orderService := service.NewOrderService(orderRepo, historyRepo, locationService, geocoder, feed, cfg.Dispatch.GeofenceRadiusKm)
	monitor := service.NewTimeoutMonitor(orderRepo, lockStore, feed, cfg.Dispatch.AssignmentTimeout, cfg.Dispatch.SweepInterval)

	// Initialize handlers.
	orderHandler := handler.NewOrderHandler(orderService)
	driverHandler := handler.NewDriverHandler(locationService)
	eventsHandler := handler.NewEventsHandler(orderRepo, func(ctx context.Context, companyID string) (service.EventSubscription, error) {
		return feed.Subscribe(ctx, companyID)
	}, cfg.Dispatch.PollInterval)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		OrderHandler:  orderHandler,
		DriverHandler: driverHandler,
		EventsHandler: eventsHandler,
		RedisClient:   redisClient,
		NewRelicApp:   nrApp,
	})

	// Create HTTP server.
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, monitor
}
