package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"foyer-backend/config"
	"foyer-backend/internal/api"
	"foyer-backend/internal/db"
	"foyer-backend/internal/inventory"
	"foyer-backend/internal/logging"
	"foyer-backend/internal/notification"
	"foyer-backend/internal/reservation"
	"foyer-backend/internal/store"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()
	logger.Info("configuration loaded", zap.String("path", configPath), zap.String("env", cfg.Env))

	// Initialize database
	gormDB, err := db.Init(&cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	logger.Info("database initialized", zap.String("driver", cfg.Database.Driver))

	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB, logger.Named("store"))
	responseCache := api.NewResponseCache(cfg.Server)

	engineOpts := []reservation.Option{reservation.WithMaxAttempts(cfg.Reservation.MaxAttempts)}
	if cfg.Reservation.LegacyPolicy {
		logger.Warn("legacy reservation policy enabled")
		engineOpts = append(engineOpts, reservation.WithPolicy(reservation.LegacyPolicy))
	}

	var webpushOptions *webpush.Options
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		workerPool := notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, webpushOptions, logger.Named("notification"))
		workerPool.OnChange(responseCache.Flush)
		workerPool.Start(ctx)
		engineOpts = append(engineOpts, reservation.WithDispatcher(workerPool))
	} else {
		logger.Warn("VAPID keys are not configured, release notifications are disabled")
	}

	engine := reservation.NewService(appStore, logger.Named("reservation"), engineOpts...)

	syncSvc := inventory.NewService(&cfg.Inventory, appStore, logger.Named("inventory"))
	syncSvc.OnChange(responseCache.Flush)
	go syncSvc.Run(ctx)

	// Initialize router
	router := api.NewRouter(api.Deps{
		Config:  cfg.Server,
		DB:      gormDB,
		Store:   appStore,
		Engine:  engine,
		Webpush: webpushOptions,
		Log:     logger.Named("http"),
		Cache:   responseCache,
	})
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server ListenAndServe", zap.Error(err))
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Block until a signal is received.
	<-stop
	logger.Info("shutdown signal received, stopping services")
	cancel()

	// Create a deadline to wait for.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("HTTP server Shutdown", zap.Error(err))
	}

	logger.Info("server gracefully stopped")
}
