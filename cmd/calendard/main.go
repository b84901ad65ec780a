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

	"observatory-calendar-backend/config"
	"observatory-calendar-backend/internal/api"
	"observatory-calendar-backend/internal/db"
	"observatory-calendar-backend/internal/importer"
	"observatory-calendar-backend/internal/notification"
	"observatory-calendar-backend/internal/projects"
	"observatory-calendar-backend/internal/secrets"
	"observatory-calendar-backend/internal/siteproxy"
	"observatory-calendar-backend/internal/store"
	"observatory-calendar-backend/internal/topology"

	"github.com/SherClockHolmes/webpush-go"
)

func main() {
	// Setup logger
	logger := log.New(os.Stdout, "calendar-backend ", log.LstdFlags)

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	// Check for VAPID keys
	if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
		logger.Fatalf("VAPID keys must be configured. Please generate them and add them to your config file.")
	}

	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	// The WEMA/telescope/site topology is fixed at startup.
	registry, err := topology.NewRegistry(cfg.Scheduler.Wemas)
	if err != nil {
		logger.Fatalf("invalid scheduler topology: %v", err)
	}
	logger.Printf("topology loaded: %d logical sites", len(registry.Sites()))

	// Initialize database
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	logger.Println("data store initialized")

	// Site-proxy credentials live in Vault.
	secretSource, err := secrets.NewVaultSource(&cfg.Vault)
	if err != nil {
		logger.Fatalf("failed to initialize vault client: %v", err)
	}

	proxyClient := siteproxy.NewClient(&cfg.Scheduler, cfg.Vault.SecretPath, secretSource)
	projectsClient := projects.NewClient(&cfg.Projects)

	// Notification worker pool, fed by the importer after each changed site.
	workerPool := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, &webpushOptions)
	workerPool.Start(ctx)

	engine := importer.NewEngine(registry, appStore, proxyClient, projectsClient, workerPool)

	var runner *importer.Runner
	if cfg.Importer.Enabled {
		runner = importer.NewRunner(engine, cfg.Importer.CronSpec)
		if err := runner.Start(ctx); err != nil {
			logger.Fatalf("failed to start schedule importer: %v", err)
		}
	} else {
		logger.Println("periodic schedule import is disabled; imports run on demand only")
	}

	// Initialize router
	router := api.NewRouter(&cfg.Server, appStore, engine, projectsClient, &webpushOptions)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start the server in a goroutine
	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Block until a signal is received.
	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	// Create a deadline to wait for.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if runner != nil {
		// Wait for any in-flight import to finish before the server stops.
		select {
		case <-runner.Stop().Done():
		case <-shutdownCtx.Done():
			logger.Println("Timed out waiting for in-flight import to finish")
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}
