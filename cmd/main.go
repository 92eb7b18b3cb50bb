package main

import (
	"context"
	"fmt"
	"os"

	"github.com/harshaverse/karmic/internal/app"
	"github.com/harshaverse/karmic/internal/handlers"
	"github.com/harshaverse/karmic/internal/platform/logger"
	"github.com/harshaverse/karmic/internal/server"
	"github.com/harshaverse/karmic/internal/services"
	"github.com/harshaverse/karmic/internal/session"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	cfg := app.LoadConfig(log)

	// Scratch store
	store, err := session.NewStore(cfg.ScratchRoot, log)
	if err != nil {
		log.Error("Could not init scratch store", "error", err)
		os.Exit(1)
	}

	// Sessions
	log.Info("Setting up session manager from main...")
	mgr := session.NewManager(store, cfg.QuotaBytes, cfg.IdleTTL, log)

	ctx := context.Background()
	pool := session.NewPool(cfg.WorkerConcurrency, cfg.JobQueueSize, log)
	pool.Start(ctx)
	session.NewJanitor(mgr, cfg.JanitorPeriod, log).Start(ctx)

	// Services
	log.Info("Setting up services from main...")
	optimizer := services.NewOptimizer(mgr, pool, cfg, log)

	// Handlers
	assetHandler := handlers.NewAssetHandler(log, optimizer, mgr)

	// Router
	router := server.NewRouter(server.RouterConfig{
		AssetHandler: assetHandler,
	})

	log.Info("Starting server", "port", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Error("Server exited", "error", err)
		os.Exit(1)
	}
}
