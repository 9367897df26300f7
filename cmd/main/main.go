package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"market-stream/src/auth"
	"market-stream/src/config"
	"market-stream/src/interfaces"
	"market-stream/src/logger"
	"market-stream/src/presence"
	"market-stream/src/registry"
	"market-stream/src/server"
	"market-stream/src/simulator"
	"market-stream/src/storage"
	"market-stream/src/utils"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	flag.Parse()

	// Load config from YAML file
	config, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(config.LogLevel, config.Name)

	// 2. Storage
	var db interfaces.IDatabase

	switch config.Storage.DBType {
	case "postgres":
		db, err = storage.NewPostgresDB(config.MConfig, appLogger)
	default:
		// Default to SQLite
		db, err = storage.NewAsyncSQLiteDB(config.MConfig, appLogger)
	}

	if err != nil {
		appLogger.Critical("Failed to init db: %v", err)
	}
	if err := db.Initialize(); err != nil {
		appLogger.Critical("Failed to migrate db: %v", err)
	}

	// 3. Presence tracking (optional)
	var tracker *presence.Tracker
	if config.Redis.Enabled {
		tracker, err = presence.NewTracker(config.Redis, appLogger)
		if err != nil {
			appLogger.Critical("Failed to connect to redis: %v", err)
		}
	}

	// 4. Core components
	reg := registry.NewRegistry()
	history := utils.NewHistoryCache(config.Simulator.HistoryDepth)
	market := utils.NewMarketSession()

	generator := simulator.NewPriceGenerator(config.MConfig, appLogger, reg, history, db, market)
	executor := simulator.NewSimulatedExecutor(appLogger, generator, db)
	verifier := auth.NewHMACVerifier(config.Auth.JWTSecret)

	gateway := server.NewGatewayServer(config, appLogger, server.Deps{
		Registry: reg,
		Verifier: verifier,
		Orders:   executor,
		DB:       db,
		Presence: tracker,
		History:  history,
		Market:   market,
	})

	// 5. Run
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go generator.Run(ctx)

	go func() {
		if err := gateway.Start(); err != nil {
			appLogger.Critical("Server failed: %v", err)
		}
	}()

	// 6. Retention loop
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := db.CleanupOldData(); err != nil {
					appLogger.Warning("Retention cleanup failed: %v", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	appLogger.Info("%s started with %d instruments", config.Name, len(config.Instruments))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down...")
	cancel()
	gateway.Stop()
	if tracker != nil {
		tracker.Close()
	}
	if err := db.Close(); err != nil {
		appLogger.Warning("Error closing db: %v", err)
	}
}
