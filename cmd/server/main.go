// cmd/server/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/stocksim/internal/api"
	"github.com/andresuchdata/stocksim/internal/cache"
	"github.com/andresuchdata/stocksim/internal/config"
	"github.com/andresuchdata/stocksim/internal/service"
	"github.com/andresuchdata/stocksim/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger.SetLevel(cfg.Server.LogLevel)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	opts, err := service.OptionsFromConfig(cfg)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Invalid simulation configuration")
	}
	// Concurrent requests must not overwrite each other's artifacts
	opts.PerRunDirs = true

	repo, err := service.NewRunRepository(cfg)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to open run store")
	}
	defer repo.Close()

	runCache, err := cache.NewRunCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Run cache unavailable, continuing without cache")
		runCache = cache.NewNoopRunCache()
	}

	store, err := service.NewObjectStorage(cfg.Storage)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize object storage")
	}

	// Initialize services
	simulationService := service.NewSimulationService(opts, repo, runCache, store)

	// Initialize HTTP server
	router := api.NewRouter(&api.Services{SimulationService: simulationService}, cfg.Server.AllowedOrigins)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Str("run_store", cfg.App.RunStore).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}
