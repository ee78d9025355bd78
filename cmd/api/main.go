package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/andresuchdata/stocksim/internal/config"
	"github.com/andresuchdata/stocksim/internal/drive"
	"github.com/andresuchdata/stocksim/internal/service"
	"github.com/andresuchdata/stocksim/pkg/logger"
)

func main() {
	// Load configuration; .env is read by config.Load
	cfg := config.Load()
	logger.SetLevel(cfg.Server.LogLevel)

	// Initialize Google Drive service
	driveService, err := drive.NewService(context.Background(), cfg.Drive.CredentialsJSON)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize Google Drive service")
	}

	r := mux.NewRouter()

	// Register routes
	driveHandler := drive.NewHandler(driveService, drive.SyncTarget{
		DefaultFolderID: cfg.Drive.FolderID,
		DestDir:         cfg.App.InputDir,
		Names:           service.InputNames(cfg.App),
	})
	driveHandler.RegisterRoutes(r)

	// Health check endpoint
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	logger.Log.Info().Str("addr", addr).Msg("Drive sync server starting")
	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Log.Fatal().Err(err).Msg("Drive sync server stopped")
	}
}
