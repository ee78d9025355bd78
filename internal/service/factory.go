package service

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/stocksim/internal/config"
	"github.com/andresuchdata/stocksim/internal/demand"
	"github.com/andresuchdata/stocksim/internal/domain"
	"github.com/andresuchdata/stocksim/internal/ingest"
	"github.com/andresuchdata/stocksim/internal/repository"
	"github.com/andresuchdata/stocksim/internal/repository/postgres"
	"github.com/andresuchdata/stocksim/internal/storage"
)

const (
	RunStoreMemory   = "memory"
	RunStoreBolt     = "bolt"
	RunStorePostgres = "postgres"
)

// NewRunRepository opens the run store selected by APP_RUN_STORE.
func NewRunRepository(cfg *config.Config) (repository.RunRepository, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.App.RunStore)) {
	case "", RunStoreMemory:
		return repository.NewMemoryRunRepository(), nil
	case RunStoreBolt:
		return repository.NewBoltRunRepository(cfg.App.BoltPath)
	case RunStorePostgres:
		db, err := postgres.NewDB(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return postgres.NewRunRepository(db), nil
	default:
		return nil, fmt.Errorf("unknown run store %q", cfg.App.RunStore)
	}
}

// NewObjectStorage returns nil when storage is disabled.
func NewObjectStorage(cfg config.StorageConfig) (storage.ObjectStorage, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	return storage.NewMinioClient(cfg)
}

// InputPaths resolves the four feed files against the input directory.
func InputPaths(app config.AppConfig) ingest.Paths {
	return ingest.Paths{
		Sales:     app.InputPath(app.SalesFile),
		Inventory: app.InputPath(app.InventoryFile),
		Reorder:   app.InputPath(app.ROPFile),
		EOQ:       app.InputPath(app.EOQFile),
	}
}

// InputNames lists the configured feed file names in load order.
func InputNames(app config.AppConfig) []string {
	return []string{app.SalesFile, app.InventoryFile, app.ROPFile, app.EOQFile}
}

// DefaultParams maps the simulation config to run parameters.
func DefaultParams(sim config.SimulationConfig) domain.SimulationParams {
	return domain.SimulationParams{
		Name:         "baseline",
		LeadTimeDays: sim.LeadTimeDays,
		CoverDays:    sim.CoverDays,
		MinTruckTons: sim.TruckMinTons,
		MaxTruckTons: sim.TruckMaxTons,
		Interactive:  sim.Interactive,
	}
}

// OptionsFromConfig builds service options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	dopts := demand.DefaultOptions()
	dopts.StripToken = cfg.Simulation.StripToken

	var err error
	if cfg.Simulation.FallbackStart != "" {
		if dopts.FallbackStart, err = time.Parse("2006-01-02", cfg.Simulation.FallbackStart); err != nil {
			return Options{}, fmt.Errorf("invalid SIM_FALLBACK_START: %w", err)
		}
	}
	if cfg.Simulation.FallbackEnd != "" {
		if dopts.FallbackEnd, err = time.Parse("2006-01-02", cfg.Simulation.FallbackEnd); err != nil {
			return Options{}, fmt.Errorf("invalid SIM_FALLBACK_END: %w", err)
		}
	}
	if dopts.FallbackEnd.Before(dopts.FallbackStart) {
		return Options{}, fmt.Errorf("fallback window ends before it starts")
	}

	return Options{
		Paths:         InputPaths(cfg.App),
		Demand:        dopts,
		OutputDir:     cfg.App.DataDir,
		WriteWorkbook: cfg.App.WriteWorkbook,
		Defaults:      DefaultParams(cfg.Simulation),
		Parallelism:   cfg.Simulation.ScenarioParallelism,
	}, nil
}

// FetchInputs downloads the named feeds from prefix in store into destDir.
func FetchInputs(ctx context.Context, store storage.ObjectStorage, prefix, destDir string, names []string) ([]string, error) {
	objects, err := store.ListObjects(ctx, prefix)
	if err != nil {
		return nil, err
	}
	available := make(map[string]string, len(objects))
	for _, o := range objects {
		available[strings.ToLower(path.Base(o.Key))] = o.Key
	}

	paths := make([]string, 0, len(names))
	for _, name := range names {
		key, ok := available[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("%w: %s not found under %q", ingest.ErrMissingInput, name, prefix)
		}
		dest := filepath.Join(destDir, name)
		if err := store.DownloadObject(ctx, key, dest); err != nil {
			return nil, err
		}
		log.Info().Str("key", key).Str("path", dest).Msg("Fetched input from storage")
		paths = append(paths, dest)
	}
	return paths, nil
}
