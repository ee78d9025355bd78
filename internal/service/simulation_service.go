package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/andresuchdata/stocksim/internal/cache"
	"github.com/andresuchdata/stocksim/internal/demand"
	"github.com/andresuchdata/stocksim/internal/domain"
	"github.com/andresuchdata/stocksim/internal/ingest"
	"github.com/andresuchdata/stocksim/internal/policy"
	"github.com/andresuchdata/stocksim/internal/report"
	"github.com/andresuchdata/stocksim/internal/repository"
	"github.com/andresuchdata/stocksim/internal/simulation"
	"github.com/andresuchdata/stocksim/internal/storage"
)

// ErrNoScenarios is returned when a scenario batch is empty.
var ErrNoScenarios = errors.New("no scenarios given")

// Options configure where inputs are read and artifacts written.
type Options struct {
	Paths         ingest.Paths
	Demand        demand.Options
	OutputDir     string
	WriteWorkbook bool
	// PerRunDirs writes each run's artifacts under OutputDir/<run id>.
	PerRunDirs  bool
	Defaults    domain.SimulationParams
	Parallelism int
}

// Prepared holds inputs that are loaded once and shared read-only by runs.
type Prepared struct {
	Inputs      simulation.Inputs
	Fingerprint string
}

type SimulationService struct {
	opts    Options
	repo    repository.RunRepository
	cache   cache.RunCache
	storage storage.ObjectStorage

	now   func() time.Time
	newID func() string
}

// NewSimulationService wires the service. cacheImpl and store may be nil.
func NewSimulationService(opts Options, repo repository.RunRepository, cacheImpl cache.RunCache, store storage.ObjectStorage) *SimulationService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopRunCache()
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 1
	}
	return &SimulationService{
		opts:    opts,
		repo:    repo,
		cache:   cacheImpl,
		storage: store,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// PrepareInputs loads the four feeds and builds the demand matrix and policy table.
func (s *SimulationService) PrepareInputs(ctx context.Context) (*Prepared, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	feeds, err := ingest.LoadFeeds(s.opts.Paths)
	if err != nil {
		return nil, err
	}

	return &Prepared{
		Inputs: simulation.Inputs{
			Demand:  demand.Build(feeds.Demand, s.opts.Demand),
			Policy:  policy.Build(feeds.Reorder, feeds.EOQ),
			Opening: feeds.Stock,
		},
		Fingerprint: feeds.Fingerprint,
	}, nil
}

// Run loads the inputs and executes one simulation. A nil confirmer approves every proposal.
func (s *SimulationService) Run(ctx context.Context, params domain.SimulationParams, confirmer simulation.Confirmer) (*domain.SimulationRun, error) {
	prep, err := s.PrepareInputs(ctx)
	if err != nil {
		return nil, err
	}
	return s.RunPrepared(ctx, prep, params, confirmer)
}

// RunPrepared executes one simulation over already loaded inputs.
func (s *SimulationService) RunPrepared(ctx context.Context, prep *Prepared, params domain.SimulationParams, confirmer simulation.Confirmer) (*domain.SimulationRun, error) {
	return s.runPrepared(ctx, prep, params, confirmer, s.opts.PerRunDirs)
}

func (s *SimulationService) runPrepared(ctx context.Context, prep *Prepared, params domain.SimulationParams, confirmer simulation.Confirmer, perRunDir bool) (*domain.SimulationRun, error) {
	params = s.withDefaults(params)
	logger := log.With().Str("scenario", params.Name).Logger()

	// Interactive runs depend on the operator's answers and are never cached.
	var key string
	if !params.Interactive {
		key = cache.RunKey(prep.Fingerprint, params)
		cached, ok, err := s.cache.GetRun(ctx, key)
		if err != nil {
			logger.Warn().Err(err).Msg("simulation: cache get run failed")
		} else if ok {
			logger.Info().Str("run_id", cached.ID).Msg("Serving cached simulation run")
			return cached, nil
		}
	}

	engine, err := simulation.NewEngine(configFromParams(params), prep.Inputs, confirmer)
	if err != nil {
		return nil, err
	}

	started := s.now()
	res, err := engine.Run(ctx)
	if err != nil {
		return nil, err
	}

	run := buildRun(s.newID(), params, started, s.now(), res)
	logger = logger.With().Str("run_id", run.ID).Logger()

	outDir := s.opts.OutputDir
	if perRunDir {
		outDir = filepath.Join(outDir, run.ID)
	}
	paths, err := report.WriteFiles(outDir, res, s.opts.WriteWorkbook)
	if err != nil {
		return nil, fmt.Errorf("failed to write artifacts: %w", err)
	}
	run.Artifacts = paths

	if s.storage != nil {
		keys, err := s.uploadArtifacts(ctx, run.ID, paths)
		if err != nil {
			return nil, err
		}
		run.Artifacts = keys
	}

	if err := s.repo.SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to save run: %w", err)
	}

	if key != "" {
		if err := s.cache.SetRun(ctx, key, run); err != nil {
			logger.Warn().Err(err).Msg("simulation: cache set run failed")
		}
	}

	logger.Info().
		Float64("fill_rate_pct", run.FillRatePct).
		Int("orders", run.OrdersPlaced).
		Msg("Simulation run completed")

	return run, nil
}

// RunScenarios executes independent what-if runs over the same inputs with at
// most parallelism runs in flight. Results keep the order of scenarios.
// Each scenario writes its artifacts under its own run directory.
func (s *SimulationService) RunScenarios(ctx context.Context, scenarios []domain.SimulationParams, parallelism int) ([]*domain.SimulationRun, error) {
	if len(scenarios) == 0 {
		return nil, ErrNoScenarios
	}
	if parallelism <= 0 {
		parallelism = s.opts.Parallelism
	}

	prep, err := s.PrepareInputs(ctx)
	if err != nil {
		return nil, err
	}

	runs := make([]*domain.SimulationRun, len(scenarios))
	sem := semaphore.NewWeighted(int64(parallelism))
	g, gctx := errgroup.WithContext(ctx)

	for i, params := range scenarios {
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		i, params := i, params
		params.Interactive = false
		if params.Name == "" {
			params.Name = fmt.Sprintf("scenario-%d", i+1)
		}

		g.Go(func() error {
			defer sem.Release(1)
			run, err := s.runPrepared(gctx, prep, params, simulation.AlwaysApprove, true)
			if err != nil {
				return fmt.Errorf("scenario %s: %w", params.Name, err)
			}
			runs[i] = run
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

func (s *SimulationService) GetRun(ctx context.Context, id string) (*domain.SimulationRun, error) {
	return s.repo.GetRun(ctx, id)
}

func (s *SimulationService) ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	return s.repo.ListRuns(ctx, limit)
}

// Defaults returns the parameters applied to zero-valued fields of a request.
func (s *SimulationService) Defaults() domain.SimulationParams {
	return s.opts.Defaults
}

func (s *SimulationService) withDefaults(p domain.SimulationParams) domain.SimulationParams {
	d := s.opts.Defaults
	if p.Name == "" {
		p.Name = d.Name
	}
	if p.LeadTimeDays == 0 {
		p.LeadTimeDays = d.LeadTimeDays
	}
	if p.CoverDays == 0 {
		p.CoverDays = d.CoverDays
	}
	if p.MinTruckTons == 0 {
		p.MinTruckTons = d.MinTruckTons
	}
	if p.MaxTruckTons == 0 {
		p.MaxTruckTons = d.MaxTruckTons
	}
	return p
}

func (s *SimulationService) uploadArtifacts(ctx context.Context, runID string, paths []string) ([]string, error) {
	keys := make([]string, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read artifact %s: %w", p, err)
		}
		key := "runs/" + runID + "/" + filepath.Base(p)
		if err := s.storage.UploadObject(ctx, key, data); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	log.Info().Str("run_id", runID).Int("artifacts", len(keys)).Msg("Uploaded run artifacts")
	return keys, nil
}

func configFromParams(p domain.SimulationParams) simulation.Config {
	return simulation.Config{
		LeadTimeDays: p.LeadTimeDays,
		CoverDays:    p.CoverDays,
		MinTruckTons: p.MinTruckTons,
		MaxTruckTons: p.MaxTruckTons,
	}
}

func buildRun(id string, params domain.SimulationParams, started, completed time.Time, res *simulation.Result) *domain.SimulationRun {
	return &domain.SimulationRun{
		RunSummary: domain.RunSummary{
			ID:                id,
			Name:              params.Name,
			Params:            params,
			StartedAt:         started.UTC(),
			CompletedAt:       completed.UTC(),
			From:              res.Start,
			To:                res.End,
			Days:              len(res.Days),
			CumulativeDemand:  res.CumulativeDemand,
			CumulativeShipped: res.CumulativeShipped,
			FillRatePct:       report.Pct(res.FillRatePct).InexactFloat64(),
			BackorderRatioPct: report.Pct(res.BackorderRatioPct).InexactFloat64(),
			OrdersPlaced:      len(res.Orders),
			UnparseableDates:  res.Dates.Unparseable,
			DayFirst:          res.Dates.DayFirst,
		},
		Daily:  report.RoundDaily(res.Days),
		Final:  res.Final,
		Orders: res.Orders,
	}
}
