package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/stocksim/internal/config"
	"github.com/andresuchdata/stocksim/internal/demand"
	"github.com/andresuchdata/stocksim/internal/domain"
	"github.com/andresuchdata/stocksim/internal/ingest"
	"github.com/andresuchdata/stocksim/internal/repository"
	"github.com/andresuchdata/stocksim/internal/simulation"
	"github.com/andresuchdata/stocksim/internal/storage"
)

var baseline = domain.SimulationParams{Name: "baseline", LeadTimeDays: 7, CoverDays: 45, MinTruckTons: 10, MaxTruckTons: 12}

func writeInputs(t *testing.T, dir string) ingest.Paths {
	t.Helper()
	files := map[string]string{
		"AprJun2024.csv":         "Date,Particular,Quantity\n2024-04-01,A,20\n2024-04-10,A,20\n",
		"latest_inventory.csv":   "Particular,Quantity\nA,100\n",
		"reorder_evaluation.csv": "Particular,mu_daily,safety_stock,reorder_point\nA,10,20,90\n",
		"eoq_results.csv":        "Particular,EOQ,unit_weight\nA,200,50\n",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return ingest.Paths{
		Sales:     filepath.Join(dir, "AprJun2024.csv"),
		Inventory: filepath.Join(dir, "latest_inventory.csv"),
		Reorder:   filepath.Join(dir, "reorder_evaluation.csv"),
		EOQ:       filepath.Join(dir, "eoq_results.csv"),
	}
}

func newTestService(t *testing.T, store storage.ObjectStorage) (*SimulationService, repository.RunRepository) {
	t.Helper()
	repo := repository.NewMemoryRunRepository()
	svc := NewSimulationService(Options{
		Paths:       writeInputs(t, t.TempDir()),
		Demand:      demand.DefaultOptions(),
		OutputDir:   t.TempDir(),
		PerRunDirs:  true,
		Defaults:    baseline,
		Parallelism: 2,
	}, repo, nil, store)
	return svc, repo
}

type mapCache struct {
	mu   sync.Mutex
	runs map[string]domain.SimulationRun
}

func (c *mapCache) GetRun(_ context.Context, key string) (*domain.SimulationRun, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	run, ok := c.runs[key]
	if !ok {
		return nil, false, nil
	}
	return &run, true, nil
}

func (c *mapCache) SetRun(_ context.Context, key string, run *domain.SimulationRun) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs[key] = *run
	return nil
}

func (c *mapCache) InvalidateAll(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs = map[string]domain.SimulationRun{}
	return nil
}

func TestRunWritesArtifactsAndPersists(t *testing.T) {
	root := t.TempDir()
	svc, repo := newTestService(t, storage.NewLocalStorage(root))
	svc.newID = func() string { return "run-1" }

	run, err := svc.Run(context.Background(), domain.SimulationParams{}, nil)
	require.NoError(t, err)

	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, "baseline", run.Name)
	assert.Equal(t, 7, run.Params.LeadTimeDays)
	assert.Equal(t, 10, run.Days)
	assert.Len(t, run.Daily, 10)
	assert.Equal(t, 40, run.CumulativeDemand)
	assert.GreaterOrEqual(t, run.OrdersPlaced, 1)
	assert.InDelta(t, 100, run.FillRatePct+run.BackorderRatioPct, 1e-9)
	assert.Equal(t, []string{
		"runs/run-1/sim_final_inventory.csv",
		"runs/run-1/sim_daily_summary.csv",
	}, run.Artifacts)
	assert.FileExists(t, filepath.Join(root, "runs", "run-1", "sim_daily_summary.csv"))

	stored, err := repo.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, run.OrdersPlaced, len(stored.Orders))
}

func TestRunServesCachedResult(t *testing.T) {
	svc, repo := newTestService(t, nil)
	svc.cache = &mapCache{runs: map[string]domain.SimulationRun{}}
	ids := []string{"first", "second"}
	svc.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}

	first, err := svc.Run(context.Background(), baseline, nil)
	require.NoError(t, err)
	again, err := svc.Run(context.Background(), baseline, nil)
	require.NoError(t, err)
	assert.Equal(t, "first", again.ID)
	assert.Equal(t, first.FillRatePct, again.FillRatePct)

	longer := baseline
	longer.LeadTimeDays = 3
	other, err := svc.Run(context.Background(), longer, nil)
	require.NoError(t, err)
	assert.Equal(t, "second", other.ID)

	list, err := repo.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestInteractiveRunsBypassCache(t *testing.T) {
	svc, _ := newTestService(t, nil)
	svc.cache = &mapCache{runs: map[string]domain.SimulationRun{}}

	reject := simulation.ConfirmFunc(func(context.Context, time.Time, simulation.Proposal) (bool, error) {
		return false, nil
	})
	params := baseline
	params.Interactive = true

	first, err := svc.Run(context.Background(), params, reject)
	require.NoError(t, err)
	second, err := svc.Run(context.Background(), params, reject)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Zero(t, first.OrdersPlaced)
}

func TestRunReportsMissingInput(t *testing.T) {
	svc, _ := newTestService(t, nil)
	require.NoError(t, os.Remove(svc.opts.Paths.EOQ))

	_, err := svc.Run(context.Background(), baseline, nil)
	require.ErrorIs(t, err, ingest.ErrMissingInput)

	var inputErr *ingest.InputError
	require.True(t, errors.As(err, &inputErr))
	assert.Equal(t, ingest.InputEOQ, inputErr.Input)
}

func TestRunScenariosKeepsOrder(t *testing.T) {
	svc, repo := newTestService(t, nil)

	scenarios := []domain.SimulationParams{
		{Name: "fast", LeadTimeDays: 2},
		{Name: "slow", LeadTimeDays: 14},
		{LeadTimeDays: 7, Interactive: true},
	}
	runs, err := svc.RunScenarios(context.Background(), scenarios, 2)
	require.NoError(t, err)
	require.Len(t, runs, 3)

	assert.Equal(t, "fast", runs[0].Name)
	assert.Equal(t, 2, runs[0].Params.LeadTimeDays)
	assert.Equal(t, "slow", runs[1].Name)
	assert.Equal(t, "scenario-3", runs[2].Name)
	assert.False(t, runs[2].Params.Interactive)
	assert.NotEqual(t, runs[0].ID, runs[1].ID)

	list, err := repo.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestRunScenariosUseSeparateArtifactDirs(t *testing.T) {
	out := t.TempDir()
	svc := NewSimulationService(Options{
		Paths:     writeInputs(t, t.TempDir()),
		Demand:    demand.DefaultOptions(),
		OutputDir: out,
		Defaults:  baseline,
	}, repository.NewMemoryRunRepository(), nil, nil)

	runs, err := svc.RunScenarios(context.Background(), []domain.SimulationParams{
		{Name: "fast", LeadTimeDays: 2},
		{Name: "slow", LeadTimeDays: 14},
	}, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	for _, run := range runs {
		require.NotEmpty(t, run.Artifacts)
		for _, a := range run.Artifacts {
			assert.Equal(t, filepath.Join(out, run.ID), filepath.Dir(a))
			assert.FileExists(t, a)
		}
	}
	assert.NoFileExists(t, filepath.Join(out, "sim_daily_summary.csv"))
}

func TestRunScenariosRejectsInvalidScenario(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.RunScenarios(context.Background(), []domain.SimulationParams{
		{Name: "ok"},
		{Name: "bad", MinTruckTons: 20, MaxTruckTons: 12},
	}, 1)
	require.ErrorIs(t, err, simulation.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "bad")

	_, err = svc.RunScenarios(context.Background(), nil, 1)
	assert.ErrorIs(t, err, ErrNoScenarios)
}

func TestParseScenario(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		want    domain.SimulationParams
		wantErr bool
	}{
		{
			name: "all keys",
			expr: "fast:lead=3,cover=30,min=8,max=11.5",
			want: domain.SimulationParams{Name: "fast", LeadTimeDays: 3, CoverDays: 30, MinTruckTons: 8, MaxTruckTons: 11.5},
		},
		{
			name: "partial keys keep defaults",
			expr: "slow: lead=14",
			want: domain.SimulationParams{Name: "slow", LeadTimeDays: 14, CoverDays: 45, MinTruckTons: 10, MaxTruckTons: 12},
		},
		{
			name: "name only",
			expr: "plain",
			want: domain.SimulationParams{Name: "plain", LeadTimeDays: 7, CoverDays: 45, MinTruckTons: 10, MaxTruckTons: 12},
		},
		{
			name: "keys without name",
			expr: "lead=5",
			want: domain.SimulationParams{Name: "baseline", LeadTimeDays: 5, CoverDays: 45, MinTruckTons: 10, MaxTruckTons: 12},
		},
		{name: "unknown key", expr: "x:speed=3", wantErr: true},
		{name: "bad number", expr: "x:lead=soon", wantErr: true},
		{name: "missing value", expr: "x:lead", wantErr: true},
		{name: "empty", expr: " ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseScenario(tt.expr, baseline)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewRunRepository(t *testing.T) {
	cfg := &config.Config{}

	repo, err := NewRunRepository(cfg)
	require.NoError(t, err)
	assert.IsType(t, &repository.MemoryRunRepository{}, repo)

	cfg.App.RunStore = "bolt"
	cfg.App.BoltPath = filepath.Join(t.TempDir(), "runs.db")
	repo, err = NewRunRepository(cfg)
	require.NoError(t, err)
	assert.IsType(t, &repository.BoltRunRepository{}, repo)
	require.NoError(t, repo.Close())

	cfg.App.RunStore = "sqlite"
	_, err = NewRunRepository(cfg)
	assert.Error(t, err)
}

func TestOptionsFromConfig(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)
	v.Set("APP_INPUT_DIR", "/srv/inputs")
	cfg := config.FromViper(v)

	opts, err := OptionsFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "/srv/inputs/AprJun2024.csv", opts.Paths.Sales)
	assert.Equal(t, "MDF", opts.Demand.StripToken)
	assert.Equal(t, time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), opts.Demand.FallbackEnd)
	assert.Equal(t, baseline, opts.Defaults)

	cfg.Simulation.FallbackEnd = "2024-01-01"
	_, err = OptionsFromConfig(cfg)
	assert.Error(t, err)
}

func TestFetchInputs(t *testing.T) {
	ctx := context.Background()
	store := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, store.UploadObject(ctx, "inputs/AprJun2024.csv", []byte("Date,Particular,Quantity\n")))
	require.NoError(t, store.UploadObject(ctx, "inputs/eoq_results.csv", []byte("Particular,EOQ\n")))

	dest := t.TempDir()
	paths, err := FetchInputs(ctx, store, "inputs/", dest, []string{"AprJun2024.csv", "eoq_results.csv"})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dest, "AprJun2024.csv"), filepath.Join(dest, "eoq_results.csv")}, paths)

	_, err = FetchInputs(ctx, store, "inputs/", dest, []string{"latest_inventory.csv"})
	assert.ErrorIs(t, err, ingest.ErrMissingInput)
}
