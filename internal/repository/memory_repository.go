package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/andresuchdata/stocksim/internal/domain"
)

// MemoryRunRepository keeps runs for the lifetime of the process.
type MemoryRunRepository struct {
	mu   sync.RWMutex
	runs map[string]domain.SimulationRun
}

func NewMemoryRunRepository() *MemoryRunRepository {
	return &MemoryRunRepository{runs: make(map[string]domain.SimulationRun)}
}

func (r *MemoryRunRepository) SaveRun(_ context.Context, run *domain.SimulationRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = *run
	return nil
}

func (r *MemoryRunRepository) GetRun(_ context.Context, id string) (*domain.SimulationRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return &run, nil
}

func (r *MemoryRunRepository) ListRuns(_ context.Context, limit int) ([]domain.RunSummary, error) {
	r.mu.RLock()
	out := make([]domain.RunSummary, 0, len(r.runs))
	for _, run := range r.runs {
		out = append(out, run.Summary())
	}
	r.mu.RUnlock()

	return newestFirst(out, limit), nil
}

func (r *MemoryRunRepository) Close() error { return nil }

func newestFirst(runs []domain.RunSummary, limit int) []domain.RunSummary {
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].StartedAt.After(runs[j].StartedAt)
		}
		return runs[i].ID < runs[j].ID
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs
}
