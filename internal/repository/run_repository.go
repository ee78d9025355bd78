// internal/repository/run_repository.go
package repository

import (
	"context"
	"errors"

	"github.com/andresuchdata/stocksim/internal/domain"
)

var ErrRunNotFound = errors.New("simulation run not found")

// RunRepository persists completed simulation runs.
type RunRepository interface {
	SaveRun(ctx context.Context, run *domain.SimulationRun) error
	GetRun(ctx context.Context, id string) (*domain.SimulationRun, error)
	// ListRuns returns the most recent runs first. A limit <= 0 returns all.
	ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error)
	Close() error
}
