package postgres

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/andresuchdata/stocksim/internal/config"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

const (
	maxOpenConns    = 25
	maxIdleConns    = 5
	connMaxLifetime = 5 * time.Minute
	// concurrent run writes; parallel scenarios save at the same time
	maxRunWriters = 10
)

// DB is the shared pool for simulation run storage.
type DB struct {
	*sqlx.DB
	writers *semaphore.Weighted
}

var (
	shared   *DB
	openOnce sync.Once
	openErr  error
)

// DSN builds a lib/pq connection string from the database config.
func DSN(cfg *config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
}

// NewDB opens the pool once per process; later calls return the same pool.
func NewDB(cfg *config.DatabaseConfig) (*DB, error) {
	openOnce.Do(func() {
		db, err := sqlx.Connect("postgres", DSN(cfg))
		if err != nil {
			openErr = fmt.Errorf("connect run store %s/%s: %w", cfg.Host, cfg.DBName, err)
			return
		}
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxIdleConns)
		db.SetConnMaxLifetime(connMaxLifetime)

		shared = &DB{DB: db, writers: semaphore.NewWeighted(maxRunWriters)}
	})
	return shared, openErr
}

// withRunTx replaces everything stored for runID inside one transaction:
// the existing run row (and its cascaded children) is deleted before fn
// writes the new rows.
func (db *DB) withRunTx(ctx context.Context, runID string, fn func(tx *sqlx.Tx) error) error {
	if err := db.writers.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("run %s: wait for writer: %w", runID, err)
	}
	defer db.writers.Release(1)

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("run %s: begin: %w", runID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM simulation_runs WHERE id = $1`, runID); err != nil {
		rollback(tx, runID)
		return fmt.Errorf("run %s: clear previous rows: %w", runID, err)
	}
	if err := fn(tx); err != nil {
		rollback(tx, runID)
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("run %s: commit: %w", runID, err)
	}
	return nil
}

func rollback(tx *sqlx.Tx, runID string) {
	if err := tx.Rollback(); err != nil {
		log.Error().Err(err).Str("run_id", runID).Msg("could not rollback run transaction")
	}
}
