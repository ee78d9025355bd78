package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/andresuchdata/stocksim/internal/domain"
)

var runsBucket = []byte("runs")

// BoltRunRepository stores runs as JSON documents in a local bbolt file.
type BoltRunRepository struct {
	db *bbolt.DB
}

func NewBoltRunRepository(dbPath string) (*BoltRunRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create parent directory for bolt db: %w", err)
	}

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{
		Timeout:      1 * time.Second,
		FreelistType: bbolt.FreelistMapType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(runsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create runs bucket: %w", err)
	}

	return &BoltRunRepository{db: db}, nil
}

func (r *BoltRunRepository) Close() error {
	return r.db.Close()
}

func (r *BoltRunRepository) SaveRun(_ context.Context, run *domain.SimulationRun) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}
	return r.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(runsBucket).Put([]byte(run.ID), data)
	})
}

func (r *BoltRunRepository) GetRun(_ context.Context, id string) (*domain.SimulationRun, error) {
	var run domain.SimulationRun
	err := r.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(runsBucket).Get([]byte(id))
		if data == nil {
			return ErrRunNotFound
		}
		if err := json.Unmarshal(data, &run); err != nil {
			return fmt.Errorf("failed to unmarshal run: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *BoltRunRepository) ListRuns(_ context.Context, limit int) ([]domain.RunSummary, error) {
	var out []domain.RunSummary
	err := r.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(runsBucket).ForEach(func(k, v []byte) error {
			// The embedded summary fields are flattened at the top level of the document.
			var summary domain.RunSummary
			if err := json.Unmarshal(v, &summary); err != nil {
				return fmt.Errorf("failed to unmarshal run %s: %w", k, err)
			}
			out = append(out, summary)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return newestFirst(out, limit), nil
}
