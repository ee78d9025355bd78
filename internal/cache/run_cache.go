package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/andresuchdata/stocksim/internal/config"
	"github.com/andresuchdata/stocksim/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RunCache stores finished runs keyed by their inputs and parameters.
type RunCache interface {
	GetRun(ctx context.Context, key string) (*domain.SimulationRun, bool, error)
	SetRun(ctx context.Context, key string, run *domain.SimulationRun) error
	InvalidateAll(ctx context.Context) error
}

type redisRunCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopRunCache struct{}

func NewRunCache(cfg config.CacheConfig) (RunCache, error) {
	if !cfg.Enabled {
		return &noopRunCache{}, nil
	}

	client, err := dialRedis(cfg)
	if err != nil {
		return nil, err
	}

	return &redisRunCache{client: client, ttl: runTTL(cfg)}, nil
}

func NewNoopRunCache() RunCache {
	return &noopRunCache{}
}

// RunKey derives the cache key from the input fingerprint and the run tunables.
// The scenario name is left out so renamed scenarios share results.
func RunKey(fingerprint string, p domain.SimulationParams) string {
	raw := fingerprint +
		"|lead=" + strconv.Itoa(p.LeadTimeDays) +
		"|cover=" + strconv.FormatFloat(p.CoverDays, 'g', -1, 64) +
		"|min=" + strconv.FormatFloat(p.MinTruckTons, 'g', -1, 64) +
		"|max=" + strconv.FormatFloat(p.MaxTruckTons, 'g', -1, 64)
	hash := sha1.Sum([]byte(raw))
	return runKey(hex.EncodeToString(hash[:]))
}

func (c *redisRunCache) GetRun(ctx context.Context, key string) (*domain.SimulationRun, bool, error) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var run domain.SimulationRun
	if err := json.Unmarshal(payload, &run); err != nil {
		return nil, false, fmt.Errorf("decode run cache: %w", err)
	}

	return &run, true, nil
}

func (c *redisRunCache) SetRun(ctx context.Context, key string, run *domain.SimulationRun) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode run cache: %w", err)
	}

	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}

	return nil
}

func (c *redisRunCache) InvalidateAll(ctx context.Context) error {
	removed, err := purgeRuns(ctx, c.client)
	if err != nil {
		return err
	}
	log.Info().Int("keys", removed).Msg("Invalidated cached simulation runs")
	return nil
}

func (n *noopRunCache) GetRun(ctx context.Context, key string) (*domain.SimulationRun, bool, error) {
	return nil, false, nil
}

func (n *noopRunCache) SetRun(ctx context.Context, key string, run *domain.SimulationRun) error {
	return nil
}

func (n *noopRunCache) InvalidateAll(ctx context.Context) error {
	return nil
}
