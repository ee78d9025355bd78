package cache

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/andresuchdata/stocksim/internal/config"
	"github.com/redis/go-redis/v9"
)

const (
	runKeyPrefix  = "simulation:run"
	defaultRunTTL = time.Hour
	purgeBatch    = 100
	pingTimeout   = 5 * time.Second
)

// runKey places a parameter digest under the run namespace.
func runKey(digest string) string {
	return runKeyPrefix + ":" + digest
}

// runTTL is how long a finished run stays cached; non-positive config means one hour.
func runTTL(cfg config.CacheConfig) time.Duration {
	if cfg.RunTTLSeconds <= 0 {
		return defaultRunTTL
	}
	return time.Duration(cfg.RunTTLSeconds) * time.Second
}

// dialRedis connects and pings so an unreachable cache is reported at startup.
func dialRedis(cfg config.CacheConfig) (*redis.Client, error) {
	opts, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("run cache at %s unreachable: %w", opts.Addr, err)
	}
	return client, nil
}

// redisOptions prefers REDIS_URL and otherwise falls back to host, port and db.
func redisOptions(cfg config.CacheConfig) (*redis.Options, error) {
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		return opts, nil
	}

	return &redis.Options{
		Addr:     net.JoinHostPort(orDefault(cfg.RedisHost, "127.0.0.1"), orDefault(cfg.RedisPort, "6379")),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// purgeRuns unlinks every cached run and returns how many keys were removed.
func purgeRuns(ctx context.Context, client *redis.Client) (int, error) {
	iter := client.Scan(ctx, 0, runKeyPrefix+":*", purgeBatch).Iterator()

	removed := 0
	batch := make([]string, 0, purgeBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := client.Unlink(ctx, batch...).Result()
		if err != nil {
			return fmt.Errorf("unlink cached runs: %w", err)
		}
		removed += int(n)
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == purgeBatch {
			if err := flush(); err != nil {
				return removed, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("scan cached runs: %w", err)
	}
	return removed, flush()
}
