package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/stocksim/internal/config"
	"github.com/andresuchdata/stocksim/internal/repository/postgres"
)

func migrateCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply SQL migrations for the postgres run store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db-url",
				Usage:   "Database connection string (defaults to the DB_* settings)",
				Value:   postgres.DSN(&cfg.Database),
				EnvVars: []string{"DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:  "dir",
				Usage: "Directory containing *.sql migrations",
				Value: "./scripts/migrations",
			},
		},
		Action: func(c *cli.Context) error {
			files, err := listMigrations(c.String("dir"))
			if err != nil {
				return err
			}

			db, err := sql.Open("pgx", c.String("db-url"))
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer db.Close()

			if err := db.PingContext(c.Context); err != nil {
				return fmt.Errorf("failed to ping database: %w", err)
			}

			applied, err := applyMigrations(c.Context, db, files)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "applied %d of %d migrations\n", applied, len(files))
			return nil
		},
	}
}

// listMigrations returns the *.sql files in dir in lexical order.
func listMigrations(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".sql") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func applyMigrations(ctx context.Context, db *sql.DB, files []string) (int, error) {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name       TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		return 0, fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	applied := 0
	for _, path := range files {
		name := filepath.Base(path)

		var exists bool
		if err := db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name = $1)`, name).Scan(&exists); err != nil {
			return applied, fmt.Errorf("failed to check migration %s: %w", name, err)
		}
		if exists {
			log.Debug().Str("migration", name).Msg("Migration already applied")
			continue
		}

		body, err := os.ReadFile(path)
		if err != nil {
			return applied, fmt.Errorf("failed to read migration %s: %w", name, err)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return applied, fmt.Errorf("failed to begin transaction: %w", err)
		}
		if _, err := tx.ExecContext(ctx, string(body)); err != nil {
			tx.Rollback()
			return applied, fmt.Errorf("migration %s failed: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name); err != nil {
			tx.Rollback()
			return applied, fmt.Errorf("failed to record migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return applied, fmt.Errorf("failed to commit migration %s: %w", name, err)
		}

		log.Info().Str("migration", name).Msg("Applied migration")
		applied++
	}
	return applied, nil
}
