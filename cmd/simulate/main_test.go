package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/stocksim/internal/config"
	"github.com/andresuchdata/stocksim/internal/domain"
	"github.com/andresuchdata/stocksim/internal/repository"
)

func TestListMigrationsOrdersSQLFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"010_b.sql", "002_a.SQL", "README.md", "001_init.sql"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "999_dir.sql"), 0o755))

	files, err := listMigrations(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "001_init.sql"),
		filepath.Join(dir, "002_a.SQL"),
		filepath.Join(dir, "010_b.sql"),
	}, files)

	_, err = listMigrations(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func testConfig(t *testing.T) *config.Config {
	v := viper.New()
	config.SetDefaults(v)
	cfg := config.FromViper(v)
	cfg.App.RunStore = "memory"
	return cfg
}

func writeFeeds(t *testing.T, dir string) {
	files := map[string]string{
		"AprJun2024.csv":         "Date,Particular,Quantity\n01/04/2024,18MM MDF BOARD,20\n13/04/2024,18MM MDF BOARD,20\n",
		"latest_inventory.csv":   "Particular,Quantity\n18MM BOARD,100\n",
		"reorder_evaluation.csv": "Particular,mu_daily,safety_stock,reorder_point\n18MM BOARD,10,20,90\n",
		"eoq_results.csv":        "Particular,EOQ\n18MM BOARD,200\n",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
}

func newTestApp(cfg *config.Config, out *bytes.Buffer) *cli.App {
	app := newApp(cfg)
	app.Writer = out
	return app
}

func TestRunCommand(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeFeeds(t, in)

	var buf bytes.Buffer
	app := newTestApp(testConfig(t), &buf)
	require.NoError(t, app.Run([]string{"simulate", "run", "--input-dir", in, "--out-dir", out, "--workbook"}))

	output := buf.String()
	assert.Contains(t, output, "18MM BOARD")
	assert.Contains(t, output, "Overall cumulative fill rate:")
	assert.FileExists(t, filepath.Join(out, "sim_daily_summary.csv"))
	assert.FileExists(t, filepath.Join(out, "sim_final_inventory.csv"))
	assert.FileExists(t, filepath.Join(out, "sim_results.xlsx"))
}

func TestScenariosCommand(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeFeeds(t, in)

	cfg := testConfig(t)
	cfg.App.RunStore = "bolt"
	cfg.App.BoltPath = filepath.Join(t.TempDir(), "runs.db")

	var buf bytes.Buffer
	app := newTestApp(cfg, &buf)
	require.NoError(t, app.Run([]string{
		"simulate", "scenarios", "--input-dir", in, "--out-dir", out,
		"-s", "fast:lead=2", "-s", "slow:lead=14,cover=30,max=13",
	}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "fast ["))
	assert.True(t, strings.HasPrefix(lines[1], "slow ["))

	repo, err := repository.NewBoltRunRepository(cfg.App.BoltPath)
	require.NoError(t, err)
	defer repo.Close()

	runs, err := repo.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	params := map[string]domain.SimulationParams{}
	for _, r := range runs {
		params[r.Name] = r.Params
	}
	require.Contains(t, params, "slow")
	assert.Equal(t, 14, params["slow"].LeadTimeDays)
	assert.Equal(t, 30.0, params["slow"].CoverDays)
	assert.Equal(t, 13.0, params["slow"].MaxTruckTons)
	assert.Equal(t, 2, params["fast"].LeadTimeDays)

	err = newTestApp(testConfig(t), &buf).Run([]string{"simulate", "scenarios", "--input-dir", in, "-s", "bad:speed=1"})
	assert.Error(t, err)
}
