package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/stocksim/internal/cache"
	"github.com/andresuchdata/stocksim/internal/config"
	"github.com/andresuchdata/stocksim/internal/domain"
	"github.com/andresuchdata/stocksim/internal/report"
	"github.com/andresuchdata/stocksim/internal/service"
	"github.com/andresuchdata/stocksim/internal/simulation"
	"github.com/andresuchdata/stocksim/pkg/logger"
)

func main() {
	app := newApp(config.Load())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal().Err(err).Msg("simulate failed")
	}
}

func newApp(cfg *config.Config) *cli.App {
	return &cli.App{
		Name:  "simulate",
		Usage: "Day-step inventory replenishment simulation with truck-load batching",
		// Scenario expressions carry commas; keep each --scenario value whole.
		DisableSliceFlagSeparator: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug shows one line per simulated day)",
				Value:   cfg.Server.LogLevel,
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Before: func(c *cli.Context) error {
			logger.SetLevel(c.String("log-level"))
			return nil
		},
		Commands: []*cli.Command{
			runCommand(cfg),
			scenariosCommand(cfg),
			runsCommand(cfg),
			fetchCommand(cfg),
			migrateCommand(cfg),
		},
	}
}

func inputFlags(cfg *config.Config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "input-dir", Usage: "Directory holding the four input feeds", Value: cfg.App.InputDir, EnvVars: []string{"APP_INPUT_DIR"}},
		&cli.StringFlag{Name: "sales", Usage: "Sales history feed", Value: cfg.App.SalesFile, EnvVars: []string{"APP_SALES_FILE"}},
		&cli.StringFlag{Name: "inventory", Usage: "Opening inventory feed", Value: cfg.App.InventoryFile, EnvVars: []string{"APP_INVENTORY_FILE"}},
		&cli.StringFlag{Name: "rop", Usage: "Reorder evaluation feed", Value: cfg.App.ROPFile, EnvVars: []string{"APP_ROP_FILE"}},
		&cli.StringFlag{Name: "eoq", Usage: "EOQ feed", Value: cfg.App.EOQFile, EnvVars: []string{"APP_EOQ_FILE"}},
		&cli.StringFlag{Name: "out-dir", Usage: "Directory for output artifacts", Value: cfg.App.DataDir, EnvVars: []string{"APP_DATA_DIR"}},
		&cli.BoolFlag{Name: "workbook", Usage: "Also write " + report.WorkbookFile, Value: cfg.App.WriteWorkbook, EnvVars: []string{"APP_WRITE_WORKBOOK"}},
		&cli.StringFlag{Name: "store", Usage: "Run store: memory, bolt or postgres", Value: cfg.App.RunStore, EnvVars: []string{"APP_RUN_STORE"}},
	}
}

func policyFlags(cfg *config.Config) []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "lead-time", Usage: "Days between order and arrival", Value: cfg.Simulation.LeadTimeDays, EnvVars: []string{"SIM_LEAD_TIME_DAYS"}},
		&cli.Float64Flag{Name: "cover-days", Usage: "Days of mean demand an order should cover", Value: cfg.Simulation.CoverDays, EnvVars: []string{"SIM_COVER_DAYS"}},
		&cli.Float64Flag{Name: "min-tons", Usage: "Minimum truck load", Value: cfg.Simulation.TruckMinTons, EnvVars: []string{"SIM_TRUCK_MIN_TONS"}},
		&cli.Float64Flag{Name: "max-tons", Usage: "Maximum truck load", Value: cfg.Simulation.TruckMaxTons, EnvVars: []string{"SIM_TRUCK_MAX_TONS"}},
	}
}

// applyInputFlags copies input and output flags onto cfg.
func applyInputFlags(c *cli.Context, cfg *config.Config) {
	cfg.App.InputDir = c.String("input-dir")
	cfg.App.SalesFile = c.String("sales")
	cfg.App.InventoryFile = c.String("inventory")
	cfg.App.ROPFile = c.String("rop")
	cfg.App.EOQFile = c.String("eoq")
	cfg.App.DataDir = c.String("out-dir")
	cfg.App.WriteWorkbook = c.Bool("workbook")
	cfg.App.RunStore = c.String("store")
}

func applyPolicyFlags(c *cli.Context, cfg *config.Config) {
	cfg.Simulation.LeadTimeDays = c.Int("lead-time")
	cfg.Simulation.CoverDays = c.Float64("cover-days")
	cfg.Simulation.TruckMinTons = c.Float64("min-tons")
	cfg.Simulation.TruckMaxTons = c.Float64("max-tons")
}

// newService builds the simulation service and returns a cleanup func for the run store.
func newService(cfg *config.Config, perRunDirs bool) (*service.SimulationService, func(), error) {
	opts, err := service.OptionsFromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	opts.PerRunDirs = perRunDirs

	repo, err := service.NewRunRepository(cfg)
	if err != nil {
		return nil, nil, err
	}

	runCache, err := cache.NewRunCache(cfg.Cache)
	if err != nil {
		log.Warn().Err(err).Msg("run cache unavailable, continuing without cache")
		runCache = cache.NewNoopRunCache()
	}

	store, err := service.NewObjectStorage(cfg.Storage)
	if err != nil {
		repo.Close()
		return nil, nil, err
	}

	cleanup := func() {
		if err := repo.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close run store")
		}
	}
	return service.NewSimulationService(opts, repo, runCache, store), cleanup, nil
}

func runCommand(cfg *config.Config) *cli.Command {
	flags := append(inputFlags(cfg), policyFlags(cfg)...)
	flags = append(flags,
		&cli.StringFlag{Name: "name", Usage: "Run name", Value: "baseline"},
		&cli.BoolFlag{Name: "interactive", Usage: "Ask before placing each truck order", Value: cfg.Simulation.Interactive, EnvVars: []string{"SIM_INTERACTIVE"}},
		&cli.IntFlag{Name: "show", Usage: "Final inventory rows to print (0 prints all)", Value: 20},
	)

	return &cli.Command{
		Name:  "run",
		Usage: "Simulate the sales window and write the daily summary and final inventory",
		Flags: flags,
		Action: func(c *cli.Context) error {
			applyInputFlags(c, cfg)
			applyPolicyFlags(c, cfg)

			svc, cleanup, err := newService(cfg, false)
			if err != nil {
				return err
			}
			defer cleanup()

			params := service.DefaultParams(cfg.Simulation)
			params.Name = c.String("name")
			params.Interactive = c.Bool("interactive")

			var confirmer simulation.Confirmer
			if params.Interactive {
				confirmer = simulation.NewPromptConfirmer(os.Stdin, os.Stdout)
			}

			run, err := svc.Run(c.Context, params, confirmer)
			if err != nil {
				return err
			}

			out := c.App.Writer
			if err := report.WriteFinalTable(out, run.Final, c.Int("show")); err != nil {
				return err
			}
			for _, a := range run.Artifacts {
				fmt.Fprintf(out, "wrote %s\n", a)
			}
			fmt.Fprintln(out, report.SummaryLine(run.FillRatePct, run.BackorderRatioPct))
			return nil
		},
	}
}

func scenariosCommand(cfg *config.Config) *cli.Command {
	flags := append(inputFlags(cfg), policyFlags(cfg)...)
	flags = append(flags,
		&cli.StringSliceFlag{Name: "scenario", Aliases: []string{"s"}, Usage: "name:lead=7,cover=45,min=10,max=12 (repeatable)", Required: true},
		&cli.IntFlag{Name: "parallelism", Usage: "Scenarios simulated at once", Value: cfg.Simulation.ScenarioParallelism, EnvVars: []string{"SIM_SCENARIO_PARALLELISM"}},
	)

	return &cli.Command{
		Name:  "scenarios",
		Usage: "Run independent what-if simulations over the same inputs",
		Flags: flags,
		Action: func(c *cli.Context) error {
			applyInputFlags(c, cfg)
			applyPolicyFlags(c, cfg)

			defaults := service.DefaultParams(cfg.Simulation)
			var scenarios []domain.SimulationParams
			for _, expr := range c.StringSlice("scenario") {
				p, err := service.ParseScenario(expr, defaults)
				if err != nil {
					return err
				}
				scenarios = append(scenarios, p)
			}

			svc, cleanup, err := newService(cfg, true)
			if err != nil {
				return err
			}
			defer cleanup()

			runs, err := svc.RunScenarios(c.Context, scenarios, c.Int("parallelism"))
			if err != nil {
				return err
			}
			for _, run := range runs {
				fmt.Fprintln(c.App.Writer, report.RunLine(run))
			}
			return nil
		},
	}
}

func runsCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "List persisted runs, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "store", Usage: "Run store: memory, bolt or postgres", Value: cfg.App.RunStore, EnvVars: []string{"APP_RUN_STORE"}},
			&cli.IntFlag{Name: "limit", Usage: "Maximum runs to list", Value: 20},
		},
		Action: func(c *cli.Context) error {
			cfg.App.RunStore = c.String("store")
			repo, err := service.NewRunRepository(cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			runs, err := repo.ListRuns(c.Context, c.Int("limit"))
			if err != nil {
				return err
			}
			for i := range runs {
				fmt.Fprintln(c.App.Writer, report.RunLine(&domain.SimulationRun{RunSummary: runs[i]}))
			}
			return nil
		},
	}
}
