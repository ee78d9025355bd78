// internal/repository/postgres/run_repository.go
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/andresuchdata/stocksim/internal/domain"
	"github.com/andresuchdata/stocksim/internal/repository"
)

type runRepository struct {
	db *DB
}

var _ repository.RunRepository = (*runRepository)(nil)

func NewRunRepository(db *DB) *runRepository {
	return &runRepository{db: db}
}

// runRow is the simulation_runs row; orders and artifacts are JSON columns.
type runRow struct {
	domain.RunSummary
	LeadTimeDays int     `db:"lead_time_days"`
	CoverDays    float64 `db:"cover_days"`
	MinTruckTons float64 `db:"min_truck_tons"`
	MaxTruckTons float64 `db:"max_truck_tons"`
	Interactive  bool    `db:"interactive"`
	Orders       []byte  `db:"orders"`
	Artifacts    []byte  `db:"artifacts"`
}

func (r runRow) summary() domain.RunSummary {
	s := r.RunSummary
	s.Params = domain.SimulationParams{
		Name:         r.Name,
		LeadTimeDays: r.LeadTimeDays,
		CoverDays:    r.CoverDays,
		MinTruckTons: r.MinTruckTons,
		MaxTruckTons: r.MaxTruckTons,
		Interactive:  r.Interactive,
	}
	return s
}

const runColumns = `
	id, name, lead_time_days, cover_days, min_truck_tons, max_truck_tons, interactive,
	started_at, completed_at, date_from, date_to, days, cumulative_demand, cumulative_shipped,
	fill_rate_pct, backorder_ratio_pct, orders_placed, unparseable_dates, day_first, orders, artifacts`

func (r *runRepository) SaveRun(ctx context.Context, run *domain.SimulationRun) error {
	orders, err := json.Marshal(run.Orders)
	if err != nil {
		return fmt.Errorf("failed to marshal orders: %w", err)
	}
	artifacts, err := json.Marshal(run.Artifacts)
	if err != nil {
		return fmt.Errorf("failed to marshal artifacts: %w", err)
	}

	return r.db.withRunTx(ctx, run.ID, func(tx *sqlx.Tx) error {
		p := run.Params
		_, err := tx.ExecContext(ctx, `
			INSERT INTO simulation_runs (`+runColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
			run.ID, run.Name, p.LeadTimeDays, p.CoverDays, p.MinTruckTons, p.MaxTruckTons, p.Interactive,
			run.StartedAt, run.CompletedAt, run.From, run.To, run.Days, run.CumulativeDemand, run.CumulativeShipped,
			run.FillRatePct, run.BackorderRatioPct, run.OrdersPlaced, run.UnparseableDates, run.DayFirst,
			orders, artifacts,
		)
		if err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}

		dailyStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO simulation_daily_summaries (
				run_id, day, demand_total, shipped_total, backordered_today, backorder_ratio_today_pct,
				open_backorders_units, cum_demand, cum_shipped, cum_fill_rate_pct, cum_backorder_ratio_pct,
				pending_batch_tons, triggers_count, triggered, received_units, order_placed, order_tons
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`)
		if err != nil {
			return fmt.Errorf("failed to prepare daily statement: %w", err)
		}
		defer dailyStmt.Close()

		for _, d := range run.Daily {
			if _, err := dailyStmt.ExecContext(ctx,
				run.ID, d.Date, d.DemandTotal, d.ShippedTotal, d.BackorderedToday, d.BackorderRatioTodayPct,
				d.OpenBackorderUnits, d.CumDemand, d.CumShipped, d.CumFillRatePct, d.CumBackorderRatioPct,
				d.PendingBatchTons, d.TriggersCount, strings.Join(d.Triggered, ","), d.ReceivedUnits,
				d.OrderPlaced, d.OrderTons,
			); err != nil {
				return fmt.Errorf("failed to insert daily summary %s: %w", d.Date.Format("2006-01-02"), err)
			}
		}

		finalStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO simulation_final_inventory (
				run_id, sku, final_on_hand, on_order, backorders, inventory_position, reorder_point, action
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`)
		if err != nil {
			return fmt.Errorf("failed to prepare final inventory statement: %w", err)
		}
		defer finalStmt.Close()

		for _, f := range run.Final {
			if _, err := finalStmt.ExecContext(ctx,
				run.ID, f.SKU, f.OnHand, f.OnOrder, f.Backorder, f.InventoryPosition, f.ReorderPoint, string(f.Action),
			); err != nil {
				return fmt.Errorf("failed to insert final inventory for %s: %w", f.SKU, err)
			}
		}

		return nil
	})
}

// dailyRow adds the comma-joined triggered list to the summary columns.
type dailyRow struct {
	domain.DailySummary
	TriggeredList string `db:"triggered"`
}

func (r *runRepository) GetRun(ctx context.Context, id string) (*domain.SimulationRun, error) {
	var row runRow
	err := r.db.GetContext(ctx, &row, `SELECT `+runColumns+` FROM simulation_runs WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	run := &domain.SimulationRun{RunSummary: row.summary()}
	if len(row.Orders) > 0 {
		if err := json.Unmarshal(row.Orders, &run.Orders); err != nil {
			return nil, fmt.Errorf("failed to unmarshal orders: %w", err)
		}
	}
	if len(row.Artifacts) > 0 {
		if err := json.Unmarshal(row.Artifacts, &run.Artifacts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal artifacts: %w", err)
		}
	}

	var daily []dailyRow
	if err := r.db.SelectContext(ctx, &daily, `
		SELECT day, demand_total, shipped_total, backordered_today, backorder_ratio_today_pct,
			open_backorders_units, cum_demand, cum_shipped, cum_fill_rate_pct, cum_backorder_ratio_pct,
			pending_batch_tons, triggers_count, triggered, received_units, order_placed, order_tons
		FROM simulation_daily_summaries
		WHERE run_id = $1
		ORDER BY day`, id); err != nil {
		return nil, fmt.Errorf("failed to get daily summaries: %w", err)
	}
	run.Daily = make([]domain.DailySummary, len(daily))
	for i, d := range daily {
		run.Daily[i] = d.DailySummary
		if d.TriggeredList != "" {
			run.Daily[i].Triggered = strings.Split(d.TriggeredList, ",")
		}
	}

	if err := r.db.SelectContext(ctx, &run.Final, `
		SELECT sku, final_on_hand, on_order, backorders, inventory_position, reorder_point, action
		FROM simulation_final_inventory
		WHERE run_id = $1
		ORDER BY sku`, id); err != nil {
		return nil, fmt.Errorf("failed to get final inventory: %w", err)
	}

	return run, nil
}

func (r *runRepository) ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	query := `SELECT ` + runColumns + ` FROM simulation_runs ORDER BY started_at DESC, id`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	var rows []runRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	out := make([]domain.RunSummary, len(rows))
	for i, row := range rows {
		out[i] = row.summary()
	}
	return out, nil
}

func (r *runRepository) Close() error {
	return r.db.Close()
}
