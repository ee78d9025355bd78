package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/andresuchdata/stocksim/internal/domain"
	"github.com/andresuchdata/stocksim/internal/simulation"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	DailySummaryFile   = "sim_daily_summary.csv"
	FinalInventoryFile = "sim_final_inventory.csv"
	WorkbookFile       = "sim_results.xlsx"
)

var (
	DailyHeader = []string{
		"Date", "demand_total", "shipped_total", "backordered_today", "backorder_ratio_today_pct",
		"open_backorders_units", "cum_demand", "cum_shipped", "cum_fill_rate_pct",
		"cum_backorder_ratio_pct", "pending_batch_tons", "triggers_count", "order_placed", "order_tons",
		"received_units", "triggered",
	}
	FinalHeader = []string{
		"Particular", "final_on_hand", "on_order", "backorders", "inventory_position", "reorder_point", "action",
	}
)

// Pct rounds a percentage to 2 decimals.
func Pct(v float64) decimal.Decimal { return decimal.NewFromFloat(v).Round(2) }

// Tons rounds a weight to 3 decimals.
func Tons(v float64) decimal.Decimal { return decimal.NewFromFloat(v).Round(3) }

// RoundDaily returns a copy of days with percentages and weights rounded the
// way they are exported.
func RoundDaily(days []domain.DailySummary) []domain.DailySummary {
	out := make([]domain.DailySummary, len(days))
	for i, d := range days {
		d.BackorderRatioTodayPct = Pct(d.BackorderRatioTodayPct).InexactFloat64()
		d.CumFillRatePct = Pct(d.CumFillRatePct).InexactFloat64()
		d.CumBackorderRatioPct = Pct(d.CumBackorderRatioPct).InexactFloat64()
		d.PendingBatchTons = Tons(d.PendingBatchTons).InexactFloat64()
		d.OrderTons = Tons(d.OrderTons).InexactFloat64()
		out[i] = d
	}
	return out
}

func dailyRecord(d domain.DailySummary) []string {
	return []string{
		d.Date.Format("2006-01-02"),
		strconv.Itoa(d.DemandTotal),
		strconv.Itoa(d.ShippedTotal),
		strconv.Itoa(d.BackorderedToday),
		Pct(d.BackorderRatioTodayPct).String(),
		strconv.Itoa(d.OpenBackorderUnits),
		strconv.Itoa(d.CumDemand),
		strconv.Itoa(d.CumShipped),
		Pct(d.CumFillRatePct).String(),
		Pct(d.CumBackorderRatioPct).String(),
		Tons(d.PendingBatchTons).String(),
		strconv.Itoa(d.TriggersCount),
		formatBool(d.OrderPlaced),
		Tons(d.OrderTons).String(),
		strconv.Itoa(d.ReceivedUnits),
		triggeredCell(d.Triggered),
	}
}

// triggeredCell joins the day's SKU:need entries for a single cell.
func triggeredCell(triggered []string) string {
	return strings.Join(triggered, ";")
}

func finalRecord(f domain.FinalInventory) []string {
	return []string{
		f.SKU,
		strconv.Itoa(f.OnHand),
		strconv.Itoa(f.OnOrder),
		strconv.Itoa(f.Backorder),
		strconv.Itoa(f.InventoryPosition),
		decimal.NewFromFloat(f.ReorderPoint).Round(2).String(),
		string(f.Action),
	}
}

func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// WriteDailySummaryCSV writes one row per simulated day.
func WriteDailySummaryCSV(w io.Writer, days []domain.DailySummary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(DailyHeader); err != nil {
		return err
	}
	for _, d := range days {
		if err := cw.Write(dailyRecord(d)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFinalInventoryCSV writes the end-of-run snapshot, one row per SKU.
func WriteFinalInventoryCSV(w io.Writer, final []domain.FinalInventory) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(FinalHeader); err != nil {
		return err
	}
	for _, f := range final {
		if err := cw.Write(finalRecord(f)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFiles writes the CSV artifacts, and the workbook when requested, into
// dir. It returns the paths written.
func WriteFiles(dir string, res *simulation.Result, workbook bool) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	var paths []string
	write := func(name string, fn func(io.Writer) error) error {
		path := filepath.Join(dir, name)
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", name, err)
		}
		if err := fn(f); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", name, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close %s: %w", name, err)
		}
		paths = append(paths, path)
		return nil
	}

	if err := write(FinalInventoryFile, func(w io.Writer) error {
		return WriteFinalInventoryCSV(w, res.Final)
	}); err != nil {
		return nil, err
	}
	if err := write(DailySummaryFile, func(w io.Writer) error {
		return WriteDailySummaryCSV(w, res.Days)
	}); err != nil {
		return nil, err
	}
	if workbook {
		if err := write(WorkbookFile, func(w io.Writer) error {
			return WriteWorkbook(w, res)
		}); err != nil {
			return nil, err
		}
	}

	for _, p := range paths {
		log.Info().Str("path", p).Msg("Wrote artifact")
	}
	return paths, nil
}

// SummaryLine is the one-line overall result.
func SummaryLine(fillRatePct, backorderRatioPct float64) string {
	return fmt.Sprintf("Overall cumulative fill rate: %s%% | Overall BO ratio: %s%%",
		decimal.NewFromFloat(fillRatePct).StringFixed(2),
		decimal.NewFromFloat(backorderRatioPct).StringFixed(2))
}
