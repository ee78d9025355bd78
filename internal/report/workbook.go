package report

import (
	"fmt"
	"io"

	"github.com/andresuchdata/stocksim/internal/simulation"
	"github.com/xuri/excelize/v2"
)

const (
	dailySheet = "daily_summary"
	finalSheet = "final_inventory"
)

// WriteWorkbook writes the daily summary and final inventory as two sheets.
func WriteWorkbook(w io.Writer, res *simulation.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), dailySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(finalSheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	if err := writeRows(f, dailySheet, DailyHeader, len(res.Days), func(i int) []interface{} {
		d := res.Days[i]
		return []interface{}{
			d.Date.Format("2006-01-02"),
			d.DemandTotal,
			d.ShippedTotal,
			d.BackorderedToday,
			Pct(d.BackorderRatioTodayPct).InexactFloat64(),
			d.OpenBackorderUnits,
			d.CumDemand,
			d.CumShipped,
			Pct(d.CumFillRatePct).InexactFloat64(),
			Pct(d.CumBackorderRatioPct).InexactFloat64(),
			Tons(d.PendingBatchTons).InexactFloat64(),
			d.TriggersCount,
			d.OrderPlaced,
			Tons(d.OrderTons).InexactFloat64(),
			d.ReceivedUnits,
			triggeredCell(d.Triggered),
		}
	}); err != nil {
		return err
	}

	if err := writeRows(f, finalSheet, FinalHeader, len(res.Final), func(i int) []interface{} {
		r := res.Final[i]
		return []interface{}{
			r.SKU, r.OnHand, r.OnOrder, r.Backorder, r.InventoryPosition, r.ReorderPoint, string(r.Action),
		}
	}); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	return f.Write(w)
}

func writeRows(f *excelize.File, sheet string, header []string, n int, row func(int) []interface{}) error {
	hdr := make([]interface{}, len(header))
	for i, h := range header {
		hdr[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &hdr); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}
	for i := 0; i < n; i++ {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := row(i)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}
