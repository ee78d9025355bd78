package report

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/andresuchdata/stocksim/internal/domain"
	"github.com/andresuchdata/stocksim/internal/simulation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleResult() *simulation.Result {
	day := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	return &simulation.Result{
		Days: []domain.DailySummary{
			{
				Date:                   day,
				DemandTotal:            15,
				ShippedTotal:           10,
				BackorderedToday:       5,
				BackorderRatioTodayPct: 100.0 / 3,
				OpenBackorderUnits:     5,
				CumDemand:              15,
				CumShipped:             10,
				CumFillRatePct:         200.0 / 3,
				CumBackorderRatioPct:   100 - 200.0/3,
				PendingBatchTons:       10.00049,
				TriggersCount:          1,
				Triggered:              []string{"A:5", "B:12"},
				ReceivedUnits:          40,
				OrderPlaced:            true,
				OrderTons:              10.00049,
			},
		},
		Final: []domain.FinalInventory{
			{SKU: "A", OnHand: 0, OnOrder: 200, Backorder: 5, InventoryPosition: 195, ReorderPoint: 50, Action: domain.ActionAdequate},
		},
		FillRatePct:       200.0 / 3,
		BackorderRatioPct: 100 - 200.0/3,
	}
}

func TestWriteDailySummaryCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDailySummaryCSV(&buf, sampleResult().Days))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, DailyHeader, rows[0])
	assert.Equal(t, []string{
		"2024-04-01", "15", "10", "5", "33.33", "5", "15", "10", "66.67", "33.33", "10", "1", "True", "10", "40", "A:5;B:12",
	}, rows[1])
}

func TestWriteFinalInventoryCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFinalInventoryCSV(&buf, sampleResult().Final))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, FinalHeader, rows[0])
	assert.Equal(t, []string{"A", "0", "200", "5", "195", "50", "ADEQUATE"}, rows[1])
}

func TestWriteFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	paths, err := WriteFiles(dir, sampleResult(), true)
	require.NoError(t, err)
	require.Len(t, paths, 3)
	for _, p := range paths {
		_, err := os.Stat(p)
		assert.NoError(t, err, p)
	}
	assert.Equal(t, filepath.Join(dir, FinalInventoryFile), paths[0])
	assert.Equal(t, filepath.Join(dir, DailySummaryFile), paths[1])

	wb, err := excelize.OpenFile(filepath.Join(dir, WorkbookFile))
	require.NoError(t, err)
	defer wb.Close()

	assert.Equal(t, []string{dailySheet, finalSheet}, wb.GetSheetList())
	daily, err := wb.GetRows(dailySheet)
	require.NoError(t, err)
	require.Len(t, daily, 2)
	assert.Equal(t, DailyHeader, daily[0])
	assert.Equal(t, "40", daily[1][14])
	assert.Equal(t, "A:5;B:12", daily[1][15])

	rows, err := wb.GetRows(finalSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "A", rows[1][0])
	assert.Equal(t, "ADEQUATE", rows[1][6])
}

func TestWriteFilesWithoutWorkbook(t *testing.T) {
	paths, err := WriteFiles(t.TempDir(), sampleResult(), false)
	require.NoError(t, err)
	assert.Len(t, paths, 2)
}

func TestSummaryLine(t *testing.T) {
	assert.Equal(t,
		"Overall cumulative fill rate: 66.67% | Overall BO ratio: 33.33%",
		SummaryLine(200.0/3, 100-200.0/3))
	assert.Equal(t,
		"Overall cumulative fill rate: 100.00% | Overall BO ratio: 0.00%",
		SummaryLine(100, 0))
}

func TestRoundDaily(t *testing.T) {
	days := sampleResult().Days
	rounded := RoundDaily(days)

	assert.Equal(t, 33.33, rounded[0].BackorderRatioTodayPct)
	assert.Equal(t, 66.67, rounded[0].CumFillRatePct)
	assert.Equal(t, 10.0, rounded[0].PendingBatchTons)
	assert.InDelta(t, 100.0/3, days[0].BackorderRatioTodayPct, 1e-9)
}
