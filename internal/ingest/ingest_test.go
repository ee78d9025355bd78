package ingest

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadCSVDelimiterAndSynonyms(t *testing.T) {
	data := "Date;Particulars;Quantity_Sold\n01-04-2024;18MM MDF BOARD;\"1,200\"\n\n02-04-2024;9MM PLY;3\n"

	table, err := ReadCSV(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)

	records, err := DemandFromTable(table)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "18MM MDF BOARD", records[0].SKU)
	assert.Equal(t, "01-04-2024", records[0].RawDate)
	assert.Equal(t, 1200.0, records[0].Quantity)
	assert.Equal(t, 3.0, records[1].Quantity)
}

func TestReadCSVWindows1252(t *testing.T) {
	encoded, err := charmap.Windows1252.NewEncoder().String("Particular,Quantity\nPLACA CAFÉ,5\n")
	require.NoError(t, err)

	table, err := ReadCSV(strings.NewReader(encoded))
	require.NoError(t, err)

	stock, err := StockFromTable(table)
	require.NoError(t, err)
	require.Len(t, stock, 1)
	assert.Equal(t, "PLACA CAFÉ", stock[0].SKU)
	assert.Equal(t, 5.0, stock[0].Quantity)
}

func TestCanonicalColumnWinsOverSynonym(t *testing.T) {
	table := &Table{
		Header: []string{"Date", "Particular", "Quantity_Sold", "Quantity"},
		Rows:   [][]string{{"2024-04-01", "A", "9", "4"}},
	}

	records, err := DemandFromTable(table)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 4.0, records[0].Quantity)
}

func TestNonNumericCellsCoerceToZero(t *testing.T) {
	table := &Table{
		Header: []string{"Particular", "mu_daily", "safety_stock", "reorder_point"},
		Rows: [][]string{
			{"A", "abc", "", "NaN"},
			{"", "1", "1", "1"},
			{"B", "2.5", "10", "30"},
		},
	}

	records, err := ReorderFromTable(table)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, 0.0, records[0].MeanDailyDemand)
	assert.Equal(t, 0.0, records[0].SafetyStock)
	assert.Equal(t, 0.0, records[0].ReorderPoint)
	assert.Equal(t, 2.5, records[1].MeanDailyDemand)
	assert.Equal(t, 30.0, records[1].ReorderPoint)
}

func TestEOQUnitWeightOptional(t *testing.T) {
	table := &Table{
		Header: []string{"Particular", "EOQ"},
		Rows:   [][]string{{"A", "200"}},
	}

	records, err := EOQFromTable(table)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 200.0, records[0].EOQ)
	assert.Equal(t, 0.0, records[0].UnitWeight)
}

func TestMissingColumn(t *testing.T) {
	table := &Table{Header: []string{"Particular"}}

	_, err := EOQFromTable(table)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingColumn))
	assert.Contains(t, err.Error(), "EOQ")
}

func TestReadXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"Particular", "EOQ", "unit_weight"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"18MM BOARD", 150, 40.5}))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	require.NoError(t, f.Close())

	table, err := ReadXLSX(&buf)
	require.NoError(t, err)

	records, err := EOQFromTable(table)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "18MM BOARD", records[0].SKU)
	assert.Equal(t, 150.0, records[0].EOQ)
	assert.Equal(t, 40.5, records[0].UnitWeight)
}

func TestLoadFeeds(t *testing.T) {
	dir := t.TempDir()
	paths := Paths{
		Sales:     writeFile(t, dir, "sales.csv", "Date,Particular,Quantity\n2024-04-01,A,5\n"),
		Inventory: writeFile(t, dir, "inventory.csv", "Particular,Quantity\nA,10\n"),
		Reorder:   writeFile(t, dir, "rop.csv", "Particular,mu_daily,safety_stock,reorder_point\nA,1,2,3\n"),
		EOQ:       writeFile(t, dir, "eoq.csv", "Particular,EOQ,unit_weight\nA,100,20\n"),
	}

	feeds, err := LoadFeeds(paths)
	require.NoError(t, err)
	assert.Len(t, feeds.Demand, 1)
	assert.Len(t, feeds.Stock, 1)
	assert.Len(t, feeds.Reorder, 1)
	assert.Len(t, feeds.EOQ, 1)
	assert.Len(t, feeds.Fingerprint, 40)

	again, err := LoadFeeds(paths)
	require.NoError(t, err)
	assert.Equal(t, feeds.Fingerprint, again.Fingerprint)
}

func TestLoadFeedsNamesMissingInput(t *testing.T) {
	dir := t.TempDir()
	paths := Paths{
		Sales:     writeFile(t, dir, "sales.csv", "Date,Particular,Quantity\n2024-04-01,A,5\n"),
		Inventory: writeFile(t, dir, "inventory.csv", "Particular,Quantity\nA,10\n"),
		Reorder:   filepath.Join(dir, "missing.csv"),
		EOQ:       writeFile(t, dir, "eoq.csv", "Particular,EOQ\nA,100\n"),
	}

	_, err := LoadFeeds(paths)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingInput))

	var inputErr *InputError
	require.True(t, errors.As(err, &inputErr))
	assert.Equal(t, InputReorder, inputErr.Input)
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"12", 12, true},
		{" 1,234.5 ", 1234.5, true},
		{"", 0, false},
		{"n/a", 0, false},
		{"Inf", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseNumber(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}
