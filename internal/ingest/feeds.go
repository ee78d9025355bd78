package ingest

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/andresuchdata/stocksim/internal/domain"
	"github.com/rs/zerolog/log"
)

// Paths locates the four required feeds.
type Paths struct {
	Sales     string
	Inventory string
	Reorder   string
	EOQ       string
}

// Feeds holds the parsed rows of all four inputs.
type Feeds struct {
	Demand  []domain.DemandRecord
	Stock   []domain.StockRecord
	Reorder []domain.ROPRecord
	EOQ     []domain.EOQRecord

	// Fingerprint is a sha1 over the raw bytes of every feed, in load order.
	Fingerprint string
}

// LoadFeeds reads every feed and fails with an *InputError naming the first
// one that is missing or malformed.
func LoadFeeds(p Paths) (*Feeds, error) {
	hasher := sha1.New()
	feeds := &Feeds{}

	load := func(input, path string, parse func(*Table) error) error {
		data, err := readInput(input, path)
		if err != nil {
			return err
		}
		hasher.Write([]byte(input))
		hasher.Write(data)

		table, err := ParseTable(path, data)
		if err != nil {
			return inputErr(input, path, err)
		}
		if err := parse(table); err != nil {
			return inputErr(input, path, err)
		}
		return nil
	}

	if err := load(InputSales, p.Sales, func(t *Table) (err error) {
		feeds.Demand, err = DemandFromTable(t)
		return
	}); err != nil {
		return nil, err
	}
	if err := load(InputInventory, p.Inventory, func(t *Table) (err error) {
		feeds.Stock, err = StockFromTable(t)
		return
	}); err != nil {
		return nil, err
	}
	if err := load(InputReorder, p.Reorder, func(t *Table) (err error) {
		feeds.Reorder, err = ReorderFromTable(t)
		return
	}); err != nil {
		return nil, err
	}
	if err := load(InputEOQ, p.EOQ, func(t *Table) (err error) {
		feeds.EOQ, err = EOQFromTable(t)
		return
	}); err != nil {
		return nil, err
	}

	feeds.Fingerprint = hex.EncodeToString(hasher.Sum(nil))
	log.Info().
		Int("sales_rows", len(feeds.Demand)).
		Int("inventory_rows", len(feeds.Stock)).
		Int("reorder_rows", len(feeds.Reorder)).
		Int("eoq_rows", len(feeds.EOQ)).
		Msg("Loaded input feeds")

	return feeds, nil
}

func readInput(input, path string) ([]byte, error) {
	if strings.TrimSpace(path) == "" {
		return nil, inputErr(input, path, ErrMissingInput)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, inputErr(input, path, ErrMissingInput)
		}
		return nil, inputErr(input, path, err)
	}
	return data, nil
}

type column struct {
	name     string
	synonyms []string
}

func requireColumns(t *Table, cols ...column) (map[string]int, error) {
	idx := make(map[string]int, len(cols))
	for _, c := range cols {
		i := t.Column(append([]string{c.name}, c.synonyms...)...)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, c.name)
		}
		idx[c.name] = i
	}
	return idx, nil
}

// DemandFromTable maps the sales feed. "Particulars" and "Quantity_Sold" are
// accepted as synonyms of the canonical column names.
func DemandFromTable(t *Table) ([]domain.DemandRecord, error) {
	idx, err := requireColumns(t,
		column{"Date", nil},
		column{"Particular", []string{"Particulars"}},
		column{"Quantity", []string{"Quantity_Sold"}},
	)
	if err != nil {
		return nil, err
	}

	records := make([]domain.DemandRecord, 0, len(t.Rows))
	var blank, badQty int
	for _, row := range t.Rows {
		sku := t.Value(row, idx["Particular"])
		if sku == "" {
			blank++
			continue
		}
		qty, ok := ParseNumber(t.Value(row, idx["Quantity"]))
		if !ok {
			badQty++
		}
		records = append(records, domain.DemandRecord{
			SKU:      sku,
			RawDate:  t.Value(row, idx["Date"]),
			Quantity: qty,
		})
	}
	warnRows(InputSales, blank, badQty)
	return records, nil
}

// StockFromTable maps the opening inventory snapshot.
func StockFromTable(t *Table) ([]domain.StockRecord, error) {
	idx, err := requireColumns(t,
		column{"Particular", []string{"Particulars"}},
		column{"Quantity", nil},
	)
	if err != nil {
		return nil, err
	}

	records := make([]domain.StockRecord, 0, len(t.Rows))
	var blank, badQty int
	for _, row := range t.Rows {
		sku := t.Value(row, idx["Particular"])
		if sku == "" {
			blank++
			continue
		}
		qty, ok := ParseNumber(t.Value(row, idx["Quantity"]))
		if !ok {
			badQty++
		}
		records = append(records, domain.StockRecord{SKU: sku, Quantity: qty})
	}
	warnRows(InputInventory, blank, badQty)
	return records, nil
}

// ReorderFromTable maps the reorder evaluation table.
func ReorderFromTable(t *Table) ([]domain.ROPRecord, error) {
	idx, err := requireColumns(t,
		column{"Particular", []string{"Particulars"}},
		column{"mu_daily", nil},
		column{"safety_stock", nil},
		column{"reorder_point", nil},
	)
	if err != nil {
		return nil, err
	}

	records := make([]domain.ROPRecord, 0, len(t.Rows))
	var blank, bad int
	for _, row := range t.Rows {
		sku := t.Value(row, idx["Particular"])
		if sku == "" {
			blank++
			continue
		}
		rec := domain.ROPRecord{SKU: sku}
		for _, cell := range []struct {
			col string
			dst *float64
		}{
			{"mu_daily", &rec.MeanDailyDemand},
			{"safety_stock", &rec.SafetyStock},
			{"reorder_point", &rec.ReorderPoint},
		} {
			v, ok := ParseNumber(t.Value(row, idx[cell.col]))
			if !ok {
				bad++
			}
			*cell.dst = v
		}
		records = append(records, rec)
	}
	warnRows(InputReorder, blank, bad)
	return records, nil
}

// EOQFromTable maps the EOQ table. The unit_weight column is optional.
func EOQFromTable(t *Table) ([]domain.EOQRecord, error) {
	idx, err := requireColumns(t,
		column{"Particular", []string{"Particulars"}},
		column{"EOQ", nil},
	)
	if err != nil {
		return nil, err
	}
	weightIdx := t.Column("unit_weight", "unit_weight_kg")

	records := make([]domain.EOQRecord, 0, len(t.Rows))
	var blank, bad int
	for _, row := range t.Rows {
		sku := t.Value(row, idx["Particular"])
		if sku == "" {
			blank++
			continue
		}
		eoq, ok := ParseNumber(t.Value(row, idx["EOQ"]))
		if !ok {
			bad++
		}
		weight, _ := ParseNumber(t.Value(row, weightIdx))
		records = append(records, domain.EOQRecord{SKU: sku, EOQ: eoq, UnitWeight: weight})
	}
	warnRows(InputEOQ, blank, bad)
	return records, nil
}

func warnRows(input string, blank, nonNumeric int) {
	if blank > 0 {
		log.Warn().Str("input", input).Int("rows", blank).Msg("Skipped rows without a SKU")
	}
	if nonNumeric > 0 {
		log.Warn().Str("input", input).Int("cells", nonNumeric).Msg("Non-numeric cells coerced to 0")
	}
}
