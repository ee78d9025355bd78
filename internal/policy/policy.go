package policy

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/andresuchdata/stocksim/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	// FallbackUnitWeightKg applies when a SKU has no weight and no thickness token.
	FallbackUnitWeightKg = 40.0
	// KgPerMillimetre converts a board thickness token into a piece weight.
	KgPerMillimetre = 2.24
)

var thicknessToken = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*MM`)

// Record is the resolved policy of one SKU.
type Record struct {
	MeanDailyDemand float64 `json:"mu_daily"`
	SafetyStock     float64 `json:"safety_stock"`
	ReorderPoint    float64 `json:"reorder_point"`
	EOQ             float64 `json:"eoq"`
	UnitWeightKg    float64 `json:"unit_weight_kg"`
}

// Table resolves per-SKU policy. Unknown SKUs get zero reorder figures and an
// inferred unit weight, so UnitWeightKg is always strictly positive.
type Table struct {
	records map[string]Record
}

// Build merges the reorder and EOQ tables. When a SKU repeats, the last row wins.
func Build(rop []domain.ROPRecord, eoq []domain.EOQRecord) *Table {
	t := &Table{records: make(map[string]Record, len(rop)+len(eoq))}

	for _, r := range rop {
		sku := strings.TrimSpace(r.SKU)
		rec := t.records[sku]
		rec.MeanDailyDemand = clamp(sku, "mu_daily", r.MeanDailyDemand)
		rec.SafetyStock = clamp(sku, "safety_stock", r.SafetyStock)
		rec.ReorderPoint = clamp(sku, "reorder_point", r.ReorderPoint)
		t.records[sku] = rec
	}

	for _, e := range eoq {
		sku := strings.TrimSpace(e.SKU)
		rec := t.records[sku]
		rec.EOQ = clamp(sku, "eoq", e.EOQ)
		if e.UnitWeight < 0 {
			log.Warn().Str("sku", sku).Float64("unit_weight", e.UnitWeight).
				Msg("Negative unit weight ignored; inferring from label")
		}
		rec.UnitWeightKg = e.UnitWeight
		t.records[sku] = rec
	}

	for sku, rec := range t.records {
		rec.UnitWeightKg = resolveWeight(sku, rec.UnitWeightKg)
		t.records[sku] = rec
	}

	return t
}

func clamp(sku, field string, v float64) float64 {
	if v < 0 {
		log.Warn().Str("sku", sku).Str("field", field).Float64("value", v).Msg("Negative policy value clamped to 0")
		return 0
	}
	return v
}

func resolveWeight(sku string, kg float64) float64 {
	if kg > 0 {
		return kg
	}
	return InferUnitWeightKg(sku)
}

// InferUnitWeightKg derives a piece weight from a thickness token such as
// "18MM" in the label, or falls back to FallbackUnitWeightKg.
func InferUnitWeightKg(sku string) float64 {
	m := thicknessToken.FindStringSubmatch(strings.ToUpper(sku))
	if m != nil {
		if mm, err := strconv.ParseFloat(m[1], 64); err == nil && mm > 0 {
			return mm * KgPerMillimetre
		}
	}
	return FallbackUnitWeightKg
}

// Lookup returns the policy of sku, applying defaults for unknown SKUs.
func (t *Table) Lookup(sku string) Record {
	if rec, ok := t.records[sku]; ok {
		return rec
	}
	return Record{UnitWeightKg: InferUnitWeightKg(sku)}
}

func (t *Table) UnitWeightKg(sku string) float64 {
	return t.Lookup(sku).UnitWeightKg
}

// Tons converts a unit quantity of sku to metric tons.
func (t *Table) Tons(sku string, qty int) float64 {
	if qty <= 0 {
		return 0
	}
	return t.UnitWeightKg(sku) * float64(qty) / 1000.0
}

// SKUs returns the sorted SKUs present in either source table.
func (t *Table) SKUs() []string {
	out := make([]string, 0, len(t.records))
	for sku := range t.records {
		out = append(out, sku)
	}
	sort.Strings(out)
	return out
}
