// internal/domain/models.go
package domain

import (
	"math"
	"time"
)

// DemandRecord represents a single row from the sales feed after column normalization.
type DemandRecord struct {
	SKU      string
	RawDate  string
	Quantity float64
}

// StockRecord represents one row of the opening inventory snapshot.
type StockRecord struct {
	SKU      string
	Quantity float64
}

// ROPRecord represents one row of the reorder evaluation table.
type ROPRecord struct {
	SKU             string
	MeanDailyDemand float64
	SafetyStock     float64
	ReorderPoint    float64
}

// EOQRecord represents one row of the EOQ table. UnitWeight is in kg and may be zero.
type EOQRecord struct {
	SKU        string
	EOQ        float64
	UnitWeight float64
}

// DailySummary is the per-day output row of a simulation.
type DailySummary struct {
	Date                   time.Time `json:"date" db:"day"`
	DemandTotal            int       `json:"demand_total" db:"demand_total"`
	ShippedTotal           int       `json:"shipped_total" db:"shipped_total"`
	BackorderedToday       int       `json:"backordered_today" db:"backordered_today"`
	BackorderRatioTodayPct float64   `json:"backorder_ratio_today_pct" db:"backorder_ratio_today_pct"`
	OpenBackorderUnits     int       `json:"open_backorders_units" db:"open_backorders_units"`
	CumDemand              int       `json:"cum_demand" db:"cum_demand"`
	CumShipped             int       `json:"cum_shipped" db:"cum_shipped"`
	CumFillRatePct         float64   `json:"cum_fill_rate_pct" db:"cum_fill_rate_pct"`
	CumBackorderRatioPct   float64   `json:"cum_backorder_ratio_pct" db:"cum_backorder_ratio_pct"`
	PendingBatchTons       float64   `json:"pending_batch_tons" db:"pending_batch_tons"`
	TriggersCount          int       `json:"triggers_count" db:"triggers_count"`
	Triggered              []string  `json:"triggered,omitempty" db:"-"`
	ReceivedUnits          int       `json:"received_units" db:"received_units"`
	OrderPlaced            bool      `json:"order_placed" db:"order_placed"`
	OrderTons              float64   `json:"order_tons" db:"order_tons"`
}

// FinalInventory is the per-SKU ledger snapshot after the last simulated day.
type FinalInventory struct {
	SKU               string  `json:"sku" db:"sku"`
	OnHand            int     `json:"final_on_hand" db:"final_on_hand"`
	OnOrder           int     `json:"on_order" db:"on_order"`
	Backorder         int     `json:"backorders" db:"backorders"`
	InventoryPosition int     `json:"inventory_position" db:"inventory_position"`
	ReorderPoint      float64 `json:"reorder_point" db:"reorder_point"`
	Action            Action  `json:"action" db:"action"`
}

// PurchaseOrder is a confirmed truck shipment in transit.
type PurchaseOrder struct {
	OrderDate   time.Time      `json:"order_date"`
	ArrivalDate time.Time      `json:"arrival_date"`
	Items       map[string]int `json:"items"`
	Tons        float64        `json:"tons"`
}

// Units returns the total number of units across all items.
func (po PurchaseOrder) Units() int {
	total := 0
	for _, q := range po.Items {
		total += q
	}
	return total
}

// WholeUnits floors x to a whole, non-negative unit count. The small epsilon
// absorbs float noise such as 2.9999999999.
func WholeUnits(x float64) int {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	v := math.Floor(x + 1e-9)
	if v <= 0 {
		return 0
	}
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(v)
}
