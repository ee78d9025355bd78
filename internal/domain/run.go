package domain

import "time"

// SimulationParams are the tunables of one simulation run.
type SimulationParams struct {
	Name         string  `json:"name" db:"name"`
	LeadTimeDays int     `json:"lead_time_days" db:"lead_time_days"`
	CoverDays    float64 `json:"cover_days" db:"cover_days"`
	MinTruckTons float64 `json:"min_truck_tons" db:"min_truck_tons"`
	MaxTruckTons float64 `json:"max_truck_tons" db:"max_truck_tons"`
	Interactive  bool    `json:"interactive" db:"interactive"`
}

// RunSummary is the list view of a persisted simulation run.
type RunSummary struct {
	ID                string           `json:"id" db:"id"`
	Name              string           `json:"name" db:"name"`
	Params            SimulationParams `json:"params" db:"-"`
	StartedAt         time.Time        `json:"started_at" db:"started_at"`
	CompletedAt       time.Time        `json:"completed_at" db:"completed_at"`
	From              time.Time        `json:"from" db:"date_from"`
	To                time.Time        `json:"to" db:"date_to"`
	Days              int              `json:"days" db:"days"`
	CumulativeDemand  int              `json:"cumulative_demand" db:"cumulative_demand"`
	CumulativeShipped int              `json:"cumulative_shipped" db:"cumulative_shipped"`
	FillRatePct       float64          `json:"fill_rate_pct" db:"fill_rate_pct"`
	BackorderRatioPct float64          `json:"backorder_ratio_pct" db:"backorder_ratio_pct"`
	OrdersPlaced      int              `json:"orders_placed" db:"orders_placed"`
	UnparseableDates  int              `json:"unparseable_dates" db:"unparseable_dates"`
	DayFirst          bool             `json:"day_first" db:"day_first"`
}

// SimulationRun is a complete simulation result as persisted and served over HTTP.
type SimulationRun struct {
	RunSummary
	Daily     []DailySummary   `json:"daily"`
	Final     []FinalInventory `json:"final_inventory"`
	Orders    []PurchaseOrder  `json:"orders"`
	Artifacts []string         `json:"artifacts,omitempty"`
}

// Summary returns the list view of the run.
func (r *SimulationRun) Summary() RunSummary {
	return r.RunSummary
}
