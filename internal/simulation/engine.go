package simulation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/andresuchdata/stocksim/internal/demand"
	"github.com/andresuchdata/stocksim/internal/domain"
	"github.com/andresuchdata/stocksim/internal/policy"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const maxTriggeredLogged = 8

// Inputs are the immutable data a run consumes.
type Inputs struct {
	Demand  *demand.Matrix
	Policy  *policy.Table
	Opening []domain.StockRecord
}

// Result is everything a run produces.
type Result struct {
	Config            Config                  `json:"config"`
	Start             time.Time               `json:"start"`
	End               time.Time               `json:"end"`
	Days              []domain.DailySummary   `json:"days"`
	Final             []domain.FinalInventory `json:"final_inventory"`
	Orders            []domain.PurchaseOrder  `json:"orders"`
	InTransit         []domain.PurchaseOrder  `json:"in_transit"`
	CumulativeDemand  int                     `json:"cumulative_demand"`
	CumulativeShipped int                     `json:"cumulative_shipped"`
	FillRatePct       float64                 `json:"fill_rate_pct"`
	BackorderRatioPct float64                 `json:"backorder_ratio_pct"`
	Dates             demand.Report           `json:"dates"`
}

// Engine walks the demand matrix one day at a time. Each Run builds its own
// ledger and pending batch, so an Engine may be run repeatedly.
type Engine struct {
	cfg       Config
	in        Inputs
	confirmer Confirmer
}

// NewEngine validates cfg. A nil confirmer approves every proposal.
func NewEngine(cfg Config, in Inputs, confirmer Confirmer) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if in.Demand == nil {
		return nil, fmt.Errorf("%w: demand matrix is required", ErrInvalidConfig)
	}
	if in.Policy == nil {
		in.Policy = policy.Build(nil, nil)
	}
	if confirmer == nil {
		confirmer = AlwaysApprove
	}
	return &Engine{cfg: cfg, in: in, confirmer: confirmer}, nil
}

// state is the mutable part of one run.
type state struct {
	ledger  *Ledger
	pending *PendingBatch
	skus    []string
	orders  []domain.PurchaseOrder

	cumDemand  int
	cumShipped int
}

func (e *Engine) newState() *state {
	s := &state{
		ledger:  NewLedger(e.in.Opening),
		pending: NewPendingBatch(),
	}

	seen := make(map[string]struct{})
	add := func(skus ...string) {
		for _, sku := range skus {
			if _, ok := seen[sku]; ok {
				continue
			}
			seen[sku] = struct{}{}
			s.skus = append(s.skus, sku)
		}
	}
	add(e.in.Demand.SKUs()...)
	add(s.ledger.SKUs()...)
	add(e.in.Policy.SKUs()...)
	sort.Strings(s.skus)

	return s
}

// Run simulates every day of the demand matrix in order. Per-SKU data
// problems never stop the run; only cancellation of ctx does.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	s := e.newState()
	m := e.in.Demand

	res := &Result{
		Config: e.cfg,
		Start:  m.Start(),
		End:    m.End(),
		Days:   make([]domain.DailySummary, 0, m.Len()),
		Dates:  m.Report(),
	}

	log.Info().
		Str("from", m.Start().Format("2006-01-02")).
		Str("to", m.End().Format("2006-01-02")).
		Int("skus", len(s.skus)).
		Int("lead_time_days", e.cfg.LeadTimeDays).
		Msg("Starting simulation")

	for i := 0; i < m.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		summary, err := e.step(ctx, s, i)
		if err != nil {
			return nil, err
		}
		res.Days = append(res.Days, summary)
	}

	res.Orders = s.orders
	res.InTransit = s.ledger.OpenOrders()
	res.Final = e.finalInventory(s)
	res.CumulativeDemand = s.cumDemand
	res.CumulativeShipped = s.cumShipped
	res.FillRatePct = fillRate(s.cumShipped, s.cumDemand)
	res.BackorderRatioPct = 100 - res.FillRatePct

	log.Info().
		Int("orders", len(res.Orders)).
		Float64("fill_rate_pct", res.FillRatePct).
		Float64("backorder_ratio_pct", res.BackorderRatioPct).
		Msg("Simulation complete")

	return res, nil
}

// step runs arrivals, demand, triggers and the truck proposal for day index i.
func (e *Engine) step(ctx context.Context, s *state, i int) (domain.DailySummary, error) {
	day := e.in.Demand.Day(i)
	summary := domain.DailySummary{Date: day}

	summary.ReceivedUnits = s.ledger.ReceiveDue(day)

	for _, sku := range s.skus {
		if sold := e.in.Demand.Quantity(sku, i); sold > 0 {
			summary.DemandTotal += sold
			summary.ShippedTotal += s.ledger.Ship(sku, sold)
		}
	}

	for _, sku := range s.skus {
		rec := e.in.Policy.Lookup(sku)
		if float64(s.ledger.InventoryPosition(sku)) > rec.ReorderPoint {
			continue
		}
		need := NeedQuantity(s.ledger.Get(sku), rec, e.cfg.CoverDays)
		if need <= 0 {
			continue
		}
		s.pending.Raise(sku, need)
		summary.Triggered = append(summary.Triggered, fmt.Sprintf("%s:%d", sku, need))
	}
	summary.TriggersCount = len(summary.Triggered)

	s.cumDemand += summary.DemandTotal
	s.cumShipped += summary.ShippedTotal
	summary.BackorderedToday = summary.DemandTotal - summary.ShippedTotal
	if summary.BackorderedToday < 0 {
		summary.BackorderedToday = 0
	}
	if summary.DemandTotal > 0 {
		summary.BackorderRatioTodayPct = float64(summary.BackorderedToday) / float64(summary.DemandTotal) * 100
	}
	summary.OpenBackorderUnits = s.ledger.OpenBackorders()
	summary.CumDemand = s.cumDemand
	summary.CumShipped = s.cumShipped
	summary.CumFillRatePct = fillRate(s.cumShipped, s.cumDemand)
	summary.CumBackorderRatioPct = 100 - summary.CumFillRatePct

	prop := ProposeBatch(s.pending.Items(), e.in.Policy, e.cfg.MinTruckTons, e.cfg.MaxTruckTons)
	summary.PendingBatchTons = prop.PendingTons

	logDay(summary)

	if prop.Shippable() {
		prop.Inventory = e.needTable(s)
		ok, err := e.confirmer.Confirm(ctx, day, prop)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return summary, ctxErr
			}
			log.Warn().Err(err).
				Str("day", day.Format("2006-01-02")).
				Object("proposal", &prop).
				Msg("Order confirmation failed; treating as rejected")
			ok = false
		}
		if ok {
			e.place(s, day, prop)
			summary.OrderPlaced = true
			summary.OrderTons = prop.TotalTons
		} else {
			log.Info().Str("day", day.Format("2006-01-02")).Object("proposal", &prop).Msg("Order skipped; pending batch kept")
		}
	}

	return summary, nil
}

func (e *Engine) place(s *state, day time.Time, prop Proposal) {
	po := domain.PurchaseOrder{
		OrderDate:   day,
		ArrivalDate: day.AddDate(0, 0, e.cfg.LeadTimeDays),
		Items:       prop.Items,
		Tons:        prop.TotalTons,
	}
	s.ledger.Place(po)
	s.pending.Remove(prop.SKUs...)
	s.orders = append(s.orders, po)

	log.Info().
		Str("day", day.Format("2006-01-02")).
		Str("eta", po.ArrivalDate.Format("2006-01-02")).
		Float64("tons", po.Tons).
		Int("skus", len(po.Items)).
		Msg("Order placed")
}

// needTable lists every SKU by needed weight, heaviest first.
func (e *Engine) needTable(s *state) []NeedRow {
	rows := make([]NeedRow, 0, len(s.skus))
	for _, sku := range s.skus {
		pos := s.ledger.Get(sku)
		rec := e.in.Policy.Lookup(sku)
		rows = append(rows, NeedRow{
			SKU:               sku,
			OnHand:            pos.OnHand,
			OnOrder:           pos.OnOrder,
			Backorder:         pos.Backorder,
			InventoryPosition: pos.InventoryPosition(),
			ReorderPoint:      domain.WholeUnits(rec.ReorderPoint),
			NeedTons:          e.in.Policy.Tons(sku, StructuralNeed(pos, rec, e.cfg.CoverDays)),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].NeedTons > rows[j].NeedTons })
	return rows
}

func (e *Engine) finalInventory(s *state) []domain.FinalInventory {
	out := make([]domain.FinalInventory, 0, len(s.skus))
	for _, sku := range s.skus {
		pos := s.ledger.Get(sku)
		rec := e.in.Policy.Lookup(sku)
		ip := pos.InventoryPosition()
		out = append(out, domain.FinalInventory{
			SKU:               sku,
			OnHand:            pos.OnHand,
			OnOrder:           pos.OnOrder,
			Backorder:         pos.Backorder,
			InventoryPosition: ip,
			ReorderPoint:      rec.ReorderPoint,
			Action:            domain.ClassifyAction(ip, rec.ReorderPoint, rec.SafetyStock, rec.EOQ),
		})
	}
	return out
}

func fillRate(shipped, demanded int) float64 {
	if demanded <= 0 {
		return 100
	}
	return float64(shipped) / float64(demanded) * 100
}

func logDay(d domain.DailySummary) {
	ev := log.Debug()
	if !ev.Enabled() {
		return
	}
	ev = ev.
		Str("day", d.Date.Format("2006-01-02")).
		Int("demand", d.DemandTotal).
		Int("shipped", d.ShippedTotal).
		Int("received", d.ReceivedUnits).
		Int("triggers", d.TriggersCount).
		Float64("pending_tons", d.PendingBatchTons).
		Int("backordered_today", d.BackorderedToday).
		Int("open_backorders", d.OpenBackorderUnits).
		Float64("cum_fill_rate_pct", d.CumFillRatePct)
	if len(d.Triggered) > 0 {
		ev = ev.Str("triggered", triggeredPreview(d.Triggered))
	}
	ev.Msg("Day simulated")
}

func triggeredPreview(items []string) string {
	if len(items) <= maxTriggeredLogged {
		return strings.Join(items, ", ")
	}
	return strings.Join(items[:maxTriggeredLogged], ", ") + " ..."
}

var _ zerolog.LogObjectMarshaler = (*Proposal)(nil)

// MarshalZerologObject lets a proposal be logged as a structured object.
func (p *Proposal) MarshalZerologObject(ev *zerolog.Event) {
	ev.Float64("total_tons", p.TotalTons).
		Float64("pending_tons", p.PendingTons).
		Int("skus", len(p.Items))
}
