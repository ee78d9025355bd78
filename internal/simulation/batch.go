package simulation

import (
	"sort"

	"github.com/andresuchdata/stocksim/internal/domain"
	"github.com/andresuchdata/stocksim/internal/policy"
)

const tonsEpsilon = 1e-9

// Weigher converts unit quantities to weight.
type Weigher interface {
	UnitWeightKg(sku string) float64
	Tons(sku string, qty int) float64
}

// StructuralNeed is backorder plus the whole-unit gap between the cover
// target and the inventory position. A negative position counts as zero.
func StructuralNeed(pos Position, rec policy.Record, coverDays float64) int {
	ip := pos.InventoryPosition()
	if ip < 0 {
		ip = 0
	}
	target := rec.MeanDailyDemand*coverDays + rec.SafetyStock
	gap := target - float64(ip)
	if gap < 0 {
		gap = 0
	}
	return pos.Backorder + domain.WholeUnits(gap)
}

// NeedQuantity is the order size for a triggered SKU: the structural need,
// but never less than one EOQ lot.
func NeedQuantity(pos Position, rec policy.Record, coverDays float64) int {
	need := StructuralNeed(pos, rec, coverDays)
	if eoq := domain.WholeUnits(rec.EOQ); eoq > need {
		return eoq
	}
	return need
}

// PendingBatch accumulates requested quantities until a truck can be filled.
type PendingBatch struct {
	items map[string]int
}

func NewPendingBatch() *PendingBatch {
	return &PendingBatch{items: make(map[string]int)}
}

// Raise sets the SKU's pending quantity to qty if that is larger than what is
// already pending. It never lowers a pending request.
func (b *PendingBatch) Raise(sku string, qty int) bool {
	if qty <= b.items[sku] {
		return false
	}
	b.items[sku] = qty
	return true
}

func (b *PendingBatch) Get(sku string) int { return b.items[sku] }

func (b *PendingBatch) Len() int { return len(b.items) }

// Remove clears the given SKUs after they ship.
func (b *PendingBatch) Remove(skus ...string) {
	for _, sku := range skus {
		delete(b.items, sku)
	}
}

// Items returns a copy of the pending quantities.
func (b *PendingBatch) Items() map[string]int {
	out := make(map[string]int, len(b.items))
	for sku, qty := range b.items {
		out[sku] = qty
	}
	return out
}

// Tons is the total pending weight.
func (b *PendingBatch) Tons(w Weigher) float64 {
	return batchTons(b.items, w)
}

func batchTons(items map[string]int, w Weigher) float64 {
	total := 0.0
	for sku, qty := range items {
		total += w.Tons(sku, qty)
	}
	return total
}

// NeedRow is one line of the inventory table shown with a proposal.
type NeedRow struct {
	SKU               string  `json:"sku"`
	OnHand            int     `json:"on_hand"`
	OnOrder           int     `json:"on_order"`
	Backorder         int     `json:"backorder"`
	InventoryPosition int     `json:"inventory_position"`
	ReorderPoint      int     `json:"reorder_point"`
	NeedTons          float64 `json:"need_tons"`
}

// Proposal is a candidate truck load. It is empty when no shipment can be made.
type Proposal struct {
	Items       map[string]int `json:"items"`
	SKUs        []string       `json:"skus"`
	TotalTons   float64        `json:"total_tons"`
	PendingTons float64        `json:"pending_tons"`
	Inventory   []NeedRow      `json:"inventory,omitempty"`
}

// Shippable reports whether the proposal carries a load.
func (p Proposal) Shippable() bool {
	return len(p.Items) > 0
}

// ProposeBatch packs pending requests into one truck. SKUs are taken in
// descending order of their pending weight and added whole while the load stays
// within maxTons; the first SKU that would overflow is cut to the whole units
// that still fit and packing stops there. Loads under minTons are not proposed.
// The packing is greedy and may leave capacity another combination would use.
func ProposeBatch(pending map[string]int, w Weigher, minTons, maxTons float64) Proposal {
	prop := Proposal{PendingTons: batchTons(pending, w)}
	if len(pending) == 0 || prop.PendingTons < minTons-tonsEpsilon {
		return prop
	}

	type entry struct {
		sku  string
		qty  int
		tons float64
	}
	entries := make([]entry, 0, len(pending))
	for sku, qty := range pending {
		entries = append(entries, entry{sku: sku, qty: qty, tons: w.Tons(sku, qty)})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].tons != entries[j].tons {
			return entries[i].tons > entries[j].tons
		}
		return entries[i].sku < entries[j].sku
	})

	items := make(map[string]int)
	var order []string
	total := 0.0
	for _, e := range entries {
		if e.qty <= 0 {
			continue
		}
		if total+e.tons <= maxTons+tonsEpsilon {
			items[e.sku] = e.qty
			order = append(order, e.sku)
			total += e.tons
			continue
		}

		remainingKg := maxTons*1000.0 - total*1000.0
		if remainingKg < 0 {
			remainingKg = 0
		}
		allowed := domain.WholeUnits(remainingKg / w.UnitWeightKg(e.sku))
		if allowed > e.qty {
			allowed = e.qty
		}
		if allowed > 0 {
			items[e.sku] = allowed
			order = append(order, e.sku)
			total += w.Tons(e.sku, allowed)
		}
		break
	}

	prop.TotalTons = total
	if total < minTons-tonsEpsilon {
		return prop
	}
	prop.Items = items
	prop.SKUs = order
	return prop
}
