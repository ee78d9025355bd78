package simulation

import (
	"sort"
	"strings"
	"time"

	"github.com/andresuchdata/stocksim/internal/domain"
)

// Position is the ledger state of one SKU. All fields are whole, non-negative units.
type Position struct {
	OnHand    int `json:"on_hand"`
	OnOrder   int `json:"on_order"`
	Backorder int `json:"backorder"`
}

// InventoryPosition is on hand plus on order minus backorder. It can be negative.
func (p Position) InventoryPosition() int {
	return p.OnHand + p.OnOrder - p.Backorder
}

// Ledger owns per-SKU stock levels and the purchase orders in transit.
type Ledger struct {
	positions map[string]*Position
	open      []domain.PurchaseOrder
}

// NewLedger seeds on hand from the opening snapshot. Repeated SKUs keep the last row.
func NewLedger(opening []domain.StockRecord) *Ledger {
	l := &Ledger{positions: make(map[string]*Position, len(opening))}
	for _, r := range opening {
		sku := strings.TrimSpace(r.SKU)
		l.position(sku).OnHand = domain.WholeUnits(r.Quantity)
	}
	return l
}

func (l *Ledger) position(sku string) *Position {
	p, ok := l.positions[sku]
	if !ok {
		p = &Position{}
		l.positions[sku] = p
	}
	return p
}

// Get returns a copy of the SKU's position; unknown SKUs are all zero.
func (l *Ledger) Get(sku string) Position {
	if p, ok := l.positions[sku]; ok {
		return *p
	}
	return Position{}
}

func (l *Ledger) InventoryPosition(sku string) int {
	return l.Get(sku).InventoryPosition()
}

// Receive moves qty from on order into on hand.
func (l *Ledger) Receive(sku string, qty int) {
	if qty <= 0 {
		return
	}
	p := l.position(sku)
	p.OnHand += qty
	p.OnOrder -= qty
	if p.OnOrder < 0 {
		p.OnOrder = 0
	}
}

// Ship fills up to qty from on hand and backorders the rest. It returns the
// units actually shipped.
func (l *Ledger) Ship(sku string, qty int) int {
	if qty <= 0 {
		return 0
	}
	p := l.position(sku)
	shipped := qty
	if p.OnHand < qty {
		shipped = p.OnHand
	}
	p.OnHand -= shipped
	p.Backorder += qty - shipped
	return shipped
}

// Place records po as in transit and raises on order for every item.
func (l *Ledger) Place(po domain.PurchaseOrder) {
	items := make(map[string]int, len(po.Items))
	for sku, qty := range po.Items {
		if qty <= 0 {
			continue
		}
		items[sku] = qty
		l.position(sku).OnOrder += qty
	}
	po.Items = items
	l.open = append(l.open, po)
}

// ReceiveDue realizes every open order arriving on day and removes it from
// the open list, so an order can only be received once.
func (l *Ledger) ReceiveDue(day time.Time) int {
	received := 0
	remaining := l.open[:0]
	for _, po := range l.open {
		if !po.ArrivalDate.Equal(day) {
			remaining = append(remaining, po)
			continue
		}
		for sku, qty := range po.Items {
			l.Receive(sku, qty)
			received += qty
		}
	}
	l.open = remaining
	return received
}

// OpenOrders returns the orders still in transit, by arrival date.
func (l *Ledger) OpenOrders() []domain.PurchaseOrder {
	out := make([]domain.PurchaseOrder, len(l.open))
	copy(out, l.open)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ArrivalDate.Before(out[j].ArrivalDate) })
	return out
}

// OpenBackorders sums backorder across all SKUs.
func (l *Ledger) OpenBackorders() int {
	total := 0
	for _, p := range l.positions {
		total += p.Backorder
	}
	return total
}

// SKUs returns every SKU the ledger has touched, sorted.
func (l *Ledger) SKUs() []string {
	out := make([]string, 0, len(l.positions))
	for sku := range l.positions {
		out = append(out, sku)
	}
	sort.Strings(out)
	return out
}
