package simulation

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"
)

// Confirmer decides whether a proposed truck load is ordered.
type Confirmer interface {
	Confirm(ctx context.Context, day time.Time, p Proposal) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, day time.Time, p Proposal) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, day time.Time, p Proposal) (bool, error) {
	return f(ctx, day, p)
}

// AlwaysApprove accepts every proposal. It is the non-interactive policy.
var AlwaysApprove Confirmer = ConfirmFunc(func(context.Context, time.Time, Proposal) (bool, error) {
	return true, nil
})

// PromptConfirmer shows the proposal and the inventory table on out and reads
// a y/N answer from in.
type PromptConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

func NewPromptConfirmer(in io.Reader, out io.Writer) *PromptConfirmer {
	return &PromptConfirmer{in: bufio.NewReader(in), out: out}
}

func (c *PromptConfirmer) Confirm(ctx context.Context, day time.Time, p Proposal) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	fmt.Fprintf(c.out, "\nBatch ready on %s: %.2f tons\n", day.Format("2006-01-02"), p.TotalTons)
	parts := make([]string, 0, len(p.SKUs))
	for _, sku := range p.SKUs {
		parts = append(parts, fmt.Sprintf("%s:%d", sku, p.Items[sku]))
	}
	fmt.Fprintf(c.out, "Items: %s\n", strings.Join(parts, ", "))

	if len(p.Inventory) > 0 {
		fmt.Fprintln(c.out, "\nInventory before order proposal (sorted by needed weight):")
		WriteNeedTable(c.out, p.Inventory)
	}

	fmt.Fprint(c.out, "Place this order? [y/N]: ")
	line, err := c.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return false, fmt.Errorf("read answer: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		fmt.Fprintln(c.out, "   (Skipped; will keep accumulating.)")
		return false, nil
	}
}

// WriteNeedTable renders need rows as an aligned table.
func WriteNeedTable(w io.Writer, rows []NeedRow) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "SKU\ton_hand\ton_order\tbackorder\tIP\tROP\tneed_tons\t")
	for _, r := range rows {
		sku := r.SKU
		if len(sku) > 22 {
			sku = sku[:22]
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%.2f\t\n",
			sku, r.OnHand, r.OnOrder, r.Backorder, r.InventoryPosition, r.ReorderPoint, r.NeedTons)
	}
	tw.Flush()
}
