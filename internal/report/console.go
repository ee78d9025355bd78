package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/andresuchdata/stocksim/internal/domain"
)

// WriteFinalTable prints the final snapshot as an aligned table. limit <= 0 prints every SKU.
func WriteFinalTable(w io.Writer, final []domain.FinalInventory, limit int) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, strings.Join(FinalHeader, "\t")+"\t")

	rows := final
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	for _, f := range rows {
		fmt.Fprintln(tw, strings.Join(finalRecord(f), "\t")+"\t")
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(rows) < len(final) {
		_, err := fmt.Fprintf(w, "... %d more SKUs\n", len(final)-len(rows))
		return err
	}
	return nil
}

// RunLine is the one-line result of a named run.
func RunLine(run *domain.SimulationRun) string {
	return fmt.Sprintf("%s [%s]: %s | orders: %d | days: %d",
		run.Name, run.ID, SummaryLine(run.FillRatePct, run.BackorderRatioPct), run.OrdersPlaced, run.Days)
}
