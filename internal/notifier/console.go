package notifier

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"StagePlanner/internal/model"
)

// Console writes decisions and plans as plain text tables.
type Console struct {
	out io.Writer
}

// NewConsole creates a console writer on stdout.
func NewConsole() *Console { return &Console{out: os.Stdout} }

// NewConsoleWriter creates a console writer on w.
func NewConsoleWriter(w io.Writer) *Console { return &Console{out: w} }

// PrintDecision prints the zone result and, when present, the plan table.
func (c *Console) PrintDecision(d *model.Decision) {
	snap := d.Snapshot
	fmt.Fprintf(c.out, "\n== %s ==\n", d.Symbol)
	fmt.Fprintf(c.out, "current %s | swing %s %s (%s%%) | peak %s\n",
		formatPrice(snap.CurrentPrice), snap.Reference.Type, formatPrice(snap.Reference.Price),
		d.Result.ChangePercent.StringFixed(2), formatPrice(snap.PeakPrice))
	fmt.Fprintf(c.out, "zone %s -> %s\n", d.Result.Zone, d.Result.Strategy)
	if d.Note != "" {
		fmt.Fprintf(c.out, "note: %s\n", d.Note)
	}
	if d.Plan == nil {
		return
	}
	renderPlanTable(c.out, d.Plan)
	if last, ok := d.Plan.Last(); ok {
		fmt.Fprintf(c.out, "total %d shares, cost %s, average %s\n",
			last.CumulativeQuantity, formatPrice(last.CumulativeCost), last.AverageCost.StringFixed(2))
	}
}

// PrintError prints a per-symbol failure.
func (c *Console) PrintError(symbol string, err error) {
	fmt.Fprintf(c.out, "\n== %s ==\nerror: %v\n", symbol, err)
}

var csvHeader = []string{
	"step", "drop_percent", "raw_price", "tick_size", "price", "quantity",
	"step_cost", "cumulative_quantity", "cumulative_cost", "average_cost",
}

// WritePlanCSV writes plan rows as CSV with full decimal precision.
func WritePlanCSV(w io.Writer, plan *model.Plan) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, s := range plan.Steps {
		row := []string{
			fmt.Sprintf("%d", s.Step),
			s.DropPercent.String(),
			s.RawPrice.String(),
			s.TickSize.String(),
			s.Price.String(),
			fmt.Sprintf("%d", s.Quantity),
			s.StepCost.String(),
			fmt.Sprintf("%d", s.CumulativeQuantity),
			s.CumulativeCost.String(),
			s.AverageCost.String(),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportPlanCSV writes plan to dir/<symbol>.csv and returns the file path.
func ExportPlanCSV(dir string, plan *model.Plan) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	name := strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(plan.Symbol) + ".csv"
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := WritePlanCSV(f, plan); err != nil {
		f.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, f.Close()
}
