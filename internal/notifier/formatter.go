package notifier

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"sort"
	"strings"
	"time"

	"StagePlanner/internal/model"
	"StagePlanner/internal/tracker"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"
)

var zoneIcons = map[model.Zone]string{
	model.Zone1Overextended: "🔥",
	model.Zone2NearPeak:     "⛰",
	model.Zone3Drawdown:     "📉",
	model.Zone4EarlyRebound: "🌱",
}

func zoneLabel(z model.Zone) string {
	if icon, ok := zoneIcons[z]; ok {
		return icon + " " + z.String()
	}
	return z.String()
}

// formatPrice renders whole prices without decimals and foreign prices with up to four.
func formatPrice(d decimal.Decimal) string {
	if d.Equal(d.Truncate(0)) {
		return d.StringFixed(0)
	}
	return d.Round(4).String()
}

// renderPlanTable writes the step table for plan to w.
func renderPlanTable(w io.Writer, plan *model.Plan) {
	table := tablewriter.NewWriter(w)
	table.Header("Step", "Drop%", "Price", "Qty", "Cost", "CumQty", "AvgCost")
	for _, s := range plan.Steps {
		table.Append(
			fmt.Sprintf("%d", s.Step),
			s.DropPercent.String(),
			formatPrice(s.Price),
			fmt.Sprintf("%d", s.Quantity),
			formatPrice(s.StepCost),
			fmt.Sprintf("%d", s.CumulativeQuantity),
			s.AverageCost.StringFixed(2),
		)
	}
	table.Render()
}

// FormatPlan formats a plan as a fixed-width table for Telegram.
func FormatPlan(plan *model.Plan) string {
	var b strings.Builder
	p := plan.Params
	b.WriteString(fmt.Sprintf("🧮 <b>%s</b> %s plan | %s\n", html.EscapeString(plan.Symbol), p.Mode, plan.CreatedAt.Format("2006-01-02")))
	b.WriteString(fmt.Sprintf("Peak: %s | Start drop: %s%% | Strength: %.2f\n",
		formatPrice(p.PeakPrice), p.StartDropPercent, p.Strength))

	var tbl bytes.Buffer
	renderPlanTable(&tbl, plan)
	b.WriteString("<pre>")
	b.WriteString(html.EscapeString(tbl.String()))
	b.WriteString("</pre>\n")

	if last, ok := plan.Last(); ok {
		b.WriteString(fmt.Sprintf("Total: %d shares, %s, average %s\n",
			last.CumulativeQuantity, formatPrice(last.CumulativeCost), last.AverageCost.StringFixed(2)))
	}
	return b.String()
}

// FormatDecision formats one evaluation result.
func FormatDecision(d *model.Decision) string {
	var b strings.Builder
	snap := d.Snapshot
	b.WriteString(fmt.Sprintf("📊 <b>%s</b> | %s\n\n", html.EscapeString(d.Symbol), snap.FetchedAt.Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("Current: %s\n", formatPrice(snap.CurrentPrice)))
	b.WriteString(fmt.Sprintf("Reference swing %s: %s (%s%%)\n",
		snap.Reference.Type, formatPrice(snap.Reference.Price), d.Result.ChangePercent.StringFixed(2)))
	b.WriteString(fmt.Sprintf("Lookback peak: %s\n", formatPrice(snap.PeakPrice)))
	if !snap.FXRate.IsZero() {
		b.WriteString(fmt.Sprintf("FX: %s KRW\n", snap.FXRate.StringFixed(2)))
	}
	b.WriteString(fmt.Sprintf("\nZone: %s\nStrategy: <b>%s</b>\n", zoneLabel(d.Result.Zone), d.Result.Strategy))
	if d.Note != "" {
		b.WriteString(fmt.Sprintf("⚠️ %s\n", html.EscapeString(d.Note)))
	}
	if d.Plan != nil {
		b.WriteString("\n")
		b.WriteString(FormatPlan(d.Plan))
	}
	return b.String()
}

// FormatZoneChange formats an alert for a zone transition.
func FormatZoneChange(d *model.Decision, prev model.Zone) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🚨 <b>Zone change: %s</b>\n", html.EscapeString(d.Symbol)))
	b.WriteString(fmt.Sprintf("%s → %s\n\n", zoneLabel(prev), zoneLabel(d.Result.Zone)))
	b.WriteString(FormatDecision(d))
	return b.String()
}

// FormatTrackerStatus formats fill progress for the given summaries.
func FormatTrackerStatus(summaries []tracker.Summary) string {
	if len(summaries) == 0 {
		return "📦 No plans are being tracked."
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Symbol < summaries[j].Symbol })

	var tbl bytes.Buffer
	table := tablewriter.NewWriter(&tbl)
	table.Header("Symbol", "Filled", "Ordered", "Qty", "AvgFill", "Next")
	for _, s := range summaries {
		next := "done"
		if s.NextStep > 0 {
			next = fmt.Sprintf("%d", s.NextStep)
		}
		avg := "-"
		if s.FilledQuantity > 0 {
			avg = s.AverageFillPrice.StringFixed(2)
		}
		table.Append(
			s.Symbol,
			fmt.Sprintf("%d/%d", s.FilledSteps, s.TotalSteps),
			fmt.Sprintf("%d", s.OrderedSteps),
			fmt.Sprintf("%d", s.FilledQuantity),
			avg,
			next,
		)
	}
	table.Render()

	var b strings.Builder
	b.WriteString("📦 <b>Execution status</b>\n")
	b.WriteString("<pre>")
	b.WriteString(html.EscapeString(tbl.String()))
	b.WriteString("</pre>\n")
	b.WriteString(fmt.Sprintf("Updated: %s\n", time.Now().Format("2006-01-02 15:04")))
	return b.String()
}

// FormatError formats an error notification.
func FormatError(what string, err error) string {
	return fmt.Sprintf("❌ <b>%s failed</b>\n%s", html.EscapeString(what), html.EscapeString(err.Error()))
}

// FormatHelp lists the supported commands.
func FormatHelp() string {
	return strings.Join([]string{
		"🤖 <b>StagePlanner commands</b>",
		"/zone SYMBOL - classify the current zone",
		"/plan SYMBOL - show the current plan",
		"/order SYMBOL STEP - mark a step as ordered",
		"/fill SYMBOL STEP PRICE - record a fill",
		"/status - execution progress of all plans",
		"/help - this message",
	}, "\n")
}
