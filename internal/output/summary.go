package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/wesleyorama2/gabsload/internal/actor"
	"github.com/wesleyorama2/gabsload/internal/profile"
	"github.com/wesleyorama2/gabsload/internal/report"
	"github.com/wesleyorama2/gabsload/internal/scheduler"
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

func observedPercent(r report.Rate) string {
	if !r.Observed {
		return "-"
	}
	return formatPercent(r.Percent)
}

// PrintSummary prints the final report. In quiet mode only the verdict
// and grade are written.
func (c *Console) PrintSummary(r *report.Report) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.clearLive()
	sc := c.scheme

	verdict := sc.Good.Sprint("PASSED")
	if !r.Passed {
		verdict = sc.Bad.Sprint("FAILED")
	}
	grade := sc.ForGrade(r.Grade).Sprintf("%s (%d/100)", r.Grade, r.Score)

	if c.quiet {
		c.writeln(fmt.Sprintf("%s grade %s", verdict, grade))
		return
	}

	rule := sc.Rule.Sprint(strings.Repeat(boxHorizontal, ruleWidth))
	c.writeln("")
	c.writeln(rule)
	c.writeln(fmt.Sprintf("%s - %s", sc.Title.Sprintf("%s test", r.TestType), verdict))
	c.writeln(rule)
	c.writeln(fmt.Sprintf("%s %s", sc.Label.Sprint("Run ID:    "), r.RunID))
	c.writeln(fmt.Sprintf("%s %s", sc.Label.Sprint("Duration:  "), formatDuration(r.Duration)))
	if r.Scheduler != nil {
		c.writeln(fmt.Sprintf("%s %d admitted, %d failed, peak %d VUs, ended %s",
			sc.Label.Sprint("Scheduler: "), r.Scheduler.Admitted, r.Scheduler.Failed,
			r.Scheduler.PeakActive, r.Scheduler.FinalState))
	}
	c.writeln("")

	c.writeln(sc.Title.Sprint("Requests"))
	table := newTable(c.w, "Metric", "Value")
	table.AppendBulk([][]string{
		{"Total", formatNumber(r.Requests.Total)},
		{"Errors", fmt.Sprintf("%s (%s)", formatNumber(r.Requests.Errors), formatPercent(r.Requests.ErrorRate))},
		{"Requests/s", fmt.Sprintf("%.2f", r.Requests.PerSecond)},
		{"Avg", formatMs(r.Requests.AvgMs)},
		{"P95", formatMs(r.Requests.P95Ms)},
		{"P99", formatMs(r.Requests.P99Ms)},
	})
	table.Render()
	c.writeln("")

	c.writeln(sc.Title.Sprint("Business"))
	table = newTable(c.w, "Metric", "Value")
	b := r.Business
	table.AppendBulk([][]string{
		{"Order success", observedPercent(b.OrderSuccess)},
		{"Login success", observedPercent(b.LoginSuccess)},
		{"Delivery completion", observedPercent(b.DeliveryCompletion)},
		{"Journey success", observedPercent(r.Iterations.Success)},
		{"Checks", observedPercent(r.Checks)},
		{"Orders placed", formatNumber(b.OrdersPlaced)},
		{"Orders accepted", formatNumber(b.OrdersAccepted)},
		{"Deliveries completed", formatNumber(b.DeliveriesCompleted)},
		{"Vendor browses", formatNumber(b.VendorBrowses)},
		{"Menu views", formatNumber(b.MenuViews)},
	})
	table.Render()
	c.writeln("")

	c.writeln(sc.Title.Sprint("Journeys"))
	table = newTable(c.w, "Actor", "Count", "Avg", "P95")
	for _, kind := range actor.All {
		j := r.Journeys[kind]
		if !j.Observed {
			table.Append([]string{kind.String(), "0", "-", "-"})
			continue
		}
		table.Append([]string{kind.String(), formatNumber(j.Count), formatMs(j.AvgMs), formatMs(j.P95Ms)})
	}
	table.Render()
	c.writeln("")

	if len(r.Thresholds) > 0 {
		c.writeln(sc.Title.Sprint("Thresholds"))
		table = newTable(c.w, "", "Metric", "Expression", "Actual")
		for _, t := range r.Thresholds {
			actual := fmt.Sprintf("%.4g", t.Value)
			if t.Skipped {
				actual = "no samples"
			}
			table.Append([]string{sc.PassIcon(t.Passed), t.Metric, t.Expression, actual})
		}
		table.Render()
		c.writeln("")
	}

	c.writeln(fmt.Sprintf("%s %s", sc.Title.Sprint("Grade:"), grade))
	for _, rec := range r.Recommendations {
		c.writeln("  - " + rec)
	}
	c.writeln("")
}

// PrintProfiles lists test types with their ramp and peak.
func PrintProfiles(w io.Writer, profiles []*profile.Profile) {
	table := newTable(w, "Type", "Peak VUs", "Duration", "Stages", "Description")
	for _, p := range profiles {
		table.Append([]string{
			p.Name,
			fmt.Sprintf("%d", p.PeakTarget()),
			formatDuration(p.TotalDuration()),
			scheduler.FormatStages(p.Stages),
			p.Description,
		})
	}
	table.Render()
}

// PrintThresholds lists the thresholds of one profile.
func PrintThresholds(w io.Writer, p *profile.Profile) {
	table := newTable(w, "Metric", "Expressions")
	for _, spec := range p.Thresholds {
		table.Append([]string{spec.Metric, strings.Join(spec.Expressions, ", ")})
	}
	table.Render()
}
