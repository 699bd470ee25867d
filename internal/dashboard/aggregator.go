package dashboard

import (
	"fmt"
	"strings"

	"github.com/montanaflynn/stats"

	"taxval/domain/comparison"
	"taxval/domain/core"
	"taxval/domain/report"
	"taxval/internal"
)

// Aggregator combines per-variable comparison summaries into one dashboard
// report. It depends only on the comparison output shape, never on the
// validators that produced it.
type Aggregator struct {
	logger *internal.Logger
}

// NewAggregator creates a dashboard aggregator
func NewAggregator() *Aggregator {
	return &Aggregator{
		logger: internal.DefaultLogger.WithComponent("DashboardAggregator"),
	}
}

// Generate builds a fresh report for the supplied tax year.
//
// The overall match rate is the simple arithmetic mean of per-variable match
// rates, not weighted by record counts; total records is their sum. Records
// arrive in the order their comparisons completed and that order is
// preserved, so a failed variable upstream never disturbs the entries that
// did compute.
func (a *Aggregator) Generate(records []report.VariableSummary, year int) *report.Report {
	r := &report.Report{
		Metadata: report.Metadata{
			ReportID:    core.ReportID(core.NewID()),
			Year:        year,
			GeneratedAt: core.Now(),
		},
		Variables: make([]report.VariableSummary, len(records)),
	}
	copy(r.Variables, records)

	if len(records) == 0 {
		a.logger.Warn("generating empty report for year %d: no variable records", year)
		return r
	}

	rates := make([]float64, len(records))
	total := 0
	for i, rec := range records {
		rates[i] = rec.MatchRate
		total += rec.NRecords
	}

	overall, err := stats.Mean(rates)
	if err != nil {
		// Unreachable: records is non-empty here.
		overall = 0
	}

	r.Summary = report.Summary{
		OverallMatchRate: overall,
		TotalRecords:     total,
	}
	return r
}

// RecordFrom converts one bulk comparison result into the dashboard's
// per-variable record shape.
func RecordFrom(variable core.VariableKey, res *comparison.Result) report.VariableSummary {
	return report.VariableSummary{
		Variable:          variable,
		MatchRate:         res.MatchRate,
		NRecords:          res.NCompared,
		MeanAbsoluteError: res.MeanAbsoluteError,
	}
}

// RenderMarkdown produces the human-readable summary behind the dashboard
// page.
func RenderMarkdown(r *report.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Policy Validation Report %d\n\n", r.Metadata.Year)
	fmt.Fprintf(&b, "Generated %s (report %s)\n\n", r.Metadata.GeneratedAt, r.Metadata.ReportID)
	fmt.Fprintf(&b, "**Overall match rate:** %.2f%%  \n", r.Summary.OverallMatchRate*100)
	fmt.Fprintf(&b, "**Total records:** %d\n\n", r.Summary.TotalRecords)

	if len(r.Variables) == 0 {
		b.WriteString("_No variables compared._\n")
		return b.String()
	}

	b.WriteString("| Variable | Match rate | Records | Mean abs error |\n")
	b.WriteString("|---|---|---|---|\n")
	for _, v := range r.Variables {
		fmt.Fprintf(&b, "| %s | %.2f%% | %d | %.4f |\n",
			v.Variable, v.MatchRate*100, v.NRecords, v.MeanAbsoluteError)
	}
	return b.String()
}
