package report

import (
	"taxval/domain/core"
)

// Metadata identifies one dashboard generation
type Metadata struct {
	ReportID    core.ReportID  `json:"report_id"`
	Year        int            `json:"year"`
	GeneratedAt core.Timestamp `json:"generated_at"`
}

// VariableSummary is the per-variable entry consumed by the dashboard.
// It carries the minimum contract fields: variable, match rate, record count
// and mean absolute error.
type VariableSummary struct {
	Variable          core.VariableKey `json:"variable"`
	MatchRate         float64          `json:"match_rate"`
	NRecords          int              `json:"n_records"`
	MeanAbsoluteError float64          `json:"mean_absolute_error"`
}

// Summary aggregates the per-variable entries
type Summary struct {
	// OverallMatchRate is the unweighted arithmetic mean of per-variable
	// match rates, so small variables carry the same weight as large ones.
	OverallMatchRate float64 `json:"overall_match_rate"`
	TotalRecords     int     `json:"total_records"`
}

// Report is the dashboard document. Built fresh per aggregation call and
// serializable to plain JSON: numbers, strings, booleans, sequences and
// string-keyed mappings only.
type Report struct {
	Metadata  Metadata          `json:"metadata"`
	Variables []VariableSummary `json:"variables"`
	Summary   Summary           `json:"summary"`
}
