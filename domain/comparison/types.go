package comparison

// Mismatch is one record where the engine and reference values differ beyond
// tolerance.
type Mismatch struct {
	Index      int     `json:"index"`
	AValue     float64 `json:"a_value"`
	BValue     float64 `json:"b_value"`
	Difference float64 `json:"difference"`
}

// Percentiles summarizes the absolute-error distribution at the tail points
// the dashboard cares about. Computed with linear interpolation over the full
// difference array.
type Percentiles struct {
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

// Result is the statistical comparison of two equal-length numeric vectors
// over a population sample.
//
// Invariant: NMatches + len(Mismatches) == NCompared when mismatches are
// unbounded; with a top-N bound the retained diagnostics live in
// WorstMismatches instead.
type Result struct {
	Validator         string      `json:"validator"`
	NCompared         int         `json:"n_compared"`
	NMatches          int         `json:"n_matches"`
	MatchRate         float64     `json:"match_rate"`
	MeanAbsoluteError float64     `json:"mean_absolute_error"`
	Mismatches        []Mismatch  `json:"mismatches,omitempty"`
	WorstMismatches   []Mismatch  `json:"worst_mismatches,omitempty"`
	ErrorPercentiles  Percentiles `json:"error_percentiles"`
}

// NMismatches returns the number of retained mismatch diagnostics
func (r *Result) NMismatches() int {
	if len(r.WorstMismatches) > 0 {
		return len(r.WorstMismatches)
	}
	return len(r.Mismatches)
}
