package compare

import (
	"math"
	"runtime"
	"sort"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"taxval/domain/comparison"
	"taxval/domain/core"
	"taxval/internal"
)

// parallelThreshold is the vector length below which chunked dispatch costs
// more than it saves.
const parallelThreshold = 4096

// Comparator statistically compares two large numeric result vectors
// (engine vs. reference) elementwise. Comparisons are pure: no state is
// shared between elements, so the diff pass is chunked across workers for
// population-scale inputs.
type Comparator struct {
	workers int
	logger  *internal.Logger
}

// New creates a comparator. workers caps the parallel chunk count;
// zero or negative selects GOMAXPROCS.
func New(workers int) *Comparator {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Comparator{
		workers: workers,
		logger:  internal.DefaultLogger.WithComponent("RecordComparator"),
	}
}

// Compare reconciles vectors a and b under the given tolerance.
//
// A record matches iff |a[i]-b[i]| <= tolerance (boundary inclusive). With
// topN <= 0 every mismatch is retained in Mismatches; with topN > 0 only the
// top-N by difference descending (ties broken by ascending index) are kept,
// exposed as WorstMismatches.
//
// Length mismatch and empty input are fatal precondition violations, never
// silent NaN ratios.
func (c *Comparator) Compare(validator string, a, b []float64, tolerance float64, topN int) (*comparison.Result, error) {
	if len(a) != len(b) {
		return nil, core.NewShapeMismatchError(len(a), len(b))
	}
	n := len(a)
	if n == 0 {
		return nil, core.ErrEmptyInput
	}

	diff := make([]float64, n)
	c.computeDiffs(a, b, diff)

	nMatches := 0
	mismatches := make([]comparison.Mismatch, 0)
	for i, d := range diff {
		if d <= tolerance {
			nMatches++
			continue
		}
		mismatches = append(mismatches, comparison.Mismatch{
			Index:      i,
			AValue:     a[i],
			BValue:     b[i],
			Difference: d,
		})
	}

	mae, err := stats.Mean(diff)
	if err != nil {
		return nil, err
	}

	result := &comparison.Result{
		Validator:         validator,
		NCompared:         n,
		NMatches:          nMatches,
		MatchRate:         float64(nMatches) / float64(n),
		MeanAbsoluteError: mae,
		ErrorPercentiles:  errorPercentiles(diff),
	}

	if topN > 0 {
		result.WorstMismatches = worstMismatches(mismatches, topN)
	} else {
		result.Mismatches = mismatches
	}

	c.logger.Debug("%s: %d/%d matched (rate %.4f, mae %.4f)", validator, nMatches, n, result.MatchRate, mae)
	return result, nil
}

// computeDiffs fills diff[i] = |a[i]-b[i]|, chunked across workers for large
// vectors. Chunks write disjoint ranges of the preallocated slice, so the
// merge is free and deterministic.
func (c *Comparator) computeDiffs(a, b, diff []float64) {
	n := len(a)
	if n < parallelThreshold || c.workers < 2 {
		for i := range a {
			diff[i] = math.Abs(a[i] - b[i])
		}
		return
	}

	chunk := (n + c.workers - 1) / c.workers
	var g errgroup.Group
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		start, end := start, end
		g.Go(func() error {
			for i := start; i < end; i++ {
				diff[i] = math.Abs(a[i] - b[i])
			}
			return nil
		})
	}
	// Chunk workers cannot fail; Wait only synchronizes.
	_ = g.Wait()
}

// errorPercentiles computes p50/p95/p99 over the full diff array using
// linear-interpolation quantiles.
func errorPercentiles(diff []float64) comparison.Percentiles {
	sorted := make([]float64, len(diff))
	copy(sorted, diff)
	sort.Float64s(sorted)

	return comparison.Percentiles{
		P50: stat.Quantile(0.50, stat.LinInterp, sorted, nil),
		P95: stat.Quantile(0.95, stat.LinInterp, sorted, nil),
		P99: stat.Quantile(0.99, stat.LinInterp, sorted, nil),
	}
}

// worstMismatches keeps the top-N by difference descending; ties resolve by
// ascending index so repeated runs produce byte-identical diagnostics.
func worstMismatches(mismatches []comparison.Mismatch, topN int) []comparison.Mismatch {
	sorted := make([]comparison.Mismatch, len(mismatches))
	copy(sorted, mismatches)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Difference != sorted[j].Difference {
			return sorted[i].Difference > sorted[j].Difference
		}
		return sorted[i].Index < sorted[j].Index
	})
	if len(sorted) > topN {
		sorted = sorted[:topN]
	}
	return sorted
}
