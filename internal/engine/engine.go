package engine

import (
	"context"
	"math"

	"github.com/montanaflynn/stats"

	"taxval/domain/consensus"
	"taxval/domain/core"
	"taxval/internal"
	"taxval/ports"
)

// toleranceEpsilon guards the spread ratio when tolerance is zero
const toleranceEpsilon = 1e-9

// minPositiveReward keeps agreement rewards inside (0,1] even at the
// inclusive tolerance boundary, where the tightness factor reaches zero.
const minPositiveReward = 0.01

// Engine adjudicates one test case and variable at a time across an ordered
// list of validators. Validators are invoked sequentially, in declared order,
// so re-running with identical validator behavior reproduces an identical
// Result.
type Engine struct {
	validators []ports.Validator
	tolerance  float64
	logger     *internal.Logger
}

// New creates a consensus engine over the given validators.
// Tolerance is an absolute difference in units of the compared quantity.
func New(validators []ports.Validator, tolerance float64) (*Engine, error) {
	if len(validators) == 0 {
		return nil, core.ErrNoValidators
	}
	if tolerance < 0 || math.IsNaN(tolerance) {
		return nil, core.ErrInvalidTolerance
	}
	return &Engine{
		validators: validators,
		tolerance:  tolerance,
		logger:     internal.DefaultLogger.WithComponent("ConsensusEngine"),
	}, nil
}

// Tolerance returns the engine's matching tolerance
func (e *Engine) Tolerance() float64 {
	return e.tolerance
}

// Validate adjudicates a single test case for one variable.
//
// authorConfidence is the automated authoring agent's self-reported
// confidence in the encoding under test; values above 0.9 allow the engine
// to flag a suspect fixture expectation as a potential upstream bug when the
// independent validators mutually agree against it.
func (e *Engine) Validate(ctx context.Context, tc consensus.TestCase, variable core.VariableKey, year int, authorConfidence float64) consensus.Result {
	selected := e.selectValidators(variable)

	results := make([]consensus.ValidatorResult, 0, len(selected))
	for _, v := range selected {
		r := v.Validate(ctx, tc, variable, year)
		if !r.Success() {
			e.logger.Debug("case %q variable %s: validator %s failed: %s", tc.Name, variable, r.ValidatorName, r.Error)
		}
		results = append(results, r)
	}

	return e.adjudicate(tc, variable, results, len(selected), authorConfidence)
}

// BatchValidate applies Validate independently to each test case, in order.
// No mutable state is shared across calls beyond the validator list itself.
func (e *Engine) BatchValidate(ctx context.Context, cases []consensus.TestCase, variable core.VariableKey, year int) []consensus.Result {
	out := make([]consensus.Result, 0, len(cases))
	for _, tc := range cases {
		out = append(out, e.Validate(ctx, tc, variable, year, 0))
	}
	return out
}

// selectValidators returns the validators declaring support for the variable.
// When none declare support the engine fails open and uses all of them.
func (e *Engine) selectValidators(variable core.VariableKey) []ports.Validator {
	supporting := make([]ports.Validator, 0, len(e.validators))
	for _, v := range e.validators {
		if v.SupportsVariable(variable) {
			supporting = append(supporting, v)
		}
	}
	if len(supporting) == 0 {
		e.logger.Warn("no validator declares support for %s, using all %d", variable, len(e.validators))
		return e.validators
	}
	return supporting
}

func (e *Engine) adjudicate(tc consensus.TestCase, variable core.VariableKey, results []consensus.ValidatorResult, nSelected int, authorConfidence float64) consensus.Result {
	successes := make([]consensus.ValidatorResult, 0, len(results))
	for _, r := range results {
		if r.Success() {
			successes = append(successes, r)
		}
	}

	// Every validator failed: deterministic worst case, batch runs continue.
	if len(successes) == 0 {
		return consensus.Result{
			Level:        consensus.LevelDisagreement,
			Confidence:   0.0,
			RewardSignal: -1.0,
			Results:      results,
		}
	}

	values := make([]float64, len(successes))
	for i, r := range successes {
		values[i] = r.Value()
	}

	maxDiff := maxPairwiseDiff(values)
	successRate := float64(len(successes)) / float64(nSelected)
	tolDenom := math.Max(e.tolerance, toleranceEpsilon)
	expected, hasExpected := tc.ExpectedValue(variable)

	var out consensus.Result
	switch {
	case maxDiff <= e.tolerance: // boundary equality counts as agreement
		mean := mustMean(values)
		tightness := 1.0 - maxDiff/tolDenom
		out = consensus.Result{
			Level:          consensus.LevelFullAgreement,
			ConsensusValue: &mean,
			// Success rate scaled upward toward 1.0 by agreement tightness.
			Confidence:   successRate + (1.0-successRate)*tightness,
			RewardSignal: math.Max(successRate*tightness, minPositiveReward),
			Results:      results,
		}

	default:
		if res, ok := e.primaryConfirmed(results, successes, successRate); ok {
			out = res
		} else if res, ok := e.potentialUpstreamBug(results, successes, values, successRate, authorConfidence, expected, hasExpected); ok {
			out = res
		} else {
			out = e.disagreement(results, values, successRate, maxDiff, tolDenom)
		}
	}

	if cv, ok := out.Value(); ok && hasExpected {
		out.MatchesExpected = math.Abs(cv-expected) <= e.tolerance
	}

	out.RewardSignal = clamp(out.RewardSignal, -1.0, 1.0)
	out.Confidence = clamp(out.Confidence, 0.0, 1.0)
	return out
}

// primaryConfirmed applies the authoritative-primary rule: when the first
// PRIMARY-typed validator succeeded and its value lies within tolerance of at
// least half of the non-primary successes (ties confirm), the primary's value
// wins. Any later PRIMARY-typed results are demoted to references for the
// majority count.
func (e *Engine) primaryConfirmed(results, successes []consensus.ValidatorResult, successRate float64) (consensus.Result, bool) {
	primary, ok := designatedPrimary(results)
	if !ok || !primary.Success() {
		return consensus.Result{}, false
	}

	confirming, others := 0, 0
	for _, r := range successes {
		if r.ValidatorName == primary.ValidatorName {
			continue
		}
		others++
		if math.Abs(r.Value()-primary.Value()) <= e.tolerance {
			confirming++
		}
	}
	if others == 0 || confirming*2 < others {
		return consensus.Result{}, false
	}

	value := primary.Value()
	confirmFrac := float64(confirming) / float64(others)
	return consensus.Result{
		Level:          consensus.LevelPrimaryConfirmed,
		ConsensusValue: &value,
		Confidence:     0.4 + 0.4*confirmFrac,
		// Halved against the full-agreement ceiling for an equivalent spread.
		RewardSignal: math.Max(0.5*successRate*confirmFrac, 0.05),
		Results:      results,
	}, true
}

// potentialUpstreamBug flags a suspect fixture expectation: the authoring
// agent is highly confident, the non-primary validators mutually agree within
// tolerance, and their common value still contradicts the expected value.
func (e *Engine) potentialUpstreamBug(results, successes []consensus.ValidatorResult, values []float64, successRate, authorConfidence float64, expected float64, hasExpected bool) (consensus.Result, bool) {
	if authorConfidence <= 0.9 || !hasExpected {
		return consensus.Result{}, false
	}

	primary, hasPrimary := designatedPrimary(results)
	nonPrimary := make([]consensus.ValidatorResult, 0, len(successes))
	for _, r := range successes {
		if hasPrimary && r.ValidatorName == primary.ValidatorName {
			continue
		}
		nonPrimary = append(nonPrimary, r)
	}
	if len(nonPrimary) == 0 {
		return consensus.Result{}, false
	}

	nonPrimaryValues := make([]float64, len(nonPrimary))
	for i, r := range nonPrimary {
		nonPrimaryValues[i] = r.Value()
	}
	if maxPairwiseDiff(nonPrimaryValues) > e.tolerance {
		return consensus.Result{}, false
	}
	common := mustMean(nonPrimaryValues)
	if math.Abs(common-expected) <= e.tolerance {
		return consensus.Result{}, false
	}

	bugs := make([]consensus.PotentialBug, 0, len(nonPrimary))
	for _, r := range nonPrimary {
		bugs = append(bugs, consensus.PotentialBug{
			Validator: r.ValidatorName,
			Expected:  expected,
			Actual:    r.Value(),
		})
	}

	mean := mustMean(values)
	return consensus.Result{
		Level:          consensus.LevelPotentialUpstreamBug,
		ConsensusValue: &mean,
		// Mutually agreeing independents corroborate the encoding, so the
		// verdict carries moderate confidence and a mildly positive reward.
		Confidence:    0.6 * successRate,
		RewardSignal:  0.25 * successRate,
		PotentialBugs: bugs,
		Results:       results,
	}, true
}

// disagreement is the fallback verdict. The consensus value is the median of
// the successes, a robust statistic that keeps matches_expected meaningful
// even with one outlier validator.
func (e *Engine) disagreement(results []consensus.ValidatorResult, values []float64, successRate, maxDiff, tolDenom float64) consensus.Result {
	median, err := stats.Median(values)
	res := consensus.Result{
		Level:      consensus.LevelDisagreement,
		Confidence: 0.2 * successRate,
		Results:    results,
	}
	if err == nil {
		res.ConsensusValue = &median
	}

	// Penalty grows with the spread ratio, asymptotic to -1.
	ratio := maxDiff / tolDenom
	res.RewardSignal = -(ratio / (ratio + 1.0))
	return res
}

// designatedPrimary returns the first PRIMARY-typed result in input order.
// Later PRIMARY-typed validators never participate in confirmation logic.
func designatedPrimary(results []consensus.ValidatorResult) (consensus.ValidatorResult, bool) {
	for _, r := range results {
		if r.ValidatorType == consensus.TypePrimary {
			return r, true
		}
	}
	return consensus.ValidatorResult{}, false
}

// maxPairwiseDiff returns the maximum absolute pairwise difference, which for
// real values is the range max-min. Zero for a single value.
func maxPairwiseDiff(values []float64) float64 {
	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return max - min
}

func mustMean(values []float64) float64 {
	mean, err := stats.Mean(values)
	if err != nil {
		// Unreachable: callers guarantee non-empty input.
		return 0
	}
	return mean
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
