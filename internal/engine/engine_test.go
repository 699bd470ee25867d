package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxval/domain/consensus"
	"taxval/domain/core"
	"taxval/ports"
)

// stubValidator is a scripted validator for engine tests
type stubValidator struct {
	name     string
	typ      consensus.ValidatorType
	supports bool
	value    float64
	err      error
	calls    int
}

func (s *stubValidator) Name() string                           { return s.name }
func (s *stubValidator) Type() consensus.ValidatorType          { return s.typ }
func (s *stubValidator) SupportsVariable(core.VariableKey) bool { return s.supports }

func (s *stubValidator) Validate(_ context.Context, _ consensus.TestCase, _ core.VariableKey, _ int) consensus.ValidatorResult {
	s.calls++
	if s.err != nil {
		return consensus.NewFailure(s.name, s.typ, s.err)
	}
	return consensus.NewSuccess(s.name, s.typ, s.value)
}

func reference(name string, value float64) *stubValidator {
	return &stubValidator{name: name, typ: consensus.TypeReference, supports: true, value: value}
}

func primary(name string, value float64) *stubValidator {
	return &stubValidator{name: name, typ: consensus.TypePrimary, supports: true, value: value}
}

func failing(name string) *stubValidator {
	return &stubValidator{name: name, typ: consensus.TypeReference, supports: true, err: errors.New("calculator crashed")}
}

func testCase(expected float64) consensus.TestCase {
	return consensus.TestCase{
		Name:     "single_filer_basic",
		Inputs:   map[string]any{"employment_income": 50000.0},
		Expected: map[core.VariableKey]float64{"income_tax": expected},
	}
}

func mustEngine(t *testing.T, tolerance float64, validators ...ports.Validator) *Engine {
	t.Helper()
	eng, err := New(validators, tolerance)
	require.NoError(t, err)
	return eng
}

func TestNew_RejectsBadInputs(t *testing.T) {
	_, err := New(nil, 1.0)
	assert.ErrorIs(t, err, core.ErrNoValidators)

	_, err = New([]ports.Validator{reference("a", 1)}, -0.5)
	assert.ErrorIs(t, err, core.ErrInvalidTolerance)
}

func TestValidate_FullAgreement(t *testing.T) {
	eng := mustEngine(t, 15,
		reference("microsim", 600),
		reference("refcalc", 605),
		reference("oracle", 598),
	)

	res := eng.Validate(context.Background(), testCase(601), "income_tax", 2025, 0)

	assert.Equal(t, consensus.LevelFullAgreement, res.Level)
	value, ok := res.Value()
	require.True(t, ok)
	assert.InDelta(t, 601.0, value, 1e-9)
	assert.True(t, res.MatchesExpected)
	assert.Greater(t, res.RewardSignal, 0.0)
	assert.LessOrEqual(t, res.RewardSignal, 1.0)
	assert.InDelta(t, 1.0, res.Confidence, 1e-9)
	assert.Len(t, res.Results, 3)
}

func TestValidate_BoundaryEqualityCountsAsAgreement(t *testing.T) {
	// Max pairwise diff exactly at tolerance must still agree.
	eng := mustEngine(t, 15, reference("a", 100), reference("b", 115))

	res := eng.Validate(context.Background(), testCase(107.5), "income_tax", 2025, 0)

	assert.Equal(t, consensus.LevelFullAgreement, res.Level)
	assert.Greater(t, res.RewardSignal, 0.0)
}

func TestValidate_Disagreement(t *testing.T) {
	eng := mustEngine(t, 15,
		reference("a", 100),
		reference("b", 500),
		reference("c", 900),
	)

	res := eng.Validate(context.Background(), testCase(500), "income_tax", 2025, 0)

	assert.Equal(t, consensus.LevelDisagreement, res.Level)
	assert.Less(t, res.RewardSignal, 0.0)
	assert.GreaterOrEqual(t, res.RewardSignal, -1.0)

	// Documented choice: the disagreement consensus value is the median.
	value, ok := res.Value()
	require.True(t, ok)
	assert.InDelta(t, 500.0, value, 1e-9)
	assert.True(t, res.MatchesExpected)
}

func TestValidate_AllValidatorsFailed(t *testing.T) {
	eng := mustEngine(t, 15, failing("a"), failing("b"))

	res := eng.Validate(context.Background(), testCase(100), "income_tax", 2025, 0)

	assert.Equal(t, consensus.LevelDisagreement, res.Level)
	_, ok := res.Value()
	assert.False(t, ok)
	assert.Equal(t, 0.0, res.Confidence)
	assert.Equal(t, -1.0, res.RewardSignal)
	assert.False(t, res.MatchesExpected)
	assert.Len(t, res.Results, 2)
}

func TestValidate_FailOpenWhenNoValidatorSupports(t *testing.T) {
	a := reference("a", 100)
	b := reference("b", 101)
	a.supports = false
	b.supports = false

	eng := mustEngine(t, 5, a, b)
	res := eng.Validate(context.Background(), testCase(100), "exotic_credit", 2025, 0)

	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
	assert.Equal(t, consensus.LevelFullAgreement, res.Level)
}

func TestValidate_PrimaryConfirmed(t *testing.T) {
	eng := mustEngine(t, 5,
		primary("authoritative", 100),
		reference("close", 101),
		reference("outlier", 300),
	)

	res := eng.Validate(context.Background(), testCase(100), "income_tax", 2025, 0)

	assert.Equal(t, consensus.LevelPrimaryConfirmed, res.Level)
	// Confirmation makes the primary's value authoritative, not the mean.
	value, ok := res.Value()
	require.True(t, ok)
	assert.InDelta(t, 100.0, value, 1e-9)
	assert.True(t, res.MatchesExpected)
	assert.Greater(t, res.RewardSignal, 0.0)
	assert.Less(t, res.RewardSignal, 1.0)
}

func TestValidate_PrimaryNotConfirmedByMinority(t *testing.T) {
	eng := mustEngine(t, 5,
		primary("authoritative", 100),
		reference("far1", 300),
		reference("far2", 301),
		reference("far3", 302),
	)

	res := eng.Validate(context.Background(), testCase(100), "income_tax", 2025, 0)
	assert.Equal(t, consensus.LevelDisagreement, res.Level)
}

func TestValidate_LaterPrimariesDemoted(t *testing.T) {
	// Only the first primary participates in confirmation; the second is a
	// reference for majority counting even though it agrees with the third.
	eng := mustEngine(t, 5,
		primary("first-primary", 200),
		primary("second-primary", 100),
		reference("ref", 100),
	)

	res := eng.Validate(context.Background(), testCase(100), "income_tax", 2025, 0)

	// First primary (200) is confirmed by neither non-primary success.
	assert.Equal(t, consensus.LevelDisagreement, res.Level)
	value, ok := res.Value()
	require.True(t, ok)
	assert.InDelta(t, 100.0, value, 1e-9) // median of 200, 100, 100
}

func TestValidate_PotentialUpstreamBug(t *testing.T) {
	// An unconfirmed primary widens the spread past tolerance while the
	// references agree with each other against the fixture's expectation.
	eng := mustEngine(t, 5,
		primary("authoritative", 100),
		reference("a", 200),
		reference("b", 201),
	)

	res := eng.Validate(context.Background(), testCase(150), "income_tax", 2025, 0.95)

	assert.Equal(t, consensus.LevelPotentialUpstreamBug, res.Level)
	value, ok := res.Value()
	require.True(t, ok)
	assert.InDelta(t, 167.0, value, 1e-9) // mean of all successes
	assert.False(t, res.MatchesExpected)

	require.Len(t, res.PotentialBugs, 2)
	assert.Equal(t, "a", res.PotentialBugs[0].Validator)
	assert.Equal(t, 150.0, res.PotentialBugs[0].Expected)
	assert.Equal(t, 200.0, res.PotentialBugs[0].Actual)
	assert.Equal(t, "b", res.PotentialBugs[1].Validator)
}

func TestValidate_NoBugFlagWithoutAuthorConfidence(t *testing.T) {
	eng := mustEngine(t, 5,
		primary("authoritative", 100),
		reference("a", 200),
		reference("b", 201),
	)

	res := eng.Validate(context.Background(), testCase(150), "income_tax", 2025, 0.5)

	assert.Equal(t, consensus.LevelDisagreement, res.Level)
	assert.Empty(t, res.PotentialBugs)
}

func TestValidate_BoundsHoldAcrossOutcomes(t *testing.T) {
	scenarios := map[string][]ports.Validator{
		"all agree":        {reference("a", 100), reference("b", 100)},
		"all fail":         {failing("a"), failing("b")},
		"partial failures": {reference("a", 100), failing("b"), reference("c", 5000)},
		"wide spread":      {reference("a", 0), reference("b", 1e9)},
		"primary path":     {primary("p", 100), reference("a", 100.5), reference("b", 400)},
	}

	for name, validators := range scenarios {
		t.Run(name, func(t *testing.T) {
			eng := mustEngine(t, 1, validators...)
			for _, conf := range []float64{0, 0.95} {
				res := eng.Validate(context.Background(), testCase(100), "income_tax", 2025, conf)
				assert.GreaterOrEqual(t, res.Confidence, 0.0)
				assert.LessOrEqual(t, res.Confidence, 1.0)
				assert.GreaterOrEqual(t, res.RewardSignal, -1.0)
				assert.LessOrEqual(t, res.RewardSignal, 1.0)
			}
		})
	}
}

func TestValidate_Deterministic(t *testing.T) {
	eng := mustEngine(t, 15,
		reference("a", 600),
		failing("b"),
		reference("c", 605),
	)

	first := eng.Validate(context.Background(), testCase(601), "income_tax", 2025, 0)
	second := eng.Validate(context.Background(), testCase(601), "income_tax", 2025, 0)

	assert.Equal(t, first, second)
}

func TestBatchValidate_IndependentPerCase(t *testing.T) {
	eng := mustEngine(t, 15, reference("a", 600), reference("b", 605))

	cases := []consensus.TestCase{
		testCase(601),
		testCase(9999),
	}
	results := eng.BatchValidate(context.Background(), cases, "income_tax", 2025)

	require.Len(t, results, 2)
	assert.True(t, results[0].MatchesExpected)
	assert.False(t, results[1].MatchesExpected)
	assert.Equal(t, results[0].Level, results[1].Level)
}

func TestValidate_MissingExpectedValue(t *testing.T) {
	eng := mustEngine(t, 15, reference("a", 600), reference("b", 605))

	tc := consensus.TestCase{
		Name:     "no_expectation",
		Expected: map[core.VariableKey]float64{"other_variable": 1},
	}
	res := eng.Validate(context.Background(), tc, "income_tax", 2025, 0)

	assert.Equal(t, consensus.LevelFullAgreement, res.Level)
	assert.False(t, res.MatchesExpected)
}

func TestValidate_ZeroTolerance(t *testing.T) {
	eng := mustEngine(t, 0, reference("a", 100), reference("b", 100))

	res := eng.Validate(context.Background(), testCase(100), "income_tax", 2025, 0)

	assert.Equal(t, consensus.LevelFullAgreement, res.Level)
	assert.True(t, res.MatchesExpected)
	assert.Greater(t, res.RewardSignal, 0.0)
}
