package consensus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxval/domain/core"
)

func TestValidatorResult_SuccessInvariant(t *testing.T) {
	ok := NewSuccess("refcalc", TypeReference, 42.0)
	require.True(t, ok.Success())
	assert.Equal(t, 42.0, ok.Value())
	assert.Empty(t, ok.Error)

	fail := NewFailure("refcalc", TypeReference, errors.New("timeout"))
	require.False(t, fail.Success())
	assert.Nil(t, fail.CalculatedValue)
	assert.Equal(t, "timeout", fail.Error)

	nilErr := NewFailure("refcalc", TypeReference, nil)
	assert.False(t, nilErr.Success())
	assert.NotEmpty(t, nilErr.Error)
}

func TestResult_Value(t *testing.T) {
	var r Result
	_, ok := r.Value()
	assert.False(t, ok)

	v := 100.0
	r.ConsensusValue = &v
	got, ok := r.Value()
	require.True(t, ok)
	assert.Equal(t, 100.0, got)
}

func TestResult_SuccessCount(t *testing.T) {
	r := Result{Results: []ValidatorResult{
		NewSuccess("a", TypeReference, 1),
		NewFailure("b", TypeReference, errors.New("boom")),
		NewSuccess("c", TypeSupplementary, 2),
	}}
	assert.Equal(t, 2, r.SuccessCount())
}

func TestTestCase_Validate(t *testing.T) {
	valid := TestCase{
		Name:     "single_adult_30k",
		Expected: map[core.VariableKey]float64{"income_tax": 3486.0},
	}
	assert.NoError(t, valid.Validate())

	noName := TestCase{Expected: map[core.VariableKey]float64{"income_tax": 1}}
	assert.True(t, core.IsFixtureError(noName.Validate()))

	noExpected := TestCase{Name: "x"}
	assert.True(t, core.IsFixtureError(noExpected.Validate()))
}
