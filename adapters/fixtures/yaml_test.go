package fixtures

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxval/domain/core"
)

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCases(t *testing.T) {
	path := writeFixture(t, "cases.yaml", `
cases:
  - name: single_adult_30k
    inputs:
      age: 30
      employment_income: 30000
    expected:
      income_tax: 3486.0
    citation: "ITA 2007 s.10"
  - name: couple_two_children
    inputs:
      employment_income: 45000
    expected:
      income_tax: 6486.0
      child_benefit: 2212.6
`)

	cases, err := NewYAMLSource().LoadCases(path)
	require.NoError(t, err)
	require.Len(t, cases, 2)

	assert.Equal(t, "single_adult_30k", cases[0].Name)
	assert.Equal(t, "ITA 2007 s.10", cases[0].Citation)
	v, ok := cases[0].ExpectedValue("income_tax")
	require.True(t, ok)
	assert.Equal(t, 3486.0, v)

	_, ok = cases[1].ExpectedValue("housing_benefit")
	assert.False(t, ok)
}

func TestLoadCases_DuplicateNamesRejected(t *testing.T) {
	path := writeFixture(t, "cases.yaml", `
cases:
  - name: single_adult_30k
    expected:
      income_tax: 3486.0
  - name: single_adult_30k
    expected:
      income_tax: 9999.0
`)

	_, err := NewYAMLSource().LoadCases(path)
	require.Error(t, err)
	assert.True(t, core.IsFixtureError(err))
	assert.Contains(t, err.Error(), "duplicate case name")
}

func TestLoadCases_MissingExpectedRejected(t *testing.T) {
	path := writeFixture(t, "cases.yaml", `
cases:
  - name: no_expectations
    inputs:
      age: 40
`)

	_, err := NewYAMLSource().LoadCases(path)
	require.Error(t, err)
	assert.True(t, core.IsFixtureError(err))
}

func TestLoadCases_EmptyFileRejected(t *testing.T) {
	path := writeFixture(t, "cases.yaml", "cases: []\n")

	_, err := NewYAMLSource().LoadCases(path)
	require.Error(t, err)
	assert.True(t, core.IsFixtureError(err))
}

func TestLoadCases_FileMissing(t *testing.T) {
	_, err := NewYAMLSource().LoadCases(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadOracleTable(t *testing.T) {
	path := writeFixture(t, "oracle.yaml", `
values:
  income_tax:
    single_adult_30k: 3486.0
  child_benefit:
    couple_two_children: 2212.6
`)

	table, err := NewYAMLSource().LoadOracleTable(path)
	require.NoError(t, err)
	assert.Equal(t, 3486.0, table["income_tax"]["single_adult_30k"])
	assert.Equal(t, 2212.6, table["child_benefit"]["couple_two_children"])
}

func TestLoadOracleTable_EmptyRejected(t *testing.T) {
	path := writeFixture(t, "oracle.yaml", "values: {}\n")

	_, err := NewYAMLSource().LoadOracleTable(path)
	require.Error(t, err)
	assert.True(t, core.IsFixtureError(err))
}

func TestLoadVector(t *testing.T) {
	// YAML is a JSON superset, so bulk vectors exported as JSON load as-is.
	path := writeFixture(t, "vector.json", "[100.0, 200.0, 300.5]")

	values, err := NewYAMLSource().LoadVector(path)
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 200, 300.5}, values)
}

func TestLoadVector_EmptyRejected(t *testing.T) {
	path := writeFixture(t, "vector.yaml", "[]")

	_, err := NewYAMLSource().LoadVector(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrEmptyInput)
}
