package consensus

import (
	"fmt"

	"taxval/domain/core"
)

// ValidatorType classifies the authority of a validator backend
type ValidatorType string

const (
	// TypePrimary is a designated authoritative reference whose confirmation
	// can outweigh simple majority disagreement among the others.
	TypePrimary ValidatorType = "primary"
	// TypeReference is an independent reference calculator.
	TypeReference ValidatorType = "reference"
	// TypeSupplementary is a supporting oracle (hand-authored expectations, spot checks).
	TypeSupplementary ValidatorType = "supplementary"
)

// Level is the categorical verdict summarizing how well independent validators agree
type Level string

const (
	LevelFullAgreement        Level = "full_agreement"
	LevelPrimaryConfirmed     Level = "primary_confirmed"
	LevelPotentialUpstreamBug Level = "potential_upstream_bug"
	LevelDisagreement         Level = "disagreement"
)

// TestCase is an immutable policy test fixture. Created by fixture adapters;
// read-only to the engine.
type TestCase struct {
	Name     string                       `json:"name" yaml:"name"`
	Inputs   map[string]any               `json:"inputs" yaml:"inputs"`
	Expected map[core.VariableKey]float64 `json:"expected" yaml:"expected"`
	Citation string                       `json:"citation,omitempty" yaml:"citation,omitempty"`
	Notes    string                       `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// ExpectedValue returns the expected value for a variable, if the fixture declares one
func (tc TestCase) ExpectedValue(variable core.VariableKey) (float64, bool) {
	v, ok := tc.Expected[variable]
	return v, ok
}

// ValidatorResult is the outcome of one validator call. Exactly one of
// CalculatedValue and Error is populated; immutable after creation.
type ValidatorResult struct {
	ValidatorName   string         `json:"validator_name"`
	ValidatorType   ValidatorType  `json:"validator_type"`
	CalculatedValue *float64       `json:"calculated_value,omitempty"`
	Error           string         `json:"error,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// NewSuccess creates a successful validator result carrying a calculated value
func NewSuccess(name string, typ ValidatorType, value float64) ValidatorResult {
	v := value
	return ValidatorResult{
		ValidatorName:   name,
		ValidatorType:   typ,
		CalculatedValue: &v,
	}
}

// NewFailure creates a failed validator result carrying a structured error message
func NewFailure(name string, typ ValidatorType, err error) ValidatorResult {
	msg := "unknown validator error"
	if err != nil {
		msg = err.Error()
	}
	return ValidatorResult{
		ValidatorName: name,
		ValidatorType: typ,
		Error:         msg,
	}
}

// Success reports whether the validator produced a usable value.
// Invariant: success iff Error is empty and CalculatedValue is present.
func (r ValidatorResult) Success() bool {
	return r.Error == "" && r.CalculatedValue != nil
}

// Value returns the calculated value; valid only when Success is true
func (r ValidatorResult) Value() float64 {
	if r.CalculatedValue == nil {
		return 0
	}
	return *r.CalculatedValue
}

// PotentialBug records one validator value that disagrees with the fixture's
// expectation while the validators mutually agree - evidence the upstream
// expectation, not the encoding, may be wrong.
type PotentialBug struct {
	Validator string  `json:"validator"`
	Expected  float64 `json:"expected"`
	Actual    float64 `json:"actual"`
}

// Result is one adjudication of a test case and variable across all validators.
// Derived entirely from a single engine call; no persistent identity.
type Result struct {
	Level           Level             `json:"consensus_level"`
	ConsensusValue  *float64          `json:"consensus_value,omitempty"`
	Confidence      float64           `json:"confidence"`
	RewardSignal    float64           `json:"reward_signal"`
	MatchesExpected bool              `json:"matches_expected"`
	PotentialBugs   []PotentialBug    `json:"potential_bugs,omitempty"`
	Results         []ValidatorResult `json:"validator_results"`
}

// Value returns the consensus value; the second return is false when no
// consensus value was reachable (e.g. every validator failed).
func (r Result) Value() (float64, bool) {
	if r.ConsensusValue == nil {
		return 0, false
	}
	return *r.ConsensusValue, true
}

// SuccessCount returns how many underlying validator calls succeeded
func (r Result) SuccessCount() int {
	n := 0
	for _, vr := range r.Results {
		if vr.Success() {
			n++
		}
	}
	return n
}

// Validate checks the test case invariants fixtures must satisfy
func (tc TestCase) Validate() error {
	if tc.Name == "" {
		return fmt.Errorf("%w: test case name is required", core.ErrFixtureInvalid)
	}
	if len(tc.Expected) == 0 {
		return fmt.Errorf("%w: test case %q declares no expected values", core.ErrFixtureInvalid, tc.Name)
	}
	return nil
}
