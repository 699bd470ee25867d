// Package oracle implements the validator contract over a static table of
// hand-authored values: per-variable, per-case numbers worked out by a human
// against the statute text.
package oracle

import (
	"context"
	"fmt"

	"taxval/domain/consensus"
	"taxval/domain/core"
)

// Table maps variable -> test case name -> authored value
type Table map[core.VariableKey]map[string]float64

// Validator answers from the table and nothing else. It never shells out,
// so a lookup miss is the only failure mode.
type Validator struct {
	name  string
	typ   consensus.ValidatorType
	table Table
}

// New creates an oracle validator over the given table
func New(name string, typ consensus.ValidatorType, table Table) *Validator {
	if typ == "" {
		typ = consensus.TypeSupplementary
	}
	return &Validator{name: name, typ: typ, table: table}
}

// Name identifies the validator in results and logs
func (v *Validator) Name() string { return v.name }

// Type declares the validator's authority class
func (v *Validator) Type() consensus.ValidatorType { return v.typ }

// SupportsVariable reports whether the table has any entry for the variable
func (v *Validator) SupportsVariable(variable core.VariableKey) bool {
	_, ok := v.table[variable]
	return ok
}

// Validate looks the case up in the table
func (v *Validator) Validate(_ context.Context, tc consensus.TestCase, variable core.VariableKey, _ int) consensus.ValidatorResult {
	cases, ok := v.table[variable]
	if !ok {
		return consensus.NewFailure(v.name, v.typ, core.NewUnknownVariableError(variable))
	}
	value, ok := cases[tc.Name]
	if !ok {
		return consensus.NewFailure(v.name, v.typ, fmt.Errorf("%w: %s", core.ErrCaseNotFound, tc.Name))
	}

	result := consensus.NewSuccess(v.name, v.typ, value)
	result.Metadata = map[string]any{"backend": "oracle"}
	return result
}
