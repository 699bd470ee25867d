// Package microsim adapts an in-process microsimulation binding to the
// validator contract. The calculation itself is supplied as a function so the
// core stays ignorant of whichever simulation library backs it.
package microsim

import (
	"context"
	"fmt"

	"taxval/domain/consensus"
	"taxval/domain/core"
)

// CalcFunc computes one policy variable for a test case
type CalcFunc func(tc consensus.TestCase, variable core.VariableKey, year int) (float64, error)

// Validator wraps a CalcFunc and a declared variable set
type Validator struct {
	name      string
	typ       consensus.ValidatorType
	variables map[core.VariableKey]struct{}
	calc      CalcFunc
}

// New creates an in-process validator. An empty variable list declares
// support for every variable.
func New(name string, typ consensus.ValidatorType, variables []core.VariableKey, calc CalcFunc) (*Validator, error) {
	if calc == nil {
		return nil, fmt.Errorf("microsim: calc function is required")
	}
	if typ == "" {
		typ = consensus.TypePrimary
	}
	vars := make(map[core.VariableKey]struct{}, len(variables))
	for _, v := range variables {
		vars[v] = struct{}{}
	}
	return &Validator{name: name, typ: typ, variables: vars, calc: calc}, nil
}

// Name identifies the validator in results and logs
func (v *Validator) Name() string { return v.name }

// Type declares the validator's authority class
func (v *Validator) Type() consensus.ValidatorType { return v.typ }

// SupportsVariable reports declared coverage
func (v *Validator) SupportsVariable(variable core.VariableKey) bool {
	if len(v.variables) == 0 {
		return true
	}
	_, ok := v.variables[variable]
	return ok
}

// Validate runs the wrapped calculation; panics in the binding are contained
// as validator failures so one bad case cannot end a batch run.
func (v *Validator) Validate(_ context.Context, tc consensus.TestCase, variable core.VariableKey, year int) (result consensus.ValidatorResult) {
	defer func() {
		if r := recover(); r != nil {
			result = consensus.NewFailure(v.name, v.typ, fmt.Errorf("simulation panicked: %v", r))
		}
	}()

	value, err := v.calc(tc, variable, year)
	if err != nil {
		return consensus.NewFailure(v.name, v.typ, err)
	}

	result = consensus.NewSuccess(v.name, v.typ, value)
	result.Metadata = map[string]any{"backend": "in-process"}
	return result
}
