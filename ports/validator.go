package ports

import (
	"context"

	"taxval/domain/consensus"
	"taxval/domain/core"
)

// Validator is the contract every reference calculator satisfies, whatever
// its nature: an in-process microsimulation binding, a subprocess wrapping an
// external tax calculator, or a static hand-authored oracle. No inheritance
// hierarchy beyond this capability set.
type Validator interface {
	// Name identifies the validator in results and logs
	Name() string

	// Type declares the validator's authority class
	Type() consensus.ValidatorType

	// SupportsVariable reports whether this validator can calculate the variable
	SupportsVariable(variable core.VariableKey) bool

	// Validate calculates one variable for one test case. Failures are
	// communicated through the returned result's Error field, never by
	// aborting the caller. Implementations are called sequentially on a
	// shared engine and must tolerate repeated invocation; they are not
	// required to be thread-safe.
	Validate(ctx context.Context, tc consensus.TestCase, variable core.VariableKey, year int) consensus.ValidatorResult
}
