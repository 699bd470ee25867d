package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Comparison precondition errors
	ErrShapeMismatch = errors.New("compared sequences have different lengths")
	ErrEmptyInput    = errors.New("empty input: nothing to compare")

	// Adjudication errors
	ErrNoValidators     = errors.New("no validators configured")
	ErrInvalidTolerance = errors.New("tolerance must be non-negative")
	ErrUnknownVariable  = errors.New("unknown policy variable")
	ErrCaseNotFound     = errors.New("test case not found")

	// Fixture errors
	ErrFixtureInvalid = errors.New("invalid fixture")
)

// NewShapeMismatchError reports the offending lengths
func NewShapeMismatchError(lenA, lenB int) error {
	return fmt.Errorf("%w: %d vs %d", ErrShapeMismatch, lenA, lenB)
}

// NewUnknownVariableError reports the variable that no validator covers
func NewUnknownVariableError(key VariableKey) error {
	return fmt.Errorf("%w: %s", ErrUnknownVariable, key)
}

// Error checking helpers
func IsShapeMismatch(err error) bool {
	return errors.Is(err, ErrShapeMismatch)
}

func IsEmptyInput(err error) bool {
	return errors.Is(err, ErrEmptyInput)
}

func IsFixtureError(err error) bool {
	return errors.Is(err, ErrFixtureInvalid) || errors.Is(err, ErrCaseNotFound)
}
