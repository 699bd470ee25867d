package ports

import (
	"taxval/domain/consensus"
	"taxval/domain/report"
)

// FixtureSource loads realized test cases from some external representation.
// The engine only ever sees the resulting TestCase values.
type FixtureSource interface {
	// LoadCases reads all test cases at path, in file order
	LoadCases(path string) ([]consensus.TestCase, error)
}

// ReportWriter persists or publishes a generated dashboard report
type ReportWriter interface {
	Write(r *report.Report) error
}
