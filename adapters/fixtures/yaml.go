// Package fixtures loads test-case files, oracle tables and bulk result
// vectors. The core only ever sees the realized values.
package fixtures

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"taxval/adapters/oracle"
	"taxval/domain/consensus"
	"taxval/domain/core"
	"taxval/internal"
	apperrors "taxval/internal/errors"
)

// caseFile is the on-disk fixture layout
type caseFile struct {
	Cases []consensus.TestCase `yaml:"cases"`
}

// oracleFile maps variable -> case name -> authored value
type oracleFile struct {
	Values map[core.VariableKey]map[string]float64 `yaml:"values"`
}

// YAMLSource reads fixtures in YAML form (and, YAML being a JSON superset,
// plain JSON files as well)
type YAMLSource struct {
	logger *internal.Logger
}

// NewYAMLSource creates a YAML fixture source
func NewYAMLSource() *YAMLSource {
	return &YAMLSource{logger: internal.DefaultLogger.WithComponent("Fixtures")}
}

// LoadCases reads all test cases at path, in file order. Duplicate names and
// cases without expected values are rejected up front so a bad fixture fails
// the run before any validator is invoked.
func (s *YAMLSource) LoadCases(path string) ([]consensus.TestCase, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrapf(err, "failed to read fixture file %s", path)
	}

	var file caseFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, apperrors.Wrap(apperrors.FixtureInvalid(err.Error()), "failed to parse fixture file")
	}
	if len(file.Cases) == 0 {
		return nil, fmt.Errorf("%w: %s contains no cases", core.ErrFixtureInvalid, path)
	}

	seen := make(map[string]struct{}, len(file.Cases))
	for _, tc := range file.Cases {
		if err := tc.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[tc.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate case name %q", core.ErrFixtureInvalid, tc.Name)
		}
		seen[tc.Name] = struct{}{}
	}

	s.logger.Info("loaded %d test cases from %s", len(file.Cases), path)
	return file.Cases, nil
}

// LoadOracleTable reads a hand-authored oracle table
func (s *YAMLSource) LoadOracleTable(path string) (oracle.Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrapf(err, "failed to read oracle file %s", path)
	}

	var file oracleFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, apperrors.Wrap(apperrors.FixtureInvalid(err.Error()), "failed to parse oracle file")
	}
	if len(file.Values) == 0 {
		return nil, fmt.Errorf("%w: %s contains no oracle values", core.ErrFixtureInvalid, path)
	}
	return oracle.Table(file.Values), nil
}

// LoadVector reads a flat numeric vector for the bulk comparison path
func (s *YAMLSource) LoadVector(path string) ([]float64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrapf(err, "failed to read vector file %s", path)
	}

	var values []float64
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return nil, apperrors.Wrap(apperrors.FixtureInvalid(err.Error()), "failed to parse vector file")
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: %s", core.ErrEmptyInput, path)
	}
	return values, nil
}
