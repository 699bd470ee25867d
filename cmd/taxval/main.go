package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"taxval/adapters/excel"
	"taxval/adapters/fixtures"
	"taxval/adapters/oracle"
	"taxval/adapters/refcalc"
	"taxval/domain/comparison"
	"taxval/domain/consensus"
	"taxval/domain/core"
	"taxval/domain/report"
	"taxval/internal/compare"
	"taxval/internal/config"
	"taxval/internal/dashboard"
	"taxval/internal/engine"
	"taxval/ports"
	"taxval/ui"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	rootCmd := &cobra.Command{
		Use:   "taxval",
		Short: "Consensus validation of rules-as-code tax policy encodings",
	}

	rootCmd.AddCommand(
		newValidateCmd(cfg),
		newReconcileCmd(cfg),
		newServeCmd(cfg),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newValidateCmd(cfg *config.Config) *cobra.Command {
	var (
		fixturesPath     string
		oraclePath       string
		variable         string
		year             int
		tolerance        float64
		authorConfidence float64
		referenceCmd     string
		referencePrimary bool
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Adjudicate fixture cases for one variable across all configured validators",
		Long: `Run every configured validator against each test case and combine the
results into a consensus verdict, confidence score and reward signal.

Example: taxval validate --fixtures cases.yaml --oracle oracle.yaml --variable income_tax --year 2025`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if variable == "" {
				return fmt.Errorf("--variable is required")
			}

			source := fixtures.NewYAMLSource()
			cases, err := source.LoadCases(fixturesPath)
			if err != nil {
				return err
			}

			validators, err := buildValidators(cfg, source, oraclePath, referenceCmd, referencePrimary)
			if err != nil {
				return err
			}

			eng, err := engine.New(validators, tolerance)
			if err != nil {
				return err
			}

			results := make([]consensus.Result, 0, len(cases))
			for _, tc := range cases {
				results = append(results, eng.Validate(cmd.Context(), tc, core.VariableKey(variable), year, authorConfidence))
			}

			out, err := json.MarshalIndent(results, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&fixturesPath, "fixtures", filepath.Join(cfg.Paths.FixturesDir, "cases.yaml"), "test case fixture file")
	cmd.Flags().StringVar(&oraclePath, "oracle", cfg.Paths.OracleFile, "hand-authored oracle table file")
	cmd.Flags().StringVar(&variable, "variable", "", "policy variable to adjudicate")
	cmd.Flags().IntVar(&year, "year", cfg.Validation.Year, "tax year")
	cmd.Flags().Float64Var(&tolerance, "tolerance", cfg.Validation.Tolerance, "absolute matching tolerance")
	cmd.Flags().Float64Var(&authorConfidence, "author-confidence", 0, "authoring agent's self-reported confidence (0-1)")
	cmd.Flags().StringVar(&referenceCmd, "reference-cmd", cfg.Reference.Command, "external reference calculator executable")
	cmd.Flags().BoolVar(&referencePrimary, "reference-primary", cfg.Reference.Primary, "treat the reference calculator as the primary authority")
	return cmd
}

func newReconcileCmd(cfg *config.Config) *cobra.Command {
	var (
		pairs     []string
		tolerance float64
		topN      int
		year      int
		outPath   string
		xlsxPath  string
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare engine and reference result vectors and build a dashboard report",
		Long: `Compare per-variable numeric result vectors over a population sample and
aggregate the per-variable statistics into one dashboard report. A variable
whose vectors fail to load or compare is skipped; the remaining variables
still make it into the report.

Example: taxval reconcile --pair income_tax=engine.yaml:reference.yaml --tolerance 1 --out report.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(pairs) == 0 {
				return fmt.Errorf("at least one --pair variable=engine_file:reference_file is required")
			}

			source := fixtures.NewYAMLSource()
			comparator := compare.New(cfg.Comparison.Workers)

			records := make([]report.VariableSummary, 0, len(pairs))
			for _, p := range pairs {
				variable, aPath, bPath, err := parsePair(p)
				if err != nil {
					return err
				}

				res, err := comparePair(source, comparator, aPath, bPath, variable, tolerance, topN)
				if err != nil {
					// Partial results: keep the variables that did compute.
					fmt.Fprintf(os.Stderr, "skipping %s: %v\n", variable, err)
					continue
				}
				records = append(records, dashboard.RecordFrom(variable, res))
			}

			rep := dashboard.NewAggregator().Generate(records, year)

			out, err := json.MarshalIndent(rep, "", "  ")
			if err != nil {
				return err
			}
			if outPath == "" {
				fmt.Println(string(out))
			} else if err := os.WriteFile(outPath, out, 0o644); err != nil {
				return fmt.Errorf("failed to write report: %w", err)
			}

			if xlsxPath != "" {
				if err := excel.NewReportWriter(xlsxPath).Write(rep); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&pairs, "pair", nil, "variable=engine_file:reference_file (repeatable)")
	cmd.Flags().Float64Var(&tolerance, "tolerance", cfg.Comparison.Tolerance, "absolute matching tolerance")
	cmd.Flags().IntVar(&topN, "top-n", cfg.Comparison.TopNMismatches, "worst mismatches kept per variable (0 keeps all)")
	cmd.Flags().IntVar(&year, "year", cfg.Validation.Year, "tax year")
	cmd.Flags().StringVar(&outPath, "out", "", "report JSON output path (default stdout)")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "also export the report as a workbook")
	return cmd
}

func newServeCmd(cfg *config.Config) *cobra.Command {
	var (
		reportPath string
		port       string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the validation dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			server := ui.NewServer(cfg.Server.GinMode)

			if reportPath != "" {
				raw, err := os.ReadFile(reportPath)
				if err != nil {
					return fmt.Errorf("failed to read report: %w", err)
				}
				var r report.Report
				if err := json.Unmarshal(raw, &r); err != nil {
					return fmt.Errorf("failed to parse report: %w", err)
				}
				server.SetReport(&r)
			}

			return server.Run(port)
		},
	}

	cmd.Flags().StringVar(&reportPath, "report", "", "report JSON to preload")
	cmd.Flags().StringVar(&port, "port", cfg.Server.Port, "listen port")
	return cmd
}

// buildValidators assembles the configured validator list, oracle first so a
// primary reference calculator still wins the input-order primary rule only
// when explicitly typed primary.
func buildValidators(cfg *config.Config, source *fixtures.YAMLSource, oraclePath, referenceCmd string, referencePrimary bool) ([]ports.Validator, error) {
	validators := make([]ports.Validator, 0, 2)

	if oraclePath != "" {
		table, err := source.LoadOracleTable(oraclePath)
		if err != nil {
			return nil, err
		}
		validators = append(validators, oracle.New("hand-authored-oracle", consensus.TypeSupplementary, table))
	}

	if referenceCmd != "" {
		typ := consensus.TypeReference
		if referencePrimary {
			typ = consensus.TypePrimary
		}
		v, err := refcalc.New(refcalc.Config{
			Name:    "reference-calculator",
			Type:    typ,
			Command: referenceCmd,
			Timeout: cfg.Reference.Timeout,
		})
		if err != nil {
			return nil, err
		}
		validators = append(validators, v)
	}

	if len(validators) == 0 {
		return nil, core.ErrNoValidators
	}
	return validators, nil
}

func parsePair(p string) (core.VariableKey, string, string, error) {
	name, files, ok := strings.Cut(p, "=")
	if !ok {
		return "", "", "", fmt.Errorf("invalid --pair %q: expected variable=engine_file:reference_file", p)
	}
	aPath, bPath, ok := strings.Cut(files, ":")
	if !ok || aPath == "" || bPath == "" {
		return "", "", "", fmt.Errorf("invalid --pair %q: expected two file paths separated by ':'", p)
	}
	return core.VariableKey(name), aPath, bPath, nil
}

func comparePair(source *fixtures.YAMLSource, comparator *compare.Comparator, aPath, bPath string, variable core.VariableKey, tolerance float64, topN int) (*comparison.Result, error) {
	a, err := source.LoadVector(aPath)
	if err != nil {
		return nil, err
	}
	b, err := source.LoadVector(bPath)
	if err != nil {
		return nil, err
	}
	return comparator.Compare(variable.String(), a, b, tolerance, topN)
}
