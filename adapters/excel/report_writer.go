// Package excel exports dashboard reports as workbooks for analyst
// distribution.
package excel

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"taxval/domain/report"
	"taxval/internal"
	apperrors "taxval/internal/errors"
)

const (
	summarySheet   = "Summary"
	variablesSheet = "Variables"
)

// ReportWriter writes one report per workbook
type ReportWriter struct {
	path   string
	logger *internal.Logger
}

// NewReportWriter creates a writer targeting the given .xlsx path
func NewReportWriter(path string) *ReportWriter {
	return &ReportWriter{
		path:   path,
		logger: internal.DefaultLogger.WithComponent("ExcelWriter"),
	}
}

// Write renders the report into a two-sheet workbook
func (w *ReportWriter) Write(r *report.Report) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return apperrors.Wrap(err, "failed to initialize summary sheet")
	}

	summaryRows := [][]any{
		{"Report ID", r.Metadata.ReportID.String()},
		{"Tax year", r.Metadata.Year},
		{"Generated at", r.Metadata.GeneratedAt.String()},
		{"Overall match rate", r.Summary.OverallMatchRate},
		{"Total records", r.Summary.TotalRecords},
		{"Variables compared", len(r.Variables)},
	}
	for i, row := range summaryRows {
		cell := fmt.Sprintf("A%d", i+1)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return apperrors.Wrap(err, "failed to write summary row")
		}
	}

	if _, err := f.NewSheet(variablesSheet); err != nil {
		return apperrors.Wrap(err, "failed to create variables sheet")
	}
	header := []any{"Variable", "Match rate", "Records", "Mean absolute error"}
	if err := f.SetSheetRow(variablesSheet, "A1", &header); err != nil {
		return apperrors.Wrap(err, "failed to write variables header")
	}
	for i, v := range r.Variables {
		row := []any{v.Variable.String(), v.MatchRate, v.NRecords, v.MeanAbsoluteError}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(variablesSheet, cell, &row); err != nil {
			return apperrors.Wrapf(err, "failed to write row for variable %s", v.Variable)
		}
	}

	if err := f.SaveAs(w.path); err != nil {
		return apperrors.Wrapf(err, "failed to save workbook %s", w.path)
	}
	w.logger.Info("wrote report %s to %s", r.Metadata.ReportID, w.path)
	return nil
}
