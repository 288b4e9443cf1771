package reconcile

import (
	"os"
	"path/filepath"

	md "github.com/nao1215/markdown"

	"github.com/rdmdatalab/econbench/pkg/constants"
	"github.com/rdmdatalab/econbench/pkg/errors"
)

// qcewOnlyColumns are the columns QCEW contributes beyond the shared set
// when both systems stack into one CSV, in first-appearance order.
var qcewOnlyColumns = []string{
	"source_qcew_annual_avg_emplvl",
	"source_qcew_total_annual_wages_usd",
	"source_qcew_avg_weekly_wage_usd",
	"rdm_qcew_emp",
	"rdm_qcew_wages_usd",
	"rdm_qcew_avg_weekly_wage_usd",
	"delta_wages_usd",
	"delta_avg_weekly_wage_usd",
	"delta_wages_pct",
	"delta_avg_weekly_wage_pct",
	"pass_wages",
	"pass_avg_weekly_wage",
}

// CombinedColumns returns the stacked column order for the systems that
// ran. With both systems the ABS columns come first, then source_system,
// then the QCEW-only columns; shared columns (keys, delta_emp, pass_emp,
// pass_all, notes) appear once and are filled by both sides.
func CombinedColumns(hasAbs, hasQcew bool) []string {
	switch {
	case hasAbs && hasQcew:
		columns := make([]string, 0, len(AbsColumns)+1+len(qcewOnlyColumns))
		columns = append(columns, AbsColumns...)
		columns = append(columns, SourceSystemColumn)
		columns = append(columns, qcewOnlyColumns...)
		return columns
	case hasAbs:
		return append(append(make([]string, 0, len(AbsColumns)+1), AbsColumns...), SourceSystemColumn)
	case hasQcew:
		return append(append(make([]string, 0, len(QcewColumns)+1), QcewColumns...), SourceSystemColumn)
	default:
		return nil
	}
}

// CombinedRecords renders both row sets against the stacked column order.
// Columns a system never emits stay empty on its rows.
func CombinedRecords(absRows []AbsRow, qcewRows []QcewRow, columns []string) [][]string {
	records := make([][]string, 0, len(absRows)+len(qcewRows))
	for _, r := range absRows {
		cells := r.Cells()
		cells[SourceSystemColumn] = SystemABS
		records = append(records, projectRecord(cells, columns))
	}
	for _, r := range qcewRows {
		cells := r.Cells()
		cells[SourceSystemColumn] = SystemQCEW
		records = append(records, projectRecord(cells, columns))
	}
	return records
}

func projectRecord(cells map[string]string, columns []string) []string {
	record := make([]string, len(columns))
	for i, col := range columns {
		record[i] = cells[col]
	}
	return record
}

// WriteSummary renders the pass/fail summary markdown for the systems
// that ran. Failure bullets carry the per-metric verdicts so a reader can
// see which comparison broke without opening the CSV.
func WriteSummary(path string, absRows []AbsRow, hasAbs bool, qcewRows []QcewRow, hasQcew bool) error {
	if err := os.MkdirAll(filepath.Dir(path), constants.DirPermissions); err != nil {
		return errors.WrapIO("create", filepath.Dir(path), err)
	}
	f, err := os.Create(path) //nolint:gosec // Artifact paths are operator-controlled
	if err != nil {
		return errors.WrapIO("create", path, err)
	}
	defer func() { _ = f.Close() }()

	doc := md.NewMarkdown(f)
	doc.H1("Reconciliation Summary").LF()

	if hasAbs {
		passed, total := AbsPassCount(absRows)
		doc.PlainTextf("ABS pass_all: %d/%d", passed, total)
		if failures := AbsFailures(absRows); len(failures) > 0 {
			doc.PlainText("ABS failures:")
			lines := make([]string, 0, len(failures))
			for _, row := range failures {
				lines = append(lines, row.FailureLine())
			}
			doc.BulletList(lines...)
		}
		doc.LF()
	}

	if hasQcew {
		passed, total := QcewPassCount(qcewRows)
		doc.PlainTextf("QCEW pass_all: %d/%d", passed, total)
		if failures := QcewFailures(qcewRows); len(failures) > 0 {
			doc.PlainText("QCEW failures:")
			lines := make([]string, 0, len(failures))
			for _, row := range failures {
				lines = append(lines, row.FailureLine())
			}
			doc.BulletList(lines...)
		}
		doc.LF()
	}

	if err := doc.Build(); err != nil {
		return errors.WrapIO("write", path, err)
	}
	return f.Close()
}
