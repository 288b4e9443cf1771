package reconcile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdmdatalab/econbench/pkg/econ"
)

func TestCombinedColumns(t *testing.T) {
	both := CombinedColumns(true, true)
	assert.Len(t, both, 40)
	assert.Equal(t, "year_num", both[0])
	assert.Equal(t, SourceSystemColumn, both[len(AbsColumns)])
	assert.Equal(t, "pass_avg_weekly_wage", both[len(both)-1])

	absOnly := CombinedColumns(true, false)
	assert.Len(t, absOnly, 28)
	assert.Equal(t, SourceSystemColumn, absOnly[len(absOnly)-1])

	qcewOnly := CombinedColumns(false, true)
	assert.Len(t, qcewOnly, 23)

	assert.Nil(t, CombinedColumns(false, false))
}

func TestCombinedColumnsShareAbsNames(t *testing.T) {
	seen := make(map[string]bool)
	for _, col := range CombinedColumns(true, true) {
		assert.False(t, seen[col], "duplicate column %q", col)
		seen[col] = true
	}
	// The stacked frame reuses the shared columns rather than duplicating.
	for _, col := range []string{"delta_emp", "delta_emp_pct", "pass_emp", "pass_all", "notes"} {
		assert.True(t, seen[col], "missing shared column %q", col)
	}
}

func TestCombinedRecordsTagSystems(t *testing.T) {
	absRows := ReconcileABS(
		[]AbsSourceRow{absSource(2022, "06075", "62", econ.Float(1), econ.Float(1), econ.Float(1), econ.Float(1), "")},
		[]AbsWarehouseRow{absFact(2022, "06075", "62", econ.Float(1), econ.Float(1), econ.Float(1), econ.Float(1))},
	)
	qcewRows := ReconcileQCEW(
		[]QcewSourceRow{qcewSource(2022, "06075", "62", strp("1"), strp("52"), strp("1"))},
		[]QcewWarehouseRow{qcewFact(2022, "06075", "62", econ.Float(1), econ.Float(52), econ.Float(1))},
		true,
	)

	columns := CombinedColumns(true, true)
	records := CombinedRecords(absRows, qcewRows, columns)
	require.Len(t, records, 2)

	idx := make(map[string]int, len(columns))
	for i, col := range columns {
		idx[col] = i
	}
	assert.Equal(t, "abs", records[0][idx[SourceSystemColumn]])
	assert.Equal(t, "qcew", records[1][idx[SourceSystemColumn]])
	assert.Equal(t, "", records[0][idx["pass_wages"]])
	assert.Equal(t, "", records[1][idx["source_census_firmpdemp"]])
	assert.Equal(t, "true", records[1][idx["pass_all"]])
}

func TestWriteSummary(t *testing.T) {
	absRows := ReconcileABS(
		[]AbsSourceRow{
			absSource(2022, "06075", "62", econ.Float(1), econ.Float(1), econ.Float(1), econ.Float(1), ""),
			absSource(2022, "06085", "42", econ.Float(2), econ.Float(2), econ.Float(2), econ.Float(2), ""),
		},
		[]AbsWarehouseRow{
			absFact(2022, "06075", "62", econ.Float(1), econ.Float(1), econ.Float(1), econ.Float(1)),
		},
	)
	qcewRows := ReconcileQCEW(
		[]QcewSourceRow{qcewSource(2022, "06075", "62", strp("1"), strp("999"), strp("1"))},
		[]QcewWarehouseRow{qcewFact(2022, "06075", "62", econ.Float(1), econ.Float(52), econ.Float(1))},
		true,
	)

	path := filepath.Join(t.TempDir(), "summary.md")
	require.NoError(t, WriteSummary(path, absRows, true, qcewRows, true))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(raw)

	assert.Contains(t, content, "# Reconciliation Summary")
	assert.Contains(t, content, "ABS pass_all: 1/2")
	assert.Contains(t, content, "ABS failures:")
	assert.Contains(t, content, "- 2022 06085 42: firms=false emp=false payroll=false receipts=false")
	assert.Contains(t, content, "QCEW pass_all: 0/1")
	assert.Contains(t, content, "- 2022 06075 62: emp=true wages=false avg_weekly_wage=true")
}

func TestWriteSummarySkipsAbsentSystems(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.md")
	require.NoError(t, WriteSummary(path, nil, false, nil, true))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(raw)

	assert.NotContains(t, content, "ABS pass_all")
	assert.Contains(t, content, "QCEW pass_all: 0/0")
	assert.NotContains(t, content, "QCEW failures:")
}
