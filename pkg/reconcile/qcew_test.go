package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdmdatalab/econbench/pkg/econ"
)

func strp(s string) *string {
	return &s
}

func qcewSource(year int, fips, sector string, emp, wages, avgWage *string) QcewSourceRow {
	return QcewSourceRow{
		Year:          year,
		FIPS:          fips,
		Sector:        sector,
		Emp:           emp,
		Wages:         wages,
		AvgWeeklyWage: avgWage,
	}
}

func qcewFact(year int, fips, sector string, emp, wages, avgWage *float64) QcewWarehouseRow {
	return QcewWarehouseRow{
		Year:             year,
		FIPS:             fips,
		Sector:           sector,
		Emp:              emp,
		WagesUSD:         wages,
		AvgWeeklyWageUSD: avgWage,
	}
}

func TestReconcileQCEWMatch(t *testing.T) {
	source := []QcewSourceRow{
		qcewSource(2022, "06075", "62", strp("120000"), strp("9000000000"), strp("1442")),
	}
	rdm := []QcewWarehouseRow{
		qcewFact(2022, "06075", "62", econ.Float(120000), econ.Float(9000000000), econ.Float(1442)),
	}

	rows := ReconcileQCEW(source, rdm, true)
	require.Len(t, rows, 1)

	row := rows[0]
	require.NotNil(t, row.PassEmp)
	assert.True(t, *row.PassEmp)
	require.NotNil(t, row.PassWages)
	assert.True(t, *row.PassWages)
	require.NotNil(t, row.PassAvgWeeklyWage)
	assert.True(t, *row.PassAvgWeeklyWage)
	require.NotNil(t, row.PassAll)
	assert.True(t, *row.PassAll)
	assert.Empty(t, row.Notes)
}

func TestReconcileQCEWWeeklyWageTolerance(t *testing.T) {
	tests := []struct {
		name      string
		rdmWage   float64
		tolerance bool
		wantPass  bool
	}{
		{name: "at boundary with tolerance", rdmWage: 1443.0, tolerance: true, wantPass: true},
		{name: "past boundary with tolerance", rdmWage: 1443.5, tolerance: true, wantPass: false},
		{name: "exact mode rejects small drift", rdmWage: 1442.5, tolerance: false, wantPass: false},
		{name: "exact mode accepts equality", rdmWage: 1442.0, tolerance: false, wantPass: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := []QcewSourceRow{
				qcewSource(2022, "06075", "62", strp("120000"), strp("9000000000"), strp("1442")),
			}
			rdm := []QcewWarehouseRow{
				qcewFact(2022, "06075", "62", econ.Float(120000), econ.Float(9000000000), econ.Float(tt.rdmWage)),
			}

			rows := ReconcileQCEW(source, rdm, tt.tolerance)
			require.Len(t, rows, 1)
			require.NotNil(t, rows[0].PassAvgWeeklyWage)
			assert.Equal(t, tt.wantPass, *rows[0].PassAvgWeeklyWage)

			// The weekly-wage verdict never feeds pass_all.
			require.NotNil(t, rows[0].PassAll)
			assert.True(t, *rows[0].PassAll)
		})
	}
}

func TestReconcileQCEWBackfillsWeeklyWage(t *testing.T) {
	source := []QcewSourceRow{
		qcewSource(2022, "06075", "62", strp("100"), strp("520000"), strp("100")),
	}
	rdm := []QcewWarehouseRow{
		qcewFact(2022, "06075", "62", econ.Float(100), econ.Float(520000), nil),
	}

	rows := ReconcileQCEW(source, rdm, true)
	require.Len(t, rows, 1)

	row := rows[0]
	require.NotNil(t, row.RdmAvgWeeklyWageUSD)
	assert.Equal(t, 100.0, *row.RdmAvgWeeklyWageUSD)
	require.NotNil(t, row.PassAvgWeeklyWage)
	assert.True(t, *row.PassAvgWeeklyWage)
}

func TestReconcileQCEWBackfillNeedsPositiveEmployment(t *testing.T) {
	source := []QcewSourceRow{
		qcewSource(2022, "06075", "62", strp("0"), strp("0"), strp("0")),
	}
	rdm := []QcewWarehouseRow{
		qcewFact(2022, "06075", "62", econ.Float(0), econ.Float(0), nil),
	}

	rows := ReconcileQCEW(source, rdm, true)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].RdmAvgWeeklyWageUSD)
	assert.Nil(t, rows[0].PassAvgWeeklyWage)
}

func TestReconcileQCEWPassAllPolicy(t *testing.T) {
	tests := []struct {
		name     string
		source   *QcewSourceRow
		rdm      *QcewWarehouseRow
		wantPass *bool
		wantNote string
	}{
		{
			name:     "suppressed source employment",
			source:   ptrQcewSource(qcewSource(2022, "06075", "62", strp("D"), strp("9000000000"), nil)),
			rdm:      ptrQcewFact(qcewFact(2022, "06075", "62", econ.Float(120000), econ.Float(9000000000), econ.Float(1442))),
			wantPass: nil,
			wantNote: "source_missing;source_suppressed;missing_from_source",
		},
		{
			name:     "missing warehouse row",
			source:   ptrQcewSource(qcewSource(2022, "06075", "62", strp("120000"), strp("9000000000"), strp("1442"))),
			rdm:      nil,
			wantPass: econ.Bool(false),
			wantNote: "missing_from_rdm",
		},
		{
			name:     "missing source row",
			source:   nil,
			rdm:      ptrQcewFact(qcewFact(2022, "06075", "62", econ.Float(120000), econ.Float(9000000000), econ.Float(1442))),
			wantPass: nil,
			wantNote: "missing_from_source",
		},
		{
			name:     "wages suppressed with matching employment",
			source:   ptrQcewSource(qcewSource(2022, "06075", "62", strp("120000"), strp("N"), nil)),
			rdm:      ptrQcewFact(qcewFact(2022, "06075", "62", econ.Float(120000), econ.Float(9000000000), econ.Float(1442))),
			wantPass: nil,
			wantNote: "source_missing;source_suppressed",
		},
		{
			name:     "wages mismatch",
			source:   ptrQcewSource(qcewSource(2022, "06075", "62", strp("120000"), strp("9000000000"), strp("1442"))),
			rdm:      ptrQcewFact(qcewFact(2022, "06075", "62", econ.Float(120000), econ.Float(9000000500), econ.Float(1442))),
			wantPass: econ.Bool(false),
			wantNote: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var source []QcewSourceRow
			if tt.source != nil {
				source = []QcewSourceRow{*tt.source}
			}
			var rdm []QcewWarehouseRow
			if tt.rdm != nil {
				rdm = []QcewWarehouseRow{*tt.rdm}
			}

			rows := ReconcileQCEW(source, rdm, true)
			require.Len(t, rows, 1)

			row := rows[0]
			if tt.wantPass == nil {
				assert.Nil(t, row.PassAll)
			} else {
				require.NotNil(t, row.PassAll)
				assert.Equal(t, *tt.wantPass, *row.PassAll)
			}
			assert.Equal(t, tt.wantNote, row.Notes)
		})
	}
}

func ptrQcewSource(r QcewSourceRow) *QcewSourceRow {
	return &r
}

func ptrQcewFact(r QcewWarehouseRow) *QcewWarehouseRow {
	return &r
}

func TestReconcileQCEWBothSidesEmpty(t *testing.T) {
	source := []QcewSourceRow{
		qcewSource(2022, "06075", "62", nil, nil, nil),
	}

	rows := ReconcileQCEW(source, nil, true)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].PassAll)
	assert.Equal(t, "source_missing;missing_from_both", rows[0].Notes)
}

func TestQcewRecordsTriStateCells(t *testing.T) {
	source := []QcewSourceRow{
		qcewSource(2022, "06075", "62", strp("(D)"), strp("9000000000"), strp("1442")),
	}
	rdm := []QcewWarehouseRow{
		qcewFact(2022, "06075", "62", econ.Float(120000), econ.Float(9000000000), econ.Float(1442)),
	}

	rows := ReconcileQCEW(source, rdm, true)
	records := QcewRecords(rows)
	require.Len(t, records, 1)
	require.Len(t, records[0], len(QcewColumns))

	byCol := make(map[string]string, len(QcewColumns))
	for i, col := range QcewColumns {
		byCol[col] = records[0][i]
	}
	assert.Equal(t, "", byCol["source_qcew_annual_avg_emplvl"])
	assert.Equal(t, "", byCol["pass_emp"])
	assert.Equal(t, "true", byCol["pass_wages"])
	assert.Equal(t, "", byCol["pass_all"])
	assert.Equal(t, "source_suppressed;missing_from_source", byCol["notes"])
}

func TestQcewPassCountSkipsNilVerdicts(t *testing.T) {
	source := []QcewSourceRow{
		qcewSource(2022, "06075", "62", strp("100"), strp("5200"), strp("1")),
		qcewSource(2022, "06085", "42", strp("D"), strp("5200"), strp("1")),
		qcewSource(2022, "06085", "62", strp("100"), strp("5200"), strp("1")),
	}
	rdm := []QcewWarehouseRow{
		qcewFact(2022, "06075", "62", econ.Float(100), econ.Float(5200), econ.Float(1)),
		qcewFact(2022, "06085", "42", econ.Float(100), econ.Float(5200), econ.Float(1)),
		qcewFact(2022, "06085", "62", econ.Float(999), econ.Float(5200), econ.Float(1)),
	}

	rows := ReconcileQCEW(source, rdm, true)
	require.Len(t, rows, 3)

	passed, total := QcewPassCount(rows)
	assert.Equal(t, 1, passed)
	assert.Equal(t, 3, total)

	failures := QcewFailures(rows)
	require.Len(t, failures, 1)
	assert.Equal(t, "2022 06085 62: emp=false wages=true avg_weekly_wage=true", failures[0].FailureLine())
}

func TestQcewFailureLineRendersNilAsNA(t *testing.T) {
	source := []QcewSourceRow{
		qcewSource(2022, "06075", "62", strp("120000"), strp("9000000000"), strp("1442")),
	}

	rows := ReconcileQCEW(source, nil, true)
	require.Len(t, rows, 1)
	assert.Equal(t, "2022 06075 62: emp=NA wages=NA avg_weekly_wage=NA", rows[0].FailureLine())
}
