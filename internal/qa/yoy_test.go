package qa

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdmdatalab/econbench/internal/artifacts"
	"github.com/rdmdatalab/econbench/internal/warehouse"
	"github.com/rdmdatalab/econbench/pkg/econ"
)

type fakeRollups struct {
	columns  []warehouse.Column
	national []warehouse.RollupRow
	sectors  []warehouse.RollupRow
	cols     warehouse.YoyColumns
}

func (f *fakeRollups) DiscoverColumns(_ context.Context, _ string) ([]warehouse.Column, error) {
	return f.columns, nil
}

func (f *fakeRollups) SectorRollups(_ context.Context, _ string, cols warehouse.YoyColumns, _ []int) ([]warehouse.RollupRow, error) {
	f.cols = cols
	return f.sectors, nil
}

func (f *fakeRollups) NationalTotals(_ context.Context, _ string, cols warehouse.YoyColumns, _ []int) ([]warehouse.RollupRow, error) {
	f.cols = cols
	return f.national, nil
}

func factColumns(names ...string) []warehouse.Column {
	columns := make([]warehouse.Column, 0, len(names))
	for _, name := range names {
		columns = append(columns, warehouse.Column{Name: name, Type: "FLOAT64", Nullable: true})
	}
	return columns
}

func canonicalColumns() []warehouse.Column {
	return factColumns(
		"year_num", "state_cnty_fips_cd", "naics2_sector_cd",
		"abs_firm_num", "abs_emp_num", "abs_payroll_usd_amt", "abs_rcpt_usd_amt",
		"qcew_ann_avg_emp_lvl_num", "qcew_ttl_ann_wage_usd_amt", "qcew_avg_wkly_wage_usd_amt",
	)
}

func rollup(year int, sector string, firms, emp float64) warehouse.RollupRow {
	return warehouse.RollupRow{
		Year: year, Sector: sector,
		Firms: econ.Float(firms), Emp: econ.Float(emp),
		PayrollUSD: econ.Float(emp * 50000), ReceiptsUSD: econ.Float(emp * 250000),
		QcewEmp: econ.Float(emp * 0.95), QcewWagesUSD: econ.Float(emp * 0.95 * 52000),
		WeeklyWageUSD: econ.Float(1000),
	}
}

func TestYoyWritesAllArtifacts(t *testing.T) {
	source := &fakeRollups{
		columns: canonicalColumns(),
		national: []warehouse.RollupRow{
			rollup(2022, "", 1000, 20000),
			rollup(2023, "", 1100, 22000),
		},
		sectors: []warehouse.RollupRow{
			rollup(2022, "42", 600, 12000),
			rollup(2023, "42", 660, 13200),
			rollup(2022, "62", 400, 8000),
			rollup(2023, "62", 440, 8800),
		},
	}

	outDir := t.TempDir()
	cfg := YoyConfig{Years: []int{2022, 2023}, OutDir: outDir}
	require.NoError(t, NewYoySummary(source).Run(context.Background(), cfg))

	assert.Equal(t, "abs_firm_num", source.cols.Firms, "canonical column preferred")

	_, totals, err := artifacts.ReadCSV(filepath.Join(outDir, "qa_rollup_totals_2022_2023.csv"))
	require.NoError(t, err)
	require.Len(t, totals, len(yoyMetrics))
	for _, row := range totals {
		if row["metric"] == "abs_firms" {
			assert.Equal(t, "100", row["delta"])
			assert.Equal(t, "0.1", row["pct_chg"])
		}
	}

	_, deltas, err := artifacts.ReadCSV(filepath.Join(outDir, "qa_naics2_deltas_2022_2023.csv"))
	require.NoError(t, err)
	assert.Len(t, deltas, 2*len(yoyMetrics), "two sectors, all metrics")

	_, ratios, err := artifacts.ReadCSV(filepath.Join(outDir, "qa_ratio_deltas_2022_2023.csv"))
	require.NoError(t, err)
	assert.Len(t, ratios, 3*len(yoyRatios), "national plus two sectors")
	assert.Equal(t, "ALL", ratios[0]["naics2_sector_cd"])

	for _, name := range []string{
		"qa_rollup_totals_2022_2023.md",
		"qa_naics2_deltas_2022_2023.md",
		"qa_ratio_deltas_2022_2023.md",
	} {
		_, err := os.Stat(filepath.Join(outDir, name))
		assert.NoError(t, err, name)
	}
}

func TestYoyLegacyColumnNamesResolve(t *testing.T) {
	source := &fakeRollups{
		columns: factColumns(
			"year_num", "state_cnty_fips_cd", "naics2_sector_cd",
			"firm_num", "emp_num", "payroll_usd_amt", "rcpt_usd_amt",
			"ann_avg_emp_lvl_num", "ttl_ann_wage_usd_amt", "avg_wkly_wage_usd_amt",
		),
		national: []warehouse.RollupRow{
			rollup(2022, "", 1000, 20000),
			rollup(2023, "", 1100, 22000),
		},
	}

	cfg := YoyConfig{Years: []int{2022, 2023}, OutDir: t.TempDir()}
	require.NoError(t, NewYoySummary(source).Run(context.Background(), cfg))
	assert.Equal(t, "firm_num", source.cols.Firms)
	assert.Equal(t, "ttl_ann_wage_usd_amt", source.cols.QcewWages)
}

func TestYoyUnresolvableColumnIsError(t *testing.T) {
	source := &fakeRollups{
		columns: factColumns("year_num", "abs_firm_num", "abs_emp_num"),
	}
	cfg := YoyConfig{Years: []int{2022, 2023}, OutDir: t.TempDir()}
	err := NewYoySummary(source).Run(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payroll")
}

func TestYoyRequiresExactlyTwoYears(t *testing.T) {
	source := &fakeRollups{columns: canonicalColumns()}
	err := NewYoySummary(source).Run(context.Background(), YoyConfig{Years: []int{2022}, OutDir: t.TempDir()})
	require.Error(t, err)

	err = NewYoySummary(source).Run(context.Background(), YoyConfig{Years: []int{2021, 2022, 2023}, OutDir: t.TempDir()})
	require.Error(t, err)
}

func TestYoyMissingYearIsError(t *testing.T) {
	source := &fakeRollups{
		columns:  canonicalColumns(),
		national: []warehouse.RollupRow{rollup(2022, "", 1000, 20000)},
	}
	cfg := YoyConfig{Years: []int{2022, 2023}, OutDir: t.TempDir()}
	err := NewYoySummary(source).Run(context.Background(), cfg)
	require.Error(t, err)
}
