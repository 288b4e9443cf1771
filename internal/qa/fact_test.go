package qa

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdmdatalab/econbench/internal/artifacts"
)

const factHeader = "year_num,state_cnty_fips_cd,naics2_sector_cd," +
	"abs_firm_num,abs_emp_num,abs_payroll_usd_amt,abs_rcpt_usd_amt," +
	"qcew_ann_avg_emp_lvl_num,qcew_ttl_ann_wage_usd_amt,qcew_avg_wkly_wage_usd_amt," +
	"abs_wage_per_emp_usd_amt,qcew_wage_per_emp_usd_amt,abs_rcpt_per_firm_usd_amt\n"

const cleanFactCSV = factHeader +
	"2022,06075,42,100,2000,90000000,500000000,1900,95000000,961.538461538,45000,50000,5000000\n" +
	"2023,06085,62,50,1000,45000000,200000000,950,47500000,961.538461538,45000,50000,4000000\n"

const simplemapsCSV = "county_fips,county,state_id\n06075,San Francisco,CA\n06085,Santa Clara,CA\n"

func writeFactInputs(t *testing.T, factCSV string) FactConfig {
	t.Helper()
	dir := t.TempDir()
	fact := filepath.Join(dir, "fact.csv")
	ref := filepath.Join(dir, "uscounties.csv")
	require.NoError(t, os.WriteFile(fact, []byte(factCSV), 0o644))
	require.NoError(t, os.WriteFile(ref, []byte(simplemapsCSV), 0o644))
	return FactConfig{
		FactCSV:       fact,
		SimplemapsCSV: ref,
		OutDir:        filepath.Join(dir, "qa"),
		ExpectedYears: []int{2022, 2023},
	}
}

func TestFactSuiteCleanInputPasses(t *testing.T) {
	cfg := writeFactInputs(t, cleanFactCSV)

	report, err := NewFactSuite().Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, report.Passed, "issues: %+v", report.Issues)
	assert.Equal(t, 2, report.Rows)

	data, err := os.ReadFile(report.LogPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[QA SUMMARY] Overall: PASS (issues found: 0)")
}

func TestFactSuiteInvalidFIPSExported(t *testing.T) {
	bad := cleanFactCSV +
		"2022,99999,42,10,100,4500000,20000000,,,,45000,,2000000\n"
	cfg := writeFactInputs(t, bad)

	report, err := NewFactSuite().Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.False(t, report.Passed)

	_, rows, err := artifacts.ReadCSV(filepath.Join(cfg.OutDir, "econ_bnchmrk_abs_qcew_invalid_fips.csv"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "99999", rows[0]["state_cnty_fips_cd"])
}

func TestFactSuiteDuplicateKeys(t *testing.T) {
	dup := cleanFactCSV +
		"2022,06075,42,100,2000,90000000,500000000,1900,95000000,961.538461538,45000,50000,5000000\n"
	cfg := writeFactInputs(t, dup)

	report, err := NewFactSuite().Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.False(t, report.Passed)
	assert.True(t, hasIssue(report, "duplicate_keys"))
}

func TestFactSuiteRangeAndCrossSourceIssues(t *testing.T) {
	bad := factHeader +
		// Wage/emp below floor, receipts/firm above cap, cross ratio out of
		// band, and a weekly wage far from wages over 52 weeks.
		"2022,06075,42,2,2000,10000000,500000000,1900,95000000,2500,5000,50000,60000000\n" +
		"2023,06085,62,50,1000,45000000,200000000,950,47500000,961.538461538,45000,50000,4000000\n"
	cfg := writeFactInputs(t, bad)

	report, err := NewFactSuite().Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.False(t, report.Passed)
	assert.True(t, hasIssue(report, "range_abs_wage_per_emp"))
	assert.True(t, hasIssue(report, "range_receipts_per_firm"))
	assert.True(t, hasIssue(report, "cross_wage_ratio"))
	assert.True(t, hasIssue(report, "weekly_wage_consistency"))
}

func TestFactSuiteMissingExpectedYear(t *testing.T) {
	cfg := writeFactInputs(t, cleanFactCSV)
	cfg.ExpectedYears = []int{2022, 2023, 2024}

	report, err := NewFactSuite().Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, hasIssue(report, "year_coverage"))
}

func TestFactSuiteMissingInputIsError(t *testing.T) {
	cfg := writeFactInputs(t, cleanFactCSV)
	cfg.FactCSV = filepath.Join(t.TempDir(), "missing.csv")
	_, err := NewFactSuite().Run(context.Background(), cfg)
	require.Error(t, err)
}

func hasIssue(report *FactReport, check string) bool {
	for _, issue := range report.Issues {
		if issue.Check == check {
			return true
		}
	}
	return false
}
