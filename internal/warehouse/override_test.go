package warehouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdmdatalab/econbench/internal/testhelper"
	"github.com/rdmdatalab/econbench/pkg/errors"
)

const absOverrideCSV = `year_num,state_cnty_fips_cd,naics2_sector_cd,abs_firm_num,abs_emp_num,abs_payroll_usd_amt,abs_rcpt_usd_amt,extra
2022,6075,42,100,2000,90000000,500000000,x
2022,06085,62,50,1000,45000000,(D),x
2023,06075,42,110,2100,95000000,510000000,x
2022,06001,42,10,100,1000000,2000000,x
`

func TestOverrideAbsFacts(t *testing.T) {
	path := testhelper.WriteTempCSV(t, "override.csv", absOverrideCSV)
	o := NewOverride(path)

	rows, err := o.AbsFacts(context.Background(), []int{2022}, []string{"06075", "06085"}, []string{"42", "62"})
	require.NoError(t, err)
	require.Len(t, rows, 2, "2023 and unrequested counties filtered out")

	first := rows[0]
	assert.Equal(t, 2022, first.Year)
	assert.Equal(t, "06075", first.FIPS, "short FIPS zero-padded")
	assert.Equal(t, "42", first.Sector)
	require.NotNil(t, first.Firms)
	assert.Equal(t, 100.0, *first.Firms)

	second := rows[1]
	assert.Nil(t, second.ReceiptsUSD, "suppressed cell loads as nil")
}

func TestOverrideAbsFactsAllKeepsEveryCounty(t *testing.T) {
	path := testhelper.WriteTempCSV(t, "override.csv", absOverrideCSV)
	o := NewOverride(path)

	rows, err := o.AbsFactsAll(context.Background(), []int{2022})
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestOverrideMissingColumns(t *testing.T) {
	path := testhelper.WriteTempCSV(t, "override.csv", "year_num,state_cnty_fips_cd\n2022,06075\n")
	o := NewOverride(path)

	_, err := o.AbsFacts(context.Background(), []int{2022}, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
	assert.Contains(t, err.Error(), "naics2_sector_cd")
}

func TestOverrideQcewFacts(t *testing.T) {
	csv := `year_num,state_cnty_fips_cd,naics2_sector_cd,qcew_ann_avg_emp_lvl_num,qcew_ttl_ann_wage_usd_amt
2022,06075,42,1500,120000000
`
	path := testhelper.WriteTempCSV(t, "override.csv", csv)
	o := NewOverride(path)

	rows, err := o.QcewFacts(context.Background(), []int{2022}, []string{"06075"}, []string{"42"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].AvgWeeklyWageUSD, "absent optional column loads as nil")
	require.NotNil(t, rows[0].WagesUSD)
	assert.Equal(t, 120000000.0, *rows[0].WagesUSD)
}
