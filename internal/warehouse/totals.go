package warehouse

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/rdmdatalab/econbench/pkg/constants"
	"github.com/rdmdatalab/econbench/pkg/errors"
)

// YearTotals is one year's national rollup of the fact table.
type YearTotals struct {
	Year           int
	Rows           int64
	Counties       int64
	Sectors        int64
	AbsFirms       *float64
	AbsEmp         *float64
	AbsPayrollUSD  *float64
	AbsReceiptsUSD *float64
	QcewEmp        *float64
	QcewWagesUSD   *float64
}

type yearTotalsRow struct {
	Year     int64                `bigquery:"year_num"`
	Rows     int64                `bigquery:"row_count"`
	Counties int64                `bigquery:"county_count"`
	Sectors  int64                `bigquery:"sector_count"`
	Firms    bigquery.NullFloat64 `bigquery:"abs_firms"`
	Emp      bigquery.NullFloat64 `bigquery:"abs_emp"`
	Payroll  bigquery.NullFloat64 `bigquery:"abs_payroll_usd"`
	Receipts bigquery.NullFloat64 `bigquery:"abs_receipts_usd"`
	QcewEmp  bigquery.NullFloat64 `bigquery:"qcew_emp"`
	Wages    bigquery.NullFloat64 `bigquery:"qcew_wages_usd"`
}

// SnapshotTotals rolls the fact table up to national totals per year.
func (c *Client) SnapshotTotals(ctx context.Context, table string) ([]YearTotals, error) {
	if err := checkIdent(table); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, constants.WarehouseQueryTimeout)
	defer cancel()

	q := c.bq.Query(fmt.Sprintf(`SELECT
  CAST(year_num AS INT64) AS year_num,
  COUNT(*) AS row_count,
  COUNT(DISTINCT state_cnty_fips_cd) AS county_count,
  COUNT(DISTINCT naics2_sector_cd) AS sector_count,
  SUM(CAST(abs_firm_num AS FLOAT64)) AS abs_firms,
  SUM(CAST(abs_emp_num AS FLOAT64)) AS abs_emp,
  SUM(CAST(abs_payroll_usd_amt AS FLOAT64)) AS abs_payroll_usd,
  SUM(CAST(abs_rcpt_usd_amt AS FLOAT64)) AS abs_receipts_usd,
  SUM(CAST(qcew_ann_avg_emp_lvl_num AS FLOAT64)) AS qcew_emp,
  SUM(CAST(qcew_ttl_ann_wage_usd_amt AS FLOAT64)) AS qcew_wages_usd
FROM %s
GROUP BY year_num
ORDER BY year_num`, c.tableRef(table)))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, errors.WrapQuery("query", table, err)
	}

	var totals []YearTotals
	for {
		var r yearTotalsRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.WrapQuery("query", table, err)
		}
		totals = append(totals, YearTotals{
			Year:           int(r.Year),
			Rows:           r.Rows,
			Counties:       r.Counties,
			Sectors:        r.Sectors,
			AbsFirms:       nullFloat(r.Firms),
			AbsEmp:         nullFloat(r.Emp),
			AbsPayrollUSD:  nullFloat(r.Payroll),
			AbsReceiptsUSD: nullFloat(r.Receipts),
			QcewEmp:        nullFloat(r.QcewEmp),
			QcewWagesUSD:   nullFloat(r.Wages),
		})
	}
	return totals, nil
}

// YoyColumns names the fact-table columns the year-over-year rollups read.
// The names come from INFORMATION_SCHEMA discovery against synonym
// preference lists, so older export schemas still roll up.
type YoyColumns struct {
	Firms       string
	Emp         string
	PayrollUSD  string
	ReceiptsUSD string
	QcewEmp     string
	QcewWages   string
	WeeklyWage  string
}

func (y YoyColumns) check() error {
	for _, name := range []string{y.Firms, y.Emp, y.PayrollUSD, y.ReceiptsUSD, y.QcewEmp, y.QcewWages, y.WeeklyWage} {
		if err := checkIdent(name); err != nil {
			return err
		}
	}
	return nil
}

// RollupRow is one (year, sector) or national aggregate for the YoY
// summary. Sector is empty on national rows. The weekly wage is the
// employment-weighted average, with wages/(emp*52) as the fallback when
// the stored column is entirely null.
type RollupRow struct {
	Year          int
	Sector        string
	Firms         *float64
	Emp           *float64
	PayrollUSD    *float64
	ReceiptsUSD   *float64
	QcewEmp       *float64
	QcewWagesUSD  *float64
	WeeklyWageUSD *float64
}

type rollupRow struct {
	Year       int64                `bigquery:"year_num"`
	Sector     bigquery.NullString  `bigquery:"naics2_sector_cd"`
	Firms      bigquery.NullFloat64 `bigquery:"firms"`
	Emp        bigquery.NullFloat64 `bigquery:"emp"`
	Payroll    bigquery.NullFloat64 `bigquery:"payroll_usd"`
	Receipts   bigquery.NullFloat64 `bigquery:"receipts_usd"`
	QcewEmp    bigquery.NullFloat64 `bigquery:"qcew_emp"`
	Wages      bigquery.NullFloat64 `bigquery:"qcew_wages_usd"`
	WeeklyWage bigquery.NullFloat64 `bigquery:"weekly_wage_usd"`
}

const rollupSelect = `SELECT
  CAST(year_num AS INT64) AS year_num,%s
  SUM(CAST(%s AS FLOAT64)) AS firms,
  SUM(CAST(%s AS FLOAT64)) AS emp,
  SUM(CAST(%s AS FLOAT64)) AS payroll_usd,
  SUM(CAST(%s AS FLOAT64)) AS receipts_usd,
  SUM(CAST(%s AS FLOAT64)) AS qcew_emp,
  SUM(CAST(%s AS FLOAT64)) AS qcew_wages_usd,
  COALESCE(
    SAFE_DIVIDE(SUM(CAST(%s AS FLOAT64) * CAST(%s AS FLOAT64)), SUM(CAST(%s AS FLOAT64))),
    SAFE_DIVIDE(SUM(CAST(%s AS FLOAT64)), SUM(CAST(%s AS FLOAT64)) * 52)
  ) AS weekly_wage_usd
FROM %s
WHERE year_num IN UNNEST(@years)
GROUP BY %s
ORDER BY %s`

// SectorRollups aggregates the fact table by (year, sector).
func (c *Client) SectorRollups(ctx context.Context, table string, cols YoyColumns, years []int) ([]RollupRow, error) {
	return c.rollups(ctx, table, cols, years, true)
}

// NationalTotals aggregates the fact table by year alone.
func (c *Client) NationalTotals(ctx context.Context, table string, cols YoyColumns, years []int) ([]RollupRow, error) {
	return c.rollups(ctx, table, cols, years, false)
}

func (c *Client) rollups(ctx context.Context, table string, cols YoyColumns, years []int, bySector bool) ([]RollupRow, error) {
	if err := checkIdent(table); err != nil {
		return nil, err
	}
	if err := cols.check(); err != nil {
		return nil, err
	}

	sectorSelect := ""
	groupBy := "year_num"
	orderBy := "year_num"
	if bySector {
		sectorSelect = "\n  naics2_sector_cd,"
		groupBy = "year_num, naics2_sector_cd"
		orderBy = "naics2_sector_cd, year_num"
	}
	sql := fmt.Sprintf(rollupSelect,
		sectorSelect,
		cols.Firms, cols.Emp, cols.PayrollUSD, cols.ReceiptsUSD,
		cols.QcewEmp, cols.QcewWages,
		cols.WeeklyWage, cols.QcewEmp, cols.QcewEmp,
		cols.QcewWages, cols.QcewEmp,
		c.tableRef(table), groupBy, orderBy)

	ctx, cancel := context.WithTimeout(ctx, constants.WarehouseQueryTimeout)
	defer cancel()

	q := c.bq.Query(sql)
	q.Parameters = []bigquery.QueryParameter{{Name: "years", Value: toInt64s(years)}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, errors.WrapQuery("query", table, err)
	}

	var rows []RollupRow
	for {
		var r rollupRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.WrapQuery("query", table, err)
		}
		rows = append(rows, RollupRow{
			Year:          int(r.Year),
			Sector:        strings.TrimSpace(r.Sector.StringVal),
			Firms:         nullFloat(r.Firms),
			Emp:           nullFloat(r.Emp),
			PayrollUSD:    nullFloat(r.Payroll),
			ReceiptsUSD:   nullFloat(r.Receipts),
			QcewEmp:       nullFloat(r.QcewEmp),
			QcewWagesUSD:  nullFloat(r.Wages),
			WeeklyWageUSD: nullFloat(r.WeeklyWage),
		})
	}
	return rows, nil
}
