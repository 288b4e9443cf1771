package warehouse

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/rdmdatalab/econbench/pkg/constants"
	"github.com/rdmdatalab/econbench/pkg/econ"
	"github.com/rdmdatalab/econbench/pkg/errors"
	"github.com/rdmdatalab/econbench/pkg/reconcile"
)

// absFactRow mirrors the ABS metric columns of the fact table.
type absFactRow struct {
	Year     int64                `bigquery:"year_num"`
	FIPS     string               `bigquery:"state_cnty_fips_cd"`
	Sector   string               `bigquery:"naics2_sector_cd"`
	Firms    bigquery.NullFloat64 `bigquery:"abs_firm_num"`
	Emp      bigquery.NullFloat64 `bigquery:"abs_emp_num"`
	Payroll  bigquery.NullFloat64 `bigquery:"abs_payroll_usd_amt"`
	Receipts bigquery.NullFloat64 `bigquery:"abs_rcpt_usd_amt"`
}

// qcewFactRow mirrors the QCEW metric columns of the fact table.
type qcewFactRow struct {
	Year    int64                `bigquery:"year_num"`
	FIPS    string               `bigquery:"state_cnty_fips_cd"`
	Sector  string               `bigquery:"naics2_sector_cd"`
	Emp     bigquery.NullFloat64 `bigquery:"qcew_ann_avg_emp_lvl_num"`
	Wages   bigquery.NullFloat64 `bigquery:"qcew_ttl_ann_wage_usd_amt"`
	AvgWage bigquery.NullFloat64 `bigquery:"qcew_avg_wkly_wage_usd_amt"`
}

const absFactSelect = `SELECT
  CAST(year_num AS INT64) AS year_num,
  state_cnty_fips_cd,
  naics2_sector_cd,
  CAST(abs_firm_num AS FLOAT64) AS abs_firm_num,
  CAST(abs_emp_num AS FLOAT64) AS abs_emp_num,
  CAST(abs_payroll_usd_amt AS FLOAT64) AS abs_payroll_usd_amt,
  CAST(abs_rcpt_usd_amt AS FLOAT64) AS abs_rcpt_usd_amt
FROM %s`

const qcewFactSelect = `SELECT
  CAST(year_num AS INT64) AS year_num,
  state_cnty_fips_cd,
  naics2_sector_cd,
  CAST(qcew_ann_avg_emp_lvl_num AS FLOAT64) AS qcew_ann_avg_emp_lvl_num,
  CAST(qcew_ttl_ann_wage_usd_amt AS FLOAT64) AS qcew_ttl_ann_wage_usd_amt,
  CAST(qcew_avg_wkly_wage_usd_amt AS FLOAT64) AS qcew_avg_wkly_wage_usd_amt
FROM %s`

const sliceFilter = ` WHERE year_num IN UNNEST(@years)
  AND state_cnty_fips_cd IN UNNEST(@counties)
  AND naics2_sector_cd IN UNNEST(@naics)`

const yearsFilter = ` WHERE year_num IN UNNEST(@years)`

// AbsFacts returns the warehouse's ABS metrics for the requested slice.
func (c *Client) AbsFacts(ctx context.Context, years []int, counties, naics []string) ([]reconcile.AbsWarehouseRow, error) {
	sql := fmt.Sprintf(absFactSelect, c.tableRef(FactTable)) + sliceFilter
	params := []bigquery.QueryParameter{
		{Name: "years", Value: toInt64s(years)},
		{Name: "counties", Value: counties},
		{Name: "naics", Value: naics},
	}
	return c.absQuery(ctx, sql, params)
}

// AbsFactsAll returns the warehouse's ABS metrics for whole years, the
// full-surface comparison set.
func (c *Client) AbsFactsAll(ctx context.Context, years []int) ([]reconcile.AbsWarehouseRow, error) {
	sql := fmt.Sprintf(absFactSelect, c.tableRef(FactTable)) + yearsFilter
	params := []bigquery.QueryParameter{{Name: "years", Value: toInt64s(years)}}
	return c.absQuery(ctx, sql, params)
}

// QcewFacts returns the warehouse's QCEW metrics for the requested slice.
func (c *Client) QcewFacts(ctx context.Context, years []int, counties, naics []string) ([]reconcile.QcewWarehouseRow, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.WarehouseQueryTimeout)
	defer cancel()

	q := c.bq.Query(fmt.Sprintf(qcewFactSelect, c.tableRef(FactTable)) + sliceFilter)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "years", Value: toInt64s(years)},
		{Name: "counties", Value: counties},
		{Name: "naics", Value: naics},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, errors.WrapQuery("query", FactTable, err)
	}

	var rows []reconcile.QcewWarehouseRow
	for {
		var r qcewFactRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.WrapQuery("query", FactTable, err)
		}
		rows = append(rows, reconcile.QcewWarehouseRow{
			Year:             int(r.Year),
			FIPS:             econ.PadFIPS(r.FIPS),
			Sector:           r.Sector,
			Emp:              nullFloat(r.Emp),
			WagesUSD:         nullFloat(r.Wages),
			AvgWeeklyWageUSD: nullFloat(r.AvgWage),
		})
	}
	c.log.Debug().Int("rows", len(rows)).Msg("Fetched QCEW warehouse slice")
	return rows, nil
}

func (c *Client) absQuery(ctx context.Context, sql string, params []bigquery.QueryParameter) ([]reconcile.AbsWarehouseRow, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.WarehouseQueryTimeout)
	defer cancel()

	q := c.bq.Query(sql)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, errors.WrapQuery("query", FactTable, err)
	}

	var rows []reconcile.AbsWarehouseRow
	for {
		var r absFactRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.WrapQuery("query", FactTable, err)
		}
		rows = append(rows, reconcile.AbsWarehouseRow{
			Year:        int(r.Year),
			FIPS:        econ.PadFIPS(r.FIPS),
			Sector:      r.Sector,
			Firms:       nullFloat(r.Firms),
			Emp:         nullFloat(r.Emp),
			PayrollUSD:  nullFloat(r.Payroll),
			ReceiptsUSD: nullFloat(r.Receipts),
		})
	}
	c.log.Debug().Int("rows", len(rows)).Msg("Fetched ABS warehouse slice")
	return rows, nil
}
