package warehouse

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rdmdatalab/econbench/internal/artifacts"
	"github.com/rdmdatalab/econbench/pkg/econ"
	"github.com/rdmdatalab/econbench/pkg/errors"
	"github.com/rdmdatalab/econbench/pkg/logging"
	"github.com/rdmdatalab/econbench/pkg/reconcile"
)

// Override serves warehouse rows from a local fact-table export instead of
// BigQuery. The same CSV backs both systems; each loader validates the
// columns its system needs and ignores the rest, so a full export and a
// single-system extract both work.
type Override struct {
	Path string
	log  zerolog.Logger
}

// NewOverride wraps a warehouse CSV export path.
func NewOverride(path string) *Override {
	return &Override{
		Path: path,
		log:  logging.With().Str("component", "warehouse").Logger(),
	}
}

// absOverrideColumns must all be present in an ABS override CSV.
var absOverrideColumns = []string{
	"year_num",
	"state_cnty_fips_cd",
	"naics2_sector_cd",
	"abs_firm_num",
	"abs_emp_num",
	"abs_payroll_usd_amt",
	"abs_rcpt_usd_amt",
}

// qcewOverrideColumns must all be present in a QCEW override CSV. The
// weekly wage column is optional; reconciliation backfills it from wages.
var qcewOverrideColumns = []string{
	"year_num",
	"state_cnty_fips_cd",
	"naics2_sector_cd",
	"qcew_ann_avg_emp_lvl_num",
	"qcew_ttl_ann_wage_usd_amt",
}

const qcewOverrideWageColumn = "qcew_avg_wkly_wage_usd_amt"

// AbsFacts loads the ABS side of the override, filtered to the slice.
func (o *Override) AbsFacts(_ context.Context, years []int, counties, naics []string) ([]reconcile.AbsWarehouseRow, error) {
	rows, err := o.load(absOverrideColumns, years, counties, naics)
	if err != nil {
		return nil, err
	}
	out := make([]reconcile.AbsWarehouseRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, reconcile.AbsWarehouseRow{
			Year:        row.year,
			FIPS:        row.fips,
			Sector:      row.sector,
			Firms:       numericCell(row.record, "abs_firm_num"),
			Emp:         numericCell(row.record, "abs_emp_num"),
			PayrollUSD:  numericCell(row.record, "abs_payroll_usd_amt"),
			ReceiptsUSD: numericCell(row.record, "abs_rcpt_usd_amt"),
		})
	}
	o.log.Info().Str("path", o.Path).Int("rows", len(out)).Msg("Loaded ABS warehouse override")
	return out, nil
}

// AbsFactsAll loads the ABS side of the override filtered by years only,
// the full-surface comparison set.
func (o *Override) AbsFactsAll(ctx context.Context, years []int) ([]reconcile.AbsWarehouseRow, error) {
	return o.AbsFacts(ctx, years, nil, nil)
}

// QcewFacts loads the QCEW side of the override, filtered to the slice.
func (o *Override) QcewFacts(_ context.Context, years []int, counties, naics []string) ([]reconcile.QcewWarehouseRow, error) {
	rows, err := o.load(qcewOverrideColumns, years, counties, naics)
	if err != nil {
		return nil, err
	}
	out := make([]reconcile.QcewWarehouseRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, reconcile.QcewWarehouseRow{
			Year:             row.year,
			FIPS:             row.fips,
			Sector:           row.sector,
			Emp:              numericCell(row.record, "qcew_ann_avg_emp_lvl_num"),
			WagesUSD:         numericCell(row.record, "qcew_ttl_ann_wage_usd_amt"),
			AvgWeeklyWageUSD: numericCell(row.record, qcewOverrideWageColumn),
		})
	}
	o.log.Info().Str("path", o.Path).Int("rows", len(out)).Msg("Loaded QCEW warehouse override")
	return out, nil
}

type overrideRow struct {
	year   int
	fips   string
	sector string
	record map[string]string
}

func (o *Override) load(required []string, years []int, counties, naics []string) ([]overrideRow, error) {
	header, records, err := artifacts.ReadCSV(o.Path)
	if err != nil {
		return nil, err
	}

	present := make(map[string]bool, len(header))
	for _, col := range header {
		present[col] = true
	}
	var missing []string
	for _, col := range required {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, errors.NewValidationError("columns", missing,
			fmt.Sprintf("warehouse override CSV missing required columns: %s", strings.Join(missing, ", ")))
	}

	wantYear := make(map[int]bool, len(years))
	for _, y := range years {
		wantYear[y] = true
	}
	wantCounty := make(map[string]bool, len(counties))
	for _, c := range counties {
		wantCounty[econ.PadFIPS(c)] = true
	}
	wantSector := make(map[string]bool, len(naics))
	for _, n := range naics {
		wantSector[econ.PadSector(n)] = true
	}

	var rows []overrideRow
	for _, record := range records {
		year, err := parseYear(record["year_num"])
		if err != nil {
			continue
		}
		if len(wantYear) > 0 && !wantYear[year] {
			continue
		}
		fips := econ.PadFIPS(strings.TrimSpace(record["state_cnty_fips_cd"]))
		if len(wantCounty) > 0 && !wantCounty[fips] {
			continue
		}
		sector := econ.PadSector(strings.TrimSpace(record["naics2_sector_cd"]))
		if len(wantSector) > 0 && !wantSector[sector] {
			continue
		}
		rows = append(rows, overrideRow{year: year, fips: fips, sector: sector, record: record})
	}
	return rows, nil
}

// numericCell parses an override cell, treating suppression tokens and
// junk as nil. Override notes are not tracked: the warehouse side of a
// reconciliation carries no note channel.
func numericCell(record map[string]string, col string) *float64 {
	raw, ok := record[col]
	if !ok {
		return nil
	}
	v, _ := econ.ParseNumeric(raw)
	return v
}

func parseYear(raw string) (int, error) {
	v, note := econ.ParseNumeric(raw)
	if v == nil {
		return 0, errors.NewParseError("csv", "", "unparseable year: "+note, nil)
	}
	return int(*v), nil
}
