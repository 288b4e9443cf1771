package reconcile

import (
	"fmt"
	"sort"

	"github.com/rdmdatalab/econbench/internal/artifacts"
	"github.com/rdmdatalab/econbench/pkg/econ"
)

// AbsConfig drives one ABS reconciliation run.
type AbsConfig struct {
	Years    []int
	Counties []string
	Naics    []string
	OutDir   string
	Publish  bool
	Table    string
	RdmCSV   string
}

// AbsSourceRow is one Census-side observation, already parsed and scaled
// to USD. Notes carries the joined parse and payload notes for the row.
type AbsSourceRow struct {
	Year        int
	FIPS        string
	StateFIPS   string
	CountyFIPS  string
	Sector      string
	Firms       *float64
	Emp         *float64
	PayrollUSD  *float64
	ReceiptsUSD *float64
	Notes       string
}

// AbsWarehouseRow is the warehouse's version of the same metrics.
type AbsWarehouseRow struct {
	Year        int
	FIPS        string
	Sector      string
	Firms       *float64
	Emp         *float64
	PayrollUSD  *float64
	ReceiptsUSD *float64
}

// AbsRow is one reconciled ABS key.
type AbsRow struct {
	Year       int
	FIPS       string
	StateFIPS  string
	CountyFIPS string
	Sector     string

	SourceFirms       *float64
	SourceEmp         *float64
	SourcePayrollUSD  *float64
	SourceReceiptsUSD *float64

	RdmFirms       *float64
	RdmEmp         *float64
	RdmPayrollUSD  *float64
	RdmReceiptsUSD *float64

	DeltaFirms       *float64
	DeltaEmp         *float64
	DeltaPayrollUSD  *float64
	DeltaReceiptsUSD *float64

	DeltaFirmsPct    *float64
	DeltaEmpPct      *float64
	DeltaPayrollPct  *float64
	DeltaReceiptsPct *float64

	PassFirms    bool
	PassEmp      bool
	PassPayroll  bool
	PassReceipts bool
	PassAll      bool

	Notes string
}

// AbsColumns is the artifact column order for ABS reconciliation rows.
var AbsColumns = []string{
	"year_num",
	"state_cnty_fips_cd",
	"state_fips",
	"county_fips",
	"naics2_sector_cd",
	"source_census_firmpdemp",
	"source_census_emp",
	"source_census_payann_usd",
	"source_census_rcppdemp_usd",
	"rdm_abs_firms",
	"rdm_abs_emp",
	"rdm_abs_payroll_usd_amt",
	"rdm_abs_rcpt_usd_amt",
	"delta_firms",
	"delta_emp",
	"delta_payroll_usd",
	"delta_receipts_usd",
	"delta_firms_pct",
	"delta_emp_pct",
	"delta_payroll_pct",
	"delta_receipts_pct",
	"pass_firms",
	"pass_emp",
	"pass_payroll",
	"pass_receipts",
	"pass_all",
	"notes",
}

// ReconcileABS outer-joins the Census pull with the warehouse slice on
// (year, fips, sector) and classifies each metric. Rows come back sorted
// by key. A key present on only one side still produces a row; its pass
// flags are false and its notes say which side was missing.
func ReconcileABS(source []AbsSourceRow, rdm []AbsWarehouseRow) []AbsRow {
	srcByKey := make(map[econ.Key]AbsSourceRow, len(source))
	keys := make([]econ.Key, 0, len(source)+len(rdm))
	for _, s := range source {
		k := econ.Key{Year: s.Year, FIPS: econ.PadFIPS(s.FIPS), Sector: s.Sector}
		if _, ok := srcByKey[k]; !ok {
			srcByKey[k] = s
			keys = append(keys, k)
		}
	}

	rdmByKey := make(map[econ.Key]AbsWarehouseRow, len(rdm))
	for _, r := range rdm {
		k := econ.Key{Year: r.Year, FIPS: econ.PadFIPS(r.FIPS), Sector: r.Sector}
		if _, ok := rdmByKey[k]; !ok {
			rdmByKey[k] = r
			if _, inSrc := srcByKey[k]; !inSrc {
				keys = append(keys, k)
			}
		}
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	rows := make([]AbsRow, 0, len(keys))
	for _, k := range keys {
		src := srcByKey[k]
		fact := rdmByKey[k]
		state, county := econ.SplitFIPS(k.FIPS)

		row := AbsRow{
			Year:       k.Year,
			FIPS:       k.FIPS,
			StateFIPS:  state,
			CountyFIPS: county,
			Sector:     k.Sector,

			SourceFirms:       src.Firms,
			SourceEmp:         src.Emp,
			SourcePayrollUSD:  src.PayrollUSD,
			SourceReceiptsUSD: src.ReceiptsUSD,

			RdmFirms:       fact.Firms,
			RdmEmp:         fact.Emp,
			RdmPayrollUSD:  fact.PayrollUSD,
			RdmReceiptsUSD: fact.ReceiptsUSD,
		}

		row.DeltaFirms = sub(row.RdmFirms, row.SourceFirms)
		row.DeltaEmp = sub(row.RdmEmp, row.SourceEmp)
		row.DeltaPayrollUSD = sub(row.RdmPayrollUSD, row.SourcePayrollUSD)
		row.DeltaReceiptsUSD = sub(row.RdmReceiptsUSD, row.SourceReceiptsUSD)

		row.DeltaFirmsPct = econ.SafeDivide(row.DeltaFirms, row.SourceFirms)
		row.DeltaEmpPct = econ.SafeDivide(row.DeltaEmp, row.SourceEmp)
		row.DeltaPayrollPct = econ.SafeDivide(row.DeltaPayrollUSD, row.SourcePayrollUSD)
		row.DeltaReceiptsPct = econ.SafeDivide(row.DeltaReceiptsUSD, row.SourceReceiptsUSD)

		row.PassFirms = passExact(row.DeltaFirms)
		row.PassEmp = passExact(row.DeltaEmp)
		row.PassPayroll = passTol(row.DeltaPayrollUSD, PayrollToleranceUSD)
		row.PassReceipts = passTol(row.DeltaReceiptsUSD, ReceiptsToleranceUSD)
		row.PassAll = row.PassFirms && row.PassEmp && row.PassPayroll && row.PassReceipts

		// Presence is judged off the firms fields: they are populated on
		// every genuine row from either side.
		notes := src.Notes
		switch {
		case row.SourceFirms == nil && row.RdmFirms == nil:
			notes = econ.AppendNote(notes, NoteMissingFromBoth)
		case row.SourceFirms == nil:
			notes = econ.AppendNote(notes, NoteMissingFromCensus)
		case row.RdmFirms == nil:
			notes = econ.AppendNote(notes, NoteMissingFromRdm)
		}
		row.Notes = notes

		rows = append(rows, row)
	}
	return rows
}

// Cells renders the row as column name → cell text.
func (r AbsRow) Cells() map[string]string {
	return map[string]string{
		"year_num":                   artifacts.FormatInt(r.Year),
		"state_cnty_fips_cd":         r.FIPS,
		"state_fips":                 r.StateFIPS,
		"county_fips":                r.CountyFIPS,
		"naics2_sector_cd":           r.Sector,
		"source_census_firmpdemp":    artifacts.FormatFloat(r.SourceFirms),
		"source_census_emp":          artifacts.FormatFloat(r.SourceEmp),
		"source_census_payann_usd":   artifacts.FormatFloat(r.SourcePayrollUSD),
		"source_census_rcppdemp_usd": artifacts.FormatFloat(r.SourceReceiptsUSD),
		"rdm_abs_firms":              artifacts.FormatFloat(r.RdmFirms),
		"rdm_abs_emp":                artifacts.FormatFloat(r.RdmEmp),
		"rdm_abs_payroll_usd_amt":    artifacts.FormatFloat(r.RdmPayrollUSD),
		"rdm_abs_rcpt_usd_amt":       artifacts.FormatFloat(r.RdmReceiptsUSD),
		"delta_firms":                artifacts.FormatFloat(r.DeltaFirms),
		"delta_emp":                  artifacts.FormatFloat(r.DeltaEmp),
		"delta_payroll_usd":          artifacts.FormatFloat(r.DeltaPayrollUSD),
		"delta_receipts_usd":         artifacts.FormatFloat(r.DeltaReceiptsUSD),
		"delta_firms_pct":            artifacts.FormatFloat(r.DeltaFirmsPct),
		"delta_emp_pct":              artifacts.FormatFloat(r.DeltaEmpPct),
		"delta_payroll_pct":          artifacts.FormatFloat(r.DeltaPayrollPct),
		"delta_receipts_pct":         artifacts.FormatFloat(r.DeltaReceiptsPct),
		"pass_firms":                 artifacts.FormatPlainBool(r.PassFirms),
		"pass_emp":                   artifacts.FormatPlainBool(r.PassEmp),
		"pass_payroll":               artifacts.FormatPlainBool(r.PassPayroll),
		"pass_receipts":              artifacts.FormatPlainBool(r.PassReceipts),
		"pass_all":                   artifacts.FormatPlainBool(r.PassAll),
		"notes":                      r.Notes,
	}
}

// Values renders the row for a warehouse publish, keeping native types so
// the insert carries proper INT64/FLOAT64/BOOL columns.
func (r AbsRow) Values() map[string]any {
	v := map[string]any{
		"year_num":           r.Year,
		"state_cnty_fips_cd": r.FIPS,
		"state_fips":         r.StateFIPS,
		"county_fips":        r.CountyFIPS,
		"naics2_sector_cd":   r.Sector,
		"pass_firms":         r.PassFirms,
		"pass_emp":           r.PassEmp,
		"pass_payroll":       r.PassPayroll,
		"pass_receipts":      r.PassReceipts,
		"pass_all":           r.PassAll,
		"notes":              r.Notes,
	}
	putFloat(v, "source_census_firmpdemp", r.SourceFirms)
	putFloat(v, "source_census_emp", r.SourceEmp)
	putFloat(v, "source_census_payann_usd", r.SourcePayrollUSD)
	putFloat(v, "source_census_rcppdemp_usd", r.SourceReceiptsUSD)
	putFloat(v, "rdm_abs_firms", r.RdmFirms)
	putFloat(v, "rdm_abs_emp", r.RdmEmp)
	putFloat(v, "rdm_abs_payroll_usd_amt", r.RdmPayrollUSD)
	putFloat(v, "rdm_abs_rcpt_usd_amt", r.RdmReceiptsUSD)
	putFloat(v, "delta_firms", r.DeltaFirms)
	putFloat(v, "delta_emp", r.DeltaEmp)
	putFloat(v, "delta_payroll_usd", r.DeltaPayrollUSD)
	putFloat(v, "delta_receipts_usd", r.DeltaReceiptsUSD)
	putFloat(v, "delta_firms_pct", r.DeltaFirmsPct)
	putFloat(v, "delta_emp_pct", r.DeltaEmpPct)
	putFloat(v, "delta_payroll_pct", r.DeltaPayrollPct)
	putFloat(v, "delta_receipts_pct", r.DeltaReceiptsPct)
	return v
}

// FailureLine renders the per-metric verdicts for a failed key.
func (r AbsRow) FailureLine() string {
	return fmt.Sprintf("%d %s %s: firms=%t emp=%t payroll=%t receipts=%t",
		r.Year, r.FIPS, r.Sector, r.PassFirms, r.PassEmp, r.PassPayroll, r.PassReceipts)
}

// AbsRecords renders rows in AbsColumns order for CSV output.
func AbsRecords(rows []AbsRow) [][]string {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		cells := r.Cells()
		record := make([]string, len(AbsColumns))
		for i, col := range AbsColumns {
			record[i] = cells[col]
		}
		records = append(records, record)
	}
	return records
}

// AbsPassCount returns how many rows passed every metric, and the total.
func AbsPassCount(rows []AbsRow) (passed, total int) {
	for _, r := range rows {
		if r.PassAll {
			passed++
		}
	}
	return passed, len(rows)
}

// AbsFailures returns the rows that failed at least one metric.
func AbsFailures(rows []AbsRow) []AbsRow {
	var failures []AbsRow
	for _, r := range rows {
		if !r.PassAll {
			failures = append(failures, r)
		}
	}
	return failures
}

func putFloat(m map[string]any, key string, v *float64) {
	if v == nil {
		m[key] = nil
		return
	}
	m[key] = *v
}
