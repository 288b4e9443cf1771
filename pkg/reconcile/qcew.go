package reconcile

import (
	"fmt"
	"sort"

	"github.com/rdmdatalab/econbench/internal/artifacts"
	"github.com/rdmdatalab/econbench/pkg/constants"
	"github.com/rdmdatalab/econbench/pkg/econ"
)

// QcewConfig drives one QCEW reconciliation run.
type QcewConfig struct {
	Years              []int
	Counties           []string
	Naics              []string
	OutDir             string
	Publish            bool
	Table              string
	RawTemplate        string
	CacheDir           string
	OwnershipCode      string
	AggLevel           string
	AllowWageTolerance bool
	RdmCSV             string
}

// QcewSourceRow is one row from the filtered QCEW annual singlefile. The
// metric cells stay raw: parsing happens during reconciliation so that
// suppression markers become notes on the reconciled row. A nil cell means
// the column was absent from the record entirely.
type QcewSourceRow struct {
	Year          int
	FIPS          string
	StateFIPS     string
	CountyFIPS    string
	Sector        string
	Emp           *string
	Wages         *string
	AvgWeeklyWage *string
}

// QcewWarehouseRow is the warehouse's version of the same metrics.
type QcewWarehouseRow struct {
	Year             int
	FIPS             string
	Sector           string
	Emp              *float64
	WagesUSD         *float64
	AvgWeeklyWageUSD *float64
}

// QcewRow is one reconciled QCEW key. Passes are tri-state: nil means a
// side of the metric was missing, so the comparison never happened.
type QcewRow struct {
	Year       int
	FIPS       string
	StateFIPS  string
	CountyFIPS string
	Sector     string

	SourceEmp              *float64
	SourceWagesUSD         *float64
	SourceAvgWeeklyWageUSD *float64

	RdmEmp              *float64
	RdmWagesUSD         *float64
	RdmAvgWeeklyWageUSD *float64

	DeltaEmp              *float64
	DeltaWagesUSD         *float64
	DeltaAvgWeeklyWageUSD *float64

	DeltaEmpPct           *float64
	DeltaWagesPct         *float64
	DeltaAvgWeeklyWagePct *float64

	PassEmp           *bool
	PassWages         *bool
	PassAvgWeeklyWage *bool
	PassAll           *bool

	Notes string
}

// QcewColumns is the artifact column order for QCEW reconciliation rows.
var QcewColumns = []string{
	"year_num",
	"state_cnty_fips_cd",
	"state_fips",
	"county_fips",
	"naics2_sector_cd",
	"source_qcew_annual_avg_emplvl",
	"source_qcew_total_annual_wages_usd",
	"source_qcew_avg_weekly_wage_usd",
	"rdm_qcew_emp",
	"rdm_qcew_wages_usd",
	"rdm_qcew_avg_weekly_wage_usd",
	"delta_emp",
	"delta_wages_usd",
	"delta_avg_weekly_wage_usd",
	"delta_emp_pct",
	"delta_wages_pct",
	"delta_avg_weekly_wage_pct",
	"pass_emp",
	"pass_wages",
	"pass_avg_weekly_wage",
	"pass_all",
	"notes",
}

// ReconcileQCEW parses the raw source metrics, outer-joins with the
// warehouse slice on (year, fips, sector), and classifies each metric.
// Rows come back sorted by key.
//
// Where the warehouse has no stored weekly wage but does have employment
// and wages, the weekly wage is backfilled as wages/(emp*52) before the
// comparison. The weekly-wage verdict is informational: pass_all depends
// only on employment and total wages.
func ReconcileQCEW(source []QcewSourceRow, rdm []QcewWarehouseRow, allowWageTolerance bool) []QcewRow {
	type parsedSource struct {
		emp, wages, avgWage *float64
		notes               string
	}

	srcByKey := make(map[econ.Key]parsedSource, len(source))
	keys := make([]econ.Key, 0, len(source)+len(rdm))
	for _, s := range source {
		k := econ.Key{Year: s.Year, FIPS: econ.PadFIPS(s.FIPS), Sector: s.Sector}
		if _, ok := srcByKey[k]; ok {
			continue
		}

		var notes []string
		emp, note := econ.ParseNumericPtr(s.Emp)
		if note != "" {
			notes = append(notes, note)
		}
		wages, note := econ.ParseNumericPtr(s.Wages)
		if note != "" {
			notes = append(notes, note)
		}
		avgWage, note := econ.ParseNumericPtr(s.AvgWeeklyWage)
		if note != "" {
			notes = append(notes, note)
		}

		srcByKey[k] = parsedSource{emp: emp, wages: wages, avgWage: avgWage, notes: econ.JoinNotes(notes)}
		keys = append(keys, k)
	}

	rdmByKey := make(map[econ.Key]QcewWarehouseRow, len(rdm))
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

	rows := make([]QcewRow, 0, len(keys))
	for _, k := range keys {
		src := srcByKey[k]
		fact := rdmByKey[k]
		state, county := econ.SplitFIPS(k.FIPS)

		row := QcewRow{
			Year:       k.Year,
			FIPS:       k.FIPS,
			StateFIPS:  state,
			CountyFIPS: county,
			Sector:     k.Sector,

			SourceEmp:              src.emp,
			SourceWagesUSD:         src.wages,
			SourceAvgWeeklyWageUSD: src.avgWage,

			RdmEmp:              fact.Emp,
			RdmWagesUSD:         fact.WagesUSD,
			RdmAvgWeeklyWageUSD: fact.AvgWeeklyWageUSD,
		}

		if row.RdmAvgWeeklyWageUSD == nil && row.RdmEmp != nil && *row.RdmEmp > 0 && row.RdmWagesUSD != nil {
			w := *row.RdmWagesUSD / (*row.RdmEmp * constants.WeeksPerYear)
			row.RdmAvgWeeklyWageUSD = &w
		}

		row.DeltaEmp = sub(row.RdmEmp, row.SourceEmp)
		row.DeltaWagesUSD = sub(row.RdmWagesUSD, row.SourceWagesUSD)
		row.DeltaAvgWeeklyWageUSD = sub(row.RdmAvgWeeklyWageUSD, row.SourceAvgWeeklyWageUSD)

		row.DeltaEmpPct = econ.SafeDivide(row.DeltaEmp, row.SourceEmp)
		row.DeltaWagesPct = econ.SafeDivide(row.DeltaWagesUSD, row.SourceWagesUSD)
		row.DeltaAvgWeeklyWagePct = econ.SafeDivide(row.DeltaAvgWeeklyWageUSD, row.SourceAvgWeeklyWageUSD)

		row.PassEmp = triPassExact(row.DeltaEmp)
		row.PassWages = triPassExact(row.DeltaWagesUSD)
		if allowWageTolerance {
			row.PassAvgWeeklyWage = triPassTol(row.DeltaAvgWeeklyWageUSD, WeeklyWageToleranceUSD)
		} else {
			row.PassAvgWeeklyWage = triPassExact(row.DeltaAvgWeeklyWageUSD)
		}

		notes := src.notes
		switch {
		case row.SourceEmp == nil && row.RdmEmp == nil:
			notes = econ.AppendNote(notes, NoteMissingFromBoth)
			row.PassAll = nil
		case row.SourceEmp == nil:
			notes = econ.AppendNote(notes, NoteMissingFromSource)
			row.PassAll = nil
		case row.RdmEmp == nil:
			notes = econ.AppendNote(notes, NoteMissingFromRdm)
			row.PassAll = econ.Bool(false)
		default:
			switch {
			case row.PassEmp != nil && *row.PassEmp && row.PassWages != nil && *row.PassWages:
				row.PassAll = econ.Bool(true)
			case row.PassEmp == nil || row.PassWages == nil:
				row.PassAll = nil
			default:
				row.PassAll = econ.Bool(false)
			}
		}
		row.Notes = notes

		rows = append(rows, row)
	}
	return rows
}

// Cells renders the row as column name → cell text. Tri-state passes
// serialize nil as an empty cell.
func (r QcewRow) Cells() map[string]string {
	return map[string]string{
		"year_num":                           artifacts.FormatInt(r.Year),
		"state_cnty_fips_cd":                 r.FIPS,
		"state_fips":                         r.StateFIPS,
		"county_fips":                        r.CountyFIPS,
		"naics2_sector_cd":                   r.Sector,
		"source_qcew_annual_avg_emplvl":      artifacts.FormatFloat(r.SourceEmp),
		"source_qcew_total_annual_wages_usd": artifacts.FormatFloat(r.SourceWagesUSD),
		"source_qcew_avg_weekly_wage_usd":    artifacts.FormatFloat(r.SourceAvgWeeklyWageUSD),
		"rdm_qcew_emp":                       artifacts.FormatFloat(r.RdmEmp),
		"rdm_qcew_wages_usd":                 artifacts.FormatFloat(r.RdmWagesUSD),
		"rdm_qcew_avg_weekly_wage_usd":       artifacts.FormatFloat(r.RdmAvgWeeklyWageUSD),
		"delta_emp":                          artifacts.FormatFloat(r.DeltaEmp),
		"delta_wages_usd":                    artifacts.FormatFloat(r.DeltaWagesUSD),
		"delta_avg_weekly_wage_usd":          artifacts.FormatFloat(r.DeltaAvgWeeklyWageUSD),
		"delta_emp_pct":                      artifacts.FormatFloat(r.DeltaEmpPct),
		"delta_wages_pct":                    artifacts.FormatFloat(r.DeltaWagesPct),
		"delta_avg_weekly_wage_pct":          artifacts.FormatFloat(r.DeltaAvgWeeklyWagePct),
		"pass_emp":                           artifacts.FormatBool(r.PassEmp),
		"pass_wages":                         artifacts.FormatBool(r.PassWages),
		"pass_avg_weekly_wage":               artifacts.FormatBool(r.PassAvgWeeklyWage),
		"pass_all":                           artifacts.FormatBool(r.PassAll),
		"notes":                              r.Notes,
	}
}

// Values renders the row for a warehouse publish.
func (r QcewRow) Values() map[string]any {
	v := map[string]any{
		"year_num":           r.Year,
		"state_cnty_fips_cd": r.FIPS,
		"state_fips":         r.StateFIPS,
		"county_fips":        r.CountyFIPS,
		"naics2_sector_cd":   r.Sector,
		"notes":              r.Notes,
	}
	putFloat(v, "source_qcew_annual_avg_emplvl", r.SourceEmp)
	putFloat(v, "source_qcew_total_annual_wages_usd", r.SourceWagesUSD)
	putFloat(v, "source_qcew_avg_weekly_wage_usd", r.SourceAvgWeeklyWageUSD)
	putFloat(v, "rdm_qcew_emp", r.RdmEmp)
	putFloat(v, "rdm_qcew_wages_usd", r.RdmWagesUSD)
	putFloat(v, "rdm_qcew_avg_weekly_wage_usd", r.RdmAvgWeeklyWageUSD)
	putFloat(v, "delta_emp", r.DeltaEmp)
	putFloat(v, "delta_wages_usd", r.DeltaWagesUSD)
	putFloat(v, "delta_avg_weekly_wage_usd", r.DeltaAvgWeeklyWageUSD)
	putFloat(v, "delta_emp_pct", r.DeltaEmpPct)
	putFloat(v, "delta_wages_pct", r.DeltaWagesPct)
	putFloat(v, "delta_avg_weekly_wage_pct", r.DeltaAvgWeeklyWagePct)
	putBool(v, "pass_emp", r.PassEmp)
	putBool(v, "pass_wages", r.PassWages)
	putBool(v, "pass_avg_weekly_wage", r.PassAvgWeeklyWage)
	putBool(v, "pass_all", r.PassAll)
	return v
}

// FailureLine renders the per-metric verdicts for a failed key.
func (r QcewRow) FailureLine() string {
	return fmt.Sprintf("%d %s %s: emp=%s wages=%s avg_weekly_wage=%s",
		r.Year, r.FIPS, r.Sector,
		passLabel(r.PassEmp), passLabel(r.PassWages), passLabel(r.PassAvgWeeklyWage))
}

// QcewRecords renders rows in QcewColumns order for CSV output.
func QcewRecords(rows []QcewRow) [][]string {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		cells := r.Cells()
		record := make([]string, len(QcewColumns))
		for i, col := range QcewColumns {
			record[i] = cells[col]
		}
		records = append(records, record)
	}
	return records
}

// QcewPassCount returns how many rows affirmatively passed, and the total.
// Nil verdicts count toward neither side.
func QcewPassCount(rows []QcewRow) (passed, total int) {
	for _, r := range rows {
		if r.PassAll != nil && *r.PassAll {
			passed++
		}
	}
	return passed, len(rows)
}

// QcewFailures returns the rows that affirmatively failed. Rows whose
// verdict is nil were never comparable and are not failures.
func QcewFailures(rows []QcewRow) []QcewRow {
	var failures []QcewRow
	for _, r := range rows {
		if r.PassAll != nil && !*r.PassAll {
			failures = append(failures, r)
		}
	}
	return failures
}

func putBool(m map[string]any, key string, v *bool) {
	if v == nil {
		m[key] = nil
		return
	}
	m[key] = *v
}
