// Package integrate builds the integrated fact table: the per-year ABS and
// QCEW cleaned extracts outer-joined on (year, county, sector), enriched
// with county reference data, plus the derived per-employment and per-firm
// ratios the QA suites range-check.
package integrate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rdmdatalab/econbench/internal/artifacts"
	"github.com/rdmdatalab/econbench/internal/sources/qcew"
	"github.com/rdmdatalab/econbench/pkg/econ"
	"github.com/rdmdatalab/econbench/pkg/errors"
	"github.com/rdmdatalab/econbench/pkg/logging"
)

// Defaults for the merge inputs and output.
const (
	DefaultAbsPattern  = "data_clean/abs/econ_bnchmrk_abs_{year}.csv"
	DefaultQcewPattern = "data_clean/qcew/econ_bnchmrk_qcew_{year}.csv"
	DefaultRefCSV      = "data_clean/reference/ref_state_cnty_uscb.csv"
	DefaultOutCSV      = "data_clean/integration/econ_bnchmrk_abs_qcew.csv"
)

// Join keys shared by both sides.
const (
	colYear   = "year_num"
	colFIPS   = "state_cnty_fips_cd"
	colSector = "naics2_sector_cd"
)

// qcewSuffix disambiguates QCEW columns that collide with ABS names.
const qcewSuffix = "_qcew"

// Config drives one fact-table merge.
type Config struct {
	Years       []int
	AbsPattern  string
	QcewPattern string
	RefCSV      string
	OutCSV      string
}

// Merger performs the fact-table merge.
type Merger struct {
	log zerolog.Logger
}

// NewMerger builds a Merger that logs under the merge component.
func NewMerger() *Merger {
	return &Merger{log: logging.With().Str("component", "merge").Logger()}
}

// Run merges the configured years into one fact CSV. Duplicate keys after
// the merge are fatal: they mean an input was aggregated wrong, and letting
// them through would double-count in every downstream rollup.
func (m *Merger) Run(_ context.Context, cfg Config) error {
	cfg = withDefaults(cfg)

	m.log.Info().Ints("years", cfg.Years).Str("out", cfg.OutCSV).Msg("[MERGE] Starting fact-table merge")

	ref, err := loadReference(cfg.RefCSV)
	if err != nil {
		return err
	}

	var columns []string
	var allRows []mergedRow
	dupes := 0
	for _, year := range cfg.Years {
		yearColumns, rows, yearDupes, err := m.mergeYear(cfg, year, ref)
		if err != nil {
			return err
		}
		if columns == nil {
			columns = yearColumns
		}
		allRows = append(allRows, rows...)
		dupes += yearDupes
		m.log.Info().Int("year", year).Int("rows", len(rows)).Msg("[MERGE] Merged year")
	}

	if dupes > 0 {
		return errors.NewValidationError("keys", dupes,
			fmt.Sprintf("Duplicate merged rows detected: %d", dupes))
	}

	sort.Slice(allRows, func(i, j int) bool { return allRows[i].key.Less(allRows[j].key) })

	records := make([][]string, 0, len(allRows))
	for _, row := range allRows {
		record := make([]string, len(columns))
		for i, col := range columns {
			record[i] = row.cells[col]
		}
		records = append(records, record)
	}
	if err := artifacts.WriteCSV(cfg.OutCSV, columns, records); err != nil {
		return err
	}

	m.log.Info().Int("rows", len(allRows)).Str("path", cfg.OutCSV).Msg("[MERGE] Wrote fact table")
	return nil
}

type mergedRow struct {
	key   econ.Key
	cells map[string]string
}

// refEntry is the slice of the county reference the merge enriches with.
type refEntry struct {
	state          string
	countyName     string
	population     string
	populationYear string
}

func (m *Merger) mergeYear(cfg Config, year int, ref map[string]refEntry) ([]string, []mergedRow, int, error) {
	absPath := qcew.ExpandYear(cfg.AbsPattern, year)
	qcewPath := qcew.ExpandYear(cfg.QcewPattern, year)

	absHeader, absRows, err := artifacts.ReadCSV(absPath)
	if err != nil {
		return nil, nil, 0, err
	}
	qcewHeader, qcewRows, err := artifacts.ReadCSV(qcewPath)
	if err != nil {
		return nil, nil, 0, err
	}

	absSet := make(map[string]bool, len(absHeader))
	for _, col := range absHeader {
		absSet[col] = true
	}

	// QCEW output names: keys are shared, collisions get the suffix.
	qcewOut := make(map[string]string, len(qcewHeader))
	var qcewOnly []string
	for _, col := range qcewHeader {
		if col == colYear || col == colFIPS || col == colSector {
			continue
		}
		name := col
		if absSet[col] {
			name = col + qcewSuffix
		}
		qcewOut[col] = name
		qcewOnly = append(qcewOnly, name)
	}

	columns := make([]string, 0, len(absHeader)+len(qcewOnly)+7)
	columns = append(columns, absHeader...)
	columns = append(columns, qcewOnly...)
	columns = append(columns, "state_cd", "population_num", "population_year")
	for _, col := range derivedColumns {
		if !absSet[col] {
			columns = append(columns, col)
		}
	}

	dupes := 0
	absByKey := make(map[econ.Key]map[string]string, len(absRows))
	keys := make([]econ.Key, 0, len(absRows)+len(qcewRows))
	for _, row := range absRows {
		k := rowKey(row, year)
		if _, ok := absByKey[k]; ok {
			dupes++
			continue
		}
		absByKey[k] = row
		keys = append(keys, k)
	}
	qcewByKey := make(map[econ.Key]map[string]string, len(qcewRows))
	for _, row := range qcewRows {
		k := rowKey(row, year)
		if _, ok := qcewByKey[k]; ok {
			dupes++
			continue
		}
		qcewByKey[k] = row
		if _, inAbs := absByKey[k]; !inAbs {
			keys = append(keys, k)
		}
	}

	rows := make([]mergedRow, 0, len(keys))
	for _, k := range keys {
		cells := make(map[string]string, len(columns))
		cells[colYear] = fmt.Sprintf("%d", k.Year)
		cells[colFIPS] = k.FIPS
		cells[colSector] = k.Sector

		for _, col := range absHeader {
			if v, ok := absByKey[k][col]; ok {
				cells[col] = v
			}
		}
		for raw, out := range qcewOut {
			if v, ok := qcewByKey[k][raw]; ok {
				cells[out] = v
			}
		}

		// ABS state FIPS falls back to the QCEW side on QCEW-only keys.
		if strings.TrimSpace(cells["state_fips_cd"]) == "" {
			cells["state_fips_cd"] = cells["state_fips_cd"+qcewSuffix]
		}

		if entry, ok := ref[k.FIPS]; ok {
			cells["state_cd"] = entry.state
			cells["population_num"] = entry.population
			cells["population_year"] = entry.populationYear
			if strings.TrimSpace(cells["cnty_nm"]) == "" {
				cells["cnty_nm"] = entry.countyName
			}
		}

		derive(cells)
		rows = append(rows, mergedRow{key: k, cells: cells})
	}
	return columns, rows, dupes, nil
}

// derivedColumns are appended (or recomputed in place) after the join.
var derivedColumns = []string{
	"abs_rcpt_per_emp_usd_amt",
	"abs_wage_per_emp_usd_amt",
	"abs_rcpt_per_firm_usd_amt",
	"qcew_wage_per_emp_usd_amt",
}

// derive recomputes the ratio metrics from the merged row. Ratios are nil
// on a nil or zero denominator and serialize as empty cells.
func derive(cells map[string]string) {
	firms := numeric(cells, "abs_firm_num")
	emp := numeric(cells, "abs_emp_num")
	payroll := numeric(cells, "abs_payroll_usd_amt")
	receipts := numeric(cells, "abs_rcpt_usd_amt")
	qcewEmp := numeric(cells, "qcew_ann_avg_emp_lvl_num")
	qcewWages := numeric(cells, "qcew_ttl_ann_wage_usd_amt")

	cells["abs_rcpt_per_emp_usd_amt"] = artifacts.FormatFloat(econ.SafeDivide(receipts, emp))
	cells["abs_wage_per_emp_usd_amt"] = artifacts.FormatFloat(econ.SafeDivide(payroll, emp))
	cells["abs_rcpt_per_firm_usd_amt"] = artifacts.FormatFloat(econ.SafeDivide(receipts, firms))
	cells["qcew_wage_per_emp_usd_amt"] = artifacts.FormatFloat(econ.SafeDivide(qcewWages, qcewEmp))
}

func numeric(cells map[string]string, col string) *float64 {
	v, _ := econ.ParseNumeric(cells[col])
	return v
}

func rowKey(row map[string]string, fallbackYear int) econ.Key {
	year := fallbackYear
	if v, _ := econ.ParseNumeric(row[colYear]); v != nil {
		year = int(*v)
	}
	return econ.Key{
		Year:   year,
		FIPS:   econ.PadFIPS(strings.TrimSpace(row[colFIPS])),
		Sector: strings.TrimSpace(row[colSector]),
	}
}

func loadReference(path string) (map[string]refEntry, error) {
	_, rows, err := artifacts.ReadCSV(path)
	if err != nil {
		return nil, err
	}
	ref := make(map[string]refEntry, len(rows))
	for _, row := range rows {
		fips := econ.PadFIPS(strings.TrimSpace(row[colFIPS]))
		if _, ok := ref[fips]; ok {
			continue
		}
		ref[fips] = refEntry{
			state:          row["state_cd"],
			countyName:     row["cnty_nm"],
			population:     row["population_num"],
			populationYear: row["population_year"],
		}
	}
	return ref, nil
}

func withDefaults(cfg Config) Config {
	if len(cfg.Years) == 0 {
		cfg.Years = []int{2022, 2023}
	}
	if cfg.AbsPattern == "" {
		cfg.AbsPattern = DefaultAbsPattern
	}
	if cfg.QcewPattern == "" {
		cfg.QcewPattern = DefaultQcewPattern
	}
	if cfg.RefCSV == "" {
		cfg.RefCSV = DefaultRefCSV
	}
	if cfg.OutCSV == "" {
		cfg.OutCSV = DefaultOutCSV
	}
	return cfg
}
