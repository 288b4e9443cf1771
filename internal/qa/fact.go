// Package qa holds the QA suites that gate the integrated fact table and
// its exports: the fact-table checks, the pre-handoff export sanity check,
// the national totals snapshot, the year-over-year summary, the data
// dictionary builder, and the warehouse schema diff.
package qa

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rdmdatalab/econbench/internal/artifacts"
	"github.com/rdmdatalab/econbench/pkg/constants"
	"github.com/rdmdatalab/econbench/pkg/econ"
	"github.com/rdmdatalab/econbench/pkg/errors"
	"github.com/rdmdatalab/econbench/pkg/logging"
)

// Fact QA bounds. Rows outside these are flagged, not dropped: the suite
// reports, the operator decides.
const (
	wagePerEmpMin = 10_000.0
	wagePerEmpMax = 500_000.0

	receiptsPerFirmMin = 0.0
	receiptsPerFirmMax = 50_000_000.0

	crossWageRatioMin = 0.2
	crossWageRatioMax = 5.0

	weeklyWageRelTol = 0.10

	zOutlierTop = 20
)

// factMetricColumns are the seven numeric columns the negative-value and
// distribution checks cover.
var factMetricColumns = []string{
	"abs_firm_num",
	"abs_emp_num",
	"abs_payroll_usd_amt",
	"abs_rcpt_usd_amt",
	"qcew_ann_avg_emp_lvl_num",
	"qcew_ttl_ann_wage_usd_amt",
	"qcew_avg_wkly_wage_usd_amt",
}

// FactConfig drives one fact-table QA run.
type FactConfig struct {
	FactCSV       string
	SimplemapsCSV string
	OutDir        string
	ExpectedYears []int
}

// FactIssue is one failed check with its affected-row count.
type FactIssue struct {
	Check  string `json:"check"`
	Count  int    `json:"count"`
	Detail string `json:"detail"`
}

// FactReport summarizes a fact-table QA run.
type FactReport struct {
	Rows    int         `json:"rows"`
	Issues  []FactIssue `json:"issues"`
	Passed  bool        `json:"passed"`
	LogPath string      `json:"log_path"`
}

// FactSuite runs the integrated fact-table checks.
type FactSuite struct {
	log   zerolog.Logger
	lines []string
}

// NewFactSuite builds a suite that logs under the qa component.
func NewFactSuite() *FactSuite {
	return &FactSuite{log: logging.With().Str("component", "qa").Logger()}
}

// Run validates the fact CSV and writes the QA log plus the invalid-FIPS
// export. The returned report is non-nil whenever the inputs loaded; check
// failures are issues, not errors.
func (s *FactSuite) Run(_ context.Context, cfg FactConfig) (*FactReport, error) {
	cfg = withFactDefaults(cfg)
	s.lines = nil

	_, rows, err := artifacts.ReadCSV(cfg.FactCSV)
	if err != nil {
		return nil, err
	}
	counties, err := loadSimplemapsFIPS(cfg.SimplemapsCSV)
	if err != nil {
		return nil, err
	}

	report := &FactReport{Rows: len(rows)}
	s.logf("[QA] Loaded %d fact rows from %s", len(rows), cfg.FactCSV)

	s.checkFIPS(cfg, rows, counties, report)
	s.checkSectors(rows, report)
	s.checkYears(cfg, rows, report)
	s.checkNegatives(rows, report)
	s.checkRanges(rows, report)
	s.checkCrossSource(rows, report)
	s.describeDistributions(rows)

	report.Passed = len(report.Issues) == 0
	verdict := "PASS"
	if !report.Passed {
		verdict = "FAIL"
	}
	s.logf("[QA SUMMARY] Overall: %s (issues found: %d)", verdict, len(report.Issues))

	logPath := filepath.Join(cfg.OutDir, "econ_bnchmrk_abs_qcew_qa.log")
	if err := s.writeLog(logPath); err != nil {
		return nil, err
	}
	report.LogPath = logPath
	return report, nil
}

func (s *FactSuite) checkFIPS(cfg FactConfig, rows []map[string]string, counties map[string]bool, report *FactReport) {
	var invalid []map[string]string
	for _, row := range rows {
		fips := strings.TrimSpace(row["state_cnty_fips_cd"])
		if !econ.ValidFIPS(fips) || !counties[fips] {
			invalid = append(invalid, row)
		}
	}
	if len(invalid) == 0 {
		s.logf("[QA] FIPS check passed")
		return
	}

	out := filepath.Join(cfg.OutDir, "econ_bnchmrk_abs_qcew_invalid_fips.csv")
	columns := []string{"year_num", "state_cnty_fips_cd", "naics2_sector_cd"}
	records := make([][]string, 0, len(invalid))
	for _, row := range invalid {
		records = append(records, []string{row["year_num"], row["state_cnty_fips_cd"], row["naics2_sector_cd"]})
	}
	if err := artifacts.WriteCSV(out, columns, records); err != nil {
		s.logf("[QA] WARNING: failed to export invalid FIPS rows: %v", err)
	}
	s.issue(report, "fips", len(invalid), fmt.Sprintf("rows with invalid or unknown FIPS; exported to %s", out))
}

func (s *FactSuite) checkSectors(rows []map[string]string, report *FactReport) {
	bad := 0
	for _, row := range rows {
		sector := strings.TrimSpace(row["naics2_sector_cd"])
		if !econ.FactSectors[sector] {
			bad++
		}
	}
	if bad > 0 {
		s.issue(report, "sector", bad, "rows with sector codes outside the fact allowlist")
	} else {
		s.logf("[QA] Sector check passed")
	}
}

func (s *FactSuite) checkYears(cfg FactConfig, rows []map[string]string, report *FactReport) {
	seen := map[int]int{}
	outOfRange := 0
	for _, row := range rows {
		v, _ := econ.ParseNumeric(row["year_num"])
		if v == nil {
			outOfRange++
			continue
		}
		year := int(*v)
		if year < 2000 || year > 2100 {
			outOfRange++
			continue
		}
		seen[year]++
	}
	if outOfRange > 0 {
		s.issue(report, "year_range", outOfRange, "rows with missing or implausible year_num")
	}
	for _, year := range cfg.ExpectedYears {
		if seen[year] == 0 {
			s.issue(report, "year_coverage", 1, fmt.Sprintf("expected year %d has no rows", year))
		}
	}
	for year, count := range seen {
		s.logf("[QA] Year %d: %d rows", year, count)
	}

	keys := map[econ.Key]int{}
	dupes := 0
	for _, row := range rows {
		k := factKey(row)
		keys[k]++
		if keys[k] == 2 {
			dupes++
		}
	}
	if dupes > 0 {
		s.issue(report, "duplicate_keys", dupes, "duplicate (year, fips, sector) keys")
	} else {
		s.logf("[QA] Duplicate key check passed")
	}
}

func (s *FactSuite) checkNegatives(rows []map[string]string, report *FactReport) {
	for _, col := range factMetricColumns {
		neg := 0
		for _, row := range rows {
			if v, _ := econ.ParseNumeric(row[col]); v != nil && *v < 0 {
				neg++
			}
		}
		if neg > 0 {
			s.issue(report, "negative_"+col, neg, "negative values in "+col)
		}
	}
}

func (s *FactSuite) checkRanges(rows []map[string]string, report *FactReport) {
	absWageOut, qcewWageOut, receiptsOut := 0, 0, 0
	for _, row := range rows {
		if v, _ := econ.ParseNumeric(row["abs_wage_per_emp_usd_amt"]); v != nil && (*v < wagePerEmpMin || *v > wagePerEmpMax) {
			absWageOut++
		}
		if v, _ := econ.ParseNumeric(row["qcew_wage_per_emp_usd_amt"]); v != nil && (*v < wagePerEmpMin || *v > wagePerEmpMax) {
			qcewWageOut++
		}
		if v, _ := econ.ParseNumeric(row["abs_rcpt_per_firm_usd_amt"]); v != nil && (*v < receiptsPerFirmMin || *v > receiptsPerFirmMax) {
			receiptsOut++
		}
	}
	if absWageOut > 0 {
		s.issue(report, "range_abs_wage_per_emp", absWageOut,
			fmt.Sprintf("abs wage/emp outside [%.0f, %.0f]", wagePerEmpMin, wagePerEmpMax))
	}
	if qcewWageOut > 0 {
		s.issue(report, "range_qcew_wage_per_emp", qcewWageOut,
			fmt.Sprintf("qcew wage/emp outside [%.0f, %.0f]", wagePerEmpMin, wagePerEmpMax))
	}
	if receiptsOut > 0 {
		s.issue(report, "range_receipts_per_firm", receiptsOut,
			fmt.Sprintf("receipts/firm outside [%.0f, %.0f]", receiptsPerFirmMin, receiptsPerFirmMax))
	}
}

func (s *FactSuite) checkCrossSource(rows []map[string]string, report *FactReport) {
	ratioOut, weeklyOut := 0, 0
	absOnly, qcewOnly, both := 0, 0, 0
	var absWages, qcewWages []float64

	for _, row := range rows {
		absWage, _ := econ.ParseNumeric(row["abs_wage_per_emp_usd_amt"])
		qcewWage, _ := econ.ParseNumeric(row["qcew_wage_per_emp_usd_amt"])

		hasAbs := rowHasValue(row, "abs_firm_num")
		hasQcew := rowHasValue(row, "qcew_ann_avg_emp_lvl_num")
		switch {
		case hasAbs && hasQcew:
			both++
		case hasAbs:
			absOnly++
		case hasQcew:
			qcewOnly++
		}

		if absWage != nil && qcewWage != nil {
			absWages = append(absWages, *absWage)
			qcewWages = append(qcewWages, *qcewWage)
			if ratio := econ.SafeDivide(absWage, qcewWage); ratio != nil && (*ratio < crossWageRatioMin || *ratio > crossWageRatioMax) {
				ratioOut++
			}
		}

		weekly, _ := econ.ParseNumeric(row["qcew_avg_wkly_wage_usd_amt"])
		wages, _ := econ.ParseNumeric(row["qcew_ttl_ann_wage_usd_amt"])
		emp, _ := econ.ParseNumeric(row["qcew_ann_avg_emp_lvl_num"])
		if weekly != nil && wages != nil && emp != nil && *emp > 0 {
			implied := *wages / (*emp * constants.WeeksPerYear)
			if implied != 0 && math.Abs(*weekly-implied)/implied > weeklyWageRelTol {
				weeklyOut++
			}
		}
	}

	s.logf("[QA] Coverage: both=%d abs_only=%d qcew_only=%d", both, absOnly, qcewOnly)
	if corr := correlation(absWages, qcewWages); !math.IsNaN(corr) {
		s.logf("[QA] ABS/QCEW wage-per-emp correlation: %.4f", corr)
	}

	if ratioOut > 0 {
		s.issue(report, "cross_wage_ratio", ratioOut,
			fmt.Sprintf("ABS/QCEW wage-per-emp ratio outside [%.1f, %.1f]", crossWageRatioMin, crossWageRatioMax))
	}
	if weeklyOut > 0 {
		s.issue(report, "weekly_wage_consistency", weeklyOut,
			fmt.Sprintf("weekly wage differs from wages/52 by more than %.0f%%", weeklyWageRelTol*100))
	}
}

func (s *FactSuite) describeDistributions(rows []map[string]string) {
	for _, col := range factMetricColumns {
		type valued struct {
			key econ.Key
			v   float64
		}
		var values []float64
		var tagged []valued
		for _, row := range rows {
			if v, _ := econ.ParseNumeric(row[col]); v != nil {
				values = append(values, *v)
				tagged = append(tagged, valued{key: factKey(row), v: *v})
			}
		}
		if len(values) == 0 {
			continue
		}

		s.logf("[QA] %s quantiles: p01=%.2f p05=%.2f p95=%.2f p99=%.2f",
			col, quantile(values, 0.01), quantile(values, 0.05), quantile(values, 0.95), quantile(values, 0.99))

		mean, std := meanStd(values)
		if std == 0 {
			continue
		}
		sort.Slice(tagged, func(i, j int) bool {
			return math.Abs(tagged[i].v-mean) > math.Abs(tagged[j].v-mean)
		})
		top := zOutlierTop
		if len(tagged) < top {
			top = len(tagged)
		}
		for _, entry := range tagged[:top] {
			z := (entry.v - mean) / std
			if math.Abs(z) < 3 {
				break
			}
			s.logf("[QA] %s outlier %s: value=%.2f z=%.2f", col, entry.key, entry.v, z)
		}
	}
}

func (s *FactSuite) issue(report *FactReport, check string, count int, detail string) {
	report.Issues = append(report.Issues, FactIssue{Check: check, Count: count, Detail: detail})
	s.logf("[QA] ISSUE %s: %s (%d rows)", check, detail, count)
}

func (s *FactSuite) logf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	s.lines = append(s.lines, line)
	s.log.Info().Msg(line)
}

func (s *FactSuite) writeLog(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), constants.DirPermissions); err != nil {
		return errors.WrapIO("create", filepath.Dir(path), err)
	}
	content := strings.Join(s.lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), constants.FilePermissions); err != nil {
		return errors.WrapIO("write", path, err)
	}
	return nil
}

func factKey(row map[string]string) econ.Key {
	year := 0
	if v, _ := econ.ParseNumeric(row["year_num"]); v != nil {
		year = int(*v)
	}
	return econ.Key{
		Year:   year,
		FIPS:   strings.TrimSpace(row["state_cnty_fips_cd"]),
		Sector: strings.TrimSpace(row["naics2_sector_cd"]),
	}
}

func rowHasValue(row map[string]string, col string) bool {
	v, _ := econ.ParseNumeric(row[col])
	return v != nil
}

// loadSimplemapsFIPS reads the simplemaps county reference into a FIPS set.
func loadSimplemapsFIPS(path string) (map[string]bool, error) {
	_, rows, err := artifacts.ReadCSV(path)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(rows))
	for _, row := range rows {
		fips := econ.PadFIPS(strings.TrimSpace(row["county_fips"]))
		if econ.ValidFIPS(fips) {
			set[fips] = true
		}
	}
	if len(set) == 0 {
		return nil, errors.NewValidationError("county_fips", path, "simplemaps reference has no usable county_fips values")
	}
	return set, nil
}

func withFactDefaults(cfg FactConfig) FactConfig {
	if cfg.OutDir == "" {
		cfg.OutDir = constants.DefaultReportsDir
	}
	if len(cfg.ExpectedYears) == 0 {
		cfg.ExpectedYears = []int{2022, 2023}
	}
	return cfg
}
