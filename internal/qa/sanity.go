package qa

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	md "github.com/nao1215/markdown"
	"github.com/rs/zerolog"

	"github.com/rdmdatalab/econbench/internal/artifacts"
	"github.com/rdmdatalab/econbench/internal/reports"
	"github.com/rdmdatalab/econbench/pkg/constants"
	"github.com/rdmdatalab/econbench/pkg/econ"
	"github.com/rdmdatalab/econbench/pkg/errors"
	"github.com/rdmdatalab/econbench/pkg/logging"
)

// Severity classifies a sanity check. ERROR failures gate the handoff;
// WARN failures are advisory.
type Severity string

// Severity levels.
const (
	SeverityError Severity = "ERROR"
	SeverityWarn  Severity = "WARN"
)

// Check is one sanity-check result.
type Check struct {
	Name     string   `json:"name"`
	Severity Severity `json:"severity"`
	Pass     bool     `json:"pass"`
	Detail   string   `json:"detail"`
}

// SanityConfig drives one export sanity run over the three handoff CSVs.
type SanityConfig struct {
	FactCSV       string
	CountyCSV     string
	NaicsCSV      string
	OutDir        string
	ExpectedYears []int
	OutlierTop    int
}

// SanityReport is the full result of a sanity run, serialized as the JSON
// artifact alongside the markdown report.
type SanityReport struct {
	RunID         string             `json:"run_id"`
	Inputs        map[string]string  `json:"inputs"`
	Checks        []Check            `json:"checks"`
	KeyStats      map[string]int     `json:"key_stats"`
	NullRates     map[string]float64 `json:"null_rates"`
	DuplicateKeys []string           `json:"duplicate_keys,omitempty"`
	MissingJoins  []string           `json:"missing_joins,omitempty"`
	Outliers      []string           `json:"outliers,omitempty"`
	MarkdownPath  string             `json:"-"`
	JSONPath      string             `json:"-"`
}

// HasErrors reports whether any ERROR-severity check failed.
func (r *SanityReport) HasErrors() bool {
	for _, c := range r.Checks {
		if c.Severity == SeverityError && !c.Pass {
			return true
		}
	}
	return false
}

// Column synonym maps per export file, canonical name → accepted
// spellings (canonical first). Resolution is case-insensitive.
var factSynonyms = map[string][]string{
	"year_num":           {"year_num", "year"},
	"state_cnty_fips_cd": {"state_cnty_fips_cd", "fips", "county_fips", "state_county_fips_cd"},
	"naics2_sector_cd":   {"naics2_sector_cd", "naics2", "sector_cd", "naics_sector_cd"},
}

var countySynonyms = map[string][]string{
	"state_cnty_fips_cd": {"state_cnty_fips_cd", "fips", "geoid", "county_fips"},
}

var naicsSynonyms = map[string][]string{
	"naics2_sector_cd": {"naics2_sector_cd", "naics2", "sector_cd", "naics_cd"},
}

// Dollar metrics sampled for per-year outliers.
var sanityDollarColumns = []string{
	"abs_payroll_usd_amt",
	"abs_rcpt_usd_amt",
	"qcew_ttl_ann_wage_usd_amt",
}

var scientificRe = regexp.MustCompile(`(?i)^-?\d+(\.\d+)?e[+-]?\d+$`)

// SanityChecker runs the pre-handoff export validation.
type SanityChecker struct {
	log zerolog.Logger
}

// NewSanityChecker builds a checker that logs under the qa component.
func NewSanityChecker() *SanityChecker {
	return &SanityChecker{log: logging.With().Str("component", "qa").Logger()}
}

// Run validates the export CSVs and writes the markdown and JSON reports.
// A failing ERROR check does not error here; the caller inspects
// HasErrors so the CLI can exit nonzero after the reports are written.
func (c *SanityChecker) Run(_ context.Context, cfg SanityConfig) (*SanityReport, error) {
	cfg = withSanityDefaults(cfg)

	report := &SanityReport{
		RunID: time.Now().Format(constants.TimeFormatRunID),
		Inputs: map[string]string{
			"fact":   cfg.FactCSV,
			"county": cfg.CountyCSV,
			"naics":  cfg.NaicsCSV,
		},
		KeyStats:  map[string]int{},
		NullRates: map[string]float64{},
	}

	factRows := c.checkFile(report, "fact", cfg.FactCSV, factSynonyms)
	countyRows := c.checkFile(report, "county", cfg.CountyCSV, countySynonyms)
	naicsRows := c.checkFile(report, "naics", cfg.NaicsCSV, naicsSynonyms)

	if factRows != nil {
		c.checkFactContent(report, cfg, factRows)
		if countyRows != nil {
			c.checkJoin(report, "fact_to_county", factRows, countyRows, "state_cnty_fips_cd", countySynonyms)
		}
		if naicsRows != nil {
			c.checkJoin(report, "fact_to_naics", factRows, naicsRows, "naics2_sector_cd", naicsSynonyms)
		}
	}

	mdPath := filepath.Join(cfg.OutDir, fmt.Sprintf("export_sanity_report_%s.md", report.RunID))
	jsonPath := filepath.Join(cfg.OutDir, fmt.Sprintf("export_sanity_report_%s.json", report.RunID))
	if err := c.writeMarkdown(mdPath, report); err != nil {
		return nil, err
	}
	if err := writeJSON(jsonPath, report); err != nil {
		return nil, err
	}
	report.MarkdownPath = mdPath
	report.JSONPath = jsonPath

	c.log.Info().Str("run_id", report.RunID).Bool("errors", report.HasErrors()).
		Int("checks", len(report.Checks)).Msg("[QA SANITY] Sanity check complete")
	return report, nil
}

// checkFile runs the structural checks for one export and returns its rows
// with columns renamed to canonical names, or nil when the file is
// unusable for content checks.
func (c *SanityChecker) checkFile(report *SanityReport, label, path string, synonyms map[string][]string) []map[string]string {
	info, err := os.Stat(path)
	if err != nil {
		c.add(report, label+"_exists", SeverityError, false, fmt.Sprintf("%s: %v", path, err))
		return nil
	}
	c.add(report, label+"_exists", SeverityError, true, path)

	if info.Size() == 0 {
		c.add(report, label+"_non_empty", SeverityError, false, "file is empty")
		return nil
	}
	c.add(report, label+"_non_empty", SeverityError, true, fmt.Sprintf("%d bytes", info.Size()))

	header, rows, err := artifacts.ReadCSV(path)
	if err != nil {
		c.add(report, label+"_parses", SeverityError, false, err.Error())
		return nil
	}
	c.add(report, label+"_parses", SeverityError, true, fmt.Sprintf("%d rows", len(rows)))
	report.KeyStats[label+"_rows"] = len(rows)

	if len(header) <= 1 {
		c.add(report, label+"_columns", SeverityError, false, "fewer than two columns; wrong delimiter?")
		return nil
	}
	seen := map[string]bool{}
	headersOK := true
	for _, col := range header {
		if strings.TrimSpace(col) == "" || seen[strings.ToLower(col)] {
			headersOK = false
			break
		}
		seen[strings.ToLower(col)] = true
	}
	c.add(report, label+"_headers", SeverityError, headersOK, "headers non-empty and unique")

	resolved, missing := resolveSynonyms(header, synonyms)
	if len(missing) > 0 {
		c.add(report, label+"_canonical_columns", SeverityError, false,
			"unresolved canonical columns: "+strings.Join(missing, ", "))
		return nil
	}
	c.add(report, label+"_canonical_columns", SeverityError, true, "all canonical columns resolved")

	// Rewrite rows to canonical names so downstream checks are uniform.
	for _, row := range rows {
		for canonical, raw := range resolved {
			if canonical == raw {
				continue
			}
			if v, ok := row[raw]; ok {
				row[canonical] = v
			}
		}
	}
	return rows
}

func (c *SanityChecker) checkFactContent(report *SanityReport, cfg SanityConfig, rows []map[string]string) {
	badFIPS, badYear, nullSector, badSector := 0, 0, 0, 0
	negCounts, negDollars, partialAbs, scientific := 0, 0, 0, 0
	years := map[int]map[string]bool{}
	keyCounts := map[string]int{}

	for _, row := range rows {
		fips := strings.TrimSpace(row["state_cnty_fips_cd"])
		if !econ.ValidFIPS(fips) {
			badFIPS++
		}
		yearV, _ := econ.ParseNumeric(row["year_num"])
		if yearV == nil || *yearV != math.Trunc(*yearV) {
			badYear++
		} else {
			year := int(*yearV)
			if years[year] == nil {
				years[year] = map[string]bool{}
			}
			years[year][fips] = true
		}

		sector := strings.TrimSpace(row["naics2_sector_cd"])
		if sector == "" {
			nullSector++
		} else if !econ.ValidSectors[sector] && !econ.FactSectors[sector] {
			badSector++
		}

		key := fmt.Sprintf("%s|%s|%s", row["year_num"], fips, sector)
		keyCounts[key]++

		for _, col := range []string{"abs_firm_num", "abs_emp_num"} {
			if v, _ := econ.ParseNumeric(row[col]); v != nil && *v < 0 {
				negCounts++
			}
		}
		for _, col := range sanityDollarColumns {
			if v, _ := econ.ParseNumeric(row[col]); v != nil && *v < 0 {
				negDollars++
			}
		}
		hasFirms := rowHasValue(row, "abs_firm_num")
		hasEmp := rowHasValue(row, "abs_emp_num")
		if hasFirms != hasEmp {
			partialAbs++
		}
		for _, cell := range row {
			if scientificRe.MatchString(strings.TrimSpace(cell)) {
				scientific++
				break
			}
		}
	}

	c.add(report, "fact_fips_format", SeverityError, badFIPS == 0, fmt.Sprintf("%d rows with malformed FIPS", badFIPS))
	c.add(report, "fact_year_integer", SeverityError, badYear == 0, fmt.Sprintf("%d rows with non-integer year", badYear))
	c.add(report, "fact_sector_non_null", SeverityError, nullSector == 0, fmt.Sprintf("%d rows with empty sector", nullSector))
	c.add(report, "fact_sector_allowlist", SeverityWarn, badSector == 0, fmt.Sprintf("%d rows with unexpected sector codes", badSector))
	c.add(report, "fact_negative_counts", SeverityError, negCounts == 0, fmt.Sprintf("%d negative firm/employment values", negCounts))
	c.add(report, "fact_negative_dollars", SeverityWarn, negDollars == 0, fmt.Sprintf("%d negative dollar values", negDollars))
	c.add(report, "fact_partial_abs_rows", SeverityWarn, partialAbs == 0, fmt.Sprintf("%d rows with partial ABS metrics", partialAbs))
	c.add(report, "fact_scientific_notation", SeverityWarn, scientific == 0, fmt.Sprintf("%d rows containing scientific-notation cells", scientific))

	missingYears := []string{}
	for _, year := range cfg.ExpectedYears {
		if len(years[year]) == 0 {
			missingYears = append(missingYears, fmt.Sprintf("%d", year))
		}
	}
	c.add(report, "fact_expected_years", SeverityWarn, len(missingYears) == 0,
		"missing years: "+strings.Join(missingYears, ", "))
	for year, counties := range years {
		report.KeyStats[fmt.Sprintf("counties_%d", year)] = len(counties)
	}

	dupes := 0
	for key, count := range keyCounts {
		if count > 1 {
			dupes++
			if len(report.DuplicateKeys) < 10 {
				report.DuplicateKeys = append(report.DuplicateKeys, key)
			}
		}
	}
	sort.Strings(report.DuplicateKeys)
	c.add(report, "fact_duplicate_keys", SeverityError, dupes == 0, fmt.Sprintf("%d duplicated keys", dupes))

	c.nullRates(report, rows)
	c.sampleOutliers(report, cfg, rows)
}

func (c *SanityChecker) nullRates(report *SanityReport, rows []map[string]string) {
	if len(rows) == 0 {
		return
	}
	nonNumeric := 0
	for _, col := range factMetricColumns {
		nulls := 0
		for _, row := range rows {
			v, note := econ.ParseNumeric(row[col])
			if v == nil {
				nulls++
				if note == econ.NoteSourceNonNumeric {
					nonNumeric++
				}
			}
		}
		report.NullRates[col] = float64(nulls) / float64(len(rows))
	}
	c.add(report, "fact_non_numeric_cells", SeverityWarn, nonNumeric == 0,
		fmt.Sprintf("%d non-numeric metric cells", nonNumeric))
}

func (c *SanityChecker) sampleOutliers(report *SanityReport, cfg SanityConfig, rows []map[string]string) {
	type sample struct {
		year  string
		key   string
		col   string
		value float64
	}
	byYearCol := map[string][]sample{}
	for _, row := range rows {
		for _, col := range sanityDollarColumns {
			if v, _ := econ.ParseNumeric(row[col]); v != nil {
				group := row["year_num"] + "/" + col
				byYearCol[group] = append(byYearCol[group], sample{
					year:  row["year_num"],
					key:   row["state_cnty_fips_cd"] + " " + row["naics2_sector_cd"],
					col:   col,
					value: *v,
				})
			}
		}
	}
	groups := make([]string, 0, len(byYearCol))
	for group := range byYearCol {
		groups = append(groups, group)
	}
	sort.Strings(groups)
	for _, group := range groups {
		samples := byYearCol[group]
		sort.Slice(samples, func(i, j int) bool { return samples[i].value > samples[j].value })
		top := cfg.OutlierTop
		if len(samples) < top {
			top = len(samples)
		}
		for _, s := range samples[:top] {
			report.Outliers = append(report.Outliers,
				fmt.Sprintf("%s %s %s = %s", s.year, s.key, s.col, reports.FormatUSD(&s.value)))
		}
	}
}

func (c *SanityChecker) checkJoin(report *SanityReport, name string, factRows, refRows []map[string]string, key string, refSynonyms map[string][]string) {
	refKeys := map[string]bool{}
	for _, row := range refRows {
		refKeys[strings.TrimSpace(row[key])] = true
	}

	factKeys := map[string]bool{}
	missing := 0
	for _, row := range factRows {
		v := strings.TrimSpace(row[key])
		factKeys[v] = true
		if !refKeys[v] {
			missing++
			if len(report.MissingJoins) < 10 {
				report.MissingJoins = append(report.MissingJoins, name+": "+v)
			}
		}
	}
	extra := 0
	for v := range refKeys {
		if !factKeys[v] {
			extra++
		}
	}

	c.add(report, name+"_coverage", SeverityError, missing == 0,
		fmt.Sprintf("%d fact rows with no %s match", missing, name))
	c.add(report, name+"_extra_keys", SeverityWarn, extra == 0,
		fmt.Sprintf("%d reference keys unused by the fact table", extra))
}

func (c *SanityChecker) writeMarkdown(path string, report *SanityReport) error {
	return reports.Write(path, func(doc *md.Markdown) {
		doc.H1("Export Sanity Report").LF()
		doc.PlainTextf("Run ID: %s", report.RunID).LF()

		doc.H2("Inputs")
		inputs := make([]string, 0, len(report.Inputs))
		for label, path := range report.Inputs {
			inputs = append(inputs, label+": "+path)
		}
		sort.Strings(inputs)
		doc.BulletList(inputs...).LF()

		passed, failed := 0, 0
		for _, check := range report.Checks {
			if check.Pass {
				passed++
			} else {
				failed++
			}
		}
		doc.H2("Summary")
		doc.PlainTextf("%d checks passed, %d failed.", passed, failed).LF()

		doc.H2("Key stats")
		stats := make([]string, 0, len(report.KeyStats))
		for name, v := range report.KeyStats {
			stats = append(stats, fmt.Sprintf("%s: %d", name, v))
		}
		sort.Strings(stats)
		doc.BulletList(stats...).LF()

		if len(report.DuplicateKeys) > 0 {
			doc.H2("Duplicate keys")
			doc.BulletList(report.DuplicateKeys...).LF()
		}
		if len(report.MissingJoins) > 0 {
			doc.H2("Missing joins")
			doc.BulletList(report.MissingJoins...).LF()
		}

		doc.H2("Null rates")
		nullRows := make([][]string, 0, len(report.NullRates))
		for _, col := range factMetricColumns {
			if rate, ok := report.NullRates[col]; ok {
				nullRows = append(nullRows, []string{col, reports.FormatPct(&rate)})
			}
		}
		doc.Table(md.TableSet{
			Header: []string{"Column", "Null rate"},
			Rows:   nullRows,
		}).LF()

		if len(report.Outliers) > 0 {
			doc.H2("Sample outliers")
			doc.BulletList(report.Outliers...).LF()
		}

		doc.H2("Check details")
		checkRows := make([][]string, 0, len(report.Checks))
		for _, check := range report.Checks {
			verdict := "PASS"
			if !check.Pass {
				verdict = "FAIL"
			}
			checkRows = append(checkRows, []string{check.Name, string(check.Severity), verdict, check.Detail})
		}
		doc.Table(md.TableSet{
			Header: []string{"Check", "Severity", "Result", "Detail"},
			Rows:   checkRows,
		})
	})
}

func (c *SanityChecker) add(report *SanityReport, name string, severity Severity, pass bool, detail string) {
	report.Checks = append(report.Checks, Check{Name: name, Severity: severity, Pass: pass, Detail: detail})
	if !pass {
		event := c.log.Warn()
		if severity == SeverityError {
			event = c.log.Error()
		}
		event.Str("check", name).Msg("[QA SANITY] " + detail)
	}
}

func resolveSynonyms(header []string, synonyms map[string][]string) (map[string]string, []string) {
	lower := make(map[string]string, len(header))
	for _, col := range header {
		lower[strings.ToLower(strings.TrimSpace(col))] = col
	}
	resolved := map[string]string{}
	var missing []string
	for canonical, opts := range synonyms {
		found := false
		for _, opt := range opts {
			if raw, ok := lower[opt]; ok {
				resolved[canonical] = raw
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, canonical)
		}
	}
	sort.Strings(missing)
	return resolved, missing
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), constants.DirPermissions); err != nil {
		return errors.WrapIO("create", filepath.Dir(path), err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.WrapIO("write", path, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), constants.FilePermissions); err != nil {
		return errors.WrapIO("write", path, err)
	}
	return nil
}

func withSanityDefaults(cfg SanityConfig) SanityConfig {
	if cfg.OutDir == "" {
		cfg.OutDir = constants.DefaultReportsDir
	}
	if len(cfg.ExpectedYears) == 0 {
		cfg.ExpectedYears = []int{2022, 2023}
	}
	if cfg.OutlierTop == 0 {
		cfg.OutlierTop = 10
	}
	return cfg
}
