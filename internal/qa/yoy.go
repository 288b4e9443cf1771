package qa

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	md "github.com/nao1215/markdown"
	"github.com/rs/zerolog"

	"github.com/rdmdatalab/econbench/internal/artifacts"
	"github.com/rdmdatalab/econbench/internal/reports"
	"github.com/rdmdatalab/econbench/internal/warehouse"
	"github.com/rdmdatalab/econbench/pkg/constants"
	"github.com/rdmdatalab/econbench/pkg/econ"
	"github.com/rdmdatalab/econbench/pkg/errors"
	"github.com/rdmdatalab/econbench/pkg/logging"
)

// RollupSource is the warehouse surface the YoY summary reads from.
type RollupSource interface {
	DiscoverColumns(ctx context.Context, table string) ([]warehouse.Column, error)
	SectorRollups(ctx context.Context, table string, cols warehouse.YoyColumns, years []int) ([]warehouse.RollupRow, error)
	NationalTotals(ctx context.Context, table string, cols warehouse.YoyColumns, years []int) ([]warehouse.RollupRow, error)
}

// YoyConfig drives one year-over-year summary. Years must hold exactly the
// two years to compare.
type YoyConfig struct {
	Table  string
	Years  []int
	OutDir string
}

// Metric column preference lists, canonical name first. Older exports used
// unprefixed names; discovery picks whichever the live table has.
var yoySynonyms = map[string][]string{
	"firms":       {"abs_firm_num", "firm_num", "firms_num"},
	"emp":         {"abs_emp_num", "emp_num"},
	"payroll":     {"abs_payroll_usd_amt", "payroll_usd_amt", "ann_payroll_usd_amt"},
	"receipts":    {"abs_rcpt_usd_amt", "rcpt_usd_amt", "receipts_usd_amt"},
	"qcew_emp":    {"qcew_ann_avg_emp_lvl_num", "ann_avg_emp_lvl_num"},
	"qcew_wages":  {"qcew_ttl_ann_wage_usd_amt", "ttl_ann_wage_usd_amt"},
	"weekly_wage": {"qcew_avg_wkly_wage_usd_amt", "avg_wkly_wage_usd_amt"},
}

// yoyMetric is one reported metric with its accessor into a rollup row.
type yoyMetric struct {
	name   string
	dollar bool
	get    func(warehouse.RollupRow) *float64
}

var yoyMetrics = []yoyMetric{
	{"abs_firms", false, func(r warehouse.RollupRow) *float64 { return r.Firms }},
	{"abs_emp", false, func(r warehouse.RollupRow) *float64 { return r.Emp }},
	{"abs_payroll_usd", true, func(r warehouse.RollupRow) *float64 { return r.PayrollUSD }},
	{"abs_receipts_usd", true, func(r warehouse.RollupRow) *float64 { return r.ReceiptsUSD }},
	{"qcew_emp", false, func(r warehouse.RollupRow) *float64 { return r.QcewEmp }},
	{"qcew_wages_usd", true, func(r warehouse.RollupRow) *float64 { return r.QcewWagesUSD }},
	{"qcew_weekly_wage_usd", true, func(r warehouse.RollupRow) *float64 { return r.WeeklyWageUSD }},
}

// yoyRatio is one derived ratio compared across the two years.
type yoyRatio struct {
	name string
	get  func(warehouse.RollupRow) *float64
}

var yoyRatios = []yoyRatio{
	{"abs_wage_per_emp_usd", func(r warehouse.RollupRow) *float64 { return econ.SafeDivide(r.PayrollUSD, r.Emp) }},
	{"abs_rcpt_per_emp_usd", func(r warehouse.RollupRow) *float64 { return econ.SafeDivide(r.ReceiptsUSD, r.Emp) }},
	{"abs_rcpt_per_firm_usd", func(r warehouse.RollupRow) *float64 { return econ.SafeDivide(r.ReceiptsUSD, r.Firms) }},
	{"qcew_wage_per_emp_usd", func(r warehouse.RollupRow) *float64 { return econ.SafeDivide(r.QcewWagesUSD, r.QcewEmp) }},
	{"emp_ratio_abs_to_qcew", func(r warehouse.RollupRow) *float64 { return econ.SafeDivide(r.Emp, r.QcewEmp) }},
}

// YoySummary produces the year-over-year rollup artifacts.
type YoySummary struct {
	source RollupSource
	log    zerolog.Logger
}

// NewYoySummary builds a summary over the given rollup source.
func NewYoySummary(source RollupSource) *YoySummary {
	return &YoySummary{
		source: source,
		log:    logging.With().Str("component", "yoy").Logger(),
	}
}

// Run writes the three YoY artifact pairs: national totals, per-sector
// deltas, and derived-ratio deltas, each as CSV plus markdown.
func (y *YoySummary) Run(ctx context.Context, cfg YoyConfig) error {
	cfg = withYoyDefaults(cfg)
	if len(cfg.Years) != 2 {
		return errors.NewValidationError("years", cfg.Years, "year-over-year comparison needs exactly two years")
	}
	y0, y1 := cfg.Years[0], cfg.Years[1]
	if y0 > y1 {
		y0, y1 = y1, y0
	}

	cols, err := y.resolveColumns(ctx, cfg.Table)
	if err != nil {
		return err
	}
	y.log.Info().Int("from", y0).Int("to", y1).Str("table", cfg.Table).Msg("[YOY] Querying rollups")

	national, err := y.source.NationalTotals(ctx, cfg.Table, cols, []int{y0, y1})
	if err != nil {
		return err
	}
	sectors, err := y.source.SectorRollups(ctx, cfg.Table, cols, []int{y0, y1})
	if err != nil {
		return err
	}

	natByYear := map[int]warehouse.RollupRow{}
	for _, row := range national {
		natByYear[row.Year] = row
	}
	for _, year := range []int{y0, y1} {
		if _, ok := natByYear[year]; !ok {
			return errors.NewNotFoundError("fact rows for year", fmt.Sprintf("%d", year))
		}
	}

	if err := y.writeNational(cfg, y0, y1, natByYear[y0], natByYear[y1]); err != nil {
		return err
	}
	if err := y.writeSectorDeltas(cfg, y0, y1, sectors); err != nil {
		return err
	}
	if err := y.writeRatioDeltas(cfg, y0, y1, natByYear, sectors); err != nil {
		return err
	}
	y.log.Info().Str("outdir", cfg.OutDir).Msg("[YOY] Wrote year-over-year summaries")
	return nil
}

// resolveColumns maps the synonym preference lists onto the live table
// schema. Every metric must resolve; a fact table missing one is the
// wrong table.
func (y *YoySummary) resolveColumns(ctx context.Context, table string) (warehouse.YoyColumns, error) {
	var cols warehouse.YoyColumns
	discovered, err := y.source.DiscoverColumns(ctx, table)
	if err != nil {
		return cols, err
	}
	have := make(map[string]bool, len(discovered))
	for _, col := range discovered {
		have[strings.ToLower(col.Name)] = true
	}

	pick := func(metric string) (string, error) {
		for _, name := range yoySynonyms[metric] {
			if have[name] {
				return name, nil
			}
		}
		return "", errors.NewValidationError("column", metric,
			fmt.Sprintf("no column for %s in %s (tried %s)", metric, table, strings.Join(yoySynonyms[metric], ", ")))
	}

	if cols.Firms, err = pick("firms"); err != nil {
		return cols, err
	}
	if cols.Emp, err = pick("emp"); err != nil {
		return cols, err
	}
	if cols.PayrollUSD, err = pick("payroll"); err != nil {
		return cols, err
	}
	if cols.ReceiptsUSD, err = pick("receipts"); err != nil {
		return cols, err
	}
	if cols.QcewEmp, err = pick("qcew_emp"); err != nil {
		return cols, err
	}
	if cols.QcewWages, err = pick("qcew_wages"); err != nil {
		return cols, err
	}
	if cols.WeeklyWage, err = pick("weekly_wage"); err != nil {
		return cols, err
	}
	return cols, nil
}

func (y *YoySummary) writeNational(cfg YoyConfig, y0, y1 int, from, to warehouse.RollupRow) error {
	columns := []string{"metric", fmt.Sprintf("%d", y0), fmt.Sprintf("%d", y1), "delta", "pct_chg"}
	records := make([][]string, 0, len(yoyMetrics))
	mdRows := make([][]string, 0, len(yoyMetrics))
	for _, metric := range yoyMetrics {
		a, b := metric.get(from), metric.get(to)
		delta, pct := change(a, b)
		records = append(records, []string{
			metric.name,
			artifacts.FormatFloat(a),
			artifacts.FormatFloat(b),
			artifacts.FormatFloat(delta),
			artifacts.FormatFloat(pct),
		})
		format := reports.FormatInt
		if metric.dollar {
			format = reports.FormatUSD
		}
		mdRows = append(mdRows, []string{
			metric.name, format(a), format(b), format(delta), reports.FormatPct(pct),
		})
	}

	base := fmt.Sprintf("qa_rollup_totals_%d_%d", y0, y1)
	if err := artifacts.WriteCSV(filepath.Join(cfg.OutDir, base+".csv"), columns, records); err != nil {
		return err
	}
	return reports.Write(filepath.Join(cfg.OutDir, base+".md"), func(doc *md.Markdown) {
		doc.H1(fmt.Sprintf("National Totals %d vs %d", y0, y1)).LF()
		doc.PlainTextf("Table: `%s`", cfg.Table).LF()
		doc.Table(md.TableSet{
			Header: []string{"Metric", fmt.Sprintf("%d", y0), fmt.Sprintf("%d", y1), "Delta", "Change"},
			Rows:   mdRows,
		})
	})
}

func (y *YoySummary) writeSectorDeltas(cfg YoyConfig, y0, y1 int, rows []warehouse.RollupRow) error {
	bySector := groupBySector(rows)
	sectors := sortedSectors(bySector)

	columns := []string{"naics2_sector_cd", "metric", fmt.Sprintf("%d", y0), fmt.Sprintf("%d", y1), "delta", "pct_chg"}
	var records [][]string
	var mdRows [][]string
	for _, sector := range sectors {
		pair := bySector[sector]
		for _, metric := range yoyMetrics {
			a, b := metric.get(pair[y0]), metric.get(pair[y1])
			delta, pct := change(a, b)
			records = append(records, []string{
				sector, metric.name,
				artifacts.FormatFloat(a), artifacts.FormatFloat(b),
				artifacts.FormatFloat(delta), artifacts.FormatFloat(pct),
			})
			format := reports.FormatInt
			if metric.dollar {
				format = reports.FormatUSD
			}
			mdRows = append(mdRows, []string{
				sector, metric.name, format(a), format(b), format(delta), reports.FormatPct(pct),
			})
		}
	}

	base := fmt.Sprintf("qa_naics2_deltas_%d_%d", y0, y1)
	if err := artifacts.WriteCSV(filepath.Join(cfg.OutDir, base+".csv"), columns, records); err != nil {
		return err
	}
	return reports.Write(filepath.Join(cfg.OutDir, base+".md"), func(doc *md.Markdown) {
		doc.H1(fmt.Sprintf("Sector Deltas %d vs %d", y0, y1)).LF()
		doc.Table(md.TableSet{
			Header: []string{"Sector", "Metric", fmt.Sprintf("%d", y0), fmt.Sprintf("%d", y1), "Delta", "Change"},
			Rows:   mdRows,
		})
	})
}

func (y *YoySummary) writeRatioDeltas(cfg YoyConfig, y0, y1 int, national map[int]warehouse.RollupRow, sectors []warehouse.RollupRow) error {
	bySector := groupBySector(sectors)
	order := append([]string{""}, sortedSectors(bySector)...)

	columns := []string{"naics2_sector_cd", "ratio", fmt.Sprintf("%d", y0), fmt.Sprintf("%d", y1), "delta", "pct_chg"}
	var records [][]string
	var mdRows [][]string
	for _, sector := range order {
		pair := bySector[sector]
		if sector == "" {
			pair = national
		}
		label := sector
		if label == "" {
			label = "ALL"
		}
		for _, ratio := range yoyRatios {
			a, b := ratio.get(pair[y0]), ratio.get(pair[y1])
			delta, pct := change(a, b)
			records = append(records, []string{
				label, ratio.name,
				artifacts.FormatFloat(a), artifacts.FormatFloat(b),
				artifacts.FormatFloat(delta), artifacts.FormatFloat(pct),
			})
			mdRows = append(mdRows, []string{
				label, ratio.name,
				reports.FormatFloat(a, 2), reports.FormatFloat(b, 2),
				reports.FormatFloat(delta, 2), reports.FormatPct(pct),
			})
		}
	}

	base := fmt.Sprintf("qa_ratio_deltas_%d_%d", y0, y1)
	if err := artifacts.WriteCSV(filepath.Join(cfg.OutDir, base+".csv"), columns, records); err != nil {
		return err
	}
	return reports.Write(filepath.Join(cfg.OutDir, base+".md"), func(doc *md.Markdown) {
		doc.H1(fmt.Sprintf("Ratio Deltas %d vs %d", y0, y1)).LF()
		doc.PlainText("ALL rows are the national aggregate.").LF()
		doc.Table(md.TableSet{
			Header: []string{"Sector", "Ratio", fmt.Sprintf("%d", y0), fmt.Sprintf("%d", y1), "Delta", "Change"},
			Rows:   mdRows,
		})
	})
}

// change returns (b - a) and the relative change, nil when either side is
// missing so half-covered sectors surface as gaps rather than zeros.
func change(a, b *float64) (delta, pct *float64) {
	if a == nil || b == nil {
		return nil, nil
	}
	d := *b - *a
	return &d, econ.SafeDivide(&d, a)
}

func groupBySector(rows []warehouse.RollupRow) map[string]map[int]warehouse.RollupRow {
	bySector := map[string]map[int]warehouse.RollupRow{}
	for _, row := range rows {
		if bySector[row.Sector] == nil {
			bySector[row.Sector] = map[int]warehouse.RollupRow{}
		}
		bySector[row.Sector][row.Year] = row
	}
	return bySector
}

func sortedSectors(bySector map[string]map[int]warehouse.RollupRow) []string {
	sectors := make([]string, 0, len(bySector))
	for sector := range bySector {
		sectors = append(sectors, sector)
	}
	sort.Strings(sectors)
	return sectors
}

func withYoyDefaults(cfg YoyConfig) YoyConfig {
	if cfg.Table == "" {
		cfg.Table = warehouse.FactTable
	}
	if cfg.OutDir == "" {
		cfg.OutDir = constants.DefaultReportsDir
	}
	return cfg
}
