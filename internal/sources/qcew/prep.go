package qcew

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rdmdatalab/econbench/internal/artifacts"
	"github.com/rdmdatalab/econbench/pkg/constants"
	"github.com/rdmdatalab/econbench/pkg/econ"
	"github.com/rdmdatalab/econbench/pkg/errors"
	"github.com/rdmdatalab/econbench/pkg/logging"
	"github.com/rdmdatalab/econbench/pkg/reconcile"
)

// Default locations for prep outputs. Raw singlefiles land per year from
// the BLS open data portal; cleaned outputs feed the warehouse load.
const (
	DefaultPerYearPattern = "data_clean/qcew/econ_bnchmrk_qcew_{year}.csv"
	DefaultStackedOut     = "data_clean/qcew/econ_bnchmrk_qcew_multiyear.csv"
)

// The benchmark covers private ownership at the county × NAICS sector
// aggregation level only. Anything else would double-count state totals or
// re-add the detail records the roll-up absorbs.
const (
	privateOwnership  = "5"
	countySectorLevel = "74"
)

// PrepConfig drives a multi-year QCEW prep run. SingleRaw overrides the
// template when exactly one year is requested, which keeps test fixtures
// and ad-hoc reruns away from the template layout. An empty StackedOut
// skips the combined output.
type PrepConfig struct {
	Years          []int
	RawTemplate    string
	PerYearPattern string
	StackedOut     string
	SingleRaw      string
}

// PrepColumns is the cleaned benchmark column order, matching the
// econ_bnchmrk_qcew warehouse schema.
var PrepColumns = []string{
	"year_num",
	"naics2_sector_cd",
	"state_cnty_fips_cd",
	"state_fips_cd",
	"cnty_fips_cd",
	"own_cd",
	"qcew_ann_avg_emp_lvl_num",
	"qcew_ttl_ann_wage_usd_amt",
	"qcew_avg_wkly_wage_usd_amt",
}

// PrepRow is one aggregated county × sector benchmark row. The weekly wage
// is recomputed from the summed totals and is nil when employment is zero.
type PrepRow struct {
	Year             int
	Sector           string
	FIPS             string
	StateFIPS        string
	CountyFIPS       string
	OwnCode          string
	Emp              float64
	WagesUSD         float64
	AvgWeeklyWageUSD *float64
}

// Cells renders the row in PrepColumns order.
func (r PrepRow) Cells() []string {
	return []string{
		artifacts.FormatInt(r.Year),
		r.Sector,
		r.FIPS,
		r.StateFIPS,
		r.CountyFIPS,
		r.OwnCode,
		artifacts.FormatFloat(&r.Emp),
		artifacts.FormatFloat(&r.WagesUSD),
		artifacts.FormatFloat(r.AvgWeeklyWageUSD),
	}
}

// Prep runs the QCEW prep pipeline.
type Prep struct {
	log zerolog.Logger
}

// NewPrep returns a prep pipeline logging under the qcew component.
func NewPrep() *Prep {
	return &Prep{log: logging.With().Str("component", "qcew").Logger()}
}

// Run prepares each configured year and stacks the combined multiyear
// output. Duplicate keys in the stack are fatal because the warehouse load
// would silently overwrite them.
func (p *Prep) Run(ctx context.Context, cfg PrepConfig) error {
	cfg = withPrepDefaults(cfg)

	var combined []PrepRow
	for _, year := range cfg.Years {
		if err := ctx.Err(); err != nil {
			return err
		}

		rawPath := ExpandYear(cfg.RawTemplate, year)
		if cfg.SingleRaw != "" && len(cfg.Years) == 1 {
			rawPath = cfg.SingleRaw
		}
		p.log.Info().
			Str("path", rawPath).
			Int("year", year).
			Msg("[QCEW] Loading raw singlefile")

		rows, err := p.prepareYear(rawPath, year)
		if err != nil {
			return err
		}

		perYear := ExpandYear(cfg.PerYearPattern, year)
		if err := artifacts.WriteCSV(perYear, PrepColumns, prepRecords(rows)); err != nil {
			return err
		}
		p.log.Info().
			Str("path", perYear).
			Int("rows", len(rows)).
			Msg("[QCEW] Wrote per-year benchmark")
		combined = append(combined, rows...)
	}

	if cfg.StackedOut == "" {
		return nil
	}
	if dupes := countDuplicateKeys(combined); dupes > 0 {
		return errors.NewValidationError("combined", dupes,
			fmt.Sprintf("found %d duplicate rows in combined QCEW output", dupes))
	}
	if err := artifacts.WriteCSV(cfg.StackedOut, PrepColumns, prepRecords(combined)); err != nil {
		return err
	}
	p.log.Info().
		Str("path", cfg.StackedOut).
		Int("rows", len(combined)).
		Msg("[QCEW] Wrote combined dataset")
	return nil
}

// prepareYear loads one raw singlefile and rolls it up to the private
// county × sector grain. Suppressed or non-numeric metric cells contribute
// nothing to the group sums.
func (p *Prep) prepareYear(path string, year int) ([]PrepRow, error) {
	header, records, err := artifacts.ReadCSV(path)
	if err != nil {
		return nil, err
	}
	resolved, err := resolveColumns(header)
	if err != nil {
		return nil, err
	}

	type totals struct {
		emp   float64
		wages float64
	}
	sums := make(map[econ.Key]*totals)

	want := strconv.Itoa(year)
	for _, record := range records {
		if fieldText(record, resolved, colYear) != want {
			continue
		}
		if qtr := field(record, resolved, colQtr); qtr != nil && strings.ToUpper(strings.TrimSpace(*qtr)) != "A" {
			continue
		}
		if own := field(record, resolved, colOwn); own != nil && strings.TrimSpace(*own) != privateOwnership {
			continue
		}
		if fieldText(record, resolved, colAggLevel) != countySectorLevel {
			continue
		}
		fips := econ.PadFIPS(fieldText(record, resolved, colArea))
		if len(fips) != 5 {
			continue
		}
		sector := econ.NormalizeSector(fieldText(record, resolved, colIndustry))
		if !econ.ValidSectors[sector] {
			continue
		}

		key := econ.Key{Year: year, FIPS: fips, Sector: sector}
		t := sums[key]
		if t == nil {
			t = &totals{}
			sums[key] = t
		}
		if v, _ := econ.ParseNumeric(fieldText(record, resolved, colEmp)); v != nil {
			t.emp += *v
		}
		if v, _ := econ.ParseNumeric(fieldText(record, resolved, colWages)); v != nil {
			t.wages += *v
		}
	}

	keys := make([]econ.Key, 0, len(sums))
	for key := range sums {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	rows := make([]PrepRow, 0, len(keys))
	for _, key := range keys {
		t := sums[key]
		state, county := econ.SplitFIPS(key.FIPS)
		row := PrepRow{
			Year:       key.Year,
			Sector:     key.Sector,
			FIPS:       key.FIPS,
			StateFIPS:  state,
			CountyFIPS: county,
			OwnCode:    privateOwnership,
			Emp:        t.emp,
			WagesUSD:   t.wages,
		}
		// Recompute the weekly wage from the summed totals so the ratio
		// stays consistent with the aggregate employment counts.
		if t.emp > 0 {
			w := econ.Round(t.wages/(t.emp*constants.WeeksPerYear), constants.NumericPrecision)
			row.AvgWeeklyWageUSD = &w
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func prepRecords(rows []PrepRow) [][]string {
	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.Cells())
	}
	return records
}

// countDuplicateKeys counts stacked rows whose (year, fips, sector) key has
// already appeared.
func countDuplicateKeys(rows []PrepRow) int {
	seen := make(map[econ.Key]bool, len(rows))
	dupes := 0
	for _, row := range rows {
		key := econ.Key{Year: row.Year, FIPS: row.FIPS, Sector: row.Sector}
		if seen[key] {
			dupes++
			continue
		}
		seen[key] = true
	}
	return dupes
}

func withPrepDefaults(cfg PrepConfig) PrepConfig {
	if len(cfg.Years) == 0 {
		cfg.Years = append([]int(nil), reconcile.DefaultYears...)
	}
	if cfg.RawTemplate == "" {
		cfg.RawTemplate = reconcile.DefaultQcewRawTemplate
	}
	if cfg.PerYearPattern == "" {
		cfg.PerYearPattern = DefaultPerYearPattern
	}
	return cfg
}
