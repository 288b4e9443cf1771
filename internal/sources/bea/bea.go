// Package bea tidies the BEA CAGDP2 county GDP extract into the cleaned
// CSV the warehouse loads. CAGDP2 ships latin-1 encoded with wide year
// columns; the tidy keeps the requested vintages, scales $1k units to whole
// USD, and drops fully suppressed rows.
package bea

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/rdmdatalab/econbench/internal/artifacts"
	"github.com/rdmdatalab/econbench/pkg/constants"
	"github.com/rdmdatalab/econbench/pkg/econ"
	"github.com/rdmdatalab/econbench/pkg/errors"
	"github.com/rdmdatalab/econbench/pkg/logging"
)

// DefaultOutCSV is where the cleaned GDP table lands.
const DefaultOutCSV = "data_clean/bea/gdp_bea.csv"

// DefaultYears are the GDP vintages retained, newest first.
var DefaultYears = []int{2022, 2021, 2020}

// Raw CAGDP2 column names.
const (
	rawGeoFIPS  = "GeoFIPS"
	rawLineCode = "LineCode"
	rawIndustry = "IndustryClassification"
	rawDesc     = "Description"
)

// suppressionTokens are BEA's withheld-cell markers, counted before the
// numeric conversion turns them into nil.
var suppressionTokens = map[string]bool{
	"(D)":  true,
	"(NA)": true,
}

// Config drives one CAGDP2 tidy run.
type Config struct {
	RawCSV string
	Years  []int
	OutCSV string
}

// Row is one tidied county × line GDP row. GDP values are whole USD; nil
// marks a suppressed or non-numeric cell.
type Row struct {
	FIPS       string
	LineCode   string
	SectorCode string
	SectorDesc string
	GDP        map[int]*float64
}

// GDPColumn names the cleaned GDP column for a year.
func GDPColumn(year int) string {
	return fmt.Sprintf("%d_gdp_num", year)
}

// Columns is the cleaned column order for the requested years.
func Columns(years []int) []string {
	cols := []string{
		"state_county_fips_cd",
		"line_cd",
		"naics_sector_cd",
		"naics_sector_desc",
	}
	for _, year := range years {
		cols = append(cols, GDPColumn(year))
	}
	return cols
}

// Cells renders the row in Columns order.
func (r Row) Cells(years []int) []string {
	cells := []string{r.FIPS, r.LineCode, r.SectorCode, r.SectorDesc}
	for _, year := range years {
		cells = append(cells, artifacts.FormatFloat(r.GDP[year]))
	}
	return cells
}

// Prep tidies CAGDP2 extracts.
type Prep struct {
	log zerolog.Logger
}

// NewPrep returns a tidy pipeline logging under the bea component.
func NewPrep() *Prep {
	return &Prep{log: logging.With().Str("component", "bea").Logger()}
}

// Run tidies the raw extract and writes the cleaned CSV. Duplicate keys and
// negative GDP fail the run.
func (p *Prep) Run(ctx context.Context, cfg Config) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cfg = withDefaults(cfg)
	if cfg.RawCSV == "" {
		return errors.NewConfigError("bea", "raw CAGDP2 path is required", nil)
	}

	header, records, err := readLatin1CSV(cfg.RawCSV)
	if err != nil {
		return err
	}

	suppressed := countSuppressed(records, cfg.Years)
	rows, err := tidy(header, records, cfg.Years)
	if err != nil {
		return err
	}
	if err := qualityChecks(rows, cfg.Years); err != nil {
		return err
	}

	if err := artifacts.WriteCSV(cfg.OutCSV, Columns(cfg.Years), cells(rows, cfg.Years)); err != nil {
		return err
	}
	p.log.Info().
		Str("path", cfg.OutCSV).
		Int("rows", len(rows)).
		Int("suppressed_tokens", suppressed).
		Msg("Wrote cleaned county GDP table")
	return nil
}

// readLatin1CSV decodes the latin-1 extract before CSV parsing.
func readLatin1CSV(path string) ([]string, []map[string]string, error) {
	f, err := os.Open(path) //nolint:gosec // Raw paths are operator-controlled
	if err != nil {
		return nil, nil, errors.WrapIO("open", path, err)
	}
	defer func() { _ = f.Close() }()

	dec := transform.NewReader(f, charmap.ISO8859_1.NewDecoder())
	return artifacts.ReadCSVFrom(dec, path)
}

// tidy selects, renames, and cleans the GDP columns for the requested years,
// preserving the raw file's row order.
func tidy(header []string, records []map[string]string, years []int) ([]Row, error) {
	present := make(map[string]bool, len(header))
	for _, col := range header {
		present[col] = true
	}
	var missing []string
	for _, col := range []string{rawGeoFIPS, rawLineCode, rawIndustry, rawDesc} {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	for _, year := range years {
		if !present[strconv.Itoa(year)] {
			missing = append(missing, strconv.Itoa(year))
		}
	}
	if len(missing) > 0 {
		return nil, errors.NewValidationError("columns", missing,
			fmt.Sprintf("BEA file missing expected columns: %s", strings.Join(missing, ", ")))
	}

	rows := make([]Row, 0, len(records))
	for _, record := range records {
		// GeoFIPS arrives quoted and padded in the raw extract.
		fips := strings.TrimSpace(strings.ReplaceAll(record[rawGeoFIPS], `"`, ""))
		fips = econ.PadFIPS(fips)
		if len(fips) != 5 || fips == "00000" {
			continue
		}

		row := Row{
			FIPS:       fips,
			LineCode:   record[rawLineCode],
			SectorCode: record[rawIndustry],
			SectorDesc: record[rawDesc],
			GDP:        make(map[int]*float64, len(years)),
		}
		allNil := true
		for _, year := range years {
			v, _ := econ.ParseNumeric(record[strconv.Itoa(year)])
			if v != nil {
				scaled := *v * constants.ThousandsScale
				row.GDP[year] = &scaled
				allNil = false
			}
		}
		// A row with every vintage suppressed carries no information.
		if allNil {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// qualityChecks fails on duplicate (fips, line, sector) keys and on negative
// GDP in any retained vintage.
func qualityChecks(rows []Row, years []int) error {
	var issues []string

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.FIPS+"|"+row.LineCode+"|"+row.SectorCode]++
	}
	dupes := 0
	for _, n := range counts {
		if n > 1 {
			dupes += n
		}
	}
	if dupes > 0 {
		issues = append(issues, fmt.Sprintf(
			"found %d duplicate rows for key (state_county_fips_cd, line_cd, naics_sector_cd)", dupes))
	}

	for _, year := range years {
		for _, row := range rows {
			if v := row.GDP[year]; v != nil && *v < 0 {
				issues = append(issues, fmt.Sprintf("negative GDP detected in column %s", GDPColumn(year)))
				break
			}
		}
	}

	if len(issues) > 0 {
		return errors.NewValidationError("gdp", issues,
			fmt.Sprintf("data quality checks failed: %s", strings.Join(issues, "; ")))
	}
	return nil
}

// countSuppressed counts suppression tokens in the raw year columns before
// conversion.
func countSuppressed(records []map[string]string, years []int) int {
	total := 0
	for _, record := range records {
		for _, year := range years {
			if suppressionTokens[record[strconv.Itoa(year)]] {
				total++
			}
		}
	}
	return total
}

func cells(rows []Row, years []int) [][]string {
	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.Cells(years))
	}
	return records
}

func withDefaults(cfg Config) Config {
	if len(cfg.Years) == 0 {
		cfg.Years = append([]int(nil), DefaultYears...)
	}
	if cfg.OutCSV == "" {
		cfg.OutCSV = DefaultOutCSV
	}
	return cfg
}
