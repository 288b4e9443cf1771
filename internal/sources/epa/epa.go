// Package epa aggregates the EPA Toxics Release Inventory 1A export into
// county × NAICS2 release totals. TRI locates facilities by state and county
// name rather than FIPS, so the pipeline resolves names against the
// Simplemaps county reference to attach the 5-digit codes the warehouse
// keys on.
package epa

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rdmdatalab/econbench/internal/artifacts"
	"github.com/rdmdatalab/econbench/pkg/errors"
	"github.com/rdmdatalab/econbench/pkg/logging"
)

// Default input and output locations for the TRI aggregation.
const (
	DefaultRawTXT        = "data_raw/us_series/US_1a_2022.txt"
	DefaultSimplemapsCSV = "data_raw/external/simplemaps/simplemaps_uscounties_basicv1.91/uscounties.csv"
	DefaultOutCSV        = "data_clean/tri/tri_epa.csv"
)

// Columns is the cleaned TRI output schema.
var Columns = []string{
	"state_cd",
	"cnty_nm",
	"state_cnty_fips_cd",
	"naics2_sector_cd",
	"tri_ttl_rls_lbs_amt",
}

// Config drives one TRI aggregation run.
type Config struct {
	RawTXT        string
	SimplemapsCSV string
	OutCSV        string
}

// Row is one county × sector release total in pounds, rounded to cents of a
// pound. FIPS is empty when the county name never matched the reference.
type Row struct {
	State      string
	County     string
	FIPS       string
	Sector     string
	ReleaseLbs float64
}

// Cells renders the row in Columns order.
func (r Row) Cells() []string {
	return []string{r.State, r.County, r.FIPS, r.Sector, artifacts.FormatFloat(&r.ReleaseLbs)}
}

// Prep aggregates TRI 1A exports.
type Prep struct {
	log zerolog.Logger
}

// NewPrep returns an aggregation pipeline logging under the tri component.
func NewPrep() *Prep {
	return &Prep{log: logging.With().Str("component", "tri").Logger()}
}

// Run aggregates the raw 1A export and writes the cleaned county totals.
// Unresolved county names keep an empty FIPS cell rather than dropping the
// releases they carry.
func (p *Prep) Run(ctx context.Context, cfg Config) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cfg = withDefaults(cfg)

	header, records, err := readRelease(cfg.RawTXT)
	if err != nil {
		return err
	}
	groups, err := aggregate(header, records)
	if err != nil {
		return err
	}

	lookup, err := loadCountyLookup(cfg.SimplemapsCSV)
	if err != nil {
		return err
	}
	rows := p.resolveFIPS(groups, lookup)
	if err := checkFormats(rows); err != nil {
		return err
	}

	if err := artifacts.WriteCSV(cfg.OutCSV, Columns, cells(rows)); err != nil {
		return err
	}
	p.log.Info().
		Str("path", cfg.OutCSV).
		Int("rows", len(rows)).
		Msg("Wrote county release totals")
	return nil
}

// checkFormats guards the output key grain: resolved FIPS codes are exactly
// five digits and sector codes exactly two.
func checkFormats(rows []Row) error {
	for _, row := range rows {
		if row.FIPS != "" && len(row.FIPS) != 5 {
			return errors.NewValidationError("state_cnty_fips_cd", row.FIPS,
				fmt.Sprintf("resolved county FIPS %q is not 5 digits", row.FIPS))
		}
		if len(row.Sector) != 2 {
			return errors.NewValidationError("naics2_sector_cd", row.Sector,
				fmt.Sprintf("sector code %q is not 2 digits", row.Sector))
		}
	}
	return nil
}

func cells(rows []Row) [][]string {
	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.Cells())
	}
	return records
}

func withDefaults(cfg Config) Config {
	if cfg.RawTXT == "" {
		cfg.RawTXT = DefaultRawTXT
	}
	if cfg.SimplemapsCSV == "" {
		cfg.SimplemapsCSV = DefaultSimplemapsCSV
	}
	if cfg.OutCSV == "" {
		cfg.OutCSV = DefaultOutCSV
	}
	return cfg
}
