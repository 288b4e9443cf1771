// Package reference builds the county reference table the merge and QA
// layers join against: Census Gazetteer geography plus synthetic rollup
// rows, optionally enriched with ACS county population.
package reference

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rdmdatalab/econbench/internal/artifacts"
	"github.com/rdmdatalab/econbench/pkg/econ"
	"github.com/rdmdatalab/econbench/pkg/errors"
	"github.com/rdmdatalab/econbench/pkg/logging"
)

// DefaultRefCSV is where the county reference table lives.
const DefaultRefCSV = "data_clean/reference/ref_state_cnty_uscb.csv"

// Columns is the reference schema in output order.
var Columns = []string{
	"state_cnty_fips_cd",
	"state_cd",
	"cnty_ansi_nm",
	"cnty_nm",
	"land_area_num",
	"water_area_num",
	"lat_num",
	"long_num",
}

// Raw Gazetteer column names, in the sorted order the missing-column error
// reports them.
var gazetteerColumns = []string{
	"ALAND", "ANSICODE", "AWATER", "GEOID", "INTPTLAT", "INTPTLONG", "NAME", "USPS",
}

// stateMetadata drives the synthetic rollup rows: the 50 states plus DC,
// PR, and VI.
var stateMetadata = []struct {
	fips   string
	postal string
	name   string
}{
	{"01", "AL", "Alabama"},
	{"02", "AK", "Alaska"},
	{"04", "AZ", "Arizona"},
	{"05", "AR", "Arkansas"},
	{"06", "CA", "California"},
	{"08", "CO", "Colorado"},
	{"09", "CT", "Connecticut"},
	{"10", "DE", "Delaware"},
	{"11", "DC", "District of Columbia"},
	{"12", "FL", "Florida"},
	{"13", "GA", "Georgia"},
	{"15", "HI", "Hawaii"},
	{"16", "ID", "Idaho"},
	{"17", "IL", "Illinois"},
	{"18", "IN", "Indiana"},
	{"19", "IA", "Iowa"},
	{"20", "KS", "Kansas"},
	{"21", "KY", "Kentucky"},
	{"22", "LA", "Louisiana"},
	{"23", "ME", "Maine"},
	{"24", "MD", "Maryland"},
	{"25", "MA", "Massachusetts"},
	{"26", "MI", "Michigan"},
	{"27", "MN", "Minnesota"},
	{"28", "MS", "Mississippi"},
	{"29", "MO", "Missouri"},
	{"30", "MT", "Montana"},
	{"31", "NE", "Nebraska"},
	{"32", "NV", "Nevada"},
	{"33", "NH", "New Hampshire"},
	{"34", "NJ", "New Jersey"},
	{"35", "NM", "New Mexico"},
	{"36", "NY", "New York"},
	{"37", "NC", "North Carolina"},
	{"38", "ND", "North Dakota"},
	{"39", "OH", "Ohio"},
	{"40", "OK", "Oklahoma"},
	{"41", "OR", "Oregon"},
	{"42", "PA", "Pennsylvania"},
	{"44", "RI", "Rhode Island"},
	{"45", "SC", "South Carolina"},
	{"46", "SD", "South Dakota"},
	{"47", "TN", "Tennessee"},
	{"48", "TX", "Texas"},
	{"49", "UT", "Utah"},
	{"50", "VT", "Vermont"},
	{"51", "VA", "Virginia"},
	{"53", "WA", "Washington"},
	{"54", "WV", "West Virginia"},
	{"55", "WI", "Wisconsin"},
	{"56", "WY", "Wyoming"},
	{"72", "PR", "Puerto Rico"},
	{"78", "VI", "U.S. Virgin Islands"},
}

// manualSupplements are geographies the Gazetteer no longer ships: the
// legacy Connecticut counties the source data still reports against, and
// the Virgin Islands districts.
var manualSupplements = []Row{
	{FIPS: "09001", State: "CT", Name: "Fairfield County"},
	{FIPS: "09003", State: "CT", Name: "Hartford County"},
	{FIPS: "09005", State: "CT", Name: "Litchfield County"},
	{FIPS: "09007", State: "CT", Name: "Middlesex County"},
	{FIPS: "09009", State: "CT", Name: "New Haven County"},
	{FIPS: "09011", State: "CT", Name: "New London County"},
	{FIPS: "09013", State: "CT", Name: "Tolland County"},
	{FIPS: "09015", State: "CT", Name: "Windham County"},
	{FIPS: "78010", State: "VI", Name: "St. Croix Island"},
	{FIPS: "78020", State: "VI", Name: "St. John Island"},
	{FIPS: "78030", State: "VI", Name: "St. Thomas Island"},
}

// GazetteerConfig drives one reference build.
type GazetteerConfig struct {
	SrcTXT string
	OutCSV string
}

// Row is one reference geography. The numeric fields are nil on the
// synthetic rollup and supplement rows.
type Row struct {
	FIPS      string
	State     string
	ANSICode  string
	Name      string
	LandArea  *int64
	WaterArea *int64
	Lat       *float64
	Long      *float64
}

// Cells renders the row in Columns order.
func (r Row) Cells() []string {
	return []string{
		r.FIPS,
		r.State,
		r.ANSICode,
		r.Name,
		artifacts.FormatNullInt(r.LandArea),
		artifacts.FormatNullInt(r.WaterArea),
		artifacts.FormatFloat(r.Lat),
		artifacts.FormatFloat(r.Long),
	}
}

// Builder converts Gazetteer county files into the reference table.
type Builder struct {
	log zerolog.Logger
}

// NewBuilder returns a reference builder logging under the reference
// component.
func NewBuilder() *Builder {
	return &Builder{log: logging.With().Str("component", "reference").Logger()}
}

// Run tidies the Gazetteer file, appends the rollup and supplement rows,
// and writes the reference CSV sorted by FIPS.
func (b *Builder) Run(ctx context.Context, cfg GazetteerConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if cfg.SrcTXT == "" {
		return errors.NewConfigError("reference", "gazetteer source path is required", nil)
	}
	if cfg.OutCSV == "" {
		cfg.OutCSV = DefaultRefCSV
	}

	header, records, err := artifacts.ReadTSV(cfg.SrcTXT)
	if err != nil {
		return err
	}
	rows, err := tidyGazetteer(header, records)
	if err != nil {
		return err
	}

	present := make(map[string]bool, len(rows))
	for _, row := range rows {
		present[row.FIPS] = true
	}
	rows = append(rows, supplements(present)...)
	sort.Slice(rows, func(i, j int) bool { return rows[i].FIPS < rows[j].FIPS })

	if err := artifacts.WriteCSV(cfg.OutCSV, Columns, refCells(rows)); err != nil {
		return err
	}
	b.log.Info().
		Str("path", cfg.OutCSV).
		Int("counties", len(rows)).
		Msg("Wrote county reference")
	return nil
}

// tidyGazetteer renames and cleans the Gazetteer columns, dropping rows
// without a valid 5-digit FIPS and keeping the first of any duplicates.
func tidyGazetteer(header []string, records []map[string]string) ([]Row, error) {
	present := make(map[string]bool, len(header))
	for _, col := range header {
		present[col] = true
	}
	var missing []string
	for _, col := range gazetteerColumns {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, errors.NewValidationError("columns", missing,
			fmt.Sprintf("Input file missing expected columns: %s", strings.Join(missing, ", ")))
	}

	seen := make(map[string]bool, len(records))
	rows := make([]Row, 0, len(records))
	for _, record := range records {
		fips := econ.PadFIPS(record["GEOID"])
		if !econ.ValidFIPS(fips) || seen[fips] {
			continue
		}
		seen[fips] = true
		rows = append(rows, Row{
			FIPS:      fips,
			State:     strings.TrimSpace(record["USPS"]),
			ANSICode:  strings.TrimSpace(record["ANSICODE"]),
			Name:      strings.TrimSpace(record["NAME"]),
			LandArea:  intCell(record["ALAND"]),
			WaterArea: intCell(record["AWATER"]),
			Lat:       floatCell(record["INTPTLAT"]),
			Long:      floatCell(record["INTPTLONG"]),
		})
	}
	return rows, nil
}

// supplements returns the rollup and manual rows whose FIPS codes are not
// already present: per state a {fips}000 statewide aggregation and a
// {fips}999 unspecified county, plus the retired geographies.
func supplements(present map[string]bool) []Row {
	var rows []Row
	for _, st := range stateMetadata {
		for _, synth := range []struct {
			suffix string
			label  string
		}{
			{"000", "statewide aggregation"},
			{"999", "unspecified county"},
		} {
			fips := st.fips + synth.suffix
			if present[fips] {
				continue
			}
			rows = append(rows, Row{
				FIPS:  fips,
				State: st.postal,
				Name:  fmt.Sprintf("%s (%s)", st.name, synth.label),
			})
		}
	}
	for _, row := range manualSupplements {
		if present[row.FIPS] {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

func intCell(raw string) *int64 {
	v, _ := econ.ParseNumeric(raw)
	if v == nil {
		return nil
	}
	n := int64(*v)
	return &n
}

func floatCell(raw string) *float64 {
	v, _ := econ.ParseNumeric(raw)
	return v
}

func refCells(rows []Row) [][]string {
	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.Cells())
	}
	return records
}
