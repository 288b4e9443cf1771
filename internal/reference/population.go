package reference

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/rdmdatalab/econbench/internal/artifacts"
	"github.com/rdmdatalab/econbench/internal/transport"
	"github.com/rdmdatalab/econbench/pkg/constants"
	"github.com/rdmdatalab/econbench/pkg/econ"
	"github.com/rdmdatalab/econbench/pkg/errors"
	"github.com/rdmdatalab/econbench/pkg/logging"
)

const (
	// acsBaseURL is the ACS 5-year dataset endpoint, templated by vintage.
	acsBaseURL = "https://api.census.gov/data/%d/acs/acs5"
	// acsVariable is total population from the B01001 sex-by-age table.
	acsVariable = "B01001_001E"
)

// DefaultPopulationYear is the ACS vintage pulled when none is given.
const DefaultPopulationYear = 2022

// Population column names appended to the reference table.
const (
	populationColumn     = "population_num"
	populationYearColumn = "population_year"
)

// PopulationConfig drives one population refresh.
type PopulationConfig struct {
	RefCSV string
	OutCSV string
	Year   int
	APIKey string
}

// Refresher joins ACS county population onto the reference table.
type Refresher struct {
	client  *transport.Client
	baseURL string
	log     zerolog.Logger
}

// NewRefresher builds the population fetcher. The API key is optional.
func NewRefresher(apiKey string) *Refresher {
	return &Refresher{
		client: transport.New("acs",
			transport.WithTimeout(constants.CensusAPITimeout),
			transport.WithAuth(&transport.QueryAuth{Param: "key"}, apiKey),
		),
		baseURL: acsBaseURL,
		log:     logging.With().Str("component", "pop").Logger(),
	}
}

// Run fetches the ACS vintage, left-joins population onto the reference
// CSV, and writes it back. Rows without an ACS match keep empty population
// cells; a re-run replaces the population columns rather than duplicating
// them.
func (rf *Refresher) Run(ctx context.Context, cfg PopulationConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cfg = withPopulationDefaults(cfg)

	rf.log.Info().Str("path", cfg.RefCSV).Msg("[POP] Loading reference")
	header, rows, err := artifacts.ReadCSV(cfg.RefCSV)
	if err != nil {
		return err
	}
	if len(header) == 0 {
		return errors.NewParseError("csv", cfg.RefCSV, "reference CSV has no header", nil)
	}
	base := baseColumns(header)
	if !contains(base, "state_cnty_fips_cd") {
		return errors.NewValidationError("columns", header,
			"reference CSV missing state_cnty_fips_cd column")
	}

	rf.log.Info().Int("year", cfg.Year).Msg("[POP] Fetching ACS county population")
	population, err := rf.fetchPopulation(ctx, cfg.Year)
	if err != nil {
		return err
	}

	outHeader := append(append([]string(nil), base...), populationColumn, populationYearColumn)
	yearCell := strconv.Itoa(cfg.Year)
	matched := 0
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		cells := make([]string, 0, len(outHeader))
		for _, col := range base {
			cells = append(cells, row[col])
		}
		value, ok := population[row["state_cnty_fips_cd"]]
		switch {
		case ok && value != nil:
			matched++
			cells = append(cells, strconv.FormatInt(*value, 10), yearCell)
		case ok:
			// ACS published the county but suppressed the estimate.
			cells = append(cells, "", yearCell)
		default:
			cells = append(cells, "", "")
		}
		out = append(out, cells)
	}

	if err := artifacts.WriteCSV(cfg.OutCSV, outHeader, out); err != nil {
		return err
	}
	rf.log.Info().Int("counties", matched).Msg("[POP] Matched population")
	rf.log.Info().Str("path", cfg.OutCSV).Msg("[POP] Wrote updated reference")
	return nil
}

// fetchPopulation pulls county population for one vintage, keyed by the
// 5-digit FIPS assembled from the state and county response columns.
func (rf *Refresher) fetchPopulation(ctx context.Context, year int) (map[string]*int64, error) {
	url := transport.NewRequestBuilder(fmt.Sprintf(rf.baseURL, year)).
		Param("get", "NAME,"+acsVariable).
		Param("for", "county:*").
		Param("in", "state:*").
		URL()

	var payload [][]*string
	if err := rf.client.GetJSON(ctx, url, &payload); err != nil {
		return nil, err
	}
	if len(payload) < 2 {
		return nil, errors.NewParseError("json", url, "payload has no data rows", nil)
	}

	index := make(map[string]int, len(payload[0]))
	for i, col := range payload[0] {
		if col != nil {
			index[*col] = i
		}
	}
	for _, col := range []string{acsVariable, "state", "county"} {
		if _, ok := index[col]; !ok {
			return nil, errors.NewParseError("json", url,
				fmt.Sprintf("payload missing %s column", col), nil)
		}
	}

	population := make(map[string]*int64, len(payload)-1)
	for _, raw := range payload[1:] {
		state := econ.PadState(text(cellAt(raw, index["state"])))
		county := econ.PadCountyPart(text(cellAt(raw, index["county"])))
		v, _ := econ.ParseNumericPtr(cellAt(raw, index[acsVariable]))
		var count *int64
		if v != nil {
			n := int64(*v)
			count = &n
		}
		population[state+county] = count
	}
	return population, nil
}

// baseColumns strips any population columns a previous refresh appended.
func baseColumns(header []string) []string {
	base := make([]string, 0, len(header))
	for _, col := range header {
		if col == populationColumn || col == populationYearColumn {
			continue
		}
		base = append(base, col)
	}
	return base
}

func contains(cols []string, want string) bool {
	for _, col := range cols {
		if col == want {
			return true
		}
	}
	return false
}

func cellAt(row []*string, i int) *string {
	if i < 0 || i >= len(row) {
		return nil
	}
	return row[i]
}

func text(cell *string) string {
	if cell == nil {
		return ""
	}
	return *cell
}

func withPopulationDefaults(cfg PopulationConfig) PopulationConfig {
	if cfg.RefCSV == "" {
		cfg.RefCSV = DefaultRefCSV
	}
	if cfg.OutCSV == "" {
		cfg.OutCSV = cfg.RefCSV
	}
	if cfg.Year == 0 {
		cfg.Year = DefaultPopulationYear
	}
	return cfg
}
