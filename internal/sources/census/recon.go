package census

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/rdmdatalab/econbench/internal/transport"
	"github.com/rdmdatalab/econbench/pkg/constants"
	"github.com/rdmdatalab/econbench/pkg/econ"
	"github.com/rdmdatalab/econbench/pkg/logging"
	"github.com/rdmdatalab/econbench/pkg/reconcile"
)

// ReconSource fetches the Census side of ABS reconciliations. It never
// fails a whole run over one bad request: payload-level problems become
// notes on the affected rows and the pull continues.
type ReconSource struct {
	client  *transport.Client
	baseURL string
	log     zerolog.Logger
}

// NewReconSource builds the live Census fetcher. The API key is optional;
// unkeyed requests are rate-limited but fine for slice-sized pulls.
func NewReconSource(apiKey string) *ReconSource {
	return &ReconSource{
		client: transport.New(Source,
			transport.WithTimeout(constants.CensusAPITimeout),
			transport.WithAuth(&transport.QueryAuth{Param: "key"}, apiKey),
		),
		baseURL: baseURL,
		log:     logging.With().Str("component", "abs").Logger(),
	}
}

// FetchSlices issues one request per year × county × sector and returns a
// source row for every slice, including the ones that failed.
func (s *ReconSource) FetchSlices(ctx context.Context, years []int, counties, naics []string) ([]reconcile.AbsSourceRow, error) {
	rows := make([]reconcile.AbsSourceRow, 0, len(years)*len(counties)*len(naics))
	for _, year := range years {
		for _, county := range counties {
			fips := econ.PadFIPS(county)
			state, countyPart := econ.SplitFIPS(fips)
			for _, sector := range naics {
				sector = econ.PadSector(sector)
				record, payloadNote := s.fetchSlice(ctx, year, state, countyPart, sector)
				if payloadNote != "" {
					s.log.Warn().Int("year", year).Str("fips", fips).Str("sector", sector).
						Str("note", payloadNote).Msg("[ABS] Census slice fetch degraded")
				}
				rows = append(rows, buildSourceRow(year, fips, sector, record, payloadNote))
			}
		}
	}
	return rows, nil
}

// FetchFullSurface sweeps county:* per state for every year. A failed
// state contributes a single error row keyed <state>000 and the sweep
// moves on; an empty state payload contributes nothing.
func (s *ReconSource) FetchFullSurface(ctx context.Context, years []int) ([]reconcile.AbsSourceRow, error) {
	var rows []reconcile.AbsSourceRow
	for _, year := range years {
		for _, state := range econ.StateFIPS {
			stateRows, note := s.fetchState(ctx, year, state)
			if note != "" {
				s.log.Warn().Int("year", year).Str("state", state).
					Str("note", note).Msg("[ABS] Census state fetch failed")
				rows = append(rows, reconcile.AbsSourceRow{
					Year:       year,
					FIPS:       state + "000",
					StateFIPS:  state,
					CountyFIPS: "000",
					Notes:      note,
				})
				continue
			}
			rows = append(rows, stateRows...)
		}
		s.log.Info().Int("year", year).Int("rows", len(rows)).Msg("[ABS] Full-surface pull progressed")
	}
	return rows, nil
}

func (s *ReconSource) fetchSlice(ctx context.Context, year int, state, county, sector string) (map[string]*string, string) {
	ctx, cancel := context.WithTimeout(ctx, constants.DefaultHTTPTimeout)
	defer cancel()

	url := transport.NewRequestBuilder(datasetURL(s.baseURL, year)).
		Param("get", reconFields).
		Param("for", "county:"+county).
		Param("in", "state:"+state).
		Param("NAICS2022", sector).
		URL()

	var payload [][]*string
	if err := s.client.GetJSON(ctx, url, &payload); err != nil {
		return nil, fetchNote(err)
	}
	if len(payload) < 2 {
		return nil, noteEmptyResponse
	}
	return zipRecord(payload[0], payload[1]), ""
}

func (s *ReconSource) fetchState(ctx context.Context, year int, state string) ([]reconcile.AbsSourceRow, string) {
	ctx, cancel := context.WithTimeout(ctx, constants.CensusAPITimeout)
	defer cancel()

	url := transport.NewRequestBuilder(datasetURL(s.baseURL, year)).
		Param("get", reconFields).
		Param("for", "county:*").
		Param("in", "state:"+state).
		URL()

	var payload [][]*string
	if err := s.client.GetJSON(ctx, url, &payload); err != nil {
		return nil, fetchNote(err)
	}
	if len(payload) < 2 {
		return nil, ""
	}

	header := payload[0]
	rows := make([]reconcile.AbsSourceRow, 0, len(payload)-1)
	for _, raw := range payload[1:] {
		record := zipRecord(header, raw)
		st, county := fipsOf(record)
		rows = append(rows, buildSourceRow(year, st+county, sectorOf(record), record, ""))
	}
	return rows, ""
}

// buildSourceRow parses the metric cells, scales the dollar columns, and
// joins the payload and parse notes. A nil record (failed fetch) parses
// every metric to missing. Reading a nil map is fine in that path.
func buildSourceRow(year int, fips, sector string, record map[string]*string, payloadNote string) reconcile.AbsSourceRow {
	var notes []string
	if payloadNote != "" {
		notes = append(notes, payloadNote)
	}

	firms, note := econ.ParseNumericPtr(record["FIRMPDEMP"])
	if note != "" {
		notes = append(notes, note)
	}
	emp, note := econ.ParseNumericPtr(record["EMP"])
	if note != "" {
		notes = append(notes, note)
	}
	payroll, note := econ.ParseNumericPtr(record["PAYANN"])
	if note != "" {
		notes = append(notes, note)
	}
	receipts, note := econ.ParseNumericPtr(record["RCPPDEMP"])
	if note != "" {
		notes = append(notes, note)
	}
	scaleThousands(payroll)
	scaleThousands(receipts)

	state, county := econ.SplitFIPS(fips)
	return reconcile.AbsSourceRow{
		Year:        year,
		FIPS:        fips,
		StateFIPS:   state,
		CountyFIPS:  county,
		Sector:      sector,
		Firms:       firms,
		Emp:         emp,
		PayrollUSD:  payroll,
		ReceiptsUSD: receipts,
		Notes:       econ.JoinNotes(notes),
	}
}
