// Package census pulls the Census Bureau's Annual Business Survey (ABS)
// county dataset, in two shapes: the cleaned county × sector extract the
// integration layer consumes, and the live source side of ABS
// reconciliations.
//
// ABS publishes firm counts, employment, annual payroll, and receipts at
// the county × NAICS2 grain. Payroll and receipts arrive in $1,000 units
// and are scaled to whole USD here, at the edge, so everything downstream
// works in one currency unit. Suppressed cells (D/N/S markers) parse to
// nil; the reconciliation fetchers keep the parse notes, the extract
// drops them.
package census

import (
	"fmt"
	"strings"

	stderrors "errors"

	"github.com/rdmdatalab/econbench/pkg/constants"
	"github.com/rdmdatalab/econbench/pkg/econ"
	"github.com/rdmdatalab/econbench/pkg/errors"
)

// Source is the transport source name for Census requests.
const Source = "census"

const (
	// baseURL is the ABS company-summary dataset endpoint, templated by
	// vintage year.
	baseURL = "https://api.census.gov/data/%d/abscs"

	// extractFields is the column list the full extract requests.
	extractFields = "NAME,GEO_ID,NAICS2022,NAICS2022_LABEL,FIRMPDEMP,EMP,PAYANN,RCPPDEMP,INDLEVEL"

	// reconFields is the narrower list reconciliation requests use.
	reconFields = "NAICS2022,NAME,FIRMPDEMP,EMP,PAYANN,RCPPDEMP"
)

// Payload-level reconciliation notes. These mark a whole request as bad,
// as opposed to the per-field parse notes.
const (
	noteHTTPErrorPrefix = "census_http_error:"
	noteJSONErrorPrefix = "census_json_error:"
	noteEmptyResponse   = "census_empty_response"
)

// fetchNote classifies a failed fetch for the row notes. Decode failures
// are the payload's fault; everything else is transport.
func fetchNote(err error) string {
	var parseErr *errors.ParseError
	if stderrors.As(err, &parseErr) {
		return noteJSONErrorPrefix + err.Error()
	}
	return noteHTTPErrorPrefix + err.Error()
}

func datasetURL(base string, year int) string {
	return fmt.Sprintf(base, year)
}

// zipRecord pairs a payload header row with a data row. Null header cells
// are skipped; null data cells survive as nil pointers so missing and
// suppressed stay distinguishable downstream.
func zipRecord(header, row []*string) map[string]*string {
	record := make(map[string]*string, len(header))
	for i, col := range header {
		if col == nil || i >= len(row) {
			continue
		}
		record[*col] = row[i]
	}
	return record
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// scaleThousands converts a parsed $1k-unit value to whole USD in place.
func scaleThousands(v *float64) {
	if v != nil {
		*v *= constants.ThousandsScale
	}
}

func sectorOf(record map[string]*string) string {
	return deref(record["NAICS2022"])
}

func fipsOf(record map[string]*string) (state, county string) {
	return econ.PadState(deref(record["state"])), econ.PadCountyPart(deref(record["county"]))
}
