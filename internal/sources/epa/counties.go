package epa

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rdmdatalab/econbench/internal/artifacts"
	"github.com/rdmdatalab/econbench/pkg/econ"
	"github.com/rdmdatalab/econbench/pkg/errors"
)

// countySuffixTerms are stripped from county names before matching. Both
// sides of the join normalize with the same list, so the stripping only has
// to be consistent, not linguistically complete.
var countySuffixTerms = []string{
	"county",
	"parish",
	"borough",
	"boro",
	"municipio",
	"municipality",
	"census area",
	"census are",
	"censu",
	"census district",
	"city and borough",
	"city",
	"island",
}

// territorySkip holds territories the Simplemaps reference does not cover.
// Their rows stay in the output but out of the resolution rate.
var territorySkip = map[string]bool{"PR": true, "VI": true}

var (
	countyPunct    = regexp.MustCompile(`[^a-z0-9\s]`)
	countySpaces   = regexp.MustCompile(`\s+`)
	saintAbbrev    = regexp.MustCompile(`\bst\b`)
	suffixPatterns = compileSuffixPatterns()
)

func compileSuffixPatterns() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(countySuffixTerms))
	for _, term := range countySuffixTerms {
		patterns = append(patterns, regexp.MustCompile(`\b`+strings.ReplaceAll(term, " ", `\s+`)+`\b`))
	}
	return patterns
}

// normalizeCountyName reduces a county label to the compact lowercase form
// the FIPS lookup is keyed on: punctuation replaced, suffix terms stripped,
// "st" expanded to "saint", and all whitespace removed.
func normalizeCountyName(name string) string {
	cleaned := countyPunct.ReplaceAllString(strings.ToLower(name), " ")
	for _, pattern := range suffixPatterns {
		cleaned = pattern.ReplaceAllString(cleaned, " ")
	}
	cleaned = saintAbbrev.ReplaceAllString(cleaned, "saint")
	return countySpaces.ReplaceAllString(cleaned, "")
}

// countyKey addresses the FIPS lookup: postal state plus normalized name.
type countyKey struct {
	State string
	Name  string
}

// simplemapsNameColumns are matched in order, so the short county name wins
// over the ascii and long forms when their normalizations collide.
var simplemapsNameColumns = []string{"county", "county_ascii", "county_full"}

// manualFIPS pins names the Simplemaps release no longer carries: TRI still
// reports the legacy Connecticut counties and the retired Valdez-Cordova
// census area.
var manualFIPS = map[countyKey]string{
	{"CT", "fairfield"}:     "09001",
	{"CT", "hartford"}:      "09003",
	{"CT", "litchfield"}:    "09005",
	{"CT", "middlesex"}:     "09007",
	{"CT", "newhaven"}:      "09009",
	{"CT", "newlondon"}:     "09011",
	{"CT", "tolland"}:       "09013",
	{"CT", "windham"}:       "09015",
	{"AK", "valdezcordova"}: "02261",
}

// loadCountyLookup builds the (state, normalized name) → FIPS map from the
// Simplemaps uscounties reference, with manual pins applied last.
func loadCountyLookup(path string) (map[countyKey]string, error) {
	header, records, err := artifacts.ReadCSV(path)
	if err != nil {
		return nil, err
	}

	present := make(map[string]bool, len(header))
	for _, col := range header {
		present[col] = true
	}
	var missing []string
	for _, col := range append([]string{"state_id", "county_fips"}, simplemapsNameColumns...) {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, errors.NewValidationError("columns", missing,
			fmt.Sprintf("Simplemaps file missing expected columns: %s", strings.Join(missing, ", ")))
	}

	lookup := make(map[countyKey]string, len(records))
	for _, col := range simplemapsNameColumns {
		for _, record := range records {
			name := normalizeCountyName(record[col])
			if name == "" {
				continue
			}
			key := countyKey{State: strings.ToUpper(record["state_id"]), Name: name}
			if _, ok := lookup[key]; ok {
				continue
			}
			lookup[key] = econ.PadFIPS(record["county_fips"])
		}
	}
	for key, fips := range manualFIPS {
		lookup[key] = fips
	}
	return lookup, nil
}

// unresolvedSample caps how many unmatched county names get logged.
const unresolvedSample = 10

// resolveFIPS attaches county FIPS codes to the aggregated groups and
// reports the match rate. PR and VI stay unresolved by construction, so
// they are left out of the rate.
func (p *Prep) resolveFIPS(groups []Row, lookup map[countyKey]string) []Row {
	rows := make([]Row, len(groups))
	resolvable, resolved := 0, 0
	unmatched := make(map[string]bool)
	var examples []string
	for i, group := range groups {
		group.FIPS = lookup[countyKey{State: group.State, Name: normalizeCountyName(group.County)}]
		rows[i] = group
		if territorySkip[group.State] {
			continue
		}
		resolvable++
		if group.FIPS != "" {
			resolved++
			continue
		}
		label := group.State + " " + group.County
		if !unmatched[label] {
			unmatched[label] = true
			if len(examples) < unresolvedSample {
				examples = append(examples, label)
			}
		}
	}

	if resolvable > 0 {
		p.log.Info().
			Int("resolved", resolved).
			Int("resolvable", resolvable).
			Str("share", fmt.Sprintf("%.2f%%", 100*float64(resolved)/float64(resolvable))).
			Msg("Resolved county FIPS for release groups")
	}
	if len(unmatched) > 0 {
		p.log.Warn().
			Int("count", len(unmatched)).
			Strs("examples", examples).
			Msg("County names without a FIPS match outside PR/VI")
	}
	return rows
}
