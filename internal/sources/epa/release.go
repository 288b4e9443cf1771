package epa

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/rdmdatalab/econbench/pkg/econ"
	"github.com/rdmdatalab/econbench/pkg/errors"
)

// trailerPrefix marks the record-count lines EPA appends to 1A exports.
const trailerPrefix = "total output lines"

// readRelease parses the tab-delimited 1A export. The files ship latin-1
// encoded with the header as the first populated line, record-count trailer
// lines, and ragged data rows that lost or gained tabs in transit.
func readRelease(path string) ([]string, [][]string, error) {
	f, err := os.Open(path) //nolint:gosec // Raw paths are operator-controlled
	if err != nil {
		return nil, nil, errors.WrapIO("open", path, err)
	}
	defer func() { _ = f.Close() }()

	br := bufio.NewReader(transform.NewReader(f, charmap.ISO8859_1.NewDecoder()))
	header, err := readHeader(br, path)
	if err != nil {
		return nil, nil, err
	}

	r := csv.NewReader(br)
	r.Comma = '\t'
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var records [][]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, errors.WrapParse("tsv", path, err)
		}
		if len(record) == 0 || strings.HasPrefix(strings.ToLower(record[0]), trailerPrefix) {
			continue
		}
		records = append(records, normalizeRecord(record, len(header)))
	}

	header, records = dropPlaceholders(header, records)
	return header, records, nil
}

// readHeader scans past BOM, blank, and trailer lines to the first populated
// line and splits it on tabs. Exports often carry a trailing empty or
// record-count column that the data rows do not, so that column is dropped.
func readHeader(br *bufio.Reader, path string) ([]string, error) {
	for {
		line, readErr := br.ReadString('\n')
		text := strings.TrimPrefix(line, "\ufeff")
		text = strings.TrimRight(text, "\r\n")
		if text != "" && !strings.HasPrefix(strings.ToLower(text), trailerPrefix) {
			cols := strings.Split(text, "\t")
			if last := cols[len(cols)-1]; len(cols) > 1 && (last == "" || isDigits(last)) {
				cols = cols[:len(cols)-1]
			}
			return cols, nil
		}
		if readErr == io.EOF {
			return nil, errors.NewParseError("tsv", path, "could not locate header row", nil)
		}
		if readErr != nil {
			return nil, errors.WrapIO("read", path, readErr)
		}
	}
}

// normalizeRecord pads short rows with empty cells and glues overflow cells
// back into the last column, returning exactly width fields.
func normalizeRecord(fields []string, width int) []string {
	switch {
	case len(fields) < width:
		padded := make([]string, width)
		copy(padded, fields)
		return padded
	case len(fields) > width:
		glued := make([]string, width)
		copy(glued, fields[:width-1])
		glued[width-1] = strings.Join(fields[width-1:], "\t")
		return glued
	default:
		return fields
	}
}

// dropPlaceholders removes columns with empty header names and the
// "Unnamed:" spillover columns some exports carry.
func dropPlaceholders(header []string, records [][]string) ([]string, [][]string) {
	keep := make([]int, 0, len(header))
	for i, col := range header {
		if col == "" || strings.HasPrefix(col, "Unnamed:") {
			continue
		}
		keep = append(keep, i)
	}
	if len(keep) == len(header) {
		return header, records
	}

	cols := make([]string, len(keep))
	for j, i := range keep {
		cols[j] = header[i]
	}
	filtered := make([][]string, len(records))
	for n, record := range records {
		row := make([]string, len(keep))
		for j, i := range keep {
			row[j] = record[i]
		}
		filtered[n] = row
	}
	return cols, filtered
}

// isDigits reports whether s is one or more ASCII digits.
func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// releaseColumns indexes the five columns the aggregation reads.
type releaseColumns struct {
	naics   int
	state   int
	county  int
	onSite  int
	offSite int
}

// findColumn returns the index of the first header containing any of the
// keywords, case-insensitively. Keywords are tried in order so preferred
// spellings win over fallbacks.
func findColumn(header []string, keywords ...string) int {
	for _, keyword := range keywords {
		keyword = strings.ToUpper(keyword)
		for i, col := range header {
			if strings.Contains(strings.ToUpper(col), keyword) {
				return i
			}
		}
	}
	return -1
}

// resolveColumns locates the columns the aggregation needs. 1A vintages
// disagree on the release column spellings, so those fall back through the
// known variants.
func resolveColumns(header []string) (releaseColumns, error) {
	cols := releaseColumns{
		naics:   findColumn(header, "PRIMARY NAICS CODE"),
		state:   findColumn(header, "FACILITY STATE"),
		county:  findColumn(header, "FACILITY COUNTY"),
		onSite:  findColumn(header, "TOTAL ON-SITE RELEASES", "ON-SITE RELEASE TOTAL"),
		offSite: findColumn(header, "TOTAL TRANSFERRED OFF SITE FOR DISPOSAL", "OFF-SITE RELEASE TOTAL", "TOTAL TRANSFER"),
	}

	var missing []string
	for _, probe := range []struct {
		name  string
		index int
	}{
		{"primary NAICS", cols.naics},
		{"facility state", cols.state},
		{"facility county", cols.county},
		{"total on-site releases", cols.onSite},
		{"total off-site releases", cols.offSite},
	} {
		if probe.index < 0 {
			missing = append(missing, probe.name)
		}
	}
	if len(missing) > 0 {
		return cols, errors.NewValidationError("columns", missing,
			fmt.Sprintf("TRI file missing required columns: %s", strings.Join(missing, ", ")))
	}
	return cols, nil
}

// groupKey is the aggregation grain before FIPS resolution.
type groupKey struct {
	state  string
	county string
	sector string
}

// aggregate sums facility release pounds to (state, county name, NAICS2)
// groups, sorted by key. Rows without a derivable sector carry no key and
// are dropped; suppressed or junk release cells contribute zero pounds.
func aggregate(header []string, records [][]string) ([]Row, error) {
	cols, err := resolveColumns(header)
	if err != nil {
		return nil, err
	}

	sums := make(map[groupKey]float64)
	for _, record := range records {
		sector := sectorFromNAICS(record[cols.naics])
		if sector == "" {
			continue
		}
		key := groupKey{
			state:  stateCode(record[cols.state]),
			county: strings.ToUpper(strings.TrimSpace(record[cols.county])),
			sector: sector,
		}
		sums[key] += numericOrZero(record[cols.onSite]) + numericOrZero(record[cols.offSite])
	}

	keys := make([]groupKey, 0, len(sums))
	for key := range sums {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].state != keys[j].state {
			return keys[i].state < keys[j].state
		}
		if keys[i].county != keys[j].county {
			return keys[i].county < keys[j].county
		}
		return keys[i].sector < keys[j].sector
	})

	rows := make([]Row, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, Row{
			State:      key.state,
			County:     key.county,
			Sector:     key.sector,
			ReleaseLbs: econ.Round(sums[key], 2),
		})
	}
	return rows, nil
}

var digitRun = regexp.MustCompile(`\d+`)

// sectorFromNAICS extracts the 2-digit sector prefix from however the NAICS
// cell is spelled: bare code, float-formatted, or annotated.
func sectorFromNAICS(raw string) string {
	run := digitRun.FindString(raw)
	if len(run) > 2 {
		run = run[:2]
	}
	return run
}

// stateCode canonicalizes the facility state to its 2-letter postal form.
func stateCode(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if len(s) > 2 {
		s = s[:2]
	}
	return s
}

// numericOrZero parses a release amount, treating suppressed or non-numeric
// cells as zero pounds.
func numericOrZero(raw string) float64 {
	if v, _ := econ.ParseNumeric(raw); v != nil {
		return *v
	}
	return 0
}
