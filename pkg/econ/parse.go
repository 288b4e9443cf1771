package econ

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// Notes attached to parsed source values. Reconciliation rows carry these
// through to the published QA tables, so the spellings are load-bearing.
const (
	NoteSourceMissing    = "source_missing"
	NoteSourceSuppressed = "source_suppressed"
	NoteSourceNonNumeric = "source_non_numeric"
)

// suppressedValues are the markers statistical publishers use for withheld
// cells. A suppressed cell is distinct from a missing one: the row was
// published, the value was not.
var suppressedValues = map[string]bool{
	"":    true,
	"D":   true,
	"N":   true,
	"S":   true,
	"NA":  true,
	"N/A": true,
	"(D)": true,
	"(N)": true,
	"(S)": true,
}

// IsSuppressed reports whether a raw cell is a publisher suppression marker.
func IsSuppressed(raw string) bool {
	return suppressedValues[strings.TrimSpace(raw)]
}

// ParseNumeric classifies a raw source cell. It returns the parsed value, or
// nil with a note: suppression markers (including the empty string) note
// source_suppressed and anything else non-numeric notes source_non_numeric.
func ParseNumeric(raw string) (*float64, string) {
	text := strings.TrimSpace(raw)
	if suppressedValues[text] {
		return nil, NoteSourceSuppressed
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, NoteSourceNonNumeric
	}
	return &v, ""
}

// ParseNumericField parses record[key], noting source_missing when the field
// is absent from the record entirely.
func ParseNumericField(record map[string]string, key string) (*float64, string) {
	raw, ok := record[key]
	if !ok {
		return nil, NoteSourceMissing
	}
	return ParseNumeric(raw)
}

// ParseNumericPtr parses an optional cell. Nil means the cell never arrived
// (absent field or JSON null) and notes source_missing.
func ParseNumericPtr(raw *string) (*float64, string) {
	if raw == nil {
		return nil, NoteSourceMissing
	}
	return ParseNumeric(*raw)
}

// ParseBool interprets common CLI/env spellings of a boolean, falling back
// to def for anything unrecognized.
func ParseBool(raw string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "t", "yes", "y":
		return true
	case "0", "false", "f", "no", "n":
		return false
	default:
		return def
	}
}

// SafeDivide divides num by den, returning nil instead of Inf or NaN when
// either side is nil, the denominator is zero, or the quotient is not finite.
func SafeDivide(num, den *float64) *float64 {
	if num == nil || den == nil || *den == 0 {
		return nil
	}
	q := *num / *den
	if math.IsNaN(q) || math.IsInf(q, 0) {
		return nil
	}
	return &q
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

// JoinNotes dedupes, sorts, and ";"-joins a note list. An empty list joins
// to the empty string.
func JoinNotes(notes []string) string {
	if len(notes) == 0 {
		return ""
	}
	seen := make(map[string]bool, len(notes))
	uniq := make([]string, 0, len(notes))
	for _, n := range notes {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		uniq = append(uniq, n)
	}
	sort.Strings(uniq)
	return strings.Join(uniq, ";")
}

// AppendNote appends a flag to an existing ";"-joined note string without
// reordering what is already there.
func AppendNote(existing, flag string) string {
	if flag == "" {
		return existing
	}
	if existing == "" {
		return flag
	}
	return existing + ";" + flag
}
