// Package artifacts handles reading and writing the CSV artifacts the
// pipelines and QA suites produce. Reconciliation outputs come in pairs: a
// timestamped file for history and a _latest twin that downstream tooling
// can point at without knowing the stamp.
package artifacts

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/agentstation/utc"

	"github.com/rdmdatalab/econbench/pkg/constants"
	"github.com/rdmdatalab/econbench/pkg/errors"
)

// Stamp renders the artifact timestamp for the current UTC instant.
func Stamp() string {
	return utc.Now().Format(constants.TimeFormatArtifact)
}

// Path returns the stamped CSV path for an artifact base name.
func Path(dir, base, stamp string) string {
	return filepath.Join(dir, base+"_"+stamp+".csv")
}

// MarkdownPath returns the stamped markdown path for a report base name.
func MarkdownPath(dir, base, stamp string) string {
	return filepath.Join(dir, base+"_"+stamp+".md")
}

// WriteCSV writes an ordered-column CSV, creating the directory as needed.
func WriteCSV(path string, columns []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), constants.DirPermissions); err != nil {
		return errors.WrapIO("create", filepath.Dir(path), err)
	}

	f, err := os.Create(path) //nolint:gosec // Artifact paths are operator-controlled
	if err != nil {
		return errors.WrapIO("create", path, err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		return errors.WrapIO("write", path, err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return errors.WrapIO("write", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.WrapIO("write", path, err)
	}
	return f.Close()
}

// WriteTimestamped writes <base>_<stamp>.csv and <base>_latest.csv with
// identical content, returning both paths.
func WriteTimestamped(dir, base, stamp string, columns []string, rows [][]string) (stamped, latest string, err error) {
	stamped = filepath.Join(dir, base+"_"+stamp+".csv")
	latest = filepath.Join(dir, base+"_latest.csv")

	if err := WriteCSV(stamped, columns, rows); err != nil {
		return "", "", err
	}
	if err := WriteCSV(latest, columns, rows); err != nil {
		return "", "", err
	}
	return stamped, latest, nil
}

// ReadCSV reads a header-driven CSV into one map per row. Cells beyond the
// header width are dropped; short rows leave their trailing columns absent
// from the map rather than empty.
func ReadCSV(path string) ([]string, []map[string]string, error) {
	f, err := os.Open(path) //nolint:gosec // Artifact paths are operator-controlled
	if err != nil {
		return nil, nil, errors.WrapIO("open", path, err)
	}
	defer func() { _ = f.Close() }()

	return ReadCSVFrom(f, path)
}

// ReadCSVFrom reads header-driven CSV rows from an already-opened reader.
// Sources with non-UTF-8 encodings wrap their file in a decoder first; path
// only labels errors.
func ReadCSVFrom(f io.Reader, path string) ([]string, []map[string]string, error) {
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	return readRecords(r, path, false)
}

// ReadTSV reads a tab-delimited file the way ReadCSV reads commas. Header
// cells are trimmed; Gazetteer-style exports pad the trailing column name.
func ReadTSV(path string) ([]string, []map[string]string, error) {
	f, err := os.Open(path) //nolint:gosec // Artifact paths are operator-controlled
	if err != nil {
		return nil, nil, errors.WrapIO("open", path, err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.FieldsPerRecord = -1
	return readRecords(r, path, true)
}

func readRecords(r *csv.Reader, path string, trimHeader bool) ([]string, []map[string]string, error) {
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, errors.WrapParse("csv", path, err)
	}
	if len(records) == 0 {
		return nil, nil, nil
	}

	header := records[0]
	if trimHeader {
		for i, col := range header {
			header[i] = strings.TrimSpace(col)
		}
	}
	rows := make([]map[string]string, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

// FormatFloat renders a nullable float for CSV output. Nil is an empty cell;
// values drop trailing zeros.
func FormatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// FormatBool renders a nullable bool for CSV output.
func FormatBool(v *bool) string {
	if v == nil {
		return ""
	}
	return strconv.FormatBool(*v)
}

// FormatPlainBool renders a non-nullable bool for CSV output.
func FormatPlainBool(v bool) string {
	return strconv.FormatBool(v)
}

// FormatInt renders an int for CSV output.
func FormatInt(v int) string {
	return strconv.Itoa(v)
}

// FormatNullInt renders a nullable integer for CSV output.
func FormatNullInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}
