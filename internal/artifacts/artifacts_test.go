package artifacts

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdmdatalab/econbench/pkg/econ"
)

func TestStampFormat(t *testing.T) {
	stamp := Stamp()
	assert.Regexp(t, regexp.MustCompile(`^\d{8}T\d{6}Z$`), stamp)
}

func TestWriteAndReadCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "rows.csv")

	columns := []string{"year_num", "state_cnty_fips_cd", "naics2_sector_cd", "pass_all"}
	rows := [][]string{
		{"2022", "06075", "42", "true"},
		{"2022", "06085", "62", ""},
	}

	require.NoError(t, WriteCSV(path, columns, rows))

	header, got, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, columns, header)
	require.Len(t, got, 2)
	assert.Equal(t, "06075", got[0]["state_cnty_fips_cd"])
	assert.Equal(t, "", got[1]["pass_all"])
}

func TestWriteTimestamped(t *testing.T) {
	dir := t.TempDir()

	columns := []string{"year_num", "notes"}
	rows := [][]string{{"2023", "missing_from_rdm"}}

	stamped, latest, err := WriteTimestamped(dir, "abs_reconciliation", "20260825T000000Z", columns, rows)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "abs_reconciliation_20260825T000000Z.csv"), stamped)
	assert.Equal(t, filepath.Join(dir, "abs_reconciliation_latest.csv"), latest)

	// The stamped file and its _latest twin carry identical content.
	a, err := os.ReadFile(stamped)
	require.NoError(t, err)
	b, err := os.ReadFile(latest)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestReadCSVShortRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "short.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b,c\n1,2\n"), 0o644))

	_, rows, err := ReadCSV(path)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	_, ok := rows[0]["c"]
	assert.False(t, ok, "short row should leave trailing column absent")
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "", FormatFloat(nil))
	assert.Equal(t, "1200", FormatFloat(econ.Float(1200)))
	assert.Equal(t, "52.5", FormatFloat(econ.Float(52.5)))
	assert.Equal(t, "-0.25", FormatFloat(econ.Float(-0.25)))

	assert.Equal(t, "", FormatBool(nil))
	assert.Equal(t, "true", FormatBool(econ.Bool(true)))
	assert.Equal(t, "false", FormatBool(econ.Bool(false)))

	assert.Equal(t, "true", FormatPlainBool(true))
	assert.Equal(t, "2022", FormatInt(2022))
}
