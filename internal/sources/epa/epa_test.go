package epa

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdmdatalab/econbench/internal/artifacts"
	"github.com/rdmdatalab/econbench/internal/testhelper"
	"github.com/rdmdatalab/econbench/pkg/logging"
)

const triHeader = "FACILITY COUNTY\tFACILITY STATE\tPRIMARY NAICS CODE\tTOTAL ON-SITE RELEASES\tTOTAL TRANSFERRED OFF SITE FOR DISPOSAL\n"

const simplemapsHeader = "county,county_ascii,county_full,county_fips,state_id,state_name\n"

func testPrep() *Prep {
	return &Prep{log: logging.Nop}
}

func runPrep(t *testing.T, tri, simplemaps string) (string, error) {
	t.Helper()
	out := filepath.Join(t.TempDir(), "tri_epa.csv")
	err := testPrep().Run(context.Background(), Config{
		RawTXT:        testhelper.WriteTempCSV(t, "US_1a_2022.txt", tri),
		SimplemapsCSV: testhelper.WriteTempCSV(t, "uscounties.csv", simplemaps),
		OutCSV:        out,
	})
	return out, err
}

func TestPrepRunAggregatesReleases(t *testing.T) {
	raw := "Total Output Lines: 6\n" +
		"\n" +
		"TRIFD\tFACILITY NAME\tFACILITY COUNTY\tFACILITY STATE\tPRIMARY NAICS CODE\tUnnamed: 5\tTOTAL ON-SITE RELEASES\tTOTAL TRANSFERRED OFF SITE FOR DISPOSAL\tROW ID\t\n" +
		"F1\tACME WIDGETS\tSANTA CLARA\tca \t424110\tx\t100.5\t10.25\t1\n" +
		"F2\tBETA CORP\tSANTA CLARA\tCA\t423990\tx\t50\n" +
		"F3\tGAMMA LLC\tSan Francisco\tCA\t621111\tx\tNA\t75.5\t3\tEXTRA\tMORE\n" +
		"F4\tDELTA FOUNDRY\tALAMEDA\tCA\t\tx\t5\t5\t4\n" +
		"F5\tBORICUA MFG\tSAN JUAN\tPR\t325199\tx\t20\t0\t5\n" +
		"total output lines 6\n"
	simplemaps := simplemapsHeader +
		"Santa Clara,Santa Clara,Santa Clara County,6085,CA,California\n" +
		"San Francisco,San Francisco,San Francisco County,06075,CA,California\n"

	out, err := runPrep(t, raw, simplemaps)
	require.NoError(t, err)

	header, rows, err := artifacts.ReadCSV(out)
	require.NoError(t, err)
	assert.Equal(t, Columns, header)
	require.Len(t, rows, 3)

	assert.Equal(t, "CA", rows[0]["state_cd"])
	assert.Equal(t, "SAN FRANCISCO", rows[0]["cnty_nm"])
	assert.Equal(t, "06075", rows[0]["state_cnty_fips_cd"])
	assert.Equal(t, "62", rows[0]["naics2_sector_cd"])
	assert.Equal(t, "75.5", rows[0]["tri_ttl_rls_lbs_amt"])

	// 42 totals both wholesalers; the short F2 row's missing off-site cell
	// contributes zero pounds.
	assert.Equal(t, "SANTA CLARA", rows[1]["cnty_nm"])
	assert.Equal(t, "06085", rows[1]["state_cnty_fips_cd"])
	assert.Equal(t, "42", rows[1]["naics2_sector_cd"])
	assert.Equal(t, "160.75", rows[1]["tri_ttl_rls_lbs_amt"])

	// Territories keep their releases with an empty FIPS cell.
	assert.Equal(t, "PR", rows[2]["state_cd"])
	assert.Equal(t, "", rows[2]["state_cnty_fips_cd"])
	assert.Equal(t, "32", rows[2]["naics2_sector_cd"])
	assert.Equal(t, "20", rows[2]["tri_ttl_rls_lbs_amt"])
}

func TestPrepRunManualOverridePins(t *testing.T) {
	raw := triHeader +
		"NEW HAVEN COUNTY\tCT\t334413\t10\t0\n" +
		"VALDEZ-CORDOVA CENSUS AREA\tAK\t211120\t5.5\t4.5\n"
	simplemaps := simplemapsHeader +
		"Capitol,Capitol,Capitol Planning Region,09110,CT,Connecticut\n" +
		"Chugach,Chugach,Chugach Census Area,02063,AK,Alaska\n"

	out, err := runPrep(t, raw, simplemaps)
	require.NoError(t, err)

	_, rows, err := artifacts.ReadCSV(out)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "02261", rows[0]["state_cnty_fips_cd"])
	assert.Equal(t, "10", rows[0]["tri_ttl_rls_lbs_amt"])
	assert.Equal(t, "09009", rows[1]["state_cnty_fips_cd"])
}

func TestPrepRunFallbackReleaseColumns(t *testing.T) {
	raw := "FACILITY COUNTY\tFACILITY STATE\tPRIMARY NAICS CODE\tON-SITE RELEASE TOTAL\tOFF-SITE RELEASE TOTAL\n" +
		"KING\tWA\t541380\t1.25\t2.5\n"
	simplemaps := simplemapsHeader +
		"King,King,King County,53033,WA,Washington\n"

	out, err := runPrep(t, raw, simplemaps)
	require.NoError(t, err)

	_, rows, err := artifacts.ReadCSV(out)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "53033", rows[0]["state_cnty_fips_cd"])
	assert.Equal(t, "54", rows[0]["naics2_sector_cd"])
	assert.Equal(t, "3.75", rows[0]["tri_ttl_rls_lbs_amt"])
}

func TestPrepRunLatin1CountyNames(t *testing.T) {
	raw := triHeader +
		"DO\xd1A ANA\tNM\t333914\t12\t0\n"
	simplemaps := simplemapsHeader +
		"Doña Ana,Dona Ana,Doña Ana County,35013,NM,New Mexico\n"

	out, err := runPrep(t, raw, simplemaps)
	require.NoError(t, err)

	_, rows, err := artifacts.ReadCSV(out)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "DOÑA ANA", rows[0]["cnty_nm"])
	assert.Equal(t, "35013", rows[0]["state_cnty_fips_cd"])
}

func TestPrepRunMissingColumns(t *testing.T) {
	raw := "FACILITY COUNTY\tPRIMARY NAICS CODE\tSOMETHING\n" +
		"KING\t541380\tx\n"

	_, err := runPrep(t, raw, simplemapsHeader)
	require.Error(t, err)
	assert.Contains(t, err.Error(),
		"TRI file missing required columns: facility state, total on-site releases, total off-site releases")
}

func TestPrepRunHeaderNotFound(t *testing.T) {
	_, err := runPrep(t, "\n\ntotal output lines 0\n", simplemapsHeader)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not locate header row")
}

func TestPrepRunMissingRawFile(t *testing.T) {
	err := testPrep().Run(context.Background(), Config{
		RawTXT:        filepath.Join(t.TempDir(), "missing.txt"),
		SimplemapsCSV: testhelper.WriteTempCSV(t, "uscounties.csv", simplemapsHeader),
		OutCSV:        filepath.Join(t.TempDir(), "tri_epa.csv"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IO error during open")
}

func TestPrepRunSectorWidthFatal(t *testing.T) {
	raw := triHeader +
		"KING\tWA\t7\t1\t0\n"
	simplemaps := simplemapsHeader +
		"King,King,King County,53033,WA,Washington\n"

	_, err := runPrep(t, raw, simplemaps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `sector code "7" is not 2 digits`)
}

func TestSectorFromNAICS(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "six digit code", raw: "424110", want: "42"},
		{name: "two digit code", raw: "62", want: "62"},
		{name: "float formatted", raw: "423990.0", want: "42"},
		{name: "annotated", raw: "NAICS 4241", want: "42"},
		{name: "single digit", raw: "7", want: "7"},
		{name: "no digits", raw: "N/A", want: ""},
		{name: "empty", raw: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sectorFromNAICS(tt.raw))
		})
	}
}

func TestNormalizeRecord(t *testing.T) {
	tests := []struct {
		name   string
		fields []string
		width  int
		want   []string
	}{
		{name: "exact", fields: []string{"a", "b"}, width: 2, want: []string{"a", "b"}},
		{name: "short padded", fields: []string{"a"}, width: 3, want: []string{"a", "", ""}},
		{name: "overflow glued", fields: []string{"a", "b", "c", "d"}, width: 2, want: []string{"a", "b\tc\td"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeRecord(tt.fields, tt.width))
		})
	}
}
