package reference

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

// The Gazetteer pads its trailing header cell with whitespace.
const gazetteerHeader = "USPS\tGEOID\tANSICODE\tNAME\tALAND\tAWATER\tALAND_SQMI\tAWATER_SQMI\tINTPTLAT\tINTPTLONG       \n"

func testBuilder() *Builder {
	return &Builder{log: logging.Nop}
}

func runBuilder(t *testing.T, raw string) (string, error) {
	t.Helper()
	out := filepath.Join(t.TempDir(), "ref_state_cnty_uscb.csv")
	err := testBuilder().Run(context.Background(), GazetteerConfig{
		SrcTXT: testhelper.WriteTempCSV(t, "2022_Gaz_counties_national.txt", raw),
		OutCSV: out,
	})
	return out, err
}

func findRow(t *testing.T, rows []map[string]string, fips string) map[string]string {
	t.Helper()
	for _, row := range rows {
		if row["state_cnty_fips_cd"] == fips {
			return row
		}
	}
	t.Fatalf("no row for fips %s", fips)
	return nil
}

func TestBuilderRunTidiesGazetteer(t *testing.T) {
	raw := gazetteerHeader +
		"AL\t01001\t00161526\tAutauga County\t1539634184\t25674812\t594.455\t9.913\t32.532237\t-86.646440\n" +
		"AL\t01001\t00161526\tAutauga County\t1\t1\t1\t1\t1\t1\n" +
		"CO\t8001\t00198116\tAdams County\tcorrupt\t49287003\t1167.613\t19.030\t39.873555\t-104.339219\n" +
		"XX\tABCDE\t\tNowhere\t1\t1\t1\t1\t1\t1\n"

	out, err := runBuilder(t, raw)
	require.NoError(t, err)

	header, rows, err := artifacts.ReadCSV(out)
	require.NoError(t, err)
	assert.Equal(t, Columns, header)

	// 2 kept counties + 106 state rollups + 11 manual supplements.
	require.Len(t, rows, 119)

	// Sorted by FIPS, so the statewide rollup leads its counties.
	assert.Equal(t, "01000", rows[0]["state_cnty_fips_cd"])
	assert.Equal(t, "Alabama (statewide aggregation)", rows[0]["cnty_nm"])
	assert.Equal(t, "AL", rows[0]["state_cd"])
	assert.Equal(t, "", rows[0]["cnty_ansi_nm"])
	assert.Equal(t, "", rows[0]["land_area_num"])
	assert.Equal(t, "", rows[0]["lat_num"])

	autauga := rows[1]
	assert.Equal(t, "01001", autauga["state_cnty_fips_cd"])
	assert.Equal(t, "Autauga County", autauga["cnty_nm"])
	assert.Equal(t, "00161526", autauga["cnty_ansi_nm"])
	// First duplicate wins.
	assert.Equal(t, "1539634184", autauga["land_area_num"])
	assert.Equal(t, "25674812", autauga["water_area_num"])
	assert.Equal(t, "32.532237", autauga["lat_num"])
	assert.Equal(t, "-86.64644", autauga["long_num"])

	assert.Equal(t, "01999", rows[2]["state_cnty_fips_cd"])
	assert.Equal(t, "Alabama (unspecified county)", rows[2]["cnty_nm"])

	// Short GEOID pads; a junk area cell coerces to empty.
	adams := findRow(t, rows, "08001")
	assert.Equal(t, "Adams County", adams["cnty_nm"])
	assert.Equal(t, "", adams["land_area_num"])
	assert.Equal(t, "49287003", adams["water_area_num"])

	assert.Equal(t, "Fairfield County", findRow(t, rows, "09001")["cnty_nm"])
	assert.Equal(t, "St. Croix Island", findRow(t, rows, "78010")["cnty_nm"])
	assert.Equal(t, "Puerto Rico (statewide aggregation)", findRow(t, rows, "72000")["cnty_nm"])
}

func TestBuilderRunKeepsGazetteerRowOverSupplement(t *testing.T) {
	raw := gazetteerHeader +
		"CT\t09001\t00212794\tFairfield County\t1618664577\t549280618\t624.97\t212.08\t41.268855\t-73.388430\n"

	out, err := runBuilder(t, raw)
	require.NoError(t, err)

	_, rows, err := artifacts.ReadCSV(out)
	require.NoError(t, err)
	// 1 kept county + 106 rollups + 10 supplements (09001 already present).
	require.Len(t, rows, 117)

	fairfield := findRow(t, rows, "09001")
	assert.Equal(t, "00212794", fairfield["cnty_ansi_nm"])
	assert.Equal(t, "1618664577", fairfield["land_area_num"])
}

func TestBuilderRunMissingColumns(t *testing.T) {
	raw := "USPS\tGEOID\tNAME\tALAND\tAWATER\tINTPTLAT\n" +
		"AL\t01001\tAutauga County\t1\t1\t1\n"

	_, err := runBuilder(t, raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Input file missing expected columns: ANSICODE, INTPTLONG")
}

func TestBuilderRunRequiresSource(t *testing.T) {
	err := testBuilder().Run(context.Background(), GazetteerConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gazetteer source path is required")
}

func TestBuilderRunMissingSourceFile(t *testing.T) {
	err := testBuilder().Run(context.Background(), GazetteerConfig{
		SrcTXT: filepath.Join(t.TempDir(), "missing.txt"),
		OutCSV: filepath.Join(t.TempDir(), "out.csv"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IO error during open")
}
