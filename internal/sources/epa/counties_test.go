package epa

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdmdatalab/econbench/internal/testhelper"
)

func TestNormalizeCountyName(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "plain county", raw: "Santa Clara County", want: "santaclara"},
		{name: "saint abbreviation", raw: "ST. LOUIS CITY", want: "saintlouis"},
		{name: "parish", raw: "La Salle Parish", want: "lasalle"},
		{name: "municipality", raw: "Anchorage Municipality", want: "anchorage"},
		{name: "census area", raw: "Valdez-Cordova Census Area", want: "valdezcordova"},
		{name: "hyphenated census area", raw: "PRINCE OF WALES-HYDER CENSUS AREA", want: "princeofwaleshyder"},
		{name: "island", raw: "St. Thomas Island", want: "saintthomas"},
		{name: "city and borough", raw: "Juneau City and Borough", want: "juneauand"},
		{name: "diacritics", raw: "Doña Ana", want: "doaana"},
		{name: "empty", raw: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeCountyName(tt.raw))
		})
	}
}

func TestLoadCountyLookup(t *testing.T) {
	path := testhelper.WriteTempCSV(t, "uscounties.csv", simplemapsHeader+
		"Baltimore,Baltimore,Baltimore County,24005,MD,Maryland\n"+
		"Baltimore,Baltimore,Baltimore City,24510,MD,Maryland\n"+
		"Doña Ana,Dona Ana,Doña Ana County,35013,NM,New Mexico\n"+
		"Santa Clara,Santa Clara,Santa Clara County,6085,CA,California\n"+
		"Capitol,Capitol,Capitol Planning Region,09110,CT,Connecticut\n")

	lookup, err := loadCountyLookup(path)
	require.NoError(t, err)

	// The first spelling of a colliding name wins.
	assert.Equal(t, "24005", lookup[countyKey{State: "MD", Name: "baltimore"}])

	// Ascii and full-name variants key the same FIPS.
	assert.Equal(t, "35013", lookup[countyKey{State: "NM", Name: "doaana"}])
	assert.Equal(t, "35013", lookup[countyKey{State: "NM", Name: "donaana"}])

	assert.Equal(t, "06085", lookup[countyKey{State: "CA", Name: "santaclara"}])
	assert.Equal(t, "09110", lookup[countyKey{State: "CT", Name: "capitol"}])

	// Manual pins cover names the reference dropped.
	assert.Equal(t, "09009", lookup[countyKey{State: "CT", Name: "newhaven"}])
	assert.Equal(t, "02261", lookup[countyKey{State: "AK", Name: "valdezcordova"}])
}

func TestLoadCountyLookupMissingColumns(t *testing.T) {
	path := testhelper.WriteTempCSV(t, "uscounties.csv",
		"county,county_ascii,state_id,state_name\nKing,King,WA,Washington\n")

	_, err := loadCountyLookup(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Simplemaps file missing expected columns: county_fips, county_full")
}

func TestLoadCountyLookupMissingFile(t *testing.T) {
	_, err := loadCountyLookup(filepath.Join(t.TempDir(), "uscounties.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IO error during open")
}
