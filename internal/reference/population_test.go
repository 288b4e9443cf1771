package reference

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdmdatalab/econbench/internal/artifacts"
	"github.com/rdmdatalab/econbench/internal/testhelper"
	"github.com/rdmdatalab/econbench/internal/transport"
	"github.com/rdmdatalab/econbench/pkg/logging"
)

const acsPayload = `[
	["NAME","B01001_001E","state","county"],
	["Autauga County, Alabama","58805","01","001"],
	["Santa Clara County, California","1936259","6","85"],
	["Baldwin County, Alabama",null,"01","003"]
]`

const refFixture = "state_cnty_fips_cd,state_cd,cnty_nm\n" +
	"01001,AL,Autauga County\n" +
	"01003,AL,Baldwin County\n" +
	"01999,AL,Alabama (unspecified county)\n" +
	"06085,CA,Santa Clara County\n"

func testRefresher(srv *httptest.Server) *Refresher {
	return &Refresher{
		client:  transport.New("acs"),
		baseURL: srv.URL + "/data/%d/acs/acs5",
		log:     logging.Nop,
	}
}

func acsServer(t *testing.T, payload string) (*httptest.Server, *map[string][]string) {
	t.Helper()
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(payload))
	}))
	t.Cleanup(srv.Close)
	return srv, &gotQuery
}

func TestRefresherRunEnrichesReference(t *testing.T) {
	srv, gotQuery := acsServer(t, acsPayload)
	ref := testhelper.WriteTempCSV(t, "ref_state_cnty_uscb.csv", refFixture)
	out := filepath.Join(t.TempDir(), "ref_enriched.csv")

	err := testRefresher(srv).Run(context.Background(), PopulationConfig{
		RefCSV: ref,
		OutCSV: out,
		Year:   2022,
	})
	require.NoError(t, err)

	header, rows, err := artifacts.ReadCSV(out)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"state_cnty_fips_cd", "state_cd", "cnty_nm", "population_num", "population_year",
	}, header)
	require.Len(t, rows, 4)

	assert.Equal(t, "58805", rows[0]["population_num"])
	assert.Equal(t, "2022", rows[0]["population_year"])

	// Published county with a null estimate keeps the vintage.
	assert.Equal(t, "", rows[1]["population_num"])
	assert.Equal(t, "2022", rows[1]["population_year"])

	// Synthetic rollups never match.
	assert.Equal(t, "", rows[2]["population_num"])
	assert.Equal(t, "", rows[2]["population_year"])

	// Response state and county parts arrive unpadded.
	assert.Equal(t, "1936259", rows[3]["population_num"])

	assert.Equal(t, []string{"NAME,B01001_001E"}, (*gotQuery)["get"])
	assert.Equal(t, []string{"county:*"}, (*gotQuery)["for"])
	assert.Equal(t, []string{"state:*"}, (*gotQuery)["in"])
}

func TestRefresherRunReplacesPopulationColumns(t *testing.T) {
	srv, _ := acsServer(t, acsPayload)
	ref := testhelper.WriteTempCSV(t, "ref_state_cnty_uscb.csv", refFixture)
	cfg := PopulationConfig{RefCSV: ref, Year: 2022}

	rf := testRefresher(srv)
	require.NoError(t, rf.Run(context.Background(), cfg))
	require.NoError(t, rf.Run(context.Background(), cfg))

	header, rows, err := artifacts.ReadCSV(ref)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"state_cnty_fips_cd", "state_cd", "cnty_nm", "population_num", "population_year",
	}, header)
	require.Len(t, rows, 4)
	assert.Equal(t, "58805", rows[0]["population_num"])
}

func TestRefresherRunMissingReference(t *testing.T) {
	srv, _ := acsServer(t, acsPayload)

	err := testRefresher(srv).Run(context.Background(), PopulationConfig{
		RefCSV: filepath.Join(t.TempDir(), "missing.csv"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IO error during open")
}

func TestRefresherRunEmptyReference(t *testing.T) {
	srv, _ := acsServer(t, acsPayload)

	err := testRefresher(srv).Run(context.Background(), PopulationConfig{
		RefCSV: testhelper.WriteTempCSV(t, "ref.csv", ""),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reference CSV has no header")
}

func TestRefresherRunMissingFIPSColumn(t *testing.T) {
	srv, _ := acsServer(t, acsPayload)

	err := testRefresher(srv).Run(context.Background(), PopulationConfig{
		RefCSV: testhelper.WriteTempCSV(t, "ref.csv", "state_cd,cnty_nm\nAL,Autauga County\n"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reference CSV missing state_cnty_fips_cd column")
}

func TestRefresherRunEmptyPayload(t *testing.T) {
	srv, _ := acsServer(t, `[]`)

	err := testRefresher(srv).Run(context.Background(), PopulationConfig{
		RefCSV: testhelper.WriteTempCSV(t, "ref.csv", refFixture),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payload has no data rows")
}
