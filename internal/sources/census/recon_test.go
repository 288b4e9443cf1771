package census

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdmdatalab/econbench/internal/transport"
	"github.com/rdmdatalab/econbench/pkg/logging"
)

func testReconSource(srv *httptest.Server) *ReconSource {
	return &ReconSource{
		client:  transport.New(Source),
		baseURL: srv.URL + "/data/%d/abscs",
		log:     logging.Nop,
	}
}

func TestFetchSlicesParsesPayload(t *testing.T) {
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(`[
			["NAICS2022","NAME","FIRMPDEMP","EMP","PAYANN","RCPPDEMP","state","county"],
			["62","San Francisco County, California","100","5000","2500","D","06","075"]
		]`))
	}))
	defer srv.Close()

	s := testReconSource(srv)
	rows, err := s.FetchSlices(context.Background(), []int{2022}, []string{"06075"}, []string{"62"})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, 2022, row.Year)
	assert.Equal(t, "06075", row.FIPS)
	assert.Equal(t, "06", row.StateFIPS)
	assert.Equal(t, "075", row.CountyFIPS)
	assert.Equal(t, "62", row.Sector)
	require.NotNil(t, row.Firms)
	assert.Equal(t, 100.0, *row.Firms)
	require.NotNil(t, row.PayrollUSD)
	assert.Equal(t, 2500000.0, *row.PayrollUSD)
	assert.Nil(t, row.ReceiptsUSD)
	assert.Equal(t, "source_suppressed", row.Notes)

	require.NotNil(t, gotQuery)
	assert.Equal(t, []string{"NAICS2022,NAME,FIRMPDEMP,EMP,PAYANN,RCPPDEMP"}, gotQuery["get"])
	assert.Equal(t, []string{"county:075"}, gotQuery["for"])
	assert.Equal(t, []string{"state:06"}, gotQuery["in"])
	assert.Equal(t, []string{"62"}, gotQuery["NAICS2022"])
}

func TestFetchSlicesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no such dataset", http.StatusNotFound)
	}))
	defer srv.Close()

	s := testReconSource(srv)
	rows, err := s.FetchSlices(context.Background(), []int{2022}, []string{"06075"}, []string{"62"})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Nil(t, row.Firms)
	assert.Nil(t, row.Emp)
	notes := strings.Split(row.Notes, ";")
	require.Len(t, notes, 2)
	assert.True(t, strings.HasPrefix(notes[0], "census_http_error:"))
	assert.Equal(t, "source_missing", notes[1])
}

func TestFetchSlicesBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"not":"an array"`))
	}))
	defer srv.Close()

	s := testReconSource(srv)
	rows, err := s.FetchSlices(context.Background(), []int{2022}, []string{"06075"}, []string{"62"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Contains(t, rows[0].Notes, "census_json_error:")
}

func TestFetchSlicesEmptyPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	s := testReconSource(srv)
	rows, err := s.FetchSlices(context.Background(), []int{2022}, []string{"6075"}, []string{"7"}) // unpadded on purpose
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "06075", row.FIPS)
	assert.Equal(t, "07", row.Sector)
	notes := strings.Split(row.Notes, ";")
	assert.Equal(t, []string{"census_empty_response", "source_missing"}, notes)
}

func TestFetchFullSurface(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("in") {
		case "state:01":
			_, _ = w.Write([]byte(`[
				["NAICS2022","NAME","FIRMPDEMP","EMP","PAYANN","RCPPDEMP","state","county"],
				["31-33","Autauga County, Alabama","40","800","300","700","1","1"],
				["62","Autauga County, Alabama",null,"900","400","800","1","1"]
			]`))
		case "state:02":
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
		default:
			_, _ = w.Write([]byte(`[]`))
		}
	}))
	defer srv.Close()

	s := testReconSource(srv)
	rows, err := s.FetchFullSurface(context.Background(), []int{2022})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "01001", rows[0].FIPS)
	assert.Equal(t, "31-33", rows[0].Sector)
	require.NotNil(t, rows[0].PayrollUSD)
	assert.Equal(t, 300000.0, *rows[0].PayrollUSD)
	assert.Empty(t, rows[0].Notes)

	// Null FIRMPDEMP cell reads as missing, not suppressed.
	assert.Nil(t, rows[1].Firms)
	assert.Equal(t, "source_missing", rows[1].Notes)

	errRow := rows[2]
	assert.Equal(t, "02000", errRow.FIPS)
	assert.Equal(t, "", errRow.Sector)
	assert.Contains(t, errRow.Notes, "census_http_error:")
}
