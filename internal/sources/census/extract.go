package census

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"github.com/rdmdatalab/econbench/internal/artifacts"
	"github.com/rdmdatalab/econbench/internal/transport"
	"github.com/rdmdatalab/econbench/pkg/constants"
	"github.com/rdmdatalab/econbench/pkg/econ"
	"github.com/rdmdatalab/econbench/pkg/errors"
	"github.com/rdmdatalab/econbench/pkg/logging"
)

// DefaultExtractCSV is where the cleaned ABS extract lands.
const DefaultExtractCSV = "data_clean/abs/econ_bnchmrk_abs.csv"

// DefaultExtractYear is the ABS vintage pulled when none is given.
const DefaultExtractYear = 2022

// ExtractConfig drives one ABS extract run.
type ExtractConfig struct {
	Year   int
	OutCSV string
	GCSURI string
}

// ExtractColumns is the cleaned extract's column order.
var ExtractColumns = []string{
	"year_num",
	"state_cnty_fips_cd",
	"naics2_sector_cd",
	"cnty_nm",
	"geo_id",
	"naics2_sector_desc",
	"ind_level_num",
	"state_fips_cd",
	"cnty_fips_cd",
	"abs_firm_num",
	"abs_emp_num",
	"abs_payroll_usd_amt",
	"abs_rcpt_usd_amt",
	"abs_rcpt_per_emp_usd_amt",
}

// ExtractRow is one cleaned county × sector observation. Receipts arrive
// per employer; the total is derived so the fact table gets a comparable
// dollar figure.
type ExtractRow struct {
	Year              int
	FIPS              string
	Sector            string
	CountyName        string
	GeoID             string
	SectorDesc        string
	IndLevel          string
	StateFIPS         string
	CountyFIPS        string
	Firms             *float64
	Emp               *float64
	PayrollUSD        *float64
	ReceiptsUSD       *float64
	ReceiptsPerEmpUSD *float64
}

// Uploader mirrors a local artifact to Cloud Storage.
type Uploader interface {
	Upload(ctx context.Context, bucket, object, path string) error
}

// Extractor pulls and normalizes the ABS county dataset.
type Extractor struct {
	client  *transport.Client
	baseURL string
	log     zerolog.Logger
}

// NewExtractor builds the extract fetcher. The API key is optional.
func NewExtractor(apiKey string) *Extractor {
	return &Extractor{
		client: transport.New(Source,
			transport.WithTimeout(constants.CensusAPITimeout),
			transport.WithAuth(&transport.QueryAuth{Param: "key"}, apiKey),
		),
		baseURL: baseURL,
		log:     logging.With().Str("component", "abs").Logger(),
	}
}

// Fetch pulls the sector-level county dataset for one vintage and returns
// cleaned rows sorted by (year, fips, sector).
func (e *Extractor) Fetch(ctx context.Context, year int) ([]ExtractRow, error) {
	url := transport.NewRequestBuilder(datasetURL(e.baseURL, year)).
		Param("get", extractFields).
		Param("for", "county:*").
		Param("INDLEVEL", "2").
		URL()

	var payload [][]*string
	if err := e.client.GetJSON(ctx, url, &payload); err != nil {
		return nil, err
	}
	if len(payload) < 2 {
		return nil, errors.NewParseError("json", url, "payload has no data rows", nil)
	}

	header := payload[0]
	rows := make([]ExtractRow, 0, len(payload)-1)
	for _, raw := range payload[1:] {
		rows = append(rows, newExtractRow(year, zipRecord(header, raw)))
	}

	sort.Slice(rows, func(i, j int) bool {
		a := econ.Key{Year: rows[i].Year, FIPS: rows[i].FIPS, Sector: rows[i].Sector}
		b := econ.Key{Year: rows[j].Year, FIPS: rows[j].FIPS, Sector: rows[j].Sector}
		return a.Less(b)
	})
	return rows, nil
}

// Run fetches one vintage, writes the cleaned CSV, and optionally mirrors
// it to Cloud Storage. The local file is the artifact of record: an upload
// failure is a warning, not an error.
func (e *Extractor) Run(ctx context.Context, cfg ExtractConfig, up Uploader) error {
	if cfg.Year == 0 {
		cfg.Year = DefaultExtractYear
	}
	if cfg.OutCSV == "" {
		cfg.OutCSV = DefaultExtractCSV
	}

	rows, err := e.Fetch(ctx, cfg.Year)
	if err != nil {
		return err
	}

	if err := artifacts.WriteCSV(cfg.OutCSV, ExtractColumns, ExtractRecords(rows)); err != nil {
		return err
	}
	e.log.Info().Str("path", cfg.OutCSV).Int("rows", len(rows)).Msg("[ABS] Wrote extract CSV")

	if cfg.GCSURI == "" {
		return nil
	}
	if up == nil {
		e.log.Warn().Str("uri", cfg.GCSURI).Msg("[ABS] No uploader configured, skipping GCS write")
		return nil
	}
	bucket, object, err := artifacts.ParseGCSURI(cfg.GCSURI)
	if err != nil {
		e.log.Warn().Err(err).Str("uri", cfg.GCSURI).Msg("[ABS] Failed to write GCS object")
		return nil
	}
	if err := up.Upload(ctx, bucket, object, cfg.OutCSV); err != nil {
		e.log.Warn().Err(err).Str("uri", cfg.GCSURI).Msg("[ABS] Failed to write GCS object")
		return nil
	}
	e.log.Info().Str("uri", cfg.GCSURI).Msg("[ABS] Wrote GCS object")
	return nil
}

func newExtractRow(year int, record map[string]*string) ExtractRow {
	firms, _ := econ.ParseNumericPtr(record["FIRMPDEMP"])
	emp, _ := econ.ParseNumericPtr(record["EMP"])
	payroll, _ := econ.ParseNumericPtr(record["PAYANN"])
	perEmp, _ := econ.ParseNumericPtr(record["RCPPDEMP"])
	scaleThousands(payroll)
	scaleThousands(perEmp)

	var receipts *float64
	if perEmp != nil && emp != nil {
		v := *perEmp * *emp
		receipts = &v
	}

	state, county := fipsOf(record)
	return ExtractRow{
		Year:              year,
		FIPS:              state + county,
		Sector:            sectorOf(record),
		CountyName:        deref(record["NAME"]),
		GeoID:             deref(record["GEO_ID"]),
		SectorDesc:        deref(record["NAICS2022_LABEL"]),
		IndLevel:          deref(record["INDLEVEL"]),
		StateFIPS:         state,
		CountyFIPS:        county,
		Firms:             firms,
		Emp:               emp,
		PayrollUSD:        payroll,
		ReceiptsUSD:       receipts,
		ReceiptsPerEmpUSD: perEmp,
	}
}

// Cells renders the row as column name → cell text.
func (r ExtractRow) Cells() map[string]string {
	return map[string]string{
		"year_num":                 artifacts.FormatInt(r.Year),
		"state_cnty_fips_cd":       r.FIPS,
		"naics2_sector_cd":         r.Sector,
		"cnty_nm":                  r.CountyName,
		"geo_id":                   r.GeoID,
		"naics2_sector_desc":       r.SectorDesc,
		"ind_level_num":            r.IndLevel,
		"state_fips_cd":            r.StateFIPS,
		"cnty_fips_cd":             r.CountyFIPS,
		"abs_firm_num":             artifacts.FormatFloat(r.Firms),
		"abs_emp_num":              artifacts.FormatFloat(r.Emp),
		"abs_payroll_usd_amt":      artifacts.FormatFloat(r.PayrollUSD),
		"abs_rcpt_usd_amt":         artifacts.FormatFloat(r.ReceiptsUSD),
		"abs_rcpt_per_emp_usd_amt": artifacts.FormatFloat(r.ReceiptsPerEmpUSD),
	}
}

// ExtractRecords renders rows in ExtractColumns order for CSV output.
func ExtractRecords(rows []ExtractRow) [][]string {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		cells := r.Cells()
		record := make([]string, len(ExtractColumns))
		for i, col := range ExtractColumns {
			record[i] = cells[col]
		}
		records = append(records, record)
	}
	return records
}
