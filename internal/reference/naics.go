package reference

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rdmdatalab/econbench/internal/artifacts"
	"github.com/rdmdatalab/econbench/pkg/errors"
)

// DefaultNaicsCSV is where the sector reference lives.
const DefaultNaicsCSV = "data_clean/reference/ref_naics2_sector.csv"

// NaicsColumns is the sector reference schema in output order.
var NaicsColumns = []string{"naics2_sector_cd", "naics2_sector_desc"}

// naicsExtras are the synthetic sectors the raw Census file omits: the
// all-sector total and the suppression bucket.
var naicsExtras = []NaicsRow{
	{Code: "00", Desc: "Total for all sectors"},
	{Code: "99", Desc: "Unclassified (suppression bucket)"},
}

// NaicsConfig drives one sector reference build.
type NaicsConfig struct {
	SrcCSV string
	OutCSV string
}

// NaicsRow is one sector reference entry.
type NaicsRow struct {
	Code string
	Desc string
}

// RunNaics tidies the raw headerless sector file, appends the synthetic
// sectors not already present, and writes the reference sorted by code.
func (b *Builder) RunNaics(ctx context.Context, cfg NaicsConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if cfg.SrcCSV == "" {
		return errors.NewConfigError("reference", "naics source path is required", nil)
	}
	if cfg.OutCSV == "" {
		cfg.OutCSV = DefaultNaicsCSV
	}

	rows, err := readNaicsRaw(cfg.SrcCSV)
	if err != nil {
		return err
	}

	present := make(map[string]bool, len(rows))
	for _, row := range rows {
		present[row.Code] = true
	}
	for _, extra := range naicsExtras {
		if present[extra.Code] {
			continue
		}
		rows = append(rows, extra)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Code < rows[j].Code })

	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		records = append(records, []string{row.Code, row.Desc})
	}
	if err := artifacts.WriteCSV(cfg.OutCSV, NaicsColumns, records); err != nil {
		return err
	}
	b.log.Info().
		Str("path", cfg.OutCSV).
		Int("sectors", len(rows)).
		Msg("Wrote sector reference")
	return nil
}

// readNaicsRaw loads the raw two-column sector CSV. The file carries no
// header row.
func readNaicsRaw(path string) ([]NaicsRow, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from operator flags
	if err != nil {
		return nil, errors.WrapIO("open", path, err)
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.WrapParse("csv", path, err)
	}

	rows := make([]NaicsRow, 0, len(records))
	for i, record := range records {
		if len(record) < 2 {
			return nil, errors.NewParseError("csv", path,
				fmt.Sprintf("row %d: expected 2 columns, got %d", i+1, len(record)), nil)
		}
		code := strings.TrimSpace(record[0])
		if code == "" {
			continue
		}
		rows = append(rows, NaicsRow{Code: code, Desc: strings.TrimSpace(record[1])})
	}
	return rows, nil
}
