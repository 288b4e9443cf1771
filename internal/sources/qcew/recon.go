package qcew

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rdmdatalab/econbench/internal/artifacts"
	"github.com/rdmdatalab/econbench/pkg/econ"
	"github.com/rdmdatalab/econbench/pkg/errors"
	"github.com/rdmdatalab/econbench/pkg/logging"
	"github.com/rdmdatalab/econbench/pkg/reconcile"
)

// Loader reads filtered QCEW annual singlefiles as the source side of a
// reconciliation. It satisfies reconcile.QcewSource.
type Loader struct {
	log zerolog.Logger
}

// NewLoader returns a singlefile loader logging under the qcew component.
func NewLoader() *Loader {
	return &Loader{log: logging.With().Str("component", "qcew").Logger()}
}

// Load reads each configured year's singlefile, keeping only the configured
// counties and sectors. Metric cells stay raw so that reconciliation can
// classify suppression markers; duplicate keys keep their first row.
func (l *Loader) Load(ctx context.Context, cfg reconcile.QcewConfig) ([]reconcile.QcewSourceRow, error) {
	counties := stringSet(cfg.Counties)
	naics := stringSet(cfg.Naics)

	var rows []reconcile.QcewSourceRow
	seen := make(map[econ.Key]bool)
	for _, year := range cfg.Years {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path, err := sourcePath(cfg, year)
		if err != nil {
			return nil, err
		}
		l.log.Debug().
			Str("path", path).
			Int("year", year).
			Msg("[QCEW] Loading source singlefile")

		yearRows, err := loadYear(path, year, cfg)
		if err != nil {
			return nil, err
		}
		for _, row := range yearRows {
			if !counties[row.FIPS] || !naics[row.Sector] {
				continue
			}
			key := econ.Key{Year: row.Year, FIPS: row.FIPS, Sector: row.Sector}
			if seen[key] {
				continue
			}
			seen[key] = true
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// sourcePath resolves the raw file for a year, falling back to the QA cache
// directory when the template path is absent.
func sourcePath(cfg reconcile.QcewConfig, year int) (string, error) {
	rawPath := ExpandYear(cfg.RawTemplate, year)
	if _, err := os.Stat(rawPath); err == nil {
		return rawPath, nil
	}
	cached := filepath.Join(cfg.CacheDir, fmt.Sprintf("%d.annual.singlefile.csv", year))
	if _, err := os.Stat(cached); err == nil {
		return cached, nil
	}
	return "", errors.NewConfigError("qcew",
		fmt.Sprintf("source file not found for %d: expected %s or %s", year, rawPath, cached), nil)
}

// loadYear filters one singlefile down to the reconciliation cohort.
func loadYear(path string, year int, cfg reconcile.QcewConfig) ([]reconcile.QcewSourceRow, error) {
	header, records, err := artifacts.ReadCSV(path)
	if err != nil {
		return nil, err
	}
	resolved, err := resolveColumns(header)
	if err != nil {
		return nil, err
	}

	want := strconv.Itoa(year)
	rows := make([]reconcile.QcewSourceRow, 0, len(records))
	for _, record := range records {
		if fieldText(record, resolved, colYear) != want {
			continue
		}
		if qtr := field(record, resolved, colQtr); qtr != nil && strings.ToUpper(strings.TrimSpace(*qtr)) != "A" {
			continue
		}
		if own := field(record, resolved, colOwn); own != nil && strings.TrimSpace(*own) != cfg.OwnershipCode {
			continue
		}
		if fieldText(record, resolved, colAggLevel) != cfg.AggLevel {
			continue
		}
		fips := econ.PadFIPS(fieldText(record, resolved, colArea))
		if len(fips) != 5 {
			continue
		}
		sector := econ.NormalizeSector(fieldText(record, resolved, colIndustry))
		if sector == "" {
			continue
		}

		state, county := econ.SplitFIPS(fips)
		rows = append(rows, reconcile.QcewSourceRow{
			Year:          year,
			FIPS:          fips,
			StateFIPS:     state,
			CountyFIPS:    county,
			Sector:        sector,
			Emp:           field(record, resolved, colEmp),
			Wages:         field(record, resolved, colWages),
			AvgWeeklyWage: field(record, resolved, colAvgWage),
		})
	}
	return rows, nil
}

func stringSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}
