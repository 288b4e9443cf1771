package qa

import (
	"context"
	"fmt"
	"path/filepath"

	md "github.com/nao1215/markdown"
	"github.com/rs/zerolog"

	"github.com/rdmdatalab/econbench/internal/reports"
	"github.com/rdmdatalab/econbench/internal/warehouse"
	"github.com/rdmdatalab/econbench/pkg/constants"
	"github.com/rdmdatalab/econbench/pkg/econ"
	"github.com/rdmdatalab/econbench/pkg/errors"
	"github.com/rdmdatalab/econbench/pkg/logging"
)

// TotalsSource provides the per-year national rollup of the published fact
// table, normally a warehouse client.
type TotalsSource interface {
	SnapshotTotals(ctx context.Context, table string) ([]warehouse.YearTotals, error)
}

// SnapshotConfig drives one national totals snapshot.
type SnapshotConfig struct {
	Table string
	OutMD string
}

// Snapshot writes the one-page national totals summary used to eyeball a
// freshly published fact table.
type Snapshot struct {
	source TotalsSource
	log    zerolog.Logger
}

// NewSnapshot builds a snapshot over the given totals source.
func NewSnapshot(source TotalsSource) *Snapshot {
	return &Snapshot{
		source: source,
		log:    logging.With().Str("component", "snapshot").Logger(),
	}
}

// Run queries the rollup and writes the markdown snapshot. An empty rollup
// is an error: it means the table is missing or was published empty.
func (s *Snapshot) Run(ctx context.Context, cfg SnapshotConfig) (string, error) {
	cfg = withSnapshotDefaults(cfg)

	s.log.Info().Str("table", cfg.Table).Msg("[NATIONAL SNAPSHOT] Querying national totals")
	totals, err := s.source.SnapshotTotals(ctx, cfg.Table)
	if err != nil {
		return "", err
	}
	if len(totals) == 0 {
		return "", errors.NewNotFoundError("snapshot totals", cfg.Table)
	}

	for _, t := range totals {
		s.log.Info().Int("year", t.Year).Int64("rows", t.Rows).
			Int64("counties", t.Counties).Int64("sectors", t.Sectors).
			Msg("[NATIONAL SNAPSHOT] Year totals")
	}

	if err := s.write(cfg, totals); err != nil {
		return "", err
	}
	s.log.Info().Str("path", cfg.OutMD).Msg("[NATIONAL SNAPSHOT] Wrote snapshot")
	return cfg.OutMD, nil
}

func (s *Snapshot) write(cfg SnapshotConfig, totals []warehouse.YearTotals) error {
	return reports.Write(cfg.OutMD, func(doc *md.Markdown) {
		doc.H1("National Totals Snapshot").LF()
		doc.PlainTextf("Table: `%s`", cfg.Table).LF()

		rows := make([][]string, 0, len(totals))
		for _, t := range totals {
			rows = append(rows, []string{
				fmt.Sprintf("%d", t.Year),
				reports.FormatCount(t.Rows),
				reports.FormatCount(t.Counties),
				reports.FormatCount(t.Sectors),
				reports.FormatInt(t.AbsFirms),
				reports.FormatInt(t.AbsEmp),
				reports.FormatUSD(t.AbsPayrollUSD),
				reports.FormatUSD(t.AbsReceiptsUSD),
				reports.FormatInt(t.QcewEmp),
				reports.FormatUSD(t.QcewWagesUSD),
			})
		}
		doc.Table(md.TableSet{
			Header: []string{
				"Year", "Rows", "Counties", "Sectors",
				"ABS firms", "ABS emp", "ABS payroll", "ABS receipts",
				"QCEW emp", "QCEW wages",
			},
			Rows: rows,
		}).LF()

		doc.H2("Derived")
		derived := make([][]string, 0, len(totals))
		for _, t := range totals {
			absWage := econ.SafeDivide(t.AbsPayrollUSD, t.AbsEmp)
			qcewWage := econ.SafeDivide(t.QcewWagesUSD, t.QcewEmp)
			derived = append(derived, []string{
				fmt.Sprintf("%d", t.Year),
				reports.FormatUSD(absWage),
				reports.FormatUSD(qcewWage),
				reports.FormatUSD(econ.SafeDivide(t.AbsReceiptsUSD, t.AbsFirms)),
				reports.FormatFloat(econ.SafeDivide(absWage, qcewWage), 3),
			})
		}
		doc.Table(md.TableSet{
			Header: []string{"Year", "ABS wage/emp", "QCEW wage/emp", "ABS receipts/firm", "ABS/QCEW wage ratio"},
			Rows:   derived,
		})
	})
}

func withSnapshotDefaults(cfg SnapshotConfig) SnapshotConfig {
	if cfg.Table == "" {
		cfg.Table = warehouse.FactTable
	}
	if cfg.OutMD == "" {
		cfg.OutMD = filepath.Join(constants.DefaultQAOutDir, "national_totals_snapshot.md")
	}
	return cfg
}
