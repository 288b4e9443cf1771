package cmd

import (
	"github.com/spf13/cobra"

	"github.com/rdmdatalab/econbench/internal/qa"
	"github.com/rdmdatalab/econbench/pkg/errors"
)

// NewQACommand creates the qa command group.
func NewQACommand(app AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "qa",
		GroupID: "qa",
		Short:   "Run the fact-table and export quality checks",
		Long: `QA validates the integrated fact table before and after handoff.

Available subcommands:
  fact   - Structural and statistical checks on the fact CSV
  sanity - Pre-handoff validation of the export bundle`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newQAFactCommand(app))
	cmd.AddCommand(newQASanityCommand(app))
	return cmd
}

func newQAFactCommand(app AppContext) *cobra.Command {
	var cfg qa.FactConfig

	cmd := &cobra.Command{
		Use:   "fact",
		Short: "Check the integrated fact table",
		Example: `  econbench qa fact --fact data_clean/integration/econ_bnchmrk_abs_qcew.csv \
    --simplemaps data_raw/reference/uscounties.csv`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := qa.NewFactSuite().Run(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			app.Logger().Info().Str("log", report.LogPath).Msg("QA log written")
			if !report.Passed {
				return errors.ErrChecksFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.FactCSV, "fact", "data_clean/integration/econ_bnchmrk_abs_qcew.csv", "fact table CSV")
	cmd.Flags().StringVar(&cfg.SimplemapsCSV, "simplemaps", "data_raw/reference/uscounties.csv", "simplemaps county reference CSV")
	cmd.Flags().StringVar(&cfg.OutDir, "outdir", "", "QA output directory")
	cmd.Flags().IntSliceVar(&cfg.ExpectedYears, "years", nil, "years the fact table must cover (default 2022,2023)")
	return cmd
}

func newQASanityCommand(app AppContext) *cobra.Command {
	var cfg qa.SanityConfig

	cmd := &cobra.Command{
		Use:   "sanity",
		Short: "Validate the export bundle before handoff",
		Long: `Sanity runs the pre-handoff checks over the fact, county, and NAICS
export CSVs. ERROR-severity failures make the command exit nonzero after
the reports are written; WARN failures are advisory.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := qa.NewSanityChecker().Run(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			app.Logger().Info().
				Str("markdown", report.MarkdownPath).
				Str("json", report.JSONPath).
				Msg("Sanity reports written")
			if report.HasErrors() {
				return errors.ErrChecksFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.FactCSV, "fact", "data_clean/integration/econ_bnchmrk_abs_qcew.csv", "fact export CSV")
	cmd.Flags().StringVar(&cfg.CountyCSV, "county", "data_clean/reference/ref_state_cnty_uscb.csv", "county reference export CSV")
	cmd.Flags().StringVar(&cfg.NaicsCSV, "naics", "data_clean/reference/ref_naics2_sector.csv", "NAICS reference export CSV")
	cmd.Flags().StringVar(&cfg.OutDir, "outdir", "", "report output directory")
	cmd.Flags().IntSliceVar(&cfg.ExpectedYears, "years", nil, "years the export must cover (default 2022,2023)")
	return cmd
}
