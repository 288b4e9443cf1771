package cmd

import (
	"github.com/spf13/cobra"

	"github.com/rdmdatalab/econbench/internal/sources/bea"
	"github.com/rdmdatalab/econbench/internal/sources/epa"
	"github.com/rdmdatalab/econbench/internal/sources/qcew"
)

// NewPrepareCommand creates the prepare command group.
func NewPrepareCommand(app AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "prepare",
		GroupID: "pipeline",
		Short:   "Clean raw source files into benchmark CSVs",
		Long: `Prepare shapes downloaded raw files into the cleaned layouts the
merge and QA stages consume.

Available subcommands:
  qcew - BLS QCEW annual singlefiles to county-by-sector benchmarks
  bea  - BEA CAGDP2 county GDP to tidy per-sector rows
  tri  - EPA TRI releases to county-by-sector pound totals`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newPrepareQcewCommand(app))
	cmd.AddCommand(newPrepareBeaCommand(app))
	cmd.AddCommand(newPrepareTriCommand(app))
	return cmd
}

func newPrepareQcewCommand(_ AppContext) *cobra.Command {
	var cfg qcew.PrepConfig

	cmd := &cobra.Command{
		Use:   "qcew",
		Short: "Clean QCEW annual singlefiles into per-year and stacked benchmarks",
		Example: `  econbench prepare qcew --years 2022,2023
  econbench prepare qcew --years 2022 --raw data_raw/qcew/2022.annual.singlefile.csv`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return qcew.NewPrep().Run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().IntSliceVar(&cfg.Years, "years", nil, "years to clean (default 2022,2023)")
	cmd.Flags().StringVar(&cfg.RawTemplate, "raw-template", "", "raw singlefile path template with {year}")
	cmd.Flags().StringVar(&cfg.PerYearPattern, "per-year-pattern", "", "per-year output path template with {year}")
	cmd.Flags().StringVar(&cfg.StackedOut, "stacked-out", "", "stacked all-years output CSV (empty skips it)")
	cmd.Flags().StringVar(&cfg.SingleRaw, "raw", "", "explicit raw file for a single-year run")
	return cmd
}

func newPrepareBeaCommand(_ AppContext) *cobra.Command {
	var cfg bea.Config

	cmd := &cobra.Command{
		Use:   "bea",
		Short: "Tidy the BEA CAGDP2 county GDP table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return bea.NewPrep().Run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.RawCSV, "raw", "", "raw CAGDP2 CSV download")
	cmd.Flags().IntSliceVar(&cfg.Years, "years", nil, "years to keep (default 2022,2023)")
	cmd.Flags().StringVar(&cfg.OutCSV, "out", "", "tidied output CSV")
	return cmd
}

func newPrepareTriCommand(_ AppContext) *cobra.Command {
	var cfg epa.Config

	cmd := &cobra.Command{
		Use:   "tri",
		Short: "Aggregate EPA TRI releases to county-by-sector totals",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return epa.NewPrep().Run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.RawTXT, "raw", "", "raw TRI basic data file")
	cmd.Flags().StringVar(&cfg.SimplemapsCSV, "simplemaps", "", "simplemaps county reference CSV")
	cmd.Flags().StringVar(&cfg.OutCSV, "out", "", "aggregated output CSV")
	return cmd
}
