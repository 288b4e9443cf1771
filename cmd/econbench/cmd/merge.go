package cmd

import (
	"github.com/spf13/cobra"

	"github.com/rdmdatalab/econbench/internal/integrate"
)

// NewMergeCommand creates the merge command.
func NewMergeCommand(_ AppContext) *cobra.Command {
	var cfg integrate.Config

	cmd := &cobra.Command{
		Use:     "merge",
		GroupID: "pipeline",
		Short:   "Merge the cleaned extracts into the integrated fact table",
		Long: `Merge outer-joins the per-year ABS and QCEW benchmarks on
(year, county, sector), enriches them with the county reference, and
recomputes the derived ratio columns.`,
		Example: `  econbench merge
  econbench merge --years 2022,2023 --out data_clean/integration/econ_bnchmrk_abs_qcew.csv`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return integrate.NewMerger().Run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().IntSliceVar(&cfg.Years, "years", nil, "years to merge (default 2022,2023)")
	cmd.Flags().StringVar(&cfg.AbsPattern, "abs-pattern", "", "ABS input path template with {year}")
	cmd.Flags().StringVar(&cfg.QcewPattern, "qcew-pattern", "", "QCEW input path template with {year}")
	cmd.Flags().StringVar(&cfg.RefCSV, "ref", "", "county reference CSV")
	cmd.Flags().StringVar(&cfg.OutCSV, "out", "", "fact table output CSV")
	return cmd
}
