package cmd

import (
	"github.com/spf13/cobra"

	"github.com/rdmdatalab/econbench/internal/qa"
)

// NewYoyCommand creates the yoy command.
func NewYoyCommand(app AppContext) *cobra.Command {
	var cfg qa.YoyConfig

	cmd := &cobra.Command{
		Use:     "yoy",
		GroupID: "qa",
		Short:   "Write the year-over-year rollup summaries from the warehouse",
		Long: `Yoy rolls the fact table up nationally and by sector for two years
and writes the totals, sector deltas, and ratio deltas as CSV and
markdown pairs.`,
		Example: `  econbench yoy --years 2022,2023
  econbench yoy --years 2022,2023 --table econ_bnchmrk_abs_qcew --outdir outputs/qa`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			client, err := app.Warehouse(ctx)
			if err != nil {
				return err
			}
			return qa.NewYoySummary(client).Run(ctx, cfg)
		},
	}

	cmd.Flags().IntSliceVar(&cfg.Years, "years", []int{2022, 2023}, "the two years to compare")
	cmd.Flags().StringVar(&cfg.Table, "table", "", "fact table to roll up")
	cmd.Flags().StringVar(&cfg.OutDir, "outdir", "", "summary output directory")
	return cmd
}
