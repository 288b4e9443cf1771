package cmd

import (
	"github.com/spf13/cobra"

	"github.com/rdmdatalab/econbench/internal/qa"
)

// NewSnapshotCommand creates the snapshot command.
func NewSnapshotCommand(app AppContext) *cobra.Command {
	var cfg qa.SnapshotConfig

	cmd := &cobra.Command{
		Use:     "snapshot",
		GroupID: "qa",
		Short:   "Write the national totals snapshot from the warehouse",
		Example: `  econbench snapshot
  econbench snapshot --table econ_bnchmrk_abs_qcew --out artifacts/qa/national_totals_snapshot.md`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			client, err := app.Warehouse(ctx)
			if err != nil {
				return err
			}
			path, err := qa.NewSnapshot(client).Run(ctx, cfg)
			if err != nil {
				return err
			}
			app.Logger().Info().Str("path", path).Msg("Snapshot written")
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.Table, "table", "", "fact table to summarize")
	cmd.Flags().StringVar(&cfg.OutMD, "out", "", "snapshot output path")
	return cmd
}
