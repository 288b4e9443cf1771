package cmd

import (
	"github.com/spf13/cobra"

	"github.com/rdmdatalab/econbench/internal/sources/census"
)

// NewFetchCommand creates the fetch command group.
func NewFetchCommand(app AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "fetch",
		GroupID: "pipeline",
		Short:   "Fetch source data from agency APIs",
		Long: `Fetch pulls raw data from the source agencies.

Available subcommands:
  abs - Census Annual Business Survey county-by-sector extract`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newFetchAbsCommand(app))
	return cmd
}

func newFetchAbsCommand(app AppContext) *cobra.Command {
	var cfg census.ExtractConfig

	cmd := &cobra.Command{
		Use:   "abs",
		Short: "Pull the ABS county-by-sector extract from the Census API",
		Example: `  econbench fetch abs --year 2022
  econbench fetch abs --year 2023 --out data_clean/abs/econ_bnchmrk_abs_2023.csv
  econbench fetch abs --gcs-uri gs://rdm-datalab/abs/econ_bnchmrk_abs_2022.csv`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			var up census.Uploader
			if cfg.GCSURI != "" {
				uploader, err := app.Uploader(ctx)
				if err != nil {
					// Upload is best effort; the extractor warns and keeps
					// the local file.
					app.Logger().Warn().Err(err).Msg("Cloud Storage unavailable, skipping upload")
				} else {
					up = uploader
				}
			}
			return census.NewExtractor(app.CensusAPIKey()).Run(ctx, cfg, up)
		},
	}

	cmd.Flags().IntVar(&cfg.Year, "year", census.DefaultExtractYear, "ABS vintage to pull")
	cmd.Flags().StringVar(&cfg.OutCSV, "out", "", "output CSV path (default data_clean/abs/econ_bnchmrk_abs_<year>.csv)")
	cmd.Flags().StringVar(&cfg.GCSURI, "gcs-uri", "", "optional gs:// URI to mirror the extract to")
	return cmd
}
