package cmd

import (
	"github.com/spf13/cobra"

	"github.com/rdmdatalab/econbench/internal/qa"
)

// NewDictionaryCommand creates the dictionary command.
func NewDictionaryCommand(app AppContext) *cobra.Command {
	var cfg qa.DictionaryConfig

	cmd := &cobra.Command{
		Use:     "dictionary",
		GroupID: "qa",
		Short:   "Generate the data dictionary for the cleaned exports",
		Long: `Dictionary scans the cleaned CSVs, infers column types and
descriptions from the naming conventions, applies the YAML overrides, and
writes the dictionary as markdown and CSV.`,
		Example: `  econbench dictionary
  econbench dictionary --metadata metadata/data_dictionary.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := qa.NewDictionaryBuilder().Run(cmd.Context(), cfg); err != nil {
				return err
			}
			app.Logger().Info().Msg("Data dictionary written")
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&cfg.Globs, "glob", nil, "CSV globs to document (default the data_clean tree)")
	cmd.Flags().StringVar(&cfg.MetadataYAML, "metadata", "", "per-file override YAML")
	cmd.Flags().StringVar(&cfg.OutMD, "out-md", "", "markdown output path")
	cmd.Flags().StringVar(&cfg.OutCSV, "out-csv", "", "CSV output path")
	return cmd
}
