package cmd

import (
	"github.com/spf13/cobra"

	"github.com/rdmdatalab/econbench/internal/reference"
)

// NewReferenceCommand creates the reference command group.
func NewReferenceCommand(app AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "reference",
		GroupID: "pipeline",
		Short:   "Build and refresh the reference tables",
		Long: `Reference maintains the lookup tables the merge and QA layers join
against.

Available subcommands:
  build      - Build the county reference from the Census Gazetteer file
  population - Join ACS county population onto the county reference
  naics      - Build the NAICS2 sector reference`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newReferenceBuildCommand(app))
	cmd.AddCommand(newReferencePopulationCommand(app))
	cmd.AddCommand(newReferenceNaicsCommand(app))
	return cmd
}

func newReferenceNaicsCommand(_ AppContext) *cobra.Command {
	var cfg reference.NaicsConfig

	cmd := &cobra.Command{
		Use:   "naics",
		Short: "Build the NAICS2 sector reference from the raw sector file",
		Example: `  econbench reference naics --src data_raw/naics/naics_2022_sector_2digit.csv`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return reference.NewBuilder().RunNaics(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.SrcCSV, "src", "", "raw headerless sector CSV")
	cmd.Flags().StringVar(&cfg.OutCSV, "out", "", "sector reference output CSV")
	return cmd
}

func newReferenceBuildCommand(_ AppContext) *cobra.Command {
	var cfg reference.GazetteerConfig

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the county reference from the Gazetteer counties file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return reference.NewBuilder().Run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.SrcTXT, "src", "", "Gazetteer counties TXT file")
	cmd.Flags().StringVar(&cfg.OutCSV, "out", "", "reference output CSV")
	return cmd
}

func newReferencePopulationCommand(app AppContext) *cobra.Command {
	var cfg reference.PopulationConfig

	cmd := &cobra.Command{
		Use:   "population",
		Short: "Join ACS county population onto the reference table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg.APIKey = app.CensusAPIKey()
			return reference.NewRefresher(cfg.APIKey).Run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.RefCSV, "ref", "", "reference CSV to enrich")
	cmd.Flags().StringVar(&cfg.OutCSV, "out", "", "enriched output CSV (default overwrites --ref)")
	cmd.Flags().IntVar(&cfg.Year, "year", 0, "ACS vintage (default 2022)")
	return cmd
}
