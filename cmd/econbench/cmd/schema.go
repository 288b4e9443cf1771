package cmd

import (
	"github.com/spf13/cobra"

	"github.com/rdmdatalab/econbench/internal/qa"
	"github.com/rdmdatalab/econbench/pkg/errors"
)

// NewSchemaCommand creates the schema command group.
func NewSchemaCommand(app AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "schema",
		GroupID: "qa",
		Short:   "Compare the checked-in DDL against the live warehouse",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newSchemaDiffCommand(app))
	return cmd
}

func newSchemaDiffCommand(app AppContext) *cobra.Command {
	var cfg qa.SchemaConfig
	var strict bool

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Diff the DDL files against the live table schemas",
		Example: `  econbench schema diff
  econbench schema diff --ddl 'bigquery/ddl/*.sql' --strict`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			client, err := app.Warehouse(ctx)
			if err != nil {
				return err
			}
			report, err := qa.NewSchemaDiff(client).Run(ctx, cfg)
			if err != nil {
				return err
			}
			app.Logger().Info().
				Bool("match", report.Match).
				Str("markdown", report.MarkdownPath).
				Str("json", report.JSONPath).
				Msg("Schema diff written")
			if strict && !report.Match {
				return errors.ErrChecksFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.DDLGlob, "ddl", "", "DDL file glob (default bigquery/ddl/*.sql)")
	cmd.Flags().StringVar(&cfg.OutDir, "outdir", "", "report output directory")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit nonzero on any mismatch")
	return cmd
}
