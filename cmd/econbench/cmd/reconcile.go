package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/rdmdatalab/econbench/internal/cmd/output"
	"github.com/rdmdatalab/econbench/internal/sources/census"
	"github.com/rdmdatalab/econbench/internal/sources/qcew"
	"github.com/rdmdatalab/econbench/internal/warehouse"
	"github.com/rdmdatalab/econbench/pkg/reconcile"
)

// systemSummary is one system's pass count, shaped for the output
// formatter.
type systemSummary struct {
	System string `json:"system"`
	Passed int    `json:"passed"`
	Total  int    `json:"total"`
}

// NewReconcileCommand creates the reconcile command and its standalone
// per-system subcommands.
func NewReconcileCommand(app AppContext) *cobra.Command {
	var cfg reconcile.Config

	cmd := &cobra.Command{
		Use:     "reconcile",
		GroupID: "qa",
		Short:   "Reconcile the warehouse fact table against the source agencies",
		Long: `Reconcile pulls the selected slice fresh from the Census ABS API and
the QCEW singlefiles, queries the same slice from the warehouse, and
compares them row by row. Deltas are warehouse minus source.

The bare command runs the combined flow: one stacked CSV plus a summary,
no per-system publishing. The abs and qcew subcommands run one system
standalone, writing the stamped and latest artifact pair and publishing
to that system's QA table when --publish is set.`,
		Example: `  econbench reconcile
  econbench reconcile --systems abs --years 2022 --counties 06075 --naics 42
  econbench reconcile --mode abs-full-surface --publish
  econbench reconcile --rdm-csv fixtures/warehouse.csv`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			runner, err := newReconcileRunner(ctx, app, cfg.RdmCSV, cfg.Publish)
			if err != nil {
				return err
			}
			res, err := runner.Run(ctx, cfg)
			if err != nil {
				return err
			}

			var summaries []systemSummary
			if len(res.AbsRows) > 0 {
				passed, total := reconcile.AbsPassCount(res.AbsRows)
				summaries = append(summaries, systemSummary{System: "abs", Passed: passed, Total: total})
			}
			if len(res.QcewRows) > 0 {
				passed, total := reconcile.QcewPassCount(res.QcewRows)
				summaries = append(summaries, systemSummary{System: "qcew", Passed: passed, Total: total})
			}
			return printSummaries(app, summaries)
		},
	}

	cmd.Flags().StringSliceVar(&cfg.Systems, "systems", nil, "systems to reconcile: abs, qcew (default both)")
	cmd.Flags().StringVar(&cfg.Mode, "mode", "", "run mode: standard or abs-full-surface")
	cmd.Flags().IntSliceVar(&cfg.Years, "years", nil, "years to reconcile (default 2022,2023)")
	cmd.Flags().StringSliceVar(&cfg.Counties, "counties", nil, "county FIPS codes (default 06075,06085)")
	cmd.Flags().StringSliceVar(&cfg.Naics, "naics", nil, "NAICS sector codes (default 42,62)")
	cmd.Flags().StringVar(&cfg.OutDir, "outdir", "", "artifact output directory")
	cmd.Flags().BoolVar(&cfg.Publish, "publish", false, "publish results to the warehouse QA tables")
	cmd.Flags().StringVar(&cfg.Table, "table", "", "full-surface publish table override")
	cmd.Flags().StringVar(&cfg.RdmCSV, "rdm-csv", "", "local CSV standing in for the warehouse")

	cmd.AddCommand(newReconcileAbsCommand(app))
	cmd.AddCommand(newReconcileQcewCommand(app))
	return cmd
}

func newReconcileAbsCommand(app AppContext) *cobra.Command {
	var cfg reconcile.AbsConfig

	cmd := &cobra.Command{
		Use:   "abs",
		Short: "Reconcile Census ABS standalone",
		Example: `  econbench reconcile abs
  econbench reconcile abs --years 2022 --counties 06075 --naics 42 --publish`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			runner, err := newReconcileRunner(ctx, app, cfg.RdmCSV, cfg.Publish)
			if err != nil {
				return err
			}
			res, err := runner.RunABS(ctx, cfg)
			if err != nil {
				return err
			}
			passed, total := reconcile.AbsPassCount(res.AbsRows)
			return printSummaries(app, []systemSummary{{System: "abs", Passed: passed, Total: total}})
		},
	}

	cmd.Flags().IntSliceVar(&cfg.Years, "years", nil, "years to reconcile (default 2022,2023)")
	cmd.Flags().StringSliceVar(&cfg.Counties, "counties", nil, "county FIPS codes (default 06075,06085)")
	cmd.Flags().StringSliceVar(&cfg.Naics, "naics", nil, "NAICS sector codes (default 42,62)")
	cmd.Flags().StringVar(&cfg.OutDir, "outdir", "", "artifact output directory")
	cmd.Flags().BoolVar(&cfg.Publish, "publish", false, "publish to the ABS QA table")
	cmd.Flags().StringVar(&cfg.Table, "table", "", "publish table override")
	cmd.Flags().StringVar(&cfg.RdmCSV, "rdm-csv", "", "local CSV standing in for the warehouse")
	return cmd
}

func newReconcileQcewCommand(app AppContext) *cobra.Command {
	var cfg reconcile.QcewConfig
	var noWageTolerance bool

	cmd := &cobra.Command{
		Use:   "qcew",
		Short: "Reconcile BLS QCEW standalone",
		Example: `  econbench reconcile qcew
  econbench reconcile qcew --years 2023 --publish
  econbench reconcile qcew --raw-template 'data_raw/qcew/{year}.annual.singlefile.csv'`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg.AllowWageTolerance = !noWageTolerance
			runner, err := newReconcileRunner(ctx, app, cfg.RdmCSV, cfg.Publish)
			if err != nil {
				return err
			}
			res, err := runner.RunQCEW(ctx, cfg)
			if err != nil {
				return err
			}
			passed, total := reconcile.QcewPassCount(res.QcewRows)
			return printSummaries(app, []systemSummary{{System: "qcew", Passed: passed, Total: total}})
		},
	}

	cmd.Flags().IntSliceVar(&cfg.Years, "years", nil, "years to reconcile (default 2022,2023)")
	cmd.Flags().StringSliceVar(&cfg.Counties, "counties", nil, "county FIPS codes (default 06075,06085)")
	cmd.Flags().StringSliceVar(&cfg.Naics, "naics", nil, "NAICS sector codes (default 42,62)")
	cmd.Flags().StringVar(&cfg.OutDir, "outdir", "", "artifact output directory")
	cmd.Flags().BoolVar(&cfg.Publish, "publish", false, "publish to the QCEW QA table")
	cmd.Flags().StringVar(&cfg.Table, "table", "", "publish table override")
	cmd.Flags().StringVar(&cfg.RawTemplate, "raw-template", "", "annual singlefile path template with {year}")
	cmd.Flags().StringVar(&cfg.CacheDir, "cache-dir", "", "fallback directory searched for singlefiles")
	cmd.Flags().BoolVar(&noWageTolerance, "no-wage-tolerance", false, "require exact average weekly wage matches")
	cmd.Flags().StringVar(&cfg.RdmCSV, "rdm-csv", "", "local CSV standing in for the warehouse")
	return cmd
}

// newReconcileRunner wires the runner's warehouse and publisher. A CSV
// override replaces the warehouse side only; publishing still goes to
// BigQuery, so --publish needs the client even with --rdm-csv set.
func newReconcileRunner(ctx context.Context, app AppContext, rdmCSV string, publish bool) (*reconcile.Runner, error) {
	var wh reconcile.Warehouse
	var pub reconcile.Publisher
	if rdmCSV != "" {
		wh = warehouse.NewOverride(rdmCSV)
		if publish {
			client, err := app.Warehouse(ctx)
			if err != nil {
				return nil, err
			}
			pub = client
		}
	} else {
		client, err := app.Warehouse(ctx)
		if err != nil {
			return nil, err
		}
		wh = client
		pub = client
	}
	return reconcile.NewRunner(
		census.NewReconSource(app.CensusAPIKey()),
		qcew.NewLoader(),
		wh,
		pub,
	), nil
}

func printSummaries(app AppContext, summaries []systemSummary) error {
	if len(summaries) == 0 {
		return nil
	}
	formatter := output.NewFormatter(output.DetectFormat(app.Format()))
	return formatter.Format(os.Stdout, summaries)
}
