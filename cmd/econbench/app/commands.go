package app

import (
	"github.com/spf13/cobra"

	"github.com/rdmdatalab/econbench/cmd/econbench/cmd"
)

// registerCommands registers all subcommands with the root command.
func (a *App) registerCommands(rootCmd *cobra.Command) {
	// Pipeline commands
	rootCmd.AddCommand(cmd.NewFetchCommand(a))
	rootCmd.AddCommand(cmd.NewPrepareCommand(a))
	rootCmd.AddCommand(cmd.NewReferenceCommand(a))
	rootCmd.AddCommand(cmd.NewMergeCommand(a))

	// QA commands
	rootCmd.AddCommand(cmd.NewReconcileCommand(a))
	rootCmd.AddCommand(cmd.NewQACommand(a))
	rootCmd.AddCommand(cmd.NewSnapshotCommand(a))
	rootCmd.AddCommand(cmd.NewYoyCommand(a))
	rootCmd.AddCommand(cmd.NewDictionaryCommand(a))
	rootCmd.AddCommand(cmd.NewSchemaCommand(a))

	// Utility commands
	rootCmd.AddCommand(a.newVersionCommand())
}

// newVersionCommand reports the build information.
func (a *App) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("econbench %s\n", a.version)
			if a.config.Verbose {
				cmd.Printf("  commit:   %s\n", a.commit)
				cmd.Printf("  built:    %s\n", a.date)
				cmd.Printf("  built by: %s\n", a.builtBy)
			}
		},
	}
}
