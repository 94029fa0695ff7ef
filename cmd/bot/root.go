package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	app := &appContext{}

	rootCmd := &cobra.Command{
		Use:           "bot",
		Short:         "osu! score tracker: leaderboard sync jobs, chat bot and status endpoint",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			app.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(newServeCommand(app))
	rootCmd.AddCommand(newRunCommand(app))
	rootCmd.AddCommand(newJobsCommand())
	rootCmd.AddCommand(newStatusCommand(app))
	rootCmd.AddCommand(newTopCommand(app))

	return rootCmd
}
