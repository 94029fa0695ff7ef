package main

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"osutrack-bot/internal/apperr"
	"osutrack-bot/internal/checkpoint"
	"osutrack-bot/internal/jobs"
	"osutrack-bot/internal/mods"
)

func newRunCommand(app *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run <job> [args]",
		Short: "Run one job now and wait for it",
		Long: "Run one job now and wait for it. Jobs: " + strings.Join(jobs.Names(), ", ") +
			".\nwipe-scores takes mod combinations to wipe; none wipes everything.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if !slices.Contains(jobs.Names(), name) {
				return fmt.Errorf("unknown job %q (known: %s)", name, strings.Join(jobs.Names(), ", "))
			}
			if err := app.ensureOsu(cmd.Context()); err != nil {
				return err
			}
			if err := app.sched.RunNow(cmd.Context(), name, args[1:]); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s finished\n", name)
			return nil
		},
	}
}

func newJobsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "List job names",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range jobs.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
}

func newStatusCommand(app *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the last update time and update-scores progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.ensure(cmd.Context()); err != nil {
				return err
			}
			st, err := app.runner.Status(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			last := st.LastUpdated
			if last == "" {
				last = "never"
			}
			fmt.Fprintf(out, "last updated: %s\n", last)
			if st.ActiveCategory == checkpoint.NotStarted {
				fmt.Fprintln(out, "update-scores: idle")
			} else {
				fmt.Fprintf(out, "update-scores: in %s, %d scores collected\n", st.ActiveCategory, st.CollectedScores)
			}
			return nil
		},
	}
}

func newTopCommand(app *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "top <mods> [n]",
		Short: "Print the top of a leaderboard",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := mods.Canonicalize(args[0])
			if err != nil {
				return err
			}
			n := 10
			if len(args) == 2 {
				if n, err = strconv.Atoi(args[1]); err != nil || n <= 0 {
					return fmt.Errorf("n must be a positive number, got %q", args[1])
				}
			}
			if err := app.ensure(cmd.Context()); err != nil {
				return err
			}
			scores, err := app.runner.Top(cmd.Context(), c, n)
			if apperr.IsKind(err, apperr.KindSheetEmpty) {
				fmt.Fprintf(cmd.OutOrStdout(), "no scores in %s\n", c)
				return nil
			}
			if err != nil {
				return err
			}
			for i, s := range scores {
				fmt.Fprintf(cmd.OutOrStdout(), "%2d. %-16s %8.2fpp  %6.2f%%  %s\n", i+1, s.Username, s.PP, s.Accuracy, s.Beatmap)
			}
			return nil
		},
	}
}
