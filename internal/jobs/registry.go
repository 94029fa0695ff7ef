package jobs

import (
	"context"
	"fmt"
	"sort"

	"osutrack-bot/internal/apperr"
	"osutrack-bot/internal/logging"
	"osutrack-bot/internal/mods"
)

const (
	JobScrape           = "scrape"
	JobUpdateScores     = "update-scores"
	JobUpdateUsers      = "update-users"
	JobWipeScores       = "wipe-scores"
	JobRemoveDuplicates = "remove-duplicates"
	JobScheduled        = "scheduled"
)

// Func runs one job. args are only used by jobs that take them.
type Func func(ctx context.Context, args []string) error

// RunScheduledJobs is the recurring sequence: scrape, recount users, then
// stamp the store's last-updated marker.
func (r *Runner) RunScheduledJobs(ctx context.Context) error {
	log := logging.ForRun(r.logger, JobScheduled)
	if err := r.ScrapeTopPlays(ctx); err != nil {
		return err
	}
	if err := r.UpdateUsers(ctx); err != nil {
		return err
	}
	now := r.now().UTC()
	if err := r.store.SetLastUpdated(ctx, now); err != nil {
		return fmt.Errorf("stamp last updated: %w", err)
	}
	log.Info("scheduled run finished")
	return nil
}

// Registry maps job names to their entry points.
func (r *Runner) Registry() map[string]Func {
	return map[string]Func{
		JobScrape:           func(ctx context.Context, _ []string) error { return r.ScrapeTopPlays(ctx) },
		JobUpdateScores:     func(ctx context.Context, _ []string) error { return r.UpdateScores(ctx) },
		JobUpdateUsers:      func(ctx context.Context, _ []string) error { return r.UpdateUsers(ctx) },
		JobRemoveDuplicates: func(ctx context.Context, _ []string) error { return r.RemoveDuplicates(ctx) },
		JobScheduled:        func(ctx context.Context, _ []string) error { return r.RunScheduledJobs(ctx) },
		JobWipeScores: func(ctx context.Context, args []string) error {
			targets := make([]mods.Combo, 0, len(args))
			for _, a := range args {
				c, err := mods.Canonicalize(a)
				if err != nil {
					return err
				}
				targets = append(targets, c)
			}
			return r.WipeScores(ctx, targets...)
		},
	}
}

// Run invokes a job by name. Unknown names are an InvalidInput error.
func (r *Runner) Run(ctx context.Context, name string, args []string) error {
	fn, ok := r.Registry()[name]
	if !ok {
		return apperr.InvalidInput("unknown job %q (known: %v)", name, Names())
	}
	return fn(ctx, args)
}

func Names() []string {
	names := []string{JobScrape, JobUpdateScores, JobUpdateUsers, JobWipeScores, JobRemoveDuplicates, JobScheduled}
	sort.Strings(names)
	return names
}
