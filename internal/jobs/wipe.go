package jobs

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"osutrack-bot/internal/apperr"
	"osutrack-bot/internal/checkpoint"
	"osutrack-bot/internal/logging"
	"osutrack-bot/internal/mods"
)

// WipeScores empties the given categories, or every category including
// COMBINED when none are given. COMBINED is rebuilt from what is left unless
// it was wiped itself. A checkpoint pointing into a wiped category is dropped.
func (r *Runner) WipeScores(ctx context.Context, targets ...mods.Combo) error {
	log := logging.ForRun(r.logger, JobWipeScores)

	if len(targets) == 0 {
		cats, err := r.store.ListCategories(ctx)
		if err != nil {
			return fmt.Errorf("list categories: %w", err)
		}
		targets = append(cats, mods.Combined)
	}
	for _, c := range targets {
		if !mods.IsValid(c) {
			return apperr.InvalidInput("wipe: unknown category %q", c)
		}
	}

	for _, c := range targets {
		if err := r.store.ReplaceAll(ctx, c, nil); err != nil {
			return fmt.Errorf("wipe %s: %w", c, err)
		}
		log.Info("category wiped", zap.String("category", string(c)))
	}

	cp, err := r.checkpoints.Load()
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}
	if cp.InProgress() && slices.Contains(targets, mods.Combo(cp.ActiveCategory)) {
		if err := r.checkpoints.Reset(checkpoint.NotStarted); err != nil {
			return fmt.Errorf("reset checkpoint: %w", err)
		}
		log.Info("checkpoint dropped", zap.String("category", cp.ActiveCategory))
	}

	if slices.Contains(targets, mods.Combined) {
		return nil
	}
	return r.rebuildCombined(ctx)
}
