package jobs

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"osutrack-bot/internal/apperr"
	"osutrack-bot/internal/checkpoint"
	"osutrack-bot/internal/logging"
	"osutrack-bot/internal/models"
	"osutrack-bot/internal/mods"
)

// UpdateScores re-fetches every stored score, one category at a time, in the
// order of each category's ID list. Every fetched score is written to the
// checkpoint before the next call, so a rerun after a crash continues after
// the last checkpointed ID instead of starting over.
func (r *Runner) UpdateScores(ctx context.Context) error {
	log := logging.ForRun(r.logger, JobUpdateScores)

	cats, err := r.store.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}
	cp, err := r.checkpoints.Load()
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}

	start := 0
	if cp.InProgress() {
		start = slices.Index(cats, mods.Combo(cp.ActiveCategory))
		if start < 0 {
			log.Warn("checkpoint names an unknown category, starting over",
				zap.String("category", cp.ActiveCategory))
			if err := r.checkpoints.Reset(checkpoint.NotStarted); err != nil {
				return fmt.Errorf("reset checkpoint: %w", err)
			}
			cp = checkpoint.Checkpoint{ActiveCategory: checkpoint.NotStarted}
			start = 0
		} else {
			log.Info("resuming from checkpoint",
				zap.String("category", cp.ActiveCategory),
				zap.Int("collected", len(cp.CollectedScores)))
		}
	}
	active := cp.ActiveCategory

	for i := start; i < len(cats); i++ {
		c := cats[i]
		var collected []models.Score
		if string(c) == active {
			collected = cp.CollectedScores
		} else {
			if err := r.checkpoints.Reset(string(c)); err != nil {
				return fmt.Errorf("reset checkpoint: %w", err)
			}
			active = string(c)
		}

		refreshed, err := r.refreshCategory(ctx, c, collected, log)
		if err != nil {
			return err
		}
		if err := r.commitCategory(ctx, c, refreshed); err != nil {
			return err
		}
		log.Info("category refreshed", zap.String("category", string(c)), zap.Int("scores", len(refreshed)))

		if i+1 < len(cats) {
			if err := r.checkpoints.Reset(string(cats[i+1])); err != nil {
				return fmt.Errorf("reset checkpoint: %w", err)
			}
			active = string(cats[i+1])
		}
		cp.CollectedScores = nil
	}

	if err := r.rebuildCombined(ctx); err != nil {
		return err
	}
	if err := r.checkpoints.Reset(checkpoint.NotStarted); err != nil {
		return fmt.Errorf("reset checkpoint: %w", err)
	}
	log.Info("update scores finished", zap.Int("categories", len(cats)))
	return nil
}

// refreshCategory fetches the category's IDs that come after the already
// collected ones. Scores deleted upstream are skipped.
func (r *Runner) refreshCategory(ctx context.Context, c mods.Combo, collected []models.Score, log *zap.Logger) ([]models.Score, error) {
	ids, err := r.store.GetScoreIDs(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("read %s ids: %w", c, err)
	}

	from := 0
	if len(collected) > 0 {
		last := collected[len(collected)-1].ScoreID
		switch pos := slices.Index(ids, last); {
		case pos >= 0:
			from = pos + 1
		case len(ids) < len(collected):
			// An interrupted write left the category short; the checkpoint
			// holds the confirmed scores.
			log.Warn("category shorter than checkpoint, keeping collected scores",
				zap.String("category", string(c)),
				zap.Int("ids", len(ids)), zap.Int("collected", len(collected)))
		default:
			log.Warn("last checkpointed score left the category, rescanning",
				zap.String("category", string(c)), zap.Int64("score_id", last))
			collected = slices.DeleteFunc(slices.Clone(collected), func(s models.Score) bool {
				return !slices.Contains(ids, s.ScoreID)
			})
		}
	}
	done := make(map[int64]bool, len(collected))
	for _, s := range collected {
		done[s.ScoreID] = true
	}

	batch := append([]models.Score(nil), collected...)
	for _, id := range ids[from:] {
		if done[id] {
			continue
		}
		s, err := r.source.FetchScore(ctx, id)
		if apperr.IsNotFound(err) {
			log.Info("score gone upstream, dropping",
				zap.String("category", string(c)), zap.Int64("score_id", id))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("refresh %s score %d: %w", c, id, err)
		}
		if err := r.checkpoints.Append(s); err != nil {
			return nil, fmt.Errorf("checkpoint score %d: %w", id, err)
		}
		done[id] = true
		batch = append(batch, s)
	}
	return batch, nil
}

func (r *Runner) commitCategory(ctx context.Context, c mods.Combo, scores []models.Score) error {
	if len(scores) == 0 {
		if err := r.store.ReplaceAll(ctx, c, nil); err != nil {
			return fmt.Errorf("wipe %s: %w", c, err)
		}
		return nil
	}
	if c != mods.Submitted {
		sortByPP(scores)
	}
	if err := r.store.ReplaceAll(ctx, c, scores); err != nil {
		return fmt.Errorf("write %s: %w", c, err)
	}
	return nil
}
