package jobs

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"osutrack-bot/internal/apperr"
	"osutrack-bot/internal/logging"
	"osutrack-bot/internal/mods"
)

// RemoveDuplicates finds neighbouring rows that are the same play under two
// score IDs and deletes whichever ID the API no longer resolves.
func (r *Runner) RemoveDuplicates(ctx context.Context) error {
	log := logging.ForRun(r.logger, JobRemoveDuplicates)

	cats, err := r.store.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}

	removed := 0
	for _, c := range cats {
		if c == mods.Combined {
			continue
		}
		n, err := r.dedupCategory(ctx, c, log)
		if err != nil {
			return err
		}
		removed += n
	}

	if removed > 0 {
		if err := r.rebuildCombined(ctx); err != nil {
			return err
		}
	}
	log.Info("duplicate scan finished", zap.Int("removed", removed))
	return nil
}

func (r *Runner) dedupCategory(ctx context.Context, c mods.Combo, log *zap.Logger) (int, error) {
	rows, err := r.store.GetScores(ctx, c)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", c, err)
	}

	checked := map[int64]bool{}
	var gone []int64
	for i := 1; i < len(rows); i++ {
		a, b := rows[i-1], rows[i]
		if !a.SamePlay(b) {
			continue
		}
		log.Info("possible duplicate", zap.String("category", string(c)),
			zap.Int64("first", a.ScoreID), zap.Int64("second", b.ScoreID))
		for _, id := range []int64{a.ScoreID, b.ScoreID} {
			if checked[id] {
				continue
			}
			checked[id] = true
			_, err := r.source.FetchScore(ctx, id)
			if apperr.IsNotFound(err) {
				gone = append(gone, id)
				continue
			}
			if err != nil {
				return 0, fmt.Errorf("verify %s score %d: %w", c, id, err)
			}
		}
	}

	for _, id := range gone {
		if err := r.store.DeleteScore(ctx, c, id); err != nil {
			return 0, fmt.Errorf("delete %s score %d: %w", c, id, err)
		}
		log.Info("duplicate removed", zap.String("category", string(c)), zap.Int64("score_id", id))
	}
	return len(gone), nil
}
