package jobs

import (
	"context"
	"fmt"

	"osutrack-bot/internal/apperr"
	"osutrack-bot/internal/models"
	"osutrack-bot/internal/mods"
	"osutrack-bot/internal/util"
)

// Top returns the first n rows of a category as stored. An empty category
// is reported as SheetEmpty.
func (r *Runner) Top(ctx context.Context, c mods.Combo, n int) ([]models.Score, error) {
	if !mods.IsValid(c) {
		return nil, apperr.InvalidInput("unknown category %q", c)
	}
	scores, err := r.store.GetScores(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c, err)
	}
	if len(scores) == 0 {
		return nil, apperr.New(apperr.KindSheetEmpty, "category %s has no scores", c)
	}
	if n > 0 && n < len(scores) {
		scores = scores[:n]
	}
	return scores, nil
}

// Status is a read-only snapshot for the bot and the status endpoint.
type Status struct {
	LastUpdated     string `json:"lastUpdated"`
	ActiveCategory  string `json:"activeCategory"`
	CollectedScores int    `json:"collectedScores"`
}

func (r *Runner) Status(ctx context.Context) (Status, error) {
	var st Status
	last, err := r.store.LastUpdated(ctx)
	if err != nil {
		return st, fmt.Errorf("read last updated: %w", err)
	}
	if !last.IsZero() {
		st.LastUpdated = util.FormatISO(last)
	}
	cp, err := r.checkpoints.Peek()
	if err != nil {
		return st, fmt.Errorf("load checkpoint: %w", err)
	}
	st.ActiveCategory = cp.ActiveCategory
	st.CollectedScores = len(cp.CollectedScores)
	return st, nil
}
