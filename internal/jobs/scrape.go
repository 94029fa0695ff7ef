package jobs

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"osutrack-bot/internal/apperr"
	"osutrack-bot/internal/logging"
	"osutrack-bot/internal/models"
	"osutrack-bot/internal/mods"
	"osutrack-bot/internal/osu"
)

var playKinds = []osu.PlayKind{osu.Best, osu.Firsts, osu.Recent}

// ScrapeTopPlays pulls best, first-place and recent plays of every
// autotracked user, folds them together with the submitted scores into the
// mod leaderboards and rebuilds COMBINED. Existing rows are never dropped.
func (r *Runner) ScrapeTopPlays(ctx context.Context) error {
	log := logging.ForRun(r.logger, JobScrape)
	log.Info("scrape started")

	users, err := r.store.GetUsers(ctx)
	if err != nil {
		return fmt.Errorf("read users: %w", err)
	}

	b := newBuckets(log)
	for _, u := range users {
		if !u.Autotrack {
			log.Info("autotrack disabled, skipping user",
				zap.Int64("user_id", u.UserID), zap.String("username", u.Username))
			continue
		}
		plays, err := r.fetchPlays(ctx, u.UserID)
		if apperr.IsNotFound(err) {
			log.Warn("user not found upstream, skipping",
				zap.Int64("user_id", u.UserID), zap.String("username", u.Username), zap.Error(err))
			continue
		}
		if err != nil {
			return fmt.Errorf("scrape %s: %w", u.Username, err)
		}
		for _, p := range plays {
			b.add(p)
		}
	}

	submitted, err := r.store.GetScores(ctx, mods.Submitted)
	if err != nil {
		return fmt.Errorf("read %s: %w", mods.Submitted, err)
	}
	for _, s := range submitted {
		b.add(s)
	}

	// A category without a worksheet yet gets one on its first write.
	for _, c := range mods.Primary() {
		fetched := b.scores[c]
		if len(fetched) == 0 {
			continue
		}
		if err := r.mergeCategory(ctx, c, fetched, log); err != nil {
			return err
		}
	}

	if err := r.rebuildCombined(ctx); err != nil {
		return err
	}
	log.Info("scrape finished", zap.Int("users", len(users)))
	return nil
}

func (r *Runner) fetchPlays(ctx context.Context, userID int64) ([]models.Score, error) {
	var out []models.Score
	for _, kind := range playKinds {
		plays, err := r.source.FetchUserPlays(ctx, userID, kind)
		if err != nil {
			return nil, err
		}
		out = append(out, plays...)
	}
	return out, nil
}

// mergeCategory inserts unseen score IDs into the category and rewrites it sorted.
func (r *Runner) mergeCategory(ctx context.Context, c mods.Combo, fetched []models.Score, log *zap.Logger) error {
	existing, err := r.store.GetScores(ctx, c)
	if err != nil {
		return fmt.Errorf("read %s: %w", c, err)
	}
	known := make(map[int64]bool, len(existing))
	for _, s := range existing {
		known[s.ScoreID] = true
	}

	merged := existing
	added := 0
	for _, s := range fetched {
		if known[s.ScoreID] {
			continue
		}
		known[s.ScoreID] = true
		merged = append(merged, s)
		added++
	}
	sortByPP(merged)

	if err := r.store.ReplaceAll(ctx, c, merged); err != nil {
		return fmt.Errorf("write %s: %w", c, err)
	}
	log.Info("category merged", zap.String("category", string(c)),
		zap.Int("added", added), zap.Int("total", len(merged)))
	return nil
}

// buckets groups scores by canonical mod combination, one entry per score ID.
type buckets struct {
	scores map[mods.Combo][]models.Score
	seen   map[mods.Combo]map[int64]bool
	log    *zap.Logger
}

func newBuckets(log *zap.Logger) *buckets {
	return &buckets{
		scores: map[mods.Combo][]models.Score{},
		seen:   map[mods.Combo]map[int64]bool{},
		log:    log,
	}
}

func (b *buckets) add(s models.Score) {
	if s.PP <= 0 {
		b.log.Debug("score has no pp, ignored", zap.Int64("score_id", s.ScoreID))
		return
	}
	c, err := mods.Canonicalize(string(s.Mods))
	if err != nil || !mods.IsValid(c) || c == mods.Submitted || c == mods.Combined {
		b.log.Warn("score has no leaderboard category, ignored",
			zap.Int64("score_id", s.ScoreID), zap.String("mods", string(s.Mods)))
		return
	}
	s.Mods = c
	if b.seen[c] == nil {
		b.seen[c] = map[int64]bool{}
	}
	if b.seen[c][s.ScoreID] {
		return
	}
	b.seen[c][s.ScoreID] = true
	b.scores[c] = append(b.scores[c], s)
}
