// Package jobs holds the synchronization jobs that keep the leaderboards in the
// category store in step with the osu! API.
//
// Jobs run sequentially and assume exclusive access to the store and the
// checkpoint; the scheduler guarantees that only one runs at a time.
package jobs

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"osutrack-bot/internal/checkpoint"
	"osutrack-bot/internal/models"
	"osutrack-bot/internal/mods"
	"osutrack-bot/internal/osu"
)

// CategoryStore is the spreadsheet-backed database: one ordered score list
// per mod combination, plus the users table.
type CategoryStore interface {
	// ListCategories returns the categories in enumeration order, without COMBINED.
	ListCategories(ctx context.Context) ([]mods.Combo, error)
	GetScores(ctx context.Context, c mods.Combo) ([]models.Score, error)
	GetScoreIDs(ctx context.Context, c mods.Combo) ([]int64, error)
	// ReplaceAll discards the category's rows and writes scores in order.
	ReplaceAll(ctx context.Context, c mods.Combo, scores []models.Score) error
	// AppendScore adds one row at the end. The jobs rewrite whole categories;
	// score submissions from outside the bot land in SUBMITTED this way.
	AppendScore(ctx context.Context, c mods.Combo, s models.Score) error
	DeleteScore(ctx context.Context, c mods.Combo, scoreID int64) error
	GetUsers(ctx context.Context) ([]models.User, error)
	ReplaceAllUsers(ctx context.Context, users []models.User) error
	SetLastUpdated(ctx context.Context, t time.Time) error
	LastUpdated(ctx context.Context) (time.Time, error)
}

// ScoreSource is the rate-limited external API. Missing entities are
// reported as apperr.KindNotFound.
type ScoreSource interface {
	FetchUser(ctx context.Context, idOrName, mode string) (models.Profile, error)
	FetchScore(ctx context.Context, id int64) (models.Score, error)
	FetchUserPlays(ctx context.Context, userID int64, kind osu.PlayKind) ([]models.Score, error)
}

// Checkpoints is the durable progress record used by UpdateScores.
type Checkpoints interface {
	Load() (checkpoint.Checkpoint, error)
	// Peek reads the stored checkpoint without disturbing a running job.
	Peek() (checkpoint.Checkpoint, error)
	Append(s models.Score) error
	Reset(next string) error
}

type Runner struct {
	store       CategoryStore
	source      ScoreSource
	checkpoints Checkpoints
	mode        string
	logger      *zap.Logger
	now         func() time.Time
}

func NewRunner(store CategoryStore, source ScoreSource, cps Checkpoints, mode string, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		store:       store,
		source:      source,
		checkpoints: cps,
		mode:        mode,
		logger:      logger,
		now:         time.Now,
	}
}

// rebuildCombined rewrites COMBINED as the ID-unique union of every primary
// category, highest pp first.
func (r *Runner) rebuildCombined(ctx context.Context) error {
	seen := map[int64]bool{}
	var all []models.Score
	for _, c := range mods.Primary() {
		scores, err := r.store.GetScores(ctx, c)
		if err != nil {
			return fmt.Errorf("read %s: %w", c, err)
		}
		for _, s := range scores {
			if seen[s.ScoreID] {
				continue
			}
			seen[s.ScoreID] = true
			all = append(all, s)
		}
	}
	sortByPP(all)
	if err := r.store.ReplaceAll(ctx, mods.Combined, all); err != nil {
		return fmt.Errorf("write %s: %w", mods.Combined, err)
	}
	return nil
}

// sortByPP orders scores by pp descending; equal pp keeps its relative order.
func sortByPP(scores []models.Score) {
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].PP > scores[j].PP })
}
