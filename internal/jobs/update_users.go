package jobs

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"osutrack-bot/internal/apperr"
	"osutrack-bot/internal/logging"
	"osutrack-bot/internal/models"
	"osutrack-bot/internal/mods"
)

// placementDepth is how far down each leaderboard placements are counted.
const placementDepth = 25

// UpdateUsers refreshes every tracked user's profile and recounts their
// placements from scratch against the current top 25 of each mod leaderboard.
// Users the API no longer knows are dropped from the table.
func (r *Runner) UpdateUsers(ctx context.Context) error {
	log := logging.ForRun(r.logger, JobUpdateUsers)

	boards, err := r.topSlices(ctx)
	if err != nil {
		return err
	}
	users, err := r.store.GetUsers(ctx)
	if err != nil {
		return fmt.Errorf("read users: %w", err)
	}

	out := make([]models.User, 0, len(users))
	for _, u := range users {
		profile, err := r.source.FetchUser(ctx, strconv.FormatInt(u.UserID, 10), r.mode)
		if apperr.IsNotFound(err) {
			log.Warn("user not found upstream, dropping",
				zap.Int64("user_id", u.UserID), zap.String("username", u.Username))
			continue
		}
		if err != nil {
			return fmt.Errorf("update user %s: %w", u.Username, err)
		}
		if profile.UserID == 0 {
			profile.UserID = u.UserID
		}

		updated := models.User{Profile: profile, Autotrack: u.Autotrack}
		updated.SetPlacements(countPlacements(boards, u.UserID))
		out = append(out, updated)
	}

	sortUsers(out)
	if err := r.store.ReplaceAllUsers(ctx, out); err != nil {
		return fmt.Errorf("write users: %w", err)
	}
	log.Info("users updated", zap.Int("written", len(out)), zap.Int("dropped", len(users)-len(out)))
	return nil
}

// topSlices reads the first placementDepth rows of every mod leaderboard.
func (r *Runner) topSlices(ctx context.Context) ([][]models.Score, error) {
	cats := mods.Primary()
	boards := make([][]models.Score, 0, len(cats))
	for _, c := range cats {
		scores, err := r.store.GetScores(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", c, err)
		}
		boards = append(boards, scores[:min(placementDepth, len(scores))])
	}
	return boards, nil
}

func countPlacements(boards [][]models.Score, userID int64) models.Placements {
	var p models.Placements
	for _, board := range boards {
		for i, s := range board {
			if s.UserID == userID {
				p.Add(i + 1)
			}
		}
	}
	return p
}

// sortUsers puts autotracked users first, each group by pp descending.
func sortUsers(users []models.User) {
	sort.SliceStable(users, func(i, j int) bool {
		if users[i].Autotrack != users[j].Autotrack {
			return users[i].Autotrack
		}
		return users[i].PP > users[j].PP
	})
}
