package jobs

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"osutrack-bot/internal/checkpoint"
	"osutrack-bot/internal/models"
	"osutrack-bot/internal/mods"
	"osutrack-bot/internal/testsupport"
)

var playedAt = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func score(id, userID int64, c mods.Combo, pp float64) models.Score {
	return models.Score{
		ScoreID:  id,
		UserID:   userID,
		Username: fmt.Sprintf("player%d", userID),
		Beatmap:  fmt.Sprintf("Artist - Song %d [Insane]", id),
		Mods:     c,
		Accuracy: 98.5,
		PP:       pp,
		Stars:    6.2,
		SetAt:    playedAt,
		ImageURL: "https://assets.ppy.sh/beatmaps/1/covers/cover.jpg",
	}
}

func newRunner(t *testing.T, store *testsupport.MemStore, src *testsupport.FakeSource) (*Runner, *checkpoint.Store) {
	t.Helper()
	cps := checkpoint.Open(t.TempDir(), "update_scores")
	return NewRunner(store, src, cps, "osu", zaptest.NewLogger(t)), cps
}

func ids(scores []models.Score) []int64 {
	out := make([]int64, len(scores))
	for i, s := range scores {
		out[i] = s.ScoreID
	}
	return out
}

func pps(scores []models.Score) []float64 {
	out := make([]float64, len(scores))
	for i, s := range scores {
		out[i] = s.PP
	}
	return out
}

// assertCombinedIsUnion checks COMBINED holds each primary score ID exactly
// once and is sorted by pp.
func assertCombinedIsUnion(t *testing.T, store *testsupport.MemStore) {
	t.Helper()
	want := map[int64]bool{}
	for _, c := range mods.Primary() {
		for _, s := range store.Scores(c) {
			want[s.ScoreID] = true
		}
	}
	combined := store.Scores(mods.Combined)
	got := map[int64]bool{}
	for _, s := range combined {
		require.False(t, got[s.ScoreID], "duplicate %d in COMBINED", s.ScoreID)
		got[s.ScoreID] = true
	}
	assert.Equal(t, want, got)
	for i := 1; i < len(combined); i++ {
		assert.GreaterOrEqual(t, combined[i-1].PP, combined[i].PP)
	}
}
