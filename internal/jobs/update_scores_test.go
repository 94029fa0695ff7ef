package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"osutrack-bot/internal/checkpoint"
	"osutrack-bot/internal/models"
	"osutrack-bot/internal/mods"
	"osutrack-bot/internal/testsupport"
)

func TestUpdateScoresRefreshesEveryCategory(t *testing.T) {
	store := testsupport.NewMemStore().
		WithCategories(mods.NoMod, "HD", "DT", mods.Submitted).
		Seed(mods.NoMod, score(1, 1, mods.NoMod, 100), score(2, 1, mods.NoMod, 90)).
		Seed("HD", score(3, 2, "HD", 200)).
		Seed("DT", score(4, 2, "DT", 50)).
		Seed(mods.Submitted, score(5, 3, "HR", 10), score(6, 3, "HR", 80))
	src := testsupport.NewFakeSource().AddScore(
		score(1, 1, mods.NoMod, 80),
		score(2, 1, mods.NoMod, 95),
		score(3, 2, "HD", 210),
		score(5, 3, "HR", 12),
		score(6, 3, "HR", 81),
	)
	r, cps := newRunner(t, store, src)

	require.NoError(t, r.UpdateScores(context.Background()))

	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6}, src.Fetched())
	assert.Equal(t, []float64{95, 80}, pps(store.Scores(mods.NoMod)))
	assert.Equal(t, []float64{210}, pps(store.Scores("HD")))
	assert.Empty(t, store.Scores("DT"), "score deleted upstream leaves the category empty")
	assert.Equal(t, []int64{5, 6}, ids(store.Scores(mods.Submitted)), "submitted keeps its order")
	assertCombinedIsUnion(t, store)

	cp, err := cps.Load()
	require.NoError(t, err)
	assert.Equal(t, checkpoint.NotStarted, cp.ActiveCategory)
	assert.Empty(t, cp.CollectedScores)
}

func TestUpdateScoresResumesAfterCheckpointedScore(t *testing.T) {
	store := testsupport.NewMemStore().
		WithCategories(mods.NoMod, "HD", "DT").
		Seed(mods.NoMod, score(1, 1, mods.NoMod, 100)).
		Seed("HD", score(5, 1, "HD", 10), score(6, 1, "HD", 20), score(7, 1, "HD", 30))
	src := testsupport.NewFakeSource().AddScore(
		score(1, 1, mods.NoMod, 100),
		score(5, 1, "HD", 111),
		score(6, 1, "HD", 222),
		score(7, 1, "HD", 333),
	)
	r, cps := newRunner(t, store, src)
	require.NoError(t, cps.Reset("HD"))
	require.NoError(t, cps.Append(score(5, 1, "HD", 111)))

	require.NoError(t, r.UpdateScores(context.Background()))

	assert.Equal(t, []int64{6, 7}, src.Fetched())
	assert.Equal(t, []int64{7, 6, 5}, ids(store.Scores("HD")))
	assert.Equal(t, []int64{1}, ids(store.Scores(mods.NoMod)), "categories before the checkpoint are not revisited")
	assertCombinedIsUnion(t, store)
}

func TestUpdateScoresCrashThenResume(t *testing.T) {
	store := testsupport.NewMemStore().
		WithCategories("HD", "DT").
		Seed("HD", score(1, 1, "HD", 10), score(2, 1, "HD", 20), score(3, 1, "HD", 30)).
		Seed("DT", score(4, 1, "DT", 40), score(5, 1, "DT", 50))
	src := testsupport.NewFakeSource().AddScore(
		score(1, 1, "HD", 11), score(2, 1, "HD", 21), score(3, 1, "HD", 31),
		score(4, 1, "DT", 41), score(5, 1, "DT", 51),
	)
	src.ScoreErr[2] = errors.New("rate limited")
	r, cps := newRunner(t, store, src)

	err := r.UpdateScores(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")

	cp, err := cps.Load()
	require.NoError(t, err)
	assert.Equal(t, "HD", cp.ActiveCategory)
	assert.Equal(t, []int64{1}, ids(cp.CollectedScores))
	assert.Equal(t, []float64{10, 20, 30}, pps(store.Scores("HD")), "category untouched until it completes")

	delete(src.ScoreErr, 2)
	firstRun := len(src.Fetched())
	require.NoError(t, r.UpdateScores(context.Background()))

	assert.Equal(t, []int64{2, 3, 4, 5}, src.Fetched()[firstRun:])
	assert.Equal(t, []float64{31, 21, 11}, pps(store.Scores("HD")))
	assert.Equal(t, []float64{51, 41}, pps(store.Scores("DT")))
	assertCombinedIsUnion(t, store)
}

func TestUpdateScoresResetsAtCategoryBoundary(t *testing.T) {
	store := testsupport.NewMemStore().
		WithCategories("HD", "DT").
		Seed("HD", score(1, 1, "HD", 10)).
		Seed("DT", score(2, 1, "DT", 20))
	src := testsupport.NewFakeSource().AddScore(score(1, 1, "HD", 10))
	src.ScoreErr[2] = errors.New("timeout")
	r, cps := newRunner(t, store, src)

	require.Error(t, r.UpdateScores(context.Background()))

	cp, err := cps.Load()
	require.NoError(t, err)
	assert.Equal(t, "DT", cp.ActiveCategory)
	assert.Empty(t, cp.CollectedScores)
}

func TestUpdateScoresUnknownCheckpointCategoryStartsOver(t *testing.T) {
	store := testsupport.NewMemStore().
		WithCategories("HD").
		Seed("HD", score(1, 1, "HD", 10))
	src := testsupport.NewFakeSource().AddScore(score(1, 1, "HD", 15))
	r, cps := newRunner(t, store, src)
	require.NoError(t, cps.Reset("HDHDHD"))
	require.NoError(t, cps.Append(score(9, 1, "HD", 1)))

	require.NoError(t, r.UpdateScores(context.Background()))

	assert.Equal(t, []int64{1}, src.Fetched())
	assert.Equal(t, []float64{15}, pps(store.Scores("HD")))
}

func TestUpdateScoresCheckpointedIDMovedRescans(t *testing.T) {
	store := testsupport.NewMemStore().
		WithCategories("HD").
		Seed("HD", score(4, 1, "HD", 10), score(6, 1, "HD", 20), score(7, 1, "HD", 30))
	src := testsupport.NewFakeSource().AddScore(score(6, 1, "HD", 21), score(7, 1, "HD", 31))
	r, cps := newRunner(t, store, src)
	require.NoError(t, cps.Reset("HD"))
	require.NoError(t, cps.Append(score(4, 1, "HD", 12)))
	require.NoError(t, cps.Append(score(5, 1, "HD", 11)))

	require.NoError(t, r.UpdateScores(context.Background()))

	assert.Equal(t, []int64{6, 7}, src.Fetched(), "already collected 4 is not fetched again")
	assert.Equal(t, []int64{7, 6, 4}, ids(store.Scores("HD")), "5 left the category and is dropped")
}

// halfWriteStore clears a category and then fails the write, like a Sheets
// request that dies between the clear and the update.
type halfWriteStore struct {
	*testsupport.MemStore
	failOn mods.Combo
}

func (h *halfWriteStore) ReplaceAll(ctx context.Context, c mods.Combo, scores []models.Score) error {
	if c == h.failOn && len(scores) > 0 {
		if err := h.MemStore.ReplaceAll(ctx, c, nil); err != nil {
			return err
		}
		return errors.New("write HD: 503")
	}
	return h.MemStore.ReplaceAll(ctx, c, scores)
}

func TestUpdateScoresRecoversFromInterruptedCommit(t *testing.T) {
	mem := testsupport.NewMemStore().
		WithCategories("HD").
		Seed("HD", score(1, 1, "HD", 10), score(2, 1, "HD", 20))
	store := &halfWriteStore{MemStore: mem, failOn: "HD"}
	src := testsupport.NewFakeSource().AddScore(score(1, 1, "HD", 11), score(2, 1, "HD", 21))
	cps := checkpoint.Open(t.TempDir(), "update_scores")
	r := NewRunner(store, src, cps, "osu", zaptest.NewLogger(t))

	require.Error(t, r.UpdateScores(context.Background()))
	assert.Empty(t, mem.Scores("HD"))
	cp, err := cps.Load()
	require.NoError(t, err)
	assert.Equal(t, "HD", cp.ActiveCategory)
	assert.Equal(t, []int64{1, 2}, ids(cp.CollectedScores))

	store.failOn = ""
	fetched := len(src.Fetched())
	require.NoError(t, r.UpdateScores(context.Background()))

	assert.Len(t, src.Fetched(), fetched, "checkpointed scores are not fetched again")
	assert.Equal(t, []int64{2, 1}, ids(mem.Scores("HD")))
	assert.Equal(t, []float64{21, 11}, pps(mem.Scores("HD")))
	assertCombinedIsUnion(t, mem)
}
