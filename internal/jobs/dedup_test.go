package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"osutrack-bot/internal/models"
	"osutrack-bot/internal/mods"
	"osutrack-bot/internal/testsupport"
)

func twin(s models.Score, id int64) models.Score {
	s.ScoreID = id
	return s
}

func TestRemoveDuplicatesDeletesUnresolvableID(t *testing.T) {
	a := score(10, 1, "HD", 500)
	b := score(12, 2, "HD", 400)
	store := testsupport.NewMemStore().
		WithCategories(mods.NoMod, "HD").
		Seed("HD", a, twin(a, 11), b, twin(b, 13), score(14, 3, "HD", 300))
	src := testsupport.NewFakeSource().AddScore(a, b, twin(b, 13))
	r, _ := newRunner(t, store, src)

	require.NoError(t, r.RemoveDuplicates(context.Background()))

	assert.Equal(t, []int64{10, 11, 12, 13}, src.Fetched(), "14 has no twin and is not checked")
	assert.Equal(t, []int64{10, 12, 13, 14}, ids(store.Scores("HD")))
	assertCombinedIsUnion(t, store)

	again := len(src.Fetched())
	require.NoError(t, r.RemoveDuplicates(context.Background()))
	assert.Equal(t, []int64{12, 13}, src.Fetched()[again:])
	assert.Equal(t, []int64{10, 12, 13, 14}, ids(store.Scores("HD")), "both IDs resolving keeps both rows")
}

func TestRemoveDuplicatesIgnoresDifferentPlays(t *testing.T) {
	a := score(1, 1, "DT", 300)
	b := twin(a, 2)
	b.Accuracy = 97.1
	store := testsupport.NewMemStore().WithCategories("DT").Seed("DT", a, b)
	src := testsupport.NewFakeSource()
	r, _ := newRunner(t, store, src)

	require.NoError(t, r.RemoveDuplicates(context.Background()))

	assert.Empty(t, src.Fetched())
	assert.Equal(t, []int64{1, 2}, ids(store.Scores("DT")))
	assert.Zero(t, store.Replaces[mods.Combined], "nothing removed, COMBINED untouched")
}

func TestRemoveDuplicatesStopsOnAPIError(t *testing.T) {
	a := score(1, 1, "DT", 300)
	store := testsupport.NewMemStore().WithCategories("DT").Seed("DT", a, twin(a, 2))
	src := testsupport.NewFakeSource()
	src.ScoreErr[1] = errors.New("timeout")
	r, _ := newRunner(t, store, src)

	require.Error(t, r.RemoveDuplicates(context.Background()))
	assert.Len(t, store.Scores("DT"), 2)
}
