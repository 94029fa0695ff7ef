package osu

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"osutrack-bot/internal/apperr"
	"osutrack-bot/internal/mods"
)

const scoreJSON = `{
  "id": 4242,
  "user_id": 7,
  "accuracy": 0.9875,
  "pp": 412.5,
  "mods": ["HD", "NC", "NF"],
  "created_at": "2024-03-02T10:00:00+00:00",
  "user": {"username": "cookiezi"},
  "beatmap": {"version": "Insane", "difficulty_rating": 6.12},
  "beatmapset": {"artist": "xi", "title": "FREEDOM DiVE", "covers": {"cover": "https://assets.ppy.sh/beatmaps/1/covers/cover.jpg"}}
}`

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewWithHTTPClient(srv.Client(), srv.URL+"/api/v2/", "osu", 0)
}

func TestFetchScore(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/scores/4242", r.URL.Path)
		_, _ = w.Write([]byte(scoreJSON))
	})

	s, err := c.FetchScore(context.Background(), 4242)
	require.NoError(t, err)

	assert.Equal(t, int64(4242), s.ScoreID)
	assert.Equal(t, int64(7), s.UserID)
	assert.Equal(t, "cookiezi", s.Username)
	assert.Equal(t, "xi - FREEDOM DiVE [Insane]", s.Beatmap)
	assert.Equal(t, mods.Combo("HDDT"), s.Mods)
	assert.InDelta(t, 98.75, s.Accuracy, 1e-9)
	assert.Equal(t, 412.5, s.PP)
	assert.Equal(t, 6.12, s.Stars)
	assert.True(t, time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC).Equal(s.SetAt))
	assert.Equal(t, "https://assets.ppy.sh/beatmaps/1/covers/cover.jpg", s.ImageURL)
}

func TestFetchScoreNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":null}`, http.StatusNotFound)
	})

	_, err := c.FetchScore(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
}

func TestServerErrorIsNotNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	})

	_, err := c.FetchScore(context.Background(), 1)
	require.Error(t, err)
	assert.False(t, apperr.IsNotFound(err))
	assert.Contains(t, err.Error(), "429")
}

func TestFetchUserPlaysLazerMods(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/users/7/scores/recent", r.URL.Path)
		assert.Equal(t, "osu", r.URL.Query().Get("mode"))
		assert.Equal(t, "0", r.URL.Query().Get("include_fails"))
		_, _ = w.Write([]byte(`[{
		  "id": 1, "user_id": 7, "accuracy": 1, "pp": null,
		  "mods": [{"acronym": "DT"}, {"acronym": "CL"}],
		  "ended_at": "2024-01-01T00:00:00Z",
		  "user": {"username": "u"},
		  "beatmap": {"version": "Hard", "difficulty_rating": 4, "beatmapset": {"artist": "a", "title": "t", "covers": {}}}
		}]`))
	})

	plays, err := c.FetchUserPlays(context.Background(), 7, Recent)
	require.NoError(t, err)
	require.Len(t, plays, 1)
	assert.Equal(t, mods.Combo("DT"), plays[0].Mods)
	assert.Equal(t, 0.0, plays[0].PP)
	assert.Equal(t, "a - t [Hard]", plays[0].Beatmap)
}

func TestFetchUser(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/users/peppy/osu", r.URL.Path)
		assert.Equal(t, "username", r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(`{
		  "id": 2, "username": "peppy", "playstyle": ["mouse", "keyboard"],
		  "country_code": "AU", "avatar_url": "https://a.ppy.sh/2",
		  "statistics": {"global_rank": null, "country_rank": 12, "pp": 1000.5, "hit_accuracy": 95.1, "play_time": 7200}
		}`))
	})

	p, err := c.FetchUser(context.Background(), "peppy", "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.UserID)
	assert.Equal(t, "mouse, keyboard", p.Playstyle)
	assert.Nil(t, p.GlobalRank)
	require.NotNil(t, p.CountryRank)
	assert.Equal(t, 12, *p.CountryRank)
	assert.Equal(t, 2.0, p.PlaytimeHours)
}

func TestCooldownSpacesCalls(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(scoreJSON))
	}))
	defer srv.Close()

	cooldown := 40 * time.Millisecond
	c := NewWithHTTPClient(srv.Client(), srv.URL, "osu", cooldown)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.FetchScore(context.Background(), 4242)
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 2*cooldown)
	assert.Equal(t, int32(3), calls.Load())
}

func TestCanceledContextStopsBeforeCall(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.FetchScore(ctx, 1)
	assert.Error(t, err)
	assert.Equal(t, int32(0), calls.Load())
}
