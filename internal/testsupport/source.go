package testsupport

import (
	"context"
	"strconv"
	"sync"

	"osutrack-bot/internal/apperr"
	"osutrack-bot/internal/models"
	"osutrack-bot/internal/osu"
)

// FakeSource serves canned API responses and records every call. Anything
// not registered is NotFound.
type FakeSource struct {
	mu       sync.Mutex
	profiles map[string]models.Profile
	scores   map[int64]models.Score
	plays    map[int64]map[osu.PlayKind][]models.Score

	// Errors keyed by score ID or user ID take precedence over canned data.
	ScoreErr map[int64]error
	UserErr  map[int64]error

	FetchedScores []int64
	FetchedUsers  []string
	FetchedPlays  []int64
}

func NewFakeSource() *FakeSource {
	return &FakeSource{
		profiles: map[string]models.Profile{},
		scores:   map[int64]models.Score{},
		plays:    map[int64]map[osu.PlayKind][]models.Score{},
		ScoreErr: map[int64]error{},
		UserErr:  map[int64]error{},
	}
}

func (f *FakeSource) AddProfile(p models.Profile) *FakeSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[strconv.FormatInt(p.UserID, 10)] = p
	return f
}

func (f *FakeSource) AddScore(scores ...models.Score) *FakeSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range scores {
		f.scores[s.ScoreID] = s
	}
	return f
}

func (f *FakeSource) AddPlays(userID int64, kind osu.PlayKind, scores ...models.Score) *FakeSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.plays[userID] == nil {
		f.plays[userID] = map[osu.PlayKind][]models.Score{}
	}
	f.plays[userID][kind] = append(f.plays[userID][kind], scores...)
	return f
}

func (f *FakeSource) FetchUser(ctx context.Context, idOrName, mode string) (models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FetchedUsers = append(f.FetchedUsers, idOrName)
	if id, err := strconv.ParseInt(idOrName, 10, 64); err == nil {
		if e := f.UserErr[id]; e != nil {
			return models.Profile{}, e
		}
	}
	p, ok := f.profiles[idOrName]
	if !ok {
		return models.Profile{}, apperr.NotFound("user %s not found", idOrName)
	}
	return p, nil
}

func (f *FakeSource) FetchScore(ctx context.Context, id int64) (models.Score, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FetchedScores = append(f.FetchedScores, id)
	if e := f.ScoreErr[id]; e != nil {
		return models.Score{}, e
	}
	s, ok := f.scores[id]
	if !ok {
		return models.Score{}, apperr.NotFound("score %d not found", id)
	}
	return s, nil
}

func (f *FakeSource) FetchUserPlays(ctx context.Context, userID int64, kind osu.PlayKind) ([]models.Score, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FetchedPlays = append(f.FetchedPlays, userID)
	if e := f.UserErr[userID]; e != nil {
		return nil, e
	}
	byKind, ok := f.plays[userID]
	if !ok {
		return nil, apperr.NotFound("user %d not found", userID)
	}
	return append([]models.Score(nil), byKind[kind]...), nil
}

// Fetched returns the score IDs requested so far.
func (f *FakeSource) Fetched() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.FetchedScores...)
}
