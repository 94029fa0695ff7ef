// Package testsupport provides in-memory stand-ins for the category store and
// the osu! API.
package testsupport

import (
	"context"
	"sync"
	"time"

	"osutrack-bot/internal/apperr"
	"osutrack-bot/internal/models"
	"osutrack-bot/internal/mods"
)

// MemStore is an in-memory category store. Categories with no entry read as
// empty. Errors can be injected per operation name.
type MemStore struct {
	mu          sync.Mutex
	categories  []mods.Combo
	scores      map[mods.Combo][]models.Score
	users       []models.User
	lastUpdated time.Time

	Fail     map[string]error
	Replaces map[mods.Combo]int
}

func NewMemStore() *MemStore {
	return &MemStore{
		categories: mods.Categories(),
		scores:     map[mods.Combo][]models.Score{},
		Fail:       map[string]error{},
		Replaces:   map[mods.Combo]int{},
	}
}

// WithCategories limits ListCategories to cats, in that order.
func (m *MemStore) WithCategories(cats ...mods.Combo) *MemStore {
	m.categories = cats
	return m
}

func (m *MemStore) Seed(c mods.Combo, scores ...models.Score) *MemStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores[c] = append([]models.Score(nil), scores...)
	return m
}

func (m *MemStore) SeedUsers(users ...models.User) *MemStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = append([]models.User(nil), users...)
	return m
}

// Scores returns a copy of the category without going through the interface.
func (m *MemStore) Scores(c mods.Combo) []models.Score {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Score(nil), m.scores[c]...)
}

func (m *MemStore) Users() []models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.User(nil), m.users...)
}

func (m *MemStore) ListCategories(ctx context.Context) ([]mods.Combo, error) {
	if err := m.fail("ListCategories"); err != nil {
		return nil, err
	}
	return append([]mods.Combo(nil), m.categories...), nil
}

func (m *MemStore) GetScores(ctx context.Context, c mods.Combo) ([]models.Score, error) {
	if err := m.fail("GetScores"); err != nil {
		return nil, err
	}
	return m.Scores(c), nil
}

func (m *MemStore) GetScoreIDs(ctx context.Context, c mods.Combo) ([]int64, error) {
	if err := m.fail("GetScoreIDs"); err != nil {
		return nil, err
	}
	scores := m.Scores(c)
	ids := make([]int64, len(scores))
	for i, s := range scores {
		ids[i] = s.ScoreID
	}
	return ids, nil
}

func (m *MemStore) ReplaceAll(ctx context.Context, c mods.Combo, scores []models.Score) error {
	if err := m.fail("ReplaceAll"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores[c] = append([]models.Score(nil), scores...)
	m.Replaces[c]++
	return nil
}

func (m *MemStore) AppendScore(ctx context.Context, c mods.Combo, s models.Score) error {
	if err := m.fail("AppendScore"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores[c] = append(m.scores[c], s)
	return nil
}

func (m *MemStore) DeleteScore(ctx context.Context, c mods.Combo, scoreID int64) error {
	if err := m.fail("DeleteScore"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.scores[c]
	for i, s := range rows {
		if s.ScoreID == scoreID {
			m.scores[c] = append(rows[:i:i], rows[i+1:]...)
			return nil
		}
	}
	return apperr.NotFound("score %d not in %s", scoreID, c)
}

func (m *MemStore) GetUsers(ctx context.Context) ([]models.User, error) {
	if err := m.fail("GetUsers"); err != nil {
		return nil, err
	}
	return m.Users(), nil
}

func (m *MemStore) ReplaceAllUsers(ctx context.Context, users []models.User) error {
	if err := m.fail("ReplaceAllUsers"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = append([]models.User(nil), users...)
	return nil
}

func (m *MemStore) SetLastUpdated(ctx context.Context, t time.Time) error {
	if err := m.fail("SetLastUpdated"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastUpdated = t
	return nil
}

func (m *MemStore) LastUpdated(ctx context.Context) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastUpdated, nil
}

func (m *MemStore) fail(op string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Fail[op]
}
