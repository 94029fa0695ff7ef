package osu

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"osutrack-bot/internal/mods"
	"osutrack-bot/internal/models"
)

type apiUser struct {
	ID          int64    `json:"id"`
	Username    string   `json:"username"`
	Playstyle   []string `json:"playstyle"`
	CountryCode string   `json:"country_code"`
	AvatarURL   string   `json:"avatar_url"`
	Statistics  struct {
		GlobalRank  *int    `json:"global_rank"`
		CountryRank *int    `json:"country_rank"`
		PP          float64 `json:"pp"`
		HitAccuracy float64 `json:"hit_accuracy"`
		PlayTime    int64   `json:"play_time"` // seconds
	} `json:"statistics"`
}

func (u apiUser) profile() models.Profile {
	return models.Profile{
		UserID:        u.ID,
		Username:      u.Username,
		Playstyle:     strings.Join(u.Playstyle, ", "),
		CountryCode:   u.CountryCode,
		GlobalRank:    u.Statistics.GlobalRank,
		CountryRank:   u.Statistics.CountryRank,
		PP:            u.Statistics.PP,
		Accuracy:      u.Statistics.HitAccuracy,
		PlaytimeHours: float64(u.Statistics.PlayTime) / 3600,
		AvatarURL:     u.AvatarURL,
	}
}

type apiBeatmapset struct {
	Artist string            `json:"artist"`
	Title  string            `json:"title"`
	Covers map[string]string `json:"covers"`
}

type apiScore struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	Accuracy  float64    `json:"accuracy"` // 0-1
	PP        *float64   `json:"pp"`
	Mods      apiMods    `json:"mods"`
	CreatedAt *time.Time `json:"created_at"`
	EndedAt   *time.Time `json:"ended_at"`
	User      struct {
		Username string `json:"username"`
	} `json:"user"`
	Beatmap struct {
		Version          string         `json:"version"`
		DifficultyRating float64        `json:"difficulty_rating"`
		Beatmapset       *apiBeatmapset `json:"beatmapset"`
	} `json:"beatmap"`
	Beatmapset *apiBeatmapset `json:"beatmapset"`
}

// apiMods decodes both ["HD","DT"] and [{"acronym":"HD"},...].
type apiMods []string

func (m *apiMods) UnmarshalJSON(b []byte) error {
	var plain []string
	if err := json.Unmarshal(b, &plain); err == nil {
		*m = plain
		return nil
	}
	var objs []struct {
		Acronym string `json:"acronym"`
	}
	if err := json.Unmarshal(b, &objs); err != nil {
		return fmt.Errorf("mods: %w", err)
	}
	out := make([]string, 0, len(objs))
	for _, o := range objs {
		out = append(out, o.Acronym)
	}
	*m = out
	return nil
}

func (s apiScore) score() (models.Score, error) {
	combo, err := mods.Canonicalize([]string(s.Mods))
	if err != nil {
		return models.Score{}, err
	}
	set := s.Beatmapset
	if set == nil {
		set = s.Beatmap.Beatmapset
	}
	var label, image string
	if set != nil {
		label = fmt.Sprintf("%s - %s [%s]", set.Artist, set.Title, s.Beatmap.Version)
		image = set.Covers["cover"]
	}
	var at time.Time
	switch {
	case s.EndedAt != nil:
		at = *s.EndedAt
	case s.CreatedAt != nil:
		at = *s.CreatedAt
	}
	var pp float64
	if s.PP != nil {
		pp = *s.PP
	}
	return models.Score{
		ScoreID:  s.ID,
		UserID:   s.UserID,
		Username: s.User.Username,
		Beatmap:  label,
		Mods:     combo,
		Accuracy: s.Accuracy * 100,
		PP:       pp,
		Stars:    s.Beatmap.DifficultyRating,
		SetAt:    at.UTC(),
		ImageURL: image,
	}, nil
}
