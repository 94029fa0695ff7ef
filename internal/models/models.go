package models

import (
	"time"

	"osutrack-bot/internal/mods"
)

// Score is one played beatmap attempt, keyed by ScoreID.
type Score struct {
	ScoreID  int64      `json:"scoreId"`
	UserID   int64      `json:"userId"`
	Username string     `json:"username"`
	Beatmap  string     `json:"beatmap"` // "<artist> - <title> [<difficulty>]"
	Mods     mods.Combo `json:"mods"`
	Accuracy float64    `json:"accuracy"` // 0-100
	PP       float64    `json:"pp"`
	Stars    float64    `json:"stars"`
	SetAt    time.Time  `json:"setAt"`
	ImageURL string     `json:"imageUrl"`
}

// SamePlay reports whether two rows describe the same play under different IDs.
func (s Score) SamePlay(o Score) bool {
	return s.ScoreID != o.ScoreID &&
		s.UserID == o.UserID &&
		s.Username == o.Username &&
		s.Beatmap == o.Beatmap &&
		s.Mods == o.Mods &&
		s.Accuracy == o.Accuracy &&
		s.PP == o.PP &&
		s.Stars == o.Stars &&
		s.SetAt.Equal(o.SetAt) &&
		s.ImageURL == o.ImageURL
}

// Profile is what the osu! API returns for a player.
type Profile struct {
	UserID        int64
	Username      string
	Playstyle     string
	CountryCode   string
	GlobalRank    *int // nil when unranked
	CountryRank   *int
	PP            float64
	Accuracy      float64
	PlaytimeHours float64
	AvatarURL     string
}

// User is a tracked player: cached profile plus placement counters.
type User struct {
	Profile

	Top1s  int // rank 1
	Top2s  int // rank 2
	Top3s  int // rank 3
	Top5s  int // ranks 4-5
	Top10s int // ranks 6-10
	Top25s int // ranks 11-25

	Autotrack bool
}

// Placements holds the six rank-band counters.
type Placements struct {
	Top1s, Top2s, Top3s, Top5s, Top10s, Top25s int
}

// Add counts one appearance at the 1-based rank. Ranks past 25 are ignored.
func (p *Placements) Add(rank int) {
	switch {
	case rank == 1:
		p.Top1s++
	case rank == 2:
		p.Top2s++
	case rank == 3:
		p.Top3s++
	case rank >= 4 && rank <= 5:
		p.Top5s++
	case rank >= 6 && rank <= 10:
		p.Top10s++
	case rank >= 11 && rank <= 25:
		p.Top25s++
	}
}

func (u *User) SetPlacements(p Placements) {
	u.Top1s, u.Top2s, u.Top3s = p.Top1s, p.Top2s, p.Top3s
	u.Top5s, u.Top10s, u.Top25s = p.Top5s, p.Top10s, p.Top25s
}
