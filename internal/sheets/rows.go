package sheets

import (
	"fmt"
	"strconv"
	"strings"

	"osutrack-bot/internal/apperr"
	"osutrack-bot/internal/models"
	"osutrack-bot/internal/mods"
	"osutrack-bot/internal/util"
)

// Worksheets that are not categories.
const (
	SheetUsers = "Users"
	SheetMeta  = "Meta"
)

// Header rows. Row 1 of every worksheet; data starts at row 2.
var (
	ScoreHeader = []string{"score_id", "user_id", "username", "beatmap", "mods", "accuracy", "pp", "stars", "set_at", "image_url"}
	UserHeader  = []string{
		"user_id", "username", "playstyle", "country", "global_rank", "country_rank",
		"pp", "accuracy", "playtime_hours",
		"top1s", "top2s", "top3s", "top5s", "top10s", "top25s",
		"avatar_url", "autotrack",
	}
)

func ScoreRow(s models.Score) []interface{} {
	return []interface{}{
		s.ScoreID, s.UserID, s.Username, s.Beatmap, string(s.Mods),
		s.Accuracy, s.PP, s.Stars, util.FormatISO(s.SetAt), s.ImageURL,
	}
}

// ParseScoreRow reads a score row. ok is false for blank rows.
func ParseScoreRow(row []interface{}) (s models.Score, ok bool, err error) {
	if strings.TrimSpace(get(row, 0)) == "" {
		return s, false, nil
	}
	if s.ScoreID, err = parseID(get(row, 0)); err != nil {
		return s, false, apperr.Wrap(apperr.KindInvalidInput, err, "score_id %q", get(row, 0))
	}
	if s.UserID, err = parseID(get(row, 1)); err != nil {
		return s, false, apperr.Wrap(apperr.KindInvalidInput, err, "score %d: user_id %q", s.ScoreID, get(row, 1))
	}
	s.Username = get(row, 2)
	s.Beatmap = get(row, 3)
	s.Mods = mods.Combo(strings.TrimSpace(get(row, 4)))
	s.Accuracy = parseFloat(get(row, 5))
	s.PP = parseFloat(get(row, 6))
	s.Stars = parseFloat(get(row, 7))
	if s.SetAt, err = util.ParseISO(get(row, 8)); err != nil {
		return s, false, apperr.Wrap(apperr.KindInvalidInput, err, "score %d: set_at", s.ScoreID)
	}
	s.ImageURL = get(row, 9)
	return s, true, nil
}

func UserRow(u models.User) []interface{} {
	return []interface{}{
		u.UserID, u.Username, u.Playstyle, u.CountryCode,
		util.FormatOptionalInt(u.GlobalRank), util.FormatOptionalInt(u.CountryRank),
		u.PP, u.Accuracy, u.PlaytimeHours,
		u.Top1s, u.Top2s, u.Top3s, u.Top5s, u.Top10s, u.Top25s,
		u.AvatarURL, strconv.FormatBool(u.Autotrack),
	}
}

func ParseUserRow(row []interface{}) (u models.User, ok bool, err error) {
	if strings.TrimSpace(get(row, 0)) == "" {
		return u, false, nil
	}
	if u.UserID, err = parseID(get(row, 0)); err != nil {
		return u, false, apperr.Wrap(apperr.KindInvalidInput, err, "user_id %q", get(row, 0))
	}
	u.Username = get(row, 1)
	u.Playstyle = get(row, 2)
	u.CountryCode = get(row, 3)
	u.GlobalRank = util.ParseOptionalInt(get(row, 4))
	u.CountryRank = util.ParseOptionalInt(get(row, 5))
	u.PP = parseFloat(get(row, 6))
	u.Accuracy = parseFloat(get(row, 7))
	u.PlaytimeHours = parseFloat(get(row, 8))
	u.Top1s = parseCount(get(row, 9))
	u.Top2s = parseCount(get(row, 10))
	u.Top3s = parseCount(get(row, 11))
	u.Top5s = parseCount(get(row, 12))
	u.Top10s = parseCount(get(row, 13))
	u.Top25s = parseCount(get(row, 14))
	u.AvatarURL = get(row, 15)
	u.Autotrack = util.NormalizeBool(get(row, 16))
	return u, true, nil
}

// StringRow adapts a row of plain strings, as returned by file backends.
func StringRow(cells []string) []interface{} {
	row := make([]interface{}, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return row
}

func get(row []interface{}, idx int) string {
	if idx < 0 || idx >= len(row) || row[idx] == nil {
		return ""
	}
	return fmt.Sprint(row[idx])
}

// parseID tolerates thousands separators added by sheet formatting.
func parseID(s string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, fmt.Errorf("non-positive id %d", id)
	}
	return id, nil
}

// parseFloat reads "1,234.5" and "1,234" as thousands and "12,5" as a
// decimal comma.
func parseFloat(s string) float64 {
	s = strings.TrimSpace(s)
	switch {
	case strings.Contains(s, "."):
		s = strings.ReplaceAll(s, ",", "")
	case strings.Count(s, ",") == 1 && len(s)-strings.Index(s, ",") != 4:
		s = strings.Replace(s, ",", ".", 1)
	default:
		s = strings.ReplaceAll(s, ",", "")
	}
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func parseCount(s string) int {
	v, _ := strconv.Atoi(strings.TrimSpace(s))
	return v
}
