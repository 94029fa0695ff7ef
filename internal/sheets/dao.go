package sheets

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	sheetsv4 "google.golang.org/api/sheets/v4"

	"osutrack-bot/internal/apperr"
	"osutrack-bot/internal/models"
	"osutrack-bot/internal/mods"
	"osutrack-bot/internal/util"
)

func (c *Client) readRange(ctx context.Context, a1 string) ([][]interface{}, error) {
	resp, err := c.srv.Spreadsheets.Values.Get(c.spreadsheetID, a1).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (c *Client) readAll(ctx context.Context, sheet string) ([][]interface{}, error) {
	return c.readRange(ctx, sheet+"!A:Z")
}

func (c *Client) appendRow(ctx context.Context, sheet string, row []interface{}) error {
	vr := &sheetsv4.ValueRange{Values: [][]interface{}{row}}
	_, err := c.srv.Spreadsheets.Values.Append(c.spreadsheetID, sheet+"!A:Z", vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

func (c *Client) updateRange(ctx context.Context, a1 string, rows [][]interface{}) error {
	vr := &sheetsv4.ValueRange{Values: rows}
	_, err := c.srv.Spreadsheets.Values.Update(c.spreadsheetID, a1, vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}

func (c *Client) clearRange(ctx context.Context, a1 string) error {
	_, err := c.srv.Spreadsheets.Values.Clear(c.spreadsheetID, a1, &sheetsv4.ClearValuesRequest{}).
		Context(ctx).
		Do()
	return err
}

// titles returns worksheet title -> sheetId, from cache unless refresh is set.
func (c *Client) titles(ctx context.Context, refresh bool) (map[string]int64, error) {
	c.mu.Lock()
	cached := c.sheetIDs
	c.mu.Unlock()
	if cached != nil && !refresh {
		return cached, nil
	}

	ss, err := c.srv.Spreadsheets.Get(c.spreadsheetID).
		Fields("sheets.properties(sheetId,title)").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list worksheets: %w", err)
	}
	ids := make(map[string]int64, len(ss.Sheets))
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			ids[sh.Properties.Title] = sh.Properties.SheetId
		}
	}
	c.mu.Lock()
	c.sheetIDs = ids
	c.mu.Unlock()
	return ids, nil
}

func (c *Client) exists(ctx context.Context, title string) (bool, error) {
	ids, err := c.titles(ctx, false)
	if err != nil {
		return false, err
	}
	_, ok := ids[title]
	return ok, nil
}

// ensureSheet creates the worksheet with its header row if it is missing.
func (c *Client) ensureSheet(ctx context.Context, title string, header []string) error {
	ids, err := c.titles(ctx, false)
	if err != nil {
		return err
	}
	if _, ok := ids[title]; ok {
		return nil
	}
	if ids, err = c.titles(ctx, true); err != nil {
		return err
	}
	if _, ok := ids[title]; ok {
		return nil
	}

	resp, err := c.srv.Spreadsheets.BatchUpdate(c.spreadsheetID, &sheetsv4.BatchUpdateSpreadsheetRequest{
		Requests: []*sheetsv4.Request{{
			AddSheet: &sheetsv4.AddSheetRequest{Properties: &sheetsv4.SheetProperties{Title: title}},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("add worksheet %s: %w", title, err)
	}
	var id int64
	if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil && resp.Replies[0].AddSheet.Properties != nil {
		id = resp.Replies[0].AddSheet.Properties.SheetId
	}
	c.mu.Lock()
	c.sheetIDs[title] = id
	c.mu.Unlock()
	c.logger.Info("worksheet created", zap.String("title", title), zap.Int64("sheet_id", id))

	if len(header) == 0 {
		return nil
	}
	row := make([]interface{}, len(header))
	for i, h := range header {
		row[i] = h
	}
	return c.updateRange(ctx, title+"!A1", [][]interface{}{row})
}

// replaceRows writes rows from A2 over the old ones, then clears whatever is
// left below them. A failed write leaves the previous rows in place.
func (c *Client) replaceRows(ctx context.Context, sheet string, header []string, rows [][]interface{}) error {
	if err := c.ensureSheet(ctx, sheet, header); err != nil {
		return err
	}
	if len(rows) > 0 {
		if err := c.updateRange(ctx, sheet+"!A2", rows); err != nil {
			return fmt.Errorf("write %s: %w", sheet, err)
		}
	}
	tail := fmt.Sprintf("%s!A%d:Z", sheet, len(rows)+2)
	if err := c.clearRange(ctx, tail); err != nil {
		return fmt.Errorf("clear %s: %w", sheet, err)
	}
	return nil
}

// ---------- Categories ----------

// ListCategories returns the known categories that have a worksheet, in
// enumeration order. COMBINED is never listed.
func (c *Client) ListCategories(ctx context.Context) ([]mods.Combo, error) {
	ids, err := c.titles(ctx, true)
	if err != nil {
		return nil, err
	}
	out := []mods.Combo{}
	for _, cat := range mods.Categories() {
		if _, ok := ids[string(cat)]; ok {
			out = append(out, cat)
		}
	}
	return out, nil
}

func (c *Client) GetScores(ctx context.Context, cat mods.Combo) ([]models.Score, error) {
	ok, err := c.exists(ctx, string(cat))
	if err != nil || !ok {
		return nil, err
	}
	values, err := c.readAll(ctx, string(cat))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", cat, err)
	}
	scores := []models.Score{}
	// header row at index 0
	for i := 1; i < len(values); i++ {
		s, ok, err := ParseScoreRow(values[i])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", cat, i+1, err)
		}
		if ok {
			scores = append(scores, s)
		}
	}
	return scores, nil
}

func (c *Client) GetScoreIDs(ctx context.Context, cat mods.Combo) ([]int64, error) {
	ok, err := c.exists(ctx, string(cat))
	if err != nil || !ok {
		return nil, err
	}
	values, err := c.readRange(ctx, string(cat)+"!A2:A")
	if err != nil {
		return nil, fmt.Errorf("read %s ids: %w", cat, err)
	}
	ids := make([]int64, 0, len(values))
	for i, row := range values {
		raw := get(row, 0)
		if raw == "" {
			continue
		}
		id, err := parseID(raw)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInvalidInput, err, "%s row %d: score_id %q", cat, i+2, raw)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *Client) ReplaceAll(ctx context.Context, cat mods.Combo, scores []models.Score) error {
	rows := make([][]interface{}, len(scores))
	for i, s := range scores {
		rows[i] = ScoreRow(s)
	}
	return c.replaceRows(ctx, string(cat), ScoreHeader, rows)
}

func (c *Client) AppendScore(ctx context.Context, cat mods.Combo, s models.Score) error {
	if err := c.ensureSheet(ctx, string(cat), ScoreHeader); err != nil {
		return err
	}
	return c.appendRow(ctx, string(cat), ScoreRow(s))
}

// DeleteScore removes the row holding scoreID; later rows shift up.
func (c *Client) DeleteScore(ctx context.Context, cat mods.Combo, scoreID int64) error {
	titles, err := c.titles(ctx, false)
	if err != nil {
		return err
	}
	sheetID, ok := titles[string(cat)]
	if !ok {
		return apperr.NotFound("score %d not in %s", scoreID, cat)
	}
	values, err := c.readRange(ctx, string(cat)+"!A2:A")
	if err != nil {
		return fmt.Errorf("read %s ids: %w", cat, err)
	}
	row := -1
	for i, r := range values {
		if id, err := parseID(get(r, 0)); err == nil && id == scoreID {
			row = i + 1 // zero-based grid index; header is 0
			break
		}
	}
	if row < 0 {
		return apperr.NotFound("score %d not in %s", scoreID, cat)
	}

	_, err = c.srv.Spreadsheets.BatchUpdate(c.spreadsheetID, &sheetsv4.BatchUpdateSpreadsheetRequest{
		Requests: []*sheetsv4.Request{{
			DeleteDimension: &sheetsv4.DeleteDimensionRequest{
				Range: &sheetsv4.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(row),
					EndIndex:   int64(row + 1),
				},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("delete %s row %d: %w", cat, row+1, err)
	}
	return nil
}

// ---------- Meta ----------

func (c *Client) SetLastUpdated(ctx context.Context, t time.Time) error {
	if err := c.ensureSheet(ctx, SheetMeta, nil); err != nil {
		return err
	}
	return c.updateRange(ctx, SheetMeta+"!A1:B1", [][]interface{}{{"last_updated", util.FormatISO(t)}})
}

// LastUpdated is the zero time when the marker was never written.
func (c *Client) LastUpdated(ctx context.Context) (time.Time, error) {
	ok, err := c.exists(ctx, SheetMeta)
	if err != nil || !ok {
		return time.Time{}, err
	}
	values, err := c.readRange(ctx, SheetMeta+"!B1")
	if err != nil {
		return time.Time{}, fmt.Errorf("read last updated: %w", err)
	}
	if len(values) == 0 {
		return time.Time{}, nil
	}
	return util.ParseISO(get(values[0], 0))
}
