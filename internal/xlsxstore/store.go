// Package xlsxstore keeps the category store in a local .xlsx workbook with
// the same worksheet layout as the Google Sheets backend.
package xlsxstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"osutrack-bot/internal/apperr"
	"osutrack-bot/internal/models"
	"osutrack-bot/internal/mods"
	"osutrack-bot/internal/sheets"
	"osutrack-bot/internal/util"
)

// Store holds the workbook in memory and writes it back after every mutation.
type Store struct {
	mu     sync.Mutex
	path   string
	f      *excelize.File
	logger *zap.Logger
}

// Open loads the workbook at path. A new workbook gets an empty worksheet for
// every category plus Users and Meta.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{path: path, logger: logger}

	f, err := excelize.OpenFile(path)
	switch {
	case err == nil:
		s.f = f
		return s, nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}

	s.f = excelize.NewFile()
	if err := s.f.SetSheetName("Sheet1", sheets.SheetMeta); err != nil {
		return nil, err
	}
	if err := s.provision(); err != nil {
		return nil, err
	}
	if err := s.save(); err != nil {
		return nil, err
	}
	logger.Info("workbook created", zap.String("path", path))
	return s, nil
}

func (s *Store) provision() error {
	names := []string{sheets.SheetUsers}
	for _, c := range append(mods.Categories(), mods.Combined) {
		names = append(names, string(c))
	}
	for _, name := range names {
		header := sheets.ScoreHeader
		if name == sheets.SheetUsers {
			header = sheets.UserHeader
		}
		if _, err := s.f.NewSheet(name); err != nil {
			return fmt.Errorf("create %s: %w", name, err)
		}
		if err := s.setRow(name, 1, headerRow(header)); err != nil {
			return fmt.Errorf("write %s header: %w", name, err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

// save writes the workbook to a temp file next to path and renames it over.
func (s *Store) save() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create workbook dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp workbook: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := s.f.Write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write workbook: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync workbook: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp workbook: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace workbook: %w", err)
	}
	return nil
}

func (s *Store) exists(sheet string) bool {
	idx, err := s.f.GetSheetIndex(sheet)
	return err == nil && idx >= 0
}

// rows returns the data rows below the header; a missing sheet has none.
func (s *Store) rows(sheet string) ([][]string, error) {
	if !s.exists(sheet) {
		return nil, nil
	}
	all, err := s.f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", sheet, err)
	}
	if len(all) <= 1 {
		return nil, nil
	}
	return all[1:], nil
}

func (s *Store) setRow(sheet string, rowNum int, row []interface{}) error {
	return s.f.SetSheetRow(sheet, "A"+strconv.Itoa(rowNum), &row)
}

// rewrite recreates sheet with its header and rows, then saves.
func (s *Store) rewrite(sheet string, header []string, rows [][]interface{}) error {
	if s.exists(sheet) {
		if err := s.f.DeleteSheet(sheet); err != nil {
			return fmt.Errorf("drop %s: %w", sheet, err)
		}
	}
	if _, err := s.f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create %s: %w", sheet, err)
	}
	if err := s.setRow(sheet, 1, headerRow(header)); err != nil {
		return err
	}
	for i, row := range rows {
		if err := s.setRow(sheet, i+2, row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+2, err)
		}
	}
	return s.save()
}

func headerRow(header []string) []interface{} {
	row := make([]interface{}, len(header))
	for i, h := range header {
		row[i] = h
	}
	return row
}

func (s *Store) ListCategories(ctx context.Context) ([]mods.Combo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []mods.Combo{}
	for _, c := range mods.Categories() {
		if s.exists(string(c)) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) GetScores(ctx context.Context, c mods.Combo) ([]models.Score, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.rows(string(c))
	if err != nil {
		return nil, err
	}
	out := make([]models.Score, 0, len(rows))
	for i, r := range rows {
		sc, ok, err := sheets.ParseScoreRow(sheets.StringRow(r))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", c, i+2, err)
		}
		if ok {
			out = append(out, sc)
		}
	}
	return out, nil
}

func (s *Store) GetScoreIDs(ctx context.Context, c mods.Combo) ([]int64, error) {
	scores, err := s.GetScores(ctx, c)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(scores))
	for i, sc := range scores {
		ids[i] = sc.ScoreID
	}
	return ids, nil
}

func (s *Store) ReplaceAll(ctx context.Context, c mods.Combo, scores []models.Score) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := make([][]interface{}, len(scores))
	for i, sc := range scores {
		rows[i] = sheets.ScoreRow(sc)
	}
	return s.rewrite(string(c), sheets.ScoreHeader, rows)
}

func (s *Store) AppendScore(ctx context.Context, c mods.Combo, sc models.Score) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sheet := string(c)
	if !s.exists(sheet) {
		return s.rewrite(sheet, sheets.ScoreHeader, [][]interface{}{sheets.ScoreRow(sc)})
	}
	all, err := s.f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("read %s: %w", sheet, err)
	}
	if err := s.setRow(sheet, len(all)+1, sheets.ScoreRow(sc)); err != nil {
		return err
	}
	return s.save()
}

func (s *Store) DeleteScore(ctx context.Context, c mods.Combo, scoreID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.rows(string(c))
	if err != nil {
		return err
	}
	want := strconv.FormatInt(scoreID, 10)
	for i, r := range rows {
		if len(r) > 0 && strings.TrimSpace(r[0]) == want {
			if err := s.f.RemoveRow(string(c), i+2); err != nil {
				return fmt.Errorf("delete %s row %d: %w", c, i+2, err)
			}
			return s.save()
		}
	}
	return apperr.NotFound("score %d not in %s", scoreID, c)
}

func (s *Store) GetUsers(ctx context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.rows(sheets.SheetUsers)
	if err != nil {
		return nil, err
	}
	out := make([]models.User, 0, len(rows))
	for i, r := range rows {
		u, ok, err := sheets.ParseUserRow(sheets.StringRow(r))
		if err != nil {
			return nil, fmt.Errorf("users row %d: %w", i+2, err)
		}
		if ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *Store) ReplaceAllUsers(ctx context.Context, users []models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := make([][]interface{}, len(users))
	for i, u := range users {
		rows[i] = sheets.UserRow(u)
	}
	return s.rewrite(sheets.SheetUsers, sheets.UserHeader, rows)
}

func (s *Store) SetLastUpdated(ctx context.Context, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.exists(sheets.SheetMeta) {
		if _, err := s.f.NewSheet(sheets.SheetMeta); err != nil {
			return err
		}
	}
	if err := s.setRow(sheets.SheetMeta, 1, []interface{}{"last_updated", util.FormatISO(t)}); err != nil {
		return err
	}
	return s.save()
}

func (s *Store) LastUpdated(ctx context.Context) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.exists(sheets.SheetMeta) {
		return time.Time{}, nil
	}
	v, err := s.f.GetCellValue(sheets.SheetMeta, "B1")
	if err != nil {
		return time.Time{}, fmt.Errorf("read last updated: %w", err)
	}
	return util.ParseISO(v)
}
