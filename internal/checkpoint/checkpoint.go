// Package checkpoint persists in-progress job state so an interrupted run can
// resume inside the category it was processing.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"osutrack-bot/internal/models"
)

// NotStarted is the ActiveCategory of a job that has no work in flight.
const NotStarted = "NONE"

type Checkpoint struct {
	ActiveCategory  string         `json:"activeCategory"`
	CollectedScores []models.Score `json:"collectedScores"`
}

func (c Checkpoint) InProgress() bool {
	return c.ActiveCategory != NotStarted && c.ActiveCategory != ""
}

// Store holds one checkpoint document per job. Readers may call Peek while a
// job appends.
type Store struct {
	mu   sync.Mutex
	path string
	cur  Checkpoint
}

func Open(dir, job string) *Store {
	return &Store{
		path: filepath.Join(dir, job+".json"),
		cur:  Checkpoint{ActiveCategory: NotStarted},
	}
}

func (s *Store) Path() string { return s.path }

// Load reads the checkpoint, creating an empty one on disk if none exists.
func (s *Store) Load() (Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && len(data) == 0) {
		s.cur = Checkpoint{ActiveCategory: NotStarted}
		if err := s.save(); err != nil {
			return Checkpoint{}, err
		}
		return s.snapshot(), nil
	}
	if err != nil {
		return Checkpoint{}, fmt.Errorf("read checkpoint: %w", err)
	}

	cp, err := s.decode(data)
	if err != nil {
		return Checkpoint{}, err
	}
	s.cur = cp
	return s.snapshot(), nil
}

// Peek returns the checkpoint as stored on disk without changing what the
// running job holds in memory. A missing file reads as not started.
func (s *Store) Peek() (Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && len(data) == 0) {
		return Checkpoint{ActiveCategory: NotStarted}, nil
	}
	if err != nil {
		return Checkpoint{}, fmt.Errorf("read checkpoint: %w", err)
	}
	return s.decode(data)
}

func (s *Store) decode(data []byte) (Checkpoint, error) {
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, fmt.Errorf("parse checkpoint %s: %w", s.path, err)
	}
	if cp.ActiveCategory == "" {
		cp.ActiveCategory = NotStarted
	}
	return cp, nil
}

// Append records one fetched score and rewrites the whole checkpoint.
func (s *Store) Append(score models.Score) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur.CollectedScores = append(s.cur.CollectedScores, score)
	if err := s.save(); err != nil {
		s.cur.CollectedScores = s.cur.CollectedScores[:len(s.cur.CollectedScores)-1]
		return err
	}
	return nil
}

// Reset clears collected scores and points the checkpoint at next.
func (s *Store) Reset(next string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if next == "" {
		next = NotStarted
	}
	s.cur = Checkpoint{ActiveCategory: next}
	return s.save()
}

func (s *Store) snapshot() Checkpoint {
	out := Checkpoint{ActiveCategory: s.cur.ActiveCategory}
	out.CollectedScores = append([]models.Score(nil), s.cur.CollectedScores...)
	return out
}

func (s *Store) save() error {
	cp := s.cur
	if cp.CollectedScores == nil {
		cp.CollectedScores = []models.Score{}
	}
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create checkpoint directory: %w", err)
	}

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync checkpoint: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close checkpoint: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}
