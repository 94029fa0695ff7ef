// Package scheduler runs jobs on a cron schedule or on demand, never two at
// once.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// JobRunner invokes a job by name.
type JobRunner interface {
	Run(ctx context.Context, name string, args []string) error
}

type Scheduler struct {
	cron   *cron.Cron
	lock   *Lock
	jobs   JobRunner
	logger *zap.Logger

	mu      sync.Mutex
	ctx     context.Context
	entries map[cron.EntryID]string
}

func New(jobs JobRunner, lock *Lock, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:    cron.New(),
		lock:    lock,
		jobs:    jobs,
		logger:  logger,
		ctx:     context.Background(),
		entries: map[cron.EntryID]string{},
	}
}

// Add schedules a job. A scheduled run that fails or panics unschedules its
// own entry; other entries keep running.
func (s *Scheduler) Add(spec, name string, args ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var id cron.EntryID
	id, err := s.cron.AddFunc(spec, func() {
		s.mu.Lock()
		self := id
		s.mu.Unlock()
		s.scheduledRun(self, name, args)
	})
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	s.entries[id] = name
	s.logger.Info("job scheduled", zap.String("job", name), zap.String("spec", spec))
	return nil
}

// Start begins firing entries; ctx is handed to every scheduled run.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("entries", len(s.Scheduled())))
}

// Stop halts the schedule and waits for a run in progress.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// Scheduled lists the names of the jobs still on the schedule.
func (s *Scheduler) Scheduled() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for _, name := range s.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// RunNow runs a job synchronously. It returns ErrBusy instead of waiting
// when another job is in progress.
func (s *Scheduler) RunNow(ctx context.Context, name string, args []string) error {
	release, err := s.lock.TryAcquire()
	if err != nil {
		return err
	}
	defer release()
	return s.invoke(ctx, name, args)
}

func (s *Scheduler) scheduledRun(id cron.EntryID, name string, args []string) {
	log := s.logger.With(zap.String("job", name))
	release, err := s.lock.TryAcquire()
	if errors.Is(err, ErrBusy) {
		log.Info("scheduled run skipped, another job is running")
		return
	}
	if err != nil {
		log.Error("scheduled run could not take the lock", zap.Error(err))
		return
	}
	defer release()

	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	if err := s.invoke(ctx, name, args); err != nil {
		log.Error("scheduled run failed, removing it from the schedule", zap.Error(err))
		s.remove(id)
		return
	}
	log.Info("scheduled run finished")
}

func (s *Scheduler) remove(id cron.EntryID) {
	s.cron.Remove(id)
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
}

// invoke turns a panic in the job into an error.
func (s *Scheduler) invoke(ctx context.Context, name string, args []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job panicked", zap.String("job", name), zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())))
			err = fmt.Errorf("job %s panicked: %v", name, r)
		}
	}()
	s.logger.Info("job started", zap.String("job", name), zap.String("args", strings.Join(args, " ")))
	return s.jobs.Run(ctx, name, args)
}
