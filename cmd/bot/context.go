package main

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"osutrack-bot/internal/checkpoint"
	"osutrack-bot/internal/config"
	"osutrack-bot/internal/jobs"
	"osutrack-bot/internal/logging"
	"osutrack-bot/internal/osu"
	"osutrack-bot/internal/scheduler"
	"osutrack-bot/internal/store"
)

const checkpointJob = "update_scores"

// appContext builds the shared components once per command invocation.
type appContext struct {
	once sync.Once
	err  error

	cfg    config.Config
	logger *zap.Logger
	store  store.Backend
	runner *jobs.Runner
	sched  *scheduler.Scheduler
}

func (a *appContext) ensure(ctx context.Context) error {
	a.once.Do(func() {
		cfg, err := config.FromEnv()
		if err != nil {
			a.err = fmt.Errorf("config: %w", err)
			return
		}
		logger, err := logging.New(cfg.LogLevel, cfg.LogDev)
		if err != nil {
			a.err = err
			return
		}
		st, err := store.New(ctx, cfg, logger)
		if err != nil {
			a.err = fmt.Errorf("store: %w", err)
			return
		}
		source := osu.New(cfg.OsuClientID, cfg.OsuClientSecret, cfg.OsuTokenURL, cfg.OsuAPIURL, cfg.OsuMode, cfg.APICooldown)
		cps := checkpoint.Open(cfg.CheckpointDir, checkpointJob)

		a.cfg = cfg
		a.logger = logger
		a.store = st
		a.runner = jobs.NewRunner(st, source, cps, cfg.OsuMode, logger)
		a.sched = scheduler.New(a.runner, scheduler.NewLock(cfg.LockPath), logger)
	})
	return a.err
}

// ensureOsu also checks the API credentials, for commands that run jobs.
func (a *appContext) ensureOsu(ctx context.Context) error {
	if err := a.ensure(ctx); err != nil {
		return err
	}
	return a.cfg.RequireOsu()
}

func (a *appContext) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("close store", zap.Error(err))
		}
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}
