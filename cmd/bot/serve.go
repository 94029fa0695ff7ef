package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"osutrack-bot/internal/jobs"
	"osutrack-bot/internal/server"
	"osutrack-bot/internal/tgbot"
)

func newServeCommand(app *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler, the chat bot and the status endpoint until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if err := app.ensureOsu(ctx); err != nil {
				return err
			}
			return serve(ctx, app)
		},
	}
}

func serve(ctx context.Context, app *appContext) error {
	log := app.logger
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := app.sched.Add(app.cfg.Schedule, jobs.JobScheduled); err != nil {
		return err
	}
	app.sched.Start(ctx)

	httpSrv := server.New(app.cfg, app.runner, app.sched, log)
	go func() {
		log.Info("HTTP listening", zap.String("addr", app.cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server", zap.Error(err))
			cancel()
		}
	}()

	var bot *tgbot.App
	if app.cfg.TelegramToken != "" {
		b, err := tgbot.New(app.cfg, app.sched, app.runner, log)
		if err != nil {
			return err
		}
		bot = b
		go func() {
			if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("bot stopped", zap.Error(err))
				cancel()
			}
		}()
	} else {
		log.Warn("TELEGRAM_BOT_TOKEN is empty, chat bot disabled")
	}

	<-ctx.Done()
	log.Info("shutting down...")

	app.sched.Stop()
	if bot != nil {
		bot.Wait()
	}
	ctxTimeout, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	_ = httpSrv.Shutdown(ctxTimeout)

	log.Info("bye")
	return nil
}
