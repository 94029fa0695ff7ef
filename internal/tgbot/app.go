package tgbot

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"osutrack-bot/internal/apperr"
	"osutrack-bot/internal/checkpoint"
	"osutrack-bot/internal/config"
	"osutrack-bot/internal/jobs"
	"osutrack-bot/internal/models"
	"osutrack-bot/internal/mods"
	"osutrack-bot/internal/scheduler"
)

const defaultTop = 10

// Client is the part of the Bot API the app talks to.
type Client interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// JobRunner runs a job to completion or refuses with scheduler.ErrBusy.
type JobRunner interface {
	RunNow(ctx context.Context, name string, args []string) error
}

// Board is the read side of the leaderboards.
type Board interface {
	Top(ctx context.Context, c mods.Combo, n int) ([]models.Score, error)
	Status(ctx context.Context) (jobs.Status, error)
}

type App struct {
	cfg    config.Config
	bot    *tgbotapi.BotAPI
	client Client
	jobs   JobRunner
	board  Board
	logger *zap.Logger

	wg sync.WaitGroup // background job runs
}

func New(cfg config.Config, runner JobRunner, board Board, logger *zap.Logger) (*App, error) {
	b, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, err
	}
	b.Debug = false
	a := NewWithClient(cfg, b, runner, board, logger)
	a.bot = b
	return a, nil
}

// NewWithClient builds an app that cannot poll for updates; handlers only.
func NewWithClient(cfg config.Config, client Client, runner JobRunner, board Board, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		cfg:    cfg,
		client: client,
		jobs:   runner,
		board:  board,
		logger: logger.With(zap.String("component", "tgbot")),
	}
}

func (a *App) Run(ctx context.Context) error {
	if a.bot == nil {
		return errors.New("tgbot: no bot api client")
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := a.bot.GetUpdatesChan(u)
	defer a.bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			a.wg.Wait()
			return ctx.Err()
		case upd := <-updates:
			if upd.Message != nil {
				if err := a.handleMessage(ctx, upd.Message); err != nil {
					a.logger.Error("handle msg", zap.Error(err))
				}
			} else if upd.CallbackQuery != nil {
				if err := a.handleCallback(ctx, upd.CallbackQuery); err != nil {
					a.logger.Error("handle cb", zap.Error(err))
				}
			}
		}
	}
}

// Wait blocks until background job runs started from chat have finished.
func (a *App) Wait() { a.wg.Wait() }

func (a *App) SendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := a.client.Send(msg)
	return err
}

func (a *App) isAdmin(tgID int64) bool {
	return a.cfg.AdminTGIDs[tgID]
}

// ---------- Message handling ----------

func (a *App) handleMessage(ctx context.Context, m *tgbotapi.Message) error {
	if m.From == nil {
		return nil
	}
	tgID := m.From.ID
	fields := strings.Fields(m.Text)
	if len(fields) == 0 {
		return a.showHelp(tgID)
	}
	// "/run@osutrack_bot scrape" addresses the bot in group chats
	cmd, _, _ := strings.Cut(strings.ToLower(fields[0]), "@")
	args := fields[1:]

	switch cmd {
	case "/top":
		return a.showTop(ctx, tgID, args)
	case "/run", "/jobs", "/status", "/admin":
		if !a.isAdmin(tgID) {
			return a.SendText(tgID, "Access denied.")
		}
	default:
		return a.showHelp(tgID)
	}

	switch cmd {
	case "/run":
		if len(args) == 0 {
			return a.SendText(tgID, "Usage: /run <job> [args]\nJobs: "+strings.Join(jobs.Names(), ", "))
		}
		return a.startJob(ctx, tgID, args[0], args[1:])
	case "/jobs":
		return a.SendText(tgID, "Jobs:\n"+strings.Join(jobs.Names(), "\n"))
	case "/status":
		return a.showStatus(ctx, tgID)
	default:
		return a.showAdminMenu(tgID)
	}
}

func (a *App) showHelp(tgID int64) error {
	text := "/top <mods> [n] - leaderboard for a mod combination, e.g. /top HDDT"
	if a.isAdmin(tgID) {
		text += "\n/run <job> [args] - start a job\n/jobs - list jobs\n/status - sync progress\n/admin - admin panel"
	}
	return a.SendText(tgID, text)
}

// startJob runs the job in the background and reports the outcome verbatim.
func (a *App) startJob(ctx context.Context, tgID int64, name string, args []string) error {
	if !slices.Contains(jobs.Names(), name) {
		return a.SendText(tgID, fmt.Sprintf("Unknown job %q. Jobs: %s", name, strings.Join(jobs.Names(), ", ")))
	}
	if err := a.SendText(tgID, "▶️ "+name+" started"); err != nil {
		return err
	}
	a.logger.Info("job requested from chat", zap.String("job", name), zap.Int64("tg_id", tgID))

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		err := a.jobs.RunNow(ctx, name, args)
		var reply string
		switch {
		case err == nil:
			reply = "✅ " + name + " finished"
		case errors.Is(err, scheduler.ErrBusy):
			reply = "⏳ " + name + " not started: " + err.Error()
		default:
			reply = "❌ " + name + " failed: " + err.Error()
		}
		if err := a.SendText(tgID, reply); err != nil {
			a.logger.Error("notify job result", zap.String("job", name), zap.Error(err))
		}
	}()
	return nil
}

func (a *App) showStatus(ctx context.Context, tgID int64) error {
	st, err := a.board.Status(ctx)
	if err != nil {
		return a.SendText(tgID, "❌ status: "+err.Error())
	}
	last := st.LastUpdated
	if last == "" {
		last = "never"
	}
	text := "Last updated: " + last
	if st.ActiveCategory != "" && st.ActiveCategory != checkpoint.NotStarted {
		text += fmt.Sprintf("\nupdate-scores in progress: %s, %d scores collected", st.ActiveCategory, st.CollectedScores)
	} else {
		text += "\nupdate-scores: idle"
	}
	return a.SendText(tgID, text)
}

func (a *App) showTop(ctx context.Context, tgID int64, args []string) error {
	if len(args) == 0 {
		return a.SendText(tgID, "Usage: /top <mods> [n], e.g. /top HDDT 5")
	}
	c, err := mods.Canonicalize(args[0])
	if err != nil {
		return a.SendText(tgID, err.Error())
	}
	n := defaultTop
	if len(args) > 1 {
		if n, err = strconv.Atoi(args[1]); err != nil || n <= 0 {
			return a.SendText(tgID, "n must be a positive number")
		}
	}

	scores, err := a.board.Top(ctx, c, n)
	switch {
	case apperr.IsKind(err, apperr.KindSheetEmpty):
		return a.SendText(tgID, "No scores in "+string(c)+" yet.")
	case err != nil:
		return a.SendText(tgID, err.Error())
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🏆 %s\n", c)
	for i, s := range scores {
		fmt.Fprintf(&b, "%d. %s  %.2fpp  %s +%s (%.2f%%)\n", i+1, s.Username, s.PP, s.Beatmap, s.Mods, s.Accuracy)
	}
	return a.SendText(tgID, strings.TrimRight(b.String(), "\n"))
}

// ---------- Admin panel ----------

func (a *App) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	tgID := q.From.ID
	data := q.Data

	// ack
	cb := tgbotapi.NewCallback(q.ID, "")
	_, _ = a.client.Request(cb)

	if !strings.HasPrefix(data, "a:") {
		return nil
	}
	if !a.isAdmin(tgID) {
		return a.SendText(tgID, "Access denied.")
	}
	switch {
	case data == "a:status":
		return a.showStatus(ctx, tgID)
	case strings.HasPrefix(data, "a:run:"):
		return a.startJob(ctx, tgID, strings.TrimPrefix(data, "a:run:"), nil)
	}
	return nil
}

func (a *App) showAdminMenu(tgID int64) error {
	msg := tgbotapi.NewMessage(tgID, "🛠 *Admin panel*")
	msg.ParseMode = "Markdown"
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, name := range jobs.Names() {
		if name == jobs.JobWipeScores {
			continue // needs explicit targets or a deliberate /run
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("▶️ "+name, "a:run:"+name),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("📊 Status", "a:status"),
	))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	_, err := a.client.Send(msg)
	return err
}
