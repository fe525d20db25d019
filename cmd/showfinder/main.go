package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"

	"showfinder/bot"
	"showfinder/config"
	"showfinder/feed"
	"showfinder/instagram"
	"showfinder/ocr"
	"showfinder/parser"
	"showfinder/scheduler"
	"showfinder/scraper"
	"showfinder/shows"
	"showfinder/storage"
	"showfinder/web"
)

// A full scan walks every profile with polite pauses in between, so it can
// run for a while before the context gives up on it.
const scanTimeout = 15 * time.Minute

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(config.GetConfigPath())
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	setupLogging(cfg.LogLevel)
	slog.Info("config loaded", "scan_time", cfg.ScanTime, "timezone", cfg.Timezone, "http_addr", cfg.HTTPAddr)

	db, err := storage.NewDB(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("storage ready", "db_path", cfg.DBPath)

	// Settings saved from chat commands override the config file
	startCtx := context.Background()
	if saved, err := db.GetSetting(startCtx, "chat_id"); err == nil {
		if id, perr := strconv.ParseInt(saved, 10, 64); perr == nil {
			cfg.ChatID = id
		}
	}
	if saved, err := db.GetSetting(startCtx, "scan_time"); err == nil {
		cfg.ScanTime = saved
	}

	igOpts := []instagram.Option{
		instagram.WithMaxPosts(cfg.MaxPostsPerProfile),
		instagram.WithDaysBack(cfg.DaysBack),
		instagram.WithTimeout(time.Duration(cfg.FetchTimeoutSecs) * time.Second),
	}
	if cfg.Instagram.SessionID != "" {
		igOpts = append(igOpts, instagram.WithSessionID(cfg.Instagram.SessionID))
	}
	ig := instagram.NewClient(igOpts...)
	slog.Info("instagram client ready", "authenticated", ig.IsAuthenticated())

	engine := parser.New()
	processor := shows.NewProcessor(engine, newRecovery(cfg), db, shows.WithWorkers(cfg.ScanWorkers))
	runner := shows.NewRunner(ig, processor, db)

	tg, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		slog.Error("failed to create telegram bot", "error", err)
		os.Exit(1)
	}
	slog.Info("telegram bot authorized", "username", tg.Self.UserName)

	sender := &telegramSender{api: tg}
	app := &App{cfg: cfg, db: db, runner: runner, sender: sender}

	sched, err := scheduler.NewScheduler(cfg.Timezone)
	if err != nil {
		slog.Error("failed to create scheduler", "error", err)
		os.Exit(1)
	}
	schedule := &scheduleAdapter{sched: sched, job: app.runScan}
	if err := sched.ScheduleDaily(cfg.ScanTime, app.runScan); err != nil {
		slog.Error("failed to schedule scan", "error", err)
		os.Exit(1)
	}
	sched.Start()
	defer sched.Stop()
	slog.Info("daily scan scheduled", "scan_time", cfg.ScanTime)

	srv := web.NewServer(cfg.HTTPAddr, db, feed.NewBuilder(cfg.CalendarName))
	go func() {
		slog.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := srv.Serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server stopped", "error", err)
		}
	}()

	handler := bot.NewCommandHandler(engine, bot.Deps{
		Sender:   sender,
		Profiles: &profileStoreAdapter{db: db},
		Shows:    db,
		Settings: &settingsAdapter{db: db},
		Schedule: schedule,
		Scans:    app,
		History:  &historyAdapter{db: db},
		Pages:    scraper.NewScraper(scraper.WithTimeout(time.Duration(cfg.FetchTimeoutSecs) * time.Second)),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = 30
	updates := tg.GetUpdatesChan(updateCfg)

	slog.Info("bot running", "chat_id", cfg.ChatID)
	for {
		select {
		case <-ctx.Done():
			tg.StopReceivingUpdates()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Warn("http server shutdown", "error", err)
			}
			done()
			slog.Info("shutdown complete")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			msg := update.Message
			if err := handler.Dispatch(ctx, msg.Chat.ID, msg.Command(), msg.CommandArguments()); err != nil {
				slog.Error("command failed", "command", msg.Command(), "error", err)
			}
		}
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}

// newRecovery picks the OCR engine: the hosted service when an API key is
// configured, a local tesseract install when one can be found, otherwise
// image text recovery stays off.
func newRecovery(cfg *config.Config) shows.TextRecovery {
	if cfg.OCR.APIKey != "" {
		var opts []ocr.WebOption
		if cfg.OCR.Endpoint != "" {
			opts = append(opts, ocr.WithEndpoint(cfg.OCR.Endpoint))
		}
		slog.Info("image text recovery through hosted ocr")
		return ocr.NewWebClient(cfg.OCR.APIKey, opts...)
	}
	if t := ocr.NewTesseract(cfg.OCR.TesseractPath); t.Available() {
		slog.Info("image text recovery through local tesseract")
		return t
	}
	slog.Warn("no ocr engine available, image text recovery disabled")
	return nil
}

// App ties the scan pipeline to the chat so scheduled and manual scans
// deliver their findings the same way.
type App struct {
	cfg    *config.Config
	db     *storage.DB
	runner *shows.Runner
	sender bot.MessageSender
}

// TriggerScan starts a scan in the background so the command loop keeps
// handling messages while profiles are walked.
func (a *App) TriggerScan(ctx context.Context) error {
	go a.runScan()
	return nil
}

func (a *App) runScan() {
	ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
	defer cancel()

	found, err := a.runner.Run(ctx)
	if err != nil {
		slog.Error("scan failed", "error", err)
		return
	}

	chatID := a.digestChatID(ctx)
	if chatID == 0 {
		slog.Warn("no chat registered, digest not sent")
		return
	}

	if len(found) == 0 {
		if _, err := a.sender.SendMessage(ctx, chatID, "Scan finished. Nothing new.", false); err != nil {
			slog.Error("failed to send digest", "error", err)
		}
		return
	}
	if _, err := a.sender.SendMessage(ctx, chatID, bot.FormatShowsMessage(found), true); err != nil {
		slog.Error("failed to send digest", "error", err)
	}
}

// digestChatID prefers the chat saved by /start over the configured one.
func (a *App) digestChatID(ctx context.Context) int64 {
	if saved, err := a.db.GetSetting(ctx, "chat_id"); err == nil {
		if id, perr := strconv.ParseInt(saved, 10, 64); perr == nil {
			return id
		}
	}
	return a.cfg.ChatID
}

// telegramSender sends chat messages through the Telegram Bot API.
type telegramSender struct {
	api *tgbotapi.BotAPI
}

func (s *telegramSender) SendMessage(ctx context.Context, chatID int64, text string, asHTML bool) (int64, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	if asHTML {
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
	}
	sent, err := s.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("send message: %w", err)
	}
	return int64(sent.MessageID), nil
}

// --- Adapters bridging storage and scheduler to the bot interfaces ---

// mapStorageErr translates storage sentinels into the ones the bot matches.
func mapStorageErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrProfileExists):
		return bot.ErrProfileExists
	case errors.Is(err, storage.ErrNotFound):
		return bot.ErrNotFound
	default:
		return err
	}
}

type profileStoreAdapter struct {
	db *storage.DB
}

func (a *profileStoreAdapter) AddProfile(ctx context.Context, p shows.Profile) error {
	return mapStorageErr(a.db.AddProfile(ctx, p))
}

func (a *profileStoreAdapter) RemoveProfile(ctx context.Context, username string) error {
	return mapStorageErr(a.db.RemoveProfile(ctx, username))
}

func (a *profileStoreAdapter) UpdateNickname(ctx context.Context, username, nickname string) error {
	return mapStorageErr(a.db.UpdateNickname(ctx, username, nickname))
}

func (a *profileStoreAdapter) ListProfiles(ctx context.Context) ([]shows.Profile, error) {
	return a.db.ListProfiles(ctx)
}

type settingsAdapter struct {
	db *storage.DB
}

func (a *settingsAdapter) GetSetting(ctx context.Context, key string) (string, error) {
	v, err := a.db.GetSetting(ctx, key)
	return v, mapStorageErr(err)
}

func (a *settingsAdapter) SetSetting(ctx context.Context, key, value string) error {
	return a.db.SetSetting(ctx, key, value)
}

type historyAdapter struct {
	db *storage.DB
}

func (a *historyAdapter) LastScan(ctx context.Context) (*shows.Scan, error) {
	scan, err := a.db.LastScan(ctx)
	return scan, mapStorageErr(err)
}

type scheduleAdapter struct {
	sched *scheduler.Scheduler
	job   func()
}

func (a *scheduleAdapter) Reschedule(timeStr string) error {
	return a.sched.ScheduleDaily(timeStr, a.job)
}

func (a *scheduleAdapter) NextRun() (time.Time, bool) {
	return a.sched.NextRun()
}
