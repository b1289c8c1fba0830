// Package main contains the entrypoint for the concisely summarizer bot.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/concisely/internal/bot"
	"github.com/edgard/concisely/internal/bot/handlers"
	"github.com/edgard/concisely/internal/bot/tasks"
	"github.com/edgard/concisely/internal/config"
	"github.com/edgard/concisely/internal/database"
	"github.com/edgard/concisely/internal/gemini"
	"github.com/edgard/concisely/internal/logger"
	"github.com/edgard/concisely/internal/media"
	"github.com/edgard/concisely/internal/openrouter"
	"github.com/edgard/concisely/internal/summary"
	"github.com/edgard/concisely/internal/telegram"
	"github.com/edgard/concisely/internal/widelog"

	_ "modernc.org/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes and starts all application components, handles graceful
// shutdown, and returns an exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	orClient, err := openrouter.NewClient(cfg.OpenRouter, log)
	if err != nil {
		log.Error("Failed to initialize OpenRouter client", "error", err)
		return 1
	}

	gemClient, err := gemini.NewClient(ctx, cfg.Gemini, log)
	if err != nil {
		log.Error("Failed to initialize Gemini client", "error", err)
		return 1
	}

	wideLogDir := ""
	if cfg.WideLog.Enabled {
		wideLogDir = cfg.WideLog.Dir
	}
	wideLog := widelog.NewWriter(wideLogDir, log)

	// The message handler depends on the gateway, which wraps the bot
	// instance, which in turn needs a default handler at construction. The
	// indirection below breaks that cycle: the real handler is assigned
	// before polling starts.
	var handleMessage tgbot.HandlerFunc

	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithDefaultHandler(func(hctx context.Context, b *tgbot.Bot, update *models.Update) {
			if handleMessage != nil {
				handleMessage(hctx, b, update)
			}
		}),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}

	gateway := telegram.NewGateway(tg, cfg.Telegram.Token, cfg.Summary, log)
	describer := media.NewDescriber(log, gemClient, store, gateway)
	engine := summary.NewEngine(log, store, orClient, gateway, cfg.IntervalFor)

	handleMessage = handlers.NewMessageHandler(handlers.HandlerDeps{
		Logger:    log,
		Config:    cfg,
		Store:     store,
		Describer: describer,
		Engine:    engine,
		WideLog:   wideLog,
	})

	me, err := tg.GetMe(ctx)
	if err != nil {
		log.Error("Failed to get bot info", "error", err)
		return 1
	}
	log.Info("Retrieved bot info", "bot_id", me.ID, "bot_username", me.Username)
	log.Info("Monitoring chats", "chat_ids", cfg.MonitoredChats())

	tDeps := tasks.TaskDeps{
		Logger: log,
		Store:  store,
		Config: cfg,
	}
	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	app := bot.NewBot(log, cfg, tg, sched)

	log.Info("Starting bot...")
	runErr := app.Run(ctx)
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}
