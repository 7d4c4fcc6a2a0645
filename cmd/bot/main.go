package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"forum_bot/internal/bot"
	"forum_bot/internal/config"
	"forum_bot/internal/forum"
	"forum_bot/internal/health"
	"forum_bot/internal/scheduler"
	"forum_bot/internal/state"
	"forum_bot/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	for _, p := range []string{cfg.DatabasePath, cfg.StateFilePath} {
		if dir := filepath.Dir(p); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				log.Error("create data directory", "path", dir, "error", err)
				os.Exit(1)
			}
		}
	}

	ledger := state.New(cfg.StateFilePath, cfg.PostsPerAuthor, cfg.TrackedAuthors, log)
	ledger.Load()

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	b, err := bot.New(cfg.TelegramBotToken, ledger, store, cfg, log)
	if err != nil {
		log.Error("create bot", "error", err)
		os.Exit(1)
	}

	client := forum.NewClient(http.DefaultClient, cfg.ForumBaseURL, cfg.PostsPerAuthor)
	sched := scheduler.New(ledger, store, client, b, cfg, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("starting bot",
		"poll_interval", cfg.PollInterval,
		"channels", len(cfg.ChannelIDs),
		"authors", len(ledger.Authors()))

	if cfg.HealthPort != "" {
		go health.New(cfg.HealthPort, log).Run(ctx)
	}

	go sched.Run(ctx)

	b.Run(ctx)

	// Flush whatever the last poll run recorded before exiting.
	if err := ledger.Save(); err != nil {
		log.Error("save state on shutdown", "error", err)
	}

	log.Info("bot stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
