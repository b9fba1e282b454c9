package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/subosito/gotenv"

	"github.com/Spok95/bpark/internal/config"
	"github.com/Spok95/bpark/internal/domain/activity"
	"github.com/Spok95/bpark/internal/domain/orders"
	"github.com/Spok95/bpark/internal/domain/sessions"
	"github.com/Spok95/bpark/internal/domain/subscribers"
	"github.com/Spok95/bpark/internal/infra/db"
	httpx "github.com/Spok95/bpark/internal/infra/http"
	"github.com/Spok95/bpark/internal/infra/logger"
	"github.com/Spok95/bpark/internal/notify"
	"github.com/Spok95/bpark/internal/scheduler"
	"github.com/Spok95/bpark/internal/server"
)

func runMigrations(dsn string, log *slog.Logger) error {
	sqlDB, err := goose.OpenDBWithDriver("postgres", dsn)
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()
	return goose.Up(sqlDB, "migrations")
}

func main() {
	_ = gotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/example.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.App.Env)

	if err := runMigrations(cfg.Postgres.DSN, log); err != nil {
		log.Error("migrations failed", "err", err)
		return
	}
	log.Info("migrations applied")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Error("db connect failed", "err", err)
		return
	}
	defer pool.Close()
	log.Info("db connected")

	loc, err := time.LoadLocation(cfg.App.Timezone)
	if err != nil {
		log.Error("bad timezone", "err", err, "tz", cfg.App.Timezone)
		return
	}

	subsRepo := subscribers.NewRepo(pool)
	sessRepo := sessions.NewRepo(pool)
	orderRepo := orders.NewRepo(pool)
	actRepo := activity.NewRepo(pool)

	var notifier notify.Notifier = notify.NewLog(log)
	if cfg.Telegram.Token != "" {
		api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			log.Error("telegram init failed", "err", err)
			return
		}
		notifier = notify.NewTelegram(notifier, api, cfg.Telegram.AdminChatID, log)
		log.Info("staff alerts enabled", "chat", cfg.Telegram.AdminChatID)
	}

	httpSrv := httpx.New(cfg.HTTP.Addr, cfg.Metrics.Enabled)
	go func() {
		if err := httpSrv.Start(); err != nil && err.Error() != "http: Server closed" {
			log.Error("http server error", "err", err)
		}
	}()
	log.Info("HTTP server started", "addr", cfg.HTTP.Addr)

	sched := scheduler.New(log, orderRepo, subsRepo, notifier)
	go sched.Run(ctx)

	dispatcher := server.NewDispatcher(log, subsRepo, sessRepo, orderRepo, actRepo,
		notifier, loc, cfg.Reports.ExportDir)
	srv := server.New(cfg.Server.Addr, log, dispatcher)
	if err := srv.Run(ctx); err != nil {
		log.Error("tcp server error", "err", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	log.Info("graceful shutdown complete")
}
