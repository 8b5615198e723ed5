package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"daily_video_bot/internal/app"
	"daily_video_bot/internal/domain/catalog"
	"daily_video_bot/internal/infra/config"
	idb "daily_video_bot/internal/infra/database"
	"daily_video_bot/internal/infra/httpapi"
	"daily_video_bot/internal/infra/logger"
	"daily_video_bot/internal/infra/metrics"
	"daily_video_bot/internal/infra/scheduler"
	"daily_video_bot/internal/infra/telegram"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("FATAL: Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	mainLogger := logger.Component("main")

	mainLogger.WithFields(logrus.Fields{
		"environment":     cfg.Environment,
		"admin_id":        cfg.AdminTelegramID,
		"send_interval":   cfg.SendInterval.String(),
		"recovery_delay":  cfg.RecoveryDelay.String(),
		"wrap_around":     cfg.WrapAround,
		"first_immediate": cfg.SendFirstImmediately,
	}).Info("Configuration loaded.")

	if err := run(cfg, mainLogger); err != nil {
		mainLogger.WithError(err).Fatal("Application stopped with an error")
	}
	mainLogger.Info("Application shut down gracefully.")
}

// run owns every resource opened after configuration, so its defers always execute.
func run(cfg *config.AppConfig, mainLogger *logrus.Entry) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize subscriber store
	repo, err := idb.Open(ctx, cfg.DatabaseURL, cfg.RedisKeyPrefix)
	if err != nil {
		return fmt.Errorf("could not open subscriber store: %w", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			mainLogger.WithError(err).Warn("Failed to close subscriber store")
		}
	}()
	mainLogger.Info("Subscriber store opened.")

	videos := catalog.New(cfg.Catalog)
	if videos.Empty() {
		mainLogger.Warn("Video catalog is empty: subscribers can register but nothing will be sent")
	} else {
		mainLogger.WithField("videos", videos.Len()).Info("Video catalog loaded.")
	}

	// Initialize Telegram Bot
	pref := telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) { // Global error handler
			entry := logger.Component("telebot").WithError(err)
			if c != nil && c.Sender() != nil && c.Chat() != nil {
				entry = entry.WithFields(logrus.Fields{
					"text":      c.Text(),
					"sender_id": c.Sender().ID,
					"chat_id":   c.Chat().ID,
				})
			}
			entry.Error("Telegram handler error")
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		return fmt.Errorf("could not create Telegram bot: %w", err)
	}

	collector := metrics.New(nil, "videobot")
	timers := scheduler.NewTimerRegistry(logger.Component("scheduler"))
	delivery := app.NewDeliveryService(
		repo,
		videos,
		telegram.NewTelebotAdapter(bot, cfg.SendRatePerSec),
		timers,
		app.DeliveryOptions{
			Interval:             cfg.SendInterval,
			SendFirstImmediately: cfg.SendFirstImmediately,
			RecoveryDelay:        cfg.RecoveryDelay,
			WrapAround:           cfg.WrapAround,
			SendTimeout:          cfg.SendTimeout,
		},
		collector,
		logger.Component("delivery"),
	)
	adminService := app.NewAdminService(repo, videos, timers, cfg.AdminTelegramID)

	// Restore timers before accepting commands so a /start cannot race recovery.
	restored, err := delivery.Recover(ctx)
	if err != nil {
		return fmt.Errorf("could not restore subscriber timers: %w", err)
	}
	mainLogger.WithField("restored", restored).Info("Subscriber timers restored.")
	timers.Start()

	// Register Handlers
	telegram.RegisterBotCommands(ctx, bot, delivery, logger.Component("commands"))
	telegram.RegisterAdminHandlers(ctx, bot, adminService, logger.Component("admin"))
	mainLogger.Info("Command handlers registered.")

	var httpServer *httpapi.Server
	if cfg.HTTPAddr != "" {
		router := httpapi.NewRouter(delivery, nil, logger.Component("http"))
		httpServer = httpapi.NewServer(cfg.HTTPAddr, router, logger.Component("http"))
		httpServer.Start()
	}

	go bot.Start()
	mainLogger.Info("Bot started.")
	notifySystemd(mainLogger, daemon.SdNotifyReady)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	mainLogger.WithField("signal", sig.String()).Info("Shutting down application...")
	notifySystemd(mainLogger, daemon.SdNotifyStopping)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	bot.Stop()
	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			mainLogger.WithError(err).Warn("Admin HTTP server forced to shutdown")
		}
	}
	// In-flight sends are aborted before the registry drains; the store closes last.
	delivery.Close()
	timers.Stop(shutdownCtx)
	return nil
}

func notifySystemd(log *logrus.Entry, state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		log.WithError(err).Warn("sd_notify failed")
		return
	}
	if sent {
		log.WithField("state", state).Debug("Notified systemd")
	}
}
