package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"tg_assistant_bot/internal/api"
	"tg_assistant_bot/internal/config"
	"tg_assistant_bot/internal/feature/user"
	"tg_assistant_bot/internal/health"
	"tg_assistant_bot/internal/logging"
	"tg_assistant_bot/internal/scheduler"
	"tg_assistant_bot/internal/store"
	"tg_assistant_bot/internal/telegram"
)

const (
	mongoConnectTimeout    = 10 * time.Second
	mongoIndexTimeout      = 5 * time.Second
	mongoDisconnectTimeout = 5 * time.Second
	healthShutdownTimeout  = 5 * time.Second
)

var errPollingStopped = errors.New("telegram polling stopped before shutdown signal")

func main() {
	configOnly := flag.Bool("config-only", false, "load and print configuration then exit")
	flag.Parse()

	defer func() {
		if rec := recover(); rec != nil {
			logging.Error("fatal error", logging.Fields{"event": "panic", "error": fmt.Sprint(rec)})
			fmt.Fprintf(os.Stderr, "fatal error: %v\n", rec)
			os.Exit(1)
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		logging.Error("configuration error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Setup(cfg)
	if err != nil {
		logging.Error("logger setup error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "logger setup error: %v\n", err)
		os.Exit(1)
	}

	if *configOnly {
		logging.Info("configuration check", logging.Fields{"event": "config_only"})
		fmt.Println("configuration check: ok")
		fmt.Println(config.FormatRedacted(cfg))
		return
	}

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("bot stopped with error")
		fmt.Fprintf(os.Stderr, "bot error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *logrus.Entry) error {
	logger.WithFields(logging.Fields{
		"event":     "startup",
		"app_env":   cfg.AppEnv,
		"log_level": cfg.LogLevel,
		"registry":  cfg.RegistryEnabled(),
	}).Info("Starting Telegram Bot...")

	var (
		users   telegram.UserCounter
		checker health.Pinger
		opts    []telegram.Option
	)

	if cfg.RegistryEnabled() {
		mongoManager, err := connectRegistry(cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), mongoDisconnectTimeout)
			defer cancel()
			if err := mongoManager.Close(shutdownCtx); err != nil {
				logger.WithError(err).Error("mongo disconnect error")
				return
			}
			logger.WithField("event", "mongo_disconnect").Info("mongo client disconnected")
		}()

		stats := store.NewStatsProvider(mongoManager.Users())
		users = stats
		checker = mongoManager
		opts = append(opts, telegram.WithUserRegistrar(user.NewRegistrar(mongoManager.Users(), logger)))

		jobs, err := scheduler.New(logger)
		if err != nil {
			return err
		}
		if err := jobs.AddJob("registry_stats", cfg.StatsSchedule, scheduler.RegistryStatsJob(stats, logger)); err != nil {
			return err
		}
		jobs.Start()
		defer func() {
			if err := jobs.Stop(); err != nil {
				logger.WithError(err).Warn("scheduler shutdown error")
			}
		}()
	}

	reporter := telegram.NewErrorReporter(logger)
	handlers := telegram.NewHandlers(telegram.HandlerDeps{
		Lookup: api.NewService(api.EndpointsFromConfig(cfg), logger),
		Errors: reporter,
		Logger: logger,
		Users:  users,
	})

	tgClient, err := telegram.NewClient(cfg, logger, handlers, opts...)
	if err != nil {
		return fmt.Errorf("telegram client setup: %w", err)
	}

	logger.WithField("event", "telegram_ready").Info("telegram client initialized")

	healthServer := health.NewServer(cfg.HTTPPort, logger, health.WithCheck("mongo", checker))

	signalCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(signalCtx)

	g.Go(func() error {
		tgClient.Start(ctx)
		if signalCtx.Err() == nil && ctx.Err() == nil {
			logger.WithField("event", "telegram_stopped_early").Warn("telegram client stopped before shutdown signal")
			return errPollingStopped
		}
		return nil
	})

	g.Go(healthServer.ListenAndServe)

	g.Go(func() error {
		<-ctx.Done()
		if signalCtx.Err() != nil {
			logger.WithField("event", "shutdown_signal").Info("received termination signal, shutting down")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), healthShutdownTimeout)
		defer cancel()
		if err := healthServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("health server shutdown error")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.WithField("event", "shutdown_complete").Info("shutdown complete")
	return nil
}

// connectRegistry opens the Mongo-backed user registry and ensures its indexes.
func connectRegistry(cfg config.Config, logger *logrus.Entry) (*store.Manager, error) {
	connectCtx, cancel := context.WithTimeout(context.Background(), mongoConnectTimeout)
	mongoManager, err := store.NewManager(connectCtx, cfg)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("mongo connection: %w", err)
	}

	logger.WithFields(logging.Fields{
		"event":    "mongo_connect",
		"mongo_db": cfg.MongoDB,
	}).Info("connected to mongo")

	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), mongoIndexTimeout)
	defer cancelIndexes()
	if err := mongoManager.EnsureBaseIndexes(indexCtx); err != nil {
		closeCtx, cancelClose := context.WithTimeout(context.Background(), mongoDisconnectTimeout)
		_ = mongoManager.Close(closeCtx)
		cancelClose()
		return nil, fmt.Errorf("mongo index setup: %w", err)
	}

	logger.WithField("event", "mongo_indexes").Info("ensured user registry indexes")

	return mongoManager, nil
}
