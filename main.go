package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/giygas/interactions-api/config"
	"github.com/giygas/interactions-api/handlers"
	"github.com/giygas/interactions-api/health"
	"github.com/giygas/interactions-api/interactions"
	"github.com/giygas/interactions-api/logging"
	"github.com/giygas/interactions-api/medscape"
	"github.com/giygas/interactions-api/profile"
	"github.com/giygas/interactions-api/scheduler"
	"github.com/giygas/interactions-api/server"
	"github.com/giygas/interactions-api/storage"
	"github.com/giygas/interactions-api/validation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	logging.InitLogger(logging.Options{
		Dir:            cfg.LogDir,
		Level:          logging.ParseLevel(cfg.LogLevel),
		RetentionWeeks: cfg.LogRetentionWeeks,
		MaxFileSize:    cfg.MaxLogFileSize,
	})
	defer func() {
		if err := logging.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to close log file: %v\n", err)
		}
	}()

	logging.Info("Configuration loaded",
		"env", cfg.Env,
		"storage", cfg.StorageDriver,
		"refresh", fmt.Sprintf("%s %s", cfg.RefreshWeekday, cfg.RefreshAt))

	store, err := storage.Open(cfg.StorageDriver, cfg.DatabasePath)
	if err != nil {
		logging.Error("Failed to open store", "driver", cfg.StorageDriver, "error", err)
		os.Exit(1)
	}

	client := medscape.NewClient(medscape.Options{
		LookupBaseURL:      cfg.LookupBaseURL,
		InteractionBaseURL: cfg.InteractionBaseURL,
		Timeout:            cfg.ExternalTimeout,
		Rate:               cfg.OutboundRate,
		Burst:              cfg.OutboundBurst,
	})

	profiles := profile.NewManager(store)
	checker := interactions.NewChecker(
		interactions.NewResolver(client, cfg.ExternalTimeout, cfg.ResolveConcurrency),
		interactions.NewRetriever(client, cfg.ExternalTimeout),
		interactions.NewCache(store, cfg.ComputeTimeout),
		profiles,
	)

	sched := scheduler.NewScheduler(checker, scheduler.Options{
		Weekday:    cfg.RefreshWeekday,
		At:         cfg.RefreshAt,
		StaleAfter: cfg.RefreshStaleAfter,
	})
	if err := sched.Start(); err != nil {
		logging.Error("Failed to start scheduler", "error", err)
		_ = store.Close()
		os.Exit(1)
	}

	healthChecker := health.NewHealthChecker(store, sched, cfg.RefreshStaleAfter)
	httpHandler := handlers.NewHTTPHandler(checker, profiles, sched, healthChecker, validation.NewInputValidator())
	srv := server.NewServer(cfg, httpHandler)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-quit:
		logging.Info("Received shutdown signal", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			logging.Error("Server failed", "error", err)
			exitCode = 1
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := srv.Shutdown(ctx); err != nil {
		exitCode = 1
	}
	cancel()

	sched.Stop()

	if err := store.Close(); err != nil {
		logging.Error("Failed to close store", "error", err)
		exitCode = 1
	}

	if exitCode != 0 {
		_ = logging.Close()
		os.Exit(exitCode)
	}
}
