package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hustariz/rascarobingo/internal/api"
	"github.com/hustariz/rascarobingo/internal/config"
	"github.com/hustariz/rascarobingo/internal/database"
	"github.com/hustariz/rascarobingo/internal/lifecycle"
	"github.com/hustariz/rascarobingo/internal/lock"
	"github.com/hustariz/rascarobingo/internal/logger"
	"github.com/hustariz/rascarobingo/internal/scheduler"
	"github.com/hustariz/rascarobingo/internal/store"
	"go.uber.org/zap"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, atom, err := logger.NewLoggerWithLevel(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	config.WatchConfig(func(next config.Config) {
		if err := logger.SetLevel(atom, next.Logger.Level); err != nil {
			log.Warn("Ignoring invalid log level from config", zap.String("level", next.Logger.Level), zap.Error(err))
			return
		}
		log.Info("Configuration reloaded", zap.String("log_level", next.Logger.Level))
	}, func(err error) {
		log.Warn("Failed to reload configuration", zap.Error(err))
	})

	if cfg.Auth.JWTSecret == "" {
		log.Fatal("auth.jwt_secret must be set")
	}
	loc, err := cfg.Scheduler.Location()
	if err != nil {
		log.Fatal("Invalid scheduler timezone", zap.Error(err))
	}

	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.", zap.String("type", cfg.Database.Type))

	locker, err := lock.New(cfg.Lock, log)
	if err != nil {
		log.Fatal("Failed to initialize user lock", zap.Error(err))
	}
	defer locker.Close()

	st := store.New(db)
	coord := lifecycle.NewCoordinator(log, cfg.Risk, st, locker, loc)

	reset := scheduler.NewDailyReset(log, st, locker, cfg.Scheduler.Spec, loc)
	if cfg.Scheduler.Enabled {
		if err := reset.Start(); err != nil {
			log.Fatal("Failed to start daily reset", zap.Error(err))
		}
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.NewRouter(log, coord, []byte(cfg.Auth.JWTSecret), cfg.Server.Mode),
	}
	go func() {
		log.Info("Starting API server", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("API server failed", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	log.Info("Shutdown signal received, gracefully shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("API server shutdown failed", zap.Error(err))
	}
	if cfg.Scheduler.Enabled {
		reset.Stop(shutdownCtx)
	}

	log.Info("Server has been shut down.")
}
