package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Dianasmith6525/amerilendloan-sub000/internal/app"
	"github.com/Dianasmith6525/amerilendloan-sub000/internal/config"
	"github.com/Dianasmith6525/amerilendloan-sub000/internal/scheduler"
	"github.com/Dianasmith6525/amerilendloan-sub000/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.New("info", "json").Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	log.Info("starting crypto payment scheduler")

	if cfg.Database.Driver == "memory" {
		log.Warn("scheduler is running on in-memory storage and will not see payments created by the server")
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	application, err := app.Build(startCtx, cfg, log)
	cancelStart()
	if err != nil {
		log.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	jobs := scheduler.NewJobs(application.Payments, log, time.Minute)
	s := scheduler.NewScheduler(jobs, log, cfg.Scheduler.CryptoPollSchedule, cfg.SchedulerLocation())
	if err := s.Start(); err != nil {
		log.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	log.Info("scheduler started", "jobs", s.Entries())

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down scheduler")
	<-s.Stop().Done()
	log.Info("scheduler stopped")
}
