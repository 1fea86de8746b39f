package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Dianasmith6525/amerilendloan-sub000/internal/app"
	"github.com/Dianasmith6525/amerilendloan-sub000/internal/config"
	"github.com/Dianasmith6525/amerilendloan-sub000/internal/handler"
	"github.com/Dianasmith6525/amerilendloan-sub000/pkg/logger"
)

func main() {
	// Load .env for local runs; real environments set variables directly
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.New("info", "json").Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	application, err := app.Build(startCtx, cfg, log)
	cancelStart()
	if err != nil {
		log.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	// Setup routes
	router := handler.NewRouter(handler.Handlers{
		Loans:    handler.NewLoanHandler(application.Loans),
		Payments: handler.NewPaymentHandler(application.Payments),
		Fees:     handler.NewFeeHandler(application.Fees),
		Health:   handler.NewHealthHandler(application.DB, application.Redis, cfg.GetHealthTimeout()),
	}, handler.RouterConfig{
		JWTSecret: cfg.Auth.JWTSecret,
		JWTIssuer: cfg.Auth.JWTIssuer,
		Logger:    log,
	})

	if cfg.Auth.JWTSecret == "" {
		log.Warn("JWT_SECRET not set; trusting X-User-ID and X-User-Role headers")
	}

	// Start server
	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		log.Info("server starting", "addr", server.Addr, "env", cfg.Server.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	log.Info("server exited")
}
