// Package app wires configuration into the stores, adapters and services shared by the
// server and scheduler binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/Dianasmith6525/amerilendloan-sub000/internal/config"
	"github.com/Dianasmith6525/amerilendloan-sub000/internal/lock"
	"github.com/Dianasmith6525/amerilendloan-sub000/internal/notify"
	"github.com/Dianasmith6525/amerilendloan-sub000/internal/payment"
	"github.com/Dianasmith6525/amerilendloan-sub000/internal/repository"
	"github.com/Dianasmith6525/amerilendloan-sub000/internal/service"
)

// App holds the long-lived dependencies. DB and Redis are nil when the memory store or
// the in-process locker is configured.
type App struct {
	DB    *sqlx.DB
	Redis *redis.Client

	Fees     *service.FeeConfigService
	Loans    *service.LoanService
	Payments *service.PaymentService

	closers []func() error
	logger  *slog.Logger
}

// Build connects to the configured backends and bootstraps the fee configuration.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{logger: logger}

	store, err := a.initStore(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	locker := a.initLocker(cfg)
	notifier := a.initNotifier(cfg)

	addresses := cfg.CryptoAddresses()
	var observer payment.BlockchainObserver = payment.NewStaticObserver()
	if cfg.Payment.ObserverURL != "" {
		observer = payment.NewHTTPObserver(
			cfg.Payment.ObserverURL,
			cfg.Payment.ObserverAPIKey,
			cfg.Payment.ObserverMinConfirmations,
			cfg.Payment.ObserverTimeout,
		)
	} else if len(addresses) > 0 {
		// nothing could ever settle an intent, so none are handed out
		logger.Warn("BLOCKCHAIN_OBSERVER_URL not set; crypto payments are disabled")
		addresses = nil
	}

	if cfg.Payment.CardGateway != "sandbox" || cfg.Payment.BankingRail != "sandbox" {
		a.Close()
		return nil, fmt.Errorf("unsupported payment providers card=%q rail=%q", cfg.Payment.CardGateway, cfg.Payment.BankingRail)
	}
	card := payment.NewCardAdapter(payment.NewSandboxGateway())
	crypto := payment.NewCryptoAdapter(observer, cfg.CryptoRates(), addresses)
	disburser := service.NewDisbursementCoordinator(payment.NewSandboxRail(), logger)

	a.Fees = service.NewFeeConfigService(store, logger)
	a.Loans = service.NewLoanService(store, locker, disburser, notifier, logger)
	a.Payments = service.NewPaymentService(store, locker, card, crypto, notifier, logger)

	if _, err := a.Fees.Bootstrap(ctx, cfg.DefaultFeeConfiguration()); err != nil {
		a.Close()
		return nil, fmt.Errorf("bootstrap fee configuration: %w", err)
	}

	return a, nil
}

func (a *App) initStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	if cfg.Database.Driver == "memory" {
		a.logger.Warn("using in-memory storage; data is lost on restart")
		return repository.NewMemoryStore(), nil
	}

	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	a.DB = db
	a.closers = append(a.closers, db.Close)

	if cfg.Database.AutoMigrate {
		if err := repository.Migrate(ctx, db); err != nil {
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		a.logger.Info("database schema is up to date")
	}

	return repository.NewPostgresStore(db), nil
}

func (a *App) initLocker(cfg *config.Config) lock.Locker {
	if cfg.Redis.Addr == "" {
		a.logger.Warn("REDIS_ADDR not set; loan locks only protect this process")
		return lock.NewKeyedMutex()
	}

	a.Redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	a.closers = append(a.closers, a.Redis.Close)
	return lock.NewRedisLocker(a.Redis, "", cfg.Redis.LockTTL, cfg.Redis.LockWait)
}

func (a *App) initNotifier(cfg *config.Config) notify.Notifier {
	if cfg.AMQP.URL == "" {
		return notify.NewLogNotifier(a.logger)
	}

	n, err := notify.NewAMQPNotifier(cfg.AMQP.URL, cfg.AMQP.Exchange, a.logger)
	if err != nil {
		a.logger.Error("failed to connect notifier, falling back to log notifications", "error", err)
		return notify.NewLogNotifier(a.logger)
	}
	a.closers = append(a.closers, func() error {
		n.Close()
		return nil
	})
	return n
}

// Close releases connections in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("error during shutdown", "error", err)
		}
	}
	a.closers = nil
}
