package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/Dianasmith6525/amerilendloan-sub000/internal/domain"
	"github.com/Dianasmith6525/amerilendloan-sub000/internal/repository"
	customError "github.com/Dianasmith6525/amerilendloan-sub000/pkg/errors"
	"github.com/Dianasmith6525/amerilendloan-sub000/pkg/validation"
)

// FeeConfigService owns the versioned processing fee configuration.
// Reads always hit the store; nothing is cached.
type FeeConfigService struct {
	store     repository.Store
	validator *validation.Validator
	logger    *slog.Logger
	now       func() time.Time
}

func NewFeeConfigService(store repository.Store, logger *slog.Logger) *FeeConfigService {
	return &FeeConfigService{
		store:     store,
		validator: validation.New(),
		logger:    logger,
		now:       time.Now,
	}
}

// Active returns the configuration in force right now.
func (s *FeeConfigService) Active(ctx context.Context) (*domain.FeeConfiguration, error) {
	cfg, err := s.store.Repos().FeeConfigs.GetActive(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, customError.NewBusinessError(customError.ErrCodeDatabaseError, "no active fee configuration", err)
	}
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return cfg, nil
}

// Update replaces the active configuration with a new version.
func (s *FeeConfigService) Update(ctx context.Context, admin domain.Principal, req domain.UpdateFeeConfigRequest) (*domain.FeeConfiguration, error) {
	if err := requireAdmin(admin, "update the fee configuration"); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	cfg := &domain.FeeConfiguration{
		CalculationMode: req.CalculationMode,
		PercentageRate:  req.PercentageRate,
		FixedFeeAmount:  req.FixedFeeAmount,
		UpdatedBy:       admin.UserID,
		CreatedAt:       s.now().UTC(),
	}
	if fields := cfg.Validate(); fields != nil {
		return nil, customError.WrapValidation(fields)
	}

	err := translate(s.store.WithinTx(ctx, func(r repository.Repos) error {
		return r.FeeConfigs.Replace(ctx, cfg)
	}))
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "fee configuration updated",
		"version", cfg.Version,
		"mode", cfg.CalculationMode,
		"percentage_rate", cfg.PercentageRate,
		"fixed_fee_amount", cfg.FixedFeeAmount,
		"updated_by", cfg.UpdatedBy,
	)
	return cfg, nil
}

// History lists earlier versions, newest first.
func (s *FeeConfigService) History(ctx context.Context, admin domain.Principal, limit int) ([]*domain.FeeConfiguration, error) {
	if err := requireAdmin(admin, "view fee configuration history"); err != nil {
		return nil, err
	}
	configs, err := s.store.Repos().FeeConfigs.History(ctx, limit)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return configs, nil
}

// Bootstrap writes defaults as version 1 when no configuration exists yet.
func (s *FeeConfigService) Bootstrap(ctx context.Context, defaults domain.FeeConfiguration) (*domain.FeeConfiguration, error) {
	if fields := defaults.Validate(); fields != nil {
		return nil, customError.WrapValidation(fields)
	}

	var active *domain.FeeConfiguration
	err := translate(s.store.WithinTx(ctx, func(r repository.Repos) error {
		// the server and the scheduler may bootstrap at the same time
		if err := r.FeeConfigs.Lock(ctx); err != nil {
			return err
		}
		current, err := r.FeeConfigs.GetActive(ctx)
		if err == nil {
			active = current
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		cfg := defaults
		if cfg.UpdatedBy == "" {
			cfg.UpdatedBy = "bootstrap"
		}
		cfg.CreatedAt = s.now().UTC()
		if err := r.FeeConfigs.Replace(ctx, &cfg); err != nil {
			return err
		}
		active = &cfg
		s.logger.InfoContext(ctx, "fee configuration bootstrapped", "version", cfg.Version, "mode", cfg.CalculationMode)
		return nil
	}))
	if err != nil {
		return nil, err
	}
	return active, nil
}

// Quote shows what an amount would cost under the active configuration.
func (s *FeeConfigService) Quote(ctx context.Context, amount int64) (*domain.FeeQuote, error) {
	if amount <= 0 {
		return nil, customError.WrapFieldError("amount", "must be greater than 0")
	}

	cfg, err := s.Active(ctx)
	if err != nil {
		return nil, err
	}

	fee := ComputeFee(amount, *cfg)
	return &domain.FeeQuote{
		Amount:         amount,
		Fee:            fee,
		TotalRepayment: amount + fee,
		Config:         *cfg,
	}, nil
}
