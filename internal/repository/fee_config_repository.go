package repository

import (
	"context"

	"github.com/Dianasmith6525/amerilendloan-sub000/internal/domain"

	"github.com/jmoiron/sqlx"
)

type feeConfigRepository struct {
	db sqlx.ExtContext
}

func NewFeeConfigRepository(db sqlx.ExtContext) FeeConfigRepository {
	return &feeConfigRepository{db: db}
}

func (r *feeConfigRepository) GetActive(ctx context.Context) (*domain.FeeConfiguration, error) {
	query := `
		SELECT version, calculation_mode, percentage_rate, fixed_fee_amount, active, updated_by, created_at
		FROM fee_configurations
		WHERE active
	`

	var cfg domain.FeeConfiguration
	if err := sqlx.GetContext(ctx, r.db, &cfg, query); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Lock takes a table lock that conflicts with itself but not with readers, so two
// replacements cannot both miss each other's new active row.
func (r *feeConfigRepository) Lock(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `LOCK TABLE fee_configurations IN SHARE ROW EXCLUSIVE MODE`)
	return err
}

func (r *feeConfigRepository) Replace(ctx context.Context, cfg *domain.FeeConfiguration) error {
	if err := r.Lock(ctx); err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, `UPDATE fee_configurations SET active = FALSE WHERE active`); err != nil {
		return err
	}

	query := `
		INSERT INTO fee_configurations (calculation_mode, percentage_rate, fixed_fee_amount, active, updated_by, created_at)
		VALUES ($1, $2, $3, TRUE, $4, $5)
		RETURNING version
	`

	cfg.Active = true
	return r.db.QueryRowxContext(ctx, query,
		cfg.CalculationMode,
		cfg.PercentageRate,
		cfg.FixedFeeAmount,
		cfg.UpdatedBy,
		cfg.CreatedAt,
	).Scan(&cfg.Version)
}

func (r *feeConfigRepository) History(ctx context.Context, limit int) ([]*domain.FeeConfiguration, error) {
	query := `
		SELECT version, calculation_mode, percentage_rate, fixed_fee_amount, active, updated_by, created_at
		FROM fee_configurations
		ORDER BY version DESC
		LIMIT $1
	`

	if limit <= 0 {
		limit = 20
	}

	configs := []*domain.FeeConfiguration{}
	if err := sqlx.SelectContext(ctx, r.db, &configs, query, limit); err != nil {
		return nil, err
	}

	return configs, nil
}
