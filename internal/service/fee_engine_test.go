package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dianasmith6525/amerilendloan-sub000/internal/domain"
	"github.com/Dianasmith6525/amerilendloan-sub000/internal/repository"
	customError "github.com/Dianasmith6525/amerilendloan-sub000/pkg/errors"
	"github.com/Dianasmith6525/amerilendloan-sub000/pkg/logger"
)

func TestComputeFee(t *testing.T) {
	percentage := domain.FeeConfiguration{CalculationMode: domain.FeeModePercentage, PercentageRate: 200, FixedFeeAmount: 200}
	fixed := domain.FeeConfiguration{CalculationMode: domain.FeeModeFixed, PercentageRate: 200, FixedFeeAmount: 200}

	tests := []struct {
		name   string
		amount int64
		cfg    domain.FeeConfiguration
		want   int64
	}{
		{"percentage 2% of $5000", 500000, percentage, 10000},
		{"percentage floors", 12345, domain.FeeConfiguration{CalculationMode: domain.FeeModePercentage, PercentageRate: 150}, 185},
		{"percentage upper bound", 100000, domain.FeeConfiguration{CalculationMode: domain.FeeModePercentage, PercentageRate: 250}, 2500},
		{"fixed small amount", 1, fixed, 200},
		{"fixed large amount", 99999999, fixed, 200},
		{"zero amount", 0, percentage, 0},
		{"negative amount", -500, fixed, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeFee(tt.amount, tt.cfg))
		})
	}
}

func TestComputeFee_DeterministicAndMonotonic(t *testing.T) {
	for _, rate := range []int64{150, 175, 200, 225, 250} {
		cfg := domain.FeeConfiguration{CalculationMode: domain.FeeModePercentage, PercentageRate: rate}
		prev := int64(0)
		for amount := int64(1); amount <= 2000000; amount += 7919 {
			fee := ComputeFee(amount, cfg)
			assert.Equal(t, fee, ComputeFee(amount, cfg))
			assert.GreaterOrEqual(t, fee, prev, "rate %d amount %d", rate, amount)
			prev = fee
		}
	}
}

func TestFeeConfigService_Update(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.fees.Update(ctx, applicant, domain.UpdateFeeConfigRequest{CalculationMode: domain.FeeModeFixed, PercentageRate: 200, FixedFeeAmount: 200})
	assert.Equal(t, customError.ErrCodeForbidden, customError.CodeOf(err))

	_, err = h.fees.Update(ctx, admin, domain.UpdateFeeConfigRequest{CalculationMode: domain.FeeModePercentage, PercentageRate: 300, FixedFeeAmount: 100})
	be, ok := customError.As(err)
	require.True(t, ok)
	assert.Equal(t, customError.ErrCodeValidation, be.Code)
	assert.Contains(t, be.Fields, "percentage_rate")
	assert.Contains(t, be.Fields, "fixed_fee_amount")

	cfg, err := h.fees.Update(ctx, admin, domain.UpdateFeeConfigRequest{CalculationMode: domain.FeeModeFixed, PercentageRate: 150, FixedFeeAmount: 250})
	require.NoError(t, err)
	assert.Equal(t, int64(2), cfg.Version)

	active, err := h.fees.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), active.Version)
	assert.Equal(t, domain.FeeModeFixed, active.CalculationMode)
	assert.Equal(t, "admin-1", active.UpdatedBy)

	history, err := h.fees.History(ctx, admin, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].Active)
	assert.False(t, history[1].Active)
}

func TestFeeConfigService_BootstrapKeepsExisting(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	cfg, err := h.fees.Bootstrap(ctx, domain.FeeConfiguration{CalculationMode: domain.FeeModeFixed, PercentageRate: 150, FixedFeeAmount: 150})
	require.NoError(t, err)
	assert.Equal(t, int64(1), cfg.Version)
	assert.Equal(t, domain.FeeModePercentage, cfg.CalculationMode)
}

func TestFeeConfigService_BootstrapLocksBeforeReading(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	fees := NewFeeConfigService(repository.NewPostgresStore(sqlx.NewDb(db, "sqlmock")), logger.Discard())

	mock.ExpectBegin()
	mock.ExpectExec(`LOCK TABLE fee_configurations IN SHARE ROW EXCLUSIVE MODE`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT .* FROM fee_configurations WHERE active`).
		WillReturnRows(sqlmock.NewRows([]string{
			"version", "calculation_mode", "percentage_rate", "fixed_fee_amount", "active", "updated_by", "created_at",
		}).AddRow(int64(1), "percentage", int64(200), int64(200), true, "bootstrap", time.Now()))
	mock.ExpectCommit()

	cfg, err := fees.Bootstrap(context.Background(), domain.FeeConfiguration{
		CalculationMode: domain.FeeModeFixed, PercentageRate: 150, FixedFeeAmount: 150,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), cfg.Version)
	assert.Equal(t, domain.FeeModePercentage, cfg.CalculationMode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeConfigService_Quote(t *testing.T) {
	h := newHarness(t)

	quote, err := h.fees.Quote(context.Background(), 500000)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), quote.Fee)
	assert.Equal(t, int64(510000), quote.TotalRepayment)

	_, err = h.fees.Quote(context.Background(), 0)
	assert.Equal(t, customError.ErrCodeValidation, customError.CodeOf(err))
}
