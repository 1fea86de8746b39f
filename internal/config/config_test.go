package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dianasmith6525/amerilendloan-sub000/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Redis.LockTTL)
	assert.Equal(t, "@every 2m", cfg.Scheduler.CryptoPollSchedule)
	assert.Equal(t, 1, cfg.Payment.ObserverMinConfirmations)
	assert.Equal(t, 5*time.Second, cfg.GetHealthTimeout())
	assert.True(t, cfg.IsDevelopment())

	fee := cfg.DefaultFeeConfiguration()
	assert.Equal(t, domain.FeeModePercentage, fee.CalculationMode)
	assert.Equal(t, int64(200), fee.PercentageRate)
	assert.Nil(t, fee.Validate())

	assert.True(t, cfg.CryptoRates()[domain.CurrencyBTC].Equal(decimal.NewFromInt(60000)))
	assert.Empty(t, cfg.CryptoAddresses())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("FEE_DEFAULT_MODE", "fixed")
	t.Setenv("FEE_DEFAULT_FIXED_CENTS", "175")
	t.Setenv("CRYPTO_ADDRESS_ETH", "0xethfee")
	t.Setenv("SCHEDULER_TIMEZONE", "America/New_York")

	cfg, err := Load()
	require.NoError(t, err)

	fee := cfg.DefaultFeeConfiguration()
	assert.Equal(t, domain.FeeModeFixed, fee.CalculationMode)
	assert.Equal(t, int64(175), fee.FixedFeeAmount)
	assert.Equal(t, map[domain.CryptoCurrency]string{domain.CurrencyETH: "0xethfee"}, cfg.CryptoAddresses())
	assert.Equal(t, "America/New_York", cfg.SchedulerLocation().String())
}

func TestLoadRejectsInvalidConfiguration(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "postgres without url",
			env:  map[string]string{"STORAGE_DRIVER": "postgres"},
		},
		{
			name: "memory storage in production",
			env:  map[string]string{"STORAGE_DRIVER": "memory", "ENV": "production", "JWT_SECRET": "s"},
		},
		{
			name: "production without jwt secret",
			env:  map[string]string{"STORAGE_DRIVER": "postgres", "DATABASE_URL": "postgres://localhost/loans", "ENV": "production"},
		},
		{
			name: "fee rate out of bounds",
			env:  map[string]string{"STORAGE_DRIVER": "memory", "FEE_DEFAULT_RATE_BPS": "300"},
		},
		{
			name: "non-positive exchange rate",
			env:  map[string]string{"STORAGE_DRIVER": "memory", "CRYPTO_RATE_ETH": "0"},
		},
		{
			name: "bad poll schedule",
			env:  map[string]string{"STORAGE_DRIVER": "memory", "CRYPTO_POLL_SCHEDULE": "every now and then"},
		},
		{
			name: "unknown timezone",
			env:  map[string]string{"STORAGE_DRIVER": "memory", "SCHEDULER_TIMEZONE": "Mars/Olympus"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
