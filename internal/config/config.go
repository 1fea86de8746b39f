package config

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/Dianasmith6525/amerilendloan-sub000/internal/domain"
)

// Config holds all configuration for our application
type Config struct {
	Server    ServerConfig    `mapstructure:",squash"`
	Database  DatabaseConfig  `mapstructure:",squash"`
	Redis     RedisConfig     `mapstructure:",squash"`
	AMQP      AMQPConfig      `mapstructure:",squash"`
	Auth      AuthConfig      `mapstructure:",squash"`
	Scheduler SchedulerConfig `mapstructure:",squash"`
	Logging   LoggingConfig   `mapstructure:",squash"`
	Fee       FeeConfig       `mapstructure:",squash"`
	Payment   PaymentConfig   `mapstructure:",squash"`
	Health    HealthConfig    `mapstructure:",squash"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"SERVER_PORT"`
	Host         string        `mapstructure:"SERVER_HOST"`
	Env          string        `mapstructure:"ENV"`
	ReadTimeout  time.Duration `mapstructure:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"SERVER_WRITE_TIMEOUT"`
}

type DatabaseConfig struct {
	// Driver is "postgres" or "memory"; memory is for local development only.
	Driver          string        `mapstructure:"STORAGE_DRIVER"`
	URL             string        `mapstructure:"DATABASE_URL"`
	MaxOpenConns    int           `mapstructure:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `mapstructure:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `mapstructure:"DATABASE_CONN_MAX_LIFETIME"`
	AutoMigrate     bool          `mapstructure:"DATABASE_AUTO_MIGRATE"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"REDIS_ADDR"`
	Password string        `mapstructure:"REDIS_PASSWORD"`
	DB       int           `mapstructure:"REDIS_DB"`
	LockTTL  time.Duration `mapstructure:"LOAN_LOCK_TTL"`
	LockWait time.Duration `mapstructure:"LOAN_LOCK_WAIT"`
}

type AMQPConfig struct {
	URL      string `mapstructure:"AMQP_URL"`
	Exchange string `mapstructure:"NOTIFY_EXCHANGE"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"JWT_SECRET"`
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
}

type SchedulerConfig struct {
	CryptoPollSchedule string `mapstructure:"CRYPTO_POLL_SCHEDULE"`
	Timezone           string `mapstructure:"SCHEDULER_TIMEZONE"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"LOG_LEVEL"`
	Format string `mapstructure:"LOG_FORMAT"`
}

// FeeConfig seeds the first FeeConfiguration version at bootstrap.
type FeeConfig struct {
	DefaultMode       string `mapstructure:"FEE_DEFAULT_MODE"`
	DefaultRateBps    int64  `mapstructure:"FEE_DEFAULT_RATE_BPS"`
	DefaultFixedCents int64  `mapstructure:"FEE_DEFAULT_FIXED_CENTS"`
}

type PaymentConfig struct {
	CardGateway              string        `mapstructure:"CARD_GATEWAY"`
	BankingRail              string        `mapstructure:"BANKING_RAIL"`
	ObserverURL              string        `mapstructure:"BLOCKCHAIN_OBSERVER_URL"`
	ObserverAPIKey           string        `mapstructure:"BLOCKCHAIN_OBSERVER_API_KEY"`
	ObserverTimeout          time.Duration `mapstructure:"BLOCKCHAIN_OBSERVER_TIMEOUT"`
	ObserverMinConfirmations int           `mapstructure:"BLOCKCHAIN_MIN_CONFIRMATIONS"`
	AddressBTC               string        `mapstructure:"CRYPTO_ADDRESS_BTC"`
	AddressETH               string        `mapstructure:"CRYPTO_ADDRESS_ETH"`
	AddressUSDT              string        `mapstructure:"CRYPTO_ADDRESS_USDT"`
	AddressUSDC              string        `mapstructure:"CRYPTO_ADDRESS_USDC"`
	RateBTC                  string        `mapstructure:"CRYPTO_RATE_BTC"`
	RateETH                  string        `mapstructure:"CRYPTO_RATE_ETH"`
	RateUSDT                 string        `mapstructure:"CRYPTO_RATE_USDT"`
	RateUSDC                 string        `mapstructure:"CRYPTO_RATE_USDC"`
}

type HealthConfig struct {
	Timeout string `mapstructure:"HEALTH_CHECK_TIMEOUT"`
}

// Load reads configuration from environment variables and files
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("ENV", "development")
	v.SetDefault("SERVER_READ_TIMEOUT", "15s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "15s")
	v.SetDefault("STORAGE_DRIVER", "postgres")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DATABASE_MAX_OPEN_CONNS", 25)
	v.SetDefault("DATABASE_MAX_IDLE_CONNS", 5)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", "30m")
	v.SetDefault("DATABASE_AUTO_MIGRATE", true)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("LOAN_LOCK_TTL", "30s")
	v.SetDefault("LOAN_LOCK_WAIT", "5s")
	v.SetDefault("AMQP_URL", "")
	v.SetDefault("NOTIFY_EXCHANGE", "loan.events")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("CRYPTO_POLL_SCHEDULE", "@every 2m")
	v.SetDefault("SCHEDULER_TIMEZONE", "UTC")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("FEE_DEFAULT_MODE", string(domain.FeeModePercentage))
	v.SetDefault("FEE_DEFAULT_RATE_BPS", 200)
	v.SetDefault("FEE_DEFAULT_FIXED_CENTS", 200)
	v.SetDefault("CARD_GATEWAY", "sandbox")
	v.SetDefault("BANKING_RAIL", "sandbox")
	v.SetDefault("BLOCKCHAIN_OBSERVER_URL", "")
	v.SetDefault("BLOCKCHAIN_OBSERVER_API_KEY", "")
	v.SetDefault("BLOCKCHAIN_OBSERVER_TIMEOUT", "10s")
	v.SetDefault("BLOCKCHAIN_MIN_CONFIRMATIONS", 1)
	v.SetDefault("CRYPTO_ADDRESS_BTC", "")
	v.SetDefault("CRYPTO_ADDRESS_ETH", "")
	v.SetDefault("CRYPTO_ADDRESS_USDT", "")
	v.SetDefault("CRYPTO_ADDRESS_USDC", "")
	v.SetDefault("CRYPTO_RATE_BTC", "60000")
	v.SetDefault("CRYPTO_RATE_ETH", "3000")
	v.SetDefault("CRYPTO_RATE_USDT", "1")
	v.SetDefault("CRYPTO_RATE_USDC", "1")
	v.SetDefault("HEALTH_CHECK_TIMEOUT", "5s")

	// Read from environment variables
	v.AutomaticEnv()

	// Try to read from .env file (optional)
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./deployments")

	// Don't fail if .env file doesn't exist
	_ = v.ReadInConfig()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	switch c.Database.Driver {
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
	case "memory":
		if c.IsProduction() {
			return fmt.Errorf("STORAGE_DRIVER=memory is not allowed in production")
		}
	default:
		return fmt.Errorf("STORAGE_DRIVER must be postgres or memory, got %q", c.Database.Driver)
	}

	if c.IsProduction() && c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}

	if c.Redis.LockTTL <= 0 {
		return fmt.Errorf("LOAN_LOCK_TTL must be greater than 0")
	}

	fee := c.DefaultFeeConfiguration()
	if fields := fee.Validate(); fields != nil {
		return fmt.Errorf("invalid default fee configuration: %v", fields)
	}

	for _, currency := range domain.SupportedCurrencies {
		rate, err := decimal.NewFromString(c.rateFor(currency))
		if err != nil {
			return fmt.Errorf("CRYPTO_RATE_%s must be a valid decimal: %w", currency, err)
		}
		if !rate.IsPositive() {
			return fmt.Errorf("CRYPTO_RATE_%s must be greater than 0", currency)
		}
	}

	// Validate poll schedule
	if _, err := cron.ParseStandard(c.Scheduler.CryptoPollSchedule); err != nil {
		return fmt.Errorf("CRYPTO_POLL_SCHEDULE must be a valid cron spec: %w", err)
	}

	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("SCHEDULER_TIMEZONE must be a valid location: %w", err)
	}

	// Validate health check timeout
	if _, err := time.ParseDuration(c.Health.Timeout); err != nil {
		return fmt.Errorf("HEALTH_CHECK_TIMEOUT must be a valid duration: %w", err)
	}

	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development" || c.Server.Env == "dev"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production" || c.Server.Env == "prod"
}

// DefaultFeeConfiguration is the version written when no configuration exists yet.
func (c *Config) DefaultFeeConfiguration() domain.FeeConfiguration {
	return domain.FeeConfiguration{
		CalculationMode: domain.FeeMode(c.Fee.DefaultMode),
		PercentageRate:  c.Fee.DefaultRateBps,
		FixedFeeAmount:  c.Fee.DefaultFixedCents,
		Active:          true,
		UpdatedBy:       "bootstrap",
	}
}

// CryptoRates returns the USD price of one unit of each supported currency.
func (c *Config) CryptoRates() map[domain.CryptoCurrency]decimal.Decimal {
	rates := make(map[domain.CryptoCurrency]decimal.Decimal, len(domain.SupportedCurrencies))
	for _, currency := range domain.SupportedCurrencies {
		rate, _ := decimal.NewFromString(c.rateFor(currency))
		rates[currency] = rate
	}
	return rates
}

// CryptoAddresses returns the receiving address per currency; unset currencies are omitted.
func (c *Config) CryptoAddresses() map[domain.CryptoCurrency]string {
	all := map[domain.CryptoCurrency]string{
		domain.CurrencyBTC:  c.Payment.AddressBTC,
		domain.CurrencyETH:  c.Payment.AddressETH,
		domain.CurrencyUSDT: c.Payment.AddressUSDT,
		domain.CurrencyUSDC: c.Payment.AddressUSDC,
	}
	addresses := make(map[domain.CryptoCurrency]string, len(all))
	for currency, address := range all {
		if address != "" {
			addresses[currency] = address
		}
	}
	return addresses
}

func (c *Config) rateFor(currency domain.CryptoCurrency) string {
	switch currency {
	case domain.CurrencyBTC:
		return c.Payment.RateBTC
	case domain.CurrencyETH:
		return c.Payment.RateETH
	case domain.CurrencyUSDT:
		return c.Payment.RateUSDT
	case domain.CurrencyUSDC:
		return c.Payment.RateUSDC
	}
	return ""
}

// GetHealthTimeout returns the health check timeout as duration
func (c *Config) GetHealthTimeout() time.Duration {
	timeout, _ := time.ParseDuration(c.Health.Timeout)
	return timeout
}

// SchedulerLocation returns the time zone the cron poller runs in.
func (c *Config) SchedulerLocation() *time.Location {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
