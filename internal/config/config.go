// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"time"

	"goalflow/internal/domain"
	"goalflow/pkg/db" // Import db package for its Config struct

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// AppConfig holds all application-wide configurations.
type AppConfig struct {
	ServerPort  string
	LogLevel    string
	HTTPTimeout time.Duration
	DB          db.Config
	Forecast    ForecastConfig
	Lock        LockConfig
	Events      EventsConfig
	// ReconcileSchedule is a cron expression; empty disables the background sweep.
	ReconcileSchedule string
}

// ForecastConfig holds forecast defaults applied when a request omits them.
type ForecastConfig struct {
	HorizonWeeks   int
	AnnualRate     float64
	SpendingFactor float64
	PeriodsPerYear int64
}

// LockConfig selects the account locker. An empty RedisURL keeps locking in-process.
type LockConfig struct {
	RedisURL string
	Prefix   string
	TTL      time.Duration
	Wait     time.Duration
}

// EventsConfig configures ledger event publishing. An empty RabbitMQURL disables it.
type EventsConfig struct {
	RabbitMQURL string
	Exchange    string
}

// env mirrors the flat environment variables viper unmarshals into.
type env struct {
	ServerPort  string        `mapstructure:"SERVER_PORT"`
	LogLevel    string        `mapstructure:"LOG_LEVEL"`
	HTTPTimeout time.Duration `mapstructure:"HTTP_TIMEOUT"`

	DBHost            string        `mapstructure:"DB_HOST"`
	DBPort            int           `mapstructure:"DB_PORT"`
	DBUser            string        `mapstructure:"DB_USER"`
	DBPassword        string        `mapstructure:"DB_PASSWORD"`
	DBName            string        `mapstructure:"DB_NAME"`
	DBSSLMode         string        `mapstructure:"DB_SSLMODE"`
	DBMaxOpenConns    int           `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns    int           `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetime time.Duration `mapstructure:"DB_CONN_MAX_LIFETIME"`
	DBAutoMigrate     bool          `mapstructure:"DB_AUTO_MIGRATE"`

	ForecastHorizonWeeks   int     `mapstructure:"FORECAST_HORIZON_WEEKS"`
	ForecastAnnualRate     float64 `mapstructure:"FORECAST_ANNUAL_RATE"`
	ForecastSpendingFactor float64 `mapstructure:"FORECAST_SPENDING_FACTOR"`
	ForecastPeriodsPerYear int64   `mapstructure:"FORECAST_PERIODS_PER_YEAR"`

	RedisURL   string        `mapstructure:"REDIS_URL"`
	LockPrefix string        `mapstructure:"LOCK_PREFIX"`
	LockTTL    time.Duration `mapstructure:"LOCK_TTL"`
	LockWait   time.Duration `mapstructure:"LOCK_WAIT"`

	RabbitMQURL    string `mapstructure:"RABBITMQ_URL"`
	EventsExchange string `mapstructure:"LEDGER_EVENTS_EXCHANGE"`

	ReconcileSchedule string `mapstructure:"RECONCILE_SCHEDULE"`
}

var defaults = map[string]interface{}{
	"SERVER_PORT":  "8080",
	"LOG_LEVEL":    "info",
	"HTTP_TIMEOUT": "15s",

	// Local development defaults
	"DB_HOST":              "localhost",
	"DB_PORT":              5432,
	"DB_USER":              "user",
	"DB_PASSWORD":          "password",
	"DB_NAME":              "goalflowdb",
	"DB_SSLMODE":           "disable",
	"DB_MAX_OPEN_CONNS":    25,
	"DB_MAX_IDLE_CONNS":    10,
	"DB_CONN_MAX_LIFETIME": "5m",
	"DB_AUTO_MIGRATE":      true,

	"FORECAST_HORIZON_WEEKS":    24,
	"FORECAST_ANNUAL_RATE":      0.035,
	"FORECAST_SPENDING_FACTOR":  1.05,
	"FORECAST_PERIODS_PER_YEAR": 52,

	"REDIS_URL":   "",
	"LOCK_PREFIX": "goalflow:account_lock",
	"LOCK_TTL":    "30s",
	"LOCK_WAIT":   "10s",

	"RABBITMQ_URL":           "",
	"LEDGER_EVENTS_EXCHANGE": "ledger_events",

	"RECONCILE_SCHEDULE": "",
}

// LoadConfig loads configuration from environment variables, reading a .env file first when present.
// It returns an AppConfig instance or an error if any variable is invalid.
func LoadConfig() (*AppConfig, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	for key, value := range defaults {
		viper.SetDefault(key, value)
		_ = viper.BindEnv(key)
	}
	viper.AutomaticEnv()

	var e env
	if err := viper.Unmarshal(&e); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &AppConfig{
		ServerPort:  e.ServerPort,
		LogLevel:    e.LogLevel,
		HTTPTimeout: e.HTTPTimeout,
		DB: db.Config{
			Host:            e.DBHost,
			Port:            e.DBPort,
			User:            e.DBUser,
			Password:        e.DBPassword,
			DBName:          e.DBName,
			SSLMode:         e.DBSSLMode,
			MaxOpenConns:    e.DBMaxOpenConns,
			MaxIdleConns:    e.DBMaxIdleConns,
			ConnMaxLifetime: e.DBConnMaxLifetime,
			AutoMigrate:     e.DBAutoMigrate,
		},
		Forecast: ForecastConfig{
			HorizonWeeks:   e.ForecastHorizonWeeks,
			AnnualRate:     e.ForecastAnnualRate,
			SpendingFactor: e.ForecastSpendingFactor,
			PeriodsPerYear: e.ForecastPeriodsPerYear,
		},
		Lock: LockConfig{
			RedisURL: e.RedisURL,
			Prefix:   e.LockPrefix,
			TTL:      e.LockTTL,
			Wait:     e.LockWait,
		},
		Events: EventsConfig{
			RabbitMQURL: e.RabbitMQURL,
			Exchange:    e.EventsExchange,
		},
		ReconcileSchedule: e.ReconcileSchedule,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// forecastEnvKeys names the variable behind each domain.ForecastParams field.
var forecastEnvKeys = map[string]string{
	"Horizon":        "FORECAST_HORIZON_WEEKS",
	"AnnualRate":     "FORECAST_ANNUAL_RATE",
	"SpendingFactor": "FORECAST_SPENDING_FACTOR",
}

func (c *AppConfig) validate() error {
	var errs []error
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid DB_PORT: %d", c.DB.Port))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, fmt.Errorf("invalid HTTP_TIMEOUT: %s", c.HTTPTimeout))
	}
	// Defaults obey the same bounds as per-request forecast parameters, otherwise
	// every request that omits them would be rejected.
	params := domain.ForecastParams{
		Horizon:        c.Forecast.HorizonWeeks,
		AnnualRate:     c.Forecast.AnnualRate,
		SpendingFactor: c.Forecast.SpendingFactor,
	}
	var ve validator.ValidationErrors
	if err := validator.New().Struct(params); errors.As(err, &ve) {
		for _, fe := range ve {
			errs = append(errs, fmt.Errorf("invalid %s: %v (must satisfy %s=%s)", forecastEnvKeys[fe.Field()], fe.Value(), fe.Tag(), fe.Param()))
		}
	}
	if c.Forecast.PeriodsPerYear < 1 {
		errs = append(errs, fmt.Errorf("invalid FORECAST_PERIODS_PER_YEAR: %d", c.Forecast.PeriodsPerYear))
	}
	return errors.Join(errs...)
}
