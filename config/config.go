// Package config загружает конфигурацию сервиса из переменных
// окружения и опционального .env файла через viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config конфигурация сервиса
type Config struct {
	// HTTPAddr адрес HTTP сервера
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// StoreBackend хранилище событий: memory | postgres
	StoreBackend string `mapstructure:"STORE_BACKEND"`
	// DatabaseURL DSN PostgreSQL (для STORE_BACKEND=postgres)
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// NATSURL адрес NATS; пустое значение отключает внешнюю публикацию
	NATSURL string `mapstructure:"NATS_URL"`

	// FeeAmount размер комиссии обслуживания
	FeeAmount float64 `mapstructure:"FEE_AMOUNT"`
	// FeeInterval период начисления комиссии
	FeeInterval time.Duration `mapstructure:"FEE_INTERVAL"`
	// FeeLookback окно оценки критериев пропуска комиссии
	FeeLookback time.Duration `mapstructure:"FEE_LOOKBACK"`
	// FeeSchedulerEnabled включает планировщик комиссии
	FeeSchedulerEnabled bool `mapstructure:"FEE_SCHEDULER_ENABLED"`
	// DailyBalanceThreshold порог балансового критерия пропуска комиссии
	DailyBalanceThreshold float64 `mapstructure:"DAILY_BALANCE_THRESHOLD"`
	// QualifyingDeposit квалифицирующая сумма пополнения
	QualifyingDeposit float64 `mapstructure:"QUALIFYING_DEPOSIT"`

	// ExemptDebitOrigins дополнительные origin, освобожденные от
	// проверок карты и дневного лимита (через запятую)
	ExemptDebitOrigins string `mapstructure:"EXEMPT_DEBIT_ORIGINS"`

	// BreakerMaxFailures подряд идущих сбоев до размыкания breaker'а
	BreakerMaxFailures uint32 `mapstructure:"BREAKER_MAX_FAILURES"`
	// BreakerResetTimeout пауза до полуоткрытого пробного вызова
	BreakerResetTimeout time.Duration `mapstructure:"BREAKER_RESET_TIMEOUT"`
	// BreakerCallTimeout таймаут вызова внешнего сервиса
	BreakerCallTimeout time.Duration `mapstructure:"BREAKER_CALL_TIMEOUT"`

	// SagaWorkers воркеров саги переводов
	SagaWorkers int `mapstructure:"SAGA_WORKERS"`
}

// ExemptOrigins возвращает список освобожденных origin
func (c Config) ExemptOrigins() []string {
	if strings.TrimSpace(c.ExemptDebitOrigins) == "" {
		return nil
	}
	parts := strings.Split(c.ExemptDebitOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, part := range parts {
		if origin := strings.TrimSpace(part); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

// Validate проверяет согласованность конфигурации
func (c Config) Validate() error {
	switch c.StoreBackend {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for postgres store backend")
		}
	default:
		return fmt.Errorf("unknown store backend: %s", c.StoreBackend)
	}
	if c.FeeAmount < 0 {
		return fmt.Errorf("fee amount cannot be negative")
	}
	return nil
}

// Load читает конфигурацию из окружения и опционального .env файла
func Load(path string) (Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName(".env")
	v.SetConfigType("env")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("STORE_BACKEND", "memory")
	v.SetDefault("NATS_URL", "")
	v.SetDefault("FEE_AMOUNT", 5.0)
	v.SetDefault("FEE_INTERVAL", "720h")
	v.SetDefault("FEE_LOOKBACK", "720h")
	v.SetDefault("FEE_SCHEDULER_ENABLED", true)
	v.SetDefault("DAILY_BALANCE_THRESHOLD", 1500.0)
	v.SetDefault("QUALIFYING_DEPOSIT", 250.0)
	v.SetDefault("EXEMPT_DEBIT_ORIGINS", "")
	v.SetDefault("BREAKER_MAX_FAILURES", 5)
	v.SetDefault("BREAKER_RESET_TIMEOUT", "30s")
	v.SetDefault("BREAKER_CALL_TIMEOUT", "10s")
	v.SetDefault("SAGA_WORKERS", 4)

	for _, key := range []string{
		"HTTP_ADDR", "STORE_BACKEND", "DATABASE_URL", "NATS_URL",
		"FEE_AMOUNT", "FEE_INTERVAL", "FEE_LOOKBACK", "FEE_SCHEDULER_ENABLED",
		"DAILY_BALANCE_THRESHOLD", "QUALIFYING_DEPOSIT", "EXEMPT_DEBIT_ORIGINS",
		"BREAKER_MAX_FAILURES", "BREAKER_RESET_TIMEOUT", "BREAKER_CALL_TIMEOUT",
		"SAGA_WORKERS",
	} {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}
