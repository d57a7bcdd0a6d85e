// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rovshanmuradov/pumpbot/internal/blockchain/solbc/rpc"
	"github.com/rovshanmuradov/pumpbot/internal/monitor"
	"github.com/rovshanmuradov/pumpbot/internal/transaction"
)

// EnvPrefix - префикс переменных окружения (PUMPBOT_RPC_URL и т.д.)
const EnvPrefix = "PUMPBOT"

type Config struct {
	RPCURL       string `mapstructure:"rpc_url"`
	DebugLogging bool   `mapstructure:"debug_logging"`
	MetricsAddr  string `mapstructure:"metrics_addr"`

	// Позиции
	PriceCheckIntervalSeconds   int     `mapstructure:"price_check_interval_seconds"`
	TakeProfitPercentage        float64 `mapstructure:"take_profit_percentage"`
	StopLossPercentage          float64 `mapstructure:"stop_loss_percentage"`
	TrailingStopLossPercentage  float64 `mapstructure:"trailing_stop_loss_percentage"`
	MaxHoldTimeSeconds          int     `mapstructure:"max_hold_time_seconds"`
	EmergencyGracePeriodSeconds int     `mapstructure:"emergency_grace_period_seconds"`
	ExitOnGraduation            bool    `mapstructure:"exit_on_graduation"`
	MinLiquiditySol             float64 `mapstructure:"min_liquidity_sol"`
	SlippagePercentage          float64 `mapstructure:"slippage_percentage"`

	// Приоритетная комиссия
	EnableDynamicFee       bool    `mapstructure:"enable_dynamic_fee"`
	EnableFixedFee         bool    `mapstructure:"enable_fixed_fee"`
	FixedFeeMicroUnits     uint64  `mapstructure:"fixed_fee_micro_units"`
	EmergencyFeeMicroUnits uint64  `mapstructure:"emergency_fee_micro_units"`
	ExtraFeePercentage     float64 `mapstructure:"extra_fee_percentage"`
	FeeHardCapMicroUnits   uint64  `mapstructure:"fee_hard_cap_micro_units"`
	FeePercentile          float64 `mapstructure:"fee_percentile"`
	ComputeUnits           uint32  `mapstructure:"compute_units"`

	// RPC
	RequestsPerSecond int `mapstructure:"requests_per_second"`
	RetryDelayMs      int `mapstructure:"retry_delay_ms"`
	MaxRetries        int `mapstructure:"max_retries"`
}

const (
	DefaultRPCURL             = "https://api.mainnet-beta.solana.com"
	DefaultSlippagePercentage = 1.0
)

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"rpc_url":                        DefaultRPCURL,
		"debug_logging":                  false,
		"metrics_addr":                   "",
		"price_check_interval_seconds":   int(monitor.DefaultPriceCheckInterval / time.Second),
		"take_profit_percentage":         0.0,
		"stop_loss_percentage":           0.0,
		"trailing_stop_loss_percentage":  0.0,
		"max_hold_time_seconds":          0,
		"emergency_grace_period_seconds": int(monitor.DefaultEmergencyGracePeriod / time.Second),
		"exit_on_graduation":             true,
		"min_liquidity_sol":              0.0,
		"slippage_percentage":            DefaultSlippagePercentage,
		"enable_dynamic_fee":             true,
		"enable_fixed_fee":               true,
		"fixed_fee_micro_units":          transaction.DefaultFixedFeeMicroUnits,
		"emergency_fee_micro_units":      transaction.DefaultEmergencyFeeMicroUnits,
		"extra_fee_percentage":           0.0,
		"fee_hard_cap_micro_units":       transaction.DefaultFeeHardCapMicroUnits,
		"fee_percentile":                 transaction.DefaultFeePercentile,
		"compute_units":                  transaction.DefaultComputeUnits,
		"requests_per_second":            rpc.DefaultRequestsPerSecond,
		"retry_delay_ms":                 int(rpc.DefaultRetryDelay / time.Millisecond),
		"max_retries":                    rpc.DefaultMaxRetries,
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig читает конфигурацию из файла (json/yaml/toml) и переменных
// окружения PUMPBOT_*. Пустой path означает только значения по умолчанию и окружение.
func LoadConfig(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	parsed, err := url.Parse(cfg.RPCURL)
	if err != nil || !strings.HasPrefix(parsed.Scheme, "http") {
		return errors.New("invalid rpc_url")
	}
	if cfg.PriceCheckIntervalSeconds <= 0 {
		return errors.New("invalid price_check_interval_seconds")
	}
	if cfg.TakeProfitPercentage < 0 {
		return errors.New("invalid take_profit_percentage")
	}
	if cfg.StopLossPercentage < 0 || cfg.StopLossPercentage >= 100 {
		return errors.New("stop_loss_percentage must be in [0, 100)")
	}
	if cfg.TrailingStopLossPercentage < 0 || cfg.TrailingStopLossPercentage >= 100 {
		return errors.New("trailing_stop_loss_percentage must be in [0, 100)")
	}
	if cfg.MaxHoldTimeSeconds < 0 {
		return errors.New("invalid max_hold_time_seconds")
	}
	if cfg.EmergencyGracePeriodSeconds <= 0 {
		return errors.New("invalid emergency_grace_period_seconds")
	}
	if cfg.MinLiquiditySol < 0 {
		return errors.New("invalid min_liquidity_sol")
	}
	if cfg.SlippagePercentage < 0 || cfg.SlippagePercentage > 100 {
		return errors.New("slippage_percentage must be in [0, 100]")
	}
	if cfg.ExtraFeePercentage < 0 {
		return errors.New("invalid extra_fee_percentage")
	}
	if cfg.FeePercentile <= 0 || cfg.FeePercentile > 100 {
		return errors.New("fee_percentile must be in (0, 100]")
	}
	if cfg.RequestsPerSecond < 0 {
		return errors.New("invalid requests_per_second")
	}
	if cfg.RetryDelayMs <= 0 {
		return errors.New("invalid retry_delay_ms")
	}
	if cfg.MaxRetries < 0 {
		return errors.New("invalid max_retries")
	}
	return nil
}

// GovernorConfig переводит настройки RPC в конфигурацию governor.
func (c *Config) GovernorConfig() rpc.GovernorConfig {
	return rpc.GovernorConfig{
		RequestsPerSecond: c.RequestsPerSecond,
		RetryDelay:        time.Duration(c.RetryDelayMs) * time.Millisecond,
		MaxRetries:        c.MaxRetries,
	}
}

// FeeConfig возвращает настройки цепочки приоритетной комиссии.
func (c *Config) FeeConfig() transaction.FeeConfig {
	return transaction.FeeConfig{
		EnableDynamicFee:       c.EnableDynamicFee,
		EnableFixedFee:         c.EnableFixedFee,
		FixedFeeMicroUnits:     c.FixedFeeMicroUnits,
		EmergencyFeeMicroUnits: c.EmergencyFeeMicroUnits,
		ExtraFeePercentage:     c.ExtraFeePercentage,
		FeeHardCapMicroUnits:   c.FeeHardCapMicroUnits,
		Percentile:             c.FeePercentile,
	}
}

// ManagerConfig возвращает настройки менеджера позиций.
func (c *Config) ManagerConfig() monitor.ManagerConfig {
	return monitor.ManagerConfig{
		PriceCheckInterval:   time.Duration(c.PriceCheckIntervalSeconds) * time.Second,
		EmergencyGracePeriod: time.Duration(c.EmergencyGracePeriodSeconds) * time.Second,
	}
}

// ExitConfig возвращает пороги выхода для новых позиций.
func (c *Config) ExitConfig() monitor.ExitConfig {
	return monitor.ExitConfig{
		TakeProfitPercentage:       c.TakeProfitPercentage,
		StopLossPercentage:         c.StopLossPercentage,
		TrailingStopLossPercentage: c.TrailingStopLossPercentage,
		MaxHoldTime:                time.Duration(c.MaxHoldTimeSeconds) * time.Second,
		ExitOnGraduation:           c.ExitOnGraduation,
		MinLiquiditySol:            c.MinLiquiditySol,
	}
}
