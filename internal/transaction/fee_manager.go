// internal/transaction/fee_manager.go
package transaction

import (
	"context"
	"math"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pumpbot/internal/blockchain/solbc/rpc"
	"github.com/rovshanmuradov/pumpbot/internal/utils/metrics"
)

// Значения по умолчанию (micro-lamports за compute unit)
const (
	DefaultFeePercentile          = 70.0
	DefaultFixedFeeMicroUnits     = 100_000
	DefaultEmergencyFeeMicroUnits = 200_000
	DefaultFeeHardCapMicroUnits   = 1_000_000
)

// FeeConfig задаёт цепочку оценки приоритетной комиссии
type FeeConfig struct {
	EnableDynamicFee       bool
	EnableFixedFee         bool
	FixedFeeMicroUnits     uint64
	EmergencyFeeMicroUnits uint64
	ExtraFeePercentage     float64 // надбавка в процентах: 10 означает +10%
	FeeHardCapMicroUnits   uint64  // 0 - без ограничения
	Percentile             float64
}

// DefaultFeeConfig возвращает конфигурацию по умолчанию
func DefaultFeeConfig() FeeConfig {
	return FeeConfig{
		EnableDynamicFee:       true,
		EnableFixedFee:         true,
		FixedFeeMicroUnits:     DefaultFixedFeeMicroUnits,
		EmergencyFeeMicroUnits: DefaultEmergencyFeeMicroUnits,
		FeeHardCapMicroUnits:   DefaultFeeHardCapMicroUnits,
		Percentile:             DefaultFeePercentile,
	}
}

// PriorityFeeResult - итог расчёта комиссии
type PriorityFeeResult struct {
	Fee      uint64 // итоговая комиссия после надбавки и ограничения
	BaseFee  uint64 // значение выбранной ступени
	Source   FeeSource
	Capped   bool
	Accounts []solana.PublicKey
}

// FeeManager проходит по цепочке плагинов и возвращает первую ненулевую оценку.
type FeeManager struct {
	cfg     FeeConfig
	plugins []FeePlugin
	logger  *zap.Logger
	metrics *metrics.Collector
}

// NewFeeManager собирает цепочку плагинов из конфигурации.
func NewFeeManager(cfg FeeConfig, history FeeHistory, governor *rpc.Governor, logger *zap.Logger, m *metrics.Collector) *FeeManager {
	var plugins []FeePlugin
	if cfg.EnableDynamicFee && history != nil {
		plugins = append(plugins, NewDynamicFeePlugin(history, governor, cfg.Percentile, logger))
	}
	if cfg.EnableFixedFee {
		plugins = append(plugins, NewFixedFeePlugin(cfg.FixedFeeMicroUnits))
	}
	return NewFeeManagerWithPlugins(cfg, plugins, logger, m)
}

// NewFeeManagerWithPlugins создаёт менеджер с явно заданной цепочкой.
func NewFeeManagerWithPlugins(cfg FeeConfig, plugins []FeePlugin, logger *zap.Logger, m *metrics.Collector) *FeeManager {
	return &FeeManager{
		cfg:     cfg,
		plugins: plugins,
		logger:  logger.Named("fee-manager"),
		metrics: m,
	}
}

// Calculate рассчитывает приоритетную комиссию. Не возвращает ошибок:
// при отказе всех плагинов используется аварийное значение из конфигурации.
func (fm *FeeManager) Calculate(ctx context.Context, accounts ...solana.PublicKey) PriorityFeeResult {
	base, source := fm.estimateBase(ctx, accounts)

	fee := base
	if fm.cfg.ExtraFeePercentage != 0 {
		fee = uint64(math.Max(0, math.Round(float64(base)*(1+fm.cfg.ExtraFeePercentage/100))))
	}

	capped := false
	if fm.cfg.FeeHardCapMicroUnits > 0 && fee > fm.cfg.FeeHardCapMicroUnits {
		fm.logger.Warn("Priority fee capped",
			zap.Uint64("requested", fee),
			zap.Uint64("cap", fm.cfg.FeeHardCapMicroUnits),
			zap.String("source", string(source)))
		fee = fm.cfg.FeeHardCapMicroUnits
		capped = true
	}

	fm.metrics.RecordPriorityFee(string(source), fee, capped)
	fm.logger.Debug("Priority fee calculated",
		zap.Uint64("fee", fee),
		zap.Uint64("base_fee", base),
		zap.String("source", string(source)))

	return PriorityFeeResult{
		Fee:      fee,
		BaseFee:  base,
		Source:   source,
		Capped:   capped,
		Accounts: accounts,
	}
}

func (fm *FeeManager) estimateBase(ctx context.Context, accounts []solana.PublicKey) (uint64, FeeSource) {
	for _, p := range fm.plugins {
		fee, err := p.Estimate(ctx, accounts)
		if err != nil {
			fm.logger.Debug("Fee plugin failed, falling through",
				zap.String("plugin", p.Name()),
				zap.Error(err))
			continue
		}
		if fee > 0 {
			return fee, p.Source()
		}
	}

	fee := fm.cfg.EmergencyFeeMicroUnits
	if fee == 0 {
		fee = DefaultEmergencyFeeMicroUnits
	}
	fm.logger.Warn("All fee plugins failed, using emergency fee", zap.Uint64("fee", fee))
	return fee, FeeSourceFallback
}
