// internal/transaction/fee_plugins.go
package transaction

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pumpbot/internal/blockchain/solbc/rpc"
)

// FeeSource - откуда взята базовая приоритетная комиссия
type FeeSource string

const (
	FeeSourceDynamic  FeeSource = "dynamic"
	FeeSourceFixed    FeeSource = "fixed"
	FeeSourceFallback FeeSource = "fallback"
)

// ErrNoFeeSamples - узел не вернул ни одного наблюдения
var ErrNoFeeSamples = errors.New("no recent prioritization fees")

// FeePlugin - одна ступень цепочки оценки комиссии. Результат 0 или
// ошибка передают управление следующей ступени.
type FeePlugin interface {
	Name() string
	Source() FeeSource
	Estimate(ctx context.Context, accounts []solana.PublicKey) (uint64, error)
}

// FeeHistory отдаёт недавние приоритетные комиссии. Реализуется *solbc.Client.
type FeeHistory interface {
	GetRecentPrioritizationFees(ctx context.Context, accounts []solana.PublicKey) ([]uint64, error)
}

// DynamicFeePlugin оценивает комиссию по перцентилю недавних наблюдений.
type DynamicFeePlugin struct {
	history    FeeHistory
	governor   *rpc.Governor
	percentile float64
	logger     *zap.Logger
}

// NewDynamicFeePlugin создаёт плагин динамической комиссии
func NewDynamicFeePlugin(history FeeHistory, governor *rpc.Governor, percentile float64, logger *zap.Logger) *DynamicFeePlugin {
	if percentile <= 0 || percentile > 100 {
		percentile = DefaultFeePercentile
	}
	return &DynamicFeePlugin{
		history:    history,
		governor:   governor,
		percentile: percentile,
		logger:     logger.Named("dynamic-fee"),
	}
}

func (p *DynamicFeePlugin) Name() string      { return "dynamic" }
func (p *DynamicFeePlugin) Source() FeeSource { return FeeSourceDynamic }

// Estimate запрашивает недавние комиссии через governor и берёт перцентиль.
func (p *DynamicFeePlugin) Estimate(ctx context.Context, accounts []solana.PublicKey) (uint64, error) {
	fees, err := rpc.Schedule(ctx, p.governor, "getRecentPrioritizationFees", func(ctx context.Context) ([]uint64, error) {
		return p.history.GetRecentPrioritizationFees(ctx, accounts)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get recent prioritization fees: %w", err)
	}

	fee, ok := Percentile(fees, p.percentile)
	if !ok {
		return 0, ErrNoFeeSamples
	}

	p.logger.Debug("Estimated dynamic priority fee",
		zap.Int("samples", len(fees)),
		zap.Float64("percentile", p.percentile),
		zap.Uint64("fee", fee))
	return fee, nil
}

// FixedFeePlugin всегда возвращает заданную комиссию.
type FixedFeePlugin struct {
	fee uint64
}

func NewFixedFeePlugin(fee uint64) *FixedFeePlugin {
	return &FixedFeePlugin{fee: fee}
}

func (p *FixedFeePlugin) Name() string      { return "fixed" }
func (p *FixedFeePlugin) Source() FeeSource { return FeeSourceFixed }

func (p *FixedFeePlugin) Estimate(context.Context, []solana.PublicKey) (uint64, error) {
	return p.fee, nil
}
