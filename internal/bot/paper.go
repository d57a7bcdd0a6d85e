// internal/bot/paper.go
package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pumpbot/internal/dex/pumpfun"
	"github.com/rovshanmuradov/pumpbot/internal/monitor"
	"github.com/rovshanmuradov/pumpbot/internal/transaction"
)

var (
	// ErrInvalidAmount - сумма сделки должна быть положительной
	ErrInvalidAmount = errors.New("trade amount must be positive")
	// ErrCurveComplete - кривая завершена, покупка на ней невозможна
	ErrCurveComplete = errors.New("bonding curve is complete")
)

// FeeCalculator - источник приоритетной комиссии. Реализуется *transaction.FeeManager.
type FeeCalculator interface {
	Calculate(ctx context.Context, accounts ...solana.PublicKey) transaction.PriorityFeeResult
}

// PaperExecutor исполняет сделки "на бумаге": по текущей цене кривой,
// без отправки транзакций. Комиссия рассчитывается и логируется так же,
// как для реальной сделки.
type PaperExecutor struct {
	prices       monitor.PriceSource
	fees         FeeCalculator
	computeUnits uint32
	logger       *zap.Logger
}

func NewPaperExecutor(prices monitor.PriceSource, fees FeeCalculator, computeUnits uint32, logger *zap.Logger) *PaperExecutor {
	if computeUnits == 0 {
		computeUnits = transaction.DefaultComputeUnits
	}
	return &PaperExecutor{
		prices:       prices,
		fees:         fees,
		computeUnits: computeUnits,
		logger:       logger.Named("paper-executor"),
	}
}

// ExecuteBuy "покупает" токены на solAmount по текущей цене.
func (e *PaperExecutor) ExecuteBuy(ctx context.Context, token monitor.TokenInfo, solAmount, slippagePct float64) TradeResult {
	if solAmount <= 0 {
		return TradeResult{Error: ErrInvalidAmount}
	}
	price, err := e.fill(ctx, token, "buy", slippagePct)
	if err != nil {
		return TradeResult{Error: err}
	}
	return TradeResult{
		Success:   true,
		Signature: paperSignature(),
		Price:     price,
		Quantity:  solAmount / price,
	}
}

// ExecuteSell "продаёт" quantity токенов по текущей цене.
func (e *PaperExecutor) ExecuteSell(ctx context.Context, token monitor.TokenInfo, quantity, slippagePct float64) TradeResult {
	if quantity <= 0 {
		return TradeResult{Error: ErrInvalidAmount}
	}
	price, err := e.fill(ctx, token, "sell", slippagePct)
	if err != nil {
		return TradeResult{Error: err}
	}
	return TradeResult{
		Success:   true,
		Signature: paperSignature(),
		Price:     price,
		Quantity:  quantity,
	}
}

func (e *PaperExecutor) fill(ctx context.Context, token monitor.TokenInfo, side string, slippagePct float64) (float64, error) {
	curve := token.BondingCurve
	if curve.IsZero() {
		derived, err := pumpfun.DeriveBondingCurve(token.Mint)
		if err != nil {
			return 0, err
		}
		curve = derived
	}

	cm, err := e.prices.CurrentPrice(ctx, token.Mint, curve)
	if err != nil {
		return 0, fmt.Errorf("paper %s: %w", side, err)
	}
	if cm.State != nil && cm.State.Complete {
		// после миграции продаём по последней цене кривой, иначе выход по graduation не закроется
		if side == "buy" {
			return 0, fmt.Errorf("paper %s %s: %w", side, curve, ErrCurveComplete)
		}
		e.logger.Warn("Bonding curve complete, filling at last curve price",
			zap.String("mint", token.Mint.String()),
			zap.Float64("price", cm.Price))
	}

	fee := e.fees.Calculate(ctx, curve)
	instructions := transaction.PriorityInstructions(fee, e.computeUnits)

	e.logger.Info("Paper fill",
		zap.String("side", side),
		zap.String("mint", token.Mint.String()),
		zap.Float64("price", cm.Price),
		zap.Float64("slippage_pct", slippagePct),
		zap.Uint64("priority_fee", fee.Fee),
		zap.String("fee_source", string(fee.Source)),
		zap.Bool("fee_capped", fee.Capped),
		zap.Int("budget_instructions", len(instructions)),
		zap.Uint64("priority_cost_lamports", transaction.TotalPriorityCostLamports(fee, e.computeUnits)))

	return cm.Price, nil
}

func paperSignature() string {
	return "paper-" + uuid.NewString()
}
