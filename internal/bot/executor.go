// internal/bot/executor.go
package bot

import (
	"context"

	"github.com/rovshanmuradov/pumpbot/internal/monitor"
)

// TradeResult - результат исполнения сделки
type TradeResult struct {
	Success   bool
	Signature string
	Price     float64 // цена исполнения, SOL за токен
	Quantity  float64 // количество токенов (для покупки)
	Error     error
}

// Executor строит, подписывает и отправляет сделки. Монитор позиций
// не зависит от конкретной реализации.
type Executor interface {
	ExecuteBuy(ctx context.Context, token monitor.TokenInfo, solAmount, slippagePct float64) TradeResult
	ExecuteSell(ctx context.Context, token monitor.TokenInfo, quantity, slippagePct float64) TradeResult
}
