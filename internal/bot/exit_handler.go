// internal/bot/exit_handler.go
package bot

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/pumpbot/internal/events"
	"github.com/rovshanmuradov/pumpbot/internal/monitor"
)

// ErrSellFailed возвращается, если исполнитель не сообщил причину отказа
var ErrSellFailed = errors.New("sell failed")

// ExitHandler продаёт позицию по сигналу выхода и подтверждает закрытие
// менеджеру. При неудачной продаже позиция остаётся активной и её
// проверка возобновляется.
type ExitHandler struct {
	manager  *monitor.Manager
	executor Executor
	slippage float64
	logger   *zap.Logger

	sub events.Subscription
}

func NewExitHandler(manager *monitor.Manager, executor Executor, slippagePct float64, logger *zap.Logger) *ExitHandler {
	return &ExitHandler{
		manager:  manager,
		executor: executor,
		slippage: slippagePct,
		logger:   logger.Named("exit-handler"),
	}
}

// Attach подписывает обработчик на события выхода
func (h *ExitHandler) Attach() {
	if h.sub == nil {
		h.sub = h.manager.Subscribe(events.PositionExit, h)
	}
}

// Detach отписывает обработчик
func (h *ExitHandler) Detach() {
	if h.sub != nil {
		h.sub.Unsubscribe()
		h.sub = nil
	}
}

// Handle реализует events.Handler
func (h *ExitHandler) Handle(ctx context.Context, e events.Event) error {
	ev, ok := e.(monitor.PositionExitEvent)
	if !ok || ev.Position == nil || !ev.Position.IsActive() {
		return nil
	}

	snap := ev.Position.Snapshot()
	mint := snap.Token.Mint
	slippage := h.slippageFor(ev.Urgency)

	h.logger.Info("Selling position",
		zap.String("mint", mint.String()),
		zap.String("reason", string(ev.Reason)),
		zap.String("urgency", string(ev.Urgency)),
		zap.Float64("signal_price", ev.CurrentPrice),
		zap.Float64("slippage_pct", slippage))

	res := h.executor.ExecuteSell(ctx, snap.Token, snap.Quantity, slippage)
	if !res.Success {
		err := res.Error
		if err == nil {
			err = ErrSellFailed
		}
		h.logger.Warn("Sell failed, position stays active",
			zap.String("mint", mint.String()),
			zap.Error(err))

		if rerr := h.manager.ResumeMonitoring(mint); rerr != nil && !errors.Is(rerr, monitor.ErrManagerClosed) {
			h.logger.Debug("Monitoring not resumed",
				zap.String("mint", mint.String()),
				zap.Error(rerr))
		}
		return fmt.Errorf("sell %s: %w", mint, err)
	}

	price := res.Price
	if price <= 0 {
		price = ev.CurrentPrice
	}
	if !h.manager.ClosePosition(mint, price, ev.Reason, res.Signature) {
		h.logger.Debug("Position already closed", zap.String("mint", mint.String()))
	}
	return nil
}

// срочный выход допускает двойное проскальзывание
func (h *ExitHandler) slippageFor(u monitor.Urgency) float64 {
	if u == monitor.UrgencyHigh {
		return math.Min(100, h.slippage*2)
	}
	return h.slippage
}
