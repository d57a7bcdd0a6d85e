// internal/monitor/events.go
package monitor

import (
	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/pumpbot/internal/events"
)

// PositionExitEvent - сигнал исполнителю продать позицию
type PositionExitEvent struct {
	events.BaseEvent
	Position     *Position
	CurrentPrice float64
	Reason       ExitReason
	Urgency      Urgency
}

// PriceUpdateEvent публикуется после каждой проверки без сигнала на выход
type PriceUpdateEvent struct {
	events.BaseEvent
	TokenAddress solana.PublicKey
	CurrentPrice float64
	EntryPrice   float64
	PnL          float64 // в SOL
	PnLPercent   float64
	Quantity     float64
	SolInvested  float64
	Progress     float64
	MarketCap    float64
}

// PositionOpenedEvent публикуется при создании позиции
type PositionOpenedEvent struct {
	events.BaseEvent
	Position Snapshot
}

// PositionClosedEvent публикуется после подтверждённого закрытия
type PositionClosedEvent struct {
	events.BaseEvent
	Position Snapshot
	PnL      PnL
}

func newExitEvent(p *Position, price float64, d ExitDecision) PositionExitEvent {
	return PositionExitEvent{
		BaseEvent:    events.NewBaseEvent(events.PositionExit),
		Position:     p,
		CurrentPrice: price,
		Reason:       d.Reason,
		Urgency:      d.Urgency,
	}
}

func newPriceUpdateEvent(s Snapshot, price, progress, marketCap float64) PriceUpdateEvent {
	pnl := s.PnL(price)
	return PriceUpdateEvent{
		BaseEvent:    events.NewBaseEvent(events.PriceUpdated),
		TokenAddress: s.Token.Mint,
		CurrentPrice: price,
		EntryPrice:   s.EntryPrice,
		PnL:          pnl.Unrealized,
		PnLPercent:   pnl.ROIPercent,
		Quantity:     s.Quantity,
		SolInvested:  s.SolInvested,
		Progress:     progress,
		MarketCap:    marketCap,
	}
}
