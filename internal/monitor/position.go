// internal/monitor/position.go
package monitor

import (
	"errors"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
)

// ExitReason - причина выхода из позиции
type ExitReason string

const (
	ExitTakeProfit   ExitReason = "take_profit"
	ExitStopLoss     ExitReason = "stop_loss"
	ExitMaxHoldTime  ExitReason = "max_hold_time"
	ExitManual       ExitReason = "manual"
	ExitGraduation   ExitReason = "graduation"
	ExitLowLiquidity ExitReason = "low_liquidity"
)

// Urgency - срочность сигнала на выход
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// ErrPositionClosed возвращается при попытке закрыть уже закрытую позицию
var ErrPositionClosed = errors.New("position already closed")

// TokenInfo описывает токен позиции
type TokenInfo struct {
	Mint         solana.PublicKey
	BondingCurve solana.PublicKey // может быть пустым, тогда вычисляется из Mint
	Symbol       string
	Name         string
}

// ExitConfig задаёт пороги выхода. Проценты указываются в процентах
// (50 означает 50%), нулевое значение отключает соответствующее правило.
type ExitConfig struct {
	TakeProfitPercentage       float64
	StopLossPercentage         float64
	TrailingStopLossPercentage float64
	MaxHoldTime                time.Duration

	ExitOnGraduation bool
	MinLiquiditySol  float64
}

// ExitDecision - результат EvaluateExit
type ExitDecision struct {
	ShouldExit bool
	Reason     ExitReason
	Urgency    Urgency
}

// ExitRecord хранит данные закрытия. Наличие записи означает, что позиция закрыта.
type ExitRecord struct {
	ExitPrice float64
	Reason    ExitReason
	Signature string
	ExitTime  time.Time
}

// PnL - прибыль/убыток при заданной цене
type PnL struct {
	PriceChange float64
	Unrealized  float64 // в SOL
	ROIPercent  float64
}

// Position - одна открытая (или закрытая) сделка. Методы безопасны для
// конкурентного чтения; изменять позицию должен один владелец.
type Position struct {
	mu sync.RWMutex

	token       TokenInfo
	entryPrice  float64
	quantity    float64
	solInvested float64
	entryTime   time.Time
	cfg         ExitConfig

	takeProfitPrice   float64
	stopLossPrice     float64
	trailingStopPrice float64
	highWaterMark     float64

	exit *ExitRecord
}

// NewPosition создаёт активную позицию и вычисляет пороги из процентов.
func NewPosition(token TokenInfo, entryPrice, quantity, solInvested float64, cfg ExitConfig) *Position {
	return newPositionAt(token, entryPrice, quantity, solInvested, cfg, time.Now())
}

func newPositionAt(token TokenInfo, entryPrice, quantity, solInvested float64, cfg ExitConfig, now time.Time) *Position {
	p := &Position{
		token:         token,
		entryPrice:    entryPrice,
		quantity:      quantity,
		solInvested:   solInvested,
		entryTime:     now,
		cfg:           cfg,
		highWaterMark: entryPrice,
	}
	if cfg.TakeProfitPercentage != 0 {
		p.takeProfitPrice = entryPrice * (1 + cfg.TakeProfitPercentage/100)
	}
	if cfg.StopLossPercentage != 0 {
		p.stopLossPrice = entryPrice * (1 - cfg.StopLossPercentage/100)
	}
	if cfg.TrailingStopLossPercentage > 0 {
		p.trailingStopPrice = entryPrice * (1 - cfg.TrailingStopLossPercentage/100)
	}
	return p
}

// EvaluateExit проверяет условия выхода при текущей цене.
func (p *Position) EvaluateExit(price float64) ExitDecision {
	return p.EvaluateExitAt(price, time.Now())
}

// EvaluateExitAt - EvaluateExit с явным текущим временем.
// Порядок проверок фиксирован, срабатывает первое совпадение.
func (p *Position) EvaluateExitAt(price float64, now time.Time) ExitDecision {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.exit != nil {
		return ExitDecision{Urgency: UrgencyLow}
	}

	p.updateTrailingStopLocked(price)

	switch {
	case p.takeProfitPrice > 0 && price >= p.takeProfitPrice:
		return ExitDecision{ShouldExit: true, Reason: ExitTakeProfit, Urgency: UrgencyHigh}
	case p.stopLossPrice > 0 && price <= p.stopLossPrice:
		return ExitDecision{ShouldExit: true, Reason: ExitStopLoss, Urgency: UrgencyHigh}
	case p.trailingStopPrice > 0 && price <= p.trailingStopPrice:
		return ExitDecision{ShouldExit: true, Reason: ExitStopLoss, Urgency: UrgencyHigh}
	case p.cfg.MaxHoldTime > 0 && now.Sub(p.entryTime) >= p.cfg.MaxHoldTime:
		return ExitDecision{ShouldExit: true, Reason: ExitMaxHoldTime, Urgency: UrgencyMedium}
	}
	return ExitDecision{Urgency: UrgencyLow}
}

// UpdateTrailingStop обновляет максимум цены и трейлинг-стоп.
func (p *Position) UpdateTrailingStop(price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.exit != nil {
		return
	}
	p.updateTrailingStopLocked(price)
}

// трейлинг-стоп только растёт
func (p *Position) updateTrailingStopLocked(price float64) {
	if price <= p.highWaterMark {
		return
	}
	p.highWaterMark = price
	if p.cfg.TrailingStopLossPercentage <= 0 {
		return
	}
	if stop := price * (1 - p.cfg.TrailingStopLossPercentage/100); stop > p.trailingStopPrice {
		p.trailingStopPrice = stop
	}
}

// Close переводит позицию в закрытое состояние.
func (p *Position) Close(exitPrice float64, reason ExitReason, signature string) error {
	return p.closeAt(exitPrice, reason, signature, time.Now())
}

func (p *Position) closeAt(exitPrice float64, reason ExitReason, signature string, now time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.exit != nil {
		return ErrPositionClosed
	}
	p.exit = &ExitRecord{
		ExitPrice: exitPrice,
		Reason:    reason,
		Signature: signature,
		ExitTime:  now,
	}
	return nil
}

// ComputePnL считает PnL при явно переданной цене.
func (p *Position) ComputePnL(price float64) PnL {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return computePnL(p.entryPrice, p.quantity, p.solInvested, price)
}

func computePnL(entryPrice, quantity, solInvested, price float64) PnL {
	change := price - entryPrice
	unrealized := change * quantity
	var roi float64
	if solInvested > 0 {
		roi = unrealized / solInvested * 100
	}
	return PnL{PriceChange: change, Unrealized: unrealized, ROIPercent: roi}
}

// IsActive сообщает, открыта ли позиция
func (p *Position) IsActive() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.exit == nil
}

// Mint возвращает адрес токена
func (p *Position) Mint() solana.PublicKey {
	return p.token.Mint
}

// Token возвращает описание токена
func (p *Position) Token() TokenInfo {
	return p.token
}

// EntryPrice возвращает цену входа
func (p *Position) EntryPrice() float64 {
	return p.entryPrice
}

// Config возвращает пороги выхода
func (p *Position) Config() ExitConfig {
	return p.cfg
}

// Exit возвращает копию записи о закрытии или nil для активной позиции.
func (p *Position) Exit() *ExitRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.exit == nil {
		return nil
	}
	rec := *p.exit
	return &rec
}

// Snapshot - неизменяемая копия состояния позиции
type Snapshot struct {
	Token             TokenInfo
	EntryPrice        float64
	Quantity          float64
	SolInvested       float64
	EntryTime         time.Time
	TakeProfitPrice   float64
	StopLossPrice     float64
	TrailingStopPrice float64
	HighWaterMark     float64
	MaxHoldTime       time.Duration
	IsActive          bool
	Exit              *ExitRecord
}

// Snapshot возвращает согласованную копию состояния
func (p *Position) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := Snapshot{
		Token:             p.token,
		EntryPrice:        p.entryPrice,
		Quantity:          p.quantity,
		SolInvested:       p.solInvested,
		EntryTime:         p.entryTime,
		TakeProfitPrice:   p.takeProfitPrice,
		StopLossPrice:     p.stopLossPrice,
		TrailingStopPrice: p.trailingStopPrice,
		HighWaterMark:     p.highWaterMark,
		MaxHoldTime:       p.cfg.MaxHoldTime,
		IsActive:          p.exit == nil,
	}
	if p.exit != nil {
		rec := *p.exit
		s.Exit = &rec
	}
	return s
}

// PnL считает PnL снимка при заданной цене
func (s Snapshot) PnL(price float64) PnL {
	return computePnL(s.EntryPrice, s.Quantity, s.SolInvested, price)
}
