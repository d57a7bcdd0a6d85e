// internal/monitor/manager.go
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pumpbot/internal/dex/pumpfun"
	"github.com/rovshanmuradov/pumpbot/internal/events"
	"github.com/rovshanmuradov/pumpbot/internal/utils/metrics"
)

const (
	DefaultPriceCheckInterval   = 10 * time.Second
	DefaultEmergencyGracePeriod = 10 * time.Second

	gracePollInterval = 50 * time.Millisecond
)

var (
	ErrManagerClosed     = errors.New("position manager is shut down")
	ErrPositionExists    = errors.New("active position already exists")
	ErrPositionNotFound  = errors.New("position not found")
	ErrInvalidEntryPrice = errors.New("entry price must be positive")
)

// PriceSource отдаёт текущее состояние кривой токена.
// Реализуется *pumpfun.CurveManager.
type PriceSource interface {
	CurrentPrice(ctx context.Context, mint, curve solana.PublicKey) (*pumpfun.CurveMetrics, error)
}

var _ PriceSource = (*pumpfun.CurveManager)(nil)

// ManagerConfig - параметры менеджера позиций
type ManagerConfig struct {
	PriceCheckInterval   time.Duration
	EmergencyGracePeriod time.Duration
}

// DefaultManagerConfig возвращает конфигурацию по умолчанию
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		PriceCheckInterval:   DefaultPriceCheckInterval,
		EmergencyGracePeriod: DefaultEmergencyGracePeriod,
	}
}

// tracked - позиция вместе с состоянием её периодической проверки
type tracked struct {
	pos *Position

	// cancel != nil, пока проверка запущена. Защищено Manager.mu.
	cancel context.CancelFunc

	mu            sync.Mutex
	lastPrice     float64
	peakLiquidity float64
}

func (t *tracked) observe(price, realSol float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastPrice = price
	if realSol > t.peakLiquidity {
		t.peakLiquidity = realSol
	}
}

// lastKnownPrice - последняя наблюдавшаяся цена или цена входа
func (t *tracked) lastKnownPrice() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lastPrice > 0 {
		return t.lastPrice
	}
	return t.pos.EntryPrice()
}

// Manager владеет позициями и для каждой активной независимо опрашивает
// цену и проверяет условия выхода.
type Manager struct {
	cfg     ManagerConfig
	prices  PriceSource
	bus     *events.Bus
	logger  *zap.Logger
	metrics *metrics.Collector

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.RWMutex
	positions map[solana.PublicKey]*tracked
	all       []*Position
	closed    bool

	shutdownOnce sync.Once
}

// NewManager создаёт менеджер позиций
func NewManager(cfg ManagerConfig, prices PriceSource, bus *events.Bus, logger *zap.Logger, m *metrics.Collector) *Manager {
	if cfg.PriceCheckInterval <= 0 {
		cfg.PriceCheckInterval = DefaultPriceCheckInterval
	}
	if cfg.EmergencyGracePeriod <= 0 {
		cfg.EmergencyGracePeriod = DefaultEmergencyGracePeriod
	}
	logger = logger.Named("position-manager")
	if bus == nil {
		bus = events.NewBus(logger, events.DefaultBufferSize)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:       cfg,
		prices:    prices,
		bus:       bus,
		logger:    logger,
		metrics:   m,
		ctx:       ctx,
		cancel:    cancel,
		positions: make(map[solana.PublicKey]*tracked),
	}
}

// Subscribe подписывает обработчик на события менеджера
func (m *Manager) Subscribe(eventType events.EventType, handler events.Handler) events.Subscription {
	return m.bus.Subscribe(eventType, handler)
}

// CreatePosition регистрирует новую позицию и запускает её проверку.
func (m *Manager) CreatePosition(token TokenInfo, entryPrice, quantity, solInvested float64, cfg ExitConfig) (*Position, error) {
	if entryPrice <= 0 {
		return nil, ErrInvalidEntryPrice
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}
	if existing, ok := m.positions[token.Mint]; ok && existing.pos.IsActive() {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrPositionExists, token.Mint)
	}

	pos := NewPosition(token, entryPrice, quantity, solInvested, cfg)
	t := &tracked{pos: pos}
	m.positions[token.Mint] = t
	m.all = append(m.all, pos)
	m.startCheckLocked(t)
	m.mu.Unlock()

	m.metrics.SetActivePositions(m.activeCount())
	snap := pos.Snapshot()
	m.logger.Info("Position opened",
		zap.String("mint", token.Mint.String()),
		zap.String("symbol", token.Symbol),
		zap.Float64("entry_price", entryPrice),
		zap.Float64("quantity", quantity),
		zap.Float64("sol_invested", solInvested),
		zap.Float64("take_profit_price", snap.TakeProfitPrice),
		zap.Float64("stop_loss_price", snap.StopLossPrice))

	_ = m.bus.Publish(PositionOpenedEvent{
		BaseEvent: events.NewBaseEvent(events.PositionOpened),
		Position:  snap,
	})
	return pos, nil
}

// startCheckLocked запускает периодическую проверку. Вызывается под m.mu.
func (m *Manager) startCheckLocked(t *tracked) {
	ctx, cancel := context.WithCancel(m.ctx)
	t.cancel = cancel

	m.wg.Add(1)
	go m.runChecks(ctx, t)
}

// stopCheckLocked останавливает проверку; no-op, если она не запущена.
func (m *Manager) stopCheckLocked(t *tracked) {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

func (m *Manager) stopCheck(t *tracked) {
	m.mu.Lock()
	m.stopCheckLocked(t)
	m.mu.Unlock()
}

// claimExit останавливает проверку, если её ещё никто не остановил.
// false означает, что позицию уже закрывают или выводят снаружи
// (ClosePosition, EmergencyCloseAllPositions), и сигнал не нужен.
func (m *Manager) claimExit(ctx context.Context, t *tracked) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	m.stopCheckLocked(t)
	return true
}

func (m *Manager) runChecks(ctx context.Context, t *tracked) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.PriceCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if done := m.check(ctx, t); done {
				return
			}
		}
	}
}

// check выполняет одну проверку. Возвращает true, если проверку позиции
// нужно прекратить.
func (m *Manager) check(ctx context.Context, t *tracked) bool {
	pos := t.pos
	if !pos.IsActive() {
		return true
	}
	token := pos.Token()

	cm, err := m.prices.CurrentPrice(ctx, token.Mint, token.BondingCurve)
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		m.metrics.RecordPriceCheck("error")
		if errors.Is(err, pumpfun.ErrNoData) || isDecodeError(err) {
			m.logger.Debug("No price available, skipping cycle",
				zap.String("mint", token.Mint.String()),
				zap.Error(err))
		} else {
			m.logger.Warn("Price fetch failed, skipping cycle",
				zap.String("mint", token.Mint.String()),
				zap.Error(err))
		}
		return false
	}
	if ctx.Err() != nil {
		return true
	}

	m.metrics.RecordPriceCheck("ok")
	t.observe(cm.Price, cm.RealSol)

	decision := pos.EvaluateExit(cm.Price)
	if !decision.ShouldExit {
		decision = m.guardExit(t, cm)
	}
	if decision.ShouldExit {
		if m.claimExit(ctx, t) {
			m.signalExit(m.ctx, t, cm.Price, decision)
		}
		return true
	}

	_ = m.bus.Publish(newPriceUpdateEvent(pos.Snapshot(), cm.Price, cm.Progress, cm.MarketCap))
	return false
}

// guardExit проверяет состояние кривой: миграцию и падение ликвидности.
func (m *Manager) guardExit(t *tracked, cm *pumpfun.CurveMetrics) ExitDecision {
	cfg := t.pos.Config()

	if cfg.ExitOnGraduation && cm.State != nil && cm.State.Complete {
		return ExitDecision{ShouldExit: true, Reason: ExitGraduation, Urgency: UrgencyHigh}
	}

	if cfg.MinLiquiditySol > 0 {
		t.mu.Lock()
		peak := t.peakLiquidity
		t.mu.Unlock()
		if peak >= cfg.MinLiquiditySol && cm.RealSol < cfg.MinLiquiditySol {
			return ExitDecision{ShouldExit: true, Reason: ExitLowLiquidity, Urgency: UrgencyHigh}
		}
	}

	return ExitDecision{Urgency: UrgencyLow}
}

// signalExit синхронно доставляет сигнал выхода всем подписчикам.
func (m *Manager) signalExit(ctx context.Context, t *tracked, price float64, d ExitDecision) {
	mint := t.pos.Mint()
	m.metrics.RecordExit(string(d.Reason))
	m.logger.Info("Exit signal",
		zap.String("mint", mint.String()),
		zap.String("reason", string(d.Reason)),
		zap.String("urgency", string(d.Urgency)),
		zap.Float64("price", price),
		zap.Float64("roi_percent", t.pos.ComputePnL(price).ROIPercent))

	if err := m.bus.PublishSync(ctx, newExitEvent(t.pos, price, d)); err != nil {
		m.logger.Warn("Exit handlers reported errors",
			zap.String("mint", mint.String()),
			zap.Error(err))
	}
}

// ClosePosition фиксирует подтверждённую продажу. Возвращает false, если
// позиция неизвестна или уже закрыта. Не ждёт завершения проверки, поэтому
// может вызываться из обработчика события выхода.
func (m *Manager) ClosePosition(mint solana.PublicKey, exitPrice float64, reason ExitReason, signature string) bool {
	m.mu.Lock()
	t, ok := m.positions[mint]
	if !ok {
		m.mu.Unlock()
		return false
	}
	m.stopCheckLocked(t)
	m.mu.Unlock()

	if err := t.pos.Close(exitPrice, reason, signature); err != nil {
		m.logger.Debug("Close ignored",
			zap.String("mint", mint.String()),
			zap.Error(err))
		return false
	}

	m.metrics.SetActivePositions(m.activeCount())
	snap := t.pos.Snapshot()
	pnl := snap.PnL(exitPrice)
	m.logger.Info("Position closed",
		zap.String("mint", mint.String()),
		zap.String("reason", string(reason)),
		zap.Float64("exit_price", exitPrice),
		zap.Float64("pnl_sol", pnl.Unrealized),
		zap.Float64("roi_percent", pnl.ROIPercent),
		zap.String("signature", signature))

	_ = m.bus.Publish(PositionClosedEvent{
		BaseEvent: events.NewBaseEvent(events.PositionClosed),
		Position:  snap,
		PnL:       pnl,
	})
	return true
}

// ResumeMonitoring возобновляет проверку активной позиции, например после
// неудачной продажи. Если проверка уже идёт, ничего не делает.
func (m *Manager) ResumeMonitoring(mint solana.PublicKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrManagerClosed
	}
	t, ok := m.positions[mint]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPositionNotFound, mint)
	}
	if !t.pos.IsActive() {
		return ErrPositionClosed
	}
	if t.cancel != nil {
		return nil
	}

	m.logger.Info("Resuming monitoring", zap.String("mint", mint.String()))
	m.startCheckLocked(t)
	return nil
}

// EmergencyCloseAllPositions рассылает сигнал ручного выхода по всем активным
// позициям, ждёт их закрытия не дольше EmergencyGracePeriod и закрывает
// оставшиеся локально по последней известной цене. Обработчики получают
// контекст с тем же дедлайном и не задерживают возврат.
func (m *Manager) EmergencyCloseAllPositions(ctx context.Context) {
	active := m.activeTracked()
	if len(active) == 0 {
		return
	}
	m.logger.Warn("Emergency close of all positions",
		zap.Int("count", len(active)),
		zap.Duration("grace_period", m.cfg.EmergencyGracePeriod))

	graceCtx, cancel := context.WithTimeout(ctx, m.cfg.EmergencyGracePeriod)
	defer cancel()

	for _, t := range active {
		m.stopCheck(t)
		go func() {
			price := m.emergencyPrice(graceCtx, t)
			m.signalExit(graceCtx, t, price, ExitDecision{ShouldExit: true, Reason: ExitManual, Urgency: UrgencyHigh})
		}()
	}

	m.awaitCloses(graceCtx, active)

	for _, t := range active {
		if !t.pos.IsActive() {
			continue
		}
		price := t.lastKnownPrice()
		m.logger.Warn("Force closing position after grace period",
			zap.String("mint", t.pos.Mint().String()),
			zap.Float64("price", price))
		m.ClosePosition(t.pos.Mint(), price, ExitManual, "")
	}
}

func (m *Manager) emergencyPrice(ctx context.Context, t *tracked) float64 {
	token := t.pos.Token()
	cm, err := m.prices.CurrentPrice(ctx, token.Mint, token.BondingCurve)
	if err != nil {
		m.logger.Debug("Emergency price fetch failed, using last known price",
			zap.String("mint", token.Mint.String()),
			zap.Error(err))
		return t.lastKnownPrice()
	}
	t.observe(cm.Price, cm.RealSol)
	return cm.Price
}

// awaitCloses ждёт, пока все позиции закроются или истечёт ctx.
func (m *Manager) awaitCloses(ctx context.Context, positions []*tracked) {
	poll := time.NewTicker(min(gracePollInterval, m.cfg.EmergencyGracePeriod))
	defer poll.Stop()

	for {
		open := 0
		for _, t := range positions {
			if t.pos.IsActive() {
				open++
			}
		}
		if open == 0 {
			return
		}

		select {
		case <-ctx.Done():
			m.logger.Warn("Grace period expired", zap.Int("still_open", open))
			return
		case <-poll.C:
		}
	}
}

// Shutdown останавливает менеджер. При forceClose сначала выполняется
// EmergencyCloseAllPositions. Повторные вызовы ничего не делают.
func (m *Manager) Shutdown(ctx context.Context, forceClose bool) error {
	first := false
	m.shutdownOnce.Do(func() { first = true })
	if !first {
		return nil
	}

	m.logger.Info("Shutting down position manager", zap.Bool("force_close", forceClose))

	if forceClose {
		m.EmergencyCloseAllPositions(ctx)
	}

	m.mu.Lock()
	m.closed = true
	for _, t := range m.positions {
		m.stopCheckLocked(t)
	}
	m.mu.Unlock()
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	m.bus.UnsubscribeAll()
	return errors.Join(err, m.bus.Shutdown(ctx))
}

// GetActivePositions возвращает открытые позиции
func (m *Manager) GetActivePositions() []*Position {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Position, 0, len(m.positions))
	for _, p := range m.all {
		if p.IsActive() {
			out = append(out, p)
		}
	}
	return out
}

// GetAllPositions возвращает все позиции в порядке открытия
func (m *Manager) GetAllPositions() []*Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Position, len(m.all))
	copy(out, m.all)
	return out
}

// GetPosition возвращает последнюю позицию по минту
func (m *Manager) GetPosition(mint solana.PublicKey) (*Position, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.positions[mint]
	if !ok {
		return nil, false
	}
	return t.pos, true
}

func (m *Manager) activeTracked() []*tracked {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*tracked
	for _, t := range m.positions {
		if t.pos.IsActive() {
			out = append(out, t)
		}
	}
	return out
}

func (m *Manager) activeCount() int {
	return len(m.activeTracked())
}

func isDecodeError(err error) bool {
	var decErr *pumpfun.DecodeError
	return errors.As(err, &decErr) || errors.Is(err, pumpfun.ErrInvalidReserves)
}
