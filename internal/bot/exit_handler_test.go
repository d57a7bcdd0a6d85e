package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/pumpbot/internal/monitor"
)

func newTestManager(t *testing.T, prices monitor.PriceSource, interval time.Duration) *monitor.Manager {
	m := monitor.NewManager(monitor.ManagerConfig{
		PriceCheckInterval:   interval,
		EmergencyGracePeriod: 100 * time.Millisecond,
	}, prices, nil, zaptest.NewLogger(t), nil)
	t.Cleanup(func() { _ = m.Shutdown(context.Background(), false) })
	return m
}

func waitClosed(t *testing.T, pos *monitor.Position) {
	t.Helper()
	require.Eventually(t, func() bool { return !pos.IsActive() }, 2*time.Second, 5*time.Millisecond)
}

func TestExitHandler_SellsAndCloses(t *testing.T) {
	prices := &stubPrices{prices: []float64{1.6}}
	m := newTestManager(t, prices, 10*time.Millisecond)

	exec := new(MockExecutor)
	exec.On("ExecuteSell", mock.Anything, mock.Anything, 10.0, 2.0).
		Return(TradeResult{Success: true, Signature: "sig", Price: 1.58}).Once()

	h := NewExitHandler(m, exec, 1.0, zaptest.NewLogger(t))
	h.Attach()

	token := monitor.TokenInfo{Mint: solana.NewWallet().PublicKey()}
	pos, err := m.CreatePosition(token, 1.0, 10, 10, monitor.ExitConfig{TakeProfitPercentage: 50})
	require.NoError(t, err)

	waitClosed(t, pos)
	rec := pos.Exit()
	assert.Equal(t, 1.58, rec.ExitPrice)
	assert.Equal(t, monitor.ExitTakeProfit, rec.Reason)
	assert.Equal(t, "sig", rec.Signature)
	exec.AssertExpectations(t)
}

func TestExitHandler_FailedSellKeepsPolling(t *testing.T) {
	prices := &stubPrices{prices: []float64{0.5}}
	m := newTestManager(t, prices, 10*time.Millisecond)

	exec := new(MockExecutor)
	exec.On("ExecuteSell", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(TradeResult{Error: errors.New("blockhash expired")}).Once()
	exec.On("ExecuteSell", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(TradeResult{Success: true, Signature: "retry-sig"}).Once()

	h := NewExitHandler(m, exec, 1.0, zaptest.NewLogger(t))
	h.Attach()

	token := monitor.TokenInfo{Mint: solana.NewWallet().PublicKey()}
	pos, err := m.CreatePosition(token, 1.0, 1, 1, monitor.ExitConfig{StopLossPercentage: 20})
	require.NoError(t, err)

	waitClosed(t, pos)
	assert.Equal(t, "retry-sig", pos.Exit().Signature)
	// без цены исполнения используется цена сигнала
	assert.Equal(t, 0.5, pos.Exit().ExitPrice)
	exec.AssertNumberOfCalls(t, "ExecuteSell", 2)
}

func TestExitHandler_IgnoresClosedPositions(t *testing.T) {
	m := newTestManager(t, &stubPrices{prices: []float64{1}}, time.Hour)
	exec := new(MockExecutor)
	h := NewExitHandler(m, exec, 1.0, zaptest.NewLogger(t))

	pos := monitor.NewPosition(monitor.TokenInfo{Mint: solana.NewWallet().PublicKey()}, 1, 1, 1, monitor.ExitConfig{})
	require.NoError(t, pos.Close(1, monitor.ExitManual, ""))

	err := h.Handle(context.Background(), monitor.PositionExitEvent{Position: pos, Reason: monitor.ExitManual})
	assert.NoError(t, err)
	exec.AssertNotCalled(t, "ExecuteSell", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestExitHandler_SlippageByUrgency(t *testing.T) {
	h := &ExitHandler{slippage: 3}
	assert.Equal(t, 3.0, h.slippageFor(monitor.UrgencyMedium))
	assert.Equal(t, 6.0, h.slippageFor(monitor.UrgencyHigh))

	h.slippage = 80
	assert.Equal(t, 100.0, h.slippageFor(monitor.UrgencyHigh))
}
