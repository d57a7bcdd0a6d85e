package monitor

import (
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testToken() TokenInfo {
	return TokenInfo{Mint: solana.NewWallet().PublicKey(), Symbol: "TEST"}
}

func TestNewPosition_Thresholds(t *testing.T) {
	p := NewPosition(testToken(), 2.0, 100, 1, ExitConfig{
		TakeProfitPercentage:       50,
		StopLossPercentage:         20,
		TrailingStopLossPercentage: 10,
	})

	s := p.Snapshot()
	assert.InDelta(t, 3.0, s.TakeProfitPrice, 1e-12)
	assert.InDelta(t, 1.6, s.StopLossPrice, 1e-12)
	assert.InDelta(t, 1.8, s.TrailingStopPrice, 1e-12)
	assert.Equal(t, 2.0, s.HighWaterMark)
	assert.True(t, s.IsActive)
	assert.Nil(t, s.Exit)
}

func TestEvaluateExit_Order(t *testing.T) {
	entry := time.Now()
	cfg := ExitConfig{TakeProfitPercentage: 50, StopLossPercentage: 20, MaxHoldTime: time.Minute}

	tests := []struct {
		name    string
		price   float64
		at      time.Duration
		exit    bool
		reason  ExitReason
		urgency Urgency
	}{
		{"hold", 1.2, time.Second, false, "", UrgencyLow},
		{"take profit", 1.5, time.Second, true, ExitTakeProfit, UrgencyHigh},
		{"stop loss", 0.8, time.Second, true, ExitStopLoss, UrgencyHigh},
		{"max hold", 1.2, time.Minute, true, ExitMaxHoldTime, UrgencyMedium},
		{"take profit beats max hold", 1.6, 2 * time.Minute, true, ExitTakeProfit, UrgencyHigh},
		{"stop loss beats max hold", 0.5, 2 * time.Minute, true, ExitStopLoss, UrgencyHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPositionAt(testToken(), 1.0, 1, 1, cfg, entry)
			d := p.EvaluateExitAt(tt.price, entry.Add(tt.at))
			assert.Equal(t, tt.exit, d.ShouldExit)
			assert.Equal(t, tt.reason, d.Reason)
			assert.Equal(t, tt.urgency, d.Urgency)
		})
	}
}

func TestEvaluateExit_TakeProfitReportedBeforeStopLoss(t *testing.T) {
	// misconfigured: stop loss above take profit
	p := NewPosition(testToken(), 1.0, 1, 1, ExitConfig{TakeProfitPercentage: 10, StopLossPercentage: -50})

	d := p.EvaluateExit(1.2)
	require.True(t, d.ShouldExit)
	assert.Equal(t, ExitTakeProfit, d.Reason)
}

func TestEvaluateExit_UnconfiguredThresholds(t *testing.T) {
	p := NewPosition(testToken(), 1.0, 1, 1, ExitConfig{})

	for _, price := range []float64{0.0001, 1, 1000} {
		assert.False(t, p.EvaluateExit(price).ShouldExit)
	}
}

func TestTrailingStop_NeverDecreases(t *testing.T) {
	p := NewPosition(testToken(), 1.0, 1, 1, ExitConfig{TrailingStopLossPercentage: 10})

	prev := p.Snapshot().TrailingStopPrice
	for _, price := range []float64{1.2, 1.1, 1.5, 1.4, 1.45, 2.0, 1.95, 0.5, 2.1} {
		p.UpdateTrailingStop(price)
		s := p.Snapshot()
		assert.GreaterOrEqual(t, s.TrailingStopPrice, prev, "price %v", price)
		prev = s.TrailingStopPrice
	}
	assert.InDelta(t, 2.1*0.9, prev, 1e-12)
	assert.Equal(t, 2.1, p.Snapshot().HighWaterMark)
}

func TestTrailingStop_ReportsStopLoss(t *testing.T) {
	p := NewPosition(testToken(), 1.0, 1, 1, ExitConfig{TrailingStopLossPercentage: 10, StopLossPercentage: 50})

	assert.False(t, p.EvaluateExit(2.0).ShouldExit)
	assert.False(t, p.EvaluateExit(1.85).ShouldExit)

	d := p.EvaluateExit(1.79)
	require.True(t, d.ShouldExit)
	assert.Equal(t, ExitStopLoss, d.Reason)
	assert.Equal(t, UrgencyHigh, d.Urgency)
}

func TestClose(t *testing.T) {
	p := NewPosition(testToken(), 1.0, 10, 10, ExitConfig{TakeProfitPercentage: 50})

	require.NoError(t, p.Close(1.4, ExitManual, "sig1"))
	assert.False(t, p.IsActive())
	assert.ErrorIs(t, p.Close(2.0, ExitTakeProfit, "sig2"), ErrPositionClosed)

	rec := p.Exit()
	require.NotNil(t, rec)
	assert.Equal(t, 1.4, rec.ExitPrice)
	assert.Equal(t, ExitManual, rec.Reason)
	assert.Equal(t, "sig1", rec.Signature)

	// закрытая позиция больше не меняется
	assert.False(t, p.EvaluateExit(5.0).ShouldExit)
	p.UpdateTrailingStop(5.0)
	assert.Equal(t, 1.0, p.Snapshot().HighWaterMark)
}

func TestComputePnL(t *testing.T) {
	p := NewPosition(testToken(), 1.0, 2, 1, ExitConfig{})

	pnl := p.ComputePnL(1.25)
	assert.InDelta(t, 0.25, pnl.PriceChange, 1e-12)
	assert.InDelta(t, 0.5, pnl.Unrealized, 1e-12)
	assert.InDelta(t, 50.0, pnl.ROIPercent, 1e-9)

	loss := p.ComputePnL(0.5)
	assert.InDelta(t, -50.0*2, loss.ROIPercent, 1e-9)
}
