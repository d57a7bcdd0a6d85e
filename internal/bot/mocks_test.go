package bot

import (
	"context"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/mock"

	"github.com/rovshanmuradov/pumpbot/internal/dex/pumpfun"
	"github.com/rovshanmuradov/pumpbot/internal/monitor"
	"github.com/rovshanmuradov/pumpbot/internal/transaction"
)

// MockExecutor реализует Executor
type MockExecutor struct {
	mock.Mock
}

func (m *MockExecutor) ExecuteBuy(ctx context.Context, token monitor.TokenInfo, solAmount, slippagePct float64) TradeResult {
	args := m.Called(ctx, token, solAmount, slippagePct)
	return args.Get(0).(TradeResult)
}

func (m *MockExecutor) ExecuteSell(ctx context.Context, token monitor.TokenInfo, quantity, slippagePct float64) TradeResult {
	args := m.Called(ctx, token, quantity, slippagePct)
	return args.Get(0).(TradeResult)
}

// stubPrices отдаёт цены из последовательности, повторяя последнюю
type stubPrices struct {
	mu     sync.Mutex
	prices   []float64
	calls    int
	err      error
	complete bool
}

func (s *stubPrices) CurrentPrice(context.Context, solana.PublicKey, solana.PublicKey) (*pumpfun.CurveMetrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	i := min(s.calls, len(s.prices)-1)
	s.calls++
	return &pumpfun.CurveMetrics{State: &pumpfun.CurveState{Complete: s.complete}, Price: s.prices[i]}, nil
}

type fixedFees uint64

func (f fixedFees) Calculate(_ context.Context, accounts ...solana.PublicKey) transaction.PriorityFeeResult {
	return transaction.PriorityFeeResult{Fee: uint64(f), BaseFee: uint64(f), Source: transaction.FeeSourceFixed, Accounts: accounts}
}
