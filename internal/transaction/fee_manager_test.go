package transaction

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

	"github.com/rovshanmuradov/pumpbot/internal/blockchain/solbc/rpc"
	"github.com/rovshanmuradov/pumpbot/internal/utils/metrics"
)

// MockFeeHistory реализует FeeHistory
type MockFeeHistory struct {
	mock.Mock
}

func (m *MockFeeHistory) GetRecentPrioritizationFees(ctx context.Context, accounts []solana.PublicKey) ([]uint64, error) {
	args := m.Called(ctx, accounts)
	fees, _ := args.Get(0).([]uint64)
	return fees, args.Error(1)
}

func newTestFeeManager(t *testing.T, cfg FeeConfig, history FeeHistory) *FeeManager {
	logger := zaptest.NewLogger(t)
	gov := rpc.NewGovernor(rpc.GovernorConfig{RetryDelay: time.Millisecond, MaxRetries: 1}, logger, nil)
	return NewFeeManager(cfg, history, gov, logger, metrics.NewCollector(nil))
}

func TestFeeManager_DynamicFee(t *testing.T) {
	history := new(MockFeeHistory)
	history.On("GetRecentPrioritizationFees", mock.Anything, mock.Anything).Return([]uint64{1000, 2000, 3000, 4000, 5000}, nil)

	fm := newTestFeeManager(t, DefaultFeeConfig(), history)
	res := fm.Calculate(context.Background())

	assert.Equal(t, FeeSourceDynamic, res.Source)
	assert.Equal(t, uint64(3800), res.Fee)
	assert.False(t, res.Capped)
}

func TestFeeManager_ScopesToAccounts(t *testing.T) {
	curve := solana.NewWallet().PublicKey()
	history := new(MockFeeHistory)
	history.On("GetRecentPrioritizationFees", mock.Anything, []solana.PublicKey{curve}).Return([]uint64{42}, nil).Once()

	fm := newTestFeeManager(t, DefaultFeeConfig(), history)
	res := fm.Calculate(context.Background(), curve)

	assert.Equal(t, uint64(42), res.Fee)
	assert.Equal(t, []solana.PublicKey{curve}, res.Accounts)
	history.AssertExpectations(t)
}

func TestFeeManager_FallsBackToFixed(t *testing.T) {
	tests := []struct {
		name string
		fees []uint64
		err  error
	}{
		{"rpc error", nil, errors.New("connection refused")},
		{"no samples", []uint64{}, nil},
		{"all zero", []uint64{0, 0, 0}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			history := new(MockFeeHistory)
			history.On("GetRecentPrioritizationFees", mock.Anything, mock.Anything).Return(tt.fees, tt.err)

			fm := newTestFeeManager(t, DefaultFeeConfig(), history)
			res := fm.Calculate(context.Background())

			assert.Equal(t, FeeSourceFixed, res.Source)
			assert.Equal(t, uint64(DefaultFixedFeeMicroUnits), res.Fee)
		})
	}
}

func TestFeeManager_EmergencyFallback(t *testing.T) {
	history := new(MockFeeHistory)
	history.On("GetRecentPrioritizationFees", mock.Anything, mock.Anything).Return(nil, errors.New("boom"))

	cfg := DefaultFeeConfig()
	cfg.EnableFixedFee = false

	fm := newTestFeeManager(t, cfg, history)
	res := fm.Calculate(context.Background())

	assert.Equal(t, FeeSourceFallback, res.Source)
	assert.Equal(t, uint64(DefaultEmergencyFeeMicroUnits), res.Fee)
}

func TestFeeManager_EmergencyFeeIsConfigurable(t *testing.T) {
	cfg := DefaultFeeConfig()
	cfg.EnableDynamicFee = false
	cfg.EnableFixedFee = false
	cfg.EmergencyFeeMicroUnits = 75_000

	fm := newTestFeeManager(t, cfg, nil)
	res := fm.Calculate(context.Background())

	assert.Equal(t, FeeSourceFallback, res.Source)
	assert.Equal(t, uint64(75_000), res.Fee)
}

func TestFeeManager_ExtraPercentageAndCap(t *testing.T) {
	cfg := DefaultFeeConfig()
	cfg.EnableDynamicFee = false
	cfg.FixedFeeMicroUnits = 100_000
	cfg.ExtraFeePercentage = 10

	fm := newTestFeeManager(t, cfg, nil)
	res := fm.Calculate(context.Background())
	assert.Equal(t, uint64(110_000), res.Fee)
	assert.Equal(t, uint64(100_000), res.BaseFee)
	assert.False(t, res.Capped)

	cfg.FeeHardCapMicroUnits = 105_000
	fm = newTestFeeManager(t, cfg, nil)
	res = fm.Calculate(context.Background())
	assert.Equal(t, uint64(105_000), res.Fee)
	assert.True(t, res.Capped)
}

func TestFeeManager_RetriesRateLimitedHistory(t *testing.T) {
	history := new(MockFeeHistory)
	history.On("GetRecentPrioritizationFees", mock.Anything, mock.Anything).Return(nil, rpc.ErrRateLimit).Once()
	history.On("GetRecentPrioritizationFees", mock.Anything, mock.Anything).Return([]uint64{7}, nil).Once()

	fm := newTestFeeManager(t, DefaultFeeConfig(), history)
	res := fm.Calculate(context.Background())

	assert.Equal(t, FeeSourceDynamic, res.Source)
	assert.Equal(t, uint64(7), res.Fee)
}

func TestPriorityInstructions(t *testing.T) {
	res := PriorityFeeResult{Fee: 5000}

	instructions := PriorityInstructions(res, DefaultComputeUnits)
	require.Len(t, instructions, 2)
	for _, inst := range instructions {
		assert.Equal(t, computeBudgetProgram, inst.ProgramID())
	}

	assert.Len(t, PriorityInstructions(PriorityFeeResult{}, DefaultComputeUnits), 1)
	assert.Equal(t, uint64(1000), TotalPriorityCostLamports(res, DefaultComputeUnits))
}

var computeBudgetProgram = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")
