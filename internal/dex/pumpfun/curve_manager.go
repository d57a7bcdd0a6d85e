// =============================
// File: internal/dex/pumpfun/curve_manager.go
// =============================
package pumpfun

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	solrpc "github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/pumpbot/internal/blockchain/solbc"
	"github.com/rovshanmuradov/pumpbot/internal/blockchain/solbc/rpc"
)

// ErrNoData - аккаунт bonding curve отсутствует или пуст
var ErrNoData = errors.New("bonding curve account has no data")

// defaultFetchConcurrency ограничивает число одновременных запросов в FetchMany.
const defaultFetchConcurrency = 8

// AccountFetcher - минимальный интерфейс RPC-клиента, нужный менеджеру кривых.
// Реализуется *solbc.Client.
type AccountFetcher interface {
	GetAccountInfo(ctx context.Context, pubkey solana.PublicKey) (*solrpc.GetAccountInfoResult, error)
}

var _ AccountFetcher = (*solbc.Client)(nil)

// CurveManager читает и декодирует состояние bonding curve через общий governor.
type CurveManager struct {
	client      AccountFetcher
	governor    *rpc.Governor
	logger      *zap.Logger
	concurrency int
}

// NewCurveManager создаёт новый менеджер кривых
func NewCurveManager(client AccountFetcher, governor *rpc.Governor, logger *zap.Logger) *CurveManager {
	return &CurveManager{
		client:      client,
		governor:    governor,
		logger:      logger.Named("curve-manager"),
		concurrency: defaultFetchConcurrency,
	}
}

// FetchState получает и декодирует состояние кривой одним запросом.
func (m *CurveManager) FetchState(ctx context.Context, curve solana.PublicKey) (*CurveState, error) {
	info, err := rpc.Schedule(ctx, m.governor, "getAccountInfo", func(ctx context.Context) (*solrpc.GetAccountInfoResult, error) {
		return m.client.GetAccountInfo(ctx, curve)
	})
	if err != nil {
		if solbc.IsAccountNotFoundError(err) {
			m.logger.Debug("Bonding curve account not found", zap.String("curve", curve.String()))
			return nil, ErrNoData
		}
		return nil, fmt.Errorf("failed to get bonding curve account %s: %w", curve, err)
	}

	if info == nil || info.Value == nil {
		m.logger.Debug("Bonding curve account is empty", zap.String("curve", curve.String()))
		return nil, ErrNoData
	}
	data := info.Value.Data.GetBinary()
	if len(data) == 0 {
		m.logger.Debug("Bonding curve account has no data", zap.String("curve", curve.String()))
		return nil, ErrNoData
	}

	state, err := DecodeCurveState(data)
	if err != nil {
		m.logger.Debug("Failed to decode bonding curve",
			zap.String("curve", curve.String()),
			zap.Error(err))
		return nil, err
	}
	return state, nil
}

// FetchDerived получает состояние и вычисляет производные метрики.
func (m *CurveManager) FetchDerived(ctx context.Context, curve solana.PublicKey) (*CurveMetrics, error) {
	state, err := m.FetchState(ctx, curve)
	if err != nil {
		return nil, err
	}
	metrics, err := DeriveMetrics(state)
	if err != nil {
		return nil, fmt.Errorf("curve %s: %w", curve, err)
	}
	return metrics, nil
}

// FetchMany запрашивает несколько кривых параллельно. В результат попадают
// только успешные; ошибка одной кривой не прерывает остальные.
func (m *CurveManager) FetchMany(ctx context.Context, curves []solana.PublicKey) map[solana.PublicKey]*CurveMetrics {
	var (
		mu      sync.Mutex
		results = make(map[solana.PublicKey]*CurveMetrics, len(curves))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)

	for _, curve := range curves {
		g.Go(func() error {
			metrics, err := m.FetchDerived(gctx, curve)
			if err != nil {
				m.logger.Debug("Skipping curve in batch",
					zap.String("curve", curve.String()),
					zap.Error(err))
				return nil
			}
			mu.Lock()
			results[curve] = metrics
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// CurrentPrice возвращает метрики кривой для минта. Если адрес кривой
// не задан, он вычисляется из минта.
func (m *CurveManager) CurrentPrice(ctx context.Context, mint, curve solana.PublicKey) (*CurveMetrics, error) {
	if curve.IsZero() {
		derived, err := DeriveBondingCurve(mint)
		if err != nil {
			return nil, err
		}
		curve = derived
	}
	return m.FetchDerived(ctx, curve)
}
