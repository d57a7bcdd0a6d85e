// internal/bot/runner.go
package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pumpbot/internal/blockchain/solbc"
	"github.com/rovshanmuradov/pumpbot/internal/blockchain/solbc/rpc"
	"github.com/rovshanmuradov/pumpbot/internal/config"
	"github.com/rovshanmuradov/pumpbot/internal/dex/pumpfun"
	"github.com/rovshanmuradov/pumpbot/internal/events"
	"github.com/rovshanmuradov/pumpbot/internal/monitor"
	"github.com/rovshanmuradov/pumpbot/internal/transaction"
	"github.com/rovshanmuradov/pumpbot/internal/utils/metrics"
)

const shutdownTimeout = 30 * time.Second

// Runner собирает все компоненты и ведёт одну позицию от покупки до закрытия.
type Runner struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry

	manager  *monitor.Manager
	executor Executor
	exits    *ExitHandler
	shutdown *ShutdownHandler
}

// NewRunner создаёт runner с paper-исполнителем поверх реального RPC.
func NewRunner(cfg *config.Config, logger *zap.Logger) *Runner {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewCollector(registry)

	client := solbc.NewClient(cfg.RPCURL, logger)
	governor := rpc.NewGovernor(cfg.GovernorConfig(), logger, m)
	curves := pumpfun.NewCurveManager(client, governor, logger)
	fees := transaction.NewFeeManager(cfg.FeeConfig(), client, governor, logger, m)
	executor := NewPaperExecutor(curves, fees, cfg.ComputeUnits, logger)

	return NewRunnerWith(cfg, cfg.ManagerConfig(), logger, registry, curves, executor, m)
}

// NewRunnerWith собирает runner из готовых зависимостей.
func NewRunnerWith(cfg *config.Config, mcfg monitor.ManagerConfig, logger *zap.Logger, registry *prometheus.Registry, prices monitor.PriceSource, executor Executor, m *metrics.Collector) *Runner {
	bus := events.NewBus(logger, events.DefaultBufferSize)
	manager := monitor.NewManager(mcfg, prices, bus, logger, m)
	exits := NewExitHandler(manager, executor, cfg.SlippagePercentage, logger)

	return &Runner{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		manager:  manager,
		executor: executor,
		exits:    exits,
		shutdown: NewShutdownHandler(logger),
	}
}

// Manager возвращает менеджер позиций
func (r *Runner) Manager() *monitor.Manager {
	return r.manager
}

// Run покупает токен на solAmount, открывает позицию и ждёт её закрытия
// или отмены ctx. При отмене открытые позиции закрываются принудительно.
func (r *Runner) Run(ctx context.Context, token monitor.TokenInfo, solAmount float64) error {
	r.serveMetrics()
	r.exits.Attach()

	closed := make(chan solana.PublicKey, 1)
	r.manager.Subscribe(events.PositionClosed, events.HandlerFunc(func(_ context.Context, e events.Event) error {
		if ev, ok := e.(monitor.PositionClosedEvent); ok {
			select {
			case closed <- ev.Position.Token.Mint:
			default:
			}
		}
		return nil
	}))

	forceClose := true
	r.shutdown.Add("exit-handler", func(context.Context) error {
		r.exits.Detach()
		return nil
	})
	r.shutdown.Add("position-manager", func(ctx context.Context) error {
		return r.manager.Shutdown(ctx, forceClose)
	})
	defer r.Shutdown()

	buy := r.executor.ExecuteBuy(ctx, token, solAmount, r.cfg.SlippagePercentage)
	if !buy.Success {
		return fmt.Errorf("buy %s failed: %w", token.Mint, buy.Error)
	}
	r.logger.Info("Buy confirmed",
		zap.String("mint", token.Mint.String()),
		zap.Float64("price", buy.Price),
		zap.Float64("quantity", buy.Quantity),
		zap.String("signature", buy.Signature))

	if _, err := r.manager.CreatePosition(token, buy.Price, buy.Quantity, solAmount, r.cfg.ExitConfig()); err != nil {
		return fmt.Errorf("create position: %w", err)
	}

	select {
	case <-ctx.Done():
		r.logger.Info("Stop requested, closing open positions")
	case mint := <-closed:
		forceClose = false
		r.logger.Info("Position lifecycle finished", zap.String("mint", mint.String()))
	}
	return nil
}

// Shutdown останавливает все сервисы
func (r *Runner) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := r.shutdown.Shutdown(ctx); err != nil {
		r.logger.Error("Shutdown finished with errors", zap.Error(err))
	}

	s := monitor.Summarize(r.manager.GetAllPositions())
	r.logger.Info("Session summary",
		zap.Int("positions", s.TotalPositions),
		zap.Int("closed", s.ClosedPositions),
		zap.Int("wins", s.WinningTrades),
		zap.Int("losses", s.LosingTrades),
		zap.Float64("realized_pnl_sol", s.RealizedPnL),
		zap.Float64("net_roi_percent", s.NetROIPercent),
		zap.Duration("avg_hold", s.AvgHoldTime))
}

func (r *Runner) serveMetrics() {
	if r.cfg.MetricsAddr == "" || r.registry == nil {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              r.cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
	r.logger.Info("Serving metrics", zap.String("addr", r.cfg.MetricsAddr))
	r.shutdown.Add("metrics-server", srv.Shutdown)
}
