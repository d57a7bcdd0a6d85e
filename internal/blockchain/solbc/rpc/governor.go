// internal/blockchain/solbc/rpc/governor.go
package rpc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pumpbot/internal/utils/metrics"
)

// Основные константы
const (
	DefaultRequestsPerSecond = 10
	DefaultRetryDelay        = 500 * time.Millisecond
	DefaultMaxRetries        = 3

	window             = time.Second
	maxBackoffInterval = time.Minute
)

// GovernorConfig задаёт квоту и политику повторов для RPC-узла.
type GovernorConfig struct {
	RequestsPerSecond int           // 0 отключает ограничение частоты
	RetryDelay        time.Duration // базовая задержка экспоненциального backoff
	MaxRetries        int           // повторы после первой попытки
}

// DefaultGovernorConfig возвращает конфигурацию по умолчанию
func DefaultGovernorConfig() GovernorConfig {
	return GovernorConfig{
		RequestsPerSecond: DefaultRequestsPerSecond,
		RetryDelay:        DefaultRetryDelay,
		MaxRetries:        DefaultMaxRetries,
	}
}

// Governor ограничивает частоту запросов к RPC-узлу и повторяет запросы,
// отклонённые из-за превышения квоты. Один экземпляр разделяется всеми
// компонентами, которые ходят в сеть.
type Governor struct {
	cfg     GovernorConfig
	logger  *zap.Logger
	metrics *metrics.Collector
	now     func() time.Time

	mu     sync.Mutex
	window []time.Time
}

// NewGovernor создаёт новый governor
func NewGovernor(cfg GovernorConfig, logger *zap.Logger, m *metrics.Collector) *Governor {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Governor{
		cfg:     cfg,
		logger:  logger.Named("rpc-governor"),
		metrics: m,
		now:     time.Now,
	}
}

// Do выполняет операцию с учётом квоты и повторов.
func (g *Governor) Do(ctx context.Context, label string, op func(context.Context) error) error {
	_, err := Schedule(ctx, g, label, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Schedule выполняет op через governor и возвращает её результат.
// Ошибки rate limit повторяются с задержкой RetryDelay × 2^(attempt-1),
// любые другие ошибки возвращаются сразу.
func Schedule[T any](ctx context.Context, g *Governor, label string, op func(context.Context) (T, error)) (T, error) {
	attempts := 0

	operation := func() (T, error) {
		attempts++
		var zero T

		if err := g.acquire(ctx, label); err != nil {
			return zero, backoff.Permanent(err)
		}

		start := time.Now()
		res, err := op(ctx)
		g.metrics.RecordRPC(label, time.Since(start), err)
		if err == nil {
			return res, nil
		}

		if !IsRateLimitError(err) {
			return res, backoff.Permanent(err)
		}

		if attempts <= g.cfg.MaxRetries {
			g.metrics.RecordRateLimitRetry(label)
			g.logger.Warn("Rate limited, backing off",
				zap.String("label", label),
				zap.Int("attempt", attempts),
				zap.Int("max_retries", g.cfg.MaxRetries),
				zap.Error(err))
		}
		return res, err
	}

	res, err := backoff.Retry(
		ctx,
		operation,
		backoff.WithBackOff(&backoff.ExponentialBackOff{
			InitialInterval:     g.cfg.RetryDelay,
			RandomizationFactor: 0,
			Multiplier:          2,
			MaxInterval:         maxBackoffInterval,
		}),
		backoff.WithMaxTries(uint(g.cfg.MaxRetries+1)),
	)
	if err != nil && IsRateLimitError(err) {
		g.logger.Error("Rate limit retries exhausted",
			zap.String("label", label),
			zap.Int("attempts", attempts))
		return res, &Error{
			Err:      fmt.Errorf("%w: %w", ErrRateLimitExceeded, err),
			Label:    label,
			Attempts: attempts,
		}
	}
	return res, err
}

// acquire резервирует слот в скользящем окне, при необходимости ожидая,
// пока самая старая запись покинет окно.
func (g *Governor) acquire(ctx context.Context, label string) error {
	if g.cfg.RequestsPerSecond <= 0 {
		return nil
	}

	for {
		g.mu.Lock()
		now := g.now()
		g.prune(now)
		if len(g.window) < g.cfg.RequestsPerSecond {
			g.window = append(g.window, now)
			g.mu.Unlock()
			return nil
		}
		delay := g.window[0].Add(window).Sub(now)
		g.mu.Unlock()

		g.metrics.RecordThrottleWait()
		g.logger.Debug("Request window full, delaying",
			zap.String("label", label),
			zap.Duration("delay", delay))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// prune удаляет записи старше окна. Вызывается под g.mu.
func (g *Governor) prune(now time.Time) {
	i := 0
	for i < len(g.window) && now.Sub(g.window[i]) >= window {
		i++
	}
	if i > 0 {
		g.window = g.window[i:]
	}
}

// InFlight возвращает количество запросов в текущем окне
func (g *Governor) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prune(g.now())
	return len(g.window)
}
