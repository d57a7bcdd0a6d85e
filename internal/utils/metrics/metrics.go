// internal/utils/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pumpbot"

// Collector держит все метрики движка позиций. Методы безопасно
// вызывать на nil-коллекторе: это просто no-op.
type Collector struct {
	rpcRequests      *prometheus.CounterVec
	rpcLatency       *prometheus.HistogramVec
	rpcThrottleWaits prometheus.Counter
	rpcRetries       *prometheus.CounterVec

	priorityFees   *prometheus.CounterVec
	lastFee        prometheus.Gauge
	feeCapsApplied prometheus.Counter

	activePositions prometheus.Gauge
	positionExits   *prometheus.CounterVec
	priceChecks     *prometheus.CounterVec
}

// NewCollector регистрирует метрики в reg. При reg == nil метрики
// создаются, но не регистрируются (удобно для тестов).
func NewCollector(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)

	return &Collector{
		rpcRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "RPC requests issued through the governor",
		}, []string{"label", "status"}),
		rpcLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "request_duration_seconds",
			Help:      "Latency of governed RPC requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"label"}),
		rpcThrottleWaits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "throttle_waits_total",
			Help:      "Times a request waited for the rolling window",
		}),
		rpcRetries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "rate_limit_retries_total",
			Help:      "Retries caused by rate limit responses",
		}, []string{"label"}),
		priorityFees: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fees",
			Name:      "calculations_total",
			Help:      "Priority fee calculations by winning source",
		}, []string{"source"}),
		lastFee: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "fees",
			Name:      "last_fee_micro_lamports",
			Help:      "Last computed priority fee",
		}),
		feeCapsApplied: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fees",
			Name:      "hard_cap_applied_total",
			Help:      "Priority fees clamped to the hard cap",
		}),
		activePositions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "positions",
			Name:      "active",
			Help:      "Currently active positions",
		}),
		positionExits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "positions",
			Name:      "exits_total",
			Help:      "Exit signals raised by reason",
		}, []string{"reason"}),
		priceChecks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "positions",
			Name:      "price_checks_total",
			Help:      "Periodic price checks by outcome",
		}, []string{"outcome"}),
	}
}

// RecordRPC записывает результат и длительность RPC-запроса
func (c *Collector) RecordRPC(label string, duration time.Duration, err error) {
	if c == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.rpcRequests.WithLabelValues(label, status).Inc()
	c.rpcLatency.WithLabelValues(label).Observe(duration.Seconds())
}

// RecordThrottleWait отмечает ожидание освобождения окна
func (c *Collector) RecordThrottleWait() {
	if c == nil {
		return
	}
	c.rpcThrottleWaits.Inc()
}

// RecordRateLimitRetry отмечает повтор после 429
func (c *Collector) RecordRateLimitRetry(label string) {
	if c == nil {
		return
	}
	c.rpcRetries.WithLabelValues(label).Inc()
}

// RecordPriorityFee записывает итоговую комиссию и её источник
func (c *Collector) RecordPriorityFee(source string, fee uint64, capped bool) {
	if c == nil {
		return
	}
	c.priorityFees.WithLabelValues(source).Inc()
	c.lastFee.Set(float64(fee))
	if capped {
		c.feeCapsApplied.Inc()
	}
}

// SetActivePositions обновляет число активных позиций
func (c *Collector) SetActivePositions(n int) {
	if c == nil {
		return
	}
	c.activePositions.Set(float64(n))
}

// RecordExit отмечает сигнал на выход из позиции
func (c *Collector) RecordExit(reason string) {
	if c == nil {
		return
	}
	c.positionExits.WithLabelValues(reason).Inc()
}

// RecordPriceCheck отмечает исход периодической проверки цены
func (c *Collector) RecordPriceCheck(outcome string) {
	if c == nil {
		return
	}
	c.priceChecks.WithLabelValues(outcome).Inc()
}
