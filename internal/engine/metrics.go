package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Latency: полный цикл ревью (включая вызовы экспертов в RunReview)
	ReviewDuration *prometheus.HistogramVec

	// Traffic: итоговые рекомендации
	ReviewsTotal *prometheus.CounterVec

	// Defers: какое правило отправило ревью человеку
	DefersTotal *prometheus.CounterVec

	// Распределение общей уверенности
	AggregateConfidence prometheus.Histogram

	// Errors: отказы агентов по типам
	AgentFailures *prometheus.CounterVec

	// Saturation: состояние Circuit Breaker эксперта (0 - closed, 1 - half-open, 2 - open)
	ExpertBreakerState *prometheus.GaugeVec

	// Audit: заполненность буфера (backpressure)
	AuditBufferFill prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		ReviewDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trustgate_review_duration_seconds",
			Help:    "Histogram of review latencies.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"status"}), // decided, escalated

		ReviewsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "trustgate_reviews_total",
			Help: "Total number of reviews by final recommendation.",
		}, []string{"recommendation"}),

		DefersTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "trustgate_review_defers_total",
			Help: "Total number of deferred reviews by rule.",
		}, []string{"rule"}),

		AggregateConfidence: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "trustgate_aggregate_confidence",
			Help:    "Distribution of reliability-weighted overall confidence.",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		}),

		AgentFailures: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "trustgate_agent_failures_total",
			Help: "Total number of failed agent outputs by agent type.",
		}, []string{"agent_type"}),

		ExpertBreakerState: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "trustgate_expert_breaker_state",
			Help: "Current state of the expert circuit breaker (0=closed, 1=half-open, 2=open).",
		}, []string{"agent_type"}),

		AuditBufferFill: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "trustgate_audit_buffer_utilization",
			Help: "Current number of events in audit buffer.",
		}),
	}
}
