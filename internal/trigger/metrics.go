package trigger

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics Prometheus-метрики одного хранилища.
//
// Метрики:
// * triggers_loaded{folder}: gauge, привязок в памяти
// * triggers_ledger_slots{folder}: gauge, длина реестра вместе с tombstone
// * triggers_failures_total{folder,op}: counter
// * triggers_persist_queue_depth{folder}: gauge
// * triggers_batch_duration_seconds{folder,op}: histogram (reload/save)
type Metrics struct {
	loaded      prometheus.Gauge
	ledgerSlots prometheus.Gauge
	failures    *prometheus.CounterVec
	queueDepth  prometheus.Gauge
	batch       *prometheus.HistogramVec
}

// NewMetrics создаёт метрики и регистрирует их в reg. Если reg == nil,
// метрики работают, но нигде не экспортируются.
func NewMetrics(folder string, reg prometheus.Registerer) *Metrics {
	labels := prometheus.Labels{"folder": folder}
	m := &Metrics{
		loaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "triggers",
			Name:        "loaded",
			Help:        "Количество триггеров в памяти.",
			ConstLabels: labels,
		}),
		ledgerSlots: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "triggers",
			Name:        "ledger_slots",
			Help:        "Длина реестра слотов вместе с пустыми слотами.",
			ConstLabels: labels,
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "triggers",
			Name:        "failures_total",
			Help:        "Ошибки загрузки и сохранения по типу операции.",
			ConstLabels: labels,
		}, []string{"op"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "triggers",
			Name:        "persist_queue_depth",
			Help:        "Запросы фонового сохранения в очереди.",
			ConstLabels: labels,
		}),
		batch: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "triggers",
			Name:        "batch_duration_seconds",
			Help:        "Длительность Reload и SaveAll.",
			ConstLabels: labels,
			Buckets:     []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"op"}),
	}

	if reg != nil {
		reg.MustRegister(m.loaded, m.ledgerSlots, m.failures, m.queueDepth, m.batch)
	}
	return m
}

func (m *Metrics) recordFailures(failures []Failure) {
	for _, f := range failures {
		m.failures.WithLabelValues(f.Op).Inc()
	}
}
