package metrics

import (
	"net/http"
	"time"

	"inventaris/server/internal/errs"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics - счетчики движка остатков. Все методы безопасны для nil
type Metrics struct {
	movements       *prometheus.CounterVec
	rejections      *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	reportCache     *prometheus.CounterVec
	publishFailures prometheus.Counter
}

// New регистрирует метрики в reg (prometheus.DefaultRegisterer в main, новый реестр в тестах)
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		movements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inventaris",
			Name:      "ledger_movements_total",
			Help:      "Stock ledger entries written, by reason.",
		}, []string{"reason"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inventaris",
			Name:      "operation_rejections_total",
			Help:      "Engine operations rejected, by operation and error kind.",
		}, []string{"operation", "kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "inventaris",
			Name:      "operation_duration_seconds",
			Help:      "Engine operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		reportCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inventaris",
			Name:      "accountability_report_cache_total",
			Help:      "Accountability report cache lookups, by result.",
		}, []string{"result"}),
		publishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "inventaris",
			Name:      "ledger_publish_failures_total",
			Help:      "Ledger events that could not be delivered to Kafka.",
		}),
	}
	reg.MustRegister(m.movements, m.rejections, m.duration, m.reportCache, m.publishFailures)
	return m
}

// Handler отдает /metrics для переданного реестра
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveMovements(reason string, count int) {
	if m == nil || count == 0 {
		return
	}
	m.movements.WithLabelValues(reason).Add(float64(count))
}

// ObserveResult пишет длительность операции и, при ошибке, ее тип
func (m *Metrics) ObserveResult(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		m.rejections.WithLabelValues(operation, string(errs.KindOf(err))).Inc()
	}
}

func (m *Metrics) ObserveReportCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.reportCache.WithLabelValues(result).Inc()
}

// ObservePublishFailure считает события, не доставленные в Kafka
func (m *Metrics) ObservePublishFailure(count int) {
	if m == nil || count == 0 {
		return
	}
	m.publishFailures.Add(float64(count))
}
