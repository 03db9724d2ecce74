package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hamzaKhattat/calllog-production-system/pkg/logger"
)

type PrometheusMetrics struct {
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	gauges     map[string]*prometheus.GaugeVec
}

func NewPrometheusMetrics() *PrometheusMetrics {
	pm := &PrometheusMetrics{
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
	}

	pm.registerMetrics()

	return pm
}

func (pm *PrometheusMetrics) registerMetrics() {
	// Counters
	pm.counters["calllogger_calls_processed"] = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calllogger_calls_processed_total",
			Help: "Total number of call transitions processed",
		},
		[]string{"transition"},
	)

	pm.counters["calllogger_autolog"] = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calllogger_autolog_total",
			Help: "Automatic log attempts per provider",
		},
		[]string{"provider", "status"},
	)

	pm.counters["calllogger_manual_log"] = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calllogger_manual_log_total",
			Help: "Manual log requests per provider",
		},
		[]string{"provider", "status"},
	)

	pm.counters["calllogger_ingest"] = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calllogger_ingest_total",
			Help: "Raw call batches ingested",
		},
		[]string{"status"},
	)

	// Histograms
	pm.histograms["calllogger_reconcile_duration"] = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "calllogger_reconcile_duration_seconds",
			Help:    "Time spent reconciling a raw call batch",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
		[]string{},
	)

	// Gauges
	pm.gauges["calllogger_ready"] = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "calllogger_ready",
			Help: "Whether the logging engine is ready (1) or pending (0)",
		},
		[]string{},
	)

	pm.gauges["calllogger_active_calls"] = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "calllogger_active_calls",
			Help: "Calls in the current reconciled snapshot",
		},
		[]string{},
	)

	for _, counter := range pm.counters {
		prometheus.MustRegister(counter)
	}
	for _, histogram := range pm.histograms {
		prometheus.MustRegister(histogram)
	}
	for _, gauge := range pm.gauges {
		prometheus.MustRegister(gauge)
	}
}

func (pm *PrometheusMetrics) IncrementCounter(name string, labels map[string]string) {
	if counter, exists := pm.counters[name]; exists {
		if labels == nil {
			labels = make(map[string]string)
		}
		counter.With(prometheus.Labels(labels)).Inc()
	}
}

func (pm *PrometheusMetrics) ObserveHistogram(name string, value float64, labels map[string]string) {
	if histogram, exists := pm.histograms[name]; exists {
		if labels == nil {
			labels = make(map[string]string)
		}
		histogram.With(prometheus.Labels(labels)).Observe(value)
	}
}

func (pm *PrometheusMetrics) SetGauge(name string, value float64, labels map[string]string) {
	if gauge, exists := pm.gauges[name]; exists {
		if labels == nil {
			labels = make(map[string]string)
		}
		gauge.With(prometheus.Labels(labels)).Set(value)
	}
}

func (pm *PrometheusMetrics) ServeHTTP(port int) error {
	http.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	logger.WithField("addr", addr).Info("Metrics server started")
	return http.ListenAndServe(addr, nil)
}
