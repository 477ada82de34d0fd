package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/certificate-harvester/internal/core/domain"
)

// HarvestMetrics observes the per-address pipeline. It implements
// ports.HarvestObserver and strategy.Recorder.
type HarvestMetrics struct {
	registry *prometheus.Registry
	service  string

	addressTotal    *prometheus.CounterVec
	addressDuration *prometheus.HistogramVec
	addressInFlight prometheus.Gauge
	skippedTotal    *prometheus.CounterVec
	artifactTotal   *prometheus.CounterVec
	artifactBytes   *prometheus.HistogramVec
	strategyWins    *prometheus.CounterVec
}

func NewHarvestMetrics(service string) *HarvestMetrics {
	registry := prometheus.NewRegistry()

	addressTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "harvester",
			Subsystem: "pipeline",
			Name:      "addresses_total",
			Help:      "Total processed addresses by result status.",
		},
		[]string{"service", "status"},
	)
	addressDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "harvester",
			Subsystem: "pipeline",
			Name:      "address_duration_seconds",
			Help:      "Per-address processing duration in seconds by result status.",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 90, 120, 180},
		},
		[]string{"service", "status"},
	)
	addressInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "harvester",
			Subsystem: "pipeline",
			Name:      "addresses_in_flight",
			Help:      "Number of addresses being processed.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	skippedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "harvester",
			Subsystem: "pipeline",
			Name:      "addresses_skipped_total",
			Help:      "Addresses skipped because the ledger already records a success.",
		},
		[]string{"service"},
	)
	artifactTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "harvester",
			Subsystem: "capture",
			Name:      "artifacts_total",
			Help:      "Captured artifacts by delivery channel.",
		},
		[]string{"service", "channel"},
	)
	artifactBytes := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "harvester",
			Subsystem: "capture",
			Name:      "artifact_bytes",
			Help:      "Size distribution of captured artifacts.",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
		},
		[]string{"service", "channel"},
	)
	strategyWins := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "harvester",
			Subsystem: "strategy",
			Name:      "wins_total",
			Help:      "Strategy chain wins by component and strategy.",
		},
		[]string{"service", "component", "strategy"},
	)

	registry.MustRegister(addressTotal, addressDuration, addressInFlight, skippedTotal, artifactTotal, artifactBytes, strategyWins)

	return &HarvestMetrics{
		registry:        registry,
		service:         service,
		addressTotal:    addressTotal,
		addressDuration: addressDuration,
		addressInFlight: addressInFlight,
		skippedTotal:    skippedTotal,
		artifactTotal:   artifactTotal,
		artifactBytes:   artifactBytes,
		strategyWins:    strategyWins,
	}
}

func (m *HarvestMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HarvestMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *HarvestMetrics) StartAddress() {
	m.addressInFlight.Inc()
}

func (m *HarvestMetrics) FinishAddress(status domain.ResultStatus, seconds float64) {
	m.addressInFlight.Dec()
	m.addressTotal.WithLabelValues(m.service, string(status)).Inc()
	m.addressDuration.WithLabelValues(m.service, string(status)).Observe(seconds)
}

func (m *HarvestMetrics) ObserveSkip() {
	m.skippedTotal.WithLabelValues(m.service).Inc()
}

func (m *HarvestMetrics) ObserveArtifact(channel domain.CaptureChannel, sizeBytes int) {
	label := string(channel)
	if label == "" {
		label = "none"
	}
	m.artifactTotal.WithLabelValues(m.service, label).Inc()
	if sizeBytes > 0 {
		m.artifactBytes.WithLabelValues(m.service, label).Observe(float64(sizeBytes))
	}
}

// RecordStrategy keeps the selector part of "step:selector" strategy names
// out of the label set; selectors are unbounded.
func (m *HarvestMetrics) RecordStrategy(component, strategy string) {
	m.strategyWins.WithLabelValues(m.service, component, strategyLabel(strategy)).Inc()
}

func strategyLabel(strategy string) string {
	step, rest, found := strings.Cut(strategy, ":")
	if !found {
		return strategy
	}
	switch step {
	case "input", "selection":
		return strategy
	}
	if strings.HasPrefix(rest, "structural") || strings.HasPrefix(rest, "pattern_") {
		return strategy
	}
	return step
}
